package debate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

func newTestScoring() *ScoringEngine {
	return NewScoringEngine(0, nil)
}

// ============================================================================
// Judge Output Parsing
// ============================================================================

func TestParseJudgeScore_Valid(t *testing.T) {
	e := newTestScoring()
	raw := `{"logic":8,"rebuttal":7,"clarity":9,"evidence":6,"comment":"solid","fouls":["ad hominem"]}`

	score, parsed := e.ParseJudgeScore(raw)
	require.True(t, parsed)
	assert.Equal(t, 8, score.Logic)
	assert.Equal(t, 7, score.Rebuttal)
	assert.Equal(t, 9, score.Clarity)
	assert.Equal(t, 6, score.Evidence)
	assert.Equal(t, 30, score.Total())
	assert.Equal(t, "solid", score.Comment)
	assert.Equal(t, []string{"ad hominem"}, score.Fouls)
}

func TestParseJudgeScore_SurroundingProse(t *testing.T) {
	e := newTestScoring()
	raw := "Here is my verdict:\n```json\n{\"logic\":5,\"rebuttal\":5,\"clarity\":5,\"evidence\":5}\n```\nThank you."

	score, parsed := e.ParseJudgeScore(raw)
	require.True(t, parsed)
	assert.Equal(t, 20, score.Total())
}

func TestParseJudgeScore_ClampsOutOfRange(t *testing.T) {
	e := newTestScoring()
	raw := `{"logic":15,"rebuttal":0,"clarity":-3,"evidence":10.4}`

	score, parsed := e.ParseJudgeScore(raw)
	require.True(t, parsed)
	assert.Equal(t, 10, score.Logic)
	assert.Equal(t, 1, score.Rebuttal)
	assert.Equal(t, 1, score.Clarity)
	assert.Equal(t, 10, score.Evidence)
	assert.GreaterOrEqual(t, score.Total(), 4)
	assert.LessOrEqual(t, score.Total(), 40)
}

func TestParseJudgeScore_FallbackOnGarbage(t *testing.T) {
	e := newTestScoring()
	for _, raw := range []string{"", "not json at all", `{"logic":8}`, `{"broken`} {
		score, parsed := e.ParseJudgeScore(raw)
		assert.False(t, parsed, "raw=%q", raw)
		assert.Equal(t, 5, score.Logic)
		assert.Equal(t, 5, score.Rebuttal)
		assert.Equal(t, 5, score.Clarity)
		assert.Equal(t, 5, score.Evidence)
		assert.NotEmpty(t, score.Comment)
	}
}

// ============================================================================
// Penalties and Winner Determination
// ============================================================================

func TestApplyFoulPenalty(t *testing.T) {
	assert.Equal(t, 4, ApplyFoulPenalty(8, 2))
	assert.Equal(t, 1, ApplyFoulPenalty(3, 3))
	assert.Equal(t, 8, ApplyFoulPenalty(8, 0))
	assert.Equal(t, 1, ApplyFoulPenalty(1, 10))
}

func TestDetermineWinner(t *testing.T) {
	e := newTestScoring()

	assert.Equal(t, models.StancePro, e.DetermineWinner(25, 20))
	assert.Equal(t, models.StanceCon, e.DetermineWinner(20, 25))
	assert.Equal(t, models.StanceDraw, e.DetermineWinner(22, 22.05))
	assert.Equal(t, models.StanceDraw, e.DetermineWinner(22, 22))
	// Exactly at the threshold is not a draw.
	assert.Equal(t, models.StanceCon, e.DetermineWinner(22, 22.5))
}

func TestDetermineWinner_CustomThreshold(t *testing.T) {
	e := NewScoringEngine(5, nil)
	assert.Equal(t, models.StanceDraw, e.DetermineWinner(25, 21))
	assert.Equal(t, models.StancePro, e.DetermineWinner(25, 20))
}

// ============================================================================
// Turning Round
// ============================================================================

// scoreFixture builds rounds and scores with the given per-round totals.
func scoreFixture(t *testing.T, proTotals, conTotals []int) ([]*models.Round, []*models.Score) {
	t.Helper()
	require.Equal(t, len(proTotals), len(conTotals))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var rounds []*models.Round
	var scores []*models.Score
	for i := range proTotals {
		r := &models.Round{ID: string(rune('a' + i)), DebateID: "d", Sequence: i + 1}
		rounds = append(rounds, r)
		scores = append(scores,
			&models.Score{ID: r.ID + "-pro", RoundID: r.ID, AgentID: "pro", Stance: models.StancePro,
				Total: proTotals[i], CreatedAt: base.Add(time.Duration(i) * time.Minute)},
			&models.Score{ID: r.ID + "-con", RoundID: r.ID, AgentID: "con", Stance: models.StanceCon,
				Total: conTotals[i], CreatedAt: base.Add(time.Duration(i)*time.Minute + time.Second)},
		)
	}
	return rounds, scores
}

func TestFindKeyTurningRound_LeadershipFlip(t *testing.T) {
	e := newTestScoring()
	// Pro leads after rounds 1-2, con overtakes cumulatively in round 3.
	rounds, scores := scoreFixture(t, []int{30, 20, 10, 20}, []int{25, 22, 25, 20})

	assert.Equal(t, 3, e.FindKeyTurningRound(rounds, scores))
}

func TestFindKeyTurningRound_NoFlip(t *testing.T) {
	e := newTestScoring()
	// Pro leads throughout; the widest gap is after round 3.
	rounds, scores := scoreFixture(t, []int{30, 30, 35, 20}, []int{25, 28, 20, 22})

	assert.Equal(t, 3, e.FindKeyTurningRound(rounds, scores))
}

func TestFindKeyTurningRound_Empty(t *testing.T) {
	e := newTestScoring()
	assert.Equal(t, 0, e.FindKeyTurningRound(nil, nil))
}

// ============================================================================
// Final Judgment
// ============================================================================

func TestGenerateFinalJudgment(t *testing.T) {
	e := newTestScoring()
	rounds, scores := scoreFixture(t, []int{30, 28}, []int{24, 22})
	scores[1].Fouls = []string{"off-topic"} // con, round 1: 24 -> 22

	msgs := []*models.Message{
		{ID: "m1", RoundID: rounds[0].ID, AgentID: "pro", Stance: models.StancePro, Content: "pro opening"},
		{ID: "m2", RoundID: rounds[0].ID, AgentID: "con", Stance: models.StanceCon, Content: "con opening"},
		{ID: "m3", RoundID: rounds[1].ID, AgentID: "pro", Stance: models.StancePro, Content: "pro rebuttal"},
	}

	j := e.GenerateFinalJudgment(rounds, scores, msgs)
	assert.Equal(t, 58, j.ProTotal)
	assert.Equal(t, 46, j.ConTotal)
	assert.Equal(t, 58, j.ProPenalized)
	assert.Equal(t, 44, j.ConPenalized)
	assert.Equal(t, models.StancePro, j.Winner)
	require.Len(t, j.FoulRecords, 1)
	assert.Equal(t, 1, j.FoulRecords[0].RoundSequence)
	assert.Equal(t, models.StanceCon, j.FoulRecords[0].Stance)
	assert.NotEmpty(t, j.WinningArguments)
}

func TestGenerateFinalJudgment_Idempotent(t *testing.T) {
	e := newTestScoring()
	rounds, scores := scoreFixture(t, []int{30, 10, 25}, []int{20, 35, 24})
	msgs := []*models.Message{
		{ID: "m1", RoundID: rounds[0].ID, Stance: models.StancePro, Content: "argument one"},
		{ID: "m2", RoundID: rounds[2].ID, Stance: models.StancePro, Content: "argument two"},
	}

	first := e.GenerateFinalJudgment(rounds, scores, msgs)
	second := e.GenerateFinalJudgment(rounds, scores, msgs)
	assert.Equal(t, first, second)
}

func TestExtractWinningArguments_Deterministic(t *testing.T) {
	e := newTestScoring()
	rounds, scores := scoreFixture(t, []int{30, 35, 20, 35}, []int{10, 10, 10, 10})
	msgs := []*models.Message{
		{ID: "m1", RoundID: rounds[0].ID, Stance: models.StancePro, Content: "first"},
		{ID: "m2", RoundID: rounds[1].ID, Stance: models.StancePro, Content: "second"},
		{ID: "m3", RoundID: rounds[2].ID, Stance: models.StancePro, Content: "third"},
		{ID: "m4", RoundID: rounds[3].ID, Stance: models.StancePro, Content: "fourth"},
	}

	args := e.ExtractWinningArguments(models.StancePro, rounds, scores, msgs)
	// Top three rounds by score; the 35/35 tie breaks toward the earlier round.
	assert.Equal(t, []string{"second", "fourth", "first"}, args)

	assert.Nil(t, e.ExtractWinningArguments(models.StanceDraw, rounds, scores, msgs))
}

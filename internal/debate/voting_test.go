package debate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

func ballotFixture(stance models.Stance, confidence float64) *models.Vote {
	return &models.Vote{Stance: stance, Confidence: confidence}
}

func TestAggregateVotes(t *testing.T) {
	e := NewVotingEngine(0)
	tally := e.AggregateVotes([]*models.Vote{
		ballotFixture(models.StancePro, 0.9),
		ballotFixture(models.StancePro, 0.7),
		ballotFixture(models.StanceCon, 0.6),
	})

	assert.Equal(t, 2, tally.Pro)
	assert.Equal(t, 1, tally.Con)
	assert.Equal(t, 0, tally.Draw)
	assert.Equal(t, 3, tally.Total)
	assert.InDelta(t, 1.6, tally.ProWeighted, 1e-9)
	assert.InDelta(t, 0.6, tally.ConWeighted, 1e-9)
}

func TestAggregateVotes_DrawBallotsCarryNoWeight(t *testing.T) {
	e := NewVotingEngine(0)
	tally := e.AggregateVotes([]*models.Vote{
		ballotFixture(models.StanceDraw, 1.0),
		ballotFixture(models.StancePro, 0.4),
	})

	assert.Equal(t, 1, tally.Draw)
	assert.Equal(t, 2, tally.Total)
	assert.InDelta(t, 0.4, tally.ProWeighted, 1e-9)
	assert.InDelta(t, 0.0, tally.ConWeighted, 1e-9)
}

func TestDetermineWinnerFromVotes(t *testing.T) {
	e := NewVotingEngine(0)

	assert.Equal(t, models.StancePro, e.DetermineWinnerFromVotes(VoteTally{ProWeighted: 1.6, ConWeighted: 0.6}))
	assert.Equal(t, models.StanceCon, e.DetermineWinnerFromVotes(VoteTally{ProWeighted: 0.5, ConWeighted: 0.6}))
	// Draw only on an exact tie, unlike the judge threshold.
	assert.Equal(t, models.StanceDraw, e.DetermineWinnerFromVotes(VoteTally{ProWeighted: 1.0, ConWeighted: 1.0}))
	assert.Equal(t, models.StancePro, e.DetermineWinnerFromVotes(VoteTally{ProWeighted: 1.0000001, ConWeighted: 1.0}))
}

func TestAudienceShares(t *testing.T) {
	e := NewVotingEngine(0)

	pro, con := e.AudienceShares(VoteTally{ProWeighted: 1.6, ConWeighted: 0.9})
	assert.InDelta(t, 0.64, pro, 1e-9)
	assert.InDelta(t, 0.36, con, 1e-9)

	// No directional weight at all: the audience expressed no lean.
	pro, con = e.AudienceShares(VoteTally{Draw: 3, Total: 3})
	assert.InDelta(t, 0.5, pro, 1e-9)
	assert.InDelta(t, 0.5, con, 1e-9)
}

func TestCalculateWeightedResult_WorkedExample(t *testing.T) {
	// 10-round debate, judge 320/300 at weight 0.7, ballots 2×pro@0.8 and
	// con@0.9 at weight 0.3, scale defaulting to the combined judge total.
	e := NewVotingEngine(0)
	tally := e.AggregateVotes([]*models.Vote{
		ballotFixture(models.StancePro, 0.8),
		ballotFixture(models.StancePro, 0.8),
		ballotFixture(models.StanceCon, 0.9),
	})

	result := e.CalculateWeightedResult(320, 300, tally, 0.7, 0.3)
	assert.InDelta(t, 620, result.Scale, 1e-9)
	assert.InDelta(t, 0.64, result.AudienceSharePro, 1e-9)
	assert.InDelta(t, 343.04, result.FinalPro, 1e-6)
	assert.InDelta(t, 276.96, result.FinalCon, 1e-6)

	scoring := newTestScoring()
	assert.Equal(t, models.StancePro, scoring.DetermineWinner(result.FinalPro, result.FinalCon))
}

func TestCalculateWeightedResult_ExplicitScale(t *testing.T) {
	e := NewVotingEngine(100)
	tally := VoteTally{ProWeighted: 3, ConWeighted: 1, Total: 4}

	result := e.CalculateWeightedResult(200, 200, tally, 0.7, 0.3)
	assert.InDelta(t, 100, result.Scale, 1e-9)
	// 200*0.7 + 0.75*100*0.3 = 162.5
	assert.InDelta(t, 162.5, result.FinalPro, 1e-9)
	// 200*0.7 + 0.25*100*0.3 = 147.5
	assert.InDelta(t, 147.5, result.FinalCon, 1e-9)
}

func TestCalculateWeightedResult_Idempotent(t *testing.T) {
	e := NewVotingEngine(0)
	tally := VoteTally{Pro: 2, Con: 1, Total: 3, ProWeighted: 1.6, ConWeighted: 0.6}

	first := e.CalculateWeightedResult(120, 96, tally, 0.6, 0.4)
	second := e.CalculateWeightedResult(120, 96, tally, 0.6, 0.4)
	assert.Equal(t, first, second)
}

// Package debate implements the debate engine: orchestration, judge scoring,
// audience vote aggregation and the audience request sub-workflow.
package debate

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// DefaultWinThreshold is the absolute score gap below which the judge verdict
// is a draw.
const DefaultWinThreshold = 0.5

// fallbackDimension is the neutral score applied when judge output cannot be
// parsed. Judge output is untrusted free text; degrade, never crash.
const fallbackDimension = 5

// JudgeScore is a validated per-round, per-debater judge verdict.
type JudgeScore struct {
	Logic    int      `json:"logic"`
	Rebuttal int      `json:"rebuttal"`
	Clarity  int      `json:"clarity"`
	Evidence int      `json:"evidence"`
	Comment  string   `json:"comment,omitempty"`
	Fouls    []string `json:"fouls,omitempty"`
}

// Total sums the four dimensions. Always in [4,40] after validation.
func (s JudgeScore) Total() int {
	return s.Logic + s.Rebuttal + s.Clarity + s.Evidence
}

// FoulRecord reports fouls flagged in one round for one side.
type FoulRecord struct {
	RoundSequence int           `json:"round_sequence"`
	Stance        models.Stance `json:"stance"`
	AgentID       string        `json:"agent_id"`
	Fouls         []string      `json:"fouls"`
}

// Judgment is the judge-side summary of a finished debate. Pure aggregation
// over persisted data; identical inputs always yield identical output.
type Judgment struct {
	ProTotal         int           `json:"pro_total"`
	ConTotal         int           `json:"con_total"`
	ProPenalized     int           `json:"pro_penalized"`
	ConPenalized     int           `json:"con_penalized"`
	Winner           models.Stance `json:"winner"`
	TurningRound     int           `json:"turning_round"` // 0 when no rounds scored
	WinningArguments []string      `json:"winning_arguments,omitempty"`
	FoulRecords      []FoulRecord  `json:"foul_records,omitempty"`
}

// ScoringEngine validates judge output and computes totals, penalties,
// winners and turning points.
type ScoringEngine struct {
	winThreshold float64
	log          *logrus.Logger
}

// NewScoringEngine creates a scoring engine. threshold <= 0 selects the
// default.
func NewScoringEngine(threshold float64, log *logrus.Logger) *ScoringEngine {
	if threshold <= 0 {
		threshold = DefaultWinThreshold
	}
	if log == nil {
		log = logrus.New()
	}
	return &ScoringEngine{winThreshold: threshold, log: log}
}

// WinThreshold returns the configured draw threshold.
func (e *ScoringEngine) WinThreshold() float64 { return e.winThreshold }

// rawJudgeScore accepts float dimensions so "8.5" survives decoding; values
// are clamped afterwards.
type rawJudgeScore struct {
	Logic    *float64 `json:"logic"`
	Rebuttal *float64 `json:"rebuttal"`
	Clarity  *float64 `json:"clarity"`
	Evidence *float64 `json:"evidence"`
	Comment  string   `json:"comment"`
	Fouls    []string `json:"fouls"`
}

// ParseJudgeScore decodes raw judge output. The second return value reports
// whether the output parsed; on failure the fixed neutral fallback is
// returned instead.
func (e *ScoringEngine) ParseJudgeScore(raw string) (JudgeScore, bool) {
	payload, ok := extractJSONObject(raw)
	if ok {
		var r rawJudgeScore
		if err := json.Unmarshal([]byte(payload), &r); err == nil &&
			r.Logic != nil && r.Rebuttal != nil && r.Clarity != nil && r.Evidence != nil {
			return JudgeScore{
				Logic:    clampDimension(*r.Logic),
				Rebuttal: clampDimension(*r.Rebuttal),
				Clarity:  clampDimension(*r.Clarity),
				Evidence: clampDimension(*r.Evidence),
				Comment:  r.Comment,
				Fouls:    r.Fouls,
			}, true
		}
	}

	e.log.WithField("raw_len", len(raw)).Warn("Judge output unparsable, applying neutral fallback score")
	return JudgeScore{
		Logic:    fallbackDimension,
		Rebuttal: fallbackDimension,
		Clarity:  fallbackDimension,
		Evidence: fallbackDimension,
		Comment:  "judge output could not be parsed; neutral score applied",
	}, false
}

// clampDimension rounds and clamps one dimension to the integer range [1,10].
func clampDimension(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// extractJSONObject returns the outermost {...} slice of raw, tolerating
// prose or code fences around the object.
func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// ApplyFoulPenalty deducts two points per foul from a score, never below 1.
func ApplyFoulPenalty(score, foulCount int) int {
	penalized := score - 2*foulCount
	if penalized < 1 {
		return 1
	}
	return penalized
}

// DetermineWinner compares two totals under the draw threshold.
func (e *ScoringEngine) DetermineWinner(proScore, conScore float64) models.Stance {
	if math.Abs(proScore-conScore) < e.winThreshold {
		return models.StanceDraw
	}
	if proScore > conScore {
		return models.StancePro
	}
	return models.StanceCon
}

// roundTotals holds penalized per-side totals for one round.
type roundTotals struct {
	sequence int
	pro      int
	con      int
}

// totalsBySequence folds scores into per-round penalized totals, ordered by
// round sequence. Rounds without scores contribute nothing.
func totalsBySequence(rounds []*models.Round, scores []*models.Score) []roundTotals {
	seqByRound := make(map[string]int, len(rounds))
	for _, r := range rounds {
		seqByRound[r.ID] = r.Sequence
	}

	bySeq := make(map[int]*roundTotals)
	for _, s := range scores {
		seq, ok := seqByRound[s.RoundID]
		if !ok {
			continue
		}
		rt := bySeq[seq]
		if rt == nil {
			rt = &roundTotals{sequence: seq}
			bySeq[seq] = rt
		}
		penalized := ApplyFoulPenalty(s.Total, len(s.Fouls))
		switch s.Stance {
		case models.StancePro:
			rt.pro += penalized
		case models.StanceCon:
			rt.con += penalized
		}
	}

	out := make([]roundTotals, 0, len(bySeq))
	for _, rt := range bySeq {
		out = append(out, *rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sequence < out[j].sequence })
	return out
}

// FindKeyTurningRound returns the sequence of the first round where
// cumulative leadership flips between pro and con. If leadership never flips
// it returns the round with the widest cumulative gap, or 0 when nothing is
// scored. Linear and deterministic.
func (e *ScoringEngine) FindKeyTurningRound(rounds []*models.Round, scores []*models.Score) int {
	totals := totalsBySequence(rounds, scores)
	if len(totals) == 0 {
		return 0
	}

	var cumPro, cumCon int
	prevLeader := models.Stance("")
	maxGap, maxGapSeq := -1, 0

	for _, rt := range totals {
		cumPro += rt.pro
		cumCon += rt.con

		leader := models.Stance("")
		if cumPro > cumCon {
			leader = models.StancePro
		} else if cumCon > cumPro {
			leader = models.StanceCon
		}

		if leader != "" && prevLeader != "" && leader != prevLeader {
			return rt.sequence
		}
		if leader != "" {
			prevLeader = leader
		}

		gap := cumPro - cumCon
		if gap < 0 {
			gap = -gap
		}
		if gap > maxGap {
			maxGap = gap
			maxGapSeq = rt.sequence
		}
	}
	return maxGapSeq
}

// ExtractWinningArguments returns excerpts of the winning side's strongest
// turns, ranked by that side's penalized round score. Deterministic: ties
// break toward the earlier round.
func (e *ScoringEngine) ExtractWinningArguments(winner models.Stance, rounds []*models.Round, scores []*models.Score, messages []*models.Message) []string {
	if winner != models.StancePro && winner != models.StanceCon {
		return nil
	}

	type scored struct {
		sequence int
		total    int
	}
	seqByRound := make(map[string]int, len(rounds))
	idBySeq := make(map[int]string, len(rounds))
	for _, r := range rounds {
		seqByRound[r.ID] = r.Sequence
		idBySeq[r.Sequence] = r.ID
	}

	var ranked []scored
	for _, s := range scores {
		if s.Stance != winner {
			continue
		}
		seq, ok := seqByRound[s.RoundID]
		if !ok {
			continue
		}
		ranked = append(ranked, scored{sequence: seq, total: ApplyFoulPenalty(s.Total, len(s.Fouls))})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].total != ranked[j].total {
			return ranked[i].total > ranked[j].total
		}
		return ranked[i].sequence < ranked[j].sequence
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}

	var args []string
	for _, r := range ranked {
		roundID := idBySeq[r.sequence]
		for _, m := range messages {
			if m.RoundID == roundID && m.Stance == winner {
				args = append(args, excerpt(m.Content, 240))
				break
			}
		}
	}
	return args
}

func excerpt(content string, limit int) string {
	content = strings.TrimSpace(content)
	if len(content) <= limit {
		return content
	}
	return content[:limit] + "..."
}

// CollectFoulRecords lists every flagged foul ordered by round sequence.
func (e *ScoringEngine) CollectFoulRecords(rounds []*models.Round, scores []*models.Score) []FoulRecord {
	seqByRound := make(map[string]int, len(rounds))
	for _, r := range rounds {
		seqByRound[r.ID] = r.Sequence
	}

	var records []FoulRecord
	for _, s := range scores {
		if len(s.Fouls) == 0 {
			continue
		}
		seq, ok := seqByRound[s.RoundID]
		if !ok {
			continue
		}
		records = append(records, FoulRecord{
			RoundSequence: seq,
			Stance:        s.Stance,
			AgentID:       s.AgentID,
			Fouls:         append([]string(nil), s.Fouls...),
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].RoundSequence != records[j].RoundSequence {
			return records[i].RoundSequence < records[j].RoundSequence
		}
		return records[i].AgentID < records[j].AgentID
	})
	return records
}

// GenerateFinalJudgment aggregates persisted rounds, scores and messages into
// the judge-side verdict. No provider calls; bit-identical on identical input.
func (e *ScoringEngine) GenerateFinalJudgment(rounds []*models.Round, scores []*models.Score, messages []*models.Message) *Judgment {
	var proTotal, conTotal, proPen, conPen int
	for _, s := range scores {
		penalized := ApplyFoulPenalty(s.Total, len(s.Fouls))
		switch s.Stance {
		case models.StancePro:
			proTotal += s.Total
			proPen += penalized
		case models.StanceCon:
			conTotal += s.Total
			conPen += penalized
		}
	}

	winner := e.DetermineWinner(float64(proPen), float64(conPen))
	return &Judgment{
		ProTotal:         proTotal,
		ConTotal:         conTotal,
		ProPenalized:     proPen,
		ConPenalized:     conPen,
		Winner:           winner,
		TurningRound:     e.FindKeyTurningRound(rounds, scores),
		WinningArguments: e.ExtractWinningArguments(winner, rounds, scores, messages),
		FoulRecords:      e.CollectFoulRecords(rounds, scores),
	}
}

// ScoreFromJudge materializes a persisted Score row from a validated verdict.
func ScoreFromJudge(roundID string, agentID string, stance models.Stance, js JudgeScore) *models.Score {
	return &models.Score{
		RoundID:  roundID,
		AgentID:  agentID,
		Stance:   stance,
		Logic:    js.Logic,
		Rebuttal: js.Rebuttal,
		Clarity:  js.Clarity,
		Evidence: js.Evidence,
		Total:    js.Total(),
		Comment:  js.Comment,
		Fouls:    js.Fouls,
	}
}

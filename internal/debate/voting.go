package debate

import (
	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// VoteTally aggregates audience ballots. Weighted sums add each ballot's
// confidence to its stance bucket, so a high-confidence ballot outweighs a
// hesitant one. Plain counts are retained for reporting.
type VoteTally struct {
	Pro         int     `json:"pro"`
	Con         int     `json:"con"`
	Draw        int     `json:"draw"`
	Total       int     `json:"total"`
	ProWeighted float64 `json:"pro_weighted"`
	ConWeighted float64 `json:"con_weighted"`
}

// WeightedResult is the combined judge/audience verdict.
type WeightedResult struct {
	JudgePro         float64       `json:"judge_pro"`
	JudgeCon         float64       `json:"judge_con"`
	AudienceSharePro float64       `json:"audience_share_pro"`
	AudienceShareCon float64       `json:"audience_share_con"`
	Scale            float64       `json:"scale"`
	JudgeWeight      float64       `json:"judge_weight"`
	AudienceWeight   float64       `json:"audience_weight"`
	FinalPro         float64       `json:"final_pro"`
	FinalCon         float64       `json:"final_con"`
	Winner           models.Stance `json:"winner"`
}

// VotingEngine aggregates ballots and combines them with judge totals.
type VotingEngine struct {
	// voteScale projects the audience share onto the judge score scale.
	// Zero or negative selects the combined judge total at combination time.
	voteScale float64
}

// NewVotingEngine creates a voting engine with the given normalization scale.
func NewVotingEngine(voteScale float64) *VotingEngine {
	return &VotingEngine{voteScale: voteScale}
}

// AggregateVotes folds ballots into a tally. Draw ballots count toward Total
// and Draw but carry no directional weight.
func (e *VotingEngine) AggregateVotes(votes []*models.Vote) VoteTally {
	var t VoteTally
	for _, v := range votes {
		t.Total++
		switch v.Stance {
		case models.StancePro:
			t.Pro++
			t.ProWeighted += v.Confidence
		case models.StanceCon:
			t.Con++
			t.ConWeighted += v.Confidence
		case models.StanceDraw:
			t.Draw++
		}
	}
	return t
}

// DetermineWinnerFromVotes compares the weighted buckets directly. Draw only
// on an exact tie; deliberately stricter than the judge's threshold.
func (e *VotingEngine) DetermineWinnerFromVotes(t VoteTally) models.Stance {
	switch {
	case t.ProWeighted > t.ConWeighted:
		return models.StancePro
	case t.ConWeighted > t.ProWeighted:
		return models.StanceCon
	default:
		return models.StanceDraw
	}
}

// AudienceShares collapses the tally to directional shares in [0,1]. With no
// directional weight at all (every ballot a draw, or no ballots) both sides
// get 0.5: the audience expressed no lean.
func (e *VotingEngine) AudienceShares(t VoteTally) (pro, con float64) {
	denom := t.ProWeighted + t.ConWeighted
	if denom == 0 {
		return 0.5, 0.5
	}
	return t.ProWeighted / denom, t.ConWeighted / denom
}

// CalculateWeightedResult combines judge totals with the audience tally:
//
//	final_pro = judgePro*judgeWeight + sharePro*scale*audienceWeight
//
// The audience share is projected onto the judge scale by the configured
// normalization constant so both terms are commensurable. The Winner field is
// left unset; the caller applies its tie-break policy.
func (e *VotingEngine) CalculateWeightedResult(judgePro, judgeCon float64, t VoteTally, judgeWeight, audienceWeight float64) WeightedResult {
	scale := e.voteScale
	if scale <= 0 {
		scale = judgePro + judgeCon
	}

	sharePro, shareCon := e.AudienceShares(t)
	return WeightedResult{
		JudgePro:         judgePro,
		JudgeCon:         judgeCon,
		AudienceSharePro: sharePro,
		AudienceShareCon: shareCon,
		Scale:            scale,
		JudgeWeight:      judgeWeight,
		AudienceWeight:   audienceWeight,
		FinalPro:         judgePro*judgeWeight + sharePro*scale*audienceWeight,
		FinalCon:         judgeCon*judgeWeight + shareCon*scale*audienceWeight,
	}
}

package debate

import (
	"context"

	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// DebateResult is the full verdict bundle for a debate. Judgment, Tally and
// Weighted are nil until the debate completes; callers render "judgment
// unavailable" for incomplete or failed debates.
type DebateResult struct {
	Debate   *models.Debate  `json:"debate"`
	Judgment *Judgment       `json:"judgment,omitempty"`
	Tally    *VoteTally      `json:"tally,omitempty"`
	Weighted *WeightedResult `json:"weighted,omitempty"`
}

// GetDebate returns one debate.
func (o *Orchestrator) GetDebate(ctx context.Context, id string) (*models.Debate, error) {
	return o.store.GetDebate(ctx, id)
}

// ListDebates returns all debates, newest first.
func (o *Orchestrator) ListDebates(ctx context.Context) ([]*models.Debate, error) {
	return o.store.ListDebates(ctx)
}

// DeleteDebate removes a debate and, by cascade, everything beneath it.
func (o *Orchestrator) DeleteDebate(ctx context.Context, id string) error {
	return o.store.DeleteDebate(ctx, id)
}

// GetAgents returns a debate's participants.
func (o *Orchestrator) GetAgents(ctx context.Context, debateID string) ([]*models.Agent, error) {
	return o.store.GetAgentsByDebate(ctx, debateID)
}

// GetRounds returns a debate's rounds in sequence order.
func (o *Orchestrator) GetRounds(ctx context.Context, debateID string) ([]*models.Round, error) {
	if _, err := o.store.GetDebate(ctx, debateID); err != nil {
		return nil, err
	}
	return o.store.GetRoundsByDebate(ctx, debateID)
}

// GetRoundMessages returns a round's messages in creation order.
func (o *Orchestrator) GetRoundMessages(ctx context.Context, roundID string) ([]*models.Message, error) {
	return o.store.GetMessagesByRound(ctx, roundID)
}

// GetRoundScores returns a round's scores.
func (o *Orchestrator) GetRoundScores(ctx context.Context, roundID string) ([]*models.Score, error) {
	return o.store.GetScoresByRound(ctx, roundID)
}

// GetDebateResult recomputes the full verdict from persisted data. Pure
// aggregation: calling it twice on identical data yields identical results.
// Incomplete debates get only the Debate field populated.
func (o *Orchestrator) GetDebateResult(ctx context.Context, debateID string) (*DebateResult, error) {
	debate, err := o.store.GetDebate(ctx, debateID)
	if err != nil {
		return nil, err
	}

	result := &DebateResult{Debate: debate}
	if debate.Status != models.DebateStatusCompleted {
		return result, nil
	}

	rounds, err := o.store.GetRoundsByDebate(ctx, debateID)
	if err != nil {
		return nil, err
	}
	scores, err := o.store.GetScoresByDebate(ctx, debateID)
	if err != nil {
		return nil, err
	}
	messages, err := o.store.GetMessagesByDebate(ctx, debateID)
	if err != nil {
		return nil, err
	}
	votes, err := o.store.GetVotesByDebate(ctx, debateID)
	if err != nil {
		return nil, err
	}

	result.Judgment = o.scoring.GenerateFinalJudgment(rounds, scores, messages)

	tally := o.voting.AggregateVotes(votes)
	result.Tally = &tally

	weighted := o.voting.CalculateWeightedResult(
		float64(result.Judgment.ProPenalized), float64(result.Judgment.ConPenalized),
		tally, debate.JudgeWeight, debate.AudienceWeight)
	weighted.Winner = o.scoring.DetermineWinner(weighted.FinalPro, weighted.FinalCon)
	result.Weighted = &weighted

	return result, nil
}

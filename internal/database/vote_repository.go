package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// CreateVote inserts a ballot. The unique (debate_id, agent_id) constraint
// enforces one ballot per audience agent; completed debates reject new
// ballots outright.
func (p *Postgres) CreateVote(ctx context.Context, vote *models.Vote) error {
	var status models.DebateStatus
	err := p.pool.QueryRow(ctx, `SELECT status FROM debates WHERE id = $1`, vote.DebateID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrDebateNotFound
		}
		return fmt.Errorf("failed to check debate status: %w", err)
	}
	if status == models.DebateStatusCompleted {
		return models.ErrVotesFrozen
	}

	query := `
		INSERT INTO votes (id, debate_id, agent_id, stance, confidence, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := p.pool.Exec(ctx, query,
		vote.ID, vote.DebateID, vote.AgentID, vote.Stance, vote.Confidence,
		vote.Reason, vote.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicateVote
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

// GetVotesByDebate returns a debate's ballots in creation order.
func (p *Postgres) GetVotesByDebate(ctx context.Context, debateID string) ([]*models.Vote, error) {
	query := `
		SELECT id, debate_id, agent_id, stance, confidence, reason, created_at
		FROM votes WHERE debate_id = $1 ORDER BY created_at ASC, id ASC
	`
	rows, err := p.pool.Query(ctx, query, debateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	var votes []*models.Vote
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.DebateID, &v.AgentID, &v.Stance,
			&v.Confidence, &v.Reason, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, &v)
	}
	return votes, rows.Err()
}

// CreateAudienceRequest inserts an audience request with its one-shot decision.
func (p *Postgres) CreateAudienceRequest(ctx context.Context, req *models.AudienceRequest) error {
	query := `
		INSERT INTO audience_requests (id, round_id, agent_id, intent, claim,
			novelty, confidence, approved, decided, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := p.pool.Exec(ctx, query,
		req.ID, req.RoundID, req.AgentID, req.Intent, req.Claim,
		req.Novelty, req.Confidence, req.Approved, req.Decided, req.Comment, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audience request: %w", err)
	}
	return nil
}

// GetAudienceRequestsByRound returns a round's audience requests.
func (p *Postgres) GetAudienceRequestsByRound(ctx context.Context, roundID string) ([]*models.AudienceRequest, error) {
	query := `
		SELECT id, round_id, agent_id, intent, claim, novelty, confidence,
			approved, decided, comment, created_at
		FROM audience_requests WHERE round_id = $1 ORDER BY created_at ASC, id ASC
	`
	rows, err := p.pool.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audience requests: %w", err)
	}
	defer rows.Close()

	var reqs []*models.AudienceRequest
	for rows.Next() {
		var r models.AudienceRequest
		if err := rows.Scan(&r.ID, &r.RoundID, &r.AgentID, &r.Intent, &r.Claim,
			&r.Novelty, &r.Confidence, &r.Approved, &r.Decided, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audience request: %w", err)
		}
		reqs = append(reqs, &r)
	}
	return reqs, rows.Err()
}

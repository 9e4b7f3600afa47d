package database

import (
	"context"
	"fmt"

	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// CreateAgent inserts an agent row.
func (p *Postgres) CreateAgent(ctx context.Context, agent *models.Agent) error {
	query := `
		INSERT INTO agents (id, debate_id, name, role, stance, model, style, audience_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := p.pool.Exec(ctx, query,
		agent.ID, agent.DebateID, agent.Name, agent.Role, agent.Stance,
		agent.Model, agent.Style, agent.AudienceType, agent.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert agent: %w", err)
	}
	return nil
}

// GetAgentsByDebate returns a debate's agents in creation order.
func (p *Postgres) GetAgentsByDebate(ctx context.Context, debateID string) ([]*models.Agent, error) {
	query := `
		SELECT id, debate_id, name, role, stance, model, style, audience_type, created_at
		FROM agents WHERE debate_id = $1 ORDER BY created_at ASC, id ASC
	`
	rows, err := p.pool.Query(ctx, query, debateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.DebateID, &a.Name, &a.Role, &a.Stance,
			&a.Model, &a.Style, &a.AudienceType, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, &a)
	}
	return agents, rows.Err()
}

// CreateRound inserts a round row. The unique (debate_id, sequence) constraint
// keeps sequences collision-free.
func (p *Postgres) CreateRound(ctx context.Context, round *models.Round) error {
	query := `
		INSERT INTO rounds (id, debate_id, sequence, phase, type, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := p.pool.Exec(ctx, query,
		round.ID, round.DebateID, round.Sequence, round.Phase, round.Type,
		round.StartedAt, round.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: round sequence %d already exists", models.ErrInvalidArgument, round.Sequence)
		}
		return fmt.Errorf("failed to insert round: %w", err)
	}
	return nil
}

// UpdateRound persists round phase/type/completion changes.
func (p *Postgres) UpdateRound(ctx context.Context, round *models.Round) error {
	query := `
		UPDATE rounds SET phase = $2, type = $3, completed_at = $4 WHERE id = $1
	`
	tag, err := p.pool.Exec(ctx, query, round.ID, round.Phase, round.Type, round.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrRoundNotFound
	}
	return nil
}

// GetRoundsByDebate returns a debate's rounds in sequence order.
func (p *Postgres) GetRoundsByDebate(ctx context.Context, debateID string) ([]*models.Round, error) {
	query := `
		SELECT id, debate_id, sequence, phase, type, started_at, completed_at
		FROM rounds WHERE debate_id = $1 ORDER BY sequence ASC
	`
	rows, err := p.pool.Query(ctx, query, debateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		var r models.Round
		if err := rows.Scan(&r.ID, &r.DebateID, &r.Sequence, &r.Phase, &r.Type,
			&r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, &r)
	}
	return rounds, rows.Err()
}

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

const debateColumns = `id, topic, pro_position, con_position, max_rounds,
	judge_weight, audience_weight, status, winner, failure_reason,
	created_at, updated_at, completed_at`

// CreateDebate inserts a new debate row.
func (p *Postgres) CreateDebate(ctx context.Context, debate *models.Debate) error {
	query := `
		INSERT INTO debates (` + debateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := p.pool.Exec(ctx, query,
		debate.ID, debate.Topic, debate.ProPosition, debate.ConPosition, debate.MaxRounds,
		debate.JudgeWeight, debate.AudienceWeight, debate.Status, debate.Winner, debate.FailureReason,
		debate.CreatedAt, debate.UpdatedAt, debate.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert debate: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"debate_id": debate.ID,
		"topic":     debate.Topic,
	}).Debug("Debate inserted")
	return nil
}

// GetDebate retrieves a debate by ID.
func (p *Postgres) GetDebate(ctx context.Context, id string) (*models.Debate, error) {
	query := `SELECT ` + debateColumns + ` FROM debates WHERE id = $1`
	row := p.pool.QueryRow(ctx, query, id)

	var d models.Debate
	err := row.Scan(
		&d.ID, &d.Topic, &d.ProPosition, &d.ConPosition, &d.MaxRounds,
		&d.JudgeWeight, &d.AudienceWeight, &d.Status, &d.Winner, &d.FailureReason,
		&d.CreatedAt, &d.UpdatedAt, &d.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDebateNotFound
		}
		return nil, fmt.Errorf("failed to get debate: %w", err)
	}
	return &d, nil
}

// UpdateDebate persists mutable debate fields and bumps updated_at.
func (p *Postgres) UpdateDebate(ctx context.Context, debate *models.Debate) error {
	debate.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE debates
		SET status = $2, winner = $3, failure_reason = $4, updated_at = $5, completed_at = $6
		WHERE id = $1
	`
	tag, err := p.pool.Exec(ctx, query,
		debate.ID, debate.Status, debate.Winner, debate.FailureReason,
		debate.UpdatedAt, debate.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update debate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDebateNotFound
	}
	return nil
}

// DeleteDebate removes a debate; the schema cascades to all child rows.
func (p *Postgres) DeleteDebate(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM debates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete debate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDebateNotFound
	}
	p.log.WithField("debate_id", id).Info("Debate deleted")
	return nil
}

// ListDebates returns all debates, newest first.
func (p *Postgres) ListDebates(ctx context.Context) ([]*models.Debate, error) {
	query := `SELECT ` + debateColumns + ` FROM debates ORDER BY created_at DESC`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list debates: %w", err)
	}
	defer rows.Close()

	var debates []*models.Debate
	for rows.Next() {
		var d models.Debate
		if err := rows.Scan(
			&d.ID, &d.Topic, &d.ProPosition, &d.ConPosition, &d.MaxRounds,
			&d.JudgeWeight, &d.AudienceWeight, &d.Status, &d.Winner, &d.FailureReason,
			&d.CreatedAt, &d.UpdatedAt, &d.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan debate: %w", err)
		}
		debates = append(debates, &d)
	}
	return debates, rows.Err()
}

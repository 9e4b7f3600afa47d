package database

import (
	"context"
	"fmt"

	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// CreateMessage inserts a message row.
func (p *Postgres) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, round_id, agent_id, stance, content, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := p.pool.Exec(ctx, query,
		msg.ID, msg.RoundID, msg.AgentID, msg.Stance, msg.Content, msg.TokenCount, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetMessagesByRound returns a round's messages in creation order.
func (p *Postgres) GetMessagesByRound(ctx context.Context, roundID string) ([]*models.Message, error) {
	query := `
		SELECT id, round_id, agent_id, stance, content, token_count, created_at
		FROM messages WHERE round_id = $1 ORDER BY created_at ASC, id ASC
	`
	rows, err := p.pool.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetMessagesByDebate returns all messages of a debate ordered by round
// sequence, then creation time.
func (p *Postgres) GetMessagesByDebate(ctx context.Context, debateID string) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.round_id, m.agent_id, m.stance, m.content, m.token_count, m.created_at
		FROM messages m
		JOIN rounds r ON r.id = m.round_id
		WHERE r.debate_id = $1
		ORDER BY r.sequence ASC, m.created_at ASC, m.id ASC
	`
	rows, err := p.pool.Query(ctx, query, debateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query debate messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanMessages(rows pgxRows) ([]*models.Message, error) {
	var msgs []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.RoundID, &m.AgentID, &m.Stance,
			&m.Content, &m.TokenCount, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

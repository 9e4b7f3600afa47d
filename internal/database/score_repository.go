package database

import (
	"context"
	"fmt"

	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// CreateScore inserts a score row. One score per (round, agent).
func (p *Postgres) CreateScore(ctx context.Context, score *models.Score) error {
	query := `
		INSERT INTO scores (id, round_id, agent_id, stance, logic, rebuttal, clarity,
			evidence, total, comment, fouls, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	fouls := score.Fouls
	if fouls == nil {
		fouls = []string{}
	}
	_, err := p.pool.Exec(ctx, query,
		score.ID, score.RoundID, score.AgentID, score.Stance,
		score.Logic, score.Rebuttal, score.Clarity, score.Evidence,
		score.Total, score.Comment, fouls, score.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: score already recorded for agent %s in round %s",
				models.ErrInvalidArgument, score.AgentID, score.RoundID)
		}
		return fmt.Errorf("failed to insert score: %w", err)
	}
	return nil
}

// GetScoresByRound returns a round's scores.
func (p *Postgres) GetScoresByRound(ctx context.Context, roundID string) ([]*models.Score, error) {
	query := `
		SELECT id, round_id, agent_id, stance, logic, rebuttal, clarity,
			evidence, total, comment, fouls, created_at
		FROM scores WHERE round_id = $1 ORDER BY created_at ASC, id ASC
	`
	rows, err := p.pool.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()
	return scanScores(rows)
}

// GetScoresByDebate returns all scores of a debate ordered by round sequence.
func (p *Postgres) GetScoresByDebate(ctx context.Context, debateID string) ([]*models.Score, error) {
	query := `
		SELECT s.id, s.round_id, s.agent_id, s.stance, s.logic, s.rebuttal, s.clarity,
			s.evidence, s.total, s.comment, s.fouls, s.created_at
		FROM scores s
		JOIN rounds r ON r.id = s.round_id
		WHERE r.debate_id = $1
		ORDER BY r.sequence ASC, s.created_at ASC, s.id ASC
	`
	rows, err := p.pool.Query(ctx, query, debateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query debate scores: %w", err)
	}
	defer rows.Close()
	return scanScores(rows)
}

func scanScores(rows pgxRows) ([]*models.Score, error) {
	var scores []*models.Score
	for rows.Next() {
		var s models.Score
		if err := rows.Scan(&s.ID, &s.RoundID, &s.AgentID, &s.Stance,
			&s.Logic, &s.Rebuttal, &s.Clarity, &s.Evidence,
			&s.Total, &s.Comment, &s.Fouls, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, &s)
	}
	return scores, rows.Err()
}

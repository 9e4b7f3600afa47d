// Package database provides debate persistence: a PostgreSQL store backed by
// pgx and an in-memory store for standalone and test use.
package database

import (
	"context"

	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// Store is the persistence contract the debate engine depends on. Both
// implementations guarantee cascade delete from Debate downward and surface
// uniqueness violations as the sentinel errors in models.
type Store interface {
	CreateDebate(ctx context.Context, debate *models.Debate) error
	GetDebate(ctx context.Context, id string) (*models.Debate, error)
	UpdateDebate(ctx context.Context, debate *models.Debate) error
	DeleteDebate(ctx context.Context, id string) error
	ListDebates(ctx context.Context) ([]*models.Debate, error)

	CreateAgent(ctx context.Context, agent *models.Agent) error
	GetAgentsByDebate(ctx context.Context, debateID string) ([]*models.Agent, error)

	CreateRound(ctx context.Context, round *models.Round) error
	UpdateRound(ctx context.Context, round *models.Round) error
	GetRoundsByDebate(ctx context.Context, debateID string) ([]*models.Round, error)

	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessagesByRound(ctx context.Context, roundID string) ([]*models.Message, error)
	GetMessagesByDebate(ctx context.Context, debateID string) ([]*models.Message, error)

	CreateScore(ctx context.Context, score *models.Score) error
	GetScoresByRound(ctx context.Context, roundID string) ([]*models.Score, error)
	GetScoresByDebate(ctx context.Context, debateID string) ([]*models.Score, error)

	CreateAudienceRequest(ctx context.Context, req *models.AudienceRequest) error
	GetAudienceRequestsByRound(ctx context.Context, roundID string) ([]*models.AudienceRequest, error)

	CreateVote(ctx context.Context, vote *models.Vote) error
	GetVotesByDebate(ctx context.Context, debateID string) ([]*models.Vote, error)
}

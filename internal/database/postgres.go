package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/bossandy123/debate-agents-sub001/internal/config"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewPostgres connects to the configured database and verifies the connection.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logrus.Logger) (*Postgres, error) {
	if log == nil {
		log = logrus.New()
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.WithField("database", cfg.Name).Info("Connected to PostgreSQL")
	return &Postgres{pool: pool, log: log}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Migrate creates the schema if it does not exist. Cascade deletes hang off
// the debates table so removing a debate removes everything beneath it.
func (p *Postgres) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS debates (
			id VARCHAR(64) PRIMARY KEY,
			topic TEXT NOT NULL,
			pro_position TEXT NOT NULL,
			con_position TEXT NOT NULL,
			max_rounds INT NOT NULL,
			judge_weight DOUBLE PRECISION NOT NULL,
			audience_weight DOUBLE PRECISION NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			winner VARCHAR(10) NOT NULL DEFAULT '',
			failure_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMP WITH TIME ZONE
		);

		CREATE TABLE IF NOT EXISTS agents (
			id VARCHAR(64) PRIMARY KEY,
			debate_id VARCHAR(64) NOT NULL REFERENCES debates(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			role VARCHAR(20) NOT NULL,
			stance VARCHAR(10) NOT NULL DEFAULT '',
			model TEXT NOT NULL,
			style TEXT NOT NULL DEFAULT '',
			audience_type TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS rounds (
			id VARCHAR(64) PRIMARY KEY,
			debate_id VARCHAR(64) NOT NULL REFERENCES debates(id) ON DELETE CASCADE,
			sequence INT NOT NULL,
			phase VARCHAR(20) NOT NULL,
			type VARCHAR(20) NOT NULL,
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			completed_at TIMESTAMP WITH TIME ZONE,
			UNIQUE (debate_id, sequence)
		);

		CREATE TABLE IF NOT EXISTS messages (
			id VARCHAR(64) PRIMARY KEY,
			round_id VARCHAR(64) NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
			agent_id VARCHAR(64) NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			stance VARCHAR(10) NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			token_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS scores (
			id VARCHAR(64) PRIMARY KEY,
			round_id VARCHAR(64) NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
			agent_id VARCHAR(64) NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			stance VARCHAR(10) NOT NULL,
			logic INT NOT NULL,
			rebuttal INT NOT NULL,
			clarity INT NOT NULL,
			evidence INT NOT NULL,
			total INT NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			fouls TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			UNIQUE (round_id, agent_id)
		);

		CREATE TABLE IF NOT EXISTS audience_requests (
			id VARCHAR(64) PRIMARY KEY,
			round_id VARCHAR(64) NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
			agent_id VARCHAR(64) NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			intent TEXT NOT NULL,
			claim TEXT NOT NULL,
			novelty DOUBLE PRECISION NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			approved BOOLEAN NOT NULL DEFAULT FALSE,
			decided BOOLEAN NOT NULL DEFAULT FALSE,
			comment TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS votes (
			id VARCHAR(64) PRIMARY KEY,
			debate_id VARCHAR(64) NOT NULL REFERENCES debates(id) ON DELETE CASCADE,
			agent_id VARCHAR(64) NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			stance VARCHAR(10) NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			UNIQUE (debate_id, agent_id)
		);

		CREATE INDEX IF NOT EXISTS idx_rounds_debate_id ON rounds(debate_id);
		CREATE INDEX IF NOT EXISTS idx_messages_round_id ON messages(round_id);
		CREATE INDEX IF NOT EXISTS idx_scores_round_id ON scores(round_id);
		CREATE INDEX IF NOT EXISTS idx_votes_debate_id ON votes(debate_id);
		CREATE INDEX IF NOT EXISTS idx_audience_requests_round_id ON audience_requests(round_id);
	`

	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	p.log.Info("Database schema created/verified")
	return nil
}

// isUniqueViolation reports a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

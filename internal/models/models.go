// Package models defines the persistent entities of the debate system:
// debates, agents, rounds, messages, scores, votes and audience requests.
package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// DebateStatus is the lifecycle state of a debate.
type DebateStatus string

const (
	DebateStatusPending   DebateStatus = "pending"
	DebateStatusRunning   DebateStatus = "running"
	DebateStatusCompleted DebateStatus = "completed"
	DebateStatusFailed    DebateStatus = "failed"
)

// Stance is a debater's assigned position.
type Stance string

const (
	StancePro  Stance = "pro"
	StanceCon  Stance = "con"
	StanceDraw Stance = "draw" // verdicts and ballots only, never a debater
)

// AgentRole identifies what an agent does in a debate.
type AgentRole string

const (
	RoleDebater   AgentRole = "debater"
	RoleJudge     AgentRole = "judge"
	RoleAudience  AgentRole = "audience"
	RoleModerator AgentRole = "moderator"
)

// RoundPhase is the rhetorical period a round belongs to.
type RoundPhase string

const (
	PhaseOpening  RoundPhase = "opening"
	PhaseRebuttal RoundPhase = "rebuttal"
	PhaseClosing  RoundPhase = "closing"
)

// RoundType distinguishes ordinary rounds from special ones.
type RoundType string

const (
	RoundTypeStandard        RoundType = "standard"
	RoundTypeAudienceRequest RoundType = "audience_request"
	RoundTypeFinale          RoundType = "finale"
)

const (
	// MinRounds and MaxRounds bound Debate.MaxRounds.
	MinRounds = 1
	MaxRounds = 20

	// WeightTolerance is how far judge_weight+audience_weight may drift from 1.
	WeightTolerance = 0.01

	// AudienceWindowStart and AudienceWindowEnd bound the round sequences in
	// which audience requests may be raised and approved.
	AudienceWindowStart = 3
	AudienceWindowEnd   = 6
)

// Sentinel errors shared across the repository implementations and the
// orchestrator. Callers match with errors.Is.
var (
	ErrDebateNotFound  = errors.New("debate not found")
	ErrRoundNotFound   = errors.New("round not found")
	ErrAlreadyStarted  = errors.New("debate already started")
	ErrDebateFinished  = errors.New("debate already finished")
	ErrDuplicateVote   = errors.New("vote already cast for this agent")
	ErrVotesFrozen     = errors.New("votes are immutable once the debate completed")
	ErrOutsideWindow   = errors.New("round outside the audience request window")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Debate is the root aggregate.
type Debate struct {
	ID             string       `json:"id" db:"id"`
	Topic          string       `json:"topic" db:"topic"`
	ProPosition    string       `json:"pro_position" db:"pro_position"`
	ConPosition    string       `json:"con_position" db:"con_position"`
	MaxRounds      int          `json:"max_rounds" db:"max_rounds"`
	JudgeWeight    float64      `json:"judge_weight" db:"judge_weight"`
	AudienceWeight float64      `json:"audience_weight" db:"audience_weight"`
	Status         DebateStatus `json:"status" db:"status"`
	Winner         Stance       `json:"winner,omitempty" db:"winner"`
	FailureReason  string       `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
}

// Agent is a debate participant. Immutable once the debate starts.
type Agent struct {
	ID           string    `json:"id" db:"id"`
	DebateID     string    `json:"debate_id" db:"debate_id"`
	Name         string    `json:"name" db:"name"`
	Role         AgentRole `json:"role" db:"role"`
	Stance       Stance    `json:"stance,omitempty" db:"stance"` // debaters only
	Model        string    `json:"model" db:"model"`             // opaque provider binding
	Style        string    `json:"style,omitempty" db:"style"`
	AudienceType string    `json:"audience_type,omitempty" db:"audience_type"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Round is one exchange in a debate. Sequences are 1-based and contiguous.
type Round struct {
	ID          string     `json:"id" db:"id"`
	DebateID    string     `json:"debate_id" db:"debate_id"`
	Sequence    int        `json:"sequence" db:"sequence"`
	Phase       RoundPhase `json:"phase" db:"phase"`
	Type        RoundType  `json:"type" db:"type"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Message is a single agent turn within a round.
type Message struct {
	ID         string    `json:"id" db:"id"`
	RoundID    string    `json:"round_id" db:"round_id"`
	AgentID    string    `json:"agent_id" db:"agent_id"`
	Stance     Stance    `json:"stance,omitempty" db:"stance"` // carried explicitly, never inferred
	Content    string    `json:"content" db:"content"`
	TokenCount int       `json:"token_count" db:"token_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Score is the judge's verdict on one agent's performance in one round.
type Score struct {
	ID        string    `json:"id" db:"id"`
	RoundID   string    `json:"round_id" db:"round_id"`
	AgentID   string    `json:"agent_id" db:"agent_id"`
	Stance    Stance    `json:"stance" db:"stance"`
	Logic     int       `json:"logic" db:"logic"`
	Rebuttal  int       `json:"rebuttal" db:"rebuttal"`
	Clarity   int       `json:"clarity" db:"clarity"`
	Evidence  int       `json:"evidence" db:"evidence"`
	Total     int       `json:"total" db:"total"`
	Comment   string    `json:"comment,omitempty" db:"comment"`
	Fouls     []string  `json:"fouls,omitempty" db:"fouls"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AudienceRequest is an observer's bid to inject a turn into a round.
// Approved and Comment are set exactly once and never re-evaluated.
type AudienceRequest struct {
	ID         string    `json:"id" db:"id"`
	RoundID    string    `json:"round_id" db:"round_id"`
	AgentID    string    `json:"agent_id" db:"agent_id"`
	Intent     string    `json:"intent" db:"intent"`
	Claim      string    `json:"claim" db:"claim"`
	Novelty    float64   `json:"novelty" db:"novelty"`
	Confidence float64   `json:"confidence" db:"confidence"`
	Approved   bool      `json:"approved" db:"approved"`
	Decided    bool      `json:"decided" db:"decided"`
	Comment    string    `json:"comment,omitempty" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Vote is one audience agent's ballot. Unique per (agent, debate).
type Vote struct {
	ID         string    `json:"id" db:"id"`
	DebateID   string    `json:"debate_id" db:"debate_id"`
	AgentID    string    `json:"agent_id" db:"agent_id"`
	Stance     Stance    `json:"stance" db:"stance"`
	Confidence float64   `json:"confidence" db:"confidence"`
	Reason     string    `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// NewDebate builds a pending debate with generated ID and timestamps.
func NewDebate(topic, proPosition, conPosition string, maxRounds int, judgeWeight, audienceWeight float64) (*Debate, error) {
	d := &Debate{
		ID:             uuid.New().String(),
		Topic:          topic,
		ProPosition:    proPosition,
		ConPosition:    conPosition,
		MaxRounds:      maxRounds,
		JudgeWeight:    judgeWeight,
		AudienceWeight: audienceWeight,
		Status:         DebateStatusPending,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate rejects malformed debates before any mutation happens.
func (d *Debate) Validate() error {
	if d.Topic == "" {
		return fmt.Errorf("%w: topic must not be empty", ErrInvalidArgument)
	}
	if d.MaxRounds < MinRounds || d.MaxRounds > MaxRounds {
		return fmt.Errorf("%w: max_rounds %d outside [%d,%d]", ErrInvalidArgument, d.MaxRounds, MinRounds, MaxRounds)
	}
	if d.JudgeWeight < 0 || d.AudienceWeight < 0 {
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidArgument)
	}
	if math.Abs(d.JudgeWeight+d.AudienceWeight-1.0) > WeightTolerance {
		return fmt.Errorf("%w: judge_weight %.3f + audience_weight %.3f must sum to 1.0 (±%.2f)",
			ErrInvalidArgument, d.JudgeWeight, d.AudienceWeight, WeightTolerance)
	}
	return nil
}

// Terminal reports whether the debate reached a final state.
func (d *Debate) Terminal() bool {
	return d.Status == DebateStatusCompleted || d.Status == DebateStatusFailed
}

// Validate rejects malformed agents.
func (a *Agent) Validate() error {
	switch a.Role {
	case RoleDebater:
		if a.Stance != StancePro && a.Stance != StanceCon {
			return fmt.Errorf("%w: debater stance must be pro or con, got %q", ErrInvalidArgument, a.Stance)
		}
	case RoleJudge, RoleAudience, RoleModerator:
		if a.Stance != "" {
			return fmt.Errorf("%w: role %s must not carry a stance", ErrInvalidArgument, a.Role)
		}
	default:
		return fmt.Errorf("%w: unknown agent role %q", ErrInvalidArgument, a.Role)
	}
	if a.Model == "" {
		return fmt.Errorf("%w: agent model binding must not be empty", ErrInvalidArgument)
	}
	return nil
}

// InAudienceWindow reports whether a round sequence may carry audience requests.
func InAudienceWindow(sequence int) bool {
	return sequence >= AudienceWindowStart && sequence <= AudienceWindowEnd
}

// DerivePhase maps a round sequence onto its rhetorical phase. Pure.
func DerivePhase(sequence, maxRounds int) RoundPhase {
	switch {
	case sequence <= 2:
		return PhaseOpening
	case sequence < maxRounds:
		return PhaseRebuttal
	default:
		return PhaseClosing
	}
}

// EstimateTokens is the message token estimate recorded alongside content.
// A rough 4-chars-per-token heuristic; the provider does not report usage.
func EstimateTokens(content string) int {
	return (len(content) + 3) / 4
}

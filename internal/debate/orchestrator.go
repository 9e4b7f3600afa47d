package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bossandy123/debate-agents-sub001/internal/database"
	"github.com/bossandy123/debate-agents-sub001/internal/events"
	"github.com/bossandy123/debate-agents-sub001/internal/llm"
	"github.com/bossandy123/debate-agents-sub001/internal/metrics"
	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// Orchestrator drives debates through their state machine: pending → running
// → completed|failed. One logical worker per debate executes rounds strictly
// sequentially; distinct debates share no mutable state beyond the store.
type Orchestrator struct {
	store    database.Store
	provider llm.ReasoningProvider
	bus      *events.Bus
	scoring  *ScoringEngine
	voting   *VotingEngine
	log      *logrus.Logger

	// voteConcurrency bounds in-flight audience vote calls.
	voteConcurrency int

	// starting guards the pending→running transition against double-start
	// races before the status write lands.
	starting sync.Map
}

// Options tunes an orchestrator.
type Options struct {
	WinThreshold    float64
	VoteScale       float64
	VoteConcurrency int
}

// NewOrchestrator wires an orchestrator with injected collaborators.
func NewOrchestrator(store database.Store, provider llm.ReasoningProvider, bus *events.Bus, opts Options, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.New()
	}
	if opts.VoteConcurrency <= 0 {
		opts.VoteConcurrency = 3
	}
	return &Orchestrator{
		store:           store,
		provider:        provider,
		bus:             bus,
		scoring:         NewScoringEngine(opts.WinThreshold, log),
		voting:          NewVotingEngine(opts.VoteScale),
		log:             log,
		voteConcurrency: opts.VoteConcurrency,
	}
}

// Scoring exposes the scoring engine for report generation.
func (o *Orchestrator) Scoring() *ScoringEngine { return o.scoring }

// Voting exposes the voting engine for report generation.
func (o *Orchestrator) Voting() *VotingEngine { return o.voting }

// CreateDebate validates and persists a debate with its agents.
func (o *Orchestrator) CreateDebate(ctx context.Context, debate *models.Debate, agents []*models.Agent) error {
	if err := debate.Validate(); err != nil {
		return err
	}
	for _, a := range agents {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	if err := o.store.CreateDebate(ctx, debate); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, a := range agents {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.DebateID = debate.ID
		a.CreatedAt = now
		now = now.Add(time.Microsecond) // stable creation order
		if err := o.store.CreateAgent(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Start moves a pending debate to running and launches its worker. Rejects
// without mutation when the debate already started or finished.
func (o *Orchestrator) Start(ctx context.Context, debateID string) error {
	if _, loaded := o.starting.LoadOrStore(debateID, struct{}{}); loaded {
		return models.ErrAlreadyStarted
	}

	debate, err := o.store.GetDebate(ctx, debateID)
	if err != nil {
		o.starting.Delete(debateID)
		return err
	}
	switch debate.Status {
	case models.DebateStatusPending:
	case models.DebateStatusRunning:
		o.starting.Delete(debateID)
		return models.ErrAlreadyStarted
	default:
		o.starting.Delete(debateID)
		return models.ErrDebateFinished
	}

	debate.Status = models.DebateStatusRunning
	if err := o.store.UpdateDebate(ctx, debate); err != nil {
		o.starting.Delete(debateID)
		return err
	}
	metrics.DebatesStarted.Inc()

	// The worker outlives the HTTP request that started it.
	go func() {
		defer o.starting.Delete(debateID)
		o.run(context.Background(), debate)
	}()
	return nil
}

// roster is the cast of one debate.
type roster struct {
	pro      *models.Agent
	con      *models.Agent
	judge    *models.Agent
	audience []*models.Agent
}

func buildRoster(agents []*models.Agent) (*roster, error) {
	r := &roster{}
	for _, a := range agents {
		switch {
		case a.Role == models.RoleDebater && a.Stance == models.StancePro:
			r.pro = a
		case a.Role == models.RoleDebater && a.Stance == models.StanceCon:
			r.con = a
		case a.Role == models.RoleJudge:
			r.judge = a
		case a.Role == models.RoleAudience:
			r.audience = append(r.audience, a)
		}
	}
	if r.pro == nil || r.con == nil {
		return nil, fmt.Errorf("%w: debate needs a pro and a con debater", models.ErrInvalidArgument)
	}
	if r.judge == nil {
		return nil, fmt.Errorf("%w: debate needs a judge", models.ErrInvalidArgument)
	}
	return r, nil
}

// run executes the whole debate. Any unrecoverable error fails the debate
// with the captured reason; partial data stays queryable.
func (o *Orchestrator) run(ctx context.Context, debate *models.Debate) {
	defer o.bus.Release(debate.ID)

	agents, err := o.store.GetAgentsByDebate(ctx, debate.ID)
	if err != nil {
		o.fail(ctx, debate, fmt.Errorf("loading agents: %w", err))
		return
	}
	cast, err := buildRoster(agents)
	if err != nil {
		o.fail(ctx, debate, err)
		return
	}

	arbiter := NewArbiter(o.store, o.provider, o.log)
	var history []historyTurn

	for seq := 1; seq <= debate.MaxRounds; seq++ {
		if err := o.runRound(ctx, debate, cast, arbiter, seq, &history); err != nil {
			o.fail(ctx, debate, err)
			return
		}
		metrics.RoundsCompleted.Inc()
	}

	if err := o.finish(ctx, debate, cast, history); err != nil {
		o.fail(ctx, debate, err)
	}
}

// runRound executes one full round: pro turn, con turn, arbitration window,
// judge scoring, completion.
func (o *Orchestrator) runRound(ctx context.Context, debate *models.Debate, cast *roster, arbiter *Arbiter, seq int, history *[]historyTurn) error {
	round := &models.Round{
		ID:        uuid.New().String(),
		DebateID:  debate.ID,
		Sequence:  seq,
		Phase:     models.DerivePhase(seq, debate.MaxRounds),
		Type:      models.RoundTypeStandard,
		StartedAt: time.Now().UTC(),
	}
	if seq == debate.MaxRounds {
		round.Type = models.RoundTypeFinale
	}
	if err := o.store.CreateRound(ctx, round); err != nil {
		return fmt.Errorf("creating round %d: %w", seq, err)
	}
	o.bus.Broadcast(debate.ID, events.New(debate.ID, events.EventRoundStart, map[string]any{
		"round_id": round.ID,
		"sequence": seq,
		"phase":    round.Phase,
	}))

	// Pro speaks first; con sees pro's finished message. Sequential by rule.
	proMsg, err := o.debaterTurn(ctx, debate, cast.pro, round, *history)
	if err != nil {
		return err
	}
	*history = append(*history, historyTurn{Label: stanceLabel(models.StancePro), Speaker: cast.pro.Name, Content: proMsg.Content})

	conMsg, err := o.debaterTurn(ctx, debate, cast.con, round, *history)
	if err != nil {
		return err
	}
	*history = append(*history, historyTurn{Label: stanceLabel(models.StanceCon), Speaker: cast.con.Name, Content: conMsg.Content})

	// Audience window. Provider trouble degrades to silence inside the
	// arbiter; a persistence failure aborts the round like any other.
	if models.InAudienceWindow(seq) {
		approved, err := arbiter.Arbitrate(ctx, debate, round, cast.judge, cast.audience, *history)
		if err != nil {
			return fmt.Errorf("audience arbitration in round %d: %w", seq, err)
		}
		if approved != nil {
			round.Type = models.RoundTypeAudienceRequest
			if err := o.store.UpdateRound(ctx, round); err != nil {
				return fmt.Errorf("updating round type: %w", err)
			}
			if err := o.recordAudienceTurn(ctx, round, approved, history); err != nil {
				return err
			}
		}
	}

	if err := o.scoreRound(ctx, debate, cast, round, proMsg, conMsg, *history); err != nil {
		return err
	}

	now := time.Now().UTC()
	round.CompletedAt = &now
	if err := o.store.UpdateRound(ctx, round); err != nil {
		return fmt.Errorf("completing round %d: %w", seq, err)
	}
	o.bus.Broadcast(debate.ID, events.New(debate.ID, events.EventRoundEnd, map[string]any{
		"round_id": round.ID,
		"sequence": seq,
	}))
	return nil
}

// debaterTurn streams one debater's generation, emitting token events, and
// persists the finished message.
func (o *Orchestrator) debaterTurn(ctx context.Context, debate *models.Debate, agent *models.Agent, round *models.Round, history []historyTurn) (*models.Message, error) {
	o.bus.Broadcast(debate.ID, events.New(debate.ID, events.EventAgentStart, map[string]any{
		"agent_id": agent.ID,
		"stance":   agent.Stance,
		"round_id": round.ID,
	}))

	stream, err := o.provider.GenerateStream(ctx, debaterRequest(debate, agent, round, history))
	if err != nil {
		metrics.ProviderFailures.WithLabelValues("generate").Inc()
		return nil, fmt.Errorf("generation for %s debater: %w", agent.Stance, err)
	}

	var sb strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			metrics.ProviderFailures.WithLabelValues("generate").Inc()
			return nil, fmt.Errorf("generation stream for %s debater: %w", agent.Stance, chunk.Err)
		}
		if chunk.Content != "" {
			sb.WriteString(chunk.Content)
			o.bus.Broadcast(debate.ID, events.New(debate.ID, events.EventToken, map[string]any{
				"agent_id": agent.ID,
				"content":  chunk.Content,
			}))
		}
		if chunk.Done {
			break
		}
	}

	content := sb.String()
	msg := &models.Message{
		ID:         uuid.New().String(),
		RoundID:    round.ID,
		AgentID:    agent.ID,
		Stance:     agent.Stance,
		Content:    content,
		TokenCount: models.EstimateTokens(content),
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persisting %s message: %w", agent.Stance, err)
	}

	o.bus.Broadcast(debate.ID, events.New(debate.ID, events.EventAgentEnd, map[string]any{
		"agent_id":   agent.ID,
		"message_id": msg.ID,
		"tokens":     msg.TokenCount,
	}))
	return msg, nil
}

// recordAudienceTurn persists the approved interjection as a message and
// appends it to the history seen by the judge and later rounds.
func (o *Orchestrator) recordAudienceTurn(ctx context.Context, round *models.Round, req *models.AudienceRequest, history *[]historyTurn) error {
	msg := &models.Message{
		ID:         uuid.New().String(),
		RoundID:    round.ID,
		AgentID:    req.AgentID,
		Content:    req.Claim,
		TokenCount: models.EstimateTokens(req.Claim),
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.store.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("persisting audience message: %w", err)
	}
	*history = append(*history, historyTurn{Label: "AUDIENCE", Content: req.Claim})
	return nil
}

// scoreRound runs both judge calls concurrently; they are independent. A
// provider failure aborts the round; unparsable output degrades to the
// neutral fallback.
func (o *Orchestrator) scoreRound(ctx context.Context, debate *models.Debate, cast *roster, round *models.Round, proMsg, conMsg *models.Message, history []historyTurn) error {
	type target struct {
		msg    *models.Message
		stance models.Stance
	}
	targets := []target{
		{msg: proMsg, stance: models.StancePro},
		{msg: conMsg, stance: models.StanceCon},
	}

	verdicts := make([]JudgeScore, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			raw, err := o.provider.ScoreRound(gctx, judgeScoreRequest(debate, cast.judge, round, t.stance, t.msg.Content, history))
			if err != nil {
				metrics.ProviderFailures.WithLabelValues("score_round").Inc()
				return fmt.Errorf("judge scoring %s side: %w", t.stance, err)
			}
			verdict, parsed := o.scoring.ParseJudgeScore(raw)
			if !parsed {
				metrics.ScoreFallbacks.Inc()
			}
			verdicts[i] = verdict
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	now := time.Now().UTC()
	for i, t := range targets {
		score := ScoreFromJudge(round.ID, t.msg.AgentID, t.stance, verdicts[i])
		score.ID = uuid.New().String()
		score.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		if err := o.store.CreateScore(ctx, score); err != nil {
			return fmt.Errorf("persisting %s score: %w", t.stance, err)
		}
		o.bus.Broadcast(debate.ID, events.New(debate.ID, events.EventScoreUpdate, map[string]any{
			"round_id": round.ID,
			"stance":   t.stance,
			"total":    score.Total,
			"fouls":    len(score.Fouls),
		}))
	}
	return nil
}

type ballot struct {
	Stance     string  `json:"stance"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// finish collects audience votes, computes the weighted verdict and
// completes the debate.
func (o *Orchestrator) finish(ctx context.Context, debate *models.Debate, cast *roster, history []historyTurn) error {
	rounds, err := o.store.GetRoundsByDebate(ctx, debate.ID)
	if err != nil {
		return err
	}
	scores, err := o.store.GetScoresByDebate(ctx, debate.ID)
	if err != nil {
		return err
	}

	var judgePro, judgeCon int
	for _, s := range scores {
		penalized := ApplyFoulPenalty(s.Total, len(s.Fouls))
		switch s.Stance {
		case models.StancePro:
			judgePro += penalized
		case models.StanceCon:
			judgeCon += penalized
		}
	}

	if err := o.collectVotes(ctx, debate, cast, history, judgePro, judgeCon); err != nil {
		return err
	}
	votes, err := o.store.GetVotesByDebate(ctx, debate.ID)
	if err != nil {
		return err
	}

	tally := o.voting.AggregateVotes(votes)
	result := o.voting.CalculateWeightedResult(float64(judgePro), float64(judgeCon), tally,
		debate.JudgeWeight, debate.AudienceWeight)
	result.Winner = o.scoring.DetermineWinner(result.FinalPro, result.FinalCon)

	now := time.Now().UTC()
	debate.Status = models.DebateStatusCompleted
	debate.Winner = result.Winner
	debate.CompletedAt = &now
	if err := o.store.UpdateDebate(ctx, debate); err != nil {
		return fmt.Errorf("completing debate: %w", err)
	}
	metrics.DebatesCompleted.Inc()

	o.bus.Broadcast(debate.ID, events.New(debate.ID, events.EventDebateEnd, map[string]any{
		"winner":    result.Winner,
		"final_pro": result.FinalPro,
		"final_con": result.FinalCon,
		"rounds":    len(rounds),
		"votes":     tally.Total,
	}))

	o.log.WithFields(logrus.Fields{
		"debate_id": debate.ID,
		"winner":    result.Winner,
		"final_pro": result.FinalPro,
		"final_con": result.FinalCon,
	}).Info("Debate completed")
	return nil
}

// collectVotes fans one ballot call out per audience agent with bounded
// concurrency. Unparsable ballots default from the judge score comparison.
func (o *Orchestrator) collectVotes(ctx context.Context, debate *models.Debate, cast *roster, history []historyTurn, judgePro, judgeCon int) error {
	if len(cast.audience) == 0 {
		return nil
	}

	votes := make([]*models.Vote, len(cast.audience))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.voteConcurrency)
	for i, agent := range cast.audience {
		i, agent := i, agent
		g.Go(func() error {
			raw, err := o.provider.CastVote(gctx, voteRequest(debate, agent, history))
			if err != nil {
				metrics.ProviderFailures.WithLabelValues("cast_vote").Inc()
				return fmt.Errorf("collecting vote from %s: %w", agent.Name, err)
			}
			votes[i] = o.parseBallot(debate.ID, agent, raw, judgePro, judgeCon)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Persist after the fan-out so ballot order is stable.
	now := time.Now().UTC()
	for i, v := range votes {
		v.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		if err := o.store.CreateVote(ctx, v); err != nil {
			return fmt.Errorf("persisting vote: %w", err)
		}
	}
	return nil
}

// parseBallot validates one ballot. On unparsable output the ballot defaults
// to whichever side the judge scored higher (draw when even), at half
// confidence.
func (o *Orchestrator) parseBallot(debateID string, agent *models.Agent, raw string, judgePro, judgeCon int) *models.Vote {
	vote := &models.Vote{
		ID:       uuid.New().String(),
		DebateID: debateID,
		AgentID:  agent.ID,
	}

	var b ballot
	payload, ok := extractJSONObject(raw)
	if ok && json.Unmarshal([]byte(payload), &b) == nil {
		switch models.Stance(b.Stance) {
		case models.StancePro, models.StanceCon, models.StanceDraw:
			vote.Stance = models.Stance(b.Stance)
			vote.Confidence = clampUnit(b.Confidence)
			vote.Reason = b.Reason
			return vote
		}
	}

	switch {
	case judgePro > judgeCon:
		vote.Stance = models.StancePro
	case judgeCon > judgePro:
		vote.Stance = models.StanceCon
	default:
		vote.Stance = models.StanceDraw
	}
	vote.Confidence = 0.5
	vote.Reason = "ballot unparsable; defaulted from score comparison"
	return vote
}

// fail marks the debate failed with the captured reason. Partial rounds,
// messages and scores stay in place for inspection.
func (o *Orchestrator) fail(ctx context.Context, debate *models.Debate, cause error) {
	debate.Status = models.DebateStatusFailed
	debate.FailureReason = cause.Error()
	if err := o.store.UpdateDebate(ctx, debate); err != nil {
		o.log.WithField("debate_id", debate.ID).WithError(err).Error("Failed to persist debate failure")
	}
	metrics.DebatesFailed.Inc()

	o.bus.Broadcast(debate.ID, events.New(debate.ID, events.EventError, map[string]any{
		"reason": cause.Error(),
	}))
	o.log.WithField("debate_id", debate.ID).WithError(cause).Error("Debate failed")
}

package debate

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bossandy123/debate-agents-sub001/internal/database"
	"github.com/bossandy123/debate-agents-sub001/internal/events"
	"github.com/bossandy123/debate-agents-sub001/internal/llm"
	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// ============================================================================
// Fake Provider
// ============================================================================

// fakeProvider implements llm.ReasoningProvider with overridable function
// fields. Unset fields fall back to deterministic well-formed output: pro
// turns score 30, con turns score 24, nobody interjects, everyone votes pro.
type fakeProvider struct {
	generateFn func(ctx context.Context, req *llm.Request) (string, error)
	streamFn   func(ctx context.Context, req *llm.Request) (<-chan llm.StreamChunk, error)
	scoreFn    func(ctx context.Context, req *llm.Request) (string, error)
	decideFn   func(ctx context.Context, req *llm.Request) (string, error)
	approveFn  func(ctx context.Context, req *llm.Request) (string, error)
	voteFn     func(ctx context.Context, req *llm.Request) (string, error)
}

func streamOf(parts ...string) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, len(parts)+1)
	for _, p := range parts {
		ch <- llm.StreamChunk{Content: p}
	}
	ch <- llm.StreamChunk{Done: true}
	close(ch)
	return ch
}

func (f *fakeProvider) Generate(ctx context.Context, req *llm.Request) (string, error) {
	if f.generateFn != nil {
		return f.generateFn(ctx, req)
	}
	return "a generated argument", nil
}

func (f *fakeProvider) GenerateStream(ctx context.Context, req *llm.Request) (<-chan llm.StreamChunk, error) {
	if f.streamFn != nil {
		return f.streamFn(ctx, req)
	}
	return streamOf("argued ", "in two chunks"), nil
}

func (f *fakeProvider) ScoreRound(ctx context.Context, req *llm.Request) (string, error) {
	if f.scoreFn != nil {
		return f.scoreFn(ctx, req)
	}
	if strings.Contains(req.System, "the PRO side's") {
		return `{"logic":8,"rebuttal":7,"clarity":8,"evidence":7,"comment":"sharp","fouls":[]}`, nil
	}
	return `{"logic":6,"rebuttal":6,"clarity":6,"evidence":6,"comment":"flat","fouls":[]}`, nil
}

func (f *fakeProvider) DecideAudienceRequest(ctx context.Context, req *llm.Request) (string, error) {
	if f.decideFn != nil {
		return f.decideFn(ctx, req)
	}
	return `{"wants_to_speak":false}`, nil
}

func (f *fakeProvider) ApproveAudienceRequest(ctx context.Context, req *llm.Request) (string, error) {
	if f.approveFn != nil {
		return f.approveFn(ctx, req)
	}
	return `{"approved":false,"comment":"not needed"}`, nil
}

func (f *fakeProvider) CastVote(ctx context.Context, req *llm.Request) (string, error) {
	if f.voteFn != nil {
		return f.voteFn(ctx, req)
	}
	return `{"stance":"pro","confidence":0.8,"reason":"stronger case"}`, nil
}

// ============================================================================
// Test Harness
// ============================================================================

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestOrchestrator(provider llm.ReasoningProvider) (*Orchestrator, *database.MemoryStore, *events.Bus) {
	store := database.NewMemoryStore()
	bus := events.NewBus(time.Millisecond, 10*time.Millisecond)
	o := NewOrchestrator(store, provider, bus, Options{}, quietLogger())
	return o, store, bus
}

func seedDebate(t *testing.T, o *Orchestrator, maxRounds int, audienceTypes ...string) *models.Debate {
	t.Helper()

	debate, err := models.NewDebate("Should cities ban private cars?",
		"Cars should be banned from city centers",
		"Cars must remain allowed everywhere", maxRounds, 0.7, 0.3)
	require.NoError(t, err)

	agents := []*models.Agent{
		{Name: "Ada", Role: models.RoleDebater, Stance: models.StancePro, Model: "test-model"},
		{Name: "Bob", Role: models.RoleDebater, Stance: models.StanceCon, Model: "test-model"},
		{Name: "Judy", Role: models.RoleJudge, Model: "test-model"},
	}
	for _, at := range audienceTypes {
		agents = append(agents, &models.Agent{
			Name: "Aud-" + at, Role: models.RoleAudience, Model: "test-model", AudienceType: at,
		})
	}
	require.NoError(t, o.CreateDebate(context.Background(), debate, agents))
	return debate
}

func waitForTerminal(t *testing.T, store database.Store, debateID string) *models.Debate {
	t.Helper()
	var final *models.Debate
	require.Eventually(t, func() bool {
		d, err := store.GetDebate(context.Background(), debateID)
		if err != nil {
			return false
		}
		final = d
		return d.Terminal()
	}, 5*time.Second, 5*time.Millisecond, "debate never reached a terminal state")
	return final
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestCreateDebate_RejectsInvalidAgent(t *testing.T) {
	o, _, bus := newTestOrchestrator(&fakeProvider{})
	defer bus.Close()

	debate, err := models.NewDebate("topic", "pro", "con", 4, 0.7, 0.3)
	require.NoError(t, err)

	err = o.CreateDebate(context.Background(), debate, []*models.Agent{
		{Name: "Nobody", Role: models.RoleDebater, Stance: models.StanceDraw, Model: "m"},
	})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestStart_UnknownDebate(t *testing.T) {
	o, _, bus := newTestOrchestrator(&fakeProvider{})
	defer bus.Close()

	err := o.Start(context.Background(), "no-such-debate")
	assert.ErrorIs(t, err, models.ErrDebateNotFound)
}

func TestStart_RejectsRunningDebate(t *testing.T) {
	o, store, bus := newTestOrchestrator(&fakeProvider{})
	defer bus.Close()
	ctx := context.Background()

	debate := seedDebate(t, o, 2)
	debate.Status = models.DebateStatusRunning
	require.NoError(t, store.UpdateDebate(ctx, debate))

	assert.ErrorIs(t, o.Start(ctx, debate.ID), models.ErrAlreadyStarted)
}

func TestStart_RejectsFinishedDebate(t *testing.T) {
	o, store, bus := newTestOrchestrator(&fakeProvider{})
	defer bus.Close()
	ctx := context.Background()

	debate := seedDebate(t, o, 2)
	debate.Status = models.DebateStatusCompleted
	require.NoError(t, store.UpdateDebate(ctx, debate))

	assert.ErrorIs(t, o.Start(ctx, debate.ID), models.ErrDebateFinished)
}

func TestStart_MissingJudgeFailsDebate(t *testing.T) {
	o, store, bus := newTestOrchestrator(&fakeProvider{})
	defer bus.Close()
	ctx := context.Background()

	debate, err := models.NewDebate("topic", "pro", "con", 2, 0.7, 0.3)
	require.NoError(t, err)
	require.NoError(t, o.CreateDebate(ctx, debate, []*models.Agent{
		{Name: "Ada", Role: models.RoleDebater, Stance: models.StancePro, Model: "m"},
		{Name: "Bob", Role: models.RoleDebater, Stance: models.StanceCon, Model: "m"},
	}))

	require.NoError(t, o.Start(ctx, debate.ID))
	final := waitForTerminal(t, store, debate.ID)
	assert.Equal(t, models.DebateStatusFailed, final.Status)
	assert.Contains(t, final.FailureReason, "judge")
}

// ============================================================================
// Full Runs
// ============================================================================

func TestRun_FullDebateCompletes(t *testing.T) {
	o, store, bus := newTestOrchestrator(&fakeProvider{})
	defer bus.Close()
	ctx := context.Background()

	debate := seedDebate(t, o, 4, "skeptic", "enthusiast")
	require.NoError(t, o.Start(ctx, debate.ID))

	final := waitForTerminal(t, store, debate.ID)
	require.Equal(t, models.DebateStatusCompleted, final.Status)
	assert.Equal(t, models.StancePro, final.Winner)
	require.NotNil(t, final.CompletedAt)

	rounds, err := store.GetRoundsByDebate(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 4)
	for i, r := range rounds {
		assert.Equal(t, i+1, r.Sequence)
		assert.NotNil(t, r.CompletedAt, "round %d never completed", r.Sequence)
		assert.Equal(t, models.DerivePhase(r.Sequence, 4), r.Phase)
	}
	assert.Equal(t, models.RoundTypeFinale, rounds[3].Type)

	// Pro speaks before con in every round.
	for _, r := range rounds {
		msgs, err := store.GetMessagesByRound(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, models.StancePro, msgs[0].Stance)
		assert.Equal(t, models.StanceCon, msgs[1].Stance)
		assert.Equal(t, "argued in two chunks", msgs[0].Content)
	}

	scores, err := store.GetScoresByDebate(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, scores, 8)
	for _, s := range scores {
		switch s.Stance {
		case models.StancePro:
			assert.Equal(t, 30, s.Total)
		case models.StanceCon:
			assert.Equal(t, 24, s.Total)
		}
	}

	votes, err := store.GetVotesByDebate(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	for _, v := range votes {
		assert.Equal(t, models.StancePro, v.Stance)
		assert.InDelta(t, 0.8, v.Confidence, 1e-9)
	}
}

func TestRun_ApprovedInterjectionChangesRoundType(t *testing.T) {
	provider := &fakeProvider{
		decideFn: func(_ context.Context, req *llm.Request) (string, error) {
			if strings.Contains(req.System, "skeptic") {
				return `{"wants_to_speak":true,"intent":"challenge","claim":"neither side cites transit capacity data","novelty":0.9,"confidence":0.8}`, nil
			}
			return `{"wants_to_speak":false}`, nil
		},
		approveFn: func(_ context.Context, _ *llm.Request) (string, error) {
			return `{"approved":true,"comment":"relevant and novel"}`, nil
		},
	}
	o, store, bus := newTestOrchestrator(provider)
	defer bus.Close()
	ctx := context.Background()

	debate := seedDebate(t, o, 3, "skeptic", "enthusiast")
	require.NoError(t, o.Start(ctx, debate.ID))
	final := waitForTerminal(t, store, debate.ID)
	require.Equal(t, models.DebateStatusCompleted, final.Status)

	rounds, err := store.GetRoundsByDebate(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 3)

	// Only round 3 sits inside the audience window.
	assert.Equal(t, models.RoundTypeStandard, rounds[0].Type)
	assert.Equal(t, models.RoundTypeStandard, rounds[1].Type)
	assert.Equal(t, models.RoundTypeAudienceRequest, rounds[2].Type)

	msgs, err := store.GetMessagesByRound(ctx, rounds[2].ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "neither side cites transit capacity data", msgs[2].Content)

	reqs, err := store.GetAudienceRequestsByRound(ctx, rounds[2].ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Approved)
	assert.True(t, reqs[0].Decided)
}

func TestRun_ProviderFailureFailsDebate(t *testing.T) {
	provider := &fakeProvider{
		scoreFn: func(_ context.Context, _ *llm.Request) (string, error) {
			return "", errors.New("model endpoint unreachable")
		},
	}
	o, store, bus := newTestOrchestrator(provider)
	defer bus.Close()
	ctx := context.Background()

	debate := seedDebate(t, o, 3, "skeptic")
	require.NoError(t, o.Start(ctx, debate.ID))

	final := waitForTerminal(t, store, debate.ID)
	assert.Equal(t, models.DebateStatusFailed, final.Status)
	assert.Contains(t, final.FailureReason, "judge scoring")

	// Partial data stays queryable: the round-1 turns landed before scoring.
	msgs, err := store.GetMessagesByDebate(ctx, debate.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	scores, err := store.GetScoresByDebate(ctx, debate.ID)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

// flakyStore forwards everything to the embedded store except audience
// request writes, which fail with the injected error.
type flakyStore struct {
	database.Store
	audienceErr error
}

func (s *flakyStore) CreateAudienceRequest(context.Context, *models.AudienceRequest) error {
	return s.audienceErr
}

func TestRun_AudiencePersistenceFailureFailsDebate(t *testing.T) {
	provider := &fakeProvider{
		decideFn: func(_ context.Context, _ *llm.Request) (string, error) {
			return `{"wants_to_speak":true,"intent":"challenge","claim":"a missing angle","novelty":0.9,"confidence":0.8}`, nil
		},
	}
	store := &flakyStore{Store: database.NewMemoryStore(), audienceErr: errors.New("disk full")}
	bus := events.NewBus(time.Millisecond, 10*time.Millisecond)
	defer bus.Close()
	o := NewOrchestrator(store, provider, bus, Options{}, quietLogger())
	ctx := context.Background()

	debate := seedDebate(t, o, 3, "skeptic")
	require.NoError(t, o.Start(ctx, debate.ID))

	// Round 3 opens the audience window; the write failure must surface
	// as a failed debate, not a silently completed one.
	final := waitForTerminal(t, store, debate.ID)
	assert.Equal(t, models.DebateStatusFailed, final.Status)
	assert.Contains(t, final.FailureReason, "audience arbitration")
	assert.Contains(t, final.FailureReason, "disk full")
}

func TestRun_EmitsLifecycleEvents(t *testing.T) {
	o, store, bus := newTestOrchestrator(&fakeProvider{})
	defer bus.Close()
	ctx := context.Background()

	debate := seedDebate(t, o, 2, "skeptic")
	batches, unsubscribe := bus.Subscribe(debate.ID)
	defer unsubscribe()

	first := <-batches
	require.Len(t, first, 1)
	assert.Equal(t, events.EventConnected, first[0].Type)

	require.NoError(t, o.Start(ctx, debate.ID))
	waitForTerminal(t, store, debate.ID)

	seen := make(map[events.Type]bool)
	deadline := time.After(2 * time.Second)
	for !seen[events.EventDebateEnd] {
		select {
		case batch, ok := <-batches:
			if !ok {
				t.Fatal("event channel closed before debate_end arrived")
			}
			for _, e := range batch {
				seen[e.Type] = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for debate_end")
		}
	}
	for _, want := range []events.Type{
		events.EventRoundStart, events.EventAgentStart, events.EventToken,
		events.EventAgentEnd, events.EventScoreUpdate, events.EventRoundEnd,
	} {
		assert.True(t, seen[want], "missing %s event", want)
	}
}

// ============================================================================
// Ballot Parsing
// ============================================================================

func TestParseBallot(t *testing.T) {
	o, _, bus := newTestOrchestrator(&fakeProvider{})
	defer bus.Close()
	agent := &models.Agent{ID: "agent-1", Name: "Aud"}

	vote := o.parseBallot("d1", agent, `{"stance":"con","confidence":0.9,"reason":"better evidence"}`, 100, 120)
	assert.Equal(t, models.StanceCon, vote.Stance)
	assert.InDelta(t, 0.9, vote.Confidence, 1e-9)
	assert.Equal(t, "better evidence", vote.Reason)

	// Confidence clamps into [0,1].
	vote = o.parseBallot("d1", agent, `{"stance":"pro","confidence":1.7,"reason":"sure"}`, 100, 120)
	assert.InDelta(t, 1.0, vote.Confidence, 1e-9)
}

func TestParseBallot_FallbackFromScores(t *testing.T) {
	o, _, bus := newTestOrchestrator(&fakeProvider{})
	defer bus.Close()
	agent := &models.Agent{ID: "agent-1", Name: "Aud"}

	vote := o.parseBallot("d1", agent, "I refuse to answer in JSON.", 120, 96)
	assert.Equal(t, models.StancePro, vote.Stance)
	assert.InDelta(t, 0.5, vote.Confidence, 1e-9)
	assert.NotEmpty(t, vote.Reason)

	vote = o.parseBallot("d1", agent, `{"stance":"maybe","confidence":0.4}`, 96, 120)
	assert.Equal(t, models.StanceCon, vote.Stance)

	vote = o.parseBallot("d1", agent, "garbage", 100, 100)
	assert.Equal(t, models.StanceDraw, vote.Stance)
}

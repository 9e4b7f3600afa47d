package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// MemoryStore implements Store with in-process maps. Used in standalone mode
// when PostgreSQL is unavailable, and throughout the test suite.
type MemoryStore struct {
	mu       sync.RWMutex
	debates  map[string]*models.Debate
	agents   map[string]*models.Agent
	rounds   map[string]*models.Round
	messages map[string]*models.Message
	scores   map[string]*models.Score
	requests map[string]*models.AudienceRequest
	votes    map[string]*models.Vote
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		debates:  make(map[string]*models.Debate),
		agents:   make(map[string]*models.Agent),
		rounds:   make(map[string]*models.Round),
		messages: make(map[string]*models.Message),
		scores:   make(map[string]*models.Score),
		requests: make(map[string]*models.AudienceRequest),
		votes:    make(map[string]*models.Vote),
	}
}

func copyDebate(d *models.Debate) *models.Debate {
	c := *d
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func copyRound(r *models.Round) *models.Round {
	c := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func copyScore(s *models.Score) *models.Score {
	c := *s
	c.Fouls = append([]string(nil), s.Fouls...)
	return &c
}

func (m *MemoryStore) CreateDebate(_ context.Context, debate *models.Debate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.debates[debate.ID]; ok {
		return fmt.Errorf("%w: debate %s already exists", models.ErrInvalidArgument, debate.ID)
	}
	m.debates[debate.ID] = copyDebate(debate)
	return nil
}

func (m *MemoryStore) GetDebate(_ context.Context, id string) (*models.Debate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.debates[id]
	if !ok {
		return nil, models.ErrDebateNotFound
	}
	return copyDebate(d), nil
}

func (m *MemoryStore) UpdateDebate(_ context.Context, debate *models.Debate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.debates[debate.ID]; !ok {
		return models.ErrDebateNotFound
	}
	debate.UpdatedAt = time.Now().UTC()
	m.debates[debate.ID] = copyDebate(debate)
	return nil
}

func (m *MemoryStore) DeleteDebate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.debates[id]; !ok {
		return models.ErrDebateNotFound
	}
	delete(m.debates, id)

	// Cascade: agents and rounds reference the debate, everything else
	// hangs off rounds or agents.
	roundIDs := make(map[string]bool)
	for rid, r := range m.rounds {
		if r.DebateID == id {
			roundIDs[rid] = true
			delete(m.rounds, rid)
		}
	}
	for aid, a := range m.agents {
		if a.DebateID == id {
			delete(m.agents, aid)
		}
	}
	for mid, msg := range m.messages {
		if roundIDs[msg.RoundID] {
			delete(m.messages, mid)
		}
	}
	for sid, s := range m.scores {
		if roundIDs[s.RoundID] {
			delete(m.scores, sid)
		}
	}
	for qid, q := range m.requests {
		if roundIDs[q.RoundID] {
			delete(m.requests, qid)
		}
	}
	for vid, v := range m.votes {
		if v.DebateID == id {
			delete(m.votes, vid)
		}
	}
	return nil
}

func (m *MemoryStore) ListDebates(_ context.Context) ([]*models.Debate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Debate, 0, len(m.debates))
	for _, d := range m.debates {
		out = append(out, copyDebate(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CreateAgent(_ context.Context, agent *models.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.debates[agent.DebateID]; !ok {
		return models.ErrDebateNotFound
	}
	c := *agent
	m.agents[agent.ID] = &c
	return nil
}

func (m *MemoryStore) GetAgentsByDebate(_ context.Context, debateID string) ([]*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Agent
	for _, a := range m.agents {
		if a.DebateID == debateID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) CreateRound(_ context.Context, round *models.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rounds {
		if r.DebateID == round.DebateID && r.Sequence == round.Sequence {
			return fmt.Errorf("%w: round sequence %d already exists", models.ErrInvalidArgument, round.Sequence)
		}
	}
	m.rounds[round.ID] = copyRound(round)
	return nil
}

func (m *MemoryStore) UpdateRound(_ context.Context, round *models.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rounds[round.ID]; !ok {
		return models.ErrRoundNotFound
	}
	m.rounds[round.ID] = copyRound(round)
	return nil
}

func (m *MemoryStore) GetRoundsByDebate(_ context.Context, debateID string) ([]*models.Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Round
	for _, r := range m.rounds {
		if r.DebateID == debateID {
			out = append(out, copyRound(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (m *MemoryStore) CreateMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rounds[msg.RoundID]; !ok {
		return models.ErrRoundNotFound
	}
	c := *msg
	m.messages[msg.ID] = &c
	return nil
}

func (m *MemoryStore) GetMessagesByRound(_ context.Context, roundID string) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Message
	for _, msg := range m.messages {
		if msg.RoundID == roundID {
			c := *msg
			out = append(out, &c)
		}
	}
	sortMessages(out)
	return out, nil
}

func (m *MemoryStore) GetMessagesByDebate(_ context.Context, debateID string) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seq := make(map[string]int)
	for rid, r := range m.rounds {
		if r.DebateID == debateID {
			seq[rid] = r.Sequence
		}
	}
	var out []*models.Message
	for _, msg := range m.messages {
		if _, ok := seq[msg.RoundID]; ok {
			c := *msg
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := seq[out[i].RoundID], seq[out[j].RoundID]
		if si != sj {
			return si < sj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func sortMessages(msgs []*models.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

func (m *MemoryStore) CreateScore(_ context.Context, score *models.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.scores {
		if s.RoundID == score.RoundID && s.AgentID == score.AgentID {
			return fmt.Errorf("%w: score already recorded for agent %s in round %s",
				models.ErrInvalidArgument, score.AgentID, score.RoundID)
		}
	}
	m.scores[score.ID] = copyScore(score)
	return nil
}

func (m *MemoryStore) GetScoresByRound(_ context.Context, roundID string) ([]*models.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Score
	for _, s := range m.scores {
		if s.RoundID == roundID {
			out = append(out, copyScore(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetScoresByDebate(_ context.Context, debateID string) ([]*models.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seq := make(map[string]int)
	for rid, r := range m.rounds {
		if r.DebateID == debateID {
			seq[rid] = r.Sequence
		}
	}
	var out []*models.Score
	for _, s := range m.scores {
		if _, ok := seq[s.RoundID]; ok {
			out = append(out, copyScore(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := seq[out[i].RoundID], seq[out[j].RoundID]
		if si != sj {
			return si < sj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) CreateAudienceRequest(_ context.Context, req *models.AudienceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rounds[req.RoundID]; !ok {
		return models.ErrRoundNotFound
	}
	c := *req
	m.requests[req.ID] = &c
	return nil
}

func (m *MemoryStore) GetAudienceRequestsByRound(_ context.Context, roundID string) ([]*models.AudienceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.AudienceRequest
	for _, r := range m.requests {
		if r.RoundID == roundID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) CreateVote(_ context.Context, vote *models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.debates[vote.DebateID]; ok && d.Status == models.DebateStatusCompleted {
		return models.ErrVotesFrozen
	}
	for _, v := range m.votes {
		if v.DebateID == vote.DebateID && v.AgentID == vote.AgentID {
			return models.ErrDuplicateVote
		}
	}
	c := *vote
	m.votes[vote.ID] = &c
	return nil
}

func (m *MemoryStore) GetVotesByDebate(_ context.Context, debateID string) ([]*models.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Vote
	for _, v := range m.votes {
		if v.DebateID == debateID {
			c := *v
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

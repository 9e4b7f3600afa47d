package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bossandy123/debate-agents-sub001/internal/database"
	"github.com/bossandy123/debate-agents-sub001/internal/llm"
	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// Arbiter runs the audience-request sub-workflow: solicit willingness from
// each audience agent, rank candidates, and have the judge rule. Each request
// reaches exactly one terminal state (approved or rejected), decided once.
//
// Provider failures and unparsable output degrade to silence, which is safer
// than an ungoverned insertion; only a persistence failure aborts the round.
type Arbiter struct {
	store    database.Store
	provider llm.ReasoningProvider
	log      *logrus.Logger
}

// NewArbiter creates an arbiter.
func NewArbiter(store database.Store, provider llm.ReasoningProvider, log *logrus.Logger) *Arbiter {
	if log == nil {
		log = logrus.New()
	}
	return &Arbiter{store: store, provider: provider, log: log}
}

type audienceDecision struct {
	WantsToSpeak bool    `json:"wants_to_speak"`
	Intent       string  `json:"intent"`
	Claim        string  `json:"claim"`
	Novelty      float64 `json:"novelty"`
	Confidence   float64 `json:"confidence"`
}

type approvalDecision struct {
	Approved bool   `json:"approved"`
	Comment  string `json:"comment"`
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Arbitrate solicits, ranks and decides audience requests for one round.
// Returns the approved request, or nil when nobody speaks. Calling it on a
// round outside the eligible window returns ErrOutsideWindow.
func (a *Arbiter) Arbitrate(ctx context.Context, debate *models.Debate, round *models.Round, judge *models.Agent, audience []*models.Agent, history []historyTurn) (*models.AudienceRequest, error) {
	if !models.InAudienceWindow(round.Sequence) {
		return nil, models.ErrOutsideWindow
	}
	if judge == nil || len(audience) == 0 {
		return nil, nil
	}

	candidates := a.solicit(ctx, debate, round, audience, history)
	if len(candidates) == 0 {
		return nil, nil
	}

	// Rank deterministically: novelty, then confidence, then agent ID.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Novelty != candidates[j].Novelty {
			return candidates[i].Novelty > candidates[j].Novelty
		}
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].AgentID < candidates[j].AgentID
	})

	var approved *models.AudienceRequest
	for _, req := range candidates {
		if approved == nil {
			a.decide(ctx, debate, round, judge, req)
		} else {
			// One approval per round bounds round growth.
			req.Approved = false
			req.Comment = "another request was already approved this round"
		}
		req.Decided = true
		if err := a.store.CreateAudienceRequest(ctx, req); err != nil {
			return nil, fmt.Errorf("persisting audience request: %w", err)
		}
		if req.Approved && approved == nil {
			approved = req
		}
	}
	return approved, nil
}

// solicit polls every audience agent. Failures and unparsable answers count
// as "not speaking".
func (a *Arbiter) solicit(ctx context.Context, debate *models.Debate, round *models.Round, audience []*models.Agent, history []historyTurn) []*models.AudienceRequest {
	var candidates []*models.AudienceRequest
	for _, agent := range audience {
		raw, err := a.provider.DecideAudienceRequest(ctx, audienceDecisionRequest(debate, agent, round, history))
		if err != nil {
			a.log.WithFields(logrus.Fields{
				"agent_id": agent.ID,
				"round":    round.Sequence,
			}).WithError(err).Warn("Audience decision call failed, treating as not speaking")
			continue
		}

		var dec audienceDecision
		payload, ok := extractJSONObject(raw)
		if !ok || json.Unmarshal([]byte(payload), &dec) != nil || !dec.WantsToSpeak {
			continue
		}
		if dec.Claim == "" {
			continue
		}

		candidates = append(candidates, &models.AudienceRequest{
			ID:         uuid.New().String(),
			RoundID:    round.ID,
			AgentID:    agent.ID,
			Intent:     dec.Intent,
			Claim:      dec.Claim,
			Novelty:    clampUnit(dec.Novelty),
			Confidence: clampUnit(dec.Confidence),
			CreatedAt:  time.Now().UTC(),
		})
	}
	return candidates
}

// decide asks the judge to rule on one candidate. Any failure rejects.
func (a *Arbiter) decide(ctx context.Context, debate *models.Debate, round *models.Round, judge *models.Agent, req *models.AudienceRequest) {
	raw, err := a.provider.ApproveAudienceRequest(ctx, approvalRequest(debate, judge, round, req))
	if err != nil {
		req.Approved = false
		req.Comment = "judge ruling unavailable; rejected"
		a.log.WithField("round", round.Sequence).WithError(err).Warn("Approval call failed, rejecting request")
		return
	}

	var dec approvalDecision
	payload, ok := extractJSONObject(raw)
	if !ok || json.Unmarshal([]byte(payload), &dec) != nil {
		req.Approved = false
		req.Comment = "judge ruling unparsable; rejected"
		return
	}
	req.Approved = dec.Approved
	req.Comment = dec.Comment
}

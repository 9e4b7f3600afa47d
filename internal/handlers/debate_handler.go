// Package handlers exposes the debate engine over HTTP: a gin REST surface,
// a websocket event stream, and a markdown transcript export.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bossandy123/debate-agents-sub001/internal/debate"
	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DebateHandler handles debate lifecycle and query requests.
type DebateHandler struct {
	orchestrator *debate.Orchestrator
	log          *logrus.Logger
}

// NewDebateHandler creates a debate handler.
func NewDebateHandler(orchestrator *debate.Orchestrator, log *logrus.Logger) *DebateHandler {
	if log == nil {
		log = logrus.New()
	}
	return &DebateHandler{orchestrator: orchestrator, log: log}
}

// AgentRequest describes one participant in a create request.
type AgentRequest struct {
	Name         string `json:"name"`
	Role         string `json:"role" binding:"required"`
	Stance       string `json:"stance,omitempty"`
	Model        string `json:"model" binding:"required"`
	Style        string `json:"style,omitempty"`
	AudienceType string `json:"audience_type,omitempty"`
}

// CreateDebateRequest is the create payload.
type CreateDebateRequest struct {
	Topic          string         `json:"topic" binding:"required"`
	ProPosition    string         `json:"pro_position" binding:"required"`
	ConPosition    string         `json:"con_position" binding:"required"`
	MaxRounds      int            `json:"max_rounds" binding:"required"`
	JudgeWeight    float64        `json:"judge_weight"`
	AudienceWeight float64        `json:"audience_weight"`
	Agents         []AgentRequest `json:"agents" binding:"required"`
}

// CreateDebate handles POST /api/v1/debates.
func (h *DebateHandler) CreateDebate(c *gin.Context) {
	var req CreateDebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if req.JudgeWeight == 0 && req.AudienceWeight == 0 {
		req.JudgeWeight, req.AudienceWeight = 0.7, 0.3
	}

	d, err := models.NewDebate(req.Topic, req.ProPosition, req.ConPosition,
		req.MaxRounds, req.JudgeWeight, req.AudienceWeight)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	agents := make([]*models.Agent, 0, len(req.Agents))
	for _, a := range req.Agents {
		agents = append(agents, &models.Agent{
			Name:         a.Name,
			Role:         models.AgentRole(a.Role),
			Stance:       models.Stance(a.Stance),
			Model:        a.Model,
			Style:        a.Style,
			AudienceType: a.AudienceType,
		})
	}

	if err := h.orchestrator.CreateDebate(c.Request.Context(), d, agents); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	h.log.WithFields(logrus.Fields{
		"debate_id": d.ID,
		"topic":     d.Topic,
		"rounds":    d.MaxRounds,
	}).Info("Debate created")
	c.JSON(http.StatusCreated, d)
}

// ListDebates handles GET /api/v1/debates.
func (h *DebateHandler) ListDebates(c *gin.Context) {
	debates, err := h.orchestrator.ListDebates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"debates": debates, "total": len(debates)})
}

// StartDebate handles POST /api/v1/debates/:id/start.
func (h *DebateHandler) StartDebate(c *gin.Context) {
	id := c.Param("id")
	err := h.orchestrator.Start(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "running"})
	case errors.Is(err, models.ErrDebateNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrAlreadyStarted), errors.Is(err, models.ErrDebateFinished):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// GetDebate handles GET /api/v1/debates/:id.
func (h *DebateHandler) GetDebate(c *gin.Context) {
	d, err := h.orchestrator.GetDebate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GetRounds handles GET /api/v1/debates/:id/rounds.
func (h *DebateHandler) GetRounds(c *gin.Context) {
	rounds, err := h.orchestrator.GetRounds(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds, "total": len(rounds)})
}

// GetRoundMessages handles GET /api/v1/rounds/:id/messages.
func (h *DebateHandler) GetRoundMessages(c *gin.Context) {
	msgs, err := h.orchestrator.GetRoundMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "total": len(msgs)})
}

// GetRoundScores handles GET /api/v1/rounds/:id/scores.
func (h *DebateHandler) GetRoundScores(c *gin.Context) {
	scores, err := h.orchestrator.GetRoundScores(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores, "total": len(scores)})
}

// GetDebateResult handles GET /api/v1/debates/:id/result. Incomplete debates
// return the debate with a judgment_available=false marker instead of 4xx so
// failed debates stay fully inspectable.
func (h *DebateHandler) GetDebateResult(c *gin.Context) {
	result, err := h.orchestrator.GetDebateResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":             result,
		"judgment_available": result.Judgment != nil,
	})
}

// DeleteDebate handles DELETE /api/v1/debates/:id. Running debates are
// retained; everything else cascades away.
func (h *DebateHandler) DeleteDebate(c *gin.Context) {
	id := c.Param("id")
	d, err := h.orchestrator.GetDebate(c.Request.Context(), id)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	if d.Status == models.DebateStatusRunning {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "cannot delete a running debate"})
		return
	}
	if err := h.orchestrator.DeleteDebate(c.Request.Context(), id); err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DebateHandler) respondQueryError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrDebateNotFound) || errors.Is(err, models.ErrRoundNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

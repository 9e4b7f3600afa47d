package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bossandy123/debate-agents-sub001/internal/debate"
	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// GetDebateReport handles GET /api/v1/debates/:id/report and renders the
// full transcript plus verdict as markdown. Incomplete debates render with
// "judgment unavailable" rather than erroring.
func (h *DebateHandler) GetDebateReport(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	result, err := h.orchestrator.GetDebateResult(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrDebateNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	agents, err := h.orchestrator.GetAgents(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	rounds, err := h.orchestrator.GetRounds(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	var sb strings.Builder
	writeReportHeader(&sb, result.Debate, agents)
	for _, round := range rounds {
		msgs, err := h.orchestrator.GetRoundMessages(ctx, round.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		scores, err := h.orchestrator.GetRoundScores(ctx, round.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		writeRoundSection(&sb, round, msgs, scores, agents)
	}
	writeVerdictSection(&sb, result)

	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(sb.String()))
}

func writeReportHeader(sb *strings.Builder, d *models.Debate, agents []*models.Agent) {
	sb.WriteString(fmt.Sprintf("# Debate: %s\n\n", d.Topic))
	sb.WriteString(fmt.Sprintf("**Pro:** %s\n\n**Con:** %s\n\n", d.ProPosition, d.ConPosition))
	sb.WriteString(fmt.Sprintf("**Status:** %s", d.Status))
	if d.Status == models.DebateStatusFailed && d.FailureReason != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", d.FailureReason))
	}
	sb.WriteString("\n\n")

	sb.WriteString("## Participants\n\n")
	sb.WriteString("| Name | Role | Stance | Model |\n")
	sb.WriteString("|------|------|--------|-------|\n")
	for _, a := range agents {
		stance := string(a.Stance)
		if stance == "" {
			stance = "—"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", a.Name, a.Role, stance, a.Model))
	}
	sb.WriteString("\n---\n\n")
}

func writeRoundSection(sb *strings.Builder, round *models.Round, msgs []*models.Message, scores []*models.Score, agents []*models.Agent) {
	names := make(map[string]string, len(agents))
	for _, a := range agents {
		names[a.ID] = a.Name
	}

	sb.WriteString(fmt.Sprintf("## Round %d — %s", round.Sequence, round.Phase))
	if round.Type != models.RoundTypeStandard {
		sb.WriteString(fmt.Sprintf(" (%s)", round.Type))
	}
	sb.WriteString("\n\n")

	for _, m := range msgs {
		speaker := names[m.AgentID]
		if speaker == "" {
			speaker = m.AgentID
		}
		label := strings.ToUpper(string(m.Stance))
		if label == "" {
			label = "AUDIENCE"
		}
		sb.WriteString(fmt.Sprintf("**[%s] %s:**\n\n", label, speaker))
		for _, line := range strings.Split(m.Content, "\n") {
			if strings.TrimSpace(line) != "" {
				sb.WriteString("> " + line + "\n")
			} else {
				sb.WriteString(">\n")
			}
		}
		sb.WriteString("\n")
	}

	if len(scores) > 0 {
		sb.WriteString("| Side | Logic | Rebuttal | Clarity | Evidence | Total | Fouls |\n")
		sb.WriteString("|------|-------|----------|---------|----------|-------|-------|\n")
		for _, s := range scores {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %d | %d |\n",
				strings.ToUpper(string(s.Stance)), s.Logic, s.Rebuttal, s.Clarity, s.Evidence, s.Total, len(s.Fouls)))
		}
		sb.WriteString("\n")
	}
}

func writeVerdictSection(sb *strings.Builder, result *debate.DebateResult) {
	sb.WriteString("---\n\n## Verdict\n\n")
	if result.Judgment == nil || result.Weighted == nil {
		sb.WriteString("_Judgment unavailable: the debate has not completed._\n")
		return
	}

	j, w := result.Judgment, result.Weighted
	sb.WriteString(fmt.Sprintf("**Winner:** %s\n\n", strings.ToUpper(string(w.Winner))))
	sb.WriteString(fmt.Sprintf("Judge totals (after foul penalties): pro %d, con %d.\n\n", j.ProPenalized, j.ConPenalized))
	if result.Tally != nil {
		sb.WriteString(fmt.Sprintf("Audience ballots: %d pro, %d con, %d draw (weighted %.2f / %.2f).\n\n",
			result.Tally.Pro, result.Tally.Con, result.Tally.Draw,
			result.Tally.ProWeighted, result.Tally.ConWeighted))
	}
	sb.WriteString(fmt.Sprintf("Weighted result: pro %.2f, con %.2f (judge weight %.2f, audience weight %.2f).\n\n",
		w.FinalPro, w.FinalCon, w.JudgeWeight, w.AudienceWeight))

	if j.TurningRound > 0 {
		sb.WriteString(fmt.Sprintf("Key turning round: %d.\n\n", j.TurningRound))
	}
	if len(j.WinningArguments) > 0 {
		sb.WriteString("**Winning arguments:**\n\n")
		for _, arg := range j.WinningArguments {
			sb.WriteString("- " + arg + "\n")
		}
		sb.WriteString("\n")
	}
	if len(j.FoulRecords) > 0 {
		sb.WriteString("**Fouls:**\n\n")
		for _, f := range j.FoulRecords {
			sb.WriteString(fmt.Sprintf("- Round %d, %s: %s\n",
				f.RoundSequence, strings.ToUpper(string(f.Stance)), strings.Join(f.Fouls, ", ")))
		}
	}
}

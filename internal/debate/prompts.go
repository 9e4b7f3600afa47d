package debate

import (
	"fmt"
	"strings"

	"github.com/bossandy123/debate-agents-sub001/internal/llm"
	"github.com/bossandy123/debate-agents-sub001/internal/models"
)

// historyTurn is one completed turn carried forward into later prompts.
// Label is the deterministic stance prefix ("PRO", "CON", "AUDIENCE").
type historyTurn struct {
	Label   string
	Speaker string
	Content string
}

// renderHistory flattens accumulated turns into one stance-prefixed
// transcript block. Identical history always renders identically.
func renderHistory(turns []historyTurn) string {
	if len(turns) == 0 {
		return "(no prior turns)"
	}
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", t.Label, t.Content))
	}
	return sb.String()
}

func stanceLabel(stance models.Stance) string {
	return strings.ToUpper(string(stance))
}

// debaterRequest builds the generation request for a debater's turn.
func debaterRequest(debate *models.Debate, agent *models.Agent, round *models.Round, history []historyTurn) *llm.Request {
	position := debate.ProPosition
	opponent := debate.ConPosition
	if agent.Stance == models.StanceCon {
		position = debate.ConPosition
		opponent = debate.ProPosition
	}

	var phaseGuide string
	switch round.Phase {
	case models.PhaseOpening:
		phaseGuide = "This is an opening round: lay out your strongest case."
	case models.PhaseRebuttal:
		phaseGuide = "This is a rebuttal round: attack your opponent's latest arguments directly."
	case models.PhaseClosing:
		phaseGuide = "This is the closing round: summarize why your side has won."
	}

	system := fmt.Sprintf(
		"You are a competitive debater arguing the %s side of: %q.\n"+
			"Your position: %s\nYour opponent's position: %s\n%s\n"+
			"Stay on topic, cite evidence where you can, and never concede.",
		stanceLabel(agent.Stance), debate.Topic, position, opponent, phaseGuide)
	if agent.Style != "" {
		system += "\nSpeaking style: " + agent.Style
	}

	return &llm.Request{
		Model:  agent.Model,
		System: system,
		Prompt: fmt.Sprintf("Debate so far:\n%s\nRound %d (%s). Deliver your %s turn now.",
			renderHistory(history), round.Sequence, round.Phase, stanceLabel(agent.Stance)),
		Temperature: 0.8,
	}
}

// judgeScoreRequest builds the structured scoring request for one message.
func judgeScoreRequest(debate *models.Debate, judge *models.Agent, round *models.Round, stance models.Stance, content string, history []historyTurn) *llm.Request {
	system := fmt.Sprintf(
		"You are the judge of a formal debate on: %q.\n"+
			"Score the %s side's latest turn on four dimensions, each an integer from 1 to 10: "+
			"logic, rebuttal, clarity, evidence. Flag rule violations (ad hominem, off-topic, "+
			"fabricated evidence) in a fouls array.\n"+
			`Reply with JSON only: {"logic":n,"rebuttal":n,"clarity":n,"evidence":n,"comment":"...","fouls":[]}`,
		debate.Topic, stanceLabel(stance))

	return &llm.Request{
		Model:  judge.Model,
		System: system,
		Prompt: fmt.Sprintf("Debate so far:\n%s\nRound %d turn to score (%s side):\n%s",
			renderHistory(history), round.Sequence, stanceLabel(stance), content),
	}
}

// audienceDecisionRequest asks one audience agent whether it wants to speak.
func audienceDecisionRequest(debate *models.Debate, agent *models.Agent, round *models.Round, history []historyTurn) *llm.Request {
	system := fmt.Sprintf(
		"You are an audience member (%s) watching a debate on: %q.\n"+
			"Decide whether you want to interject this round. Only speak if you have something "+
			"genuinely new to add.\n"+
			`Reply with JSON only: {"wants_to_speak":bool,"intent":"...","claim":"...","novelty":0.0,"confidence":0.0}`,
		agent.AudienceType, debate.Topic)

	return &llm.Request{
		Model:  agent.Model,
		System: system,
		Prompt: fmt.Sprintf("Debate so far:\n%s\nRound %d. Do you wish to interject?",
			renderHistory(history), round.Sequence),
	}
}

// approvalRequest asks the judge to rule on a raised audience request.
func approvalRequest(debate *models.Debate, judge *models.Agent, round *models.Round, req *models.AudienceRequest) *llm.Request {
	system := fmt.Sprintf(
		"You are the judge of a debate on: %q.\n"+
			"An audience member asks to interject. Approve only if the claim is relevant, novel, "+
			"valuable and well-timed for round %d.\n"+
			`Reply with JSON only: {"approved":bool,"comment":"..."}`,
		debate.Topic, round.Sequence)

	return &llm.Request{
		Model:  judge.Model,
		System: system,
		Prompt: fmt.Sprintf("Request intent: %s\nClaim: %s\nNovelty: %.2f\nConfidence: %.2f",
			req.Intent, req.Claim, req.Novelty, req.Confidence),
	}
}

// voteRequest asks an audience agent for its final ballot.
func voteRequest(debate *models.Debate, agent *models.Agent, history []historyTurn) *llm.Request {
	system := fmt.Sprintf(
		"You are an audience member (%s) who watched a full debate on: %q.\n"+
			"Cast your final ballot for the side that argued better, or draw.\n"+
			`Reply with JSON only: {"stance":"pro"|"con"|"draw","confidence":0.0,"reason":"..."}`,
		agent.AudienceType, debate.Topic)

	return &llm.Request{
		Model:  agent.Model,
		System: system,
		Prompt: fmt.Sprintf("Full debate transcript:\n%s\nCast your ballot now.", renderHistory(history)),
	}
}

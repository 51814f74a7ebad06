package planner

import (
	"context"
	"fmt"
	"strings"

	"caretaker/pkg/jsonx"
	"caretaker/pkg/llm"
	"caretaker/pkg/logx"
	"caretaker/pkg/observe"
	"caretaker/pkg/persistence"
	"caretaker/pkg/tokens"
)

// maxPromptTokens bounds the rendered prompt. Oversized prompts are
// truncated from the tail; the instruction suffix is re-appended so the
// model always sees the action budget.
const maxPromptTokens = 24000

// Input is everything the planner considers for one tick.
type Input struct {
	Observations []*observe.RepoObservation
	Goals        []persistence.Goal
	History      []persistence.ActionRecord
	Learnings    []persistence.Learning
	OwnerCmds    []string
	Hints        []string
	MaxActions   int
}

// Planner produces bounded action plans from observation state.
type Planner struct {
	model   llm.Client
	counter *tokens.Counter
	logger  *logx.Logger
}

// NewPlanner creates an action planner.
func NewPlanner(model llm.Client) *Planner {
	counter, err := tokens.NewCounter()
	if err != nil {
		// The counter degrades to a character estimate on its own.
		counter = nil
	}
	return &Planner{model: model, counter: counter, logger: logx.NewLogger("planner")}
}

// Plan asks the model for an action list. A blocked, empty, or unparseable
// response yields an empty plan; the error return is reserved for transport
// failures that survived the retry layer.
func (p *Planner) Plan(ctx context.Context, input Input) (Plan, error) {
	prompt := p.renderPrompt(input)
	result, err := p.model.Chat(ctx, llm.NewRequest([]llm.Message{
		llm.NewSystemMessage(plannerSystemPrompt),
		llm.NewUserMessage(prompt),
	}, llm.ComplexityMedium))
	if err != nil {
		return Plan{}, fmt.Errorf("planner model call failed: %w", err)
	}
	if result.Blocked {
		p.logger.Warn("Planner response blocked: %s", result.BlockReason)
		return Plan{}, nil
	}

	plan := ParsePlan(result.Content, input.MaxActions)
	p.logger.Info("Planned %d actions", len(plan.Actions))
	return plan, nil
}

func (p *Planner) renderPrompt(input Input) string {
	var b strings.Builder
	if commands := renderCommands(input.OwnerCmds); commands != "" {
		b.WriteString(commands)
		b.WriteString("\n")
	}
	b.WriteString("# Current state\n")
	b.WriteString(renderObservations(input.Observations))
	if hints := renderHints(input.Hints); hints != "" {
		b.WriteString(hints)
		b.WriteString("\n")
	}
	b.WriteString("# Goals\n")
	b.WriteString(renderGoals(input.Goals))
	b.WriteString("\n# Recent actions\n")
	b.WriteString(renderHistory(input.History))
	if learnings := renderLearnings(input.Learnings); learnings != "" {
		b.WriteString("\n")
		b.WriteString(learnings)
	}
	suffix := fmt.Sprintf("\nPlan at most %d actions for this tick.\n", input.MaxActions)

	prompt := b.String()
	if count := p.counter.Count(prompt); count > maxPromptTokens && len(prompt) > maxPromptTokens*4 {
		p.logger.Warn("Prompt is %d tokens, truncating to ~%d", count, maxPromptTokens)
		prompt = prompt[:maxPromptTokens*4]
	}
	return prompt + suffix
}

// planPayload is the wire shape expected from the model.
type planPayload struct {
	Reasoning string   `json:"reasoning"`
	Actions   []Action `json:"actions"`
}

// ParsePlan extracts a plan from raw model output. Total: any input yields
// a plan value, and the action list never exceeds maxActions.
func ParsePlan(content string, maxActions int) Plan {
	var payload planPayload
	if actions, ok := bareActionArray(content); ok {
		payload.Actions = actions
	} else if !jsonx.ExtractObject(content, &payload) {
		return Plan{}
	}
	return Plan{
		Actions:   normalize(payload.Actions, maxActions),
		Reasoning: strings.TrimSpace(payload.Reasoning),
	}
}

// bareActionArray handles models that reply with an action array and no
// wrapping object. It must run before the object strategies: the balanced
// span strategy would otherwise match the first action object inside the
// array and unmarshal it into an empty payload.
func bareActionArray(content string) ([]Action, bool) {
	trimmed := strings.TrimSpace(content)
	if body := jsonx.Fenced(trimmed); body != "" {
		trimmed = body
	}
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	var actions []Action
	if !jsonx.ExtractArray(trimmed, &actions) {
		return nil, false
	}
	return actions, true
}

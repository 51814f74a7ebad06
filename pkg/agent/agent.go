// Package agent orchestrates the observe, plan, act, reflect cycle.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"caretaker/pkg/codectx"
	"caretaker/pkg/commands"
	"caretaker/pkg/config"
	"caretaker/pkg/decision"
	"caretaker/pkg/depbot"
	"caretaker/pkg/executor"
	"caretaker/pkg/forge"
	"caretaker/pkg/goals"
	"caretaker/pkg/jsonx"
	"caretaker/pkg/llm"
	"caretaker/pkg/logx"
	"caretaker/pkg/metrics"
	"caretaker/pkg/notify"
	"caretaker/pkg/observe"
	"caretaker/pkg/persistence"
	"caretaker/pkg/planner"
	"caretaker/pkg/responder"
)

// Status is a read-only snapshot for external observability.
type Status struct {
	Tick               int64     `json:"tick"`
	EventsProcessed    int64     `json:"events_processed"`
	CommentsPosted     int64     `json:"comments_posted"`
	NotificationsSent  int64     `json:"notifications_sent"`
	RateLimitRemaining int       `json:"rate_limit_remaining"`
	DryRun             bool      `json:"dry_run"`
	Healthy            bool      `json:"healthy"`
	LastTickAt         time.Time `json:"last_tick_at"`
}

// Agent is the tick-driven repository caretaker.
type Agent struct {
	cfg       *config.Config
	store     *persistence.Store
	forge     forge.API
	model     llm.Client
	collector *observe.Collector
	decision  *decision.Engine
	goals     *goals.Tracker
	planner   *planner.Planner
	executor  *executor.Executor
	commands  *commands.Queue
	notifier  notify.Notifier
	recorder  *metrics.Recorder
	logger    *logx.Logger

	mu                sync.Mutex
	tick              int64
	eventsProcessed   int64
	commentsPosted    int64
	notificationsSent int64
	healthy           bool
	lastTickAt        time.Time
}

// New wires the agent from its external dependencies. Tick numbering
// resumes from the persisted tick log.
func New(cfg *config.Config, store *persistence.Store, api forge.API, model llm.Client, notifier notify.Notifier, recorder *metrics.Recorder) (*Agent, error) {
	tracker := goals.NewTracker(store)
	if err := tracker.EnsureDefaults(); err != nil {
		return nil, fmt.Errorf("failed to seed goals: %w", err)
	}
	lastTick, err := store.LastTickNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to load tick counter: %w", err)
	}

	code := codectx.NewBuilder(api, store, model, cfg.CodeContext)
	depbotHandler := depbot.NewHandler(api, store, model, code, cfg.Automerge, cfg.DryRun)
	issueResponder := responder.NewResponder(api, store, model, code, cfg.BotUsername, cfg.Limits.MaxIssueAgeHours, cfg.DryRun)

	return &Agent{
		cfg:       cfg,
		store:     store,
		forge:     api,
		model:     model,
		collector: observe.NewCollector(api, store, cfg.Limits),
		decision:  decision.NewEngine(cfg.BotUsername, cfg.Decision),
		goals:     tracker,
		planner:   planner.NewPlanner(model),
		executor:  executor.NewExecutor(api, depbotHandler, issueResponder, notifier, code, cfg.DryRun),
		commands:  commands.NewQueue(notifier),
		notifier:  notifier,
		recorder:  recorder,
		logger:    logx.NewLogger("agent"),
		tick:      lastTick,
		healthy:   true,
	}, nil
}

// Status returns the current observability snapshot.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		Tick:               a.tick,
		EventsProcessed:    a.eventsProcessed,
		CommentsPosted:     a.commentsPosted,
		NotificationsSent:  a.notificationsSent,
		RateLimitRemaining: a.forge.RateRemaining(),
		DryRun:             a.cfg.DryRun,
		Healthy:            a.healthy,
		LastTickAt:         a.lastTickAt,
	}
}

// Run ticks on the configured interval until the context is canceled.
func (a *Agent) Run(ctx context.Context) error {
	interval := time.Duration(a.cfg.Limits.TickIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := a.Tick(ctx); err != nil {
			a.logger.Error("Tick failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one full cycle. Only persistence failures abort a tick; every
// other failure is contained to its repository or action.
func (a *Agent) Tick(ctx context.Context) (*persistence.TickRecord, error) {
	started := time.Now()
	tickNumber := a.currentTick() + 1
	a.logger.Info("Tick %d starting", tickNumber)

	a.commands.Poll(ctx)

	observations := a.collector.CollectAll(ctx, a.cfg.Repositories)
	a.recorder.SetRateLimitRemaining(a.forge.RateRemaining())
	a.countEvents(observations)

	if len(observations) == 0 {
		a.logger.Warn("Tick %d: no observations, recording no-op", tickNumber)
		return a.finishTick(tickNumber, started, 0, planner.Plan{}, nil, "no repositories observed")
	}

	plan := a.buildPlan(ctx, observations)
	a.commands.Drain()

	if plan.Empty() {
		return a.finishTick(tickNumber, started, len(observations), plan, nil, plan.Reasoning)
	}

	outcomes := a.executor.Execute(ctx, plan.Actions, observations)
	for _, outcome := range outcomes {
		a.recordOutcome(tickNumber, outcome)
	}

	a.reflect(ctx, tickNumber, outcomes)
	return a.finishTick(tickNumber, started, len(observations), plan, outcomes, plan.Reasoning)
}

func (a *Agent) currentTick() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tick
}

func (a *Agent) countEvents(observations []*observe.RepoObservation) {
	var events int64
	for _, obs := range observations {
		events += int64(len(obs.PullRequests) + len(obs.Issues))
	}
	a.mu.Lock()
	a.eventsProcessed += events
	a.mu.Unlock()
}

// buildPlan gathers planner input and asks for a plan. Planner failures
// yield an empty plan rather than aborting the tick.
func (a *Agent) buildPlan(ctx context.Context, observations []*observe.RepoObservation) planner.Plan {
	activeGoals, err := a.goals.Active()
	if err != nil {
		a.logger.Warn("Failed to load goals: %v", err)
	}
	history, err := a.store.RecentActionRecords(15)
	if err != nil {
		a.logger.Warn("Failed to load action history: %v", err)
	}
	learnings, err := a.store.RecentLearnings(10)
	if err != nil {
		a.logger.Warn("Failed to load learnings: %v", err)
	}

	plan, err := a.planner.Plan(ctx, planner.Input{
		Observations: observations,
		Goals:        activeGoals,
		History:      history,
		Learnings:    learnings,
		OwnerCmds:    a.commands.Rendered(),
		Hints:        a.decisionHints(observations),
		MaxActions:   a.cfg.Limits.MaxActionsPerTick,
	})
	if err != nil {
		a.logger.Warn("Planning failed, continuing with empty plan: %v", err)
		return planner.Plan{}
	}
	return plan
}

// decisionHints scores observed issues through the heuristic engine so the
// planner sees which ones the scoring rules consider worth a response.
func (a *Agent) decisionHints(observations []*observe.RepoObservation) []string {
	var hints []string
	for _, obs := range observations {
		for _, issue := range obs.Issues {
			scored := a.decision.Score(decision.Event{
				Repo:             obs.Repo,
				Number:           issue.Number,
				Title:            issue.Title,
				Body:             issue.Body,
				Author:           issue.Author,
				Labels:           issue.Labels,
				AgeHours:         issue.AgeHours,
				AlreadyResponded: issue.HasResponded,
			})
			if scored.Verdict == decision.Skip {
				continue
			}
			hints = append(hints, fmt.Sprintf("%s issue %s#%d (score %d)",
				scored.Verdict, obs.Repo, issue.Number, scored.Score))
		}
	}
	return hints
}

func (a *Agent) recordOutcome(tickNumber int64, outcome executor.Outcome) {
	result := outcome.Result
	if !outcome.Success {
		result = outcome.Err
	}
	record := &persistence.ActionRecord{
		Tick:         tickNumber,
		ActionType:   string(outcome.Action.Type),
		Repo:         outcome.Action.Repo,
		TargetNumber: outcome.Action.Number,
		Target:       outcome.Action.Target,
		Priority:     outcome.Action.Priority,
		Reasoning:    outcome.Action.Reasoning,
		Success:      outcome.Success,
		Result:       result,
		DurationMS:   outcome.Duration.Milliseconds(),
		ExecutedAt:   time.Now().UTC(),
	}
	if err := a.store.AppendActionRecord(record); err != nil {
		a.logger.Error("Failed to record action outcome: %v", err)
	}

	a.recorder.ObserveAction(string(outcome.Action.Type), outcome.Success)
	if !outcome.Success {
		return
	}
	a.mu.Lock()
	switch outcome.Action.Type {
	case planner.ActionRespondIssue, planner.ActionCommentPR:
		a.commentsPosted++
		a.recorder.IncCommentsPosted()
	case planner.ActionNotifyOwner:
		a.notificationsSent++
		a.recorder.IncNotificationsSent()
	}
	a.mu.Unlock()
}

// learningPayload is the wire shape expected from the reflection call.
type learningPayload struct {
	Category   string  `json:"category"`
	Insight    string  `json:"insight"`
	Confidence float64 `json:"confidence"`
}

// reflect asks the model to extract learnings from this tick's outcomes.
// Best-effort: every failure in here is swallowed.
func (a *Agent) reflect(ctx context.Context, tickNumber int64, outcomes []executor.Outcome) {
	if len(outcomes) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("These actions were just executed by a repository caretaker agent:\n")
	for _, outcome := range outcomes {
		status := "ok"
		detail := outcome.Result
		if !outcome.Success {
			status = "failed"
			detail = outcome.Err
		}
		fmt.Fprintf(&b, "- %s %s#%d %s: %s\n",
			outcome.Action.Type, outcome.Action.Repo, outcome.Action.Number, status, detail)
	}
	b.WriteString("\nExtract zero or more short, generalizable lessons from these results. " +
		"Reply with a JSON array: [{\"category\": \"...\", \"insight\": \"...\", \"confidence\": 0.0}]. " +
		"Reply with [] if there is nothing worth remembering.")

	result, err := a.model.Chat(ctx, llm.NewRequest([]llm.Message{llm.NewUserMessage(b.String())}, llm.ComplexityLow))
	if err != nil || result.Blocked {
		a.logger.Debug("Reflection skipped: err=%v blocked=%v", err, result.Blocked)
		return
	}

	var payloads []learningPayload
	if !jsonx.ExtractArray(result.Content, &payloads) {
		return
	}
	for _, payload := range payloads {
		if strings.TrimSpace(payload.Insight) == "" {
			continue
		}
		if payload.Confidence < 0 {
			payload.Confidence = 0
		}
		if payload.Confidence > 1 {
			payload.Confidence = 1
		}
		learning := &persistence.Learning{
			Tick:       tickNumber,
			Category:   payload.Category,
			Insight:    payload.Insight,
			Confidence: payload.Confidence,
		}
		if err := a.store.AppendLearning(learning); err != nil {
			a.logger.Warn("Failed to persist learning: %v", err)
		}
	}
}

// finishTick persists the tick record and advances the counter.
func (a *Agent) finishTick(tickNumber int64, started time.Time, observations int, plan planner.Plan, outcomes []executor.Outcome, reasoning string) (*persistence.TickRecord, error) {
	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Success {
			succeeded++
		}
	}
	finished := time.Now()
	record := &persistence.TickRecord{
		Tick:             tickNumber,
		StartedAt:        started.UTC(),
		FinishedAt:       finished.UTC(),
		Observations:     observations,
		PlannedActions:   len(plan.Actions),
		ExecutedActions:  len(outcomes),
		SucceededActions: succeeded,
		Reasoning:        truncate(reasoning, 500),
		DurationMS:       finished.Sub(started).Milliseconds(),
	}
	if err := a.store.AppendTickRecord(record); err != nil {
		a.setHealth(false)
		return nil, fmt.Errorf("failed to persist tick %d: %w", tickNumber, err)
	}

	a.recorder.ObserveTick(finished.Sub(started), observations)
	a.mu.Lock()
	a.tick = tickNumber
	a.lastTickAt = finished.UTC()
	a.healthy = observations > 0 || len(a.cfg.Repositories) == 0
	a.mu.Unlock()

	a.logger.Info("Tick %d done: %d observed, %d planned, %d executed, %d succeeded",
		tickNumber, observations, len(plan.Actions), len(outcomes), succeeded)
	return record, nil
}

func (a *Agent) setHealth(healthy bool) {
	a.mu.Lock()
	a.healthy = healthy
	a.mu.Unlock()
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}

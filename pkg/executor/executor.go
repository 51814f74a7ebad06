// Package executor dispatches planned actions to their handlers and turns
// every result, success or failure, into an outcome record.
package executor

import (
	"context"
	"fmt"
	"time"

	"caretaker/pkg/codectx"
	"caretaker/pkg/depbot"
	"caretaker/pkg/forge"
	"caretaker/pkg/logx"
	"caretaker/pkg/notify"
	"caretaker/pkg/observe"
	"caretaker/pkg/planner"
	"caretaker/pkg/responder"
)

// Outcome is the executed result of one planned action. Failures are data,
// not panics; an action can fail without disturbing its siblings.
type Outcome struct {
	Action   planner.Action
	Success  bool
	Result   string
	Err      string
	Duration time.Duration
}

// Executor routes each action type to exactly one handler.
type Executor struct {
	forge     forge.API
	depbot    *depbot.Handler
	responder *responder.Responder
	notifier  notify.Notifier
	code      *codectx.Builder
	dryRun    bool
	logger    *logx.Logger
}

// NewExecutor creates an action executor.
func NewExecutor(api forge.API, depbotHandler *depbot.Handler, issueResponder *responder.Responder, notifier notify.Notifier, code *codectx.Builder, dryRun bool) *Executor {
	return &Executor{
		forge:     api,
		depbot:    depbotHandler,
		responder: issueResponder,
		notifier:  notifier,
		code:      code,
		dryRun:    dryRun,
		logger:    logx.NewLogger("executor"),
	}
}

// Execute runs every action in the plan sequentially. Per-action failures
// become failed outcomes; execution always continues to the next action.
func (e *Executor) Execute(ctx context.Context, actions []planner.Action, observations []*observe.RepoObservation) []Outcome {
	outcomes := make([]Outcome, 0, len(actions))
	for _, action := range actions {
		start := time.Now()
		result, err := e.dispatch(ctx, action, observations)
		outcome := Outcome{
			Action:   action,
			Success:  err == nil,
			Result:   result,
			Duration: time.Since(start),
		}
		if err != nil {
			outcome.Err = err.Error()
			e.logger.Warn("Action %s %s#%d failed: %v", action.Type, action.Repo, action.Number, err)
		} else {
			e.logger.Info("Action %s %s#%d: %s", action.Type, action.Repo, action.Number, result)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (e *Executor) dispatch(ctx context.Context, action planner.Action, observations []*observe.RepoObservation) (string, error) {
	switch action.Type {
	case planner.ActionMergePR:
		return e.handleMerge(ctx, action, observations)
	case planner.ActionApprovePR:
		return e.handleApprove(ctx, action)
	case planner.ActionReviewPR:
		return e.handleReview(ctx, action, observations)
	case planner.ActionRespondIssue:
		return e.handleRespond(ctx, action, observations)
	case planner.ActionNotifyOwner:
		return e.handleNotify(ctx, action)
	case planner.ActionCommentPR:
		return e.handleComment(ctx, action)
	case planner.ActionRefreshContext:
		return e.handleRefresh(ctx, action)
	case planner.ActionSkip:
		return "skipped: " + action.Reasoning, nil
	default:
		return "", fmt.Errorf("no handler for action type %q", action.Type)
	}
}

func (e *Executor) handleMerge(ctx context.Context, action planner.Action, observations []*observe.RepoObservation) (string, error) {
	pr, ok := findPR(observations, action.Repo, action.Number)
	if !ok {
		return "", fmt.Errorf("PR %s#%d not present in this tick's observation", action.Repo, action.Number)
	}
	return e.depbot.HandleMerge(ctx, action.Repo, pr)
}

func (e *Executor) handleApprove(ctx context.Context, action planner.Action) (string, error) {
	if e.dryRun {
		return fmt.Sprintf("dry-run: would approve %s#%d", action.Repo, action.Number), nil
	}
	body := action.Params["body"]
	if body == "" {
		body = action.Reasoning
	}
	if err := e.forge.CreatePullReview(ctx, action.Repo, action.Number, forge.ReviewEventApprove, body); err != nil {
		return "", fmt.Errorf("approve failed: %w", err)
	}
	return fmt.Sprintf("approved %s#%d", action.Repo, action.Number), nil
}

// handleReview posts a comment review for ordinary PRs. Dependency-bot
// major bumps instead get the advisory assessment, delivered to the owner.
func (e *Executor) handleReview(ctx context.Context, action planner.Action, observations []*observe.RepoObservation) (string, error) {
	if pr, ok := findPR(observations, action.Repo, action.Number); ok && pr.IsDependabot && pr.VersionBump == observe.BumpMajor {
		opinion, err := e.depbot.ReviewMajorBump(ctx, action.Repo, pr)
		if err != nil {
			return "", err
		}
		if !e.dryRun {
			e.notifier.Send(ctx, opinion)
		}
		return opinion, nil
	}

	if e.dryRun {
		return fmt.Sprintf("dry-run: would review %s#%d", action.Repo, action.Number), nil
	}
	body := action.Params["body"]
	if body == "" {
		body = action.Reasoning
	}
	if err := e.forge.CreatePullReview(ctx, action.Repo, action.Number, forge.ReviewEventComment, body); err != nil {
		return "", fmt.Errorf("review failed: %w", err)
	}
	return fmt.Sprintf("reviewed %s#%d", action.Repo, action.Number), nil
}

func (e *Executor) handleRespond(ctx context.Context, action planner.Action, observations []*observe.RepoObservation) (string, error) {
	issue, ok := findIssue(observations, action.Repo, action.Number)
	if !ok {
		return "", fmt.Errorf("issue %s#%d not present in this tick's observation", action.Repo, action.Number)
	}
	return e.responder.Respond(ctx, action.Repo, issue)
}

func (e *Executor) handleNotify(ctx context.Context, action planner.Action) (string, error) {
	text := action.Target
	if text == "" {
		text = action.Reasoning
	}
	if text == "" {
		return "", fmt.Errorf("notify action carries no message")
	}
	if !e.notifier.Send(ctx, text) {
		return "", fmt.Errorf("notification delivery failed")
	}
	return "notified owner", nil
}

func (e *Executor) handleComment(ctx context.Context, action planner.Action) (string, error) {
	body := action.Params["body"]
	if body == "" {
		body = action.Reasoning
	}
	if body == "" {
		return "", fmt.Errorf("comment action carries no body")
	}
	if e.dryRun {
		return fmt.Sprintf("dry-run: would comment on %s#%d", action.Repo, action.Number), nil
	}
	if _, err := e.forge.CreateComment(ctx, action.Repo, action.Number, body); err != nil {
		return "", fmt.Errorf("comment failed: %w", err)
	}
	return fmt.Sprintf("commented on %s#%d", action.Repo, action.Number), nil
}

func (e *Executor) handleRefresh(ctx context.Context, action planner.Action) (string, error) {
	if action.Repo == "" {
		return "refresh acknowledged", nil
	}
	refreshed, err := e.code.RefreshTree(ctx, action.Repo)
	if err != nil {
		return "", err
	}
	if refreshed {
		return fmt.Sprintf("refreshed context for %s", action.Repo), nil
	}
	return fmt.Sprintf("context for %s already current", action.Repo), nil
}

func findPR(observations []*observe.RepoObservation, repo string, number int) (observe.PRSnapshot, bool) {
	for _, obs := range observations {
		if obs.Repo != repo {
			continue
		}
		for _, pr := range obs.PullRequests {
			if pr.Number == number {
				return pr, true
			}
		}
	}
	return observe.PRSnapshot{}, false
}

func findIssue(observations []*observe.RepoObservation, repo string, number int) (observe.IssueSnapshot, bool) {
	for _, obs := range observations {
		if obs.Repo != repo {
			continue
		}
		for _, issue := range obs.Issues {
			if issue.Number == number {
				return issue, true
			}
		}
	}
	return observe.IssueSnapshot{}, false
}

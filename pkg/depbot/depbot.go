// Package depbot handles automated dependency-bump pull requests: the
// safety-gated auto-merge path and the advisory review path for major
// bumps.
package depbot

import (
	"context"
	"fmt"

	"caretaker/pkg/codectx"
	"caretaker/pkg/config"
	"caretaker/pkg/forge"
	"caretaker/pkg/llm"
	"caretaker/pkg/logx"
	"caretaker/pkg/observe"
	"caretaker/pkg/persistence"
)

// Handler gates and executes dependency-upgrade merges.
type Handler struct {
	forge  forge.API
	store  *persistence.Store
	model  llm.Client
	code   *codectx.Builder
	cfg    config.AutomergeConfig
	dryRun bool
	logger *logx.Logger
}

// NewHandler creates a dependency-upgrade handler.
func NewHandler(api forge.API, store *persistence.Store, model llm.Client, code *codectx.Builder, cfg config.AutomergeConfig, dryRun bool) *Handler {
	return &Handler{
		forge:  api,
		store:  store,
		model:  model,
		code:   code,
		cfg:    cfg,
		dryRun: dryRun,
		logger: logx.NewLogger("depbot"),
	}
}

// HandleMerge runs the ordered safety gates and, when every gate passes,
// approves and squash-merges the PR, recording it as auto-merged. Each
// failed gate returns a named reason; no gate failure is ever a panic.
func (h *Handler) HandleMerge(ctx context.Context, repo string, pr observe.PRSnapshot) (string, error) {
	if !pr.IsDependabot {
		return "", fmt.Errorf("not a Dependabot PR (author %s)", pr.Author)
	}
	if pr.Draft {
		return "", fmt.Errorf("PR #%d is a draft", pr.Number)
	}
	if h.cfg.RequireCIPass && pr.CIStatus != observe.CISuccess {
		return "", fmt.Errorf("CI status is %s, not success", pr.CIStatus)
	}
	if !pr.Mergeable {
		return "", fmt.Errorf("PR #%d is not mergeable", pr.Number)
	}
	if !h.bumpAllowed(pr.VersionBump) {
		return "", fmt.Errorf("version bump %s is not allowed by policy", pr.VersionBump)
	}
	merged, err := h.store.IsAutoMerged(repo, pr.Number)
	if err != nil {
		return "", err
	}
	if merged {
		return "", fmt.Errorf("PR #%d already auto-merged", pr.Number)
	}

	if h.dryRun {
		return fmt.Sprintf("dry-run: would approve and squash-merge %s#%d (%s bump)",
			repo, pr.Number, pr.VersionBump), nil
	}

	// Approval is best-effort; some repos have no required reviews and some
	// tokens cannot review, neither should block the merge.
	if err := h.forge.CreatePullReview(ctx, repo, pr.Number, forge.ReviewEventApprove,
		"Automated approval: "+string(pr.VersionBump)+" dependency bump with passing CI."); err != nil {
		h.logger.Warn("Approval of %s#%d failed, merging anyway: %v", repo, pr.Number, err)
	}

	result, err := h.forge.MergePull(ctx, repo, pr.Number, forge.MergeMethodSquash)
	if err != nil {
		return "", fmt.Errorf("merge failed: %w", err)
	}
	if err := h.store.MarkAutoMerged(repo, pr.Number); err != nil {
		return "", fmt.Errorf("merged but failed to record auto-merge: %w", err)
	}

	h.logger.Info("Auto-merged %s#%d at %s", repo, pr.Number, result.SHA)
	return fmt.Sprintf("squash-merged %s#%d (%s bump) at %s", repo, pr.Number, pr.VersionBump, result.SHA), nil
}

// bumpAllowed applies the per-class allow flags. Unknown bumps are never
// allowed; major bumps only when explicitly enabled.
func (h *Handler) bumpAllowed(bump observe.VersionBump) bool {
	switch bump {
	case observe.BumpPatch:
		return h.cfg.AllowPatch
	case observe.BumpMinor:
		return h.cfg.AllowMinor
	case observe.BumpMajor:
		return h.cfg.AllowMajor
	default:
		return false
	}
}

// ReviewMajorBump never merges. It combines the PR diff with the cached
// repository summary and asks the model for a safety opinion the owner can
// act on.
func (h *Handler) ReviewMajorBump(ctx context.Context, repo string, pr observe.PRSnapshot) (string, error) {
	diff, err := h.forge.GetPullDiff(ctx, repo, pr.Number)
	if err != nil {
		return "", fmt.Errorf("failed to fetch diff: %w", err)
	}
	if len(diff) > 20000 {
		diff = diff[:20000]
	}

	summary := ""
	if h.code != nil {
		if s, err := h.code.Summary(ctx, repo); err == nil {
			summary = s
		}
	}

	prompt := fmt.Sprintf(
		"A major dependency upgrade is proposed for %s.\n\n%s\n\nPR #%d: %s\n\nDiff:\n%s\n\n"+
			"Assess the risk of this upgrade for the repository owner: likely breaking "+
			"changes, affected areas, and whether a human should test before merging. "+
			"Reply in a short paragraph.",
		repo, summary, pr.Number, pr.Title, diff,
	)
	result, err := h.model.Chat(ctx, llm.NewRequest([]llm.Message{llm.NewUserMessage(prompt)}, llm.ComplexityMedium))
	if err != nil {
		return "", fmt.Errorf("review model call failed: %w", err)
	}
	if result.Blocked || result.Content == "" {
		return fmt.Sprintf("major bump %s#%d: no assessment available, manual review required", repo, pr.Number), nil
	}
	return fmt.Sprintf("major bump %s#%d assessment: %s", repo, pr.Number, result.Content), nil
}

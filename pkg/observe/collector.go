package observe

import (
	"context"
	"sort"
	"time"

	"caretaker/pkg/config"
	"caretaker/pkg/forge"
	"caretaker/pkg/logx"
	"caretaker/pkg/persistence"
)

// Collector gathers repository snapshots from the forge and local store.
type Collector struct {
	forge  forge.API
	store  *persistence.Store
	limits config.LimitsConfig
	logger *logx.Logger
	now    func() time.Time
}

// NewCollector creates an observation collector.
func NewCollector(api forge.API, store *persistence.Store, limits config.LimitsConfig) *Collector {
	return &Collector{
		forge:  api,
		store:  store,
		limits: limits,
		logger: logx.NewLogger("observe"),
		now:    time.Now,
	}
}

// CollectAll observes every configured repository. A repository whose
// observation fails is logged and skipped; one broken repo never blocks the
// others.
func (c *Collector) CollectAll(ctx context.Context, repos []string) []*RepoObservation {
	observations := make([]*RepoObservation, 0, len(repos))
	for _, repo := range repos {
		obs, err := c.Collect(ctx, repo)
		if err != nil {
			c.logger.Warn("Skipping %s: observation failed: %v", repo, err)
			continue
		}
		observations = append(observations, obs)
	}
	return observations
}

// Collect builds the snapshot for one repository.
func (c *Collector) Collect(ctx context.Context, repo string) (*RepoObservation, error) {
	now := c.now().UTC()
	obs := &RepoObservation{Repo: repo, ObservedAt: now}

	pulls, err := c.forge.ListPulls(ctx, repo, "open")
	if err != nil {
		return nil, err
	}
	for i := range pulls {
		snapshot, err := c.snapshotPR(ctx, repo, &pulls[i], now)
		if err != nil {
			// A single PR failing to resolve should not lose the repo.
			c.logger.Warn("Failed to snapshot %s#%d: %v", repo, pulls[i].Number, err)
			continue
		}
		obs.PullRequests = append(obs.PullRequests, *snapshot)
		c.trackPR(repo, snapshot, now)
	}

	issues, err := c.forge.ListIssues(ctx, repo, "open")
	if err != nil {
		return nil, err
	}
	for i := range issues {
		issue := &issues[i]
		if issue.IsPullRequest() {
			continue
		}
		responded, err := c.store.HasRespondedToIssue(repo, issue.Number)
		if err != nil {
			return nil, err
		}
		obs.Issues = append(obs.Issues, IssueSnapshot{
			Number:       issue.Number,
			Title:        issue.Title,
			Author:       issue.User.Login,
			Labels:       labelNames(issue.Labels),
			Body:         truncate(issue.Body, maxBodyChars),
			AgeHours:     now.Sub(issue.CreatedAt).Hours(),
			CommentCount: issue.Comments,
			HasResponded: responded,
		})
	}

	c.classify(obs)

	if summary, _, ok, err := c.store.GetRepoSummary(repo); err == nil && ok {
		obs.RepoSummary = summary
	}
	if count, err := c.store.CountFileEntries(repo); err == nil {
		obs.TrackedFileCount = count
	}
	return obs, nil
}

func (c *Collector) snapshotPR(ctx context.Context, repo string, pr *forge.PullRequest, now time.Time) (*PRSnapshot, error) {
	// The list endpoint omits mergeability and size counters.
	detail, err := c.forge.GetPull(ctx, repo, pr.Number)
	if err != nil {
		return nil, err
	}

	ciStatus, checks, err := c.resolveCI(ctx, repo, detail.Head.SHA)
	if err != nil {
		return nil, err
	}

	reviews, err := c.forge.ListReviews(ctx, repo, pr.Number)
	if err != nil {
		return nil, err
	}

	return &PRSnapshot{
		Number:       detail.Number,
		Title:        detail.Title,
		Author:       detail.User.Login,
		State:        detail.State,
		Draft:        detail.Draft,
		Mergeable:    detail.Mergeable != nil && *detail.Mergeable,
		Merged:       detail.Merged,
		Labels:       labelNames(detail.Labels),
		HeadSHA:      detail.Head.SHA,
		BaseBranch:   detail.Base.Ref,
		CIStatus:     ciStatus,
		Checks:       checks,
		IsDependabot: IsDependencyBot(detail.User.Login),
		VersionBump:  ParseVersionBump(detail.Title),
		ReviewState:  resolveReviewState(reviews),
		Additions:    detail.Additions,
		Deletions:    detail.Deletions,
		ChangedFiles: detail.ChangedFiles,
		AgeHours:     now.Sub(detail.CreatedAt).Hours(),
	}, nil
}

// resolveCI determines overall CI state from check runs, falling back to the
// legacy combined status when the commit has no check runs at all.
func (c *Collector) resolveCI(ctx context.Context, repo, ref string) (CIStatus, []CheckDetail, error) {
	runs, err := c.forge.GetCheckRuns(ctx, repo, ref)
	if err != nil {
		return CIUnknown, nil, err
	}

	if len(runs.CheckRuns) == 0 {
		combined, err := c.forge.GetCombinedStatus(ctx, repo, ref)
		if err != nil {
			return CIUnknown, nil, err
		}
		if len(combined.Statuses) == 0 {
			return CIUnknown, nil, nil
		}
		switch combined.State {
		case "success":
			return CISuccess, nil, nil
		case "failure", "error":
			return CIFailure, nil, nil
		default:
			return CIPending, nil, nil
		}
	}

	checks := make([]CheckDetail, 0, len(runs.CheckRuns))
	status := CISuccess
	for _, run := range runs.CheckRuns {
		checks = append(checks, CheckDetail{Name: run.Name, Status: run.Status, Conclusion: run.Conclusion})
		if run.Status != "completed" {
			if status != CIFailure {
				status = CIPending
			}
			continue
		}
		switch run.Conclusion {
		case "success", "neutral", "skipped":
		default:
			status = CIFailure
		}
	}
	return status, checks, nil
}

// resolveReviewState returns the decision of the most recently submitted
// substantive review. Comment-only reviews never change the decision.
func resolveReviewState(reviews []forge.Review) ReviewState {
	var latest *forge.Review
	for i := range reviews {
		review := &reviews[i]
		if review.State != "APPROVED" && review.State != "CHANGES_REQUESTED" {
			continue
		}
		if latest == nil || review.SubmittedAt.After(latest.SubmittedAt) {
			latest = review
		}
	}
	if latest == nil {
		return ReviewPending
	}
	if latest.State == "APPROVED" {
		return ReviewApproved
	}
	return ReviewChangesRequested
}

func (c *Collector) classify(obs *RepoObservation) {
	staleAfter := float64(c.limits.StalePRHours)
	unansweredAfter := float64(c.limits.UnansweredIssueHours)

	for _, pr := range obs.PullRequests {
		if pr.IsDependabot {
			obs.DependencyPRs = append(obs.DependencyPRs, pr)
		}
		if pr.CIStatus == CIFailure {
			obs.FailingPRs = append(obs.FailingPRs, pr)
		}
		if !pr.Draft && pr.AgeHours > staleAfter {
			obs.StalePRs = append(obs.StalePRs, pr)
		}
	}
	for _, issue := range obs.Issues {
		if issue.CommentCount == 0 && !issue.HasResponded && issue.AgeHours > unansweredAfter {
			obs.UnansweredIssues = append(obs.UnansweredIssues, issue)
		}
	}

	// Oldest first so attention goes to what has waited longest.
	sort.SliceStable(obs.StalePRs, func(i, j int) bool {
		return obs.StalePRs[i].AgeHours > obs.StalePRs[j].AgeHours
	})
	sort.SliceStable(obs.UnansweredIssues, func(i, j int) bool {
		return obs.UnansweredIssues[i].AgeHours > obs.UnansweredIssues[j].AgeHours
	})
}

func (c *Collector) trackPR(repo string, pr *PRSnapshot, now time.Time) {
	err := c.store.UpsertPRTracking(&persistence.PRTracking{
		Repo:         repo,
		Number:       pr.Number,
		Title:        pr.Title,
		Author:       pr.Author,
		State:        pr.State,
		CIStatus:     string(pr.CIStatus),
		VersionBump:  string(pr.VersionBump),
		IsDependabot: pr.IsDependabot,
		LastSeenAt:   now,
	})
	if err != nil {
		c.logger.Warn("Failed to track %s#%d: %v", repo, pr.Number, err)
	}
}

// Snapshots carry a bounded body; the full text is one forge call away.
const maxBodyChars = 500

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}

func labelNames(labels []forge.Label) []string {
	if len(labels) == 0 {
		return nil
	}
	names := make([]string, 0, len(labels))
	for _, label := range labels {
		names = append(names, label.Name)
	}
	return names
}

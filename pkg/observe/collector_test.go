package observe

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretaker/pkg/config"
	"caretaker/pkg/forge"
	"caretaker/pkg/persistence"
)

func newTestStore(t *testing.T) *persistence.Store {
	t.Helper()
	db, err := persistence.InitializeDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return persistence.NewStore(db)
}

func newTestCollector(t *testing.T, mock *forge.Mock) *Collector {
	t.Helper()
	collector := NewCollector(mock, newTestStore(t), config.LimitsConfig{
		StalePRHours:         48,
		UnansweredIssueHours: 24,
	})
	collector.now = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return collector
}

func TestCollectClassifiesWork(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mock := forge.NewMock()
	mock.Pulls["owner/repo"] = []forge.PullRequest{
		{
			Number: 1, Title: "Bump serde from 1.0.1 to 1.0.2",
			User: forge.Account{Login: "dependabot[bot]"},
			Head: forge.GitRef{SHA: "aaa"}, Base: forge.GitRef{Ref: "main"},
			State: "open", CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			Number: 2, Title: "Refactor parser",
			User: forge.Account{Login: "alice"},
			Head: forge.GitRef{SHA: "bbb"}, Base: forge.GitRef{Ref: "main"},
			State: "open", CreatedAt: now.Add(-100 * time.Hour),
		},
	}
	mock.Checks[forge.RefKey("owner/repo", "aaa")] = &forge.CheckRunList{
		CheckRuns: []forge.CheckRun{
			{Name: "test", Status: "completed", Conclusion: "success"},
			{Name: "lint", Status: "completed", Conclusion: "skipped"},
		},
	}
	mock.Checks[forge.RefKey("owner/repo", "bbb")] = &forge.CheckRunList{
		CheckRuns: []forge.CheckRun{
			{Name: "test", Status: "completed", Conclusion: "failure"},
		},
	}
	mock.Issues["owner/repo"] = []forge.Issue{
		{
			Number: 7, Title: "Crash on startup", User: forge.Account{Login: "bob"},
			CreatedAt: now.Add(-30 * time.Hour),
		},
		{
			Number: 8, Title: "Fresh question", User: forge.Account{Login: "carol"},
			CreatedAt: now.Add(-1 * time.Hour),
		},
		{
			Number: 9, Title: "Actually a PR", User: forge.Account{Login: "dave"},
			CreatedAt:   now.Add(-50 * time.Hour),
			PullRequest: &forge.PullRequestMarker{URL: "x"},
		},
	}

	collector := newTestCollector(t, mock)
	obs, err := collector.Collect(context.Background(), "owner/repo")
	require.NoError(t, err)

	require.Len(t, obs.PullRequests, 2)
	assert.Equal(t, CISuccess, obs.PullRequests[0].CIStatus)
	assert.Equal(t, BumpPatch, obs.PullRequests[0].VersionBump)
	assert.True(t, obs.PullRequests[0].IsDependabot)
	assert.Equal(t, CIFailure, obs.PullRequests[1].CIStatus)

	require.Len(t, obs.DependencyPRs, 1)
	assert.Equal(t, 1, obs.DependencyPRs[0].Number)
	require.Len(t, obs.FailingPRs, 1)
	assert.Equal(t, 2, obs.FailingPRs[0].Number)
	require.Len(t, obs.StalePRs, 1)
	assert.Equal(t, 2, obs.StalePRs[0].Number)

	// PR-marker issues are excluded, fresh issues are not unanswered yet.
	require.Len(t, obs.Issues, 2)
	require.Len(t, obs.UnansweredIssues, 1)
	assert.Equal(t, 7, obs.UnansweredIssues[0].Number)
}

func TestCollectFallsBackToCombinedStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mock := forge.NewMock()
	mock.Pulls["owner/repo"] = []forge.PullRequest{
		{
			Number: 3, Title: "Fix typo", User: forge.Account{Login: "alice"},
			Head: forge.GitRef{SHA: "ccc"}, State: "open",
			CreatedAt: now.Add(-time.Hour),
		},
	}
	mock.Statuses[forge.RefKey("owner/repo", "ccc")] = &forge.CombinedStatus{
		State:    "failure",
		Statuses: []forge.StatusContext{{Context: "ci/jenkins", State: "failure"}},
	}

	collector := newTestCollector(t, mock)
	obs, err := collector.Collect(context.Background(), "owner/repo")
	require.NoError(t, err)

	require.Len(t, obs.PullRequests, 1)
	assert.Equal(t, CIFailure, obs.PullRequests[0].CIStatus)
}

func TestCollectNoChecksNoStatuses(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mock := forge.NewMock()
	mock.Pulls["owner/repo"] = []forge.PullRequest{
		{
			Number: 4, Title: "Docs", User: forge.Account{Login: "alice"},
			Head: forge.GitRef{SHA: "ddd"}, State: "open",
			CreatedAt: now.Add(-time.Hour),
		},
	}
	mock.Statuses[forge.RefKey("owner/repo", "ddd")] = &forge.CombinedStatus{State: "pending"}

	collector := newTestCollector(t, mock)
	obs, err := collector.Collect(context.Background(), "owner/repo")
	require.NoError(t, err)
	assert.Equal(t, CIUnknown, obs.PullRequests[0].CIStatus)
}

func TestResolveReviewState(t *testing.T) {
	earlier := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	assert.Equal(t, ReviewPending, resolveReviewState(nil))
	assert.Equal(t, ReviewPending, resolveReviewState([]forge.Review{
		{State: "COMMENTED", SubmittedAt: later},
	}))
	assert.Equal(t, ReviewApproved, resolveReviewState([]forge.Review{
		{State: "CHANGES_REQUESTED", SubmittedAt: earlier},
		{State: "APPROVED", SubmittedAt: later},
	}))
	assert.Equal(t, ReviewChangesRequested, resolveReviewState([]forge.Review{
		{State: "APPROVED", SubmittedAt: earlier},
		{State: "CHANGES_REQUESTED", SubmittedAt: later},
		{State: "COMMENTED", SubmittedAt: later.Add(time.Hour)},
	}))
}

func TestCollectAllSkipsBrokenRepo(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	good := forge.NewMock()
	good.Issues["good/repo"] = []forge.Issue{
		{Number: 1, Title: "hi", User: forge.Account{Login: "x"}, CreatedAt: now},
	}

	collector := newTestCollector(t, good)
	// The broken repo has no fixtures and ListPulls is forced to fail.
	good.Fail["ListPulls"] = forge.NewError(forge.KindTransient, 502, "bad gateway")
	observations := collector.CollectAll(context.Background(), []string{"bad/repo", "good/repo"})
	assert.Empty(t, observations)

	delete(good.Fail, "ListPulls")
	observations = collector.CollectAll(context.Background(), []string{"good/repo"})
	require.Len(t, observations, 1)
	assert.Equal(t, "good/repo", observations[0].Repo)
}

func TestCollectTruncatesIssueBody(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mock := forge.NewMock()
	mock.Issues["owner/repo"] = []forge.Issue{
		{
			Number: 3, Title: "wall of text",
			Body: strings.Repeat("x", maxBodyChars*3),
			User: forge.Account{Login: "alice"}, CreatedAt: now.Add(-time.Hour),
		},
	}

	collector := newTestCollector(t, mock)
	obs, err := collector.Collect(context.Background(), "owner/repo")
	require.NoError(t, err)
	require.Len(t, obs.Issues, 1)
	assert.Len(t, obs.Issues[0].Body, maxBodyChars+len("..."))
	assert.True(t, strings.HasSuffix(obs.Issues[0].Body, "..."))
}

func TestCollectRecordsTracking(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mock := forge.NewMock()
	mock.Pulls["owner/repo"] = []forge.PullRequest{
		{
			Number: 5, Title: "Bump x from 1.0.0 to 2.0.0",
			User: forge.Account{Login: "dependabot[bot]"},
			Head: forge.GitRef{SHA: "eee"}, State: "open",
			CreatedAt: now.Add(-time.Hour),
		},
	}
	mock.Checks[forge.RefKey("owner/repo", "eee")] = &forge.CheckRunList{
		CheckRuns: []forge.CheckRun{{Name: "test", Status: "in_progress"}},
	}

	store := newTestStore(t)
	collector := NewCollector(mock, store, config.LimitsConfig{StalePRHours: 48, UnansweredIssueHours: 24})
	_, err := collector.Collect(context.Background(), "owner/repo")
	require.NoError(t, err)

	merged, err := store.IsAutoMerged("owner/repo", 5)
	require.NoError(t, err)
	assert.False(t, merged)
}

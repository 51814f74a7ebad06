package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretaker/pkg/codectx"
	"caretaker/pkg/config"
	"caretaker/pkg/depbot"
	"caretaker/pkg/forge"
	"caretaker/pkg/llm"
	"caretaker/pkg/notify"
	"caretaker/pkg/observe"
	"caretaker/pkg/persistence"
	"caretaker/pkg/planner"
	"caretaker/pkg/responder"
)

func newTestExecutor(t *testing.T, mock *forge.Mock, model llm.Client, dryRun bool) (*Executor, *notify.Mock) {
	t.Helper()
	db, err := persistence.InitializeDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := persistence.NewStore(db)

	automerge := config.AutomergeConfig{RequireCIPass: true, AllowPatch: true, AllowMinor: true}
	depbotHandler := depbot.NewHandler(mock, store, model, nil, automerge, dryRun)
	issueResponder := responder.NewResponder(mock, store, model, nil, "caretaker-bot", 168, dryRun)
	notifier := notify.NewMock()
	return NewExecutor(mock, depbotHandler, issueResponder, notifier, nil, dryRun), notifier
}

func testObservations() []*observe.RepoObservation {
	return []*observe.RepoObservation{{
		Repo: "o/r",
		PullRequests: []observe.PRSnapshot{
			{
				Number: 1, Title: "Bump x from 1.0.0 to 1.0.1",
				Author: "dependabot[bot]", IsDependabot: true,
				Mergeable: true, CIStatus: observe.CISuccess,
				VersionBump: observe.BumpPatch,
			},
			{
				Number: 2, Title: "Bump y from 1.0.0 to 2.0.0",
				Author: "dependabot[bot]", IsDependabot: true,
				Mergeable: true, CIStatus: observe.CISuccess,
				VersionBump: observe.BumpMajor,
			},
		},
		Issues: []observe.IssueSnapshot{
			{Number: 5, Title: "question", AgeHours: 2},
		},
	}}
}

func TestExecuteMergeAndRespond(t *testing.T) {
	mock := forge.NewMock()
	model := llm.NewMockClient(llm.Result{Content: "Here is an answer."})
	exec, _ := newTestExecutor(t, mock, model, false)

	outcomes := exec.Execute(context.Background(), []planner.Action{
		{Type: planner.ActionMergePR, Repo: "o/r", Number: 1, Priority: 80},
		{Type: planner.ActionRespondIssue, Repo: "o/r", Number: 5, Priority: 60},
	}, testObservations())

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Success, outcomes[0].Err)
	assert.True(t, outcomes[1].Success, outcomes[1].Err)
	assert.Equal(t, []string{"o/r#1"}, mock.Merged)
	assert.Len(t, mock.CreatedComments, 1)
}

func TestExecuteFailureDoesNotAbortSiblings(t *testing.T) {
	mock := forge.NewMock()
	exec, _ := newTestExecutor(t, mock, llm.NewMockClient(), false)

	outcomes := exec.Execute(context.Background(), []planner.Action{
		// Number 99 is not in the observation; this fails.
		{Type: planner.ActionMergePR, Repo: "o/r", Number: 99},
		{Type: planner.ActionSkip, Reasoning: "nothing to do"},
	}, testObservations())

	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].Err, "not present")
	assert.True(t, outcomes[1].Success)
	assert.Contains(t, outcomes[1].Result, "nothing to do")
}

func TestExecuteReviewMajorBumpNotifiesOwner(t *testing.T) {
	mock := forge.NewMock()
	mock.Diffs[forge.PRKey("o/r", 2)] = "big diff"
	model := llm.NewMockClient(llm.Result{Content: "Risky upgrade, test first."})
	exec, notifier := newTestExecutor(t, mock, model, false)

	outcomes := exec.Execute(context.Background(), []planner.Action{
		{Type: planner.ActionReviewPR, Repo: "o/r", Number: 2},
	}, testObservations())

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success, outcomes[0].Err)
	assert.Contains(t, outcomes[0].Result, "Risky upgrade")
	require.Len(t, notifier.Sent, 1)
	assert.Empty(t, mock.Merged, "review path must never merge")
}

func TestExecuteOrdinaryReviewPostsComment(t *testing.T) {
	mock := forge.NewMock()
	exec, _ := newTestExecutor(t, mock, llm.NewMockClient(), false)

	outcomes := exec.Execute(context.Background(), []planner.Action{
		{Type: planner.ActionReviewPR, Repo: "o/r", Number: 7, Reasoning: "looks fine"},
	}, testObservations())

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success, outcomes[0].Err)
	require.Len(t, mock.CreatedReviews, 1)
	assert.Equal(t, forge.ReviewEventComment, mock.CreatedReviews[0].Event)
}

func TestExecuteNotifyOwner(t *testing.T) {
	exec, notifier := newTestExecutor(t, forge.NewMock(), llm.NewMockClient(), false)

	outcomes := exec.Execute(context.Background(), []planner.Action{
		{Type: planner.ActionNotifyOwner, Target: "CI is red on o/r#2"},
	}, nil)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, []string{"CI is red on o/r#2"}, notifier.Sent)
}

func TestExecuteNotifyDeliveryFailure(t *testing.T) {
	exec, notifier := newTestExecutor(t, forge.NewMock(), llm.NewMockClient(), false)
	notifier.SendOK = false

	outcomes := exec.Execute(context.Background(), []planner.Action{
		{Type: planner.ActionNotifyOwner, Target: "hello"},
	}, nil)

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].Err, "delivery failed")
}

func TestExecuteDryRunMakesNoMutatingCalls(t *testing.T) {
	mock := forge.NewMock()
	model := llm.NewMockClient(llm.Result{Content: "answer"})
	exec, _ := newTestExecutor(t, mock, model, true)

	outcomes := exec.Execute(context.Background(), []planner.Action{
		{Type: planner.ActionMergePR, Repo: "o/r", Number: 1},
		{Type: planner.ActionApprovePR, Repo: "o/r", Number: 1},
		{Type: planner.ActionCommentPR, Repo: "o/r", Number: 1, Reasoning: "hi"},
		{Type: planner.ActionRespondIssue, Repo: "o/r", Number: 5},
	}, testObservations())

	for _, outcome := range outcomes {
		assert.True(t, outcome.Success, outcome.Err)
		assert.Contains(t, outcome.Result, "dry-run")
	}
	assert.Empty(t, mock.Merged)
	assert.Empty(t, mock.CreatedReviews)
	assert.Empty(t, mock.CreatedComments)
}

func TestExecuteCommentWithoutBodyFails(t *testing.T) {
	exec, _ := newTestExecutor(t, forge.NewMock(), llm.NewMockClient(), false)
	outcomes := exec.Execute(context.Background(), []planner.Action{
		{Type: planner.ActionCommentPR, Repo: "o/r", Number: 1},
	}, nil)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
}

func TestExecuteRefreshContextRefreshesTree(t *testing.T) {
	mock := forge.NewMock()
	mock.Trees[forge.RefKey("o/r", "HEAD")] = &forge.Tree{
		SHA:  "root1",
		Tree: []forge.TreeEntry{{Path: "main.go", Type: "blob", SHA: "h1", Size: 100}},
	}

	db, err := persistence.InitializeDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := persistence.NewStore(db)

	model := llm.NewMockClient()
	code := codectx.NewBuilder(mock, store, model, config.DefaultConfig().CodeContext)
	exec := NewExecutor(mock, nil, nil, notify.NewMock(), code, false)

	outcomes := exec.Execute(context.Background(), []planner.Action{
		{Type: planner.ActionRefreshContext, Repo: "o/r"},
		{Type: planner.ActionRefreshContext},
	}, nil)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].Result, "refreshed")
	assert.True(t, outcomes[1].Success)
	assert.Contains(t, outcomes[1].Result, "acknowledged")

	entries, err := store.ListFileEntries("o/r")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

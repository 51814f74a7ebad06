package responder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretaker/pkg/forge"
	"caretaker/pkg/llm"
	"caretaker/pkg/observe"
	"caretaker/pkg/persistence"
)

func newTestStore(t *testing.T) *persistence.Store {
	t.Helper()
	db, err := persistence.InitializeDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return persistence.NewStore(db)
}

func TestNeedsCodeContext(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"The build fails with a panic in the parser", true},
		{"Getting an error when I import the package", true},
		{"How do I install this?", false},
		{"Love the project, thanks!", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NeedsCodeContext(tt.text), tt.text)
	}
}

func TestRespondPostsAndRecords(t *testing.T) {
	mock := forge.NewMock()
	store := newTestStore(t)
	model := llm.NewMockClient(llm.Result{Content: "Thanks for the report. Try upgrading first."})
	responder := NewResponder(mock, store, model, nil, "caretaker-bot", 168, false)

	issue := observe.IssueSnapshot{Number: 5, Title: "How do I configure this?", AgeHours: 10}
	result, err := responder.Respond(context.Background(), "o/r", issue)
	require.NoError(t, err)
	assert.Contains(t, result, "responded to o/r#5")

	require.Len(t, mock.CreatedComments, 1)
	assert.Equal(t, 5, mock.CreatedComments[0].Number)

	responded, err := store.HasRespondedToIssue("o/r", 5)
	require.NoError(t, err)
	assert.True(t, responded)
}

func TestRespondSkipsAlreadyAnswered(t *testing.T) {
	mock := forge.NewMock()
	store := newTestStore(t)
	require.NoError(t, store.RecordPostedComment("o/r", 5, "hash"))
	responder := NewResponder(mock, store, llm.NewMockClient(), nil, "caretaker-bot", 168, false)

	_, err := responder.Respond(context.Background(), "o/r", observe.IssueSnapshot{Number: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already responded")
	assert.Empty(t, mock.CreatedComments)
}

func TestRespondSkipsTooOld(t *testing.T) {
	mock := forge.NewMock()
	responder := NewResponder(mock, newTestStore(t), llm.NewMockClient(), nil, "caretaker-bot", 168, false)

	_, err := responder.Respond(context.Background(), "o/r", observe.IssueSnapshot{Number: 6, AgeHours: 500})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "older than")
	assert.Empty(t, mock.CreatedComments)
}

func TestRespondDryRunPostsNothing(t *testing.T) {
	mock := forge.NewMock()
	store := newTestStore(t)
	model := llm.NewMockClient(llm.Result{Content: "An answer."})
	responder := NewResponder(mock, store, model, nil, "caretaker-bot", 168, true)

	result, err := responder.Respond(context.Background(), "o/r", observe.IssueSnapshot{Number: 7, AgeHours: 1})
	require.NoError(t, err)
	assert.Contains(t, result, "dry-run")
	assert.Empty(t, mock.CreatedComments)

	responded, err := store.HasRespondedToIssue("o/r", 7)
	require.NoError(t, err)
	assert.False(t, responded)
}

func TestRespondBlockedModelIsError(t *testing.T) {
	mock := forge.NewMock()
	model := llm.NewMockClient(llm.Result{Blocked: true, BlockReason: "safety"})
	responder := NewResponder(mock, newTestStore(t), model, nil, "caretaker-bot", 168, false)

	_, err := responder.Respond(context.Background(), "o/r", observe.IssueSnapshot{Number: 8, AgeHours: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response generated")
	assert.Empty(t, mock.CreatedComments)
}

func TestRespondIncludesDiscussion(t *testing.T) {
	mock := forge.NewMock()
	mock.Comments[forge.PRKey("o/r", 9)] = []forge.Comment{
		{User: forge.Account{Login: "alice"}, Body: "same here"},
	}
	model := llm.NewMockClient(llm.Result{Content: "Answer."})
	responder := NewResponder(mock, newTestStore(t), model, nil, "caretaker-bot", 168, false)

	_, err := responder.Respond(context.Background(), "o/r", observe.IssueSnapshot{Number: 9, Title: "t", AgeHours: 1})
	require.NoError(t, err)

	calls := model.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[0].Content, "alice: same here")
}

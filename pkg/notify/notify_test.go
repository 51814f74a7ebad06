package notify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleSendAlwaysDelivers(t *testing.T) {
	console := NewConsole("")
	assert.True(t, console.Send(context.Background(), "hello"))
}

func TestConsoleFetchUpdatesNoInbox(t *testing.T) {
	console := NewConsole("")
	updates, err := console.FetchUpdates(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, updates)

	console = NewConsole(filepath.Join(t.TempDir(), "missing.txt"))
	updates, err = console.FetchUpdates(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestConsoleFetchUpdatesReadsInbox(t *testing.T) {
	inbox := filepath.Join(t.TempDir(), "inbox.txt")
	require.NoError(t, os.WriteFile(inbox, []byte(
		"merge owner/repo#12\n\n# a comment line\nclose owner/repo#3 wontfix\n",
	), 0o644))

	console := NewConsole(inbox)
	updates, err := console.FetchUpdates(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "merge owner/repo#12", updates[0].Text)
	assert.Equal(t, "close owner/repo#3 wontfix", updates[1].Text)
	assert.NotEqual(t, updates[0].MessageID, updates[1].MessageID)

	// Identical content yields identical identifiers across reads.
	again, err := console.FetchUpdates(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, updates[0].MessageID, again[0].MessageID)
}

func TestConsoleFetchUpdatesLimit(t *testing.T) {
	inbox := filepath.Join(t.TempDir(), "inbox.txt")
	require.NoError(t, os.WriteFile(inbox, []byte("a\nb\nc\n"), 0o644))

	console := NewConsole(inbox)
	updates, err := console.FetchUpdates(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, updates, 2)
}

// Package notify is the owner-notification channel: outbound status
// messages to the operator and inbound operator messages for the command
// queue.
package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"caretaker/pkg/logx"
)

// Update is one inbound operator message.
type Update struct {
	MessageID string
	Text      string
	Timestamp time.Time
}

// Notifier is the two-way owner channel. Send is best-effort and reports
// delivery; FetchUpdates returns pending operator messages, newest last.
type Notifier interface {
	Send(ctx context.Context, text string) bool
	FetchUpdates(ctx context.Context, limit int) ([]Update, error)
}

// Console is a Notifier backed by stderr logging and an optional inbox
// file. Each non-empty line of the inbox is one operator message; message
// identifiers are content hashes, so re-reading the same file is
// deduplicated downstream.
type Console struct {
	inboxPath string
	logger    *logx.Logger
}

// NewConsole creates a console notifier. inboxPath may be empty when no
// operator input channel is configured.
func NewConsole(inboxPath string) *Console {
	return &Console{inboxPath: inboxPath, logger: logx.NewLogger("notify")}
}

// Send logs the notification. Console delivery cannot fail.
func (c *Console) Send(_ context.Context, text string) bool {
	c.logger.Info("OWNER NOTIFICATION: %s", text)
	return true
}

// FetchUpdates reads pending operator messages from the inbox file.
func (c *Console) FetchUpdates(_ context.Context, limit int) ([]Update, error) {
	if c.inboxPath == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(c.inboxPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	info, err := os.Stat(c.inboxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat inbox: %w", err)
	}
	modTime := info.ModTime().UTC()

	var updates []Update
	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if limit > 0 && len(updates) >= limit {
			break
		}
		updates = append(updates, Update{
			MessageID: messageID(i, line),
			Text:      line,
			Timestamp: modTime,
		})
	}
	return updates, nil
}

func messageID(line int, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", line, text)))
	return hex.EncodeToString(sum[:8])
}

// Mock is a scriptable Notifier for tests.
type Mock struct {
	Sent     []string
	Updates  []Update
	SendOK   bool
	FetchErr error
}

// NewMock creates a mock notifier that accepts every send.
func NewMock() *Mock {
	return &Mock{SendOK: true}
}

func (m *Mock) Send(_ context.Context, text string) bool {
	m.Sent = append(m.Sent, text)
	return m.SendOK
}

func (m *Mock) FetchUpdates(_ context.Context, limit int) ([]Update, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if limit > 0 && len(m.Updates) > limit {
		return m.Updates[:limit], nil
	}
	return m.Updates, nil
}

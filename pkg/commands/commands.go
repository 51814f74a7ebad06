// Package commands parses operator override messages into structured
// commands and feeds them to the planner as high-priority context.
package commands

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"caretaker/pkg/logx"
	"caretaker/pkg/notify"
)

// Recognized verbs.
const (
	VerbMerge   = "merge"
	VerbClose   = "close"
	VerbApprove = "approve"
	VerbReview  = "review"
	VerbLabel   = "label"
)

// Command is one parsed operator instruction.
type Command struct {
	Verb      string
	Repo      string
	Number    int
	Args      string
	MessageID string
	Timestamp time.Time
}

// Render returns the planner-facing text form of the command.
func (c Command) Render() string {
	if c.Args != "" {
		return fmt.Sprintf("%s %s#%d %s", c.Verb, c.Repo, c.Number, c.Args)
	}
	return fmt.Sprintf("%s %s#%d", c.Verb, c.Repo, c.Number)
}

var commandPattern = regexp.MustCompile(
	`(?i)^(merge|close|approve|review|label)\s+([\w.-]+/[\w.-]+)#(\d+)(?:\s+(.+))?$`,
)

// Parse parses one operator message. Returns false for anything outside
// the command grammar.
func Parse(text string) (Command, bool) {
	match := commandPattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return Command{}, false
	}
	number, err := strconv.Atoi(match[3])
	if err != nil {
		return Command{}, false
	}
	return Command{
		Verb:   strings.ToLower(match[1]),
		Repo:   match[2],
		Number: number,
		Args:   strings.TrimSpace(match[4]),
	}, true
}

// maxSeenIDs bounds the dedup set. When exceeded, the older half is
// discarded so the set never grows without bound.
const maxSeenIDs = 1000

// Queue polls the owner channel for new commands, deduplicating by message
// identifier.
type Queue struct {
	notifier notify.Notifier
	logger   *logx.Logger

	seen    map[string]int64
	seq     int64
	pending []Command
}

// NewQueue creates a command queue over the given owner channel.
func NewQueue(notifier notify.Notifier) *Queue {
	return &Queue{
		notifier: notifier,
		logger:   logx.NewLogger("commands"),
		seen:     make(map[string]int64),
	}
}

// Poll fetches new operator messages, parses them, and adds commands to
// the pending set. Messages already seen or outside the grammar are
// dropped. Fetch failures are logged, not fatal.
func (q *Queue) Poll(ctx context.Context) {
	updates, err := q.notifier.FetchUpdates(ctx, 50)
	if err != nil {
		q.logger.Warn("Failed to fetch owner updates: %v", err)
		return
	}
	for _, update := range updates {
		if _, dup := q.seen[update.MessageID]; dup {
			continue
		}
		q.seq++
		q.seen[update.MessageID] = q.seq

		command, ok := Parse(update.Text)
		if !ok {
			q.logger.Debug("Ignoring non-command message: %q", update.Text)
			continue
		}
		command.MessageID = update.MessageID
		command.Timestamp = update.Timestamp
		q.pending = append(q.pending, command)
		q.logger.Info("Queued owner command: %s", command.Render())
	}
	q.compactSeen()
}

// Pending returns queued commands without consuming them.
func (q *Queue) Pending() []Command {
	out := make([]Command, len(q.pending))
	copy(out, q.pending)
	return out
}

// Drain returns queued commands and clears the queue.
func (q *Queue) Drain() []Command {
	out := q.pending
	q.pending = nil
	return out
}

// Rendered returns the planner-facing text of pending commands.
func (q *Queue) Rendered() []string {
	if len(q.pending) == 0 {
		return nil
	}
	out := make([]string, 0, len(q.pending))
	for _, command := range q.pending {
		out = append(out, command.Render())
	}
	return out
}

// compactSeen halves the dedup set once it exceeds the cap, keeping the
// newer half by insertion order.
func (q *Queue) compactSeen() {
	if len(q.seen) <= maxSeenIDs {
		return
	}
	seqs := make([]int64, 0, len(q.seen))
	for _, seq := range q.seen {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	cutoff := seqs[len(seqs)/2]
	for id, seq := range q.seen {
		if seq < cutoff {
			delete(q.seen, id)
		}
	}
	q.logger.Debug("Compacted dedup set to %d identifiers", len(q.seen))
}

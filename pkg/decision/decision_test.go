package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"caretaker/pkg/config"
)

func newTestEngine() *Engine {
	return NewEngine("caretaker-bot", config.DecisionConfig{
		RespondThreshold: 50,
		NotifyThreshold:  20,
		RespondLabels:    []string{"question", "help wanted"},
		InterestKeywords: []string{"panic", "regression"},
		PriorityRepos:    []string{"owner/flagship"},
		MaxEventAgeHours: 72,
	})
}

func TestSelfAuthoredShortCircuits(t *testing.T) {
	engine := newTestEngine()
	decision := engine.Score(Event{
		Author: "Caretaker-Bot",
		Title:  "panic: regression @caretaker-bot",
		Labels: []string{"question"},
		Repo:   "owner/flagship",
	})

	assert.Equal(t, -100, decision.Score)
	assert.Equal(t, Skip, decision.Verdict)
	assert.Len(t, decision.Factors, 1)
	assert.Equal(t, "self_authored", decision.Factors[0].Name)
}

func TestScoreFactors(t *testing.T) {
	engine := newTestEngine()
	tests := []struct {
		name    string
		event   Event
		score   int
		verdict Verdict
	}{
		{
			name:    "mention alone responds",
			event:   Event{Author: "alice", Body: "hey @caretaker-bot can you look?"},
			score:   50,
			verdict: Respond,
		},
		{
			name:    "respond label counted once",
			event:   Event{Author: "alice", Labels: []string{"question", "help wanted"}},
			score:   30,
			verdict: Notify,
		},
		{
			name:    "keyword plus priority repo",
			event:   Event{Author: "alice", Title: "panic on startup", Repo: "owner/flagship"},
			score:   35,
			verdict: Notify,
		},
		{
			name:    "old event penalized",
			event:   Event{Author: "alice", Labels: []string{"question"}, AgeHours: 100},
			score:   10,
			verdict: Skip,
		},
		{
			name:    "already responded penalized",
			event:   Event{Author: "alice", Body: "@caretaker-bot ping", AlreadyResponded: true},
			score:   0,
			verdict: Skip,
		},
		{
			name:    "pull requests are out of scope",
			event:   Event{Author: "alice", Body: "@caretaker-bot merge this", IsPullRequest: true},
			score:   -50,
			verdict: Skip,
		},
		{
			name:    "nothing interesting",
			event:   Event{Author: "alice", Title: "typo in readme"},
			score:   0,
			verdict: Skip,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := engine.Score(tt.event)
			assert.Equal(t, tt.score, decision.Score)
			assert.Equal(t, tt.verdict, decision.Verdict)
		})
	}
}

func TestFactorsReturned(t *testing.T) {
	engine := newTestEngine()
	decision := engine.Score(Event{
		Author: "alice",
		Title:  "regression in parser",
		Labels: []string{"question"},
		Repo:   "owner/flagship",
	})

	names := make([]string, 0, len(decision.Factors))
	total := 0
	for _, factor := range decision.Factors {
		names = append(names, factor.Name)
		total += factor.Delta
	}
	assert.Equal(t, decision.Score, total)
	assert.Equal(t, []string{"respond_label", "interest_keyword", "priority_repo"}, names)
	assert.Equal(t, 65, decision.Score)
	assert.Equal(t, Respond, decision.Verdict)
}

// Package decision scores inbound issue and comment events into a
// respond/notify/skip verdict. Pure functions only; no network or model
// calls live here.
package decision

import (
	"strings"

	"caretaker/pkg/config"
)

// Verdict is the scored disposition of an event.
type Verdict string

const (
	Respond Verdict = "respond"
	Notify  Verdict = "notify"
	Skip    Verdict = "skip"
)

// Factor weights. Self-authored events short-circuit to skip without
// evaluating any other factor.
const (
	weightSelfAuthored     = -100
	weightMention          = 50
	weightRespondLabel     = 30
	weightInterestKeyword  = 20
	weightPriorityRepo     = 15
	weightTooOld           = -20
	weightAlreadyResponded = -50
	weightPullRequest      = -100
)

// Event is one inbound issue or comment to score.
type Event struct {
	Repo             string
	Number           int
	Title            string
	Body             string
	Author           string
	Labels           []string
	AgeHours         float64
	IsPullRequest    bool
	AlreadyResponded bool
}

// Factor is one scoring contribution, kept for observability.
type Factor struct {
	Name  string
	Delta int
}

// Decision is the scored result with its contributing factors.
type Decision struct {
	Score   int
	Verdict Verdict
	Factors []Factor
}

// Engine scores events against the configured thresholds and vocabularies.
type Engine struct {
	botUsername string
	cfg         config.DecisionConfig
}

// NewEngine creates a decision engine.
func NewEngine(botUsername string, cfg config.DecisionConfig) *Engine {
	return &Engine{botUsername: botUsername, cfg: cfg}
}

// Score evaluates one event. Factors are independent and summed; the verdict
// comes from comparing the total against the respond and notify thresholds.
func (e *Engine) Score(event Event) Decision {
	if strings.EqualFold(event.Author, e.botUsername) {
		return Decision{
			Score:   weightSelfAuthored,
			Verdict: Skip,
			Factors: []Factor{{Name: "self_authored", Delta: weightSelfAuthored}},
		}
	}

	var decision Decision
	text := strings.ToLower(event.Title + "\n" + event.Body)

	if strings.Contains(text, "@"+strings.ToLower(e.botUsername)) {
		decision.add("mentioned", weightMention)
	}
	if e.hasRespondLabel(event.Labels) {
		decision.add("respond_label", weightRespondLabel)
	}
	if e.hasInterestKeyword(text) {
		decision.add("interest_keyword", weightInterestKeyword)
	}
	if e.isPriorityRepo(event.Repo) {
		decision.add("priority_repo", weightPriorityRepo)
	}
	if e.cfg.MaxEventAgeHours > 0 && event.AgeHours > float64(e.cfg.MaxEventAgeHours) {
		decision.add("too_old", weightTooOld)
	}
	if event.AlreadyResponded {
		decision.add("already_responded", weightAlreadyResponded)
	}
	if event.IsPullRequest {
		decision.add("pull_request", weightPullRequest)
	}

	switch {
	case decision.Score >= e.cfg.RespondThreshold:
		decision.Verdict = Respond
	case decision.Score >= e.cfg.NotifyThreshold:
		decision.Verdict = Notify
	default:
		decision.Verdict = Skip
	}
	return decision
}

func (d *Decision) add(name string, delta int) {
	d.Score += delta
	d.Factors = append(d.Factors, Factor{Name: name, Delta: delta})
}

// hasRespondLabel reports whether any label is in the configured respond
// set. Counted once regardless of how many labels match.
func (e *Engine) hasRespondLabel(labels []string) bool {
	for _, label := range labels {
		for _, want := range e.cfg.RespondLabels {
			if strings.EqualFold(label, want) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) hasInterestKeyword(text string) bool {
	for _, keyword := range e.cfg.InterestKeywords {
		if keyword != "" && strings.Contains(text, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

func (e *Engine) isPriorityRepo(repo string) bool {
	for _, priority := range e.cfg.PriorityRepos {
		if strings.EqualFold(repo, priority) {
			return true
		}
	}
	return false
}

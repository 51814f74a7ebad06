// Package goals maintains the agent's persistent named objectives.
package goals

import (
	"fmt"

	"caretaker/pkg/logx"
	"caretaker/pkg/persistence"
)

// Tracker manages persistent goals backed by the store.
type Tracker struct {
	store  *persistence.Store
	logger *logx.Logger
}

// NewTracker creates a goal tracker.
func NewTracker(store *persistence.Store) *Tracker {
	return &Tracker{store: store, logger: logx.NewLogger("goals")}
}

// defaultGoals are seeded into an empty store on first run. Operators can
// add or abandon goals later; seeding never overwrites existing rows.
func defaultGoals() []persistence.Goal {
	return []persistence.Goal{
		{
			Name:        "dependencies-current",
			Description: "Keep dependency-update pull requests reviewed and merged promptly",
			Priority:    8,
			Status:      persistence.GoalStatusActive,
		},
		{
			Name:        "issues-triaged",
			Description: "Ensure new issues receive a substantive first response",
			Priority:    6,
			Status:      persistence.GoalStatusActive,
		},
		{
			Name:        "ci-green",
			Description: "Surface failing CI on open pull requests to the owner",
			Priority:    7,
			Status:      persistence.GoalStatusActive,
		},
		{
			Name:        "owner-informed",
			Description: "Tell the owner about anything that needs human judgment",
			Priority:    5,
			Status:      persistence.GoalStatusActive,
		},
		{
			Name:        "prs-unblocked",
			Description: "Flag stale pull requests so they do not rot unreviewed",
			Priority:    4,
			Status:      persistence.GoalStatusActive,
		},
		{
			Name:        "context-fresh",
			Description: "Keep the cached codebase understanding of each repository current",
			Priority:    3,
			Status:      persistence.GoalStatusActive,
		},
	}
}

// EnsureDefaults seeds the default goal set when no goals exist yet.
func (t *Tracker) EnsureDefaults() error {
	existing, err := t.store.ListGoals("")
	if err != nil {
		return fmt.Errorf("failed to list goals: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, goal := range defaultGoals() {
		goal := goal
		if err := t.store.UpsertGoal(&goal); err != nil {
			return fmt.Errorf("failed to seed goal %q: %w", goal.Name, err)
		}
	}
	t.logger.Info("Seeded %d default goals", len(defaultGoals()))
	return nil
}

// Active returns active goals ordered by descending priority.
func (t *Tracker) Active() ([]persistence.Goal, error) {
	return t.store.ListGoals(persistence.GoalStatusActive)
}

// Add creates or replaces a goal.
func (t *Tracker) Add(name, description string, priority int) error {
	return t.store.UpsertGoal(&persistence.Goal{
		Name:        name,
		Description: description,
		Priority:    priority,
		Status:      persistence.GoalStatusActive,
	})
}

// UpdateProgress records progress for a goal, clamped to [0, 1]. Reaching
// full progress completes the goal.
func (t *Tracker) UpdateProgress(name string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	status := persistence.GoalStatusActive
	if progress >= 1 {
		status = persistence.GoalStatusCompleted
	}
	return t.store.UpdateGoalProgress(name, progress, status)
}

// Abandon marks a goal abandoned, keeping its history.
func (t *Tracker) Abandon(name string) error {
	return t.store.UpdateGoalProgress(name, 0, persistence.GoalStatusAbandoned)
}

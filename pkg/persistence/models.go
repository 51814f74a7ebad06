package persistence

import "time"

// Goal statuses.
const (
	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"
	GoalStatusAbandoned = "abandoned"
)

// Goal represents a persistent named objective.
type Goal struct {
	Name        string
	Description string
	Priority    int
	Status      string
	Progress    float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ActionRecord is one row of the append-only action log.
type ActionRecord struct {
	ID           string
	Tick         int64
	ActionType   string
	Repo         string
	TargetNumber int
	Target       string
	Priority     int
	Reasoning    string
	Success      bool
	Result       string
	DurationMS   int64
	ExecutedAt   time.Time
}

// Learning is one reflection insight, append-only.
type Learning struct {
	ID         int64
	Tick       int64
	Category   string
	Insight    string
	Confidence float64
	CreatedAt  time.Time
}

// TickRecord summarizes one completed tick.
type TickRecord struct {
	Tick             int64
	StartedAt        time.Time
	FinishedAt       time.Time
	Observations     int
	PlannedActions   int
	ExecutedActions  int
	SucceededActions int
	Reasoning        string
	DurationMS       int64
}

// PRTracking is the local source of truth for per-PR state, including the
// auto-merge dedup flag.
type PRTracking struct {
	Repo         string
	Number       int
	Title        string
	Author       string
	State        string
	AutoMerged   bool
	CIStatus     string
	VersionBump  string
	IsDependabot bool
	LastSeenAt   time.Time
}

// FileEntry is one path in a repository's cached file tree.
type FileEntry struct {
	Repo     string
	Path     string
	BlobHash string
	Size     int64
}

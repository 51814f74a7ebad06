// Package observe builds point-in-time snapshots of a repository's open
// work and classifies it for planning.
package observe

import "time"

// CIStatus is the resolved CI state of a pull request head.
type CIStatus string

const (
	CIUnknown CIStatus = "unknown"
	CIPending CIStatus = "pending"
	CISuccess CIStatus = "success"
	CIFailure CIStatus = "failure"
)

// VersionBump classifies a dependency update parsed from a PR title.
type VersionBump string

const (
	BumpUnknown VersionBump = "unknown"
	BumpPatch   VersionBump = "patch"
	BumpMinor   VersionBump = "minor"
	BumpMajor   VersionBump = "major"
)

// ReviewState is the latest substantive review decision on a PR.
type ReviewState string

const (
	ReviewApproved         ReviewState = "approved"
	ReviewChangesRequested ReviewState = "changes_requested"
	ReviewPending          ReviewState = "pending"
)

// CheckDetail is one CI check's resolved state.
type CheckDetail struct {
	Name       string
	Status     string
	Conclusion string
}

// PRSnapshot is an immutable view of one open pull request at observation
// time.
type PRSnapshot struct {
	Number       int
	Title        string
	Author       string
	State        string
	Draft        bool
	Mergeable    bool
	Merged       bool
	Labels       []string
	HeadSHA      string
	BaseBranch   string
	CIStatus     CIStatus
	Checks       []CheckDetail
	IsDependabot bool
	VersionBump  VersionBump
	ReviewState  ReviewState
	Additions    int
	Deletions    int
	ChangedFiles int
	AgeHours     float64
}

// IssueSnapshot is an immutable view of one open issue at observation time.
type IssueSnapshot struct {
	Number       int
	Title        string
	Author       string
	Labels       []string
	Body         string
	AgeHours     float64
	CommentCount int
	HasResponded bool
}

// RepoObservation is the full snapshot of one repository for one tick.
// Never mutated after construction.
type RepoObservation struct {
	Repo             string
	ObservedAt       time.Time
	PullRequests     []PRSnapshot
	Issues           []IssueSnapshot
	DependencyPRs    []PRSnapshot
	FailingPRs       []PRSnapshot
	StalePRs         []PRSnapshot
	UnansweredIssues []IssueSnapshot
	RepoSummary      string
	TrackedFileCount int
}

package forge

import "time"

// Account identifies a forge user or bot.
type Account struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

// Label is an issue or pull-request label.
type Label struct {
	Name string `json:"name"`
}

// PullRequestMarker is present on issue payloads that are actually pull
// requests; the issues endpoint returns both.
type PullRequestMarker struct {
	URL string `json:"url"`
}

// Issue represents a forge issue.
type Issue struct {
	Number      int                `json:"number"`
	Title       string             `json:"title"`
	Body        string             `json:"body"`
	State       string             `json:"state"`
	User        Account            `json:"user"`
	Labels      []Label            `json:"labels"`
	Comments    int                `json:"comments"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	PullRequest *PullRequestMarker `json:"pull_request,omitempty"`
}

// IsPullRequest reports whether this issue payload is actually a PR.
func (i *Issue) IsPullRequest() bool {
	return i.PullRequest != nil
}

// GitRef is a branch reference on a pull request.
type GitRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// PullRequest represents a forge pull request.
type PullRequest struct {
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	State        string    `json:"state"`
	Draft        bool      `json:"draft"`
	Merged       bool      `json:"merged"`
	Mergeable    *bool     `json:"mergeable"`
	User         Account   `json:"user"`
	Labels       []Label   `json:"labels"`
	Head         GitRef    `json:"head"`
	Base         GitRef    `json:"base"`
	Additions    int       `json:"additions"`
	Deletions    int       `json:"deletions"`
	ChangedFiles int       `json:"changed_files"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Review is a pull-request review.
type Review struct {
	User        Account   `json:"user"`
	State       string    `json:"state"` // APPROVED, CHANGES_REQUESTED, COMMENTED, PENDING
	SubmittedAt time.Time `json:"submitted_at"`
}

// Comment is an issue or PR comment.
type Comment struct {
	ID        int64     `json:"id"`
	User      Account   `json:"user"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckRun is one granular CI check on a commit.
type CheckRun struct {
	Name       string `json:"name"`
	Status     string `json:"status"`     // queued, in_progress, completed
	Conclusion string `json:"conclusion"` // success, failure, neutral, skipped, ...
}

// CheckRunList is the check-runs endpoint response.
type CheckRunList struct {
	TotalCount int        `json:"total_count"`
	CheckRuns  []CheckRun `json:"check_runs"`
}

// StatusContext is one legacy commit status.
type StatusContext struct {
	Context string `json:"context"`
	State   string `json:"state"` // success, failure, error, pending
}

// CombinedStatus is the legacy combined-status endpoint response.
type CombinedStatus struct {
	State    string          `json:"state"` // success, failure, pending
	Statuses []StatusContext `json:"statuses"`
}

// TreeEntry is one entry of a recursive git tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // blob or tree
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

// Tree is the recursive file-tree endpoint response.
type Tree struct {
	SHA       string      `json:"sha"`
	Tree      []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// MergeResult is the merge endpoint response.
type MergeResult struct {
	SHA     string `json:"sha"`
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
}

// Review event values accepted by CreatePullReview.
const (
	ReviewEventApprove        = "APPROVE"
	ReviewEventRequestChanges = "REQUEST_CHANGES"
	ReviewEventComment        = "COMMENT"
)

// Merge methods accepted by MergePull.
const (
	MergeMethodSquash = "squash"
	MergeMethodMerge  = "merge"
	MergeMethodRebase = "rebase"
)

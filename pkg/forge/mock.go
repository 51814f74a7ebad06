package forge

import (
	"context"
	"fmt"
	"sync"
)

// Mock is an in-memory API fake for tests. Populate the maps with fixture
// data and inspect the recorded mutations after exercising the code under
// test. Zero-value maps behave as empty result sets.
type Mock struct {
	mu sync.Mutex

	Issues    map[string][]Issue          // repo -> issues
	Pulls     map[string][]PullRequest    // repo -> open PRs
	PullByKey map[string]*PullRequest     // "repo#number" -> detail
	Comments  map[string][]Comment        // "repo#number" -> comments
	Reviews   map[string][]Review         // "repo#number" -> reviews
	Checks    map[string]*CheckRunList    // "repo@ref" -> check runs
	Statuses  map[string]*CombinedStatus  // "repo@ref" -> combined status
	Trees     map[string]*Tree            // "repo@ref" -> tree
	Files     map[string]string           // "repo:path" -> content
	Diffs     map[string]string           // "repo#number" -> diff
	Fail      map[string]error            // method name -> forced error
	Remaining int

	CreatedComments []CreatedComment
	CreatedReviews  []CreatedReview
	Merged          []string
	LabelAdds       []LabelAdd
	Closed          []string
}

// CreatedComment records one CreateComment call.
type CreatedComment struct {
	Repo   string
	Number int
	Body   string
}

// CreatedReview records one CreatePullReview call.
type CreatedReview struct {
	Repo   string
	Number int
	Event  string
	Body   string
}

// LabelAdd records one AddLabels call.
type LabelAdd struct {
	Repo   string
	Number int
	Labels []string
}

// NewMock creates an empty forge mock.
func NewMock() *Mock {
	return &Mock{
		Issues:    make(map[string][]Issue),
		Pulls:     make(map[string][]PullRequest),
		PullByKey: make(map[string]*PullRequest),
		Comments:  make(map[string][]Comment),
		Reviews:   make(map[string][]Review),
		Checks:    make(map[string]*CheckRunList),
		Statuses:  make(map[string]*CombinedStatus),
		Trees:     make(map[string]*Tree),
		Files:     make(map[string]string),
		Diffs:     make(map[string]string),
		Fail:      make(map[string]error),
		Remaining: -1,
	}
}

// PRKey builds the "repo#number" key used by the PR-scoped maps.
func PRKey(repo string, number int) string {
	return fmt.Sprintf("%s#%d", repo, number)
}

// RefKey builds the "repo@ref" key used by the commit-scoped maps.
func RefKey(repo, ref string) string {
	return fmt.Sprintf("%s@%s", repo, ref)
}

func (m *Mock) failure(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Fail[method]
}

func (m *Mock) ListIssues(_ context.Context, repo, _ string) ([]Issue, error) {
	if err := m.failure("ListIssues"); err != nil {
		return nil, err
	}
	return m.Issues[repo], nil
}

func (m *Mock) ListPulls(_ context.Context, repo, _ string) ([]PullRequest, error) {
	if err := m.failure("ListPulls"); err != nil {
		return nil, err
	}
	return m.Pulls[repo], nil
}

func (m *Mock) GetPull(_ context.Context, repo string, number int) (*PullRequest, error) {
	if err := m.failure("GetPull"); err != nil {
		return nil, err
	}
	if pr, ok := m.PullByKey[PRKey(repo, number)]; ok {
		return pr, nil
	}
	// Fall back to the list fixture so simple tests set data only once.
	for i := range m.Pulls[repo] {
		if m.Pulls[repo][i].Number == number {
			return &m.Pulls[repo][i], nil
		}
	}
	return nil, NewError(KindNotFound, 404, "no such pull")
}

func (m *Mock) ListIssueComments(_ context.Context, repo string, number int) ([]Comment, error) {
	if err := m.failure("ListIssueComments"); err != nil {
		return nil, err
	}
	return m.Comments[PRKey(repo, number)], nil
}

func (m *Mock) CreateComment(_ context.Context, repo string, number int, body string) (*Comment, error) {
	if err := m.failure("CreateComment"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatedComments = append(m.CreatedComments, CreatedComment{Repo: repo, Number: number, Body: body})
	return &Comment{ID: int64(len(m.CreatedComments)), Body: body}, nil
}

func (m *Mock) ListReviews(_ context.Context, repo string, number int) ([]Review, error) {
	if err := m.failure("ListReviews"); err != nil {
		return nil, err
	}
	return m.Reviews[PRKey(repo, number)], nil
}

func (m *Mock) CreatePullReview(_ context.Context, repo string, number int, event, body string) error {
	if err := m.failure("CreatePullReview"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatedReviews = append(m.CreatedReviews, CreatedReview{Repo: repo, Number: number, Event: event, Body: body})
	return nil
}

func (m *Mock) MergePull(_ context.Context, repo string, number int, _ string) (*MergeResult, error) {
	if err := m.failure("MergePull"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Merged = append(m.Merged, PRKey(repo, number))
	return &MergeResult{SHA: "deadbeef", Merged: true, Message: "Pull Request successfully merged"}, nil
}

func (m *Mock) GetCheckRuns(_ context.Context, repo, ref string) (*CheckRunList, error) {
	if err := m.failure("GetCheckRuns"); err != nil {
		return nil, err
	}
	if runs, ok := m.Checks[RefKey(repo, ref)]; ok {
		return runs, nil
	}
	return &CheckRunList{}, nil
}

func (m *Mock) GetCombinedStatus(_ context.Context, repo, ref string) (*CombinedStatus, error) {
	if err := m.failure("GetCombinedStatus"); err != nil {
		return nil, err
	}
	if status, ok := m.Statuses[RefKey(repo, ref)]; ok {
		return status, nil
	}
	return &CombinedStatus{State: "pending"}, nil
}

func (m *Mock) GetFileTree(_ context.Context, repo, ref string) (*Tree, error) {
	if err := m.failure("GetFileTree"); err != nil {
		return nil, err
	}
	if tree, ok := m.Trees[RefKey(repo, ref)]; ok {
		return tree, nil
	}
	return nil, NewError(KindNotFound, 404, "no such tree")
}

func (m *Mock) GetFileContent(_ context.Context, repo, path, _ string) (string, error) {
	if err := m.failure("GetFileContent"); err != nil {
		return "", err
	}
	content, ok := m.Files[repo+":"+path]
	if !ok {
		return "", NewError(KindNotFound, 404, "no such file")
	}
	return content, nil
}

func (m *Mock) GetPullDiff(_ context.Context, repo string, number int) (string, error) {
	if err := m.failure("GetPullDiff"); err != nil {
		return "", err
	}
	return m.Diffs[PRKey(repo, number)], nil
}

func (m *Mock) AddLabels(_ context.Context, repo string, number int, labels []string) error {
	if err := m.failure("AddLabels"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LabelAdds = append(m.LabelAdds, LabelAdd{Repo: repo, Number: number, Labels: labels})
	return nil
}

func (m *Mock) CloseIssue(_ context.Context, repo string, number int) error {
	if err := m.failure("CloseIssue"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = append(m.Closed, PRKey(repo, number))
	return nil
}

func (m *Mock) RateRemaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Remaining
}

package forge

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ListIssues lists issues for a repository. The response includes pull
// requests; callers filter them via Issue.IsPullRequest.
func (c *Client) ListIssues(ctx context.Context, repo, state string) ([]Issue, error) {
	path := fmt.Sprintf("/repos/%s/issues?state=%s&per_page=100", repo, url.QueryEscape(state))
	var issues []Issue
	if err := c.do(ctx, http.MethodGet, path, nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// ListPulls lists pull requests for a repository.
func (c *Client) ListPulls(ctx context.Context, repo, state string) ([]PullRequest, error) {
	path := fmt.Sprintf("/repos/%s/pulls?state=%s&per_page=100", repo, url.QueryEscape(state))
	var pulls []PullRequest
	if err := c.do(ctx, http.MethodGet, path, nil, &pulls); err != nil {
		return nil, err
	}
	return pulls, nil
}

// GetPull fetches full pull-request detail, including mergeability and size
// metrics that the list endpoint omits.
func (c *Client) GetPull(ctx context.Context, repo string, number int) (*PullRequest, error) {
	path := fmt.Sprintf("/repos/%s/pulls/%d", repo, number)
	var pull PullRequest
	if err := c.do(ctx, http.MethodGet, path, nil, &pull); err != nil {
		return nil, err
	}
	return &pull, nil
}

// ListIssueComments lists comments on an issue or pull request.
func (c *Client) ListIssueComments(ctx context.Context, repo string, number int) ([]Comment, error) {
	path := fmt.Sprintf("/repos/%s/issues/%d/comments?per_page=100", repo, number)
	var comments []Comment
	if err := c.do(ctx, http.MethodGet, path, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment posts a comment on an issue or pull request.
func (c *Client) CreateComment(ctx context.Context, repo string, number int, body string) (*Comment, error) {
	path := fmt.Sprintf("/repos/%s/issues/%d/comments", repo, number)
	var comment Comment
	payload := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPost, path, payload, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListReviews lists reviews on a pull request, oldest first.
func (c *Client) ListReviews(ctx context.Context, repo string, number int) ([]Review, error) {
	path := fmt.Sprintf("/repos/%s/pulls/%d/reviews?per_page=100", repo, number)
	var reviews []Review
	if err := c.do(ctx, http.MethodGet, path, nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// CreatePullReview submits a review with the given event (APPROVE,
// REQUEST_CHANGES, or COMMENT).
func (c *Client) CreatePullReview(ctx context.Context, repo string, number int, event, body string) error {
	path := fmt.Sprintf("/repos/%s/pulls/%d/reviews", repo, number)
	payload := map[string]string{"event": event}
	if body != "" {
		payload["body"] = body
	}
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

// MergePull merges a pull request with the given method.
func (c *Client) MergePull(ctx context.Context, repo string, number int, method string) (*MergeResult, error) {
	path := fmt.Sprintf("/repos/%s/pulls/%d/merge", repo, number)
	payload := map[string]string{"merge_method": method}
	var result MergeResult
	if err := c.do(ctx, http.MethodPut, path, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetCheckRuns fetches the granular check runs for a commit ref.
func (c *Client) GetCheckRuns(ctx context.Context, repo, ref string) (*CheckRunList, error) {
	path := fmt.Sprintf("/repos/%s/commits/%s/check-runs?per_page=100", repo, url.PathEscape(ref))
	var list CheckRunList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetCombinedStatus fetches the legacy combined commit status for a ref.
func (c *Client) GetCombinedStatus(ctx context.Context, repo, ref string) (*CombinedStatus, error) {
	path := fmt.Sprintf("/repos/%s/commits/%s/status", repo, url.PathEscape(ref))
	var status CombinedStatus
	if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetFileTree fetches the full recursive file tree for a ref in one call.
func (c *Client) GetFileTree(ctx context.Context, repo, ref string) (*Tree, error) {
	path := fmt.Sprintf("/repos/%s/git/trees/%s?recursive=1", repo, url.PathEscape(ref))
	var tree Tree
	if err := c.do(ctx, http.MethodGet, path, nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// GetFileContent fetches and decodes a file's content at a ref.
func (c *Client) GetFileContent(ctx context.Context, repo, path, ref string) (string, error) {
	endpoint := fmt.Sprintf("/repos/%s/contents/%s", repo, escapePath(path))
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}
	var content struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &content); err != nil {
		return "", err
	}
	if content.Encoding != "base64" {
		return content.Content, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return "", NewError(KindOther, 0, fmt.Sprintf("failed to decode file content: %v", err))
	}
	return string(decoded), nil
}

// GetPullDiff fetches the unified diff of a pull request.
func (c *Client) GetPullDiff(ctx context.Context, repo string, number int) (string, error) {
	path := fmt.Sprintf("/repos/%s/pulls/%d", repo, number)
	raw, err := c.doRaw(ctx, http.MethodGet, path, "application/vnd.github.v3.diff", nil)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// AddLabels adds labels to an issue or pull request.
func (c *Client) AddLabels(ctx context.Context, repo string, number int, labels []string) error {
	path := fmt.Sprintf("/repos/%s/issues/%d/labels", repo, number)
	payload := map[string][]string{"labels": labels}
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

// CloseIssue closes an issue.
func (c *Client) CloseIssue(ctx context.Context, repo string, number int) error {
	path := fmt.Sprintf("/repos/%s/issues/%d", repo, number)
	payload := map[string]string{"state": "closed"}
	return c.do(ctx, http.MethodPatch, path, payload, nil)
}

// escapePath escapes each segment of a slash-separated file path.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

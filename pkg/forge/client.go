// Package forge provides a thin authenticated HTTP client for the forge API
// with retry, backoff, and rate-limit tracking. It carries no business
// logic; callers interpret the typed results.
package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"caretaker/pkg/logx"
)

// API is the consumed forge surface. Components depend on this interface so
// tests can substitute a mock.
type API interface {
	ListIssues(ctx context.Context, repo, state string) ([]Issue, error)
	ListPulls(ctx context.Context, repo, state string) ([]PullRequest, error)
	GetPull(ctx context.Context, repo string, number int) (*PullRequest, error)
	ListIssueComments(ctx context.Context, repo string, number int) ([]Comment, error)
	CreateComment(ctx context.Context, repo string, number int, body string) (*Comment, error)
	ListReviews(ctx context.Context, repo string, number int) ([]Review, error)
	CreatePullReview(ctx context.Context, repo string, number int, event, body string) error
	MergePull(ctx context.Context, repo string, number int, method string) (*MergeResult, error)
	GetCheckRuns(ctx context.Context, repo, ref string) (*CheckRunList, error)
	GetCombinedStatus(ctx context.Context, repo, ref string) (*CombinedStatus, error)
	GetFileTree(ctx context.Context, repo, ref string) (*Tree, error)
	GetFileContent(ctx context.Context, repo, path, ref string) (string, error)
	GetPullDiff(ctx context.Context, repo string, number int) (string, error)
	AddLabels(ctx context.Context, repo string, number int, labels []string) error
	CloseIssue(ctx context.Context, repo string, number int) error
	RateRemaining() int
}

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Client implements API over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logx.Logger

	mu            sync.Mutex
	rateRemaining int
}

// NewClient creates a forge client for the given API base URL and token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:       baseURL,
		token:         token,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		logger:        logx.NewLogger("forge"),
		rateRemaining: -1,
	}
}

// WithTimeout returns a copy of the client with the specified HTTP timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	clone := NewClient(c.baseURL, c.token)
	clone.httpClient = &http.Client{Timeout: timeout}
	return clone
}

// RateRemaining returns the last observed rate-limit remaining value, or -1
// if no response has carried the header yet.
func (c *Client) RateRemaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateRemaining
}

func (c *Client) trackRateLimit(resp *http.Response) {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return
	}
	value, err := strconv.Atoi(remaining)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.rateRemaining = value
	c.mu.Unlock()
}

// do performs one API request with retry on transient failures. The out
// parameter, when non-nil, receives the decoded JSON body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.doRaw(ctx, method, path, "", body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewError(KindOther, 0, fmt.Sprintf("failed to parse response: %v", err))
	}
	return nil
}

// doRaw performs one API request and returns the raw response body. The
// accept parameter overrides the Accept header when non-empty (used for
// diff fetches).
func (c *Client) doRaw(ctx context.Context, method, path, accept string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, NewError(KindOther, 0, fmt.Sprintf("failed to encode request: %v", err))
		}
		payload = encoded
	}

	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("Retrying %s %s (attempt %d) after %v", method, path, attempt, backoff)
			select {
			case <-ctx.Done():
				return nil, NewError(KindTransient, 0, ctx.Err().Error())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		raw, err := c.doOnce(ctx, method, path, accept, payload)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !IsKind(err, KindTransient) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path, accept string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, NewError(KindOther, 0, fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level failures are retryable.
		return nil, NewError(KindTransient, 0, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	c.trackRateLimit(resp)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(KindTransient, resp.StatusCode, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}
	return nil, c.classifyStatus(resp, raw)
}

func (c *Client) classifyStatus(resp *http.Response, raw []byte) *Error {
	message := string(raw)
	if len(message) > 300 {
		message = message[:300]
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return NewError(KindNotFound, resp.StatusCode, message)
	case resp.StatusCode == http.StatusTooManyRequests:
		return c.rateLimitError(resp, message)
	case resp.StatusCode == http.StatusForbidden:
		// A 403 with an exhausted quota is rate limiting, not an auth failure.
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return c.rateLimitError(resp, message)
		}
		return NewError(KindAuth, resp.StatusCode, message)
	case resp.StatusCode == http.StatusUnauthorized:
		return NewError(KindAuth, resp.StatusCode, message)
	case resp.StatusCode >= 500:
		return NewError(KindTransient, resp.StatusCode, message)
	default:
		return NewError(KindOther, resp.StatusCode, message)
	}
}

func (c *Client) rateLimitError(resp *http.Response, message string) *Error {
	fe := NewError(KindRateLimited, resp.StatusCode, message)
	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			fe.ResetAt = time.Unix(epoch, 0)
		}
	}
	return fe
}

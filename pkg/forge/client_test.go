package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, "test-token"), server
}

func TestRetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([]Issue{{Number: 1, Title: "hello"}})
	}))
	defer server.Close()

	issues, err := client.ListIssues(context.Background(), "octo/widgets", "open")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := client.GetPull(context.Background(), "octo/widgets", 99)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestAuthError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := client.ListPulls(context.Background(), "octo/widgets", "open")
	assert.True(t, IsKind(err, KindAuth))
}

func TestRateLimitWithReset(t *testing.T) {
	resetAt := time.Now().Add(30 * time.Minute).Unix()
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt))
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := client.ListIssues(context.Background(), "octo/widgets", "open")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRateLimited))

	reset, ok := RateLimitReset(err)
	require.True(t, ok)
	assert.Equal(t, resetAt, reset.Unix())
	assert.Equal(t, 0, client.RateRemaining())
}

func TestRateRemainingTracking(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "4211")
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	assert.Equal(t, -1, client.RateRemaining(), "unknown before first response")
	_, err := client.ListIssues(context.Background(), "octo/widgets", "open")
	require.NoError(t, err)
	assert.Equal(t, 4211, client.RateRemaining())
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	_, err := client.ListIssues(context.Background(), "octo/widgets", "open")
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestIssuePullRequestMarker(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"number": 1, "title": "real issue"},
			{"number": 2, "title": "actually a PR", "pull_request": {"url": "https://x/pulls/2"}}
		]`))
	}))
	defer server.Close()

	issues, err := client.ListIssues(context.Background(), "octo/widgets", "open")
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.False(t, issues[0].IsPullRequest())
	assert.True(t, issues[1].IsPullRequest())
}

func TestMergePull(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(MergeResult{SHA: "abc", Merged: true})
	}))
	defer server.Close()

	result, err := client.MergePull(context.Background(), "octo/widgets", 7, MergeMethodSquash)
	require.NoError(t, err)
	assert.True(t, result.Merged)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/repos/octo/widgets/pulls/7/merge", gotPath)
	assert.Equal(t, "squash", gotBody["merge_method"])
}

func TestGetFileContentBase64(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// "package main\n" base64-encoded with a line break, as the API returns.
		_, _ = w.Write([]byte(`{"content": "cGFja2FnZSBt\nYWluCg==", "encoding": "base64"}`))
	}))
	defer server.Close()

	content, err := client.GetFileContent(context.Background(), "octo/widgets", "main.go", "main")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", content)
}

func TestGetPullDiffAcceptHeader(t *testing.T) {
	var gotAccept string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("diff --git a/main.go b/main.go"))
	}))
	defer server.Close()

	diff, err := client.GetPullDiff(context.Background(), "octo/widgets", 7)
	require.NoError(t, err)
	assert.Contains(t, diff, "diff --git")
	assert.Equal(t, "application/vnd.github.v3.diff", gotAccept)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "auth", KindAuth.String())
	assert.Equal(t, "rate_limited", KindRateLimited.String())
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "other", KindOther.String())
}

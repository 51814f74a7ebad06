package llm

import (
	"context"
	"math"
	"time"
)

// RetryConfig defines retry behavior for the LLM pipeline.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig provides reasonable defaults for retry behavior.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    3,
	InitialDelay:  500 * time.Millisecond,
	MaxDelay:      15 * time.Second,
	BackoffFactor: 2.0,
}

// RetryClient wraps a Client with bounded exponential-backoff retries on
// retryable error types.
type RetryClient struct {
	client Client
	config RetryConfig
}

// NewRetryClient creates a retrying wrapper around client.
func NewRetryClient(client Client, config RetryConfig) *RetryClient {
	return &RetryClient{client: client, config: config}
}

// Chat implements Client with retry on rate-limit, transient, and
// empty-response failures.
func (r *RetryClient) Chat(ctx context.Context, in Request) (Result, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(r.delay(attempt)):
			}
		}

		result, err := r.client.Chat(ctx, in)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return Result{}, err
		}
	}
	return Result{}, lastErr
}

// ModelName returns the wrapped client's model identifier.
func (r *RetryClient) ModelName() string {
	return r.client.ModelName()
}

func (r *RetryClient) delay(attempt int) time.Duration {
	delay := time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1)))
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

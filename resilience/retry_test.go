package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// upstreamErr mimics the provider's API error for classification.
type upstreamErr struct{ status int }

func (e *upstreamErr) Error() string   { return fmt.Sprintf("upstream %d", e.status) }
func (e *upstreamErr) HTTPStatus() int { return e.status }

// timeoutErr satisfies net.Error.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func fastRetry(max int) RetryConfig {
	return RetryConfig{MaxRetries: max, BaseDelay: time.Millisecond}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Reason
	}{
		{"deadline exceeded", context.DeadlineExceeded, ReasonTimeout},
		{"net timeout", timeoutErr{}, ReasonTimeout},
		{"server error", &upstreamErr{status: 503}, ReasonServer},
		{"client error", &upstreamErr{status: 404}, ReasonClient},
		{"plain error", errors.New("nope"), ReasonOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestRetryableRejects4xx(t *testing.T) {
	require.True(t, Retryable(&upstreamErr{status: 500}))
	require.True(t, Retryable(timeoutErr{}))
	require.False(t, Retryable(&upstreamErr{status: 400}))
	require.False(t, Retryable(errors.New("validation failed")))
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), zap.NewNop(), "fetch", fastRetry(3), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &upstreamErr{status: 502}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoExhaustsRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), zap.NewNop(), "fetch", fastRetry(2), func(ctx context.Context) error {
		attempts++
		return &upstreamErr{status: 500}
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)

	var ue *upstreamErr
	require.ErrorAs(t, err, &ue)
}

func TestDoAbortsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), zap.NewNop(), "fetch", fastRetry(5), func(ctx context.Context) error {
		attempts++
		return &upstreamErr{status: 404}
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, zap.NewNop(), "fetch", RetryConfig{MaxRetries: 3, BaseDelay: time.Second}, func(ctx context.Context) error {
		return &upstreamErr{status: 500}
	})
	require.ErrorIs(t, err, context.Canceled)
}

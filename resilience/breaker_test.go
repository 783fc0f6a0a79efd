package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errBoom = errors.New("boom")

func failing(ctx context.Context) error { return errBoom }
func succeeding(ctx context.Context) error { return nil }

func TestBreakerTripsAtThreshold(t *testing.T) {
	cb := NewBreaker("provider", 3, time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(ctx, failing), errBoom)
	}
	require.Equal(t, StateOpen, cb.State())

	// Once open, calls are rejected without invoking the operation.
	invoked := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	require.ErrorIs(t, err, ErrBreakerOpen)
	require.False(t, invoked)
}

func TestBreakerSuccessDecaysFailureCount(t *testing.T) {
	cb := NewBreaker("provider", 3, time.Minute, zap.NewNop())
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	require.Error(t, cb.Execute(ctx, failing))
	require.NoError(t, cb.Execute(ctx, succeeding))
	// Two consecutive failures plus one decayed: still below the threshold.
	require.Error(t, cb.Execute(ctx, failing))
	require.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenClosesAfterSuccesses(t *testing.T) {
	cb := NewBreaker("provider", 1, 10*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Execute(ctx, succeeding))
	require.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeeding))
	require.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewBreaker("provider", 1, 10*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	time.Sleep(20 * time.Millisecond)

	require.Error(t, cb.Execute(ctx, failing))
	require.Equal(t, StateOpen, cb.State())

	invoked := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	require.ErrorIs(t, err, ErrBreakerOpen)
	require.False(t, invoked)
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTimeoutCompletesWithinLimit(t *testing.T) {
	err := WithTimeout(context.Background(), 100*time.Millisecond, "op", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestWithTimeoutPropagatesFunctionError(t *testing.T) {
	boom := errors.New("boom")
	err := WithTimeout(context.Background(), 100*time.Millisecond, "op", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWithTimeoutFiresOnSlowFunction(t *testing.T) {
	err := WithTimeout(context.Background(), 5*time.Millisecond, "slow op", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "slow op")
}

func TestWithTimeoutReportsParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithTimeout(ctx, time.Second, "op", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeoutZeroLimitRunsDirectly(t *testing.T) {
	calls := 0
	err := WithTimeout(context.Background(), 0, "op", func(ctx context.Context) error {
		calls++
		assert.NoError(t, ctx.Err())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

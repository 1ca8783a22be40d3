//go:build integration

package expiry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"regbook/internal/expiry"
	"regbook/pkg/testutil/containers"
)

func TestRedisLockerElectsOneLeader(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redis := containers.NewRedisContainer(t)
	ctx := context.Background()

	first := expiry.NewRedisLocker(redis.Client, time.Minute)
	second := expiry.NewRedisLocker(redis.Client, time.Minute)

	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// A second instance loses the election while the lock is held.
	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// Releasing someone else's lock is a no-op.
	require.NoError(t, second.Release(ctx))
	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// After the holder releases, the next instance wins.
	require.NoError(t, first.Release(ctx))
	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

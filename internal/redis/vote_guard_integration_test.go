package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteGuard_TryClaim(t *testing.T) {
	client := setupTestClient(t)
	guard := NewVoteGuard(client)
	ctx := context.Background()

	claimed, err := guard.TryClaim(ctx, "session-a")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = guard.TryClaim(ctx, "session-a")
	require.NoError(t, err)
	assert.False(t, claimed)

	// Independent sessions do not interfere
	claimed, err = guard.TryClaim(ctx, "session-b")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestVoteGuard_ConcurrentClaimsSingleWinner(t *testing.T) {
	client := setupTestClient(t)
	guard := NewVoteGuard(client)
	ctx := context.Background()

	const n = 50
	var winners atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := guard.TryClaim(ctx, "contested-session")
			assert.NoError(t, err)
			if claimed {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), winners.Load())
}

func TestVoteGuard_Clear(t *testing.T) {
	client := setupTestClient(t)
	guard := NewVoteGuard(client)
	ctx := context.Background()

	claimed, err := guard.TryClaim(ctx, "session-a")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, guard.Clear(ctx))

	claimed, err = guard.TryClaim(ctx, "session-a")
	require.NoError(t, err)
	assert.True(t, claimed)
}

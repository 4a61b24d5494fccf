package redis

import (
	"context"
	"sync"
	"testing"

	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTallyStore_IncrementAndGet(t *testing.T) {
	client := setupTestClient(t)
	store := NewTallyStore(client)
	ctx := context.Background()

	tally, err := store.Increment(ctx, domain.ChoiceNY)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tally.NYVotes)
	assert.Equal(t, int64(0), tally.ChicagoVotes)
	assert.Equal(t, int64(1), tally.TotalVotes)

	tally, err = store.Increment(ctx, domain.ChoiceChicago)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tally.NYVotes)
	assert.Equal(t, int64(1), tally.ChicagoVotes)
	assert.Equal(t, int64(2), tally.TotalVotes)

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, tally, got)
}

func TestTallyStore_GetEmpty(t *testing.T) {
	client := setupTestClient(t)
	store := NewTallyStore(client)

	tally, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{}, tally)
}

func TestTallyStore_ConcurrentIncrementsAreConsistent(t *testing.T) {
	client := setupTestClient(t)
	store := NewTallyStore(client)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		choice := domain.ChoiceNY
		if i%2 == 1 {
			choice = domain.ChoiceChicago
		}
		wg.Add(1)
		go func(c domain.Choice) {
			defer wg.Done()
			tally, err := store.Increment(ctx, c)
			assert.NoError(t, err)
			// Every observed snapshot sums correctly
			assert.Equal(t, tally.NYVotes+tally.ChicagoVotes, tally.TotalVotes)
		}(choice)
	}
	wg.Wait()

	tally, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), tally.TotalVotes)
	assert.Equal(t, int64(n/2), tally.NYVotes)
	assert.Equal(t, int64(n/2), tally.ChicagoVotes)
}

func TestTallyStore_Set(t *testing.T) {
	client := setupTestClient(t)
	store := NewTallyStore(client)
	ctx := context.Background()

	tally, err := store.Set(ctx, 120, 80)
	require.NoError(t, err)
	assert.Equal(t, int64(120), tally.NYVotes)
	assert.Equal(t, int64(80), tally.ChicagoVotes)
	assert.Equal(t, int64(200), tally.TotalVotes)

	_, err = store.Set(ctx, -1, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidCount)
}

func TestTallyStore_ResetClearsVotesAndClaims(t *testing.T) {
	client := setupTestClient(t)
	store := NewTallyStore(client)
	guard := NewVoteGuard(client)
	ctx := context.Background()

	_, err := store.Increment(ctx, domain.ChoiceNY)
	require.NoError(t, err)
	claimed, err := guard.TryClaim(ctx, "session-1")
	require.NoError(t, err)
	require.True(t, claimed)

	tally, err := store.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{}, tally)

	// The session may vote again after a reset
	claimed, err = guard.TryClaim(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmit_WindowLimit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := NewSlidingWindow(10, time.Minute, clock)
	ctx := context.Background()

	// 11 calls inside one second: exactly 10 admitted.
	admitted := 0
	for i := 0; i < 11; i++ {
		ok, err := sw.Admit(ctx, "1.2.3.4_sess")
		require.NoError(t, err)
		if ok {
			admitted++
		}
		clock.Advance(90 * time.Millisecond)
	}
	assert.Equal(t, 10, admitted)

	// After the window fully elapses, a new call is admitted again.
	clock.Advance(time.Minute)
	ok, err := sw.Admit(ctx, "1.2.3.4_sess")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdmit_SlidesRatherThanResets(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := NewSlidingWindow(2, time.Minute, clock)
	ctx := context.Background()

	ok, _ := sw.Admit(ctx, "id")
	assert.True(t, ok)
	clock.Advance(40 * time.Second)
	ok, _ = sw.Admit(ctx, "id")
	assert.True(t, ok)

	// First admission still in window: rejected.
	clock.Advance(10 * time.Second)
	ok, _ = sw.Admit(ctx, "id")
	assert.False(t, ok)

	// First admission aged out, second still in window: admitted.
	clock.Advance(15 * time.Second)
	ok, _ = sw.Admit(ctx, "id")
	assert.True(t, ok)
}

func TestAdmit_IdentifiersIndependent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := NewSlidingWindow(1, time.Minute, clock)
	ctx := context.Background()

	ok, _ := sw.Admit(ctx, "a")
	assert.True(t, ok)
	ok, _ = sw.Admit(ctx, "a")
	assert.False(t, ok)

	ok, _ = sw.Admit(ctx, "b")
	assert.True(t, ok)
}

func TestAdmit_Concurrent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := NewSlidingWindow(10, time.Minute, clock)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := sw.Admit(ctx, "shared")
			require.NoError(t, err)
			if ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, admitted)
}

func TestPrune_RemovesAgedOutIdentifiers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := NewSlidingWindow(10, time.Minute, clock)
	ctx := context.Background()

	_, _ = sw.Admit(ctx, "old")
	clock.Advance(30 * time.Second)
	_, _ = sw.Admit(ctx, "fresh")
	assert.Equal(t, 2, sw.TrackedIdentifiers())

	clock.Advance(45 * time.Second)
	sw.prune()

	// "old" has fully aged out, "fresh" has not.
	assert.Equal(t, 1, sw.TrackedIdentifiers())
	ok, _ := sw.Admit(ctx, "old")
	assert.True(t, ok)
}

func TestStartPruneTimer_StopIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := NewSlidingWindow(10, time.Minute, clock)

	stop := sw.StartPruneTimer()
	stop()
	stop()
}

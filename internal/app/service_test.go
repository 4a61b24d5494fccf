package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
	"github.com/CoreyFoshee/thatsamorepizza/internal/memory"
	"github.com/CoreyFoshee/thatsamorepizza/internal/ratelimit"
)

// --- Test doubles ---

// recordingPublisher captures published events in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	Event   string
	Payload any
}

func (p *recordingPublisher) Publish(_ context.Context, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Event: event, Payload: payload})
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Event
	}
	return out
}

// mockAudit lets tests observe or fail audit writes.
type mockAudit struct {
	mu       sync.Mutex
	records  []domain.VoteRecord
	recordFn func(domain.VoteRecord) error
}

func (m *mockAudit) Record(_ context.Context, rec domain.VoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordFn != nil {
		return m.recordFn(rec)
	}
	m.records = append(m.records, rec)
	return nil
}

// countingStore wraps the memory store and counts tally reads.
type countingStore struct {
	*memory.Store
	mu   sync.Mutex
	gets int
}

func (c *countingStore) Get(ctx context.Context) (domain.Tally, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.Store.Get(ctx)
}

func (c *countingStore) getCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets
}

type testEnv struct {
	svc    *Service
	store  *countingStore
	events *recordingPublisher
	audit  *mockAudit
	clock  *clockwork.FakeClock
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()

	clock := clockwork.NewFakeClock()
	store := &countingStore{Store: memory.NewStore()}
	events := &recordingPublisher{}
	audit := &mockAudit{}
	limiter := ratelimit.NewSlidingWindow(10, time.Minute, clock)

	svc := NewService(store, store.Store, limiter, store.Store, events, audit, clock, 25*time.Second)
	return &testEnv{svc: svc, store: store, events: events, audit: audit, clock: clock}
}

// --- Vote pipeline ---

func TestSubmitVote_Accepted(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	result, err := env.svc.SubmitVote(ctx, "ny", "203.0.113.7", "sess-1")
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, domain.RejectNone, result.Reason)
	assert.Equal(t, int64(1), result.Tally.NYVotes)
	assert.Equal(t, int64(1), result.Tally.TotalVotes)

	assert.Equal(t, []string{EventVotingUpdate}, env.events.names())

	require.Len(t, env.audit.records, 1)
	assert.Equal(t, domain.ChoiceNY, env.audit.records[0].Choice)
	assert.Equal(t, "sess-1", env.audit.records[0].SessionID)
}

func TestSubmitVote_NormalizesChoice(t *testing.T) {
	env := newTestService(t)

	result, err := env.svc.SubmitVote(context.Background(), "  Chicago ", "ip", "sess-1")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, int64(1), result.Tally.ChicagoVotes)
}

func TestSubmitVote_InvalidChoice(t *testing.T) {
	env := newTestService(t)

	result, err := env.svc.SubmitVote(context.Background(), "deep-dish", "ip", "sess-1")
	require.ErrorIs(t, err, domain.ErrInvalidChoice)
	assert.False(t, result.Accepted)
	assert.Equal(t, domain.RejectInvalidChoice, result.Reason)

	// Nothing was counted or published
	tally, err := env.store.Get(context.Background())
	require.NoError(t, err)
	assert.Zero(t, tally.TotalVotes)
	assert.Empty(t, env.events.names())
}

func TestSubmitVote_AlreadyVoted(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	first, err := env.svc.SubmitVote(ctx, "ny", "ip", "sess-1")
	require.NoError(t, err)
	require.True(t, first.Accepted)

	second, err := env.svc.SubmitVote(ctx, "chicago", "ip", "sess-1")
	require.NoError(t, err)
	assert.False(t, second.Accepted)
	assert.Equal(t, domain.RejectAlreadyVoted, second.Reason)

	tally, err := env.store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tally.TotalVotes)
}

func TestSubmitVote_IndependentSessions(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := env.svc.SubmitVote(ctx, "ny", "ip", fmt.Sprintf("sess-%d", i))
		require.NoError(t, err)
		assert.True(t, result.Accepted)
	}

	tally, err := env.store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), tally.NYVotes)
}

func TestSubmitVote_RateLimited(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	// The limiter keys on address+session, so distinct sessions behind
	// one address share nothing; hammer a single identity instead.
	var rejected int
	for i := 0; i < 11; i++ {
		result, err := env.svc.SubmitVote(ctx, "ny", "ip", "sess-1")
		require.NoError(t, err)
		if result.Reason == domain.RejectRateLimited {
			rejected++
		}
	}

	// 10 admitted (1 accepted + 9 already-voted), the 11th rate limited
	assert.Equal(t, 1, rejected)
}

func TestSubmitVote_AuditFailureDoesNotRejectVote(t *testing.T) {
	env := newTestService(t)
	env.audit.recordFn = func(domain.VoteRecord) error {
		return fmt.Errorf("db down")
	}

	result, err := env.svc.SubmitVote(context.Background(), "ny", "ip", "sess-1")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
}

// --- Tally reads and writes ---

func TestTally_CachesWithinTTL(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.Tally(ctx)
	require.NoError(t, err)
	first := env.store.getCount()

	_, err = env.svc.Tally(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, env.store.getCount(), "second read within TTL should hit the cache")

	env.clock.Advance(26 * time.Second)
	_, err = env.svc.Tally(ctx)
	require.NoError(t, err)
	assert.Equal(t, first+1, env.store.getCount(), "read after TTL should refetch")
}

func TestTally_WriteInvalidatesCache(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.Tally(ctx)
	require.NoError(t, err)

	_, err = env.svc.SubmitVote(ctx, "ny", "ip", "sess-1")
	require.NoError(t, err)

	tally, err := env.svc.Tally(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tally.NYVotes, "vote must be visible immediately")
}

// gateStore wraps the memory store and blocks tally reads until the
// gate is opened, simulating a slow backend.
type gateStore struct {
	*memory.Store
	entered chan struct{}
	gate    chan struct{}
}

func (g *gateStore) Get(ctx context.Context) (domain.Tally, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.gate
	return g.Store.Get(ctx)
}

func TestTally_WriteDoesNotWaitOnSlowRead(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &gateStore{
		Store:   memory.NewStore(),
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	limiter := ratelimit.NewSlidingWindow(10, time.Minute, clock)
	svc := NewService(store, store.Store, limiter, store.Store, &recordingPublisher{}, nil, clock, 25*time.Second)
	ctx := context.Background()

	read := make(chan struct{})
	go func() {
		defer close(read)
		_, err := svc.Tally(ctx)
		assert.NoError(t, err)
	}()
	<-store.entered

	// The write must land while the read is still stuck on the store.
	setDone := make(chan struct{})
	go func() {
		defer close(setDone)
		_, err := svc.SetTally(ctx, 5, 5)
		assert.NoError(t, err)
	}()
	select {
	case <-setDone:
	case <-time.After(2 * time.Second):
		t.Fatal("SetTally blocked behind an in-flight tally read")
	}

	close(store.gate)
	<-read

	// The write bumped the cache generation, so the stale in-flight
	// read was not cached and the new counts are visible.
	tally, err := svc.Tally(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), tally.TotalVotes)
}

func TestSetTally(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	tally, err := env.svc.SetTally(ctx, 120, 80)
	require.NoError(t, err)
	assert.Equal(t, int64(200), tally.TotalVotes)

	assert.Equal(t, []string{EventVotesManuallySet, EventVotingUpdate}, env.events.names())
}

func TestSetTally_RejectsNegatives(t *testing.T) {
	env := newTestService(t)

	_, err := env.svc.SetTally(context.Background(), -1, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidCount)
	assert.Empty(t, env.events.names())
}

func TestResetTally_AllowsRevote(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.SubmitVote(ctx, "ny", "ip", "sess-1")
	require.NoError(t, err)

	tally, err := env.svc.ResetTally(ctx)
	require.NoError(t, err)
	assert.Zero(t, tally.TotalVotes)
	assert.Contains(t, env.events.names(), EventVotesReset)

	// The session's claim is forgotten
	result, err := env.svc.SubmitVote(ctx, "chicago", "ip", "sess-1")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
}

// --- Restaurant state ---

func TestSetOverride(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	override, err := env.svc.SetOverride(ctx, true)
	require.NoError(t, err)
	assert.True(t, override.ManualClosed)
	assert.Equal(t, env.clock.Now(), override.LastUpdated)
	assert.Equal(t, []string{EventAdminUpdate}, env.events.names())

	st, err := env.svc.CurrentStatus(ctx)
	require.NoError(t, err)
	assert.False(t, st.IsOpen)
	assert.Equal(t, "ManualOverride", st.Reason)
}

func TestSetHours_Validation(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	hours := domain.DefaultHours()
	hours.BusinessHours[2].Day = ""
	_, err := env.svc.SetHours(ctx, hours)
	assert.ErrorIs(t, err, domain.ErrMalformedHoursData)

	hours = domain.DefaultHours()
	hours.HolidayHours = append(hours.HolidayHours, domain.HolidayRule{
		Name: "Pizza Day", Month: 13, Day: 1, Hours: "Closed",
	})
	_, err = env.svc.SetHours(ctx, hours)
	assert.ErrorIs(t, err, domain.ErrMalformedHoursData)

	hours = domain.DefaultHours()
	hours.HolidayHours = append(hours.HolidayHours, domain.HolidayRule{
		Name: "Pizza Day", Calculated: true, Hours: "Closed",
	})
	_, err = env.svc.SetHours(ctx, hours)
	assert.ErrorIs(t, err, domain.ErrMalformedHoursData, "unknown calculated holiday")
}

func TestSetHours_StampsLastUpdated(t *testing.T) {
	env := newTestService(t)

	saved, err := env.svc.SetHours(context.Background(), domain.DefaultHours())
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now(), saved.LastUpdated)
	assert.Equal(t, []string{EventAdminUpdate}, env.events.names())
}

func TestSetHours_NormalizesDayOrder(t *testing.T) {
	// 2024-12-01 13:00 is a Sunday afternoon, inside the default
	// Sunday window.
	clock := clockwork.NewFakeClockAt(time.Date(2024, 12, 1, 13, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	limiter := ratelimit.NewSlidingWindow(10, time.Minute, clock)
	svc := NewService(store, store, limiter, store, &recordingPublisher{}, nil, clock, 25*time.Second)
	ctx := context.Background()

	// The default table rotated to start at Monday. Admin clients are
	// free to order rows however they render them.
	def := domain.DefaultHours()
	rotated := def
	for i := 0; i < 7; i++ {
		rotated.BusinessHours[i] = def.BusinessHours[(i+1)%7]
	}

	saved, err := svc.SetHours(ctx, rotated)
	require.NoError(t, err)
	assert.Equal(t, "Sunday", saved.BusinessHours[int(time.Sunday)].Day)
	assert.Equal(t, "Saturday", saved.BusinessHours[int(time.Saturday)].Day)

	st, err := svc.CurrentStatus(ctx)
	require.NoError(t, err)
	assert.True(t, st.IsOpen)
	assert.Equal(t, "Sunday", st.Reason)
}

func TestSetHours_RejectsUnknownAndDuplicateDays(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	hours := domain.DefaultHours()
	hours.BusinessHours[3].Day = "Funday"
	_, err := env.svc.SetHours(ctx, hours)
	assert.ErrorIs(t, err, domain.ErrMalformedHoursData)

	hours = domain.DefaultHours()
	hours.BusinessHours[3].Day = "Monday"
	_, err = env.svc.SetHours(ctx, hours)
	assert.ErrorIs(t, err, domain.ErrMalformedHoursData, "duplicate day name")
}

func TestUpsertClosure_ValidatesDate(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	err := env.svc.UpsertClosure(ctx, domain.Closure{Date: "July 4th", Reason: "Holiday"})
	assert.ErrorIs(t, err, domain.ErrMalformedHoursData)

	require.NoError(t, env.svc.UpsertClosure(ctx, domain.Closure{Date: "2024-07-04", Reason: "Holiday"}))
	closures, err := env.svc.Closures(ctx)
	require.NoError(t, err)
	require.Len(t, closures, 1)

	require.NoError(t, env.svc.DeleteClosure(ctx, "2024-07-04"))
	closures, err = env.svc.Closures(ctx)
	require.NoError(t, err)
	assert.Empty(t, closures)
}

func TestSetTvControls_PartialUpdate(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	pies := 500
	_, err := env.svc.SetTvControls(ctx, TvControlsUpdate{PiesSold: &pies})
	require.NoError(t, err)

	sales := "$12,000"
	tv, err := env.svc.SetTvControls(ctx, TvControlsUpdate{NYLifetimeSales: &sales})
	require.NoError(t, err)

	assert.Equal(t, 500, tv.PiesSold, "earlier field survives a later partial update")
	assert.Equal(t, "$12,000", tv.NYLifetimeSales)
}

func TestSetTvControls_RejectsNegativePies(t *testing.T) {
	env := newTestService(t)

	pies := -3
	_, err := env.svc.SetTvControls(context.Background(), TvControlsUpdate{PiesSold: &pies})
	assert.ErrorIs(t, err, domain.ErrInvalidCount)
}

func TestSnapshot(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.SubmitVote(ctx, "ny", "ip", "sess-1")
	require.NoError(t, err)
	pies := 42
	_, err = env.svc.SetTvControls(ctx, TvControlsUpdate{PiesSold: &pies})
	require.NoError(t, err)

	snap, err := env.svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Tally.NYVotes)
	assert.Equal(t, 42, snap.TvControls.PiesSold)
	assert.NotEmpty(t, snap.Status.Message)
}

func TestAdminDashboard(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.SetTally(ctx, 7, 3)
	require.NoError(t, err)
	require.NoError(t, env.svc.UpsertClosure(ctx, domain.Closure{Date: "2024-12-26", Reason: "Inventory"}))

	data, err := env.svc.AdminDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), data.Votes.TotalVotes)
	require.Len(t, data.Closures, 1)
	assert.False(t, data.Override.ManualClosed)
	assert.NotEmpty(t, data.Hours.BusinessHours[0].Day)
	assert.NotEmpty(t, data.Status.Message)
}

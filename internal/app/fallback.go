package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
	"github.com/CoreyFoshee/thatsamorepizza/internal/memory"
	"github.com/CoreyFoshee/thatsamorepizza/internal/metrics"
)

// FallbackStore degrades to the in-memory store when the primary store
// errors, so an outage turns into a warning instead of a dead site.
// Counts collected while degraded live only in memory and are not
// replayed into the primary when it recovers.
type FallbackStore struct {
	primary  primaryStore
	fallback *memory.Store
}

// primaryStore is the full storage surface the decorator wraps.
type primaryStore interface {
	domain.TallyStore
	domain.VoteGuard
	domain.AdminStore
}

var (
	_ domain.TallyStore = (*FallbackStore)(nil)
	_ domain.VoteGuard  = (*FallbackStore)(nil)
	_ domain.AdminStore = (*FallbackStore)(nil)
)

// NewFallbackStore wraps the primary store with an in-memory fallback.
func NewFallbackStore(primary primaryStore, fallback *memory.Store) *FallbackStore {
	return &FallbackStore{primary: primary, fallback: fallback}
}

// degraded reports whether the primary's error calls for the fallback.
// Domain sentinel errors are real answers and pass through unchanged.
func degraded(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, domain.ErrInvalidChoice) &&
		!errors.Is(err, domain.ErrInvalidCount) &&
		!errors.Is(err, domain.ErrMalformedHoursData)
}

func noteFallback(operation string, err error) {
	metrics.StoreFallbackWrites.WithLabelValues(operation).Inc()
	slog.Warn("Primary store unavailable, using in-memory fallback",
		"operation", operation,
		"error", err,
	)
}

// --- domain.TallyStore ---

func (f *FallbackStore) Increment(ctx context.Context, choice domain.Choice) (domain.Tally, error) {
	tally, err := f.primary.Increment(ctx, choice)
	if degraded(err) {
		noteFallback("increment", err)
		return f.fallback.Increment(ctx, choice)
	}
	return tally, err
}

func (f *FallbackStore) Get(ctx context.Context) (domain.Tally, error) {
	tally, err := f.primary.Get(ctx)
	if degraded(err) {
		noteFallback("get", err)
		return f.fallback.Get(ctx)
	}
	return tally, err
}

func (f *FallbackStore) Set(ctx context.Context, ny, chicago int64) (domain.Tally, error) {
	tally, err := f.primary.Set(ctx, ny, chicago)
	if degraded(err) {
		noteFallback("set", err)
		return f.fallback.Set(ctx, ny, chicago)
	}
	return tally, err
}

func (f *FallbackStore) Reset(ctx context.Context) (domain.Tally, error) {
	tally, err := f.primary.Reset(ctx)
	if degraded(err) {
		noteFallback("reset", err)
		return f.fallback.Reset(ctx)
	}
	// Keep the fallback from resurrecting stale counts later.
	if err == nil {
		_, _ = f.fallback.Reset(ctx)
	}
	return tally, err
}

// --- domain.VoteGuard ---

func (f *FallbackStore) TryClaim(ctx context.Context, sessionID string) (bool, error) {
	claimed, err := f.primary.TryClaim(ctx, sessionID)
	if degraded(err) {
		noteFallback("try_claim", err)
		return f.fallback.TryClaim(ctx, sessionID)
	}
	return claimed, err
}

func (f *FallbackStore) Clear(ctx context.Context) error {
	err := f.primary.Clear(ctx)
	if degraded(err) {
		noteFallback("clear", err)
		return f.fallback.Clear(ctx)
	}
	if err == nil {
		_ = f.fallback.Clear(ctx)
	}
	return err
}

// --- domain.AdminStore ---

func (f *FallbackStore) GetOverride(ctx context.Context) (domain.Override, error) {
	override, err := f.primary.GetOverride(ctx)
	if degraded(err) {
		noteFallback("get_override", err)
		return f.fallback.GetOverride(ctx)
	}
	return override, err
}

func (f *FallbackStore) SetOverride(ctx context.Context, closed bool, now time.Time) (domain.Override, error) {
	override, err := f.primary.SetOverride(ctx, closed, now)
	if degraded(err) {
		noteFallback("set_override", err)
		return f.fallback.SetOverride(ctx, closed, now)
	}
	return override, err
}

func (f *FallbackStore) GetHours(ctx context.Context) (domain.HoursConfig, error) {
	hours, err := f.primary.GetHours(ctx)
	if degraded(err) {
		noteFallback("get_hours", err)
		return f.fallback.GetHours(ctx)
	}
	return hours, err
}

func (f *FallbackStore) SetHours(ctx context.Context, hours domain.HoursConfig) error {
	err := f.primary.SetHours(ctx, hours)
	if degraded(err) {
		noteFallback("set_hours", err)
		return f.fallback.SetHours(ctx, hours)
	}
	return err
}

func (f *FallbackStore) ListClosures(ctx context.Context) ([]domain.Closure, error) {
	closures, err := f.primary.ListClosures(ctx)
	if degraded(err) {
		noteFallback("list_closures", err)
		return f.fallback.ListClosures(ctx)
	}
	return closures, err
}

func (f *FallbackStore) UpsertClosure(ctx context.Context, c domain.Closure) error {
	err := f.primary.UpsertClosure(ctx, c)
	if degraded(err) {
		noteFallback("upsert_closure", err)
		return f.fallback.UpsertClosure(ctx, c)
	}
	return err
}

func (f *FallbackStore) DeleteClosure(ctx context.Context, date string) error {
	err := f.primary.DeleteClosure(ctx, date)
	if degraded(err) {
		noteFallback("delete_closure", err)
		return f.fallback.DeleteClosure(ctx, date)
	}
	return err
}

func (f *FallbackStore) GetTvControls(ctx context.Context) (domain.TvControls, error) {
	tv, err := f.primary.GetTvControls(ctx)
	if degraded(err) {
		noteFallback("get_tv_controls", err)
		return f.fallback.GetTvControls(ctx)
	}
	return tv, err
}

func (f *FallbackStore) SetTvControls(ctx context.Context, tv domain.TvControls) error {
	err := f.primary.SetTvControls(ctx, tv)
	if degraded(err) {
		noteFallback("set_tv_controls", err)
		return f.fallback.SetTvControls(ctx, tv)
	}
	return err
}

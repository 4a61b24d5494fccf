package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
	"github.com/CoreyFoshee/thatsamorepizza/internal/metrics"
	"github.com/CoreyFoshee/thatsamorepizza/internal/status"
)

// Display event names. TV clients switch on these.
const (
	EventVotingUpdate     = "voting-update"
	EventVotesReset       = "votes-reset"
	EventVotesManuallySet = "votes-manually-set"
	EventAdminUpdate      = "admin-update"
)

// DefaultTallyCacheTTL bounds how stale a cached tally may be served.
const DefaultTallyCacheTTL = 25 * time.Second

// Service orchestrates the vote pipeline and the operator-managed
// restaurant state.
type Service struct {
	tallies domain.TallyStore
	guard   domain.VoteGuard
	limiter domain.VoteRateLimiter
	admin   domain.AdminStore
	events  domain.EventPublisher
	audit   domain.AuditSink
	clock   clockwork.Clock

	cacheTTL   time.Duration
	cacheMu    sync.Mutex
	cached     domain.Tally
	cachedAt   time.Time
	cacheValid bool
	cacheGen   uint64
}

// NewService creates the application layer service. cacheTTL <= 0 uses
// DefaultTallyCacheTTL.
func NewService(
	tallies domain.TallyStore,
	guard domain.VoteGuard,
	limiter domain.VoteRateLimiter,
	admin domain.AdminStore,
	events domain.EventPublisher,
	audit domain.AuditSink,
	clock clockwork.Clock,
	cacheTTL time.Duration,
) *Service {
	if cacheTTL <= 0 {
		cacheTTL = DefaultTallyCacheTTL
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &Service{
		tallies:  tallies,
		guard:    guard,
		limiter:  limiter,
		admin:    admin,
		events:   events,
		audit:    audit,
		clock:    clock,
		cacheTTL: cacheTTL,
	}
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, domain.VoteRecord) error { return nil }

// VoteIdentifier builds the rate limiting identifier from the caller's
// address and session, so one shared IP cannot starve every session
// behind it and one session cannot dodge the limit by hopping IPs.
func VoteIdentifier(clientAddr, sessionID string) string {
	return clientAddr + "_" + sessionID
}

// SubmitVote runs the full vote pipeline: choice validation, rate limit
// admission, the one-vote-per-session claim, then the counter increment.
// A rejected vote comes back as a normal VoteResult, not an error.
func (s *Service) SubmitVote(ctx context.Context, rawChoice, clientAddr, sessionID string) (domain.VoteResult, error) {
	choice, err := domain.ParseChoice(rawChoice)
	if err != nil {
		metrics.VotesTotal.WithLabelValues("invalid", "invalid_choice").Inc()
		return domain.VoteResult{Reason: domain.RejectInvalidChoice}, err
	}

	admitted, err := s.limiter.Admit(ctx, VoteIdentifier(clientAddr, sessionID))
	if err != nil {
		metrics.VotesTotal.WithLabelValues(string(choice), "error").Inc()
		return domain.VoteResult{}, fmt.Errorf("rate limiter failed: %w", err)
	}
	if !admitted {
		metrics.VotesTotal.WithLabelValues(string(choice), "rate_limited").Inc()
		return domain.VoteResult{Reason: domain.RejectRateLimited}, nil
	}

	claimed, err := s.guard.TryClaim(ctx, sessionID)
	if err != nil {
		metrics.VotesTotal.WithLabelValues(string(choice), "error").Inc()
		return domain.VoteResult{}, fmt.Errorf("vote guard failed: %w", err)
	}
	if !claimed {
		metrics.VotesTotal.WithLabelValues(string(choice), "already_voted").Inc()
		return domain.VoteResult{Reason: domain.RejectAlreadyVoted}, nil
	}

	tally, err := s.tallies.Increment(ctx, choice)
	if err != nil {
		metrics.VotesTotal.WithLabelValues(string(choice), "error").Inc()
		return domain.VoteResult{}, fmt.Errorf("failed to count vote: %w", err)
	}
	metrics.VotesTotal.WithLabelValues(string(choice), "accepted").Inc()

	// The vote is already counted; audit and fan-out are best-effort.
	if err := s.audit.Record(ctx, domain.VoteRecord{
		Choice:    choice,
		SessionID: sessionID,
		CreatedAt: s.clock.Now(),
	}); err != nil {
		metrics.AuditWriteFailures.Inc()
		slog.Warn("Failed to record vote audit entry", "error", err)
	}

	s.invalidateTallyCache()
	s.publish(ctx, EventVotingUpdate, tally)

	return domain.VoteResult{Accepted: true, Tally: tally}, nil
}

// Tally returns the current counters, served from a staleness-bounded
// cache to keep display polling cheap. Writes invalidate the cache, so
// voters see their own vote reflected immediately.
func (s *Service) Tally(ctx context.Context) (domain.Tally, error) {
	s.cacheMu.Lock()
	if s.cacheValid && s.clock.Since(s.cachedAt) < s.cacheTTL {
		metrics.TallyCacheHits.Inc()
		tally := s.cached
		s.cacheMu.Unlock()
		return tally, nil
	}
	gen := s.cacheGen
	s.cacheMu.Unlock()

	// The store read happens outside the lock so writers invalidating
	// the cache never wait on a slow backend.
	tally, err := s.tallies.Get(ctx)
	if err != nil {
		return domain.Tally{}, fmt.Errorf("failed to read tally: %w", err)
	}

	s.cacheMu.Lock()
	// A write that landed during the read bumped the generation; this
	// result is already stale then and must not repopulate the cache.
	if s.cacheGen == gen {
		s.cached = tally
		s.cachedAt = s.clock.Now()
		s.cacheValid = true
	}
	s.cacheMu.Unlock()
	return tally, nil
}

// SetTally overwrites both counters. Negative counts are rejected with
// ErrInvalidCount before anything is written.
func (s *Service) SetTally(ctx context.Context, ny, chicago int64) (domain.Tally, error) {
	if ny < 0 || chicago < 0 {
		return domain.Tally{}, domain.ErrInvalidCount
	}

	tally, err := s.tallies.Set(ctx, ny, chicago)
	if err != nil {
		return domain.Tally{}, fmt.Errorf("failed to set tally: %w", err)
	}

	s.invalidateTallyCache()
	s.publish(ctx, EventVotesManuallySet, tally)
	s.publish(ctx, EventVotingUpdate, tally)
	return tally, nil
}

// ResetTally zeroes the counters and forgets every session's vote claim,
// so everyone may vote in the next round.
func (s *Service) ResetTally(ctx context.Context) (domain.Tally, error) {
	tally, err := s.tallies.Reset(ctx)
	if err != nil {
		return domain.Tally{}, fmt.Errorf("failed to reset tally: %w", err)
	}
	if err := s.guard.Clear(ctx); err != nil {
		return domain.Tally{}, fmt.Errorf("failed to clear vote claims: %w", err)
	}

	s.invalidateTallyCache()
	s.publish(ctx, EventVotesReset, tally)
	s.publish(ctx, EventVotingUpdate, tally)
	return tally, nil
}

func (s *Service) invalidateTallyCache() {
	s.cacheMu.Lock()
	s.cacheValid = false
	s.cacheGen++
	s.cacheMu.Unlock()
}

// --- Restaurant state ---

// SetOverride stores the manual closed flag and notifies displays.
func (s *Service) SetOverride(ctx context.Context, closed bool) (domain.Override, error) {
	override, err := s.admin.SetOverride(ctx, closed, s.clock.Now())
	if err != nil {
		return domain.Override{}, fmt.Errorf("failed to set override: %w", err)
	}

	s.publishAdminUpdate(ctx, "restaurant-status", override)
	return override, nil
}

// Override returns the current manual closed flag.
func (s *Service) Override(ctx context.Context) (domain.Override, error) {
	return s.admin.GetOverride(ctx)
}

// Hours returns the hours configuration.
func (s *Service) Hours(ctx context.Context) (domain.HoursConfig, error) {
	return s.admin.GetHours(ctx)
}

// SetHours validates and stores the hours configuration. The weekday
// table is normalized to Sunday-first order so the status engine can
// index it by time.Weekday regardless of how the admin client ordered
// the rows.
func (s *Service) SetHours(ctx context.Context, hours domain.HoursConfig) (domain.HoursConfig, error) {
	normalized, err := normalizeBusinessHours(hours.BusinessHours)
	if err != nil {
		return domain.HoursConfig{}, err
	}
	hours.BusinessHours = normalized

	if err := validateHours(hours); err != nil {
		return domain.HoursConfig{}, err
	}

	hours.LastUpdated = s.clock.Now()
	if err := s.admin.SetHours(ctx, hours); err != nil {
		return domain.HoursConfig{}, fmt.Errorf("failed to save hours: %w", err)
	}

	s.publishAdminUpdate(ctx, "hours", hours)
	return hours, nil
}

// normalizeBusinessHours reorders the weekday rows by day name into
// Sunday-first positions. Unknown or duplicate day names are rejected.
func normalizeBusinessHours(days [7]domain.DayHours) ([7]domain.DayHours, error) {
	var out [7]domain.DayHours
	var seen [7]bool
	for _, day := range days {
		idx := -1
		for w := time.Sunday; w <= time.Saturday; w++ {
			if strings.EqualFold(day.Day, w.String()) {
				idx = int(w)
				break
			}
		}
		if idx == -1 {
			return out, fmt.Errorf("%w: unknown day %q", domain.ErrMalformedHoursData, day.Day)
		}
		if seen[idx] {
			return out, fmt.Errorf("%w: duplicate day %q", domain.ErrMalformedHoursData, day.Day)
		}
		seen[idx] = true
		out[idx] = day
	}
	return out, nil
}

func validateHours(hours domain.HoursConfig) error {
	for _, day := range hours.BusinessHours {
		if day.Hours == "" {
			return fmt.Errorf("%w: %s has no hours string", domain.ErrMalformedHoursData, day.Day)
		}
	}
	for _, h := range hours.HolidayHours {
		if h.Name == "" {
			return fmt.Errorf("%w: holiday rule without a name", domain.ErrMalformedHoursData)
		}
		if h.Calculated {
			if _, ok := status.CalculatedHolidayDate(h.Name, 2024); !ok {
				return fmt.Errorf("%w: unknown calculated holiday %q", domain.ErrMalformedHoursData, h.Name)
			}
			continue
		}
		if h.Month < 1 || h.Month > 12 || h.Day < 1 || h.Day > 31 {
			return fmt.Errorf("%w: holiday %q has an invalid date", domain.ErrMalformedHoursData, h.Name)
		}
	}
	return nil
}

// Closures returns all scheduled closures sorted by date.
func (s *Service) Closures(ctx context.Context) ([]domain.Closure, error) {
	return s.admin.ListClosures(ctx)
}

// UpsertClosure adds or replaces the closure for its date.
func (s *Service) UpsertClosure(ctx context.Context, c domain.Closure) error {
	if _, err := time.Parse("2006-01-02", c.Date); err != nil {
		return fmt.Errorf("%w: closure date must be YYYY-MM-DD", domain.ErrMalformedHoursData)
	}

	if err := s.admin.UpsertClosure(ctx, c); err != nil {
		return fmt.Errorf("failed to save closure: %w", err)
	}

	s.publishAdminUpdate(ctx, "closures", c)
	return nil
}

// DeleteClosure removes the closure for the date, if any.
func (s *Service) DeleteClosure(ctx context.Context, date string) error {
	if err := s.admin.DeleteClosure(ctx, date); err != nil {
		return fmt.Errorf("failed to delete closure: %w", err)
	}

	s.publishAdminUpdate(ctx, "closures", map[string]string{"deleted": date})
	return nil
}

// TvControlsUpdate carries a partial TV controls change. Nil fields keep
// their stored value.
type TvControlsUpdate struct {
	PiesSold             *int    `json:"piesSold"`
	NYLifetimeSales      *string `json:"nyLifetimeSales"`
	ChicagoLifetimeSales *string `json:"chicagoLifetimeSales"`
}

// SetTvControls merges the partial update into the stored controls.
func (s *Service) SetTvControls(ctx context.Context, update TvControlsUpdate) (domain.TvControls, error) {
	tv, err := s.admin.GetTvControls(ctx)
	if err != nil {
		return domain.TvControls{}, fmt.Errorf("failed to read tv controls: %w", err)
	}

	if update.PiesSold != nil {
		if *update.PiesSold < 0 {
			return domain.TvControls{}, domain.ErrInvalidCount
		}
		tv.PiesSold = *update.PiesSold
	}
	if update.NYLifetimeSales != nil {
		tv.NYLifetimeSales = *update.NYLifetimeSales
	}
	if update.ChicagoLifetimeSales != nil {
		tv.ChicagoLifetimeSales = *update.ChicagoLifetimeSales
	}
	tv.LastUpdated = s.clock.Now()

	if err := s.admin.SetTvControls(ctx, tv); err != nil {
		return domain.TvControls{}, fmt.Errorf("failed to save tv controls: %w", err)
	}

	s.publishAdminUpdate(ctx, "tv-controls", tv)
	return tv, nil
}

// TvControls returns the stored TV display controls.
func (s *Service) TvControls(ctx context.Context) (domain.TvControls, error) {
	return s.admin.GetTvControls(ctx)
}

// CurrentStatus evaluates "is the restaurant open right now".
func (s *Service) CurrentStatus(ctx context.Context) (domain.Status, error) {
	override, err := s.admin.GetOverride(ctx)
	if err != nil {
		return domain.Status{}, fmt.Errorf("failed to read override: %w", err)
	}
	closures, err := s.admin.ListClosures(ctx)
	if err != nil {
		return domain.Status{}, fmt.Errorf("failed to read closures: %w", err)
	}
	hours, err := s.admin.GetHours(ctx)
	if err != nil {
		return domain.Status{}, fmt.Errorf("failed to read hours: %w", err)
	}

	return status.Evaluate(s.clock.Now(), override, closures, hours), nil
}

// Snapshot assembles the full display state sent to a TV on connect and
// served by the polling fallback.
func (s *Service) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	tally, err := s.Tally(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	tv, err := s.admin.GetTvControls(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to read tv controls: %w", err)
	}
	st, err := s.CurrentStatus(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}

	return domain.Snapshot{Tally: tally, TvControls: tv, Status: st}, nil
}

// AdminData is the aggregate payload behind the admin dashboard.
type AdminData struct {
	Votes      domain.Tally       `json:"votingData"`
	Override   domain.Override    `json:"restaurantStatus"`
	Hours      domain.HoursConfig `json:"hours"`
	Closures   []domain.Closure   `json:"closures"`
	TvControls domain.TvControls  `json:"tvControls"`
	Status     domain.Status      `json:"status"`
}

// AdminDashboard gathers everything the admin page needs in one call.
func (s *Service) AdminDashboard(ctx context.Context) (AdminData, error) {
	tally, err := s.tallies.Get(ctx)
	if err != nil {
		return AdminData{}, fmt.Errorf("failed to read tally: %w", err)
	}
	override, err := s.admin.GetOverride(ctx)
	if err != nil {
		return AdminData{}, fmt.Errorf("failed to read override: %w", err)
	}
	hours, err := s.admin.GetHours(ctx)
	if err != nil {
		return AdminData{}, fmt.Errorf("failed to read hours: %w", err)
	}
	closures, err := s.admin.ListClosures(ctx)
	if err != nil {
		return AdminData{}, fmt.Errorf("failed to read closures: %w", err)
	}
	tv, err := s.admin.GetTvControls(ctx)
	if err != nil {
		return AdminData{}, fmt.Errorf("failed to read tv controls: %w", err)
	}

	return AdminData{
		Votes:      tally,
		Override:   override,
		Hours:      hours,
		Closures:   closures,
		TvControls: tv,
		Status:     status.Evaluate(s.clock.Now(), override, closures, hours),
	}, nil
}

// --- Fan-out helpers ---

func (s *Service) publish(ctx context.Context, event string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event, payload); err != nil {
		slog.Warn("Failed to publish display event", "event", event, "error", err)
	}
}

type adminUpdate struct {
	Kind string `json:"type"`
	Data any    `json:"data"`
}

func (s *Service) publishAdminUpdate(ctx context.Context, kind string, data any) {
	s.publish(ctx, EventAdminUpdate, adminUpdate{Kind: kind, Data: data})
}

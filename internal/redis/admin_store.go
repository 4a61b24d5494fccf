package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	overrideKey   = "admin:override"
	hoursKey      = "admin:hours"
	closuresKey   = "admin:closures"
	tvControlsKey = "admin:tv"
)

// AdminStore keeps the operator-managed restaurant state in Redis.
// Override, hours, and TV controls are JSON documents; closures live
// in a hash keyed by date so saving the same date twice replaces the
// reason instead of duplicating the entry.
type AdminStore struct {
	rdb *goredis.Client
}

var _ domain.AdminStore = (*AdminStore)(nil)

// NewAdminStore creates a Redis-backed admin store.
func NewAdminStore(client *Client) *AdminStore {
	return &AdminStore{rdb: client.rdb}
}

// GetOverride returns the manual closed flag. A missing key means no
// override has ever been set.
func (s *AdminStore) GetOverride(ctx context.Context) (domain.Override, error) {
	var override domain.Override
	if err := s.getJSON(ctx, overrideKey, &override); err != nil {
		return domain.Override{}, err
	}
	return override, nil
}

// SetOverride stores the manual closed flag.
func (s *AdminStore) SetOverride(ctx context.Context, closed bool, now time.Time) (domain.Override, error) {
	override := domain.Override{ManualClosed: closed, LastUpdated: now}
	if err := s.setJSON(ctx, overrideKey, override); err != nil {
		return domain.Override{}, err
	}
	return override, nil
}

// GetHours returns the stored hours configuration, or the defaults when
// none has been saved yet.
func (s *AdminStore) GetHours(ctx context.Context) (domain.HoursConfig, error) {
	data, err := s.rdb.Get(ctx, hoursKey).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.DefaultHours(), nil
	}
	if err != nil {
		return domain.HoursConfig{}, fmt.Errorf("failed to read %s: %w", hoursKey, err)
	}

	var hours domain.HoursConfig
	if err := json.Unmarshal([]byte(data), &hours); err != nil {
		return domain.HoursConfig{}, fmt.Errorf("failed to unmarshal %s: %w", hoursKey, err)
	}
	return hours, nil
}

// SetHours stores the hours configuration.
func (s *AdminStore) SetHours(ctx context.Context, hours domain.HoursConfig) error {
	return s.setJSON(ctx, hoursKey, hours)
}

// ListClosures returns all scheduled closures sorted by date.
func (s *AdminStore) ListClosures(ctx context.Context) ([]domain.Closure, error) {
	fields, err := s.rdb.HGetAll(ctx, closuresKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read closures: %w", err)
	}

	closures := make([]domain.Closure, 0, len(fields))
	for date, reason := range fields {
		closures = append(closures, domain.Closure{Date: date, Reason: reason})
	}
	sort.Slice(closures, func(i, j int) bool { return closures[i].Date < closures[j].Date })
	return closures, nil
}

// UpsertClosure adds or replaces the closure for its date.
func (s *AdminStore) UpsertClosure(ctx context.Context, c domain.Closure) error {
	if err := s.rdb.HSet(ctx, closuresKey, c.Date, c.Reason).Err(); err != nil {
		return fmt.Errorf("failed to save closure: %w", err)
	}
	return nil
}

// DeleteClosure removes the closure for the date. Deleting a date that
// has no closure is not an error.
func (s *AdminStore) DeleteClosure(ctx context.Context, date string) error {
	if err := s.rdb.HDel(ctx, closuresKey, date).Err(); err != nil {
		return fmt.Errorf("failed to delete closure: %w", err)
	}
	return nil
}

// GetTvControls returns the TV display controls.
func (s *AdminStore) GetTvControls(ctx context.Context) (domain.TvControls, error) {
	var tv domain.TvControls
	if err := s.getJSON(ctx, tvControlsKey, &tv); err != nil {
		return domain.TvControls{}, err
	}
	return tv, nil
}

// SetTvControls stores the TV display controls.
func (s *AdminStore) SetTvControls(ctx context.Context, tv domain.TvControls) error {
	return s.setJSON(ctx, tvControlsKey, tv)
}

// getJSON reads a JSON document into dst, leaving dst zero-valued when
// the key does not exist.
func (s *AdminStore) getJSON(ctx context.Context, key string, dst any) error {
	data, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(data), dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func (s *AdminStore) setJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

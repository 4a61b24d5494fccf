// Package memory provides the in-process storage backend. It is both
// the default when no Redis is configured and the degradation target
// when Redis becomes unreachable.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
)

// Store holds all mutable state behind a single mutex, so a vote's
// claim-then-increment sequence and an admin's multi-field writes are
// atomic with respect to every reader.
type Store struct {
	mu           sync.Mutex
	nyVotes      int64
	chicagoVotes int64
	sessionVotes map[string]struct{}
	override     domain.Override
	hours        domain.HoursConfig
	closures     []domain.Closure
	tv           domain.TvControls
}

// NewStore creates a Store seeded with the default hours table.
func NewStore() *Store {
	return &Store{
		sessionVotes: make(map[string]struct{}),
		hours:        domain.DefaultHours(),
	}
}

func (s *Store) tallyLocked() domain.Tally {
	return domain.Tally{
		NYVotes:      s.nyVotes,
		ChicagoVotes: s.chicagoVotes,
		TotalVotes:   s.nyVotes + s.chicagoVotes,
	}
}

// --- domain.TallyStore ---

func (s *Store) Increment(_ context.Context, choice domain.Choice) (domain.Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch choice {
	case domain.ChoiceNY:
		s.nyVotes++
	case domain.ChoiceChicago:
		s.chicagoVotes++
	default:
		return domain.Tally{}, domain.ErrInvalidChoice
	}
	return s.tallyLocked(), nil
}

func (s *Store) Get(_ context.Context) (domain.Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tallyLocked(), nil
}

func (s *Store) Set(_ context.Context, ny, chicago int64) (domain.Tally, error) {
	if ny < 0 || chicago < 0 {
		return domain.Tally{}, domain.ErrInvalidCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nyVotes = ny
	s.chicagoVotes = chicago
	return s.tallyLocked(), nil
}

func (s *Store) Reset(_ context.Context) (domain.Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nyVotes = 0
	s.chicagoVotes = 0
	s.sessionVotes = make(map[string]struct{})
	return s.tallyLocked(), nil
}

// --- domain.VoteGuard ---

// TryClaim marks the session as having voted. The check and the set
// happen under the same lock as the counters, so concurrent first
// votes for one session cannot both succeed.
func (s *Store) TryClaim(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, voted := s.sessionVotes[sessionID]; voted {
		return false, nil
	}
	s.sessionVotes[sessionID] = struct{}{}
	return true, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionVotes = make(map[string]struct{})
	return nil
}

// --- domain.AdminStore ---

func (s *Store) GetOverride(_ context.Context) (domain.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.override, nil
}

func (s *Store) SetOverride(_ context.Context, closed bool, now time.Time) (domain.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = domain.Override{ManualClosed: closed, LastUpdated: now}
	return s.override, nil
}

func (s *Store) GetHours(_ context.Context) (domain.HoursConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hours, nil
}

func (s *Store) SetHours(_ context.Context, hours domain.HoursConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hours = hours
	return nil
}

func (s *Store) ListClosures(_ context.Context) ([]domain.Closure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Closure, len(s.closures))
	copy(out, s.closures)
	return out, nil
}

func (s *Store) UpsertClosure(_ context.Context, c domain.Closure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.closures {
		if s.closures[i].Date == c.Date {
			s.closures[i] = c
			return nil
		}
	}
	s.closures = append(s.closures, c)
	sort.Slice(s.closures, func(i, j int) bool {
		return s.closures[i].Date < s.closures[j].Date
	})
	return nil
}

func (s *Store) DeleteClosure(_ context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.closures[:0]
	for _, c := range s.closures {
		if c.Date != date {
			kept = append(kept, c)
		}
	}
	s.closures = kept
	return nil
}

func (s *Store) GetTvControls(_ context.Context) (domain.TvControls, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tv, nil
}

func (s *Store) SetTvControls(_ context.Context, tv domain.TvControls) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tv = tv
	return nil
}

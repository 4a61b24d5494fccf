package domain

import (
	"context"
	"strings"
	"time"
)

// --- Poll types ---

// Choice is one of the two poll options.
type Choice string

const (
	ChoiceNY      Choice = "ny"
	ChoiceChicago Choice = "chicago"
)

// ParseChoice normalizes a raw choice string from the wire.
// Returns ErrInvalidChoice for anything other than the two options.
func ParseChoice(raw string) (Choice, error) {
	switch Choice(strings.ToLower(strings.TrimSpace(raw))) {
	case ChoiceNY:
		return ChoiceNY, nil
	case ChoiceChicago:
		return ChoiceChicago, nil
	default:
		return "", ErrInvalidChoice
	}
}

// Tally is a snapshot of the poll counters.
// Total always equals NYVotes + ChicagoVotes.
type Tally struct {
	NYVotes      int64 `json:"nyVotes"`
	ChicagoVotes int64 `json:"chicagoVotes"`
	TotalVotes   int64 `json:"totalVotes"`
}

// VoteRecord is one entry of the append-only audit trail.
type VoteRecord struct {
	Choice    Choice
	SessionID string
	CreatedAt time.Time
}

// VoteResult is the outcome of a vote submission.
// A rejected vote is a normal outcome, not an error: Accepted is false
// and Reason carries the machine-readable rejection.
type VoteResult struct {
	Accepted bool
	Reason   RejectReason
	Tally    Tally
}

// --- Restaurant state types ---

// DayHours describes one weekday's opening hours.
// Hours is a display string like "11:00 AM - 8:00 PM" or "Closed".
type DayHours struct {
	Day   string `json:"day"`
	Hours string `json:"hours"`
	Open  bool   `json:"open"`
}

// HolidayRule is a fixed-date or calculated holiday override.
// Calculated rules (Easter, Thanksgiving, the nth-Monday holidays)
// resolve to a concrete date per calendar year; Month and Day are
// ignored for those.
type HolidayRule struct {
	Name       string `json:"name"`
	Month      int    `json:"month"`
	Day        int    `json:"day"`
	Hours      string `json:"hours"`
	Open       bool   `json:"open"`
	Calculated bool   `json:"isCalculated,omitempty"`
}

// HoursConfig is the full hours configuration: the weekly table indexed
// by time.Weekday (0 = Sunday), the holiday rules, and the header/footer
// strings shown on the public site.
type HoursConfig struct {
	Header        string        `json:"header"`
	Footer        string        `json:"footer"`
	BusinessHours [7]DayHours   `json:"businessHours"`
	HolidayHours  []HolidayRule `json:"holidayHours"`
	LastUpdated   time.Time     `json:"lastUpdated"`
}

// Closure is a single-day scheduled closure. Date is "2006-01-02".
type Closure struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// Override is the operator-set closed flag. It outranks everything else
// in status evaluation.
type Override struct {
	ManualClosed bool      `json:"manualClosed"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// TvControls is the display state shown on the TV alongside the tally.
type TvControls struct {
	PiesSold             int       `json:"piesSold"`
	NYLifetimeSales      string    `json:"nyLifetimeSales"`
	ChicagoLifetimeSales string    `json:"chicagoLifetimeSales"`
	LastUpdated          time.Time `json:"lastUpdated"`
}

// Status is the result of evaluating "is the restaurant open right now".
type Status struct {
	IsOpen  bool   `json:"isOpen"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Snapshot is the full display state sent to a TV client on connect and
// served by the polling fallback endpoints.
type Snapshot struct {
	Tally      Tally      `json:"votingData"`
	TvControls TvControls `json:"tvControls"`
	Status     Status     `json:"status"`
}

// DefaultHours returns the hours configuration used until an admin
// saves one.
func DefaultHours() HoursConfig {
	return HoursConfig{
		Header: "Mon-Fri: 11AM-10PM | Sat-Sun: 12PM-11PM",
		Footer: "Open Daily | Mon-Fri: 11AM-10PM | Sat-Sun: 12PM-11PM",
		BusinessHours: [7]DayHours{
			{Day: "Sunday", Hours: "11:00 AM - 8:00 PM", Open: true},
			{Day: "Monday", Hours: "Closed", Open: false},
			{Day: "Tuesday", Hours: "11:00 AM - 8:00 PM", Open: true},
			{Day: "Wednesday", Hours: "11:00 AM - 8:00 PM", Open: true},
			{Day: "Thursday", Hours: "11:00 AM - 8:00 PM", Open: true},
			{Day: "Friday", Hours: "11:00 AM - 9:00 PM", Open: true},
			{Day: "Saturday", Hours: "11:00 AM - 9:00 PM", Open: true},
		},
		HolidayHours: []HolidayRule{
			{Name: "Christmas Day", Month: 12, Day: 25, Hours: "Closed", Open: false},
			{Name: "Christmas Eve", Month: 12, Day: 24, Hours: "11:00 AM - 3:00 PM", Open: true},
			{Name: "Easter", Hours: "Closed", Open: false, Calculated: true},
			{Name: "Thanksgiving", Hours: "Closed", Open: false, Calculated: true},
		},
	}
}

// --- Interfaces ---

// TallyStore owns the poll counters. All mutations appear atomic to
// concurrent readers: a reader never sees a tally whose total differs
// from the sum of the two counts.
type TallyStore interface {
	// Increment adds one vote for the choice and returns the new snapshot.
	Increment(ctx context.Context, choice Choice) (Tally, error)
	// Get returns the current snapshot without mutating anything.
	Get(ctx context.Context) (Tally, error)
	// Set overwrites both counters atomically.
	Set(ctx context.Context, ny, chicago int64) (Tally, error)
	// Reset zeroes both counters and returns the zeroed snapshot.
	Reset(ctx context.Context) (Tally, error)
}

// VoteGuard enforces at-most-one-vote-per-session. TryClaim is a single
// atomic test-and-set: exactly one of N concurrent claims for the same
// session succeeds.
type VoteGuard interface {
	TryClaim(ctx context.Context, sessionID string) (bool, error)
	Clear(ctx context.Context) error
}

// VoteRateLimiter is the admission check in front of the vote guard.
// Admit returns false when the identifier has exhausted its window;
// that is a normal outcome, not an error.
type VoteRateLimiter interface {
	Admit(ctx context.Context, identifier string) (bool, error)
}

// AdminStore persists the operator-managed restaurant state.
type AdminStore interface {
	GetOverride(ctx context.Context) (Override, error)
	SetOverride(ctx context.Context, closed bool, now time.Time) (Override, error)

	GetHours(ctx context.Context) (HoursConfig, error)
	SetHours(ctx context.Context, hours HoursConfig) error

	ListClosures(ctx context.Context) ([]Closure, error)
	UpsertClosure(ctx context.Context, c Closure) error
	DeleteClosure(ctx context.Context, date string) error

	GetTvControls(ctx context.Context) (TvControls, error)
	SetTvControls(ctx context.Context, tv TvControls) error
}

// EventPublisher fans events out to connected displays. Publishing is
// best-effort: the authoritative write has already happened by the time
// an event is published.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// AuditSink records accepted votes for diagnostics. Implementations
// must tolerate being a no-op.
type AuditSink interface {
	Record(ctx context.Context, rec VoteRecord) error
}

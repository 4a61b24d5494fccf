// Package ratelimit provides per-identifier sliding-window admission
// control for vote submissions.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultMaxPerWindow and DefaultWindow mirror the public site's
	// voting limit of 10 votes per minute per identifier.
	DefaultMaxPerWindow = 10
	DefaultWindow       = time.Minute

	pruneInterval = 30 * time.Second
)

// SlidingWindow admits calls while fewer than maxPerWindow prior
// admissions fall inside the trailing window. The admit-and-record step
// is atomic per call; identifiers whose history has fully aged out are
// pruned on a background timer so memory stays bounded.
type SlidingWindow struct {
	mu           sync.Mutex
	history      map[string][]time.Time
	maxPerWindow int
	window       time.Duration
	clock        clockwork.Clock
}

// NewSlidingWindow creates a limiter. Non-positive arguments fall back
// to the defaults.
func NewSlidingWindow(maxPerWindow int, window time.Duration, clock clockwork.Clock) *SlidingWindow {
	if maxPerWindow <= 0 {
		maxPerWindow = DefaultMaxPerWindow
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &SlidingWindow{
		history:      make(map[string][]time.Time),
		maxPerWindow: maxPerWindow,
		window:       window,
		clock:        clock,
	}
}

// Admit reports whether a call from identifier is allowed right now and,
// if so, records it. Rejection is a normal outcome; the error return
// exists to satisfy the domain contract and is always nil here.
func (sw *SlidingWindow) Admit(_ context.Context, identifier string) (bool, error) {
	now := sw.clock.Now()
	cutoff := now.Add(-sw.window)

	sw.mu.Lock()
	defer sw.mu.Unlock()

	recent := sw.history[identifier][:0]
	for _, ts := range sw.history[identifier] {
		if ts.After(cutoff) || ts.Equal(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= sw.maxPerWindow {
		sw.history[identifier] = recent
		return false, nil
	}

	sw.history[identifier] = append(recent, now)
	return true, nil
}

// StartPruneTimer launches the background pruner and returns a stop
// function. Pruning removes identifiers whose entire history has aged
// out; it never touches live entries and never blocks Admit for longer
// than one map sweep.
func (sw *SlidingWindow) StartPruneTimer() func() {
	ticker := sw.clock.NewTicker(pruneInterval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				sw.prune()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (sw *SlidingWindow) prune() {
	cutoff := sw.clock.Now().Add(-sw.window)

	sw.mu.Lock()
	defer sw.mu.Unlock()

	for identifier, timestamps := range sw.history {
		live := timestamps[:0]
		for _, ts := range timestamps {
			if ts.After(cutoff) || ts.Equal(cutoff) {
				live = append(live, ts)
			}
		}
		if len(live) == 0 {
			delete(sw.history, identifier)
		} else {
			sw.history[identifier] = live
		}
	}
}

// TrackedIdentifiers returns the number of identifiers currently held.
func (sw *SlidingWindow) TrackedIdentifiers() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return len(sw.history)
}

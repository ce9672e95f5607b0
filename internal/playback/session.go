package playback

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chase3718/autohold/internal/score"
)

// State is where a session is in its lifecycle.
type State int

const (
	Idle State = iota
	Playing
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Pending is a release the session still owes the actuator.
type Pending struct {
	Key       string
	Remaining time.Duration
}

// Snapshot is a consistent view of a session's progress.
type Snapshot struct {
	ID       string
	State    State
	Speed    float64
	Position time.Duration // virtual song time
	Cursor   int
	Total    int
	Pressed  []string
	Pending  []Pending
}

// Session is one playback run of an event list. All control methods are
// safe to call from any goroutine; the latest call wins.
type Session struct {
	id     string
	events []score.Event
	pairs  []int64
	act    Actuator
	opts   options
	log    *slog.Logger

	mu      sync.Mutex
	paused  bool
	stopped bool
	speed   float64

	wake chan struct{}
	done chan struct{}

	// Written by the worker, read by Snapshot.
	stateMu  sync.Mutex
	state    State
	err      error
	cursor   int
	virtual  float64 // ms
	pressed  map[string]int // outstanding presses per key
	releases releaseQueue

	suspended []string
}

func newSession(events []score.Event, act Actuator, o options) *Session {
	id := uuid.New().String()
	return &Session{
		id:      id,
		events:  events,
		pairs:   pairReleases(events, o.defaultHold),
		act:     act,
		opts:    o,
		log:     o.logger.With("session", id[:8]),
		speed:   o.clamp(o.speed),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		pressed: make(map[string]int),
	}
}

// ID identifies the session in logs and to callers holding several handles.
func (s *Session) ID() string { return s.id }

// Pause asks the worker to let go of every key and freeze the timeline.
func (s *Session) Pause() { s.update(func() { s.paused = true }) }

// Resume continues a paused session.
func (s *Session) Resume() { s.update(func() { s.paused = false }) }

// TogglePause flips the pause request and reports whether the session is now
// paused.
func (s *Session) TogglePause() bool {
	var paused bool
	s.update(func() {
		s.paused = !s.paused
		paused = s.paused
	})
	return paused
}

// SetSpeed changes the playback multiplier, clamped to the configured range,
// and returns the value applied.
func (s *Session) SetSpeed(m float64) float64 {
	s.mu.Lock()
	if !s.stopped && !math.IsNaN(m) {
		s.speed = s.opts.clamp(m)
	}
	applied := s.speed
	s.mu.Unlock()
	s.signal()
	return applied
}

// Speed returns the requested multiplier.
func (s *Session) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Stop cancels the session. It returns at once; use Done or Wait to learn
// when every key has been released.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.signal()
}

// Done is closed once the worker has released everything and exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the fault that ended the session, if any.
func (s *Session) Err() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.err
}

// State returns the state last entered by the worker.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Snapshot captures the worker's current bookkeeping.
func (s *Session) Snapshot() Snapshot {
	speed := s.Speed()
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	pressed := make([]string, 0, len(s.pressed))
	for k := range s.pressed {
		pressed = append(pressed, k)
	}
	slices.Sort(pressed)
	return Snapshot{
		ID:       s.id,
		State:    s.state,
		Speed:    speed,
		Position: time.Duration(s.virtual * float64(time.Millisecond)),
		Cursor:   s.cursor,
		Total:    len(s.events),
		Pressed:  pressed,
		Pending:  s.releases.pending(time.Now()),
	}
}

// update applies a control change unless the session is already stopping.
func (s *Session) update(fn func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	fn()
	s.mu.Unlock()
	s.signal()
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// request is the controller's latest wish, read by the worker once per turn.
type request struct {
	paused  bool
	stopped bool
	speed   float64
}

func (s *Session) requested() request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return request{paused: s.paused, stopped: s.stopped, speed: s.speed}
}

// pairReleases finds, for every press, the time of the first release of the
// same key after it. Presses with no such release fall back to a default
// hold.
func pairReleases(events []score.Event, fallback int64) []int64 {
	out := make([]int64, len(events))
	next := make(map[string]int64)
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		switch ev.Kind {
		case score.Release:
			next[ev.Key] = ev.Time
		case score.Press:
			if t, ok := next[ev.Key]; ok {
				out[i] = t
			} else {
				out[i] = ev.Time + fallback
			}
		}
	}
	return out
}

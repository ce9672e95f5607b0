// Package playback drives press/release events against a key actuator in
// real time, with live speed changes, pause/resume and guaranteed release of
// every key on the way out.
package playback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/chase3718/autohold/internal/score"
)

// Player owns one actuator and runs at most one Session on it at a time.
type Player struct {
	act  Actuator
	opts options
	log  *slog.Logger

	replaceMu sync.Mutex

	mu  sync.Mutex
	cur *Session
}

// NewPlayer returns a Player driving act.
func NewPlayer(act Actuator, opts ...Option) *Player {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Player{act: act, opts: o, log: o.logger}
}

// Start begins playing events in the background. It fails with
// ErrAlreadyRunning while a previous session has not finished its cleanup.
// Cancelling ctx stops the session.
func (p *Player) Start(ctx context.Context, events []score.Event) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != nil && !p.cur.ended() {
		return nil, ErrAlreadyRunning
	}
	s := newSession(events, p.act, p.opts)
	p.cur = s
	go s.run(ctx)
	return s, nil
}

// Replace stops the running session, waits until it has released every key,
// then starts events.
func (p *Player) Replace(ctx context.Context, events []score.Event) (*Session, error) {
	p.replaceMu.Lock()
	defer p.replaceMu.Unlock()
	if err := p.Stop(ctx); err != nil {
		return nil, err
	}
	return p.Start(ctx, events)
}

// Stop ends the running session, if any, and waits for its cleanup.
func (p *Player) Stop(ctx context.Context) error {
	s := p.Current()
	if s == nil {
		return nil
	}
	s.Stop()
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the most recently started session, finished or not.
func (p *Player) Current() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// Active reports whether a session is still running.
func (p *Player) Active() bool {
	s := p.Current()
	return s != nil && !s.ended()
}

// Panic stops any session and then releases every key given, whether or not
// this player pressed it.
func (p *Player) Panic(ctx context.Context, keys []string) error {
	if err := p.Stop(ctx); err != nil {
		return err
	}
	var failed int
	for _, k := range keys {
		if err := p.act.Release(k); err != nil {
			failed++
			p.log.Debug("playback: panic release failed", "err", &ActuationError{Op: opRelease, Key: k, Err: err})
		}
	}
	p.log.Info("playback: panic release complete", "keys", len(keys), "failed", failed)
	return nil
}

func (s *Session) ended() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

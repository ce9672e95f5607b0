package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/chase3718/autohold/internal/score"
)

// epsilon absorbs float drift in the virtual clock, in ms.
const epsilon = 1e-6

// run is the dispatch loop. Every way out of it goes through releaseAll.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("playback: worker fault: %v", r)
			s.log.Error("playback: worker fault", "err", err)
			s.stateMu.Lock()
			s.err = err
			s.stateMu.Unlock()
		}
		s.releaseAll()
		s.setState(Stopped)
		s.log.Info("playback: session ended", "dispatched", s.cursor, "total", len(s.events))
	}()

	s.log.Info("playback: session started", "events", len(s.events), "start_delay", s.opts.startDelay)
	start := time.Now().Add(s.opts.startDelay)
	for time.Now().Before(start) {
		if !s.sleepUntil(ctx, start) {
			return
		}
	}
	s.setState(Playing)

	speed := s.requested().speed
	last := time.Now()
	for {
		req := s.requested()
		if req.stopped || ctx.Err() != nil {
			s.log.Info("playback: stop observed")
			return
		}

		if req.paused {
			now := time.Now()
			s.advance(now, last, speed, req.speed)
			speed = req.speed
			s.suspend(now)
			if !s.awaitResume(ctx) {
				return
			}
			now = time.Now()
			s.unsuspend(now)
			if req := s.requested(); req.speed != speed {
				s.stateMu.Lock()
				s.releases.rescale(now, speed, req.speed)
				s.stateMu.Unlock()
				speed = req.speed
			}
			last = now
			continue
		}

		now := time.Now()
		s.advance(now, last, speed, req.speed)
		last = now
		speed = req.speed

		s.dispatchDue(now, speed)
		s.fireDue(time.Now())

		if s.finished() {
			return
		}
		s.sleepUntil(ctx, s.nextWake(time.Now(), speed))
	}
}

// advance moves the virtual clock over the wall time since last at the old
// speed, then rescales pending releases if the speed has changed.
func (s *Session) advance(now, last time.Time, from, to float64) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.virtual += float64(now.Sub(last)) / float64(time.Millisecond) * from
	if to != from {
		s.releases.rescale(now, from, to)
		s.log.Debug("playback: speed changed", "from", from, "to", to)
	}
}

// dispatchDue presses every key whose event time has been reached on the
// virtual clock. Releases in the event list only set the press's hold; the
// queue fires them.
func (s *Session) dispatchDue(now time.Time, speed float64) {
	for {
		s.stateMu.Lock()
		if s.cursor >= len(s.events) || float64(s.events[s.cursor].Time) > s.virtual+epsilon {
			s.stateMu.Unlock()
			return
		}
		i := s.cursor
		ev := s.events[i]
		s.cursor++
		if ev.Kind != score.Press {
			s.stateMu.Unlock()
			continue
		}
		wait := max(0, (float64(s.pairs[i])-s.virtual)/speed)
		s.pressed[ev.Key]++
		s.releases.push(now.Add(time.Duration(wait*float64(time.Millisecond))), ev.Key)
		s.stateMu.Unlock()

		s.actuate(opPress, ev.Key)
	}
}

// fireDue releases every queued key whose due time has arrived.
func (s *Session) fireDue(now time.Time) {
	for {
		s.stateMu.Lock()
		key, ok := s.releases.popDue(now)
		held := 0
		if ok {
			held = s.pressed[key] - 1
			if held > 0 {
				s.pressed[key] = held
			} else {
				delete(s.pressed, key)
			}
		}
		s.stateMu.Unlock()
		if !ok {
			return
		}
		if held > 0 {
			s.log.Debug("playback: key still owed a release", "key", key, "presses", held)
			continue
		}
		s.actuate(opRelease, key)
	}
}

func (s *Session) finished() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.cursor >= len(s.events) && s.releases.Len() == 0
}

// nextWake is the earlier of the next press and the next release, bounded by
// maxWait.
func (s *Session) nextWake(now time.Time, speed float64) time.Time {
	wake := now.Add(s.opts.maxWait)
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.cursor < len(s.events) {
		ms := max(0, (float64(s.events[s.cursor].Time)-s.virtual)/speed)
		if t := now.Add(time.Duration(ms * float64(time.Millisecond))); t.Before(wake) {
			wake = t
		}
	}
	if t, ok := s.releases.next(); ok && t.Before(wake) {
		wake = t
	}
	return wake
}

// sleepUntil waits for deadline, a control change or cancellation. It
// reports false when the session should end.
func (s *Session) sleepUntil(ctx context.Context, deadline time.Time) bool {
	if s.requested().stopped {
		return false
	}
	d := time.Until(deadline)
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.wake:
		return !s.requested().stopped
	case <-ctx.Done():
		return false
	}
}

// suspend lets go of every held key and freezes pending releases.
func (s *Session) suspend(now time.Time) {
	s.stateMu.Lock()
	keys := make([]string, 0, len(s.pressed))
	for k := range s.pressed {
		keys = append(keys, k)
	}
	clear(s.pressed)
	s.releases.freeze(now)
	s.state = Paused
	s.stateMu.Unlock()

	for _, k := range keys {
		s.actuate(opRelease, k)
	}
	s.suspended = keys
	s.log.Info("playback: paused", "released", len(keys))
}

// awaitResume blocks without spinning until the pause is lifted. It reports
// false when the session was stopped instead.
func (s *Session) awaitResume(ctx context.Context) bool {
	for {
		req := s.requested()
		if req.stopped {
			return false
		}
		if !req.paused {
			return true
		}
		select {
		case <-s.wake:
		case <-ctx.Done():
			return false
		}
	}
}

// unsuspend re-anchors pending releases on the wall clock and presses again
// the keys the pause let go of that still have a release owed.
func (s *Session) unsuspend(now time.Time) {
	s.stateMu.Lock()
	s.releases.thaw(now)
	var again []string
	for _, k := range s.suspended {
		if n := s.releases.count(k); n > 0 {
			s.pressed[k] = n
			again = append(again, k)
		}
	}
	s.state = Playing
	s.stateMu.Unlock()
	s.suspended = nil

	for _, k := range again {
		s.actuate(opPress, k)
	}
	s.log.Info("playback: resumed", "repressed", len(again))
}

// releaseAll lets go of every pressed key and every queued release without
// waiting for their due times.
func (s *Session) releaseAll() {
	s.stateMu.Lock()
	seen := make(map[string]bool, len(s.pressed))
	var keys []string
	for k := range s.pressed {
		seen[k] = true
		keys = append(keys, k)
	}
	for _, k := range s.releases.drain() {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	clear(s.pressed)
	s.stateMu.Unlock()

	for _, k := range keys {
		s.actuate(opRelease, k)
	}
	if len(keys) > 0 {
		s.log.Info("playback: released held keys", "count", len(keys))
	}
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// actuate calls the actuator. Failures, panics included, are logged and
// dropped so the timeline keeps moving.
func (s *Session) actuate(op, key string) {
	if err := s.call(op, key); err != nil {
		s.log.Warn("playback: actuation failed", "err", &ActuationError{Op: op, Key: key, Err: err})
		return
	}
	s.log.Debug("playback: actuated", "op", op, "key", key)
}

func (s *Session) call(op, key string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("actuator panic: %v", r)
		}
	}()
	if op == opPress {
		return s.act.Press(key)
	}
	return s.act.Release(key)
}

// Package control turns discrete user commands into calls on a playback
// Player: queue and start songs, toggle pause, ramp the speed, and stop.
package control

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chase3718/autohold/internal/playback"
	"github.com/chase3718/autohold/internal/score"
)

// ErrNothingQueued is returned when a start is asked for with no song queued.
var ErrNothingQueued = errors.New("control: no song queued")

// Op is a command kind.
type Op int

const (
	Queue Op = iota
	Start
	TogglePause
	Pause
	Resume
	SpeedUp
	SpeedDown
	SetSpeed
	Stop
	Replay
)

var opNames = [...]string{"queue", "start", "toggle-pause", "pause", "resume", "speed-up", "speed-down", "set-speed", "stop", "replay"}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "unknown"
	}
	return opNames[o]
}

// Track is a named, already computed event list.
type Track struct {
	Name   string
	Events []score.Event
}

// Command is one user request. Track is read by Queue and Start, Speed by
// SetSpeed.
type Command struct {
	Op    Op
	Track *Track
	Speed float64
}

// Config tunes a Controller.
type Config struct {
	// Keys are released on Stop whether or not a session pressed them
	Keys []string
	// Step is the factor one SpeedUp or SpeedDown applies
	Step float64
	// Every is the minimum time between two speed steps
	Every time.Duration

	Speed    float64
	MinSpeed float64
	MaxSpeed float64

	Logger *slog.Logger
}

// Status is what a UI needs to draw.
type Status struct {
	Queued  string
	Last    string
	Speed   float64
	Active  bool
	Session *playback.Snapshot
}

// Controller owns the queue and the speed setting that outlives sessions.
type Controller struct {
	player  *playback.Player
	cfg     Config
	limiter *rate.Limiter
	log     *slog.Logger

	mu     sync.Mutex
	speed  float64
	queued *Track
	last   *Track
}

// New returns a Controller driving player.
func New(player *playback.Player, cfg Config) *Controller {
	if cfg.Step <= 1 {
		cfg.Step = 1.01
	}
	if cfg.MinSpeed <= 0 || cfg.MaxSpeed < cfg.MinSpeed {
		cfg.MinSpeed, cfg.MaxSpeed = playback.MinSpeed, playback.MaxSpeed
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	every := rate.Inf
	if cfg.Every > 0 {
		every = rate.Every(cfg.Every)
	}
	c := &Controller{
		player:  player,
		cfg:     cfg,
		limiter: rate.NewLimiter(every, 1),
		log:     cfg.Logger,
	}
	c.speed = c.clamp(cfg.Speed)
	return c
}

// Run applies commands until ctx is done or cmds is closed, then stops
// playback and releases every key. Sessions started by Run live no longer
// than ctx.
func (c *Controller) Run(ctx context.Context, cmds <-chan Command) error {
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := c.player.Panic(stopCtx, c.cfg.Keys); err != nil {
			c.log.Warn("control: final release", "err", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-cmds:
			if !ok {
				return nil
			}
			if err := c.Apply(ctx, cmd); err != nil {
				c.log.Warn("control: command failed", "op", cmd.Op, "err", err)
			}
		}
	}
}

// Apply carries out one command. ctx bounds any session it starts.
func (c *Controller) Apply(ctx context.Context, cmd Command) error {
	c.log.Debug("control: command", "op", cmd.Op)
	switch cmd.Op {
	case Queue:
		if cmd.Track == nil {
			return ErrNothingQueued
		}
		c.mu.Lock()
		c.queued = cmd.Track
		c.mu.Unlock()
		c.log.Info("control: queued", "song", cmd.Track.Name)
		return nil
	case Start:
		if cmd.Track != nil {
			c.mu.Lock()
			c.queued = cmd.Track
			c.mu.Unlock()
		}
		return c.startQueued(ctx)
	case TogglePause:
		if s := c.active(); s != nil {
			paused := s.TogglePause()
			c.log.Info("control: pause toggled", "paused", paused)
			return nil
		}
		return c.startQueued(ctx)
	case Pause:
		if s := c.active(); s != nil {
			s.Pause()
		}
		return nil
	case Resume:
		if s := c.active(); s != nil {
			s.Resume()
		}
		return nil
	case SpeedUp:
		c.step(c.cfg.Step)
		return nil
	case SpeedDown:
		c.step(1 / c.cfg.Step)
		return nil
	case SetSpeed:
		c.setSpeed(cmd.Speed)
		return nil
	case Stop:
		c.mu.Lock()
		c.queued = nil
		c.mu.Unlock()
		return c.player.Panic(ctx, c.cfg.Keys)
	case Replay:
		c.mu.Lock()
		last := c.last
		c.queued = last
		c.mu.Unlock()
		if last == nil {
			return ErrNothingQueued
		}
		return c.startQueued(ctx)
	}
	return errors.New("control: unknown command " + cmd.Op.String())
}

// Speed returns the multiplier new and running sessions use.
func (c *Controller) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Status reports the queue, the speed, and the running session if any.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{Speed: c.speed}
	if c.queued != nil {
		st.Queued = c.queued.Name
	}
	if c.last != nil {
		st.Last = c.last.Name
	}
	c.mu.Unlock()
	if s := c.player.Current(); s != nil {
		snap := s.Snapshot()
		st.Session = &snap
		st.Active = c.player.Active()
	}
	return st
}

func (c *Controller) startQueued(ctx context.Context) error {
	c.mu.Lock()
	t := c.queued
	c.queued = nil
	speed := c.speed
	c.mu.Unlock()
	if t == nil {
		return ErrNothingQueued
	}
	s, err := c.player.Replace(ctx, t.Events)
	if err != nil {
		return err
	}
	s.SetSpeed(speed)

	c.mu.Lock()
	c.last = t
	c.mu.Unlock()
	c.log.Info("control: started", "song", t.Name, "events", len(t.Events), "session", s.ID())
	return nil
}

func (c *Controller) step(factor float64) {
	if !c.limiter.Allow() {
		return
	}
	c.mu.Lock()
	m := c.speed * factor
	c.mu.Unlock()
	c.setSpeed(m)
}

func (c *Controller) setSpeed(m float64) {
	if math.IsNaN(m) {
		return
	}
	c.mu.Lock()
	c.speed = c.clamp(m)
	speed := c.speed
	c.mu.Unlock()
	if s := c.active(); s != nil {
		s.SetSpeed(speed)
	}
	c.log.Info("control: speed", "percent", math.Round(speed*100))
}

func (c *Controller) active() *playback.Session {
	if !c.player.Active() {
		return nil
	}
	return c.player.Current()
}

func (c *Controller) clamp(m float64) float64 {
	return min(max(m, c.cfg.MinSpeed), c.cfg.MaxSpeed)
}

package playback

import (
	"log/slog"
	"math"
	"time"
)

const (
	defaultStartDelay = 100 * time.Millisecond
	defaultMaxWait    = 250 * time.Millisecond
	defaultHoldMs     = 600

	MinSpeed = 0.1
	MaxSpeed = 5.0
)

type options struct {
	logger      *slog.Logger
	startDelay  time.Duration
	maxWait     time.Duration
	speed       float64
	minSpeed    float64
	maxSpeed    float64
	defaultHold int64
}

func defaultOptions() options {
	return options{
		logger:      slog.Default(),
		startDelay:  defaultStartDelay,
		maxWait:     defaultMaxWait,
		speed:       1,
		minSpeed:    MinSpeed,
		maxSpeed:    MaxSpeed,
		defaultHold: defaultHoldMs,
	}
}

// Option configures a Player.
type Option func(*options)

// WithLogger sets the logger sessions report to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStartDelay sets the pause between Start and the first event.
func WithStartDelay(d time.Duration) Option {
	return func(o *options) { o.startDelay = max(0, d) }
}

// WithMaxWait bounds how long the worker sleeps between timeline checks.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxWait = d
		}
	}
}

// WithSpeed sets the multiplier new sessions start at.
func WithSpeed(m float64) Option {
	return func(o *options) { o.speed = m }
}

// WithSpeedRange sets the clamp applied to every speed change.
func WithSpeedRange(lo, hi float64) Option {
	return func(o *options) {
		if lo > 0 && hi >= lo {
			o.minSpeed, o.maxSpeed = lo, hi
		}
	}
}

// WithDefaultHold sets the hold, in ms, used for a press with no release
// anywhere after it.
func WithDefaultHold(ms int64) Option {
	return func(o *options) {
		if ms > 0 {
			o.defaultHold = ms
		}
	}
}

func (o options) clamp(m float64) float64 {
	if math.IsNaN(m) {
		return o.minSpeed
	}
	return min(max(m, o.minSpeed), o.maxSpeed)
}

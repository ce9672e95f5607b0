// Package config loads and saves the player's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/chase3718/autohold/internal/actuator"
	"github.com/chase3718/autohold/internal/playback"
	"github.com/chase3718/autohold/internal/score"
)

const (
	// DefaultBaseDir is the configuration directory under the home directory
	DefaultBaseDir = ".autohold"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Actuator kinds.
const (
	KindLog    = "log"
	KindSerial = "serial"
	KindMIDI   = "midi"
)

// Config is the whole configuration file.
type Config struct {
	// KeyMap maps sheet key ids to actuator keys
	KeyMap score.KeyMap `yaml:"keymap,omitempty"`

	Hold     Hold     `yaml:"hold"`
	Playback Playback `yaml:"playback"`
	Actuator Actuator `yaml:"actuator"`

	path string
}

// Hold holds the hold inference tunables, in milliseconds.
type Hold struct {
	DefaultMs      int64   `yaml:"default_ms"`
	MinAutoMs      int64   `yaml:"min_auto_ms"`
	AllowOverlapMs int64   `yaml:"allow_overlap_ms"`
	GapRatio       float64 `yaml:"gap_ratio"`
	DenseChord     int     `yaml:"dense_chord"`
}

// Playback tunes the scheduler and the speed controls.
type Playback struct {
	StartDelay time.Duration `yaml:"start_delay"`
	MaxWait    time.Duration `yaml:"max_wait"`
	Speed      float64       `yaml:"speed"`
	MinSpeed   float64       `yaml:"min_speed"`
	MaxSpeed   float64       `yaml:"max_speed"`

	// SpeedStep is the factor one speed-up or speed-down applies
	SpeedStep float64 `yaml:"speed_step"`
	// SpeedRate is the minimum interval between two speed steps
	SpeedRate time.Duration `yaml:"speed_rate"`
}

// Actuator selects and configures the key output.
type Actuator struct {
	Kind   string `yaml:"kind"`
	Serial Serial `yaml:"serial"`
	MIDI   MIDI   `yaml:"midi"`
}

type Serial struct {
	Device string `yaml:"device,omitempty"`
	Baud   int    `yaml:"baud"`
}

type MIDI struct {
	// Port is a case-insensitive substring of the output name
	Port     string `yaml:"port,omitempty"`
	Channel  uint8  `yaml:"channel"`
	Velocity uint8  `yaml:"velocity"`

	// Pitches maps actuator keys to MIDI note numbers
	Pitches map[string]int `yaml:"pitches,omitempty"`
}

// Default returns the configuration the player ships with.
func Default() *Config {
	p := score.DefaultParams()
	return &Config{
		KeyMap: score.DefaultKeyMap(),
		Hold: Hold{
			DefaultMs:      p.DefaultHold,
			MinAutoMs:      p.MinAutoHold,
			AllowOverlapMs: p.AllowOverlap,
			GapRatio:       p.GapRatio,
			DenseChord:     p.DenseChord,
		},
		Playback: Playback{
			StartDelay: 100 * time.Millisecond,
			MaxWait:    250 * time.Millisecond,
			Speed:      1,
			MinSpeed:   playback.MinSpeed,
			MaxSpeed:   playback.MaxSpeed,
			SpeedStep:  1.01,
			SpeedRate:  60 * time.Millisecond,
		},
		Actuator: Actuator{
			Kind:   KindLog,
			Serial: Serial{Baud: 115200},
			MIDI:   MIDI{Velocity: 100},
		},
	}
}

// DefaultPath returns ~/.autohold/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultBaseDir, DefaultConfigFile), nil
}

// Load reads the configuration at path, or at DefaultPath when path is
// empty. A missing file yields the defaults. Fields the file leaves out keep
// their default value; a keymap in the file replaces the default one.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	keys := cfg.KeyMap
	cfg.KeyMap = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if len(cfg.KeyMap) == 0 {
		cfg.KeyMap = keys
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Path is where Save writes.
func (c *Config) Path() string { return c.path }

// SaveAs sets the file Save writes to.
func (c *Config) SaveAs(path string) { c.path = path }

// Save writes the configuration back to disk.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("config has no path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports every setting that is out of range.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	h := c.Hold
	if h.DefaultMs <= 0 {
		bad("hold.default_ms must be positive, got %d", h.DefaultMs)
	}
	if h.MinAutoMs <= 0 {
		bad("hold.min_auto_ms must be positive, got %d", h.MinAutoMs)
	}
	if h.AllowOverlapMs < 0 {
		bad("hold.allow_overlap_ms must not be negative, got %d", h.AllowOverlapMs)
	}
	if h.GapRatio <= 0 || h.GapRatio > 1 {
		bad("hold.gap_ratio must be in (0, 1], got %g", h.GapRatio)
	}
	if h.DenseChord < 1 {
		bad("hold.dense_chord must be at least 1, got %d", h.DenseChord)
	}

	p := c.Playback
	if p.StartDelay < 0 {
		bad("playback.start_delay must not be negative, got %s", p.StartDelay)
	}
	if p.MaxWait <= 0 {
		bad("playback.max_wait must be positive, got %s", p.MaxWait)
	}
	if p.MinSpeed <= 0 || p.MaxSpeed <= 0 {
		bad("playback speed bounds must be positive, got [%g, %g]", p.MinSpeed, p.MaxSpeed)
	} else if p.MinSpeed > p.MaxSpeed {
		bad("playback.min_speed %g exceeds max_speed %g", p.MinSpeed, p.MaxSpeed)
	}
	if p.Speed <= 0 {
		bad("playback.speed must be positive, got %g", p.Speed)
	}
	if p.SpeedStep <= 1 {
		bad("playback.speed_step must be greater than 1, got %g", p.SpeedStep)
	}
	if p.SpeedRate < 0 {
		bad("playback.speed_rate must not be negative, got %s", p.SpeedRate)
	}

	a := c.Actuator
	switch a.Kind {
	case KindLog, KindMIDI:
	case KindSerial:
		if a.Serial.Baud <= 0 {
			bad("actuator.serial.baud must be positive, got %d", a.Serial.Baud)
		}
	default:
		bad("actuator.kind must be one of %s, %s, %s; got %q", KindLog, KindSerial, KindMIDI, a.Kind)
	}
	if a.MIDI.Channel > 15 {
		bad("actuator.midi.channel must be 0-15, got %d", a.MIDI.Channel)
	}
	if a.MIDI.Velocity > 127 {
		bad("actuator.midi.velocity must be 0-127, got %d", a.MIDI.Velocity)
	}
	for k, n := range a.MIDI.Pitches {
		if n < 0 || n > 127 {
			bad("actuator.midi.pitches[%q] must be 0-127, got %d", k, n)
		}
	}
	return errors.Join(errs...)
}

// ScoreParams returns the hold tunables for the calculator.
func (c *Config) ScoreParams() score.Params {
	return score.Params{
		DefaultHold:  c.Hold.DefaultMs,
		MinAutoHold:  c.Hold.MinAutoMs,
		AllowOverlap: c.Hold.AllowOverlapMs,
		GapRatio:     c.Hold.GapRatio,
		DenseChord:   c.Hold.DenseChord,
	}
}

// PlayerOptions returns the scheduler settings as player options.
func (c *Config) PlayerOptions(log *slog.Logger) []playback.Option {
	p := c.Playback
	return []playback.Option{
		playback.WithLogger(log),
		playback.WithStartDelay(p.StartDelay),
		playback.WithMaxWait(p.MaxWait),
		playback.WithSpeedRange(p.MinSpeed, p.MaxSpeed),
		playback.WithSpeed(p.Speed),
		playback.WithDefaultHold(c.Hold.DefaultMs),
	}
}

// Layout returns the actuator keys in slot order: the instrument layout,
// then any other key the keymap targets.
func (c *Config) Layout() []string {
	layout := score.Layout()
	var extra []string
	for _, k := range c.KeyMap.Keys() {
		if !slices.Contains(layout, k) {
			extra = append(extra, k)
		}
	}
	return append(layout, extra...)
}

// MIDIPitches returns the note number for every actuator key, falling back
// to the instrument's default scale for keys the file does not set.
func (c *Config) MIDIPitches() map[string]uint8 {
	out := actuator.DefaultPitches(score.Layout(), score.LayoutPitches())
	for k, n := range c.Actuator.MIDI.Pitches {
		out[k] = uint8(n)
	}
	return out
}

package actuator

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// ExcludedPorts are virtual/system ports never picked automatically.
var ExcludedPorts = []string{"Midi Through", "Through Port", "Dummy"}

// MIDI plays keys as notes on a MIDI output.
type MIDI struct {
	mu       sync.Mutex
	send     func(midi.Message) error
	pitches  map[string]uint8
	channel  uint8
	velocity uint8
	log      *slog.Logger

	drv *rtmididrv.Driver
	out drivers.Out
}

// NewMIDI builds a MIDI actuator around a send function. pitches maps
// actuator keys to note numbers.
func NewMIDI(send func(midi.Message) error, pitches map[string]uint8, channel, velocity uint8, log *slog.Logger) *MIDI {
	if log == nil {
		log = slog.Default()
	}
	return &MIDI{
		send:     send,
		pitches:  pitches,
		channel:  channel & 0x0F,
		velocity: min(velocity, 127),
		log:      log,
	}
}

// OpenMIDI connects to the first output whose name contains pattern, or to
// the only non-excluded output when pattern is empty.
func OpenMIDI(pattern string, pitches map[string]uint8, channel, velocity uint8, log *slog.Logger) (*MIDI, error) {
	if log == nil {
		log = slog.Default()
	}
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	out, err := pickOut(drv, pattern)
	if err != nil {
		drv.Close()
		return nil, err
	}
	if err := out.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("open %q: %w", out.String(), err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		_ = out.Close()
		drv.Close()
		return nil, fmt.Errorf("send to %q: %w", out.String(), err)
	}
	log.Info("midi: output connected", "device", out.String(), "channel", channel)

	m := NewMIDI(send, pitches, channel, velocity, log)
	m.drv = drv
	m.out = out
	return m, nil
}

func (m *MIDI) Press(key string) error {
	p, err := m.pitch(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send(midi.NoteOn(m.channel, p, m.velocity))
}

func (m *MIDI) Release(key string) error {
	p, err := m.pitch(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send(midi.NoteOff(m.channel, p))
}

// Close silences every mapped note and closes the port.
func (m *MIDI) Close() error {
	for key := range m.pitches {
		_ = m.Release(key)
	}
	if m.out != nil {
		_ = m.out.Close()
	}
	if m.drv != nil {
		m.drv.Close()
	}
	m.log.Info("midi: output closed")
	return nil
}

func (m *MIDI) pitch(key string) (uint8, error) {
	p, ok := m.pitches[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return p, nil
}

// DefaultPitches maps each layout key to its scale pitch.
func DefaultPitches(layout []string, pitches []int) map[string]uint8 {
	out := make(map[string]uint8, len(layout))
	for i, k := range layout {
		if i < len(pitches) {
			out[k] = uint8(pitches[i])
		}
	}
	return out
}

// MIDIOutputs lists the output ports the rtmidi driver can see.
func MIDIOutputs() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	defer drv.Close()
	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("midi: list outputs: %w", err)
	}
	names := make([]string, 0, len(outs))
	for _, o := range outs {
		names = append(names, o.String())
	}
	return names, nil
}

func pickOut(drv *rtmididrv.Driver, pattern string) (drivers.Out, error) {
	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("midi: list outputs: %w", err)
	}
	var names []string
	for _, o := range outs {
		names = append(names, o.String())
	}
	i, ok := pickPreferred(names, pattern)
	if !ok {
		return nil, fmt.Errorf("midi: no output matching %q among [%s]", pattern, strings.Join(names, ", "))
	}
	return outs[i], nil
}

// pickPreferred returns the index of the port to use: the first one matching
// pattern, or the only one not excluded when pattern is empty.
func pickPreferred(names []string, pattern string) (int, bool) {
	if pattern != "" {
		for i, n := range names {
			if containsCI(n, pattern) {
				return i, true
			}
		}
		return 0, false
	}
	cand := -1
	for i, n := range names {
		excluded := false
		for _, pat := range ExcludedPorts {
			if containsCI(n, pat) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		if cand >= 0 {
			return 0, false
		}
		cand = i
	}
	return cand, cand >= 0
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

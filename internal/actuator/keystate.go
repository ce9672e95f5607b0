package actuator

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnknownKey is returned for a key the layout has no slot for.
var ErrUnknownKey = errors.New("actuator: key not in layout")

// KeyboardState tracks which layout slots are held and turns that into a
// Frame.
type KeyboardState struct {
	slots map[string]int
	down  uint16
	log   *slog.Logger
}

// NewKeyboardState maps each key in layout to its slot index. At most 16
// slots fit in a frame.
func NewKeyboardState(layout []string, log *slog.Logger) (*KeyboardState, error) {
	if len(layout) > 16 {
		return nil, fmt.Errorf("actuator: layout has %d keys, frame holds 16", len(layout))
	}
	slots := make(map[string]int, len(layout))
	for i, k := range layout {
		slots[k] = i
	}
	if log == nil {
		log = slog.Default()
	}
	return &KeyboardState{slots: slots, log: log}, nil
}

func (ks *KeyboardState) slot(key string) (int, error) {
	s, ok := ks.slots[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return s, nil
}

func (ks *KeyboardState) ApplyPress(key string) error {
	s, err := ks.slot(key)
	if err != nil {
		return err
	}
	ks.down |= 1 << s
	ks.log.Debug("keystate: slot held", "key", key, "slot", s)
	return nil
}

func (ks *KeyboardState) ApplyRelease(key string) error {
	s, err := ks.slot(key)
	if err != nil {
		return err
	}
	ks.down &^= 1 << s
	return nil
}

// ClearAll lets go of every slot.
func (ks *KeyboardState) ClearAll() {
	ks.down = 0
}

// Held reports how many slots are down.
func (ks *KeyboardState) Held() int {
	n := 0
	for d := ks.down; d != 0; d &= d - 1 {
		n++
	}
	return n
}

// BuildFrame snapshots the current state.
func (ks *KeyboardState) BuildFrame(seq byte) Frame {
	f := Frame{Down: ks.down, Seq: seq}
	ks.log.Debug("keystate: frame built", "seq", seq, "held", ks.Held(), "mask", fmt.Sprintf("%015b", ks.down))
	return f
}

// EmptyFrame returns an all-released frame (used for panic clear).
func EmptyFrame(seq byte) Frame {
	return Frame{Seq: seq}
}

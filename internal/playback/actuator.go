package playback

import (
	"errors"
	"fmt"
)

// Actuator presses and releases keys on whatever is being played.
type Actuator interface {
	Press(key string) error
	Release(key string) error
}

// ErrAlreadyRunning is returned by Start while another session still owns
// the actuator.
var ErrAlreadyRunning = errors.New("playback: session already running")

// ActuationError records a press or release the actuator rejected. The
// session logs it and moves on.
type ActuationError struct {
	Op  string
	Key string
	Err error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("playback: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ActuationError) Unwrap() error { return e.Err }

const (
	opPress   = "press"
	opRelease = "release"
)

// Package actuator provides the key actuators playback can drive: a serial
// keyboard bridge, a MIDI output, and a dry-run logger.
package actuator

import (
	"log/slog"
	"sync"
)

// Log is a dry-run actuator that only logs what it would press.
type Log struct {
	mu   sync.Mutex
	down map[string]bool
	log  *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{down: make(map[string]bool), log: log}
}

func (l *Log) Press(key string) error {
	l.mu.Lock()
	l.down[key] = true
	n := len(l.down)
	l.mu.Unlock()
	l.log.Info("key down", "key", key, "held", n)
	return nil
}

func (l *Log) Release(key string) error {
	l.mu.Lock()
	delete(l.down, key)
	n := len(l.down)
	l.mu.Unlock()
	l.log.Info("key up", "key", key, "held", n)
	return nil
}

// Held returns how many keys are down.
func (l *Log) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.down)
}

func (l *Log) Close() error {
	if n := l.Held(); n > 0 {
		l.log.Warn("keys still down at close", "held", n)
	}
	return nil
}

package actuator

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"
)

// Serial drives a microcontroller that presents itself to the host as a
// keyboard. Every press or release sends the full key state.
type Serial struct {
	mu    sync.Mutex
	port  io.WriteCloser
	state *KeyboardState
	seq   byte
	log   *slog.Logger
}

// OpenSerial opens the named serial device at the given baud rate.
func OpenSerial(name string, baud int, layout []string, log *slog.Logger) (*Serial, error) {
	if log == nil {
		log = slog.Default()
	}
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}
	log.Info("serial: port opened", "device", name, "baud", baud)
	s, err := NewSerial(p, layout, log)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

// NewSerial wraps an already open port.
func NewSerial(port io.WriteCloser, layout []string, log *slog.Logger) (*Serial, error) {
	if log == nil {
		log = slog.Default()
	}
	state, err := NewKeyboardState(layout, log)
	if err != nil {
		return nil, err
	}
	return &Serial{port: port, state: state, log: log}, nil
}

func (s *Serial) Press(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.ApplyPress(key); err != nil {
		return err
	}
	return s.sendFrame(s.state.BuildFrame(s.nextSeq()))
}

func (s *Serial) Release(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.ApplyRelease(key); err != nil {
		return err
	}
	return s.sendFrame(s.state.BuildFrame(s.nextSeq()))
}

// ReleaseAll clears every slot on the bridge in one frame.
func (s *Serial) ReleaseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ClearAll()
	return s.sendFrame(EmptyFrame(s.nextSeq()))
}

// Close releases everything and closes the port.
func (s *Serial) Close() error {
	if err := s.ReleaseAll(); err != nil {
		s.log.Warn("serial: release on close failed", "err", err)
	}
	s.log.Info("serial: closing port")
	return s.port.Close()
}

func (s *Serial) nextSeq() byte {
	seq := s.seq
	s.seq++
	return seq
}

func (s *Serial) sendFrame(f Frame) error {
	data := f.Encode()
	n, err := s.port.Write(data)
	if err != nil {
		s.log.Error("serial: write error", "err", err)
		return fmt.Errorf("serial: write: %w", err)
	}
	s.log.Debug("serial: frame sent", "bytes", n, "seq", f.Seq, "down", f.Down)
	return nil
}

// SerialPorts lists the serial devices present on the system.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serial: list ports: %w", err)
	}
	return ports, nil
}

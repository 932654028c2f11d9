// Package console mirrors log output to a serial port, the way the device
// reports on its UART at boot.
package console

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaud matches the device's boot console.
const DefaultBaud = 9600

// Auto selects the first serial port the system reports.
const Auto = "auto"

// Sink is an io.WriteCloser for log output. Lines are written with CRLF
// endings. Write never fails: output the port cannot take is counted and
// dropped so logging to the other handlers carries on.
type Sink struct {
	mu      sync.Mutex
	w       io.WriteCloser
	name    string
	dropped int
}

// Open opens dev at baud, 8N1. dev may be Auto.
func Open(dev string, baud int) (*Sink, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	if dev == Auto {
		ports, err := serial.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("console: list ports: %w", err)
		}
		if len(ports) == 0 {
			return nil, errors.New("console: no serial ports found")
		}
		dev = ports[0]
	}

	port, err := serial.Open(dev, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("console: open %s: %w", dev, err)
	}
	slog.Debug("console: opened", "device", dev, "baud", baud)
	return NewSink(dev, port), nil
}

// NewSink wraps an already open writer.
func NewSink(name string, w io.WriteCloser) *Sink {
	return &Sink{w: w, name: name}
}

// Name returns the device name.
func (s *Sink) Name() string { return s.name }

// Dropped returns how many writes failed.
func (s *Sink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return len(p), nil
	}
	out := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	if _, err := s.w.Write(out); err != nil {
		s.dropped++
	}
	return len(p), nil
}

// Close closes the port. Later writes are discarded.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	err := s.w.Close()
	s.w = nil
	return err
}

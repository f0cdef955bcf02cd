// Package t255 drives the T255 recirculating chiller that sets the baseplate
// temperature. Only whole steps are exposed: the feedback loop never sets an
// absolute temperature.
package t255

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/sweeney/lock-feedback/internal/serial"
)

// Controller is the temperature actuator used by the feedback loop.
type Controller interface {
	// Setpoint returns the current set temperature in °C (0.1 resolution).
	Setpoint() (float64, error)

	// RaiseOneStep raises the setpoint by one step.
	// Returns a *LimitError if the new setpoint would exceed the upper limit.
	RaiseOneStep() error

	// LowerOneStep lowers the setpoint by one step.
	// Returns a *LimitError if the new setpoint would fall below the lower limit.
	LowerOneStep() error

	// Close releases the controller. Safe to call more than once.
	Close() error
}

// CoolantReader is implemented by controllers that can report the measured
// coolant temperature.
type CoolantReader interface {
	CoolantTemperature() (float64, error)
}

// Limits bound the setpoint and define the step size.
type Limits struct {
	Lower float64
	Upper float64
	Step  float64
}

// DefaultLimits are the limits of the lab baseplate.
func DefaultLimits() Limits {
	return Limits{Lower: 17.5, Upper: 17.9, Step: 0.1}
}

// Check returns a *LimitError if target is outside the limits.
func (l Limits) Check(target float64) error {
	if target > l.Upper {
		return &LimitError{Target: target, Limit: l.Upper, Upper: true}
	}
	if target < l.Lower {
		return &LimitError{Target: target, Limit: l.Lower}
	}
	return nil
}

// flusher is implemented by transports that can drop stale input.
type flusher interface {
	Flush() error
}

const maxReply = 64

// T255 talks to the chiller over a serial line.
type T255 struct {
	mu     sync.Mutex
	rw     io.ReadWriter
	limits Limits
	closer io.Closer
	closed bool
}

// New creates a T255 over an already open transport. If rw implements
// io.Closer it is closed by Close.
func New(rw io.ReadWriter, limits Limits) *T255 {
	t := &T255{rw: rw, limits: limits}
	if c, ok := rw.(io.Closer); ok {
		t.closer = c
	}
	return t
}

// Open opens the serial device and returns a T255 using it.
func Open(cfg serial.Config, limits Limits) (*T255, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open t255: %w", err)
	}
	return New(port, limits), nil
}

// Setpoint returns the current set temperature.
func (t *T255) Setpoint() (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setpoint()
}

func (t *T255) setpoint() (float64, error) {
	reply, err := t.ask(CmdReadSetpoint)
	if err != nil {
		return 0, err
	}
	v, err := ParseSetpoint(reply)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return v, nil
}

// CoolantTemperature returns the measured coolant temperature.
func (t *T255) CoolantTemperature() (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	reply, err := t.ask(CmdReadCoolant)
	if err != nil {
		return 0, err
	}
	v, err := ParseCoolant(reply)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return v, nil
}

// RaiseOneStep raises the setpoint by one step.
func (t *T255) RaiseOneStep() error {
	return t.step(t.limits.Step)
}

// LowerOneStep lowers the setpoint by one step.
func (t *T255) LowerOneStep() error {
	return t.step(-t.limits.Step)
}

func (t *T255) step(delta float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, err := t.setpoint()
	if err != nil {
		return err
	}
	return t.setTemperature(roundTenths(current + delta))
}

func (t *T255) setTemperature(target float64) error {
	if err := t.limits.Check(target); err != nil {
		return err
	}

	cmd, err := EncodeSetpoint(target)
	if err != nil {
		return err
	}
	reply, err := t.ask(cmd)
	if err != nil {
		return err
	}

	// The confirmation is informational: the command has been sent either way.
	if confirmed, err := ParseSetConfirmation(reply); err != nil {
		log.Printf("t255: could not confirm set temp %.1f: %v", target, err)
	} else {
		log.Printf("t255: new set temp: %.1f", confirmed)
	}
	return nil
}

func (t *T255) ask(cmd string) (string, error) {
	if t.closed {
		return "", fmt.Errorf("%w: controller closed", ErrIO)
	}
	if f, ok := t.rw.(flusher); ok {
		if err := f.Flush(); err != nil {
			log.Printf("t255: flush: %v", err)
		}
	}
	if _, err := t.rw.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("%w: write %q: %v", ErrIO, cmd, err)
	}
	return t.readLine()
}

// readLine reads until a CR or LF terminator. A timeout before the
// terminator is an i/o failure.
func (t *T255) readLine() (string, error) {
	var line []byte
	buf := make([]byte, 16)
	for len(line) < maxReply {
		n, err := t.rw.Read(buf)
		line = append(line, buf[:n]...)
		if i := bytes.IndexAny(line, "\r\n"); i >= 0 {
			return string(line[:i+1]), nil
		}
		if err != nil {
			if errors.Is(err, serial.ErrTimeout) {
				return "", fmt.Errorf("%w: reply timed out after %d bytes", ErrIO, len(line))
			}
			return "", fmt.Errorf("%w: read reply: %v", ErrIO, err)
		}
	}
	return "", fmt.Errorf("%w: reply longer than %d bytes", ErrIO, maxReply)
}

// Close closes the underlying transport.
func (t *T255) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	log.Printf("t255: closing")
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

package t255

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/lock-feedback/internal/serial"
)

// device emulates a T255 on the far side of the serial line.
type device struct {
	tenths   int
	coolant  int // hundredths
	out      bytes.Buffer
	written  []string
	silent   bool
	writeErr error
	flushes  int
	closes   int
}

func (d *device) Write(p []byte) (int, error) {
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	cmd := string(p)
	d.written = append(d.written, cmd)
	if d.silent {
		return len(p), nil
	}
	switch {
	case cmd == CmdReadSetpoint:
		fmt.Fprintf(&d.out, "H0A+%04d\r", d.tenths)
	case cmd == CmdReadCoolant:
		fmt.Fprintf(&d.out, "I77+%04d\r", d.coolant)
	case strings.HasPrefix(cmd, ".M+"):
		v, _ := strconv.Atoi(cmd[3:6])
		d.tenths = v
		fmt.Fprintf(&d.out, "M+00%03d\r", v)
	}
	return len(p), nil
}

func (d *device) Read(p []byte) (int, error) {
	if d.out.Len() == 0 {
		return 0, serial.ErrTimeout
	}
	return d.out.Read(p)
}

func (d *device) Flush() error {
	d.flushes++
	d.out.Reset()
	return nil
}

func (d *device) Close() error {
	d.closes++
	return nil
}

func TestSetpoint(t *testing.T) {
	d := &device{tenths: 177}
	c := New(d, DefaultLimits())

	sp, err := c.Setpoint()
	require.NoError(t, err)
	assert.InDelta(t, 17.7, sp, 1e-9)
	assert.Equal(t, []string{CmdReadSetpoint}, d.written)
	assert.Equal(t, 1, d.flushes)
}

func TestCoolantTemperature(t *testing.T) {
	d := &device{coolant: 1768}
	c := New(d, DefaultLimits())

	v, err := c.CoolantTemperature()
	require.NoError(t, err)
	assert.InDelta(t, 17.68, v, 1e-9)
}

func TestRaiseOneStep(t *testing.T) {
	d := &device{tenths: 177}
	c := New(d, DefaultLimits())

	require.NoError(t, c.RaiseOneStep())
	assert.Equal(t, 178, d.tenths)
	assert.Equal(t, []string{CmdReadSetpoint, ".M+17846\r"}, d.written)
}

func TestLowerOneStep(t *testing.T) {
	d := &device{tenths: 177}
	c := New(d, DefaultLimits())

	require.NoError(t, c.LowerOneStep())
	assert.Equal(t, 176, d.tenths)
}

func TestStepToExactLimitIsAllowed(t *testing.T) {
	d := &device{tenths: 178}
	c := New(d, DefaultLimits())
	require.NoError(t, c.RaiseOneStep())
	assert.Equal(t, 179, d.tenths)

	d = &device{tenths: 176}
	c = New(d, DefaultLimits())
	require.NoError(t, c.LowerOneStep())
	assert.Equal(t, 175, d.tenths)
}

func TestRaiseAtUpperLimit(t *testing.T) {
	d := &device{tenths: 179}
	c := New(d, DefaultLimits())

	err := c.RaiseOneStep()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLimitExceeded))

	var le *LimitError
	require.True(t, errors.As(err, &le))
	assert.True(t, le.Upper)
	assert.InDelta(t, 18.0, le.Target, 1e-9)
	assert.Contains(t, le.Error(), "higher limit reached")

	// Only the read went out; no set command.
	assert.Equal(t, []string{CmdReadSetpoint}, d.written)
	assert.Equal(t, 179, d.tenths)
}

func TestLowerAtLowerLimit(t *testing.T) {
	d := &device{tenths: 175}
	c := New(d, DefaultLimits())

	err := c.LowerOneStep()
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.NotErrorIs(t, err, ErrIO)
	assert.Equal(t, 175, d.tenths)
}

func TestTimeoutIsIOError(t *testing.T) {
	d := &device{tenths: 177, silent: true}
	c := New(d, DefaultLimits())

	_, err := c.Setpoint()
	assert.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrLimitExceeded)

	assert.ErrorIs(t, c.RaiseOneStep(), ErrIO)
}

func TestWriteErrorIsIOError(t *testing.T) {
	d := &device{writeErr: errors.New("broken pipe")}
	c := New(d, DefaultLimits())

	_, err := c.Setpoint()
	assert.ErrorIs(t, err, ErrIO)
}

func TestGarbageReplyIsIOError(t *testing.T) {
	rw := &scripted{reply: "??\r"}
	c := New(rw, DefaultLimits())

	_, err := c.Setpoint()
	assert.ErrorIs(t, err, ErrIO)
}

func TestUnconfirmedSetIsNotAnError(t *testing.T) {
	rw := &scripted{reply: "H0A+0177\r", after: "??\r"}
	c := New(rw, DefaultLimits())

	assert.NoError(t, c.RaiseOneStep())
}

func TestCloseIdempotent(t *testing.T) {
	d := &device{tenths: 177}
	c := New(d, DefaultLimits())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, d.closes)

	_, err := c.Setpoint()
	assert.ErrorIs(t, err, ErrIO)
}

// scripted replies with reply to the first command and after to the rest.
type scripted struct {
	reply string
	after string
	calls int
	buf   bytes.Buffer
}

func (s *scripted) Write(p []byte) (int, error) {
	if s.calls == 0 || s.after == "" {
		s.buf.WriteString(s.reply)
	} else {
		s.buf.WriteString(s.after)
	}
	s.calls++
	return len(p), nil
}

func (s *scripted) Read(p []byte) (int, error) {
	if s.buf.Len() == 0 {
		return 0, serial.ErrTimeout
	}
	return s.buf.Read(p)
}

func TestFakeController(t *testing.T) {
	f := NewFakeController(17.8)

	require.NoError(t, f.RaiseOneStep())
	assert.InDelta(t, 17.9, f.Current, 1e-9)
	assert.ErrorIs(t, f.RaiseOneStep(), ErrLimitExceeded)

	raises, lowers := f.Calls()
	assert.Equal(t, 2, raises)
	assert.Equal(t, 0, lowers)

	f.LowerError = fmt.Errorf("%w: boom", ErrIO)
	assert.ErrorIs(t, f.LowerOneStep(), ErrIO)
	assert.InDelta(t, 17.9, f.Current, 1e-9)
}

func TestImplementsController(t *testing.T) {
	var _ Controller = (*T255)(nil)
	var _ Controller = (*FakeController)(nil)
	var _ CoolantReader = (*T255)(nil)
}

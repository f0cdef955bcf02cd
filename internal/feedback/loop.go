// Package feedback runs the lock stabilization loop: it samples the lock
// signal, classifies the lock, and steps the chiller setpoint to keep the
// signal mean inside the band.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/lock-feedback/internal/daq"
	"github.com/sweeney/lock-feedback/internal/gpio"
	"github.com/sweeney/lock-feedback/internal/history"
	"github.com/sweeney/lock-feedback/internal/logic"
	"github.com/sweeney/lock-feedback/internal/t255"
)

// Observer receives the report of every active iteration. Record is called
// from the loop goroutine and must not block.
type Observer interface {
	Record(r logic.Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(r logic.Report)

// Record calls f(r).
func (f ObserverFunc) Record(r logic.Report) { f(r) }

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithIndicator drives line high while the lock is held.
func WithIndicator(line gpio.Line) Option {
	return func(l *Loop) { l.indicator = line }
}

// WithObserver adds an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// Loop owns the sample history and the actuator state. Only the goroutine
// running Run (or calling Step) mutates them.
type Loop struct {
	cfg       Config
	reader    daq.Reader
	ctl       t255.Controller
	indicator gpio.Line
	observers []Observer
	now       func() time.Time

	active atomic.Bool

	mu       sync.RWMutex
	buf      *history.Buffer
	actuator *logic.Actuator
	watcher  *logic.Watcher
	setpoint float64
	last     logic.Report

	closeOnce sync.Once
	closeErr  error
}

// New creates a loop over the given devices and reads the initial setpoint.
// Errors wrap ErrFatalInit. The caller keeps ownership of the devices until
// New succeeds; afterwards Close (or Run) releases them.
func New(cfg Config, reader daq.Reader, ctl t255.Controller, opts ...Option) (*Loop, error) {
	if reader == nil {
		return nil, fmt.Errorf("%w: no acquisition device", ErrFatalInit)
	}
	if ctl == nil {
		return nil, fmt.Errorf("%w: no temperature controller", ErrFatalInit)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFatalInit, err)
	}

	l := &Loop{
		cfg:    cfg,
		reader: reader,
		ctl:    ctl,
		now:    time.Now,
		buf:    history.New(cfg.HistorySize),
	}
	for _, opt := range opts {
		opt(l)
	}

	sp, err := ctl.Setpoint()
	if err != nil {
		return nil, fmt.Errorf("%w: read setpoint: %w", ErrFatalInit, err)
	}

	start := l.now()
	l.setpoint = sp
	l.actuator = logic.NewActuator(cfg.Band, cfg.Settle, start)
	l.watcher = logic.NewWatcher(start)
	l.last = logic.Report{Timestamp: start, WithinBounds: true, Setpoint: sp}
	l.active.Store(cfg.StartActive)
	return l, nil
}

// SetActive starts or pauses sampling and actuation. Safe from any goroutine.
// Pausing does not reset the settle timer.
func (l *Loop) SetActive(active bool) {
	if l.active.Swap(active) != active {
		log.Printf("loop: active=%v", active)
	}
}

// Active reports whether the loop is sampling.
func (l *Loop) Active() bool {
	return l.active.Load()
}

// Run iterates until ctx is done, then releases the devices. An iteration in
// flight when ctx is cancelled completes first. Devices are released exactly
// once on every exit path, including a panic in a collaborator.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := l.Close(); err == nil {
			err = cerr
		}
	}()

	log.Printf("loop: started: band=[%.2f, %.2f] settle=%v batch=%d active=%v",
		l.cfg.Band.Low, l.cfg.Band.High, l.cfg.Settle, l.cfg.BatchSize, l.Active())

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("loop: stopping: %v", context.Cause(ctx))
			return nil
		case <-timer.C:
		}
		if ctx.Err() != nil {
			continue
		}
		timer.Reset(l.iterate())
	}
}

// iterate runs one pass of the loop and returns how long to wait before the
// next one. While paused nothing is read, recorded or actuated.
func (l *Loop) iterate() time.Duration {
	if !l.active.Load() {
		return l.cfg.PausedInterval
	}
	l.Step()
	return l.cfg.ActiveInterval
}

// Step runs one active iteration and returns its report. A failed or short
// read, or one holding NaN or Inf, records nothing and leaves the actuator untouched.
func (l *Loop) Step() logic.Report {
	now := l.now()

	batch, err := l.reader.ReadBatch(l.cfg.BatchSize)
	if err == nil && len(batch) != l.cfg.BatchSize {
		err = fmt.Errorf("%w: short batch: got %d of %d samples", daq.ErrIO, len(batch), l.cfg.BatchSize)
	}
	if err == nil && !logic.Finite(batch) {
		err = fmt.Errorf("%w: non-finite sample in batch", daq.ErrIO)
	}
	if err != nil {
		log.Printf("daq: read error: %v", err)
		l.mu.Lock()
		l.watcher.ObserveReadError()
		report := logic.Report{
			Timestamp:    now,
			Reading:      l.last.Reading,
			ReadErr:      err,
			WithinBounds: l.actuator.WithinBounds(),
			Setpoint:     l.setpoint,
			Counts:       l.watcher.CountsSnapshot(),
		}
		l.last = report
		l.mu.Unlock()
		l.notify(report)
		return report
	}

	reading := logic.ClassifyBatch(batch, l.cfg.Thresholds)

	l.mu.Lock()
	l.buf.Write(reading.Mean, now)
	decision := l.actuator.Evaluate(reading.State, reading.Mean, now)
	l.mu.Unlock()

	cmdErr := l.execute(decision, reading.Mean)
	setpoint := l.refreshSetpoint(decision, cmdErr)
	l.driveIndicator(reading.State)

	l.mu.Lock()
	events := l.watcher.Observe(reading, decision, cmdErr, setpoint, now)
	report := logic.Report{
		Timestamp:    now,
		Reading:      reading,
		Decision:     decision,
		CommandErr:   cmdErr,
		WithinBounds: l.actuator.WithinBounds(),
		Setpoint:     setpoint,
		Counts:       l.watcher.CountsSnapshot(),
		Events:       events,
	}
	l.last = report
	l.mu.Unlock()

	for _, e := range events {
		if e.Detail != "" {
			log.Printf("event: %s (lock=%s mean=%.3f setpoint=%.1f): %s", e.Type, e.Lock, e.Mean, e.Setpoint, e.Detail)
		} else {
			log.Printf("event: %s (lock=%s mean=%.3f setpoint=%.1f)", e.Type, e.Lock, e.Mean, e.Setpoint)
		}
	}
	l.notify(report)
	return report
}

// execute runs the controller command for d, if any. The actuator latch has
// already been cleared, so a failed command is not retried this excursion.
func (l *Loop) execute(d logic.Decision, mean float64) error {
	var err error
	switch d.Action {
	case logic.ActionRaise:
		log.Printf("loop: mean %.3f below %.2f, raising setpoint", mean, l.cfg.Band.Low)
		err = l.ctl.RaiseOneStep()
	case logic.ActionLower:
		log.Printf("loop: mean %.3f above %.2f, lowering setpoint", mean, l.cfg.Band.High)
		err = l.ctl.LowerOneStep()
	case logic.ActionRearm:
		log.Printf("loop: in band for more than %v, re-armed", l.cfg.Settle)
		return nil
	default:
		return nil
	}

	if err != nil {
		if errors.Is(err, t255.ErrLimitExceeded) {
			log.Printf("t255: %s rejected: %v", d.Action, err)
		} else {
			log.Printf("t255: %s failed: %v", d.Action, err)
		}
	}
	return err
}

// refreshSetpoint re-reads the setpoint after a successful step.
func (l *Loop) refreshSetpoint(d logic.Decision, cmdErr error) float64 {
	l.mu.RLock()
	sp := l.setpoint
	l.mu.RUnlock()

	if cmdErr != nil || (d.Action != logic.ActionRaise && d.Action != logic.ActionLower) {
		return sp
	}

	v, err := l.ctl.Setpoint()
	if err != nil {
		log.Printf("t255: read setpoint: %v", err)
		return sp
	}
	l.mu.Lock()
	l.setpoint = v
	l.mu.Unlock()
	return v
}

func (l *Loop) driveIndicator(state logic.LockState) {
	if l.indicator == nil {
		return
	}
	if err := l.indicator.Set(state == logic.Locked); err != nil {
		log.Printf("gpio: set lock indicator: %v", err)
	}
}

func (l *Loop) notify(r logic.Report) {
	for _, o := range l.observers {
		o.Record(r)
	}
}

// History returns a copy of every ring slot, including unwritten ones.
func (l *Loop) History() []history.Slot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.buf.Snapshot()
}

// Samples returns the recorded samples from oldest to newest.
func (l *Loop) Samples() []history.Sample {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.buf.Ordered()
}

// Latest returns the report of the most recent iteration.
func (l *Loop) Latest() logic.Report {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last
}

// CheckHeartbeat returns heartbeat data when interval has elapsed since the
// previous one.
func (l *Loop) CheckHeartbeat(now time.Time, interval time.Duration) *logic.HeartbeatData {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.watcher.CheckHeartbeat(now, interval)
}

// Band returns the configured band.
func (l *Loop) Band() logic.Band {
	return l.cfg.Band
}

// Close releases the indicator, the acquisition device and the controller.
// Only the first call does anything.
func (l *Loop) Close() error {
	l.closeOnce.Do(func() {
		var errs []error
		if l.indicator != nil {
			if err := l.indicator.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close indicator: %w", err))
			}
		}
		if err := l.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close daq: %w", err))
		}
		if err := l.ctl.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close t255: %w", err))
		}
		l.closeErr = errors.Join(errs...)
		log.Printf("loop: devices released")
	})
	return l.closeErr
}

package feedback

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/lock-feedback/internal/daq"
	"github.com/sweeney/lock-feedback/internal/history"
	"github.com/sweeney/lock-feedback/internal/logic"
)

// ErrFatalInit is wrapped by every error that prevents the loop from
// starting. There is no degraded mode.
var ErrFatalInit = errors.New("feedback: fatal init")

// Config holds the loop parameters.
type Config struct {
	BatchSize      int
	HistorySize    int
	Band           logic.Band
	Thresholds     logic.Thresholds
	Settle         time.Duration
	ActiveInterval time.Duration
	PausedInterval time.Duration
	StartActive    bool
}

// DefaultConfig returns the parameters of the lab setup.
func DefaultConfig() Config {
	return Config{
		BatchSize:      daq.DefaultBatchSize,
		HistorySize:    history.DefaultCapacity,
		Band:           logic.DefaultBand(),
		Thresholds:     logic.DefaultThresholds(),
		Settle:         20 * time.Second,
		ActiveInterval: 150 * time.Millisecond,
		PausedInterval: 100 * time.Millisecond,
		StartActive:    true,
	}
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	switch {
	case c.BatchSize < 1:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.HistorySize < 1:
		return fmt.Errorf("history size must be positive, got %d", c.HistorySize)
	case c.Band.Low >= c.Band.High:
		return fmt.Errorf("band low %.3f must be below high %.3f", c.Band.Low, c.Band.High)
	case c.Thresholds.NotLocking < 0:
		return fmt.Errorf("not-locking threshold must not be negative, got %.4f", c.Thresholds.NotLocking)
	case c.Thresholds.NotLocking >= c.Thresholds.OutOfLock:
		return fmt.Errorf("not-locking threshold %.4f must be below out-of-lock threshold %.4f",
			c.Thresholds.NotLocking, c.Thresholds.OutOfLock)
	case c.Settle < 0:
		return fmt.Errorf("settle window must not be negative, got %v", c.Settle)
	case c.ActiveInterval <= 0 || c.PausedInterval <= 0:
		return fmt.Errorf("intervals must be positive, got active=%v paused=%v", c.ActiveInterval, c.PausedInterval)
	}
	return nil
}

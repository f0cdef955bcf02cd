// Package sim is a simulated lock plant for running the daemon without the
// lab hardware. The mean of the lock signal follows the chiller setpoint and
// drifts slowly; the noise level selects the lock regime.
package sim

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sweeney/lock-feedback/internal/daq"
	"github.com/sweeney/lock-feedback/internal/t255"
)

// Config describes the plant.
type Config struct {
	Setpoint float64 // initial chiller setpoint, °C
	Nominal  float64 // setpoint at which the signal mean equals Mean
	Mean     float64 // signal mean at the nominal setpoint, V
	Gain     float64 // V per °C of setpoint offset

	DriftAmplitude float64 // V
	DriftPeriod    time.Duration

	Noise float64 // per-sample standard deviation, V
	Seed  uint64

	Limits t255.Limits
}

// DefaultConfig is a locked plant that drifts across the band edges every
// few minutes.
func DefaultConfig() Config {
	return Config{
		Setpoint:       17.7,
		Nominal:        17.7,
		Mean:           3.1,
		Gain:           4.0,
		DriftAmplitude: 1.2,
		DriftPeriod:    10 * time.Minute,
		Noise:          0.05,
		Seed:           1,
		Limits:         t255.DefaultLimits(),
	}
}

// Plant implements both daq.Reader and t255.Controller over shared state.
type Plant struct {
	mu       sync.Mutex
	cfg      Config
	setpoint float64
	noise    float64
	rng      *rand.Rand
	now      func() time.Time
	start    time.Time
	closed   bool
}

// New creates a plant using the wall clock.
func New(cfg Config) *Plant {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock creates a plant whose drift is driven by now.
func NewWithClock(cfg Config, now func() time.Time) *Plant {
	return &Plant{
		cfg:      cfg,
		setpoint: cfg.Setpoint,
		noise:    cfg.Noise,
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		now:      now,
		start:    now(),
	}
}

// SetNoise changes the per-sample noise. 0.1 keeps the lock, above 0.3 drops
// it, 0 simulates a disengaged lockbox.
func (p *Plant) SetNoise(std float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.noise = std
}

// Mean returns the current noiseless signal level.
func (p *Plant) Mean() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mean()
}

func (p *Plant) mean() float64 {
	m := p.cfg.Mean + p.cfg.Gain*(p.setpoint-p.cfg.Nominal)
	if p.cfg.DriftPeriod > 0 {
		phase := 2 * math.Pi * float64(p.now().Sub(p.start)) / float64(p.cfg.DriftPeriod)
		m += p.cfg.DriftAmplitude * math.Sin(phase)
	}
	return m
}

// ReadBatch returns n samples around the current mean.
func (p *Plant) ReadBatch(n int) ([]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("%w: simulator closed", daq.ErrIO)
	}
	m := p.mean()
	batch := make([]float64, n)
	for i := range batch {
		batch[i] = m + p.noise*p.rng.NormFloat64()
	}
	return batch, nil
}

// Setpoint returns the simulated chiller setpoint.
func (p *Plant) Setpoint() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, fmt.Errorf("%w: simulator closed", t255.ErrIO)
	}
	return p.setpoint, nil
}

// CoolantTemperature reports the setpoint; the simulated coolant tracks it exactly.
func (p *Plant) CoolantTemperature() (float64, error) {
	return p.Setpoint()
}

// RaiseOneStep raises the setpoint by one step within the limits.
func (p *Plant) RaiseOneStep() error {
	return p.step(p.cfg.Limits.Step)
}

// LowerOneStep lowers the setpoint by one step within the limits.
func (p *Plant) LowerOneStep() error {
	return p.step(-p.cfg.Limits.Step)
}

func (p *Plant) step(delta float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("%w: simulator closed", t255.ErrIO)
	}
	target := math.Round((p.setpoint+delta)*10) / 10
	if err := p.cfg.Limits.Check(target); err != nil {
		return err
	}
	p.setpoint = target
	return nil
}

// Close stops the plant. Safe to call from both faces.
func (p *Plant) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

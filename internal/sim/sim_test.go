package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/lock-feedback/internal/daq"
	"github.com/sweeney/lock-feedback/internal/logic"
	"github.com/sweeney/lock-feedback/internal/t255"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quiet() Config {
	cfg := DefaultConfig()
	cfg.DriftAmplitude = 0
	cfg.Noise = 0
	return cfg
}

func TestPlantImplementsBothFaces(t *testing.T) {
	var _ daq.Reader = (*Plant)(nil)
	var _ t255.Controller = (*Plant)(nil)
	var _ t255.CoolantReader = (*Plant)(nil)
}

func TestMeanFollowsSetpoint(t *testing.T) {
	p := NewWithClock(quiet(), func() time.Time { return t0 })

	batch, err := p.ReadBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 10)
	mean, std := logic.Stats(batch)
	assert.InDelta(t, 3.1, mean, 1e-9)
	assert.InDelta(t, 0, std, 1e-9)

	require.NoError(t, p.RaiseOneStep())
	sp, err := p.Setpoint()
	require.NoError(t, err)
	assert.InDelta(t, 17.8, sp, 1e-9)
	assert.InDelta(t, 3.5, p.Mean(), 1e-9)

	require.NoError(t, p.LowerOneStep())
	require.NoError(t, p.LowerOneStep())
	assert.InDelta(t, 2.7, p.Mean(), 1e-9)
}

func TestStepLimits(t *testing.T) {
	cfg := quiet()
	cfg.Setpoint = 17.9
	p := NewWithClock(cfg, func() time.Time { return t0 })

	assert.ErrorIs(t, p.RaiseOneStep(), t255.ErrLimitExceeded)
	sp, _ := p.Setpoint()
	assert.InDelta(t, 17.9, sp, 1e-9)
}

func TestDrift(t *testing.T) {
	cfg := quiet()
	cfg.DriftAmplitude = 1
	cfg.DriftPeriod = 4 * time.Minute
	now := t0
	p := NewWithClock(cfg, func() time.Time { return now })

	assert.InDelta(t, 3.1, p.Mean(), 1e-9)
	now = t0.Add(time.Minute)
	assert.InDelta(t, 4.1, p.Mean(), 1e-9)
	now = t0.Add(3 * time.Minute)
	assert.InDelta(t, 2.1, p.Mean(), 1e-9)
}

func TestNoiseSelectsLockRegime(t *testing.T) {
	p := NewWithClock(quiet(), func() time.Time { return t0 })
	th := logic.DefaultThresholds()

	batch, err := p.ReadBatch(10)
	require.NoError(t, err)
	assert.Equal(t, logic.NotLocking, logic.ClassifyBatch(batch, th).State)

	p.SetNoise(0.05)
	batch, err = p.ReadBatch(1000)
	require.NoError(t, err)
	r := logic.ClassifyBatch(batch, th)
	assert.Equal(t, logic.Locked, r.State)
	assert.InDelta(t, 0.05, r.StdDev, 0.01)

	p.SetNoise(1.0)
	batch, err = p.ReadBatch(1000)
	require.NoError(t, err)
	assert.Equal(t, logic.OutOfLock, logic.ClassifyBatch(batch, th).State)
}

func TestSeedIsDeterministic(t *testing.T) {
	a := NewWithClock(DefaultConfig(), func() time.Time { return t0 })
	b := NewWithClock(DefaultConfig(), func() time.Time { return t0 })

	ba, _ := a.ReadBatch(10)
	bb, _ := b.ReadBatch(10)
	assert.Equal(t, ba, bb)
}

func TestClosedPlantFails(t *testing.T) {
	p := NewWithClock(quiet(), func() time.Time { return t0 })
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.ReadBatch(10)
	assert.ErrorIs(t, err, daq.ErrIO)
	_, err = p.Setpoint()
	assert.ErrorIs(t, err, t255.ErrIO)
	assert.ErrorIs(t, p.RaiseOneStep(), t255.ErrIO)
}

package logic

import (
	"math"
	"testing"
)

func TestStats(t *testing.T) {
	mean, std := Stats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Errorf("mean: got %v, want 5", mean)
	}
	if std != 2 {
		t.Errorf("stddev: got %v, want 2", std)
	}
}

func TestStatsEmpty(t *testing.T) {
	mean, std := Stats(nil)
	if mean != 0 || std != 0 {
		t.Errorf("expected (0, 0) for empty batch, got (%v, %v)", mean, std)
	}
}

func TestStatsConstant(t *testing.T) {
	mean, std := Stats([]float64{3.1, 3.1, 3.1})
	if math.Abs(mean-3.1) > 1e-12 {
		t.Errorf("mean: got %v, want 3.1", mean)
	}
	if std > 1e-12 {
		t.Errorf("stddev: got %v, want 0", std)
	}
}

func TestClassify(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		std  float64
		want LockState
	}{
		{0.0, NotLocking},
		{0.001, NotLocking},
		{0.0049, NotLocking},
		{0.005, Locked}, // boundary is exclusive
		{0.05, Locked},
		{0.3, Locked}, // boundary is exclusive
		{0.3001, OutOfLock},
		{2.0, OutOfLock},
	}

	for _, tt := range tests {
		if got := Classify(tt.std, th); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.std, got, tt.want)
		}
	}
}

func TestClassifyUsesConfiguredThresholds(t *testing.T) {
	th := Thresholds{OutOfLock: 1.0, NotLocking: 0.5}
	if got := Classify(0.6, th); got != Locked {
		t.Errorf("Classify(0.6) = %s, want LOCKED", got)
	}
	if got := Classify(0.4, th); got != NotLocking {
		t.Errorf("Classify(0.4) = %s, want NOT_LOCKING", got)
	}
	if got := Classify(1.1, th); got != OutOfLock {
		t.Errorf("Classify(1.1) = %s, want OUT_OF_LOCK", got)
	}
}

func TestClassifyOutOfLockWinsWhenThresholdsOverlap(t *testing.T) {
	// Misconfigured thresholds: the out-of-lock check is evaluated first.
	th := Thresholds{OutOfLock: 0.1, NotLocking: 0.5}
	if got := Classify(0.2, th); got != OutOfLock {
		t.Errorf("Classify(0.2) = %s, want OUT_OF_LOCK", got)
	}
}

func TestClassifyNaNIsOutOfLock(t *testing.T) {
	if got := Classify(math.NaN(), DefaultThresholds()); got != OutOfLock {
		t.Errorf("Classify(NaN) = %s, want OUT_OF_LOCK", got)
	}
}

func TestClassifyBatchNonFinite(t *testing.T) {
	th := DefaultThresholds()
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		r := ClassifyBatch([]float64{3, 3.1, bad, 3}, th)
		if r.State != OutOfLock {
			t.Errorf("batch with %v: got %s, want OUT_OF_LOCK", bad, r.State)
		}
	}
}

func TestFinite(t *testing.T) {
	if !Finite([]float64{3, 3.1, -2}) {
		t.Error("Finite rejected a real batch")
	}
	if !Finite(nil) {
		t.Error("Finite rejected an empty batch")
	}
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if Finite([]float64{3, bad, 3}) {
			t.Errorf("Finite accepted a batch containing %v", bad)
		}
	}
}

func TestClassifyBatch(t *testing.T) {
	th := DefaultThresholds()

	noisy := []float64{0, 1, 0, 1, 0, 1, 0, 1, 0, 1} // std 0.5
	if r := ClassifyBatch(noisy, th); r.State != OutOfLock {
		t.Errorf("noisy batch: got %s, want OUT_OF_LOCK", r.State)
	}

	flat := []float64{3, 3, 3, 3, 3, 3, 3, 3, 3, 3}
	if r := ClassifyBatch(flat, th); r.State != NotLocking {
		t.Errorf("flat batch: got %s, want NOT_LOCKING", r.State)
	}

	locked := []float64{3.0, 3.1, 3.0, 3.1, 3.0, 3.1, 3.0, 3.1, 3.0, 3.1} // std 0.05
	r := ClassifyBatch(locked, th)
	if r.State != Locked {
		t.Errorf("locked batch: got %s, want LOCKED", r.State)
	}
	if math.Abs(r.Mean-3.05) > 1e-9 {
		t.Errorf("locked batch mean: got %v, want 3.05", r.Mean)
	}
	if math.Abs(r.StdDev-0.05) > 1e-9 {
		t.Errorf("locked batch stddev: got %v, want 0.05", r.StdDev)
	}
}

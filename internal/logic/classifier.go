package logic

import "math"

// Stats returns the mean and population standard deviation of batch.
// An empty batch yields (0, 0).
func Stats(batch []float64) (mean, stddev float64) {
	if len(batch) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range batch {
		sum += v
	}
	mean = sum / float64(len(batch))

	var sq float64
	for _, v := range batch {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(batch)))
}

// Finite reports whether every sample in batch is a real number.
func Finite(batch []float64) bool {
	for _, v := range batch {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Classify maps a batch standard deviation to a lock state.
// Order matters: the out-of-lock check wins over the not-locking check.
// Both comparisons are strict, so a stddev equal to either threshold is Locked.
// A NaN stddev is OutOfLock.
func Classify(stddev float64, th Thresholds) LockState {
	switch {
	case math.IsNaN(stddev), stddev > th.OutOfLock:
		return OutOfLock
	case stddev < th.NotLocking:
		return NotLocking
	default:
		return Locked
	}
}

// ClassifyBatch reduces a raw batch to a Reading.
func ClassifyBatch(batch []float64, th Thresholds) Reading {
	mean, std := Stats(batch)
	return Reading{
		Mean:   mean,
		StdDev: std,
		State:  Classify(std, th),
	}
}

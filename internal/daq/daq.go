// Package daq provides analog voltage acquisition with hardware abstraction.
// The real implementation reads a Linux industrial-I/O ADC channel.
// The fake implementation allows testing without hardware.
package daq

import "errors"

// ErrIO is wrapped by every acquisition failure.
var ErrIO = errors.New("daq: i/o failure")

// DefaultBatchSize is the number of samples per read used by the lab setup.
const DefaultBatchSize = 10

// Reader acquires batches of voltage samples.
type Reader interface {
	// ReadBatch returns exactly n samples in volts, or an error wrapping ErrIO.
	ReadBatch(n int) ([]float64, error)

	// Close releases acquisition resources. Safe to call more than once.
	Close() error
}

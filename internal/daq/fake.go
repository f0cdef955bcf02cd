package daq

import "fmt"

// FakeReader is a test double that returns scripted batches.
type FakeReader struct {
	// Batches contains scripted batches to return.
	// Each call to ReadBatch() consumes the next batch.
	Batches [][]float64

	// index tracks current position in Batches
	index int

	// Reads counts ReadBatch calls.
	Reads int

	// CloseCalls counts Close calls.
	CloseCalls int

	// ReadError, if set, will be returned by ReadBatch().
	ReadError error

	// OnRead, if set, is called at the start of every ReadBatch.
	OnRead func(call int)
}

// NewFakeReader creates a FakeReader with the given batches.
func NewFakeReader(batches ...[]float64) *FakeReader {
	return &FakeReader{Batches: batches}
}

// ReadBatch returns the next scripted batch.
// If batches are exhausted, returns the last batch repeatedly.
func (f *FakeReader) ReadBatch(n int) ([]float64, error) {
	f.Reads++
	if f.OnRead != nil {
		f.OnRead(f.Reads)
	}

	if f.ReadError != nil {
		return nil, f.ReadError
	}

	if len(f.Batches) == 0 {
		return nil, fmt.Errorf("%w: no batches configured", ErrIO)
	}

	batch := f.Batches[f.index]
	if f.index < len(f.Batches)-1 {
		f.index++
	}

	out := make([]float64, len(batch))
	copy(out, batch)
	return out, nil
}

// Close counts the call.
func (f *FakeReader) Close() error {
	f.CloseCalls++
	return nil
}

// Closed reports whether Close was called at least once.
func (f *FakeReader) Closed() bool {
	return f.CloseCalls > 0
}

// Constant returns a batch of n copies of v.
func Constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Alternating returns a batch of n samples alternating mean±amp.
// Its population standard deviation is amp when n is even.
func Alternating(mean, amp float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = mean - amp
		} else {
			out[i] = mean + amp
		}
	}
	return out
}

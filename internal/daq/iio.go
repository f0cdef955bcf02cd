package daq

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultIIORoot is where the kernel exposes industrial-I/O devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

// IIOConfig selects an ADC channel exposed through sysfs.
type IIOConfig struct {
	// Root defaults to DefaultIIORoot.
	Root string
	// Device is the IIO device directory name, e.g. "iio:device0".
	Device string
	// Channel is the voltage channel index (in_voltageN_raw).
	Channel int
	// SamplePeriod is the delay between consecutive samples of a batch.
	SamplePeriod time.Duration
}

// IIOReader reads voltages from a Linux IIO ADC channel.
// Each sample is raw * scale, where scale is in millivolts per count.
type IIOReader struct {
	mu       sync.Mutex
	raw      *os.File
	scale    float64
	offset   float64
	period   time.Duration
	closed   bool
	rawPath  string
	buf      []byte
	sleepFor func(time.Duration)
}

// NewIIOReader opens the channel. The scale (and optional offset) files are
// read once at open time.
func NewIIOReader(cfg IIOConfig) (*IIOReader, error) {
	root := cfg.Root
	if root == "" {
		root = DefaultIIORoot
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("%w: iio device name required", ErrIO)
	}
	dir := filepath.Join(root, cfg.Device)

	scale, err := readFloatFile(filepath.Join(dir, fmt.Sprintf("in_voltage%d_scale", cfg.Channel)))
	if err != nil {
		// Some drivers only expose a shared scale.
		scale, err = readFloatFile(filepath.Join(dir, "in_voltage_scale"))
		if err != nil {
			return nil, fmt.Errorf("%w: read scale: %v", ErrIO, err)
		}
	}

	var offset float64
	if v, err := readFloatFile(filepath.Join(dir, fmt.Sprintf("in_voltage%d_offset", cfg.Channel))); err == nil {
		offset = v
	}

	rawPath := filepath.Join(dir, fmt.Sprintf("in_voltage%d_raw", cfg.Channel))
	f, err := os.Open(rawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open channel: %v", ErrIO, err)
	}

	return &IIOReader{
		raw:      f,
		scale:    scale,
		offset:   offset,
		period:   cfg.SamplePeriod,
		rawPath:  rawPath,
		buf:      make([]byte, 32),
		sleepFor: time.Sleep,
	}, nil
}

// ReadBatch reads n consecutive samples, SamplePeriod apart.
func (r *IIOReader) ReadBatch(n int) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("%w: reader closed", ErrIO)
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i > 0 && r.period > 0 {
			r.sleepFor(r.period)
		}
		v, err := r.readOne()
		if err != nil {
			return nil, fmt.Errorf("%w: sample %d of %d: %v", ErrIO, i+1, n, err)
		}
		out[i] = v
	}
	return out, nil
}

func (r *IIOReader) readOne() (float64, error) {
	// sysfs attributes must be re-read from offset 0 for a fresh conversion
	m, err := r.raw.ReadAt(r.buf, 0)
	if m == 0 && err != nil {
		return 0, err
	}
	counts, err := strconv.ParseFloat(strings.TrimSpace(string(r.buf[:m])), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", r.rawPath, err)
	}
	// scale is mV per count
	return (counts + r.offset) * r.scale / 1000, nil
}

// Close releases the channel file.
func (r *IIOReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.raw.Close()
}

func readFloatFile(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
}

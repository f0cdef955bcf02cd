//go:build !linux

package serial

import "errors"

// Port is not available on non-Linux platforms.
type Port struct{}

// Open returns an error on non-Linux platforms.
func Open(cfg Config) (*Port, error) {
	return nil, errors.New("serial: not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (p *Port) Read(buf []byte) (int, error) { return 0, ErrClosed }

// Write is not implemented on non-Linux platforms.
func (p *Port) Write(buf []byte) (int, error) { return 0, ErrClosed }

// Flush is not implemented on non-Linux platforms.
func (p *Port) Flush() error { return ErrClosed }

// Close is a no-op on non-Linux platforms.
func (p *Port) Close() error { return nil }

// Device returns an empty path on non-Linux platforms.
func (p *Port) Device() string { return "" }

// Package gpio drives the lock indicator digital output line.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Line is a single digital output.
type Line interface {
	// Set drives the line active (true) or inactive (false).
	Set(on bool) error

	// Close releases the line, leaving it inactive.
	Close() error
}

// Default line definitions (BCM numbering)
const (
	DefaultChip    = "gpiochip0"
	DefaultPinLock = 21 // Lock indicator LED / DAQ digital input
)

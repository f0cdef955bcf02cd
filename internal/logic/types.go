// Package logic contains the pure decision logic of the lock feedback loop.
// This package has NO external dependencies (no DAQ, serial, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// LockState is the lock condition derived from one batch of samples.
type LockState string

const (
	// OutOfLock means the signal is too noisy: the lock has failed.
	OutOfLock LockState = "OUT_OF_LOCK"
	// NotLocking means the signal is too quiet: the lockbox is disengaged.
	NotLocking LockState = "NOT_LOCKING"
	// Locked is the nominal state.
	Locked LockState = "LOCKED"
)

// Thresholds are the standard-deviation boundaries used by Classify.
type Thresholds struct {
	// OutOfLock: a batch stddev strictly above this is OutOfLock.
	OutOfLock float64
	// NotLocking: a batch stddev strictly below this is NotLocking.
	NotLocking float64
}

// DefaultThresholds are the calibrated boundaries of the lab lockbox.
func DefaultThresholds() Thresholds {
	return Thresholds{OutOfLock: 0.3, NotLocking: 0.005}
}

// Band is the acceptable range of the batch mean, in volts.
type Band struct {
	Low  float64
	High float64
}

// DefaultBand is the band used by the lab setup.
func DefaultBand() Band {
	return Band{Low: 2.2, High: 4.0}
}

// Action is what the actuator wants done this iteration.
type Action string

const (
	ActionNone  Action = "NONE"
	ActionRaise Action = "RAISE"
	ActionLower Action = "LOWER"
	ActionRearm Action = "REARM"
)

// Bound reports where the mean sat relative to the band.
type Bound string

const (
	BoundUnknown Bound = ""
	BoundLow     Bound = "LOW"
	BoundHigh    Bound = "HIGH"
	BoundIn      Bound = "IN"
)

// Decision is the outcome of one Actuator.Evaluate call.
type Decision struct {
	Action Action
	Bound  Bound
}

// Reading is the reduced form of one batch.
type Reading struct {
	Mean   float64
	StdDev float64
	State  LockState
}

// EventType is a notable change worth publishing.
type EventType string

const (
	EventLocked          EventType = "LOCKED"
	EventOutOfLock       EventType = "OUT_OF_LOCK"
	EventNotLocking      EventType = "NOT_LOCKING"
	EventRaise           EventType = "RAISE"
	EventLower           EventType = "LOWER"
	EventRearm           EventType = "REARM"
	EventActuationFailed EventType = "ACTUATION_FAILED"
)

// Event represents a transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Lock      LockState
	Mean      float64
	Setpoint  float64 // 0 when unknown
	Detail    string  // error text for ACTUATION_FAILED
}

// Counts tracks loop activity since startup.
type Counts struct {
	Iterations int
	ReadErrors int
	Raises     int
	Lowers     int
	Rearms     int
	Failures   int
}

// Report is everything observers learn about one active iteration.
// Reading is the zero value when the batch read failed.
type Report struct {
	Timestamp    time.Time
	Reading      Reading
	ReadErr      error
	Decision     Decision
	CommandErr   error
	WithinBounds bool
	Setpoint     float64
	Counts       Counts
	Events       []Event
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}

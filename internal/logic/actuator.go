package logic

import "time"

// Actuator is a debounced bang-bang controller. It asks for at most one
// temperature step per excursion outside the band and re-arms only after the
// mean has stayed inside the band for longer than the settle window.
type Actuator struct {
	band   Band
	settle time.Duration

	withinBounds      bool
	lastOutOfBoundsAt time.Time
}

// NewActuator creates an armed actuator. The settle window starts at start.
func NewActuator(band Band, settle time.Duration, start time.Time) *Actuator {
	return &Actuator{
		band:              band,
		settle:            settle,
		withinBounds:      true,
		lastOutOfBoundsAt: start,
	}
}

// Evaluate takes the lock state and batch mean of one iteration and returns
// what the caller should do. The latch is updated before the caller runs the
// command, so a command that later fails still counts as the one attempt
// for this excursion.
func (a *Actuator) Evaluate(state LockState, mean float64, now time.Time) Decision {
	if state != Locked {
		// Keep the settle timer from completing on a signal that is not really locked.
		a.lastOutOfBoundsAt = now
		return Decision{Action: ActionNone, Bound: BoundUnknown}
	}

	switch {
	case mean < a.band.Low:
		a.lastOutOfBoundsAt = now
		if !a.withinBounds {
			return Decision{Action: ActionNone, Bound: BoundLow}
		}
		a.withinBounds = false
		return Decision{Action: ActionRaise, Bound: BoundLow}

	case mean > a.band.High:
		a.lastOutOfBoundsAt = now
		if !a.withinBounds {
			return Decision{Action: ActionNone, Bound: BoundHigh}
		}
		a.withinBounds = false
		return Decision{Action: ActionLower, Bound: BoundHigh}
	}

	if !a.withinBounds && now.Sub(a.lastOutOfBoundsAt) > a.settle {
		a.withinBounds = true
		return Decision{Action: ActionRearm, Bound: BoundIn}
	}
	return Decision{Action: ActionNone, Bound: BoundIn}
}

// WithinBounds reports whether the actuator is armed.
func (a *Actuator) WithinBounds() bool {
	return a.withinBounds
}

// LastOutOfBoundsAt returns the start of the current settle window.
func (a *Actuator) LastOutOfBoundsAt() time.Time {
	return a.lastOutOfBoundsAt
}

// Band returns the configured band.
func (a *Actuator) Band() Band {
	return a.band
}

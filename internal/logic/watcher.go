package logic

import "time"

// Watcher tracks lock-state transitions and actuation counts and turns them
// into events.
type Watcher struct {
	current       LockState
	baselined     bool
	startTime     time.Time
	counts        Counts
	lastHeartbeat time.Time
}

// NewWatcher creates a Watcher. The startTime is used for calculating uptime
// in heartbeat events.
func NewWatcher(startTime time.Time) *Watcher {
	return &Watcher{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// ObserveReadError counts an iteration whose batch read failed.
func (w *Watcher) ObserveReadError() {
	w.counts.Iterations++
	w.counts.ReadErrors++
}

// Observe records one classified batch and the actuator decision that
// followed it. cmdErr is the result of running the decision's command (nil
// when no command ran). Returns the events to publish, lock transition first.
// The first reading only establishes the baseline and emits no lock event.
func (w *Watcher) Observe(r Reading, d Decision, cmdErr error, setpoint float64, now time.Time) []Event {
	w.counts.Iterations++

	var events []Event
	if !w.baselined {
		w.baselined = true
		w.current = r.State
	} else if r.State != w.current {
		w.current = r.State
		events = append(events, w.event(eventTypeForState(r.State), r, setpoint, now))
	}

	switch d.Action {
	case ActionRaise:
		w.counts.Raises++
		events = append(events, w.event(EventRaise, r, setpoint, now))
	case ActionLower:
		w.counts.Lowers++
		events = append(events, w.event(EventLower, r, setpoint, now))
	case ActionRearm:
		w.counts.Rearms++
		events = append(events, w.event(EventRearm, r, setpoint, now))
	}

	if cmdErr != nil {
		w.counts.Failures++
		e := w.event(EventActuationFailed, r, setpoint, now)
		e.Detail = cmdErr.Error()
		events = append(events, e)
	}

	return events
}

func (w *Watcher) event(t EventType, r Reading, setpoint float64, now time.Time) Event {
	return Event{
		Timestamp: now,
		Type:      t,
		Lock:      w.current,
		Mean:      r.Mean,
		Setpoint:  setpoint,
	}
}

func eventTypeForState(s LockState) EventType {
	switch s {
	case Locked:
		return EventLocked
	case OutOfLock:
		return EventOutOfLock
	default:
		return EventNotLocking
	}
}

// IsBaselined returns whether at least one batch has been classified.
func (w *Watcher) IsBaselined() bool {
	return w.baselined
}

// CurrentState returns the last observed lock state ("" before baseline).
func (w *Watcher) CurrentState() LockState {
	return w.current
}

// CountsSnapshot returns a copy of the activity counters.
func (w *Watcher) CountsSnapshot() Counts {
	return w.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled). Unlike lock events, heartbeats do not wait
// for a baseline: a paused loop still reports that it is alive.
func (w *Watcher) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(w.lastHeartbeat) < interval {
		return nil
	}

	w.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(w.startTime),
		Counts:    w.counts,
	}
}

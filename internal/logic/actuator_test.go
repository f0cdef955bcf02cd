package logic

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestActuator() *Actuator {
	return NewActuator(Band{Low: 2.2, High: 4.0}, 20*time.Second, t0)
}

func TestNewActuatorIsArmed(t *testing.T) {
	a := newTestActuator()
	if !a.WithinBounds() {
		t.Error("new actuator should start within bounds")
	}
	if !a.LastOutOfBoundsAt().Equal(t0) {
		t.Errorf("expected settle window to start at %v, got %v", t0, a.LastOutOfBoundsAt())
	}
}

func TestBelowBandRaisesOnce(t *testing.T) {
	a := newTestActuator()

	d := a.Evaluate(Locked, 1.9, t0.Add(time.Second))
	if d.Action != ActionRaise {
		t.Fatalf("expected RAISE, got %s", d.Action)
	}
	if d.Bound != BoundLow {
		t.Errorf("expected bound LOW, got %s", d.Bound)
	}
	if a.WithinBounds() {
		t.Error("latch should be engaged after a raise")
	}
}

func TestAboveBandLowersOnce(t *testing.T) {
	a := newTestActuator()

	d := a.Evaluate(Locked, 4.5, t0.Add(time.Second))
	if d.Action != ActionLower {
		t.Fatalf("expected LOWER, got %s", d.Action)
	}
	if d.Bound != BoundHigh {
		t.Errorf("expected bound HIGH, got %s", d.Bound)
	}
	if a.WithinBounds() {
		t.Error("latch should be engaged after a lower")
	}
}

func TestSustainedExcursionStepsOnlyOnce(t *testing.T) {
	a := newTestActuator()

	raises := 0
	for i := 0; i < 10; i++ {
		d := a.Evaluate(Locked, 1.5, t0.Add(time.Duration(i)*150*time.Millisecond))
		if d.Action == ActionRaise {
			raises++
		}
		if d.Action == ActionLower {
			t.Fatalf("iteration %d: unexpected LOWER", i)
		}
	}
	if raises != 1 {
		t.Errorf("expected exactly 1 raise over 10 iterations, got %d", raises)
	}
}

func TestLatchedExcursionNeverSteps(t *testing.T) {
	a := newTestActuator()
	a.Evaluate(Locked, 1.5, t0) // engage latch

	for i := 1; i <= 10; i++ {
		if d := a.Evaluate(Locked, 1.5, t0.Add(time.Duration(i)*time.Minute)); d.Action != ActionNone {
			t.Errorf("iteration %d: expected NONE while latched, got %s", i, d.Action)
		}
	}
}

func TestExcursionResetsSettleTimer(t *testing.T) {
	a := newTestActuator()
	at := t0.Add(5 * time.Second)
	a.Evaluate(Locked, 4.2, at)
	if !a.LastOutOfBoundsAt().Equal(at) {
		t.Errorf("expected settle window start %v, got %v", at, a.LastOutOfBoundsAt())
	}
}

func TestRearmAfterSettleWindow(t *testing.T) {
	a := newTestActuator()
	start := t0.Add(time.Second)
	a.Evaluate(Locked, 1.9, start)

	// Within the band but inside the settle window
	for _, dt := range []time.Duration{time.Second, 10 * time.Second, 19 * time.Second} {
		d := a.Evaluate(Locked, 3.0, start.Add(dt))
		if d.Action != ActionNone {
			t.Errorf("at +%v: expected NONE, got %s", dt, d.Action)
		}
		if a.WithinBounds() {
			t.Errorf("at +%v: latch should still be engaged", dt)
		}
	}

	// Exactly at the settle window: the comparison is strict
	if d := a.Evaluate(Locked, 3.0, start.Add(20*time.Second)); d.Action != ActionNone {
		t.Errorf("at exactly 20s: expected NONE, got %s", d.Action)
	}
	if a.WithinBounds() {
		t.Error("latch should not re-arm at exactly the settle window")
	}

	d := a.Evaluate(Locked, 3.0, start.Add(20*time.Second+time.Millisecond))
	if d.Action != ActionRearm {
		t.Fatalf("expected REARM just past the settle window, got %s", d.Action)
	}
	if !a.WithinBounds() {
		t.Error("latch should be re-armed")
	}

	// Already armed: no further rearm decisions
	if d := a.Evaluate(Locked, 3.0, start.Add(time.Minute)); d.Action != ActionNone {
		t.Errorf("expected NONE once armed, got %s", d.Action)
	}
}

func TestNotLockedNeverActuates(t *testing.T) {
	for _, state := range []LockState{OutOfLock, NotLocking} {
		a := newTestActuator()
		for i, mean := range []float64{-5, 0, 1.9, 3.0, 4.1, 10} {
			d := a.Evaluate(state, mean, t0.Add(time.Duration(i)*time.Second))
			if d.Action != ActionNone {
				t.Errorf("%s mean=%v: expected NONE, got %s", state, mean, d.Action)
			}
		}
		if !a.WithinBounds() {
			t.Errorf("%s: latch must not be touched while not locked", state)
		}
	}
}

func TestNotLockedResetsSettleTimer(t *testing.T) {
	a := newTestActuator()
	a.Evaluate(Locked, 1.9, t0) // engage latch

	// Noisy signal keeps pushing the settle window forward
	for i := 1; i <= 30; i++ {
		a.Evaluate(OutOfLock, 3.0, t0.Add(time.Duration(i)*time.Second))
	}

	// Back in lock, in band: only 5s since the last unlocked iteration
	d := a.Evaluate(Locked, 3.0, t0.Add(35*time.Second))
	if d.Action != ActionNone {
		t.Errorf("expected NONE, got %s", d.Action)
	}
	if a.WithinBounds() {
		t.Error("settle timer should have been reset by unlocked iterations")
	}

	d = a.Evaluate(Locked, 3.0, t0.Add(51*time.Second))
	if d.Action != ActionRearm {
		t.Errorf("expected REARM 21s after last unlocked iteration, got %s", d.Action)
	}
}

func TestBandEdgesAreInside(t *testing.T) {
	a := newTestActuator()
	if d := a.Evaluate(Locked, 2.2, t0); d.Action != ActionNone || d.Bound != BoundIn {
		t.Errorf("mean == low: expected NONE/IN, got %s/%s", d.Action, d.Bound)
	}
	if d := a.Evaluate(Locked, 4.0, t0); d.Action != ActionNone || d.Bound != BoundIn {
		t.Errorf("mean == high: expected NONE/IN, got %s/%s", d.Action, d.Bound)
	}
}

func TestOppositeExcursionWhileLatched(t *testing.T) {
	a := newTestActuator()
	a.Evaluate(Locked, 1.9, t0)

	// Overshoot to the other side before re-arming: no lower is sent
	if d := a.Evaluate(Locked, 4.5, t0.Add(time.Second)); d.Action != ActionNone {
		t.Errorf("expected NONE while latched, got %s", d.Action)
	}
}

// Scenario: low=2.2 high=4.0, armed; 1.9 -> raise, 1.8 -> nothing,
// 3.0 at t+25s -> re-arm without a command.
func TestBangBangScenario(t *testing.T) {
	a := newTestActuator()
	tick := t0.Add(time.Second)

	if d := a.Evaluate(Locked, 1.9, tick); d.Action != ActionRaise {
		t.Fatalf("tick 1: expected RAISE, got %s", d.Action)
	}
	if a.WithinBounds() {
		t.Fatal("tick 1: latch should be engaged")
	}

	if d := a.Evaluate(Locked, 1.8, tick.Add(150*time.Millisecond)); d.Action != ActionNone {
		t.Fatalf("tick 2: expected NONE, got %s", d.Action)
	}

	d := a.Evaluate(Locked, 3.0, tick.Add(150*time.Millisecond+25*time.Second))
	if d.Action != ActionRearm {
		t.Fatalf("tick 3: expected REARM, got %s", d.Action)
	}
	if !a.WithinBounds() {
		t.Error("tick 3: latch should be re-armed")
	}
}

package t255

import "sync"

// FakeController is a test double that tracks the setpoint in memory and
// counts every step attempt.
type FakeController struct {
	mu sync.Mutex

	Current float64
	Limits  Limits

	RaiseCalls    int
	LowerCalls    int
	SetpointCalls int
	CloseCalls    int

	// Errors returned instead of acting. A nil value means succeed.
	RaiseError    error
	LowerError    error
	SetpointError error
}

// NewFakeController creates a fake at setpoint with the default limits.
func NewFakeController(setpoint float64) *FakeController {
	return &FakeController{Current: setpoint, Limits: DefaultLimits()}
}

// Setpoint returns the current setpoint.
func (f *FakeController) Setpoint() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetpointCalls++
	if f.SetpointError != nil {
		return 0, f.SetpointError
	}
	return f.Current, nil
}

// RaiseOneStep counts the attempt and raises the setpoint within limits.
func (f *FakeController) RaiseOneStep() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RaiseCalls++
	if f.RaiseError != nil {
		return f.RaiseError
	}
	return f.move(f.Limits.Step)
}

// LowerOneStep counts the attempt and lowers the setpoint within limits.
func (f *FakeController) LowerOneStep() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LowerCalls++
	if f.LowerError != nil {
		return f.LowerError
	}
	return f.move(-f.Limits.Step)
}

func (f *FakeController) move(delta float64) error {
	target := roundTenths(f.Current + delta)
	if err := f.Limits.Check(target); err != nil {
		return err
	}
	f.Current = target
	return nil
}

// Close records the call.
func (f *FakeController) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCalls++
	return nil
}

// Calls returns the raise and lower attempt counts.
func (f *FakeController) Calls() (raises, lowers int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RaiseCalls, f.LowerCalls
}

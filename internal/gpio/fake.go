package gpio

// FakeLine is a test double that records output values.
type FakeLine struct {
	// Values contains every value passed to Set, in order.
	Values []bool

	// SetError, if set, will be returned by Set().
	SetError error

	// CloseCalls counts Close calls.
	CloseCalls int
}

// NewFakeLine creates a FakeLine.
func NewFakeLine() *FakeLine {
	return &FakeLine{}
}

// Set records the value.
func (f *FakeLine) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, on)
	return nil
}

// Close counts the call.
func (f *FakeLine) Close() error {
	f.CloseCalls++
	return nil
}

// Current returns the last value set (false if never set).
func (f *FakeLine) Current() bool {
	if len(f.Values) == 0 {
		return false
	}
	return f.Values[len(f.Values)-1]
}

// Reset clears recorded values.
func (f *FakeLine) Reset() {
	f.Values = nil
	f.SetError = nil
	f.CloseCalls = 0
}

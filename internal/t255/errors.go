package t255

import (
	"errors"
	"fmt"
)

// ErrIO is wrapped by serial communication failures.
var ErrIO = errors.New("t255: i/o failure")

// ErrLimitExceeded matches every *LimitError via errors.Is.
var ErrLimitExceeded = errors.New("t255: setpoint limit exceeded")

// LimitError reports a step rejected because the new setpoint would leave
// the allowed range. Nothing was sent to the controller.
type LimitError struct {
	Target float64
	Limit  float64
	Upper  bool
}

func (e *LimitError) Error() string {
	if e.Upper {
		return fmt.Sprintf("higher limit reached: desired T: %.2f, limit %.2f", e.Target, e.Limit)
	}
	return fmt.Sprintf("lower limit reached: desired T: %.2f, limit %.2f", e.Target, e.Limit)
}

// Is reports whether target is ErrLimitExceeded.
func (e *LimitError) Is(target error) bool {
	return target == ErrLimitExceeded
}

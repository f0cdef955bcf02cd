package t255

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Commands understood by the T255 chiller. The checksum is part of the
// fixed read commands.
const (
	CmdReadCoolant  = ".I77\r"  // 2E 49 37 37 0D
	CmdReadSetpoint = ".H0A6\r" // 2E 48 30 41 36 0D
)

// setPrefixSum is '.' + 'M' + '+', the constant part of the set checksum.
const setPrefixSum = 46 + 77 + 43

// EncodeSetpoint builds the set-temperature command for temp in °C.
// The temperature is sent as three digits of tenths of a degree followed by
// a two-digit lowercase hex checksum.
func EncodeSetpoint(temp float64) (string, error) {
	tenths := int(math.Round(10 * temp))
	if tenths < 0 || tenths > 999 {
		return "", fmt.Errorf("t255: setpoint %.1f out of encodable range", temp)
	}
	digits := fmt.Sprintf("%03d", tenths)
	return ".M+" + digits + fmt.Sprintf("%02x", checksum(digits)) + "\r", nil
}

func checksum(digits string) int {
	sum := setPrefixSum
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i])
	}
	return sum % 256
}

// ParseCoolant decodes a coolant temperature reply (hundredths of a degree
// in bytes 3..8).
func ParseCoolant(reply string) (float64, error) {
	v, err := field(reply, 3, 8)
	if err != nil {
		return 0, fmt.Errorf("parse coolant reply %q: %w", reply, err)
	}
	return v / 100, nil
}

// ParseSetpoint decodes a set-temperature reply (tenths of a degree in
// bytes 4..8).
func ParseSetpoint(reply string) (float64, error) {
	v, err := field(reply, 4, 8)
	if err != nil {
		return 0, fmt.Errorf("parse setpoint reply %q: %w", reply, err)
	}
	return v / 10, nil
}

// ParseSetConfirmation decodes the reply to a set command (tenths of a
// degree in bytes 4..7).
func ParseSetConfirmation(reply string) (float64, error) {
	v, err := field(reply, 4, 7)
	if err != nil {
		return 0, fmt.Errorf("parse set reply %q: %w", reply, err)
	}
	return v / 10, nil
}

func field(reply string, from, to int) (float64, error) {
	if len(reply) < to {
		return 0, fmt.Errorf("short reply (%d bytes)", len(reply))
	}
	return strconv.ParseFloat(strings.TrimSpace(reply[from:to]), 64)
}

// roundTenths rounds to the controller's resolution so repeated steps do not
// accumulate float error (17.8 + 0.1 must compare equal to 17.9).
func roundTenths(v float64) float64 {
	return math.Round(v*10) / 10
}

package sensor

import (
	"fmt"
	"strings"
)

// SourceFlags is a bitset selecting which physical quantities a sensor
// should sample. Sensors that cannot restrict themselves simply ignore
// the flags they do not understand.
type SourceFlags uint8

const (
	// SourceCurrent selects current readings.
	SourceCurrent SourceFlags = 1 << iota
	// SourceVoltage selects voltage readings.
	SourceVoltage
	// SourcePower selects power readings.
	SourcePower

	// SourceAll selects every supported quantity.
	SourceAll = SourceCurrent | SourceVoltage | SourcePower
)

// Has returns true if any of the given flags are enabled.
func (f SourceFlags) Has(other SourceFlags) bool {
	return f&other != 0
}

func (f SourceFlags) String() string {
	if f == 0 {
		return "none"
	}
	parts := make([]string, 0, 3)
	if f.Has(SourceCurrent) {
		parts = append(parts, "current")
	}
	if f.Has(SourceVoltage) {
		parts = append(parts, "voltage")
	}
	if f.Has(SourcePower) {
		parts = append(parts, "power")
	}
	return strings.Join(parts, ",")
}

// MarshalText implements encoding.TextMarshaler.
func (f SourceFlags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts a
// comma-separated list of quantity names, plus "all" and "none".
func (f *SourceFlags) UnmarshalText(data []byte) error {
	var flags SourceFlags
	for _, part := range strings.Split(string(data), ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "current":
			flags |= SourceCurrent
		case "voltage":
			flags |= SourceVoltage
		case "power":
			flags |= SourcePower
		case "all":
			flags |= SourceAll
		case "none", "":
		default:
			return fmt.Errorf("%w: unknown source %q", ErrInvalidArgument, part)
		}
	}
	*f = flags
	return nil
}

package sensor

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a caller-supplied value is
// outside the accepted domain, such as a non-positive sampling interval
// or an unknown source name.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrNotSupported is returned when the requested operation or quantity
// is not available on this platform or device.
var ErrNotSupported = errors.New("not supported")

// A DeviceError wraps a failure reported by the underlying hardware or
// its OS interface. Sensor is the name of the affected sensor, when
// known, and Op the operation that failed.
type DeviceError struct {
	Sensor string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Sensor == "" {
		return fmt.Sprintf("device error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sensor %s: %s: %v", e.Sensor, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

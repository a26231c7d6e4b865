package sensor

import (
	"bytes"
	"fmt"
	"time"
)

// Resolution selects the granularity that reading timestamps are
// truncated to before delivery.
type Resolution int8

// Supported timestamp resolutions. The zero value is milliseconds so
// that an unset resolution defaults to it.
const (
	Milliseconds Resolution = iota
	Seconds
	Microseconds
	Nanoseconds
)

func (r Resolution) String() string {
	switch r {
	case Seconds:
		return "seconds"
	case Milliseconds:
		return "milliseconds"
	case Microseconds:
		return "microseconds"
	case Nanoseconds:
		return "nanoseconds"
	default:
		return fmt.Sprintf("resolution(%d)", int8(r))
	}
}

// Granularity returns the duration of one unit of the resolution.
func (r Resolution) Granularity() time.Duration {
	switch r {
	case Seconds:
		return time.Second
	case Microseconds:
		return time.Microsecond
	case Nanoseconds:
		return time.Nanosecond
	default:
		return time.Millisecond
	}
}

// Truncate rounds t down to the resolution's granularity.
func (r Resolution) Truncate(t time.Time) time.Time {
	if r == Nanoseconds {
		return t
	}
	return t.Truncate(r.Granularity())
}

// Timestamp converts t to a scalar count of resolution units since the
// Unix epoch.
func (r Resolution) Timestamp(t time.Time) int64 {
	switch r {
	case Seconds:
		return t.Unix()
	case Microseconds:
		return t.UnixMicro()
	case Nanoseconds:
		return t.UnixNano()
	default:
		return t.UnixMilli()
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Resolution) MarshalText() ([]byte, error) {
	switch r {
	case Seconds, Milliseconds, Microseconds, Nanoseconds:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("%w: unknown timestamp resolution %d", ErrInvalidArgument, int8(r))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting both the
// full unit names and their usual abbreviations.
func (r *Resolution) UnmarshalText(data []byte) error {
	switch string(bytes.ToLower(bytes.TrimSpace(data))) {
	case "seconds", "s":
		*r = Seconds
	case "milliseconds", "ms", "":
		*r = Milliseconds
	case "microseconds", "us", "µs":
		*r = Microseconds
	case "nanoseconds", "ns":
		*r = Nanoseconds
	default:
		return fmt.Errorf("%w: unknown timestamp resolution %q", ErrInvalidArgument, data)
	}
	return nil
}

package csv

import (
	"fmt"
	"strings"
)

// TimeFormat selects how row timestamps are rendered.
type TimeFormat string

// valid defined values for TimeFormat
const (
	// TimeFormatUnix renders timestamps as fractional seconds since the
	// Unix epoch, with microsecond precision.
	TimeFormatUnix TimeFormat = "unix"
	// TimeFormatRFC3339 renders timestamps as RFC 3339 strings with
	// nanosecond precision.
	TimeFormatRFC3339 TimeFormat = "rfc3339"
)

// TimeFormatString parses a TimeFormat from its string representation.
func TimeFormatString(s string) (TimeFormat, error) {
	timeFormat := TimeFormat(strings.ToLower(s))
	switch timeFormat {
	case TimeFormatUnix, TimeFormatRFC3339:
		return timeFormat, nil
	}
	return "", fmt.Errorf("unknown time format %q", s)
}

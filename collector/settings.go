// Package collector ties sensors, sampling configurations and a sink
// together into one managed unit with a start/stop lifecycle.
package collector

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/powertap/powertap/output"
	"github.com/powertap/powertap/sampling"
	"github.com/powertap/powertap/sensor"
	"github.com/powertap/powertap/types"
)

// Settings configures a Collector. The zero value of every field except
// Sink is usable; missing values are filled with defaults.
type Settings struct {
	// Interval is the sampling interval for sensors without a dedicated
	// configuration.
	Interval types.NullDuration

	// MinimumSleep caps how long a sampling goroutine sleeps in one go,
	// which bounds how long stopping the collector can take.
	MinimumSleep types.NullDuration

	// Resolution is the granularity reading timestamps are truncated to.
	Resolution sensor.Resolution

	// Sources restricts which quantities the sensors are asked for. The
	// zero value selects all of them.
	Sources sensor.SourceFlags

	// Sink receives everything the sensors produce. Required.
	Sink output.Sink

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	// MaxConsecutiveFailures disables a sensor after this many failed
	// samples in a row. Zero keeps failing sensors alive indefinitely.
	MaxConsecutiveFailures int

	// FS is the filesystem configuration files are read from and
	// templates are written to.
	FS afero.Fs
}

// withDefaults returns a copy with every unset field filled in.
func (s Settings) withDefaults() Settings {
	if !s.Interval.Valid {
		s.Interval = types.NullDurationFrom(sampling.DefaultInterval)
	}
	if !s.MinimumSleep.Valid {
		s.MinimumSleep = types.NullDurationFrom(sampling.DefaultMinimumSleep)
	}
	if s.Sources == 0 {
		s.Sources = sensor.SourceAll
	}
	if s.Logger == nil {
		s.Logger = logrus.StandardLogger()
	}
	if s.FS == nil {
		s.FS = afero.NewOsFs()
	}
	return s
}

// Validate returns every problem with the settings, or nil.
func (s Settings) Validate() []error {
	var errs []error
	if s.Sink == nil {
		errs = append(errs, fmt.Errorf("%w: a sink is required", sensor.ErrInvalidArgument))
	}
	if s.Interval.Valid && s.Interval.TimeDuration() <= 0 {
		errs = append(errs, fmt.Errorf(
			"%w: sampling interval must be positive, got %s",
			sensor.ErrInvalidArgument, s.Interval.TimeDuration()))
	}
	if s.MinimumSleep.Valid && s.MinimumSleep.TimeDuration() < 0 {
		errs = append(errs, fmt.Errorf(
			"%w: minimum sleep must not be negative, got %s",
			sensor.ErrInvalidArgument, s.MinimumSleep.TimeDuration()))
	}
	return errs
}

// newConfig builds the sampling configuration a sensor gets when no
// dedicated one was supplied. Delivery is wired up by the collector.
func (s Settings) newConfig() *sampling.Config {
	return sampling.NewConfig().
		Every(s.Interval.TimeDuration()).
		SleepingAtLeast(s.MinimumSleep.TimeDuration()).
		FromSources(s.Sources).
		WithResolution(s.Resolution)
}

// Package sampling implements asynchronous periodic sampling of
// sensors, one goroutine per sensor, with cooperative shutdown.
package sampling

import (
	"fmt"
	"time"

	"github.com/powertap/powertap/sensor"
)

// Defaults applied by NewConfig.
const (
	DefaultInterval     = 5000 * time.Microsecond
	DefaultMinimumSleep = 100 * time.Millisecond
)

// A ReadingHandler receives whole batches of readings from one sensor.
// This is the preferred delivery path, since it amortises the callback
// cost over every reading a Sample call produced.
type ReadingHandler func(source string, readings []sensor.Reading, context any)

// A MeasurementHandler receives readings one at a time, each wrapped in
// a self-describing Measurement. Prefer ReadingHandler for new code;
// this form allocates one Measurement per reading.
type MeasurementHandler func(m *sensor.Measurement, context any)

// Config describes how one sensor should be sampled: how often, how
// readings are delivered and under which timestamp resolution.
//
// A Config is built with chained setters and is not safe for concurrent
// mutation. Hand it to a Sampler and leave it alone until the sampler
// stops.
type Config struct {
	interval      time.Duration
	minimumSleep  time.Duration
	onReadings    ReadingHandler
	onMeasurement MeasurementHandler
	context       any
	release       func(context any)
	sources       sensor.SourceFlags
	resolution    sensor.Resolution
}

// NewConfig returns a disabled Config with default interval, minimum
// sleep, resolution and source selection.
func NewConfig() *Config {
	return &Config{
		interval:     DefaultInterval,
		minimumSleep: DefaultMinimumSleep,
		sources:      sensor.SourceAll,
		resolution:   sensor.Milliseconds,
	}
}

// DeliversReadingsTo routes future readings to h as whole batches,
// replacing any previously configured handler of either kind. A nil h
// disables delivery.
func (c *Config) DeliversReadingsTo(h ReadingHandler) *Config {
	c.onReadings = h
	c.onMeasurement = nil
	return c
}

// DeliversMeasurementsTo routes future readings to h one Measurement at
// a time, replacing any previously configured handler of either kind.
// A nil h disables delivery.
func (c *Config) DeliversMeasurementsTo(h MeasurementHandler) *Config {
	c.onMeasurement = h
	c.onReadings = nil
	return c
}

// Disable removes any configured delivery handler.
func (c *Config) Disable() *Config {
	c.onReadings = nil
	c.onMeasurement = nil
	return c
}

// Every sets the sampling interval. The value is validated when the
// configuration is handed to a sampler, not here.
func (c *Config) Every(interval time.Duration) *Config {
	c.interval = interval
	return c
}

// SleepingAtLeast sets the longest uninterruptible wait the sampling
// loop may perform. Smaller values make shutdown more responsive at the
// cost of extra wakeups on long intervals.
func (c *Config) SleepingAtLeast(d time.Duration) *Config {
	c.minimumSleep = d
	return c
}

// PassingContext stores an arbitrary value that is passed verbatim to
// every delivery callback. Any previously attached owned context is
// released first.
func (c *Config) PassingContext(v any) *Config {
	c.releaseContext()
	c.context = v
	return c
}

// AttachContext stores a context value together with a release function
// that the Config now owns. The release function runs exactly once, on
// Reset or when a later Attach/PassingContext call replaces the value.
func (c *Config) AttachContext(v any, release func(context any)) *Config {
	c.releaseContext()
	c.context = v
	c.release = release
	return c
}

// FromSources restricts which quantities the sensor should sample, for
// sensors that support filtering.
func (c *Config) FromSources(f sensor.SourceFlags) *Config {
	c.sources = f
	return c
}

// WithResolution sets the granularity that reading timestamps are
// truncated to before delivery.
func (c *Config) WithResolution(r sensor.Resolution) *Config {
	c.resolution = r
	return c
}

// Interval returns the configured sampling interval.
func (c *Config) Interval() time.Duration { return c.interval }

// MinimumSleep returns the longest uninterruptible wait allowed.
func (c *Config) MinimumSleep() time.Duration { return c.minimumSleep }

// Context returns the attached context value, if any.
func (c *Config) Context() any { return c.context }

// Sources returns the configured source selection.
func (c *Config) Sources() sensor.SourceFlags { return c.sources }

// Resolution returns the configured timestamp resolution.
func (c *Config) Resolution() sensor.Resolution { return c.resolution }

// Enabled reports whether a delivery handler is configured.
func (c *Config) Enabled() bool {
	return c.onReadings != nil || c.onMeasurement != nil
}

// Validate returns every problem with the configuration, or nil.
func (c *Config) Validate() []error {
	var errs []error
	if c.interval <= 0 {
		errs = append(errs, fmt.Errorf(
			"%w: sampling interval must be positive, got %s", sensor.ErrInvalidArgument, c.interval))
	}
	if c.minimumSleep < 0 {
		errs = append(errs, fmt.Errorf(
			"%w: minimum sleep must not be negative, got %s", sensor.ErrInvalidArgument, c.minimumSleep))
	}
	return errs
}

// Deliver truncates the reading timestamps to the configured resolution
// and invokes the configured handler. It reports whether a handler was
// invoked. The readings slice is modified in place and must not be
// reused by the caller afterwards.
func (c *Config) Deliver(source string, readings []sensor.Reading) bool {
	if !c.Enabled() {
		return false
	}
	for i := range readings {
		readings[i].Time = c.resolution.Truncate(readings[i].Time)
	}
	if c.onReadings != nil {
		c.onReadings(source, readings, c.context)
		return true
	}
	for i := range readings {
		c.onMeasurement(&sensor.Measurement{Sensor: source, Reading: readings[i]}, c.context)
	}
	return true
}

// Reset releases any owned context and restores every field to its
// NewConfig default.
func (c *Config) Reset() {
	c.releaseContext()
	*c = *NewConfig()
}

// releaseContext clears the release hook before invoking it, so the
// hook runs at most once even if it panics or re-enters the Config.
func (c *Config) releaseContext() {
	release, ctx := c.release, c.context
	c.release, c.context = nil, nil
	if release != nil {
		release(ctx)
	}
}

package collector

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/powertap/powertap/output"
	"github.com/powertap/powertap/sampling"
	"github.com/powertap/powertap/sensor"
	"github.com/powertap/powertap/sensors"
)

// SensorConfig pairs a sensor with the sampling configuration it should
// run under. A nil Config means the collector's defaults.
type SensorConfig struct {
	Sensor sensor.Sensor
	Config *sampling.Config
}

// A Collector owns a set of sensors and their sampling configurations,
// routes every reading they produce into a single sink, and manages the
// combined lifecycle. It goes through the states created, running and
// stopped exactly once; stopping finalises the sink, so a stopped
// collector cannot be restarted.
//
// All methods are safe for concurrent use, and the query methods are
// safe on a nil or zero-value Collector.
type Collector struct {
	logger   logrus.FieldLogger
	settings Settings

	mu      sync.Mutex
	pairs   []SensorConfig
	sampler *sampling.Sampler
	valid   bool
	running bool
	stopped bool
	closed  bool
}

// New builds a Collector from the given settings and sensor pairs.
// Every validation problem is reported at once.
func New(settings Settings, pairs ...SensorConfig) (*Collector, error) {
	settings = settings.withDefaults()

	errs := settings.Validate()
	seen := make(map[string]bool, len(pairs))
	for i, p := range pairs {
		if p.Sensor == nil {
			errs = append(errs, fmt.Errorf("%w: sensor #%d is nil", sensor.ErrInvalidArgument, i))
			continue
		}
		name := p.Sensor.Name()
		if name == "" {
			errs = append(errs, fmt.Errorf("%w: sensor #%d has no name", sensor.ErrInvalidArgument, i))
		} else if seen[name] {
			errs = append(errs, fmt.Errorf("%w: duplicate sensor %q", sensor.ErrInvalidArgument, name))
		}
		seen[name] = true
		if p.Config != nil {
			errs = append(errs, p.Config.Validate()...)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	c := &Collector{
		logger:   settings.Logger.WithField("component", "collector"),
		settings: settings,
		pairs:    make([]SensorConfig, len(pairs)),
		valid:    true,
	}
	copy(c.pairs, pairs)
	for i := range c.pairs {
		if c.pairs[i].Config == nil {
			c.pairs[i].Config = settings.newConfig()
		}
	}
	return c, nil
}

// ForAll builds a Collector for every sensor that can be discovered on
// this machine, all sampled under the collector's default configuration.
func ForAll(settings Settings) (*Collector, error) {
	settings = settings.withDefaults()
	discovered := sensors.Discover(settings.Logger)
	if len(discovered) == 0 {
		return nil, fmt.Errorf("%w: no usable sensors found", sensor.ErrNotSupported)
	}
	pairs := make([]SensorConfig, len(discovered))
	for i, sen := range discovered {
		pairs[i] = SensorConfig{Sensor: sen}
	}
	return New(settings, pairs...)
}

// Start starts the sink and begins sampling every sensor. Calling Start
// on a collector that is already running is a no-op.
func (c *Collector) Start() error {
	if c == nil || !c.valid {
		return errors.New("collector is not valid")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return errors.New("collector is closed")
	case c.stopped:
		return errors.New("a stopped collector cannot be restarted")
	case c.running:
		return nil
	}

	sink := c.settings.Sink
	if err := sink.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", sink.Description(), err)
	}

	c.sampler = sampling.New(sampling.Options{
		Logger:                 c.settings.Logger,
		MaxConsecutiveFailures: c.settings.MaxConsecutiveFailures,
	})
	for _, p := range c.pairs {
		cfg := p.Config
		if !cfg.Enabled() {
			cfg.DeliversReadingsTo(c.deliver)
		}
		if err := c.sampler.Add(p.Sensor, cfg); err != nil {
			err = fmt.Errorf("couldn't start sampling %s: %w", p.Sensor.Name(), err)
			c.sampler.Stop()
			return errors.Join(err, sink.Stop())
		}
	}

	c.logger.WithField("sensors", len(c.pairs)).Debug("Collection started")
	c.running = true
	return nil
}

// deliver routes one batch of readings into the sink.
func (c *Collector) deliver(source string, readings []sensor.Reading, _ any) {
	c.settings.Sink.AddReadings(source, readings)
}

// Stop ends sampling and finalises the sink. Stopping a collector that
// never ran, or stopping twice, is a no-op.
func (c *Collector) Stop() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Collector) stopLocked() error {
	if !c.running {
		return nil
	}
	c.sampler.Stop()
	c.running = false
	c.stopped = true
	c.logger.Debug("Collection stopped")
	return c.settings.Sink.Stop()
}

// Marker injects a labelled marker into the output stream at the
// current time. Markers recorded before Start are emitted once the sink
// starts flushing.
func (c *Collector) Marker(label string) error {
	if c == nil || !c.valid {
		return errors.New("collector is not valid")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("collector is closed")
	}
	c.settings.Sink.AddMarker(output.Marker{Time: time.Now(), Label: label})
	return nil
}

// Add registers another sensor. Sensors can only be added while the
// collector is not running.
func (c *Collector) Add(sen sensor.Sensor, cfg *sampling.Config) error {
	if c == nil || !c.valid {
		return errors.New("collector is not valid")
	}
	if sen == nil {
		return fmt.Errorf("%w: nil sensor", sensor.ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return errors.New("collector is closed")
	case c.running:
		return errors.New("sensors cannot be added while the collector is running")
	}
	name := sen.Name()
	if name == "" {
		return fmt.Errorf("%w: sensor has no name", sensor.ErrInvalidArgument)
	}
	for _, p := range c.pairs {
		if p.Sensor.Name() == name {
			return fmt.Errorf("%w: duplicate sensor %q", sensor.ErrInvalidArgument, name)
		}
	}
	if cfg == nil {
		cfg = c.settings.newConfig()
	} else if errs := cfg.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}
	c.pairs = append(c.pairs, SensorConfig{Sensor: sen, Config: cfg})
	return nil
}

// Len returns the number of registered sensors.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pairs)
}

// Valid reports whether the collector was built successfully and has
// not been closed yet.
func (c *Collector) Valid() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid && !c.closed
}

// Close stops the collector if needed, closes every sensor and releases
// any contexts attached to the sampling configurations. It is
// idempotent.
func (c *Collector) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}

	errs := []error{c.stopLocked()}
	for _, p := range c.pairs {
		errs = append(errs, p.Sensor.Close())
		p.Config.Reset()
	}
	c.pairs = nil
	c.closed = true
	return errors.Join(errs...)
}

package sampling

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/powertap/powertap/sensor"
)

// Options configures a Sampler.
type Options struct {
	// Logger receives lifecycle and failure messages. When nil, the
	// logrus standard logger is used.
	Logger logrus.FieldLogger

	// MaxConsecutiveFailures disables a sensor after this many failed
	// Sample calls in a row. Zero keeps failing sensors enabled
	// indefinitely.
	MaxConsecutiveFailures int
}

// A Sampler drives one sampling goroutine per registered sensor. Each
// goroutine samples at its configured interval and sleeps in chunks no
// longer than the configured minimum sleep, so Stop never waits longer
// than that per sensor.
//
// A Sampler is safe for concurrent use. Once stopped it cannot be
// reused; create a new one instead.
type Sampler struct {
	logger   logrus.FieldLogger
	maxFails int

	mu      sync.Mutex
	loops   map[string]*loop
	stopped bool
	wg      sync.WaitGroup
}

type loop struct {
	sensor sensor.Sensor
	name   string
	config *Config
	stop   chan struct{}
}

// New returns an empty Sampler ready to accept sensors.
func New(opts Options) *Sampler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sampler{
		logger:   logger.WithField("component", "sampler"),
		maxFails: opts.MaxConsecutiveFailures,
		loops:    make(map[string]*loop),
	}
}

// Add registers a sensor and immediately starts sampling it under the
// given configuration. The configuration is owned by the sampler until
// the loop ends and must not be mutated meanwhile. Sensors are keyed by
// name; adding a second sensor with the same name is an error.
func (s *Sampler) Add(sen sensor.Sensor, cfg *Config) error {
	if sen == nil {
		return fmt.Errorf("%w: nil sensor", sensor.ErrInvalidArgument)
	}
	if cfg == nil {
		return fmt.Errorf("%w: nil sampling configuration", sensor.ErrInvalidArgument)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}
	name := sen.Name()
	if name == "" {
		return fmt.Errorf("%w: sensor has no name", sensor.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return errors.New("sampler is stopped")
	}
	if _, ok := s.loops[name]; ok {
		return fmt.Errorf("%w: sensor %q is already being sampled", sensor.ErrInvalidArgument, name)
	}

	if f, ok := sen.(sensor.SourceFilterable); ok {
		f.FilterSources(cfg.Sources())
	}

	l := &loop{sensor: sen, name: name, config: cfg, stop: make(chan struct{})}
	s.loops[name] = l
	s.wg.Add(1)
	go s.run(l)
	return nil
}

// Remove stops sampling the named sensor. The sensor itself is not
// closed.
func (s *Sampler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loops[name]
	if !ok {
		return fmt.Errorf("%w: sensor %q is not being sampled", sensor.ErrInvalidArgument, name)
	}
	delete(s.loops, name)
	close(l.stop)
	return nil
}

// Len returns the number of sensors currently being sampled.
func (s *Sampler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loops)
}

// Stop terminates every sampling loop and waits for them to finish. It
// is idempotent and safe to call concurrently.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		for _, l := range s.loops {
			close(l.stop)
		}
		s.loops = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Sampler) run(l *loop) {
	defer s.wg.Done()

	logger := s.logger.WithField("sensor", l.name)
	interval := l.config.Interval()
	minSleep := l.config.MinimumSleep()

	logger.WithField("interval", interval).Debug("Sampling started")

	failures := 0
	next := time.Now()
	for {
		select {
		case <-l.stop:
			logger.Debug("Sampling stopped")
			return
		default:
		}

		readings, err := safeSample(l.sensor, l.name)
		if err != nil {
			failures++
			logger.WithError(err).Error("Sampling failed")
			if s.maxFails > 0 && failures >= s.maxFails {
				logger.WithField("failures", failures).Warn("Disabling sensor after repeated failures")
				s.forget(l.name)
				return
			}
		} else {
			failures = 0
			if len(readings) > 0 {
				l.config.Deliver(l.name, readings)
			}
		}

		next = next.Add(interval)
		if now := time.Now(); next.Before(now) {
			// Behind schedule: skip the missed ticks instead of bursting.
			next = now
		}
		if !waitUntil(next, minSleep, l.stop) {
			logger.Debug("Sampling stopped")
			return
		}
	}
}

// forget drops a loop from the registry after it disabled itself.
func (s *Sampler) forget(name string) {
	s.mu.Lock()
	delete(s.loops, name)
	s.mu.Unlock()
}

// waitUntil sleeps until deadline in chunks of at most maxChunk. It
// returns false as soon as stop is closed.
func waitUntil(deadline time.Time, maxChunk time.Duration, stop <-chan struct{}) bool {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if maxChunk > 0 && remaining > maxChunk {
			remaining = maxChunk
		}
		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
		case <-stop:
			timer.Stop()
			return false
		}
	}
}

// safeSample shields the sampling loop from panicking Sample
// implementations by converting the panic into a device error.
func safeSample(sen sensor.Sensor, name string) (readings []sensor.Reading, err error) {
	defer func() {
		if r := recover(); r != nil {
			readings = nil
			err = &sensor.DeviceError{Sensor: name, Op: "sample", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return sen.Sample()
}

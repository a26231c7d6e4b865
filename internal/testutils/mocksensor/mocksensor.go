// Package mocksensor provides a scriptable in-memory sensor for tests.
package mocksensor

import (
	"sync"
	"time"

	"github.com/powertap/powertap/sensor"
)

// Sensor implements sensor.SourceFilterable with canned readings. Set
// SampleFn before handing the sensor out to override what Sample
// returns.
type Sensor struct {
	SampleFn func() ([]sensor.Reading, error)

	name string

	mu      sync.Mutex
	watts   float64
	samples int
	closed  bool
	sources sensor.SourceFlags
}

// New returns a mock sensor that reports a constant power draw.
func New(name string, watts float64) *Sensor {
	return &Sensor{name: name, watts: watts, sources: sensor.SourceAll}
}

func (s *Sensor) Name() string { return s.name }

func (s *Sensor) Sample() ([]sensor.Reading, error) {
	s.mu.Lock()
	s.samples++
	watts := s.watts
	s.mu.Unlock()

	if s.SampleFn != nil {
		return s.SampleFn()
	}
	return []sensor.Reading{sensor.PowerReading(time.Now(), watts)}, nil
}

func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Sensor) FilterSources(f sensor.SourceFlags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = f
}

// SampleCount returns how many times Sample has been called.
func (s *Sensor) SampleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

// Closed reports whether Close has been called.
func (s *Sensor) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Sources returns the last filter applied via FilterSources.
func (s *Sensor) Sources() sensor.SourceFlags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources
}

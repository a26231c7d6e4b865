// Package mocksink provides an in-memory output.Sink implementation
// for tests.
package mocksink

import (
	"sync"

	"github.com/powertap/powertap/output"
	"github.com/powertap/powertap/sensor"
)

// Sink collects everything it receives in memory. The DescFn, StartFn
// and StopFn callbacks allow tests to override the respective methods.
type Sink struct {
	DescFn  func() string
	StartFn func() error
	StopFn  func() error

	mu      sync.Mutex
	records []output.Record
	started int
	stopped int
}

// New returns an empty mock sink.
func New() *Sink { return &Sink{} }

func (s *Sink) Description() string {
	if s.DescFn != nil {
		return s.DescFn()
	}
	return "mock"
}

func (s *Sink) Start() error {
	s.mu.Lock()
	s.started++
	s.mu.Unlock()
	if s.StartFn != nil {
		return s.StartFn()
	}
	return nil
}

func (s *Sink) AddReadings(source string, readings []sensor.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, output.Record{Source: source, Readings: readings})
}

func (s *Sink) AddMarker(m output.Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, output.Record{Marker: &m})
}

func (s *Sink) Stop() error {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
	if s.StopFn != nil {
		return s.StopFn()
	}
	return nil
}

// Records returns a copy of every record received so far, in arrival
// order.
func (s *Sink) Records() []output.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]output.Record(nil), s.records...)
}

// ReadingsFor returns all readings received for one sensor, flattened
// in arrival order.
func (s *Sink) ReadingsFor(source string) []sensor.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	var readings []sensor.Reading
	for _, rec := range s.records {
		if rec.Source == source {
			readings = append(readings, rec.Readings...)
		}
	}
	return readings
}

// Markers returns the markers received so far, in arrival order.
func (s *Sink) Markers() []output.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	var markers []output.Marker
	for _, rec := range s.records {
		if rec.Marker != nil {
			markers = append(markers, *rec.Marker)
		}
	}
	return markers
}

// Started returns how many times Start has been called.
func (s *Sink) Started() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stopped returns how many times Stop has been called.
func (s *Sink) Stopped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/powertap/powertap/sensor"
)

// Multi fans every record out to a set of sinks and manages their
// lifecycle as a unit.
type Multi struct {
	sinks []Sink
}

// NewMulti returns a Sink that drives all the given sinks together.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Description lists the descriptions of every wrapped sink.
func (m *Multi) Description() string {
	descs := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		descs[i] = s.Description()
	}
	return strings.Join(descs, "; ")
}

// Start starts the wrapped sinks in order. If one of them fails, the
// ones already started are stopped again and the error is returned.
func (m *Multi) Start() error {
	for i, s := range m.sinks {
		if err := s.Start(); err != nil {
			m.stopUpTo(i)
			return fmt.Errorf("starting %s: %w", s.Description(), err)
		}
	}
	return nil
}

func (m *Multi) stopUpTo(upToID int) {
	for i := 0; i < upToID; i++ {
		_ = m.sinks[i].Stop()
	}
}

// AddReadings passes the batch to every wrapped sink.
func (m *Multi) AddReadings(source string, readings []sensor.Reading) {
	for _, s := range m.sinks {
		s.AddReadings(source, readings)
	}
}

// AddMarker passes the marker to every wrapped sink.
func (m *Multi) AddMarker(marker Marker) {
	for _, s := range m.sinks {
		s.AddMarker(marker)
	}
}

// Stop stops every wrapped sink, even if some of them fail, and returns
// the combined errors.
func (m *Multi) Stop() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

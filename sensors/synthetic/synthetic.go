// Package synthetic provides a sensor that fabricates its readings,
// for demos and for trying out sinks without touching real hardware.
package synthetic

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/powertap/powertap/sensor"
)

// Option adjusts the generated waveform.
type Option func(*Sensor)

// WithMidpoint sets the power level the wave oscillates around, in
// watts. The default is 42.
func WithMidpoint(watts float64) Option {
	return func(s *Sensor) { s.midpoint = watts }
}

// WithAmplitude sets the wave amplitude in watts. The default of zero
// yields a constant power draw.
func WithAmplitude(watts float64) Option {
	return func(s *Sensor) { s.amplitude = watts }
}

// WithFrequency sets the wave frequency in hertz. The default is 1.
func WithFrequency(hertz float64) Option {
	return func(s *Sensor) { s.frequency = hertz }
}

// WithVoltage sets the simulated supply voltage the current is derived
// from. The default is 12.
func WithVoltage(volts float64) Option {
	return func(s *Sensor) { s.voltage = volts }
}

// Sensor reports a sine wave of power around a midpoint, together with
// a constant voltage and the current that follows from the two.
type Sensor struct {
	name      string
	midpoint  float64
	amplitude float64
	frequency float64
	voltage   float64
	start     time.Time

	mu      sync.Mutex
	sources sensor.SourceFlags
	closed  bool
}

// New builds a synthetic sensor with the given name.
func New(name string, opts ...Option) (*Sensor, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: sensor name must not be empty", sensor.ErrInvalidArgument)
	}
	s := &Sensor{
		name:      name,
		midpoint:  42,
		frequency: 1,
		voltage:   12,
		start:     time.Now(),
		sources:   sensor.SourceAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns the sensor name.
func (s *Sensor) Name() string { return s.name }

// Description returns a human-readable summary of the waveform.
func (s *Sensor) Description() string {
	return fmt.Sprintf("synthetic %.4g W +/- %.4g W at %.4g Hz", s.midpoint, s.amplitude, s.frequency)
}

// FilterSources restricts which quantities Sample reports.
func (s *Sensor) FilterSources(f sensor.SourceFlags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = f
}

// Sample fabricates one reading at the current point of the wave.
func (s *Sensor) Sample() ([]sensor.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, &sensor.DeviceError{Sensor: s.name, Op: "sample", Err: os.ErrClosed}
	}

	now := time.Now()
	elapsed := now.Sub(s.start).Seconds()
	watts := s.midpoint + s.amplitude*math.Sin(2*math.Pi*s.frequency*elapsed)

	reading := sensor.NewReading(now)
	if s.sources.Has(sensor.SourcePower) {
		reading.Power = watts
	}
	if s.sources.Has(sensor.SourceVoltage) {
		reading.Voltage = s.voltage
	}
	if s.sources.Has(sensor.SourceCurrent) {
		reading.Current = watts / s.voltage
	}
	if !reading.HasVoltage() && !reading.HasCurrent() && !reading.HasPower() {
		return nil, nil
	}
	return []sensor.Reading{reading}, nil
}

// Close marks the sensor as unusable. It is idempotent.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

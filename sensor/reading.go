// Package sensor defines the vocabulary shared by every sampling
// backend: instantaneous readings, the sensor interfaces and the error
// taxonomy device code reports through.
package sensor

import (
	"math"
	"time"
)

// A Reading is a single instantaneous observation taken from a sensor.
// Quantities the sensor cannot measure are NaN; use the Has* accessors
// instead of comparing against NaN directly.
type Reading struct {
	Time    time.Time
	Voltage float64 // volts
	Current float64 // amperes
	Power   float64 // watts
}

// NewReading returns a Reading taken at t with all quantities unset.
func NewReading(t time.Time) Reading {
	nan := math.NaN()
	return Reading{Time: t, Voltage: nan, Current: nan, Power: nan}
}

// PowerReading returns a Reading carrying only a power value.
func PowerReading(t time.Time, watts float64) Reading {
	r := NewReading(t)
	r.Power = watts
	return r
}

// ElectricalReading returns a Reading carrying voltage and current, but
// no directly measured power.
func ElectricalReading(t time.Time, volts, amperes float64) Reading {
	r := NewReading(t)
	r.Voltage = volts
	r.Current = amperes
	return r
}

// FullReading returns a Reading with all three quantities set.
func FullReading(t time.Time, volts, amperes, watts float64) Reading {
	return Reading{Time: t, Voltage: volts, Current: amperes, Power: watts}
}

// HasVoltage reports whether the reading carries a voltage value.
func (r Reading) HasVoltage() bool { return !math.IsNaN(r.Voltage) }

// HasCurrent reports whether the reading carries a current value.
func (r Reading) HasCurrent() bool { return !math.IsNaN(r.Current) }

// HasPower reports whether the reading carries a directly measured
// power value.
func (r Reading) HasPower() bool { return !math.IsNaN(r.Power) }

// DerivedPower returns the measured power if present, the product of
// voltage and current if both are present, and NaN otherwise.
func (r Reading) DerivedPower() float64 {
	if r.HasPower() {
		return r.Power
	}
	if r.HasVoltage() && r.HasCurrent() {
		return r.Voltage * r.Current
	}
	return math.NaN()
}

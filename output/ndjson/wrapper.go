package ndjson

import (
	"time"

	"github.com/powertap/powertap/output"
	"github.com/powertap/powertap/sensor"
)

type sampleEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Time    time.Time `json:"time"`
		Sensor  string    `json:"sensor"`
		Voltage *float64  `json:"voltage,omitempty"`
		Current *float64  `json:"current,omitempty"`
		Power   *float64  `json:"power,omitempty"`
	} `json:"data"`
}

// wrapReading packages a reading in a way that's nice to export as a
// JSON line. Quantities the sensor did not measure are omitted, since
// JSON has no way to encode NaN.
func wrapReading(source string, r sensor.Reading) sampleEnvelope {
	s := sampleEnvelope{Type: "sample"}
	s.Data.Time = r.Time
	s.Data.Sensor = source
	if r.HasVoltage() {
		v := r.Voltage
		s.Data.Voltage = &v
	}
	if r.HasCurrent() {
		c := r.Current
		s.Data.Current = &c
	}
	if r.HasPower() {
		p := r.Power
		s.Data.Power = &p
	}
	return s
}

type markerEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Time  time.Time `json:"time"`
		Label string    `json:"label"`
	} `json:"data"`
}

// wrapMarker packages a marker as a JSON line.
func wrapMarker(m output.Marker) markerEnvelope {
	e := markerEnvelope{Type: "marker"}
	e.Data.Time = m.Time
	e.Data.Label = m.Label
	return e
}

// Package output contains the interface a collector uses to emit
// readings, some useful helpers for implementing it, and the official
// sink implementations in subpackages.
package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/powertap/powertap/sensor"
)

// Params contains everything that a sink constructor needs. Only the
// configuration pieces that were actually supplied are set; sinks merge
// them over their own defaults.
type Params struct {
	OutputType     string // the string by which the sink was looked up
	ConfigArgument string // the part of the CLI argument after "type="
	JSONConfig     json.RawMessage

	Logger      logrus.FieldLogger
	Environment map[string]string
	StdOut      io.Writer
	FS          afero.Fs
}

// A Marker is a named point in time that the caller wants to see
// interleaved with the readings, e.g. "workload started".
type Marker struct {
	Time  time.Time
	Label string
}

// A Record is one unit of sink input: either a batch of readings from a
// single sensor, or a marker. Exactly one of Readings and Marker is
// set.
type Record struct {
	Source   string
	Readings []sensor.Reading
	Marker   *Marker
}

// A Sink receives readings and markers from a collector and writes them
// somewhere.
//
// AddReadings and AddMarker are called from sampling goroutines and
// must not block; implementations buffer internally and flush from
// their own goroutine. Records from a single sensor arrive in sampling
// order and sinks must preserve that order. The readings slice passed
// to AddReadings must be treated as read-only.
type Sink interface {
	// Description returns a human-readable description of the sink,
	// shown to the user when the collector starts.
	Description() string

	// Start sets up any connections or files the sink needs. No Add
	// calls are made before Start returns.
	Start() error

	// AddReadings buffers a batch of readings from one sensor.
	AddReadings(source string, readings []sensor.Reading)

	// AddMarker buffers a marker.
	AddMarker(m Marker)

	// Stop flushes everything buffered so far and releases the sink's
	// resources. No Add calls are made after Stop.
	Stop() error
}

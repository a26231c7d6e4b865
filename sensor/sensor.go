package sensor

// A Sensor is a single source of power or electrical readings.
//
// Sample is called from a sampling goroutine, one call at a time per
// sensor, so implementations only need to guard state that Close can
// touch concurrently. A Sample call may return several readings when
// the underlying device batches them, or none at all when the device
// needs more than one observation before it can produce a value.
type Sensor interface {
	// Name returns a stable, unique identifier for the sensor.
	Name() string

	// Sample takes one synchronous measurement. The returned slice is
	// owned by the caller.
	Sample() ([]Reading, error)

	// Close releases the underlying device. Sampling a closed sensor
	// returns an error.
	Close() error
}

// SourceFilterable is implemented by sensors that can restrict which
// quantities they sample.
type SourceFilterable interface {
	Sensor
	FilterSources(f SourceFlags)
}

// Locatable is implemented by sensors backed by an addressable device,
// such as a sysfs directory or a device file.
type Locatable interface {
	Sensor
	Path() string
}

// Describer is implemented by sensors that can explain what they
// measure in human terms.
type Describer interface {
	Sensor
	Description() string
}

package collector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/powertap/powertap/sampling"
	"github.com/powertap/powertap/sensor"
	"github.com/powertap/powertap/sensors"
	"github.com/powertap/powertap/types"
)

// FileEntry is one sensor configuration in a JSON configuration file.
// Unset fields inherit the collector's defaults. An entry is matched to
// a discovered sensor by name, then by device path; a file may also
// hold a single entry that applies to every sensor.
type FileEntry struct {
	Sensor       string             `json:"sensor,omitempty"`
	Path         string             `json:"path,omitempty"`
	Interval     types.NullDuration `json:"interval,omitempty"`
	MinimumSleep types.NullDuration `json:"minimumSleep,omitempty"`
	Sources      sensor.SourceFlags `json:"sources,omitempty"`
	Resolution   *sensor.Resolution `json:"resolution,omitempty"`
}

// ParseEntries parses a configuration file body, which may hold either
// a single entry object or an array of them.
func ParseEntries(data []byte) ([]FileEntry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: configuration file is empty", sensor.ErrInvalidArgument)
	}

	var entries []FileEntry
	if data[0] == '[' {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", sensor.ErrInvalidArgument, err)
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("%w: configuration file contains no entries", sensor.ErrInvalidArgument)
		}
	} else {
		var e FileEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", sensor.ErrInvalidArgument, err)
		}
		entries = []FileEntry{e}
	}

	var errs []error
	for i, e := range entries {
		if e.Interval.Valid && e.Interval.TimeDuration() <= 0 {
			errs = append(errs, fmt.Errorf(
				"%w: entry #%d: sampling interval must be positive, got %s",
				sensor.ErrInvalidArgument, i, e.Interval.TimeDuration()))
		}
		if e.MinimumSleep.Valid && e.MinimumSleep.TimeDuration() < 0 {
			errs = append(errs, fmt.Errorf(
				"%w: entry #%d: minimum sleep must not be negative, got %s",
				sensor.ErrInvalidArgument, i, e.MinimumSleep.TimeDuration()))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return entries, nil
}

// ParseFile reads and parses the configuration file at path.
func ParseFile(fs afero.Fs, path string) ([]FileEntry, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("couldn't read configuration file %s: %w", path, err)
	}
	entries, err := ParseEntries(data)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse configuration file %s: %w", path, err)
	}
	return entries, nil
}

// FromFile builds a Collector for every discoverable sensor, configured
// from the file at path.
func FromFile(settings Settings, path string) (*Collector, error) {
	settings = settings.withDefaults()
	entries, err := ParseFile(settings.FS, path)
	if err != nil {
		return nil, err
	}
	return fromEntries(settings, entries, sensors.Discover(settings.Logger))
}

// fromEntries pairs each sensor with its best matching entry.
func fromEntries(settings Settings, entries []FileEntry, sens []sensor.Sensor) (*Collector, error) {
	if len(sens) == 0 {
		return nil, fmt.Errorf("%w: no usable sensors found", sensor.ErrNotSupported)
	}
	pairs := make([]SensorConfig, len(sens))
	for i, sen := range sens {
		e := matchEntry(entries, sen, settings.Logger)
		pairs[i] = SensorConfig{Sensor: sen, Config: configFromEntry(settings, e)}
	}
	return New(settings, pairs...)
}

// matchEntry finds the configuration entry for a sensor, preferring an
// exact name match over a device path match. Without either, the first
// entry acts as the default for every unmatched sensor.
func matchEntry(entries []FileEntry, sen sensor.Sensor, logger logrus.FieldLogger) *FileEntry {
	name := sen.Name()
	for i := range entries {
		if entries[i].Sensor != "" && entries[i].Sensor == name {
			return &entries[i]
		}
	}
	if loc, ok := sen.(sensor.Locatable); ok {
		path := loc.Path()
		for i := range entries {
			if entries[i].Path != "" && entries[i].Path == path {
				return &entries[i]
			}
		}
	}
	logger.WithField("sensor", name).Info("No dedicated configuration entry found, using the first one")
	return &entries[0]
}

// configFromEntry layers the set fields of an entry over the defaults.
func configFromEntry(settings Settings, e *FileEntry) *sampling.Config {
	cfg := settings.newConfig()
	if e.Interval.Valid {
		cfg.Every(e.Interval.TimeDuration())
	}
	if e.MinimumSleep.Valid {
		cfg.SleepingAtLeast(e.MinimumSleep.TimeDuration())
	}
	if e.Sources != 0 {
		cfg.FromSources(e.Sources)
	}
	if e.Resolution != nil {
		cfg.WithResolution(*e.Resolution)
	}
	return cfg
}

// WriteTemplate discovers the sensors on this machine and writes a
// configuration file template with one fully spelled out entry per
// sensor, ready to be edited.
func WriteTemplate(fs afero.Fs, path string, logger logrus.FieldLogger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	discovered := sensors.Discover(logger)
	if len(discovered) == 0 {
		return fmt.Errorf("%w: no usable sensors found", sensor.ErrNotSupported)
	}
	return writeTemplate(fs, path, discovered)
}

// writeTemplate closes the sensors after spelling out their entries.
func writeTemplate(fs afero.Fs, path string, sens []sensor.Sensor) error {
	entries := make([]FileEntry, len(sens))
	for i, sen := range sens {
		res := sensor.Milliseconds
		entries[i] = FileEntry{
			Sensor:       sen.Name(),
			Interval:     types.NullDurationFrom(sampling.DefaultInterval),
			MinimumSleep: types.NullDurationFrom(sampling.DefaultMinimumSleep),
			Sources:      sensor.SourceAll,
			Resolution:   &res,
		}
		if loc, ok := sen.(sensor.Locatable); ok {
			entries[i].Path = loc.Path()
		}
		_ = sen.Close()
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path, append(data, '\n'), 0o644)
}

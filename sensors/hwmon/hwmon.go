// Package hwmon reads voltage, current and power from the chips the
// kernel hardware monitoring subsystem exposes under
// /sys/class/hwmon. Unlike the RAPL counters these are spot values, so
// every Sample call yields a reading.
package hwmon

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/powertap/powertap/sensor"
)

// DefaultRoot is where the kernel mounts the hwmon class directory.
const DefaultRoot = "/sys/class/hwmon"

// Sensor reads one power channel, or one voltage/current channel pair,
// of a hwmon chip. When the chip reports voltage and current but no
// power, power is derived as their product.
type Sensor struct {
	name    string
	chipDir string

	powerFile   string
	voltageFile string
	currentFile string

	mu      sync.Mutex
	sources sensor.SourceFlags
	closed  bool
}

// NewPower opens the power channel with the given index, e.g. channel 1
// for power1_input.
func NewPower(chipDir string, channel int) (*Sensor, error) {
	powerFile := filepath.Join(chipDir, fmt.Sprintf("power%d_input", channel))
	if _, err := os.Stat(powerFile); err != nil {
		return nil, &sensor.DeviceError{Op: "open", Err: err}
	}
	ch := fmt.Sprintf("power%d", channel)
	return &Sensor{
		name:      "hwmon/" + chipLabel(chipDir) + "/" + channelName(chipDir, ch),
		chipDir:   chipDir,
		powerFile: powerFile,
		sources:   sensor.SourceAll,
	}, nil
}

// NewPaired opens a voltage channel and a current channel that measure
// the same rail, e.g. "in3" and "curr1". Power is derived from the two.
func NewPaired(chipDir, voltageChannel, currentChannel string) (*Sensor, error) {
	if !strings.HasPrefix(voltageChannel, "in") {
		return nil, fmt.Errorf("%w: channel %q cannot measure voltage", sensor.ErrInvalidArgument, voltageChannel)
	}
	if !strings.HasPrefix(currentChannel, "curr") {
		return nil, fmt.Errorf("%w: channel %q cannot measure current", sensor.ErrInvalidArgument, currentChannel)
	}

	voltageFile := filepath.Join(chipDir, voltageChannel+"_input")
	currentFile := filepath.Join(chipDir, currentChannel+"_input")
	if _, err := os.Stat(voltageFile); err != nil {
		return nil, &sensor.DeviceError{Op: "open", Err: err}
	}
	if _, err := os.Stat(currentFile); err != nil {
		return nil, &sensor.DeviceError{Op: "open", Err: err}
	}
	return &Sensor{
		name:        "hwmon/" + chipLabel(chipDir) + "/" + channelName(chipDir, voltageChannel),
		chipDir:     chipDir,
		voltageFile: voltageFile,
		currentFile: currentFile,
		sources:     sensor.SourceAll,
	}, nil
}

// Name returns the unique sensor identifier, e.g. "hwmon/amdgpu/power1".
func (s *Sensor) Name() string { return s.name }

// Path returns the chip directory the sensor reads from.
func (s *Sensor) Path() string { return s.chipDir }

// Description returns a human-readable summary of the sensor.
func (s *Sensor) Description() string {
	if s.powerFile != "" {
		return fmt.Sprintf("hwmon power channel %s", filepath.Base(s.powerFile))
	}
	return fmt.Sprintf("hwmon channel pair %s/%s",
		filepath.Base(s.voltageFile), filepath.Base(s.currentFile))
}

// FilterSources restricts which quantities Sample reads and reports.
func (s *Sensor) FilterSources(f sensor.SourceFlags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = f
}

// Sample reads the chip files once. Quantities excluded by the source
// filter, and files the chip does not provide, are left out; a sample
// with nothing to report yields no reading at all.
func (s *Sensor) Sample() ([]sensor.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, &sensor.DeviceError{Sensor: s.name, Op: "sample", Err: os.ErrClosed}
	}

	wantVoltage := s.sources.Has(sensor.SourceVoltage) && s.voltageFile != ""
	wantCurrent := s.sources.Has(sensor.SourceCurrent) && s.currentFile != ""
	wantPower := s.sources.Has(sensor.SourcePower)
	derivePower := wantPower && s.powerFile == "" && s.voltageFile != "" && s.currentFile != ""

	reading := sensor.NewReading(time.Now())

	if wantPower && s.powerFile != "" {
		microwatts, err := s.readChannel(s.powerFile)
		if err != nil {
			return nil, err
		}
		reading.Power = float64(microwatts) / 1e6
	}

	volts, amps := math.NaN(), math.NaN()
	if wantVoltage || derivePower {
		millivolts, err := s.readChannel(s.voltageFile)
		if err != nil {
			return nil, err
		}
		volts = float64(millivolts) / 1e3
	}
	if wantCurrent || derivePower {
		milliamps, err := s.readChannel(s.currentFile)
		if err != nil {
			return nil, err
		}
		amps = float64(milliamps) / 1e3
	}
	if wantVoltage {
		reading.Voltage = volts
	}
	if wantCurrent {
		reading.Current = amps
	}
	if derivePower {
		reading.Power = volts * amps
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

func (s *Sensor) readChannel(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &sensor.DeviceError{Sensor: s.name, Op: "read " + filepath.Base(path), Err: err}
	}
	value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, &sensor.DeviceError{Sensor: s.name, Op: "parse " + filepath.Base(path), Err: err}
	}
	return value, nil
}

// chipLabel names a chip after its name file, falling back to the
// directory name.
func chipLabel(chipDir string) string {
	data, err := os.ReadFile(filepath.Join(chipDir, "name"))
	if err != nil {
		return filepath.Base(chipDir)
	}
	return strings.TrimSpace(string(data))
}

// channelName names a channel after its label file, falling back to the
// channel itself, e.g. "in3".
func channelName(chipDir, channel string) string {
	data, err := os.ReadFile(filepath.Join(chipDir, channel+"_label"))
	if err != nil {
		return channel
	}
	label := strings.ToLower(strings.TrimSpace(string(data)))
	return strings.ReplaceAll(label, " ", "_")
}

// channelIndex extracts N from names like power1_input for the given
// prefix, or returns -1.
func channelIndex(name, prefix string) int {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, "_input") {
		return -1
	}
	index, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), "_input"))
	if err != nil {
		return -1
	}
	return index
}

// Enumerate opens every usable power channel and voltage/current pair
// of every hwmon chip. Failures are logged at debug level and skipped.
func Enumerate(logger logrus.FieldLogger) []*Sensor {
	return enumerate(DefaultRoot, logger)
}

func enumerate(root string, logger logrus.FieldLogger) []*Sensor {
	chips, err := os.ReadDir(root)
	if err != nil {
		logger.WithError(err).Debug("No hwmon chips found")
		return nil
	}

	var found []*Sensor
	for _, chip := range chips {
		chipDir := filepath.Join(root, chip.Name())
		files, err := os.ReadDir(chipDir)
		if err != nil {
			logger.WithError(err).WithField("chip", chip.Name()).Debug("Skipping hwmon chip")
			continue
		}

		var powers, voltages, currents []int
		for _, f := range files {
			if i := channelIndex(f.Name(), "power"); i >= 0 {
				powers = append(powers, i)
			}
			if i := channelIndex(f.Name(), "in"); i >= 0 {
				voltages = append(voltages, i)
			}
			if i := channelIndex(f.Name(), "curr"); i >= 0 {
				currents = append(currents, i)
			}
		}
		sort.Ints(powers)
		sort.Ints(voltages)
		sort.Ints(currents)

		for _, i := range powers {
			s, err := NewPower(chipDir, i)
			if err != nil {
				logger.WithError(err).WithField("chip", chip.Name()).Debug("Skipping power channel")
				continue
			}
			found = append(found, s)
		}

		// Same-index voltage and current channels are assumed to
		// measure the same rail.
		currentSet := make(map[int]bool, len(currents))
		for _, i := range currents {
			currentSet[i] = true
		}
		for _, i := range voltages {
			if !currentSet[i] {
				continue
			}
			s, err := NewPaired(chipDir, fmt.Sprintf("in%d", i), fmt.Sprintf("curr%d", i))
			if err != nil {
				logger.WithError(err).WithField("chip", chip.Name()).Debug("Skipping channel pair")
				continue
			}
			found = append(found, s)
		}
	}
	return found
}

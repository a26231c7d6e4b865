// Package rapl reads CPU energy counters through the RAPL (Running
// Average Power Limit) model-specific registers exposed by the msr
// kernel driver. Reading /dev/cpu/*/msr requires root or an equivalent
// capability.
package rapl

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/powertap/powertap/sensor"
)

const (
	defaultDevRoot     = "/dev/cpu"
	defaultCPUInfoPath = "/proc/cpuinfo"
)

// energyStatusUnits decodes the energy divisor from the RAPL unit
// register: one counter increment is 1/2^ESU joules, with ESU in bits
// 8..12.
func energyStatusUnits(raw uint64) float64 {
	return 1 / float64(uint64(1)<<((raw>>8)&0x1F))
}

// Sensor reads one RAPL domain of one CPU core. The reported power is
// the average over the span between two Sample calls, derived from the
// difference of the energy counter, so the first call after opening
// only primes the sensor and yields no reading.
type Sensor struct {
	name   string
	core   int
	domain Domain
	device string
	offset int64
	unit   float64
	now    func() time.Time

	mu          sync.Mutex
	file        *os.File
	primed      bool
	lastCounter uint32
	lastTime    time.Time
}

// New opens the RAPL domain of the given CPU core.
func New(core int, domain Domain) (*Sensor, error) {
	return open(defaultDevRoot, defaultCPUInfoPath, core, domain)
}

func open(devRoot, cpuinfoPath string, core int, domain Domain) (*Sensor, error) {
	if core < 0 {
		return nil, fmt.Errorf("%w: core must not be negative, got %d", sensor.ErrInvalidArgument, core)
	}
	v, err := detectVendor(cpuinfoPath)
	if err != nil {
		return nil, err
	}
	unitReg, err := v.unitRegister()
	if err != nil {
		return nil, err
	}
	energyReg, err := v.energyRegister(domain)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("msr/%d/%s", core, domain)
	device := filepath.Join(devRoot, strconv.Itoa(core), "msr")
	f, err := os.Open(device)
	if err != nil {
		return nil, &sensor.DeviceError{Sensor: name, Op: "open", Err: err}
	}

	s := &Sensor{
		name:   name,
		core:   core,
		domain: domain,
		device: device,
		offset: energyReg,
		now:    time.Now,
		file:   f,
	}
	raw, err := s.readRegister(unitReg)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.unit = energyStatusUnits(raw)

	// Probe the energy counter once so an unsupported domain fails
	// here rather than on the first Sample call.
	if _, err := s.readRegister(energyReg); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// Name returns the unique sensor identifier, e.g. "msr/0/package".
func (s *Sensor) Name() string { return s.name }

// Path returns the msr device file the sensor reads from.
func (s *Sensor) Path() string { return s.device }

// Description returns a human-readable summary of the sensor.
func (s *Sensor) Description() string {
	return fmt.Sprintf("RAPL %s domain of CPU core %d", s.domain, s.core)
}

// Sample reads the energy counter and converts the increase since the
// previous call into average power.
func (s *Sensor) Sample() ([]sensor.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil, &sensor.DeviceError{Sensor: s.name, Op: "sample", Err: os.ErrClosed}
	}

	raw, err := s.readRegister(s.offset)
	if err != nil {
		return nil, err
	}
	now := s.now()
	counter := uint32(raw)

	if !s.primed {
		s.primed = true
		s.lastCounter = counter
		s.lastTime = now
		return nil, nil
	}
	elapsed := now.Sub(s.lastTime)
	if elapsed <= 0 {
		return nil, nil
	}

	// The counter is 32 bits wide and wraps around; unsigned
	// subtraction yields the right delta across a single wrap.
	delta := counter - s.lastCounter
	s.lastCounter = counter
	s.lastTime = now

	watts := float64(delta) * s.unit / elapsed.Seconds()
	return []sensor.Reading{sensor.PowerReading(now, watts)}, nil
}

// Close releases the msr device file. It is idempotent.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Sensor) readRegister(register int64) (uint64, error) {
	var buf [8]byte
	if _, err := s.file.ReadAt(buf[:], register); err != nil {
		return 0, &sensor.DeviceError{
			Sensor: s.name,
			Op:     fmt.Sprintf("read register %#x", register),
			Err:    err,
		}
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Enumerate opens every readable RAPL domain of every core. Failures
// are logged at debug level and skipped; on machines without the msr
// driver the result is simply empty.
func Enumerate(logger logrus.FieldLogger) []*Sensor {
	return enumerate(defaultDevRoot, defaultCPUInfoPath, logger)
}

func enumerate(devRoot, cpuinfoPath string, logger logrus.FieldLogger) []*Sensor {
	entries, err := os.ReadDir(devRoot)
	if err != nil {
		logger.WithError(err).Debug("No msr devices found")
		return nil
	}
	cores := make([]int, 0, len(entries))
	for _, e := range entries {
		if core, err := strconv.Atoi(e.Name()); err == nil {
			cores = append(cores, core)
		}
	}
	sort.Ints(cores)

	var found []*Sensor
	for _, core := range cores {
		for _, domain := range Domains() {
			s, err := open(devRoot, cpuinfoPath, core, domain)
			if err != nil {
				logger.WithError(err).WithFields(logrus.Fields{
					"core":   core,
					"domain": domain,
				}).Debug("Skipping RAPL domain")
				continue
			}
			found = append(found, s)
		}
	}
	return found
}

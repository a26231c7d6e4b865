package rapl

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/powertap/powertap/sensor"
)

// Domain identifies one RAPL power domain. Not every CPU exposes every
// domain.
type Domain string

const (
	// DomainPackage covers the whole CPU package.
	DomainPackage Domain = "package"
	// DomainPP0 covers power plane 0, the cores.
	DomainPP0 Domain = "pp0"
	// DomainPP1 covers power plane 1, typically the integrated GPU.
	DomainPP1 Domain = "pp1"
	// DomainDRAM covers the memory attached to the package.
	DomainDRAM Domain = "dram"
	// DomainPlatform covers the entire SoC, where available.
	DomainPlatform Domain = "platform"
)

// Domains returns every known domain.
func Domains() []Domain {
	return []Domain{DomainPackage, DomainPP0, DomainPP1, DomainDRAM, DomainPlatform}
}

type vendor int

const (
	vendorUnknown vendor = iota
	vendorIntel
	vendorAMD
)

// Model-specific registers holding the RAPL unit divisors and energy
// counters.
const (
	intelMSRPowerUnit      = 0x606
	intelMSRPkgEnergy      = 0x611
	intelMSRDRAMEnergy     = 0x619
	intelMSRPP0Energy      = 0x639
	intelMSRPP1Energy      = 0x641
	intelMSRPlatformEnergy = 0x64D

	amdMSRPowerUnit  = 0xC0010299
	amdMSRCoreEnergy = 0xC001029A
	amdMSRPkgEnergy  = 0xC001029B
)

// unitRegister returns the MSR holding the RAPL unit divisors.
func (v vendor) unitRegister() (int64, error) {
	switch v {
	case vendorIntel:
		return intelMSRPowerUnit, nil
	case vendorAMD:
		return amdMSRPowerUnit, nil
	default:
		return 0, fmt.Errorf("%w: unknown CPU vendor", sensor.ErrNotSupported)
	}
}

// energyRegister returns the MSR holding the energy counter of the
// given domain. AMD CPUs only report the package and core planes.
func (v vendor) energyRegister(d Domain) (int64, error) {
	switch v {
	case vendorIntel:
		switch d {
		case DomainPackage:
			return intelMSRPkgEnergy, nil
		case DomainPP0:
			return intelMSRPP0Energy, nil
		case DomainPP1:
			return intelMSRPP1Energy, nil
		case DomainDRAM:
			return intelMSRDRAMEnergy, nil
		case DomainPlatform:
			return intelMSRPlatformEnergy, nil
		}
	case vendorAMD:
		switch d {
		case DomainPackage:
			return amdMSRPkgEnergy, nil
		case DomainPP0:
			return amdMSRCoreEnergy, nil
		}
	}
	return 0, fmt.Errorf("%w: domain %s is not available on this CPU", sensor.ErrNotSupported, d)
}

// detectVendor reads the vendor_id line of a cpuinfo file.
func detectVendor(cpuinfoPath string) (vendor, error) {
	f, err := os.Open(cpuinfoPath)
	if err != nil {
		return vendorUnknown, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found || strings.TrimSpace(key) != "vendor_id" {
			continue
		}
		switch id := strings.TrimSpace(value); id {
		case "GenuineIntel":
			return vendorIntel, nil
		case "AuthenticAMD":
			return vendorAMD, nil
		default:
			return vendorUnknown, fmt.Errorf("%w: unsupported CPU vendor %q", sensor.ErrNotSupported, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return vendorUnknown, err
	}
	return vendorUnknown, fmt.Errorf("%w: no CPU vendor in %s", sensor.ErrNotSupported, cpuinfoPath)
}

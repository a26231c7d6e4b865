// Package sensors discovers the power sensors available on this
// machine across every supported backend.
package sensors

import (
	"github.com/sirupsen/logrus"

	"github.com/powertap/powertap/sensor"
	"github.com/powertap/powertap/sensors/hwmon"
	"github.com/powertap/powertap/sensors/rapl"
)

// Discover probes every backend and returns the sensors that could be
// opened. Probing failures are logged at debug level and otherwise
// ignored, so Discover never fails, it just comes back empty-handed.
func Discover(logger logrus.FieldLogger) []sensor.Sensor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	var found []sensor.Sensor
	for _, s := range rapl.Enumerate(logger) {
		found = append(found, s)
	}
	for _, s := range hwmon.Enumerate(logger) {
		found = append(found, s)
	}
	return found
}

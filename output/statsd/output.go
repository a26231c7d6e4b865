// Package statsd forwards readings as gauges to a StatsD daemon, with
// Datadog-style tags identifying the sensor.
package statsd

import (
	"fmt"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/sirupsen/logrus"

	"github.com/powertap/powertap/output"
	"github.com/powertap/powertap/sensor"
)

// nameSanitizer rewrites sensor names into plain statsd metric segments.
var nameSanitizer = strings.NewReplacer("/", ".", ":", "_", "|", "_", " ", "_")

// New creates a new statsd connector client
func New(params output.Params) (output.Sink, error) {
	return newOutput(params)
}

func newOutput(params output.Params) (*Output, error) {
	conf, err := getConsolidatedConfig(params.JSONConfig, params.Environment, params.ConfigArgument)
	if err != nil {
		return nil, err
	}
	logger := params.Logger.WithFields(logrus.Fields{"output": "statsd"})

	return &Output{
		config: conf,
		logger: logger,
	}, nil
}

var _ output.Sink = &Output{}

// Output sends readings to statsd daemons, including the Datadog agent.
type Output struct {
	output.RecordBuffer

	periodicFlusher *output.PeriodicFlusher

	config config

	logger logrus.FieldLogger
	client *statsd.Client
}

// dispatch sends the gauges for one reading. Only the quantities the
// sensor actually measured are sent.
func (o *Output) dispatch(source string, r *sensor.Reading) error {
	var tagList []string
	prefix := "sensor"
	if o.config.EnableTags.Bool {
		tagList = []string{"sensor:" + source}
	} else {
		// Without the tag extension the sensor identity moves into
		// the metric name instead, so per-sensor series stay apart.
		prefix = nameSanitizer.Replace(source)
	}

	if r.HasVoltage() {
		if err := o.client.Gauge(prefix+".voltage", r.Voltage, tagList, 1); err != nil {
			return err
		}
	}
	if r.HasCurrent() {
		if err := o.client.Gauge(prefix+".current", r.Current, tagList, 1); err != nil {
			return err
		}
	}
	if r.HasPower() {
		if err := o.client.Gauge(prefix+".power", r.Power, tagList, 1); err != nil {
			return err
		}
	}
	return nil
}

// dispatchMarker sends a marker as a statsd event.
func (o *Output) dispatchMarker(m *output.Marker) error {
	ev := statsd.NewEvent("marker", m.Label)
	ev.Timestamp = m.Time
	return o.client.Event(ev)
}

// Description returns a human-readable description of the output.
func (o *Output) Description() string {
	return fmt.Sprintf("statsd (%s)", o.config.Addr.String)
}

// Start tries to open a connection to the specified statsd service and
// starts the goroutine for record flushing.
func (o *Output) Start() error {
	o.logger.Debug("Starting...")

	var err error
	if address := o.config.Addr.String; address == "" {
		err = fmt.Errorf(
			"connection string is invalid. Received: \"%+s\"",
			address,
		)
		o.logger.Error(err)

		return err
	}

	o.client, err = statsd.NewBuffered(o.config.Addr.String, int(o.config.BufferSize.Int64))

	if err != nil {
		o.logger.Errorf("Couldn't make buffered client, %s", err)
		return err
	}

	if namespace := o.config.Namespace.String; namespace != "" {
		o.client.Namespace = namespace
	}

	pf, err := output.NewPeriodicFlusher(o.config.PushInterval.TimeDuration(), o.flushRecords)
	if err != nil {
		return err
	}
	o.logger.Debug("Started!")
	o.periodicFlusher = pf

	return nil
}

// Stop flushes any remaining records and stops the goroutine.
func (o *Output) Stop() error {
	o.logger.Debug("Stopping...")
	defer o.logger.Debug("Stopped!")
	o.periodicFlusher.Stop()
	return o.client.Close()
}

func (o *Output) flushRecords() {
	records := o.GetBufferedRecords()
	start := time.Now()
	var count int
	var errorCount int
	for _, rec := range records {
		if rec.Marker != nil {
			count++
			if err := o.dispatchMarker(rec.Marker); err != nil {
				o.logger.WithError(err).Debugf("Error while sending marker %s", rec.Marker.Label)
				errorCount++
			}
			continue
		}

		count += len(rec.Readings)
		o.logger.
			WithField("readings", len(rec.Readings)).
			Debug("Pushing readings to server")

		for i := range rec.Readings {
			if err := o.dispatch(rec.Source, &rec.Readings[i]); err != nil {
				// No need to return error if just one reading didn't go through
				o.logger.WithError(err).Debugf("Error while sending readings for %s", rec.Source)
				errorCount++
			}
		}
	}

	if count > 0 {
		if errorCount != 0 {
			o.logger.Warnf("Couldn't send %d out of %d readings. Enable verbose logging with --verbose to see individual errors",
				errorCount, count)
		}
		if err := o.client.Flush(); err != nil {
			o.logger.
				WithError(err).
				Error("Couldn't flush a batch")
		}
		o.logger.WithField("t", time.Since(start)).WithField("count", count).Debug("Wrote readings to statsd")
	}
}

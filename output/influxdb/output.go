// Package influxdb pushes readings to an InfluxDB 1.x database. Readings
// become points in the "power" measurement tagged with the sensor name,
// markers become points in the "marker" measurement.
package influxdb

import (
	"fmt"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/sirupsen/logrus"

	"github.com/powertap/powertap/output"
)

// Output is the influxdb Sink struct.
type Output struct {
	output.RecordBuffer

	Client    client.Client
	Config    Config
	BatchConf client.BatchPointsConfig

	params          output.Params
	periodicFlusher *output.PeriodicFlusher
	logger          logrus.FieldLogger
}

// New returns a new influxdb sink.
func New(params output.Params) (output.Sink, error) {
	return newOutput(params)
}

func newOutput(params output.Params) (*Output, error) {
	conf, err := GetConsolidatedConfig(params.JSONConfig, params.Environment, params.ConfigArgument)
	if err != nil {
		return nil, err
	}
	cl, err := MakeClient(conf)
	if err != nil {
		return nil, err
	}
	return &Output{
		params: params,
		logger: params.Logger.WithFields(logrus.Fields{
			"output": "influxdb",
		}),
		Client:    cl,
		Config:    conf,
		BatchConf: MakeBatchConfig(conf),
	}, nil
}

// Description returns a human-readable description of the output.
func (o *Output) Description() string {
	return fmt.Sprintf("influxdb (%s)", o.Config.Addr.String)
}

// Start tries to create the configured database and starts the periodic
// record flushing.
func (o *Output) Start() error {
	o.logger.Debug("Starting...")

	// Try to create the database if it doesn't exist. Failure to do so is
	// usually harmless; it likely means we're either a non-admin user to an
	// existing DB or connecting over UDP.
	_, err := o.Client.Query(client.NewQuery("CREATE DATABASE "+o.BatchConf.Database, "", ""))
	if err != nil {
		o.logger.WithError(err).Debug("Couldn't create database; most likely harmless")
	}

	pf, err := output.NewPeriodicFlusher(o.Config.PushInterval.TimeDuration(), o.flushRecords)
	if err != nil {
		return err
	}
	o.logger.Debug("Started!")
	o.periodicFlusher = pf

	return nil
}

// Stop flushes any remaining records and closes the client.
func (o *Output) Stop() error {
	o.logger.Debug("Stopping...")
	defer o.logger.Debug("Stopped!")
	o.periodicFlusher.Stop()
	return o.Client.Close()
}

func (o *Output) batchFromRecords(records []output.Record) (client.BatchPoints, error) {
	batch, err := client.NewBatchPoints(o.BatchConf)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if rec.Marker != nil {
			p, err := client.NewPoint(
				"marker",
				nil,
				map[string]interface{}{"label": rec.Marker.Label},
				rec.Marker.Time,
			)
			if err != nil {
				return nil, err
			}
			batch.AddPoint(p)
			continue
		}

		tags := map[string]string{"sensor": rec.Source}
		for i := range rec.Readings {
			r := &rec.Readings[i]
			fields := make(map[string]interface{}, 3)
			if r.HasVoltage() {
				fields["voltage"] = r.Voltage
			}
			if r.HasCurrent() {
				fields["current"] = r.Current
			}
			if r.HasPower() {
				fields["power"] = r.Power
			}
			if len(fields) == 0 {
				continue
			}
			p, err := client.NewPoint("power", tags, fields, r.Time)
			if err != nil {
				return nil, err
			}
			batch.AddPoint(p)
		}
	}
	return batch, nil
}

func (o *Output) flushRecords() {
	records := o.GetBufferedRecords()
	if len(records) < 1 {
		return
	}

	batch, err := o.batchFromRecords(records)
	if err != nil {
		o.logger.WithError(err).Error("Couldn't make a batch from buffered readings")
		return
	}

	o.logger.WithField("points", len(batch.Points())).Debug("Writing...")
	startTime := time.Now()
	if err := o.Client.Write(batch); err != nil {
		o.logger.WithError(err).Error("Couldn't write readings")
		return
	}
	t := time.Since(startTime)
	o.logger.WithField("t", t).Debug("Batch written!")
}

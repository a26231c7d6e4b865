// Package ndjson implements a Sink that funnels readings to an
// (optionally gzipped) newline-delimited JSON file.
package ndjson

import (
	"compress/gzip"
	stdlibjson "encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/powertap/powertap/output"
)

const flushPeriod = 200 * time.Millisecond // TODO: make this configurable

// Output funnels all passed readings to an (optionally gzipped) NDJSON
// file, one envelope per line.
type Output struct {
	output.RecordBuffer

	params          output.Params
	periodicFlusher *output.PeriodicFlusher

	logger   logrus.FieldLogger
	filename string
	encoder  *stdlibjson.Encoder
	closeFn  func() error
}

// New returns a new NDJSON sink.
func New(params output.Params) (output.Sink, error) {
	return &Output{
		params:   params,
		filename: params.ConfigArgument,
		logger: params.Logger.WithFields(logrus.Fields{
			"output":   "ndjson",
			"filename": params.ConfigArgument,
		}),
	}, nil
}

// Description returns a human-readable description of the output.
func (o *Output) Description() string {
	if o.filename == "" || o.filename == "-" {
		return "ndjson (stdout)"
	}
	return fmt.Sprintf("ndjson (%s)", o.filename)
}

// Start opens the specified file and starts the goroutine for record
// flushing. If gzip encoding is specified, it also handles that.
func (o *Output) Start() error {
	o.logger.Debug("Starting...")

	if o.filename == "" || o.filename == "-" {
		o.encoder = stdlibjson.NewEncoder(o.params.StdOut)
		o.closeFn = func() error {
			return nil
		}
	} else {
		logfile, err := o.params.FS.Create(o.filename)
		if err != nil {
			return err
		}

		if strings.HasSuffix(o.filename, ".gz") {
			outfile := gzip.NewWriter(logfile)

			o.closeFn = func() error {
				_ = outfile.Close()
				return logfile.Close()
			}
			o.encoder = stdlibjson.NewEncoder(outfile)
		} else {
			o.closeFn = logfile.Close
			o.encoder = stdlibjson.NewEncoder(logfile)
		}
	}

	o.encoder.SetEscapeHTML(false)

	pf, err := output.NewPeriodicFlusher(flushPeriod, o.flushRecords)
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
	return o.closeFn()
}

func (o *Output) flushRecords() {
	records := o.GetBufferedRecords()
	start := time.Now()
	var count int
	for _, rec := range records {
		if rec.Marker != nil {
			if err := o.encoder.Encode(wrapMarker(*rec.Marker)); err != nil {
				o.logger.WithError(err).Error("Marker couldn't be marshalled to JSON")
			}
			continue
		}
		count += len(rec.Readings)
		for _, r := range rec.Readings {
			if err := o.encoder.Encode(wrapReading(rec.Source, r)); err != nil {
				o.logger.WithError(err).Error("Reading couldn't be marshalled to JSON")
			}
		}
	}
	if count > 0 {
		o.logger.WithField("t", time.Since(start)).WithField("count", count).Debug("Wrote readings to JSON")
	}
}

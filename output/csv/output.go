// Package csv implements a Sink that writes readings to a CSV file,
// optionally gzip-compressed.
package csv

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/powertap/powertap/output"
	"github.com/powertap/powertap/sensor"
)

// Output implements the output.Sink interface for saving to CSV files.
type Output struct {
	output.RecordBuffer

	params          output.Params
	periodicFlusher *output.PeriodicFlusher

	logger    logrus.FieldLogger
	fname     string
	csvWriter *csv.Writer
	csvLock   sync.Mutex
	closeFn   func() error

	row          []string
	saveInterval time.Duration
	timeFormat   TimeFormat
}

// New creates a new CSV sink.
func New(params output.Params) (output.Sink, error) {
	return newOutput(params)
}

func newOutput(params output.Params) (*Output, error) {
	logger := params.Logger.WithFields(logrus.Fields{
		"output":   "csv",
		"filename": params.ConfigArgument,
	})
	config, err := GetConsolidatedConfig(params.JSONConfig, params.Environment, params.ConfigArgument)
	if err != nil {
		return nil, err
	}
	timeFormat, err := TimeFormatString(config.TimeFormat.String)
	if err != nil {
		return nil, err
	}

	saveInterval := config.SaveInterval.TimeDuration()
	fname := config.FileName.String

	if fname == "" || fname == "-" {
		return &Output{
			fname:        "-",
			csvWriter:    csv.NewWriter(params.StdOut),
			row:          make([]string, len(Header())),
			saveInterval: saveInterval,
			timeFormat:   timeFormat,
			closeFn:      func() error { return nil },
			logger:       logger,
			params:       params,
		}, nil
	}

	logFile, err := params.FS.Create(fname)
	if err != nil {
		return nil, err
	}

	o := Output{
		fname:        fname,
		row:          make([]string, len(Header())),
		saveInterval: saveInterval,
		timeFormat:   timeFormat,
		logger:       logger,
		params:       params,
	}

	if strings.HasSuffix(fname, ".gz") {
		outfile := gzip.NewWriter(logFile)
		o.csvWriter = csv.NewWriter(outfile)
		o.closeFn = func() error {
			_ = outfile.Close()
			return logFile.Close()
		}
	} else {
		o.csvWriter = csv.NewWriter(logFile)
		o.closeFn = logFile.Close
	}

	return &o, nil
}

// Description returns a human-readable description of the output.
func (o *Output) Description() string {
	if o.fname == "" || o.fname == "-" {
		return "csv (stdout)"
	}
	return fmt.Sprintf("csv (%s)", o.fname)
}

// Start writes the csv header and starts a new output.PeriodicFlusher
func (o *Output) Start() error {
	o.logger.Debug("Starting...")

	if err := o.csvWriter.Write(Header()); err != nil {
		o.logger.WithField("filename", o.fname).Error("CSV: Error writing column names to file")
	}
	o.csvWriter.Flush()

	pf, err := output.NewPeriodicFlusher(o.saveInterval, o.flushRecords)
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

// flushRecords writes the buffered records to the csv file.
func (o *Output) flushRecords() {
	records := o.GetBufferedRecords()
	if len(records) < 1 {
		return
	}

	o.csvLock.Lock()
	defer o.csvLock.Unlock()
	for _, rec := range records {
		if rec.Marker != nil {
			o.writeRow(MarkerToRow(rec.Marker, o.row, o.timeFormat))
			continue
		}
		for i := range rec.Readings {
			o.writeRow(ReadingToRow(rec.Source, &rec.Readings[i], o.row, o.timeFormat))
		}
	}
	o.csvWriter.Flush()
	if err := o.csvWriter.Error(); err != nil {
		o.logger.WithField("filename", o.fname).WithError(err).Error("CSV: Error writing to file")
	}
}

func (o *Output) writeRow(row []string) {
	if err := o.csvWriter.Write(row); err != nil {
		o.logger.WithField("filename", o.fname).Error("CSV: Error writing to file")
	}
}

// Header returns the column names written as the first csv row.
func Header() []string {
	return []string{"timestamp", "sensor", "voltage", "current", "power", "marker"}
}

// ReadingToRow renders one reading into row, which must have one cell
// per header column.
func ReadingToRow(source string, r *sensor.Reading, row []string, timeFormat TimeFormat) []string {
	row[0] = formatTime(r.Time, timeFormat)
	row[1] = source
	row[2] = formatQuantity(r.Voltage)
	row[3] = formatQuantity(r.Current)
	row[4] = formatQuantity(r.Power)
	row[5] = ""
	return row
}

// MarkerToRow renders one marker into row, which must have one cell per
// header column.
func MarkerToRow(m *output.Marker, row []string, timeFormat TimeFormat) []string {
	row[0] = formatTime(m.Time, timeFormat)
	row[1] = ""
	row[2] = ""
	row[3] = ""
	row[4] = ""
	row[5] = m.Label
	return row
}

func formatTime(t time.Time, timeFormat TimeFormat) string {
	if timeFormat == TimeFormatRFC3339 {
		return t.Format(time.RFC3339Nano)
	}
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}

// formatQuantity renders one quantity, leaving the cell empty when the
// sensor did not measure it.
func formatQuantity(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

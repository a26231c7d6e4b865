package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/powertap/powertap/sensor"
)

// RecordBuffer is a simple thread-safe buffer for records. It should be
// used by most sinks, since we generally want to flush records to the
// destination asynchronously. We want to do that only every so often,
// and we don't want to block the sampling goroutines in the meantime.
type RecordBuffer struct {
	sync.Mutex
	buffer []Record
	maxLen int
}

// AddReadings appends a batch of readings from one sensor to the
// internal buffer. The slice is retained as-is and must not be written
// to afterwards.
func (rb *RecordBuffer) AddReadings(source string, readings []sensor.Reading) {
	if len(readings) < 1 {
		return
	}
	rb.Lock()
	rb.buffer = append(rb.buffer, Record{Source: source, Readings: readings})
	rb.Unlock()
}

// AddMarker appends a marker to the internal buffer.
func (rb *RecordBuffer) AddMarker(m Marker) {
	rb.Lock()
	rb.buffer = append(rb.buffer, Record{Marker: &m})
	rb.Unlock()
}

// GetBufferedRecords returns the currently buffered records and makes a
// new internal buffer with some hopefully realistic size. If the
// internal buffer is empty, it will return an empty slice.
func (rb *RecordBuffer) GetBufferedRecords() []Record {
	rb.Lock()
	defer rb.Unlock()

	buffered, bufferedLen := rb.buffer, len(rb.buffer)
	if bufferedLen > rb.maxLen {
		rb.maxLen = bufferedLen
	}
	// Make the new buffer halfway between the previously allocated size and the
	// maximum buffer size we've seen so far, to hopefully reduce copying a bit.
	rb.buffer = make([]Record, 0, (bufferedLen+rb.maxLen)/2)

	return buffered
}

// PeriodicFlusher is a small helper for asynchronously flushing
// buffered records on regular intervals. The biggest benefit is having
// a Stop() method that waits for one last flush before it returns.
type PeriodicFlusher struct {
	period          time.Duration
	flushCallback   func()
	stop            chan struct{}
	stopped         chan struct{}
	stopEmissionMux sync.Mutex
}

func (pf *PeriodicFlusher) run() {
	ticker := time.NewTicker(pf.period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pf.flushCallback()
		case <-pf.stop:
			pf.flushCallback()
			close(pf.stopped)
			return
		}
	}
}

// Stop waits for the periodic flusher to flush one last time and exit.
func (pf *PeriodicFlusher) Stop() {
	pf.stopEmissionMux.Lock()
	select {
	case <-pf.stop:
	default:
		close(pf.stop)
	}
	pf.stopEmissionMux.Unlock()
	<-pf.stopped
}

// NewPeriodicFlusher creates a new PeriodicFlusher and starts its goroutine.
func NewPeriodicFlusher(period time.Duration, flushCallback func()) (*PeriodicFlusher, error) {
	if period <= 0 {
		return nil, fmt.Errorf("record flush period should be positive but was %s", period)
	}

	pf := &PeriodicFlusher{
		period:        period,
		flushCallback: flushCallback,
		stop:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go pf.run()

	return pf, nil
}

package output

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powertap/powertap/sensor"
)

func TestRecordBufferBasics(t *testing.T) {
	t.Parallel()

	now := time.Now()
	readings := []sensor.Reading{sensor.PowerReading(now, 42)}
	buffer := RecordBuffer{}

	assert.Empty(t, buffer.GetBufferedRecords())
	buffer.AddReadings("a", readings)
	buffer.AddReadings("b", readings)
	buffer.AddMarker(Marker{Time: now, Label: "begin"})
	buffer.AddReadings("a", readings)
	buffer.AddMarker(Marker{Time: now, Label: "end"})

	records := buffer.GetBufferedRecords()
	require.Len(t, records, 5)
	assert.Equal(t, "a", records[0].Source)
	assert.Equal(t, "b", records[1].Source)
	require.NotNil(t, records[2].Marker)
	assert.Equal(t, "begin", records[2].Marker.Label)
	assert.Equal(t, "a", records[3].Source)
	require.NotNil(t, records[4].Marker)
	assert.Equal(t, "end", records[4].Marker.Label)
	assert.Empty(t, buffer.GetBufferedRecords())

	// Verify some internals
	assert.Equal(t, cap(buffer.buffer), 5)
	buffer.AddReadings("a", readings)
	buffer.AddReadings("a", nil)
	buffer.AddReadings("a", []sensor.Reading{})
	buffer.AddReadings("b", readings)
	buffer.AddReadings("c", readings)
	assert.Len(t, buffer.GetBufferedRecords(), 3)
	assert.Equal(t, cap(buffer.buffer), 4)
	buffer.AddReadings("a", readings)
	assert.Len(t, buffer.GetBufferedRecords(), 1)
	assert.Equal(t, cap(buffer.buffer), 3)
	assert.Empty(t, buffer.GetBufferedRecords())
}

func TestRecordBufferConcurrently(t *testing.T) {
	t.Parallel()

	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed)) //nolint:gosec
	t.Logf("Random source seeded with %d\n", seed)

	producersCount := 50 + r.Intn(50)
	recordCount := 10 + r.Intn(10)
	sleepModifier := 10 + r.Intn(10)
	buffer := RecordBuffer{}

	wg := make(chan struct{})
	fillBuffer := func() {
		for i := 0; i < recordCount; i++ {
			buffer.AddReadings("producer", []sensor.Reading{
				sensor.PowerReading(time.Unix(1562324644, 0), float64(i)),
			})
			time.Sleep(time.Duration(i*sleepModifier) * time.Microsecond)
		}
		wg <- struct{}{}
	}
	for i := 0; i < producersCount; i++ {
		go fillBuffer()
	}

	timer := time.NewTicker(5 * time.Millisecond)
	timeout := time.After(5 * time.Second)
	defer timer.Stop()
	readRecords := make([]Record, 0, recordCount*producersCount)
	finishedProducers := 0
loop:
	for {
		select {
		case <-timer.C:
			readRecords = append(readRecords, buffer.GetBufferedRecords()...)
		case <-wg:
			finishedProducers++
			if finishedProducers == producersCount {
				readRecords = append(readRecords, buffer.GetBufferedRecords()...)
				break loop
			}
		case <-timeout:
			t.Fatalf("test timed out")
		}
	}
	assert.Equal(t, recordCount*producersCount, len(readRecords))
	for _, rec := range readRecords {
		assert.Equal(t, "producer", rec.Source)
		require.Len(t, rec.Readings, 1)
	}
}

func TestPeriodicFlusherBasics(t *testing.T) {
	t.Parallel()

	f, err := NewPeriodicFlusher(-1*time.Second, func() {})
	assert.Error(t, err)
	assert.Nil(t, f)
	f, err = NewPeriodicFlusher(0, func() {})
	assert.Error(t, err)
	assert.Nil(t, f)

	count := 0
	wg := &sync.WaitGroup{}
	wg.Add(1)
	f, err = NewPeriodicFlusher(100*time.Millisecond, func() {
		count++
		if count == 2 {
			wg.Done()
		}
	})
	assert.NotNil(t, f)
	assert.Nil(t, err)
	wg.Wait()
	f.Stop()
	assert.Equal(t, 3, count)
}

func TestPeriodicFlusherConcurrency(t *testing.T) {
	t.Parallel()

	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed)) //nolint:gosec
	randStops := 10 + r.Intn(10)
	t.Logf("Random source seeded with %d\n", seed)

	count := 0
	wg := &sync.WaitGroup{}
	wg.Add(1)
	f, err := NewPeriodicFlusher(1000*time.Microsecond, func() {
		// Sleep intentionally may be longer than the flush period. Also, this
		// should never happen concurrently, so it's intentionally not locked.
		time.Sleep(time.Duration(700+r.Intn(1000)) * time.Microsecond)
		count++
		if count == 100 {
			wg.Done()
		}
	})
	assert.NotNil(t, f)
	assert.Nil(t, err)
	wg.Wait()

	stopWG := &sync.WaitGroup{}
	stopWG.Add(randStops)
	for i := 0; i < randStops; i++ {
		go func() {
			f.Stop()
			stopWG.Done()
		}()
	}
	stopWG.Wait()
	assert.True(t, count >= 101) // due to the short intervals, we might not get exactly 101
}

package influxdb

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powertap/powertap/internal/testutils"
	"github.com/powertap/powertap/output"
	"github.com/powertap/powertap/sensor"
)

func TestDescription(t *testing.T) {
	t.Parallel()
	o, err := newOutput(output.Params{
		Logger:         testutils.NewLogger(t),
		ConfigArgument: "http://localhost:8086/powerdb",
	})
	require.NoError(t, err)
	assert.Equal(t, "influxdb (http://localhost:8086)", o.Description())
}

func TestBatchFromRecords(t *testing.T) {
	t.Parallel()
	o := &Output{BatchConf: MakeBatchConfig(NewConfig())}

	t1 := time.Unix(1562324643, 123456789).UTC()
	t2 := time.Unix(1562324644, 0).UTC()
	records := []output.Record{
		{Source: "cpu", Readings: []sensor.Reading{
			sensor.PowerReading(t1, 42),
			sensor.FullReading(t2, 12, 1.5, 18),
		}},
		{Source: "gpu", Readings: []sensor.Reading{
			sensor.NewReading(t2),
		}},
		{Marker: &output.Marker{Time: t2, Label: "begin"}},
	}

	batch, err := o.batchFromRecords(records)
	require.NoError(t, err)
	points := batch.Points()
	require.Len(t, points, 3)

	assert.Equal(t, "power", points[0].Name())
	assert.Equal(t, map[string]string{"sensor": "cpu"}, points[0].Tags())
	fields, err := points[0].Fields()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"power": 42.0}, fields)
	assert.Equal(t, t1, points[0].Time())

	fields, err = points[1].Fields()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"voltage": 12.0, "current": 1.5, "power": 18.0}, fields)

	assert.Equal(t, "marker", points[2].Name())
	fields, err = points[2].Fields()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"label": "begin"}, fields)
}

func TestOutputFlushesBatches(t *testing.T) {
	t.Parallel()

	var mutex sync.Mutex
	var writeBody, writeDB string
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/query":
			mutex.Lock()
			queries = append(queries, r.URL.Query().Get("q"))
			mutex.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"results":[]}`)
		case "/write":
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			mutex.Lock()
			writeBody += string(body)
			writeDB = r.URL.Query().Get("db")
			mutex.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	o, err := newOutput(output.Params{
		Logger:         testutils.NewLogger(t),
		ConfigArgument: server.URL + "/testdb?pushInterval=100ms",
	})
	require.NoError(t, err)
	require.NoError(t, o.Start())

	o.AddReadings("cpu", []sensor.Reading{
		sensor.PowerReading(time.Unix(1562324643, 0).UTC(), 42),
	})
	o.AddMarker(output.Marker{Time: time.Unix(1562324644, 0).UTC(), Label: "begin"})
	require.NoError(t, o.Stop())

	mutex.Lock()
	defer mutex.Unlock()
	require.Contains(t, queries, "CREATE DATABASE testdb")
	assert.Equal(t, "testdb", writeDB)

	lines := strings.Split(strings.TrimSpace(writeBody), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "power,sensor=cpu power=42 1562324643000000000", lines[0])
	assert.Equal(t, `marker label="begin" 1562324644000000000`, lines[1])
}

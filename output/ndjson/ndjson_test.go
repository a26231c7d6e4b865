package ndjson

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powertap/powertap/internal/testutils"
	"github.com/powertap/powertap/output"
	"github.com/powertap/powertap/sensor"
)

func testParams(t *testing.T) output.Params {
	return output.Params{
		OutputType:  "ndjson",
		Logger:      testutils.NewLogger(t),
		Environment: map[string]string{},
		StdOut:      &bytes.Buffer{},
		FS:          afero.NewMemMapFs(),
	}
}

func decodeLines(t *testing.T, data []byte) []map[string]any {
	var decoded []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var v map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &v), line)
		decoded = append(decoded, v)
	}
	return decoded
}

func TestOutputEnvelopes(t *testing.T) {
	t.Parallel()
	params := testParams(t)
	params.ConfigArgument = "power.ndjson"

	o, err := New(params)
	require.NoError(t, err)
	assert.Equal(t, "ndjson (power.ndjson)", o.Description())
	require.NoError(t, o.Start())

	ts := time.Unix(1562324643, 0).UTC()
	o.AddReadings("psu", []sensor.Reading{sensor.FullReading(ts, 12, 1.5, 18)})
	o.AddReadings("cpu", []sensor.Reading{sensor.PowerReading(ts, 42)})
	o.AddMarker(output.Marker{Time: ts, Label: "begin"})
	require.NoError(t, o.Stop())

	data, err := afero.ReadFile(params.FS, "power.ndjson")
	require.NoError(t, err)
	lines := decodeLines(t, data)
	require.Len(t, lines, 3)

	assert.Equal(t, "sample", lines[0]["type"])
	full := lines[0]["data"].(map[string]any)
	assert.Equal(t, "psu", full["sensor"])
	assert.Equal(t, 12.0, full["voltage"])
	assert.Equal(t, 1.5, full["current"])
	assert.Equal(t, 18.0, full["power"])

	// Unmeasured quantities must be omitted, not emitted as null.
	powerOnly := lines[1]["data"].(map[string]any)
	assert.Equal(t, 42.0, powerOnly["power"])
	assert.NotContains(t, powerOnly, "voltage")
	assert.NotContains(t, powerOnly, "current")

	assert.Equal(t, "marker", lines[2]["type"])
	marker := lines[2]["data"].(map[string]any)
	assert.Equal(t, "begin", marker["label"])
}

func TestOutputStdout(t *testing.T) {
	t.Parallel()
	params := testParams(t)
	stdout := &bytes.Buffer{}
	params.StdOut = stdout

	o, err := New(params)
	require.NoError(t, err)
	assert.Equal(t, "ndjson (stdout)", o.Description())
	require.NoError(t, o.Start())
	o.AddReadings("cpu", []sensor.Reading{sensor.PowerReading(time.Now(), 42)})
	require.NoError(t, o.Stop())

	lines := decodeLines(t, stdout.Bytes())
	require.Len(t, lines, 1)
	assert.Equal(t, "sample", lines[0]["type"])
}

func TestOutputGzip(t *testing.T) {
	t.Parallel()
	params := testParams(t)
	params.ConfigArgument = "power.ndjson.gz"

	o, err := New(params)
	require.NoError(t, err)
	require.NoError(t, o.Start())
	o.AddReadings("cpu", []sensor.Reading{sensor.PowerReading(time.Now(), 42)})
	require.NoError(t, o.Stop())

	raw, err := afero.ReadFile(params.FS, "power.ndjson.gz")
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	lines := decodeLines(t, data)
	require.Len(t, lines, 1)
	assert.Equal(t, "cpu", lines[0]["data"].(map[string]any)["sensor"])
}

package statsd

import (
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powertap/powertap/internal/testutils"
	"github.com/powertap/powertap/output"
	"github.com/powertap/powertap/sensor"
)

// collectLines reads datagrams from the fake daemon until n lines
// arrived or the deadline passed.
func collectLines(t *testing.T, conn net.PacketConn, n int) []string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var lines []string
	buf := make([]byte, 4096)
	for len(lines) < n {
		read, _, err := conn.ReadFrom(buf)
		require.NoError(t, err)
		lines = append(lines, strings.Split(strings.TrimSpace(string(buf[:read])), "\n")...)
	}
	return lines
}

func TestOutputSendsGauges(t *testing.T) {
	t.Parallel()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	params := output.Params{
		OutputType:     "statsd",
		ConfigArgument: conn.LocalAddr().String(),
		JSONConfig:     json.RawMessage(`{"pushInterval":"10ms","bufferSize":1}`),
		Logger:         testutils.NewLogger(t),
		Environment:    map[string]string{},
	}
	o, err := newOutput(params)
	require.NoError(t, err)
	assert.Equal(t, "statsd ("+conn.LocalAddr().String()+")", o.Description())

	require.NoError(t, o.Start())
	o.AddReadings("cpu", []sensor.Reading{sensor.FullReading(time.Now(), 12, 1.5, 18)})

	lines := collectLines(t, conn, 3)
	require.NoError(t, o.Stop())

	assert.Contains(t, lines, "powertap.sensor.voltage:12.000000|g|#sensor:cpu")
	assert.Contains(t, lines, "powertap.sensor.current:1.500000|g|#sensor:cpu")
	assert.Contains(t, lines, "powertap.sensor.power:18.000000|g|#sensor:cpu")
}

func TestOutputSkipsUnmeasuredQuantities(t *testing.T) {
	t.Parallel()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	params := output.Params{
		OutputType:     "statsd",
		ConfigArgument: conn.LocalAddr().String(),
		JSONConfig:     json.RawMessage(`{"pushInterval":"10ms","bufferSize":1,"namespace":"pt."}`),
		Logger:         testutils.NewLogger(t),
		Environment:    map[string]string{},
	}
	o, err := newOutput(params)
	require.NoError(t, err)

	require.NoError(t, o.Start())
	o.AddReadings("rapl", []sensor.Reading{sensor.PowerReading(time.Now(), 42)})

	lines := collectLines(t, conn, 1)
	require.NoError(t, o.Stop())

	assert.Contains(t, lines, "pt.sensor.power:42.000000|g|#sensor:rapl")
	for _, line := range lines {
		assert.NotContains(t, line, "voltage")
		assert.NotContains(t, line, "current")
	}
}

func TestOutputWithoutTags(t *testing.T) {
	t.Parallel()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	params := output.Params{
		OutputType:     "statsd",
		ConfigArgument: conn.LocalAddr().String(),
		JSONConfig:     json.RawMessage(`{"pushInterval":"10ms","bufferSize":1,"enableTags":false}`),
		Logger:         testutils.NewLogger(t),
		Environment:    map[string]string{},
	}
	o, err := newOutput(params)
	require.NoError(t, err)

	require.NoError(t, o.Start())
	o.AddReadings("msr/0/package", []sensor.Reading{sensor.PowerReading(time.Now(), 42)})

	lines := collectLines(t, conn, 1)
	require.NoError(t, o.Stop())

	assert.Contains(t, lines, "powertap.msr.0.package.power:42.000000|g")
	for _, line := range lines {
		assert.NotContains(t, line, "|#")
	}
}

func TestOutputMarkerEvents(t *testing.T) {
	t.Parallel()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	params := output.Params{
		OutputType:     "statsd",
		ConfigArgument: conn.LocalAddr().String(),
		JSONConfig:     json.RawMessage(`{"pushInterval":"10ms","bufferSize":1}`),
		Logger:         testutils.NewLogger(t),
		Environment:    map[string]string{},
	}
	o, err := newOutput(params)
	require.NoError(t, err)

	require.NoError(t, o.Start())
	o.AddMarker(output.Marker{Time: time.Now(), Label: "workload started"})

	lines := collectLines(t, conn, 1)
	require.NoError(t, o.Stop())

	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "_e{6,16}") // event with title "marker", 16-byte text
	assert.Contains(t, lines[0], "workload started")
}

func TestOutputStartWithoutAddress(t *testing.T) {
	t.Parallel()
	o, err := newOutput(output.Params{
		OutputType:  "statsd",
		JSONConfig:  json.RawMessage(`{"addr":""}`),
		Logger:      testutils.NewLogger(t),
		Environment: map[string]string{},
	})
	require.NoError(t, err)
	assert.Error(t, o.Start())
}

func TestConfigConsolidation(t *testing.T) {
	t.Parallel()
	c, err := getConsolidatedConfig(nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "localhost:8125", c.Addr.String)
	assert.Equal(t, int64(20), c.BufferSize.Int64)
	assert.Equal(t, "powertap.", c.Namespace.String)
	assert.Equal(t, time.Second, c.PushInterval.TimeDuration())
	assert.True(t, c.EnableTags.Bool)

	c, err = getConsolidatedConfig(
		json.RawMessage(`{"addr":"json:1","namespace":"ns."}`),
		map[string]string{
			"POWERTAP_STATSD_ADDR":          "env:2",
			"POWERTAP_STATSD_PUSH_INTERVAL": "250ms",
			"POWERTAP_STATSD_ENABLE_TAGS":   "false",
		},
		"arg:3",
	)
	require.NoError(t, err)
	assert.Equal(t, "arg:3", c.Addr.String)
	assert.Equal(t, "ns.", c.Namespace.String)
	assert.Equal(t, 250*time.Millisecond, c.PushInterval.TimeDuration())
	assert.False(t, c.EnableTags.Bool)
}

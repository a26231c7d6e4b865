package collector

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powertap/powertap/internal/testutils"
	"github.com/powertap/powertap/internal/testutils/mocksensor"
	"github.com/powertap/powertap/internal/testutils/mocksink"
	"github.com/powertap/powertap/sampling"
	"github.com/powertap/powertap/sensor"
	"github.com/powertap/powertap/types"
)

type locatableMock struct {
	*mocksensor.Sensor
	path string
}

func (l locatableMock) Path() string { return l.path }

func TestParseEntries(t *testing.T) {
	t.Parallel()

	t.Run("SingleObject", func(t *testing.T) {
		t.Parallel()
		entries, err := ParseEntries([]byte(`{"sensor":"msr/0/package","interval":"1ms","sources":"power"}`))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "msr/0/package", entries[0].Sensor)
		assert.True(t, entries[0].Interval.Valid)
		assert.Equal(t, time.Millisecond, entries[0].Interval.TimeDuration())
		assert.Equal(t, sensor.SourcePower, entries[0].Sources)
		assert.Nil(t, entries[0].Resolution)
		assert.False(t, entries[0].MinimumSleep.Valid)
	})
	t.Run("BareNumbersAreMicroseconds", func(t *testing.T) {
		t.Parallel()
		entries, err := ParseEntries([]byte(`{"interval":5000}`))
		require.NoError(t, err)
		assert.Equal(t, 5000*time.Microsecond, entries[0].Interval.TimeDuration())
	})
	t.Run("Array", func(t *testing.T) {
		t.Parallel()
		data := `[
			{"sensor":"msr/0/package","interval":"250us"},
			{"path":"/sys/class/hwmon/hwmon1","resolution":"microseconds","minimumSleep":"10ms"}
		]`
		entries, err := ParseEntries([]byte(data))
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 250*time.Microsecond, entries[0].Interval.TimeDuration())
		assert.Equal(t, "/sys/class/hwmon/hwmon1", entries[1].Path)
		require.NotNil(t, entries[1].Resolution)
		assert.Equal(t, sensor.Microseconds, *entries[1].Resolution)
		assert.Equal(t, 10*time.Millisecond, entries[1].MinimumSleep.TimeDuration())
	})
	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		_, err := ParseEntries([]byte("  \n"))
		assert.ErrorIs(t, err, sensor.ErrInvalidArgument)
	})
	t.Run("EmptyArray", func(t *testing.T) {
		t.Parallel()
		_, err := ParseEntries([]byte("[]"))
		require.ErrorIs(t, err, sensor.ErrInvalidArgument)
		assert.Contains(t, err.Error(), "no entries")
	})
	t.Run("Garbage", func(t *testing.T) {
		t.Parallel()
		_, err := ParseEntries([]byte("{nope"))
		assert.ErrorIs(t, err, sensor.ErrInvalidArgument)
	})
	t.Run("NegativeInterval", func(t *testing.T) {
		t.Parallel()
		_, err := ParseEntries([]byte(`[{"interval":"-5s"},{"minimumSleep":"-1ms"}]`))
		require.ErrorIs(t, err, sensor.ErrInvalidArgument)
		assert.Contains(t, err.Error(), "entry #0")
		assert.Contains(t, err.Error(), "entry #1")
	})
}

func TestMatchEntry(t *testing.T) {
	t.Parallel()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hook := testutils.NewLogHook(logrus.InfoLevel)
	logger.AddHook(hook)

	entries := []FileEntry{
		{Sensor: "default", Interval: types.NullDurationFrom(time.Second)},
		{Sensor: "cpu", Interval: types.NullDurationFrom(time.Millisecond)},
		{Path: "/dev/gpu", Interval: types.NullDurationFrom(2 * time.Millisecond)},
	}

	byName := matchEntry(entries, mocksensor.New("cpu", 42), logger)
	assert.Equal(t, time.Millisecond, byName.Interval.TimeDuration())

	byPath := matchEntry(entries, locatableMock{mocksensor.New("gpu", 13), "/dev/gpu"}, logger)
	assert.Equal(t, 2*time.Millisecond, byPath.Interval.TimeDuration())
	assert.Empty(t, hook.Drain())

	fallback := matchEntry(entries, mocksensor.New("psu", 7), logger)
	assert.Equal(t, time.Second, fallback.Interval.TimeDuration())
	assert.True(t, testutils.LogContains(hook.Drain(), logrus.InfoLevel, "No dedicated configuration entry"))
}

func TestConfigFromEntry(t *testing.T) {
	t.Parallel()
	settings := Settings{Logger: testutils.NewLogger(t)}.withDefaults()

	res := sensor.Nanoseconds
	cfg := configFromEntry(settings, &FileEntry{
		Interval:   types.NullDurationFrom(time.Millisecond),
		Sources:    sensor.SourcePower,
		Resolution: &res,
	})
	assert.Equal(t, time.Millisecond, cfg.Interval())
	assert.Equal(t, sampling.DefaultMinimumSleep, cfg.MinimumSleep())
	assert.Equal(t, sensor.SourcePower, cfg.Sources())
	assert.Equal(t, sensor.Nanoseconds, cfg.Resolution())

	inherited := configFromEntry(settings, &FileEntry{})
	assert.Equal(t, sampling.DefaultInterval, inherited.Interval())
	assert.Equal(t, sensor.SourceAll, inherited.Sources())
	assert.Equal(t, sensor.Milliseconds, inherited.Resolution())
}

func TestFromEntries(t *testing.T) {
	t.Parallel()
	settings := fastSettings(t, mocksink.New()).withDefaults()
	entries := []FileEntry{{Sensor: "cpu", Interval: types.NullDurationFrom(2 * time.Millisecond)}}

	c, err := fromEntries(settings, entries, []sensor.Sensor{
		mocksensor.New("cpu", 42),
		mocksensor.New("gpu", 13),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	require.NoError(t, c.Close())

	_, err = fromEntries(settings, entries, nil)
	assert.ErrorIs(t, err, sensor.ErrNotSupported)
}

func TestFromFileErrors(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	settings := Settings{
		Sink:   mocksink.New(),
		Logger: testutils.NewLogger(t),
		FS:     fs,
	}

	_, err := FromFile(settings, "/missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "couldn't read configuration file")

	require.NoError(t, afero.WriteFile(fs, "/bad.json", []byte("{"), 0o644))
	_, err = FromFile(settings, "/bad.json")
	assert.ErrorIs(t, err, sensor.ErrInvalidArgument)
}

func TestWriteTemplate(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	cpu := mocksensor.New("cpu", 42)
	gpu := locatableMock{mocksensor.New("gpu", 13), "/dev/gpu"}

	require.NoError(t, writeTemplate(fs, "/power.json", []sensor.Sensor{cpu, gpu}))
	assert.True(t, cpu.Closed(), "spelled out sensors should be closed again")

	entries, err := ParseFile(fs, "/power.json")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "cpu", entries[0].Sensor)
	assert.Empty(t, entries[0].Path)
	assert.Equal(t, "gpu", entries[1].Sensor)
	assert.Equal(t, "/dev/gpu", entries[1].Path)

	for _, e := range entries {
		assert.Equal(t, sampling.DefaultInterval, e.Interval.TimeDuration())
		assert.Equal(t, sampling.DefaultMinimumSleep, e.MinimumSleep.TimeDuration())
		assert.Equal(t, sensor.SourceAll, e.Sources)
		require.NotNil(t, e.Resolution)
		assert.Equal(t, sensor.Milliseconds, *e.Resolution)
	}
}

package csv

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/powertap/powertap/types"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	config := NewConfig()
	assert.Equal(t, "power.csv", config.FileName.String)
	assert.Equal(t, "1s", config.SaveInterval.String())
	assert.Equal(t, string(TimeFormatUnix), config.TimeFormat.String)
	// Defaults are present but not "valid", so any supplied value wins.
	assert.False(t, config.FileName.Valid)
	assert.False(t, config.SaveInterval.Valid)
	assert.False(t, config.TimeFormat.Valid)
}

func TestApply(t *testing.T) {
	t.Parallel()
	base := NewConfig()
	applied := base.Apply(Config{
		FileName:     null.StringFrom("other.csv"),
		SaveInterval: types.NullDurationFrom(2 * time.Second),
	})
	assert.Equal(t, "other.csv", applied.FileName.String)
	assert.Equal(t, 2*time.Second, applied.SaveInterval.TimeDuration())
	// Invalid fields of the argument must not clobber the defaults.
	assert.Equal(t, string(TimeFormatUnix), applied.TimeFormat.String)
}

func TestParseArg(t *testing.T) {
	t.Parallel()
	t.Run("BareFileName", func(t *testing.T) {
		t.Parallel()
		c, err := ParseArg("out.csv")
		require.NoError(t, err)
		assert.Equal(t, null.StringFrom("out.csv"), c.FileName)
		assert.False(t, c.SaveInterval.Valid)
	})
	t.Run("KeyValues", func(t *testing.T) {
		t.Parallel()
		c, err := ParseArg("fileName=out.csv.gz,saveInterval=200ms,timeFormat=rfc3339")
		require.NoError(t, err)
		assert.Equal(t, "out.csv.gz", c.FileName.String)
		assert.Equal(t, 200*time.Millisecond, c.SaveInterval.TimeDuration())
		assert.Equal(t, "rfc3339", c.TimeFormat.String)
	})
	t.Run("BadInterval", func(t *testing.T) {
		t.Parallel()
		_, err := ParseArg("saveInterval=bananas")
		assert.Error(t, err)
	})
	t.Run("UnknownKey", func(t *testing.T) {
		t.Parallel()
		_, err := ParseArg("color=red")
		assert.Error(t, err)
	})
}

func TestGetConsolidatedConfig(t *testing.T) {
	t.Parallel()
	jsonConf := json.RawMessage(`{"fileName":"json.csv","saveInterval":"100ms"}`)
	env := map[string]string{"POWERTAP_CSV_FILENAME": "env.csv"}

	t.Run("Defaults", func(t *testing.T) {
		t.Parallel()
		c, err := GetConsolidatedConfig(nil, nil, "")
		require.NoError(t, err)
		assert.Equal(t, "power.csv", c.FileName.String)
	})
	t.Run("JSON", func(t *testing.T) {
		t.Parallel()
		c, err := GetConsolidatedConfig(jsonConf, nil, "")
		require.NoError(t, err)
		assert.Equal(t, "json.csv", c.FileName.String)
		assert.Equal(t, 100*time.Millisecond, c.SaveInterval.TimeDuration())
	})
	t.Run("EnvOverridesJSON", func(t *testing.T) {
		t.Parallel()
		c, err := GetConsolidatedConfig(jsonConf, env, "")
		require.NoError(t, err)
		assert.Equal(t, "env.csv", c.FileName.String)
		assert.Equal(t, 100*time.Millisecond, c.SaveInterval.TimeDuration())
	})
	t.Run("ArgOverridesEnv", func(t *testing.T) {
		t.Parallel()
		c, err := GetConsolidatedConfig(jsonConf, env, "arg.csv")
		require.NoError(t, err)
		assert.Equal(t, "arg.csv", c.FileName.String)
	})
	t.Run("BadJSON", func(t *testing.T) {
		t.Parallel()
		_, err := GetConsolidatedConfig(json.RawMessage(`{"saveInterval":[]}`), nil, "")
		assert.Error(t, err)
	})
}

func TestTimeFormatString(t *testing.T) {
	t.Parallel()
	f, err := TimeFormatString("unix")
	require.NoError(t, err)
	assert.Equal(t, TimeFormatUnix, f)

	f, err = TimeFormatString("RFC3339")
	require.NoError(t, err)
	assert.Equal(t, TimeFormatRFC3339, f)

	_, err = TimeFormatString("sundial")
	assert.Error(t, err)
}

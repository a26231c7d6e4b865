package csv

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
	"gopkg.in/guregu/null.v3"

	"github.com/powertap/powertap/types"
)

// Config holds the settings of the csv sink.
type Config struct {
	FileName     null.String        `json:"fileName" envconfig:"POWERTAP_CSV_FILENAME"`
	SaveInterval types.NullDuration `json:"saveInterval" envconfig:"POWERTAP_CSV_SAVE_INTERVAL"`
	TimeFormat   null.String        `json:"timeFormat" envconfig:"POWERTAP_CSV_TIME_FORMAT"`
}

// NewConfig creates a new Config instance with default values for some fields.
func NewConfig() Config {
	return Config{
		FileName:     null.NewString("power.csv", false),
		SaveInterval: types.NewNullDuration(time.Second, false),
		TimeFormat:   null.NewString(string(TimeFormatUnix), false),
	}
}

// Apply merges the valid fields of cfg into c and returns the result.
func (c Config) Apply(cfg Config) Config {
	if cfg.FileName.Valid {
		c.FileName = cfg.FileName
	}
	if cfg.SaveInterval.Valid {
		c.SaveInterval = cfg.SaveInterval
	}
	if cfg.TimeFormat.Valid {
		c.TimeFormat = cfg.TimeFormat
	}
	return c
}

// ParseJSON parses the supplied JSON into a Config.
func ParseJSON(data json.RawMessage) (Config, error) {
	conf := Config{}
	err := json.Unmarshal(data, &conf)
	return conf, err
}

// ParseArg parses a CLI argument into a Config. A bare value is taken
// as the file name; otherwise the argument is a comma-separated list of
// key=value pairs.
func ParseArg(arg string) (Config, error) {
	c := Config{}

	if !strings.Contains(arg, "=") {
		c.FileName = null.StringFrom(arg)
		return c, nil
	}

	for _, pair := range strings.Split(arg, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return c, fmt.Errorf("couldn't parse %q as argument for csv output", arg)
		}
		switch k {
		case "fileName":
			c.FileName = null.StringFrom(v)
		case "saveInterval":
			if err := c.SaveInterval.UnmarshalText([]byte(v)); err != nil {
				return c, err
			}
		case "timeFormat":
			c.TimeFormat = null.StringFrom(v)
		default:
			return c, fmt.Errorf("unknown key %q as argument for csv output", k)
		}
	}

	return c, nil
}

// GetConsolidatedConfig combines {default config values + JSON config +
// environment vars + arg config values}, and returns the final result.
func GetConsolidatedConfig(jsonRawConf json.RawMessage, env map[string]string, arg string) (Config, error) {
	result := NewConfig()
	if jsonRawConf != nil {
		jsonConf, err := ParseJSON(jsonRawConf)
		if err != nil {
			return result, err
		}
		result = result.Apply(jsonConf)
	}

	envConfig := Config{}
	if err := envconfig.Process("", &envConfig, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}); err != nil {
		return result, err
	}
	result = result.Apply(envConfig)

	if arg != "" {
		argConf, err := ParseArg(arg)
		if err != nil {
			return result, err
		}
		result = result.Apply(argConf)
	}

	return result, nil
}

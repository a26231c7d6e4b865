package influxdb

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
	"gopkg.in/guregu/null.v3"

	"github.com/powertap/powertap/types"
)

// Config holds the settings of the influxdb sink.
type Config struct {
	// Connection.
	Addr         null.String        `json:"addr" envconfig:"POWERTAP_INFLUXDB_ADDR"`
	Username     null.String        `json:"username,omitempty" envconfig:"POWERTAP_INFLUXDB_USERNAME"`
	Password     null.String        `json:"password,omitempty" envconfig:"POWERTAP_INFLUXDB_PASSWORD"`
	Insecure     null.Bool          `json:"insecure,omitempty" envconfig:"POWERTAP_INFLUXDB_INSECURE"`
	PayloadSize  null.Int           `json:"payloadSize,omitempty" envconfig:"POWERTAP_INFLUXDB_PAYLOAD_SIZE"`
	PushInterval types.NullDuration `json:"pushInterval,omitempty" envconfig:"POWERTAP_INFLUXDB_PUSH_INTERVAL"`

	// Readings.
	DB          null.String `json:"db" envconfig:"POWERTAP_INFLUXDB_DB"`
	Precision   null.String `json:"precision,omitempty" envconfig:"POWERTAP_INFLUXDB_PRECISION"`
	Retention   null.String `json:"retention,omitempty" envconfig:"POWERTAP_INFLUXDB_RETENTION"`
	Consistency null.String `json:"consistency,omitempty" envconfig:"POWERTAP_INFLUXDB_CONSISTENCY"`
}

// NewConfig creates a new InfluxDB output config with some default values.
func NewConfig() Config {
	return Config{
		Addr:         null.NewString("http://localhost:8086", false),
		DB:           null.NewString("powertap", false),
		PushInterval: types.NewNullDuration(time.Second, false),
	}
}

// Apply merges the valid fields of cfg into c and returns the result.
func (c Config) Apply(cfg Config) Config {
	if cfg.Addr.Valid {
		c.Addr = cfg.Addr
	}
	if cfg.Username.Valid {
		c.Username = cfg.Username
	}
	if cfg.Password.Valid {
		c.Password = cfg.Password
	}
	if cfg.Insecure.Valid {
		c.Insecure = cfg.Insecure
	}
	if cfg.PayloadSize.Valid {
		c.PayloadSize = cfg.PayloadSize
	}
	if cfg.PushInterval.Valid {
		c.PushInterval = cfg.PushInterval
	}
	if cfg.DB.Valid {
		c.DB = cfg.DB
	}
	if cfg.Precision.Valid {
		c.Precision = cfg.Precision
	}
	if cfg.Retention.Valid {
		c.Retention = cfg.Retention
	}
	if cfg.Consistency.Valid {
		c.Consistency = cfg.Consistency
	}
	return c
}

// SetFromKeyVals sets fields passed from a key and the associated values,
// e.g. an URL query field.
func (c *Config) SetFromKeyVals(k string, vs []string) (err error) {
	switch k {
	case "insecure":
		err = c.Insecure.UnmarshalText([]byte(vs[0]))
		if err != nil {
			return fmt.Errorf("insecure must be true or false, not %s", vs[0])
		}
	case "payloadSize":
		var size int
		size, err = strconv.Atoi(vs[0])
		if err != nil {
			return err
		}
		c.PayloadSize = null.IntFrom(int64(size))
	case "pushInterval":
		err = c.PushInterval.UnmarshalText([]byte(vs[0]))
		if err != nil {
			return err
		}
	case "precision":
		c.Precision = null.StringFrom(vs[0])
	case "retention":
		c.Retention = null.StringFrom(vs[0])
	case "consistency":
		c.Consistency = null.StringFrom(vs[0])
	default:
		return fmt.Errorf("unknown query parameter: %s", k)
	}
	return nil
}

// ParseJSON parses the supplied JSON into a Config.
func ParseJSON(data json.RawMessage) (Config, error) {
	conf := Config{}
	err := json.Unmarshal(data, &conf)
	return conf, err
}

// ParseURL parses the supplied URL into a Config.
func ParseURL(text string) (Config, error) {
	c := Config{}
	u, err := url.Parse(text)
	if err != nil {
		return c, err
	}
	if u.Host != "" {
		c.Addr = null.StringFrom(u.Scheme + "://" + u.Host)
	}
	if u.User != nil {
		c.Username = null.StringFrom(u.User.Username())
		pass, _ := u.User.Password()
		c.Password = null.StringFrom(pass)
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		c.DB = null.StringFrom(db)
	}
	for k, vs := range u.Query() {
		err = c.SetFromKeyVals(k, vs)
		if err != nil {
			return c, err
		}
	}
	return c, err
}

// GetConsolidatedConfig combines {default config values + JSON config +
// environment vars + URL config values}, and returns the final result.
func GetConsolidatedConfig(jsonRawConf json.RawMessage, env map[string]string, url string) (Config, error) {
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

	if url != "" {
		urlConf, err := ParseURL(url)
		if err != nil {
			return result, err
		}
		result = result.Apply(urlConf)
	}

	return result, nil
}

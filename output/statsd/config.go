package statsd

import (
	"encoding/json"
	"time"

	"github.com/mstoykov/envconfig"
	"gopkg.in/guregu/null.v3"

	"github.com/powertap/powertap/types"
)

// config holds the settings of the statsd sink. EnableTags controls the
// Datadog tag extension; plain statsd daemons do not parse it.
type config struct {
	Addr         null.String        `json:"addr,omitempty" envconfig:"POWERTAP_STATSD_ADDR"`
	BufferSize   null.Int           `json:"bufferSize,omitempty" envconfig:"POWERTAP_STATSD_BUFFER_SIZE"`
	Namespace    null.String        `json:"namespace,omitempty" envconfig:"POWERTAP_STATSD_NAMESPACE"`
	PushInterval types.NullDuration `json:"pushInterval,omitempty" envconfig:"POWERTAP_STATSD_PUSH_INTERVAL"`
	EnableTags   null.Bool          `json:"enableTags,omitempty" envconfig:"POWERTAP_STATSD_ENABLE_TAGS"`
}

func newConfig() config {
	return config{
		Addr:         null.NewString("localhost:8125", false),
		BufferSize:   null.NewInt(20, false),
		Namespace:    null.NewString("powertap.", false),
		PushInterval: types.NewNullDuration(1*time.Second, false),
		EnableTags:   null.NewBool(true, false),
	}
}

// Apply merges the valid fields of cfg into c and returns the result.
func (c config) Apply(cfg config) config {
	if cfg.Addr.Valid {
		c.Addr = cfg.Addr
	}
	if cfg.BufferSize.Valid {
		c.BufferSize = cfg.BufferSize
	}
	if cfg.Namespace.Valid {
		c.Namespace = cfg.Namespace
	}
	if cfg.PushInterval.Valid {
		c.PushInterval = cfg.PushInterval
	}
	if cfg.EnableTags.Valid {
		c.EnableTags = cfg.EnableTags
	}
	return c
}

// getConsolidatedConfig combines {default config values + JSON config +
// environment vars + arg config values}, and returns the final result.
func getConsolidatedConfig(jsonRawConf json.RawMessage, env map[string]string, arg string) (config, error) {
	result := newConfig()
	if jsonRawConf != nil {
		jsonConf := config{}
		if err := json.Unmarshal(jsonRawConf, &jsonConf); err != nil {
			return result, err
		}
		result = result.Apply(jsonConf)
	}

	envConfig := config{}
	if err := envconfig.Process("", &envConfig, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}); err != nil {
		return result, err
	}
	result = result.Apply(envConfig)

	// The CLI argument is just the daemon address.
	if arg != "" {
		result.Addr = null.StringFrom(arg)
	}

	return result, nil
}

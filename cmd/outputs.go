package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/powertap/powertap/output"
	"github.com/powertap/powertap/output/csv"
	"github.com/powertap/powertap/output/influxdb"
	"github.com/powertap/powertap/output/ndjson"
	"github.com/powertap/powertap/output/statsd"
)

func builtinSinkConstructors() map[string]func(output.Params) (output.Sink, error) {
	return map[string]func(output.Params) (output.Sink, error){
		"csv":      csv.New,
		"ndjson":   ndjson.New,
		"statsd":   statsd.New,
		"influxdb": influxdb.New,
	}
}

// createSink builds the sink described by a --out argument of the form
// type[=argument], e.g. "csv=readings.csv" or just "ndjson".
func createSink(outArg string, logger logrus.FieldLogger) (output.Sink, error) {
	outType, arg, _ := strings.Cut(outArg, "=")
	constructors := builtinSinkConstructors()
	makeSink, ok := constructors[outType]
	if !ok {
		available := make([]string, 0, len(constructors))
		for t := range constructors {
			available = append(available, t)
		}
		sort.Strings(available)
		return nil, fmt.Errorf(
			"invalid output type %q, available types are %s",
			outType, strings.Join(available, ", "),
		)
	}
	return makeSink(output.Params{
		OutputType:     outType,
		ConfigArgument: arg,
		Logger:         logger,
		Environment:    buildEnvMap(os.Environ()),
		StdOut:         stdout,
		FS:             afero.NewOsFs(),
	})
}

// buildEnvMap returns a map from the key=value pairs of os.Environ().
func buildEnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, found := strings.Cut(kv, "="); found {
			env[k] = v
		}
	}
	return env
}

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/powertap/powertap/collector"
	"github.com/powertap/powertap/output"
	"github.com/powertap/powertap/sensor"
	"github.com/powertap/powertap/sensors/synthetic"
)

// externalAbortExitCode is what the process exits with when a second
// interrupt cuts the shutdown short.
const externalAbortExitCode = 105

//nolint:funlen
func getRunCmd(logger *logrus.Logger) *cobra.Command {
	var (
		configPath   string
		all          bool
		demo         bool
		outs         []string
		duration     time.Duration
		interval     string
		minimumSleep string
		resolution   string
		sources      string
		maxFailures  int
		mark         bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start sampling and stream readings to the outputs",
		Long: "Start sampling power sensors and stream their readings to the\n" +
			"configured outputs until the duration elapses or an interrupt arrives.",
		Example: `  # Sample every discoverable sensor to stdout for ten seconds
  powertap run --all -d 10s

  # Sample the sensors from a configuration file into InfluxDB
  powertap run -c sensors.json -o influxdb=http://localhost:8086/powertap`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := collector.Settings{
				Logger:                 logger,
				MaxConsecutiveFailures: maxFailures,
				FS:                     afero.NewOsFs(),
			}
			if err := parseSettings(&settings, interval, minimumSleep, resolution, sources); err != nil {
				return err
			}

			sinks := make([]output.Sink, 0, len(outs))
			for _, outArg := range outs {
				sink, err := createSink(outArg, logger)
				if err != nil {
					return err
				}
				sinks = append(sinks, sink)
			}
			switch len(sinks) {
			case 0:
				return errors.New("at least one --out is required")
			case 1:
				settings.Sink = sinks[0]
			default:
				settings.Sink = output.NewMulti(sinks...)
			}

			coll, err := buildCollector(settings, configPath, all, demo)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := coll.Close(); cerr != nil {
					logger.WithError(cerr).Error("Couldn't close the collector")
				}
			}()

			fprintf(stdout, "  sensors: %s\n", descriptionColor.Sprint(coll.Len()))
			fprintf(stdout, "   output: %s\n\n", descriptionColor.Sprint(settings.Sink.Description()))

			if err := coll.Start(); err != nil {
				return err
			}
			if mark {
				if err := coll.Marker("begin"); err != nil {
					return err
				}
			}

			sigC := make(chan os.Signal, 2)
			signal.Notify(sigC, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigC)

			// A zero duration leaves timeoutC nil, so only a signal
			// ends the run.
			var timeoutC <-chan time.Time
			if duration > 0 {
				timer := time.NewTimer(duration)
				defer timer.Stop()
				timeoutC = timer.C
			}

			select {
			case <-timeoutC:
				logger.WithField("duration", duration).Debug("Duration elapsed, stopping")
			case sig := <-sigC:
				logger.WithField("signal", sig).Debug("Received a signal, stopping")
				go func() {
					sig := <-sigC
					logger.WithField("signal", sig).Error("Received a second signal, aborting")
					os.Exit(externalAbortExitCode)
				}()
			}

			if mark {
				if err := coll.Marker("end"); err != nil {
					return err
				}
			}
			return coll.Stop()
		},
	}

	flags := runCmd.Flags()
	flags.SortFlags = false
	flags.StringVarP(&configPath, "config", "c", "", "JSON sensor configuration file")
	flags.BoolVar(&all, "all", false, "sample every discoverable sensor")
	flags.BoolVar(&demo, "demo", false, "sample synthetic demo sensors instead of hardware")
	flags.StringArrayVarP(&outs, "out", "o", []string{"csv=-"}, "output destination, type[=argument]")
	flags.DurationVarP(&duration, "duration", "d", 0, "how long to sample, 0 means until interrupted")
	flags.StringVar(&interval, "interval", "", "sampling interval per sensor, bare numbers are microseconds")
	flags.StringVar(&minimumSleep, "minimum-sleep", "", "longest uninterruptible sleep of a sampling loop")
	flags.StringVar(&resolution, "resolution", "",
		"timestamp resolution, one of seconds, milliseconds, microseconds, nanoseconds")
	flags.StringVar(&sources, "sources", "", "comma-separated quantities to sample, e.g. power or voltage,current")
	flags.IntVar(&maxFailures, "max-failures", 0, "disable a sensor after this many consecutive failures, 0 keeps it alive")
	flags.BoolVar(&mark, "mark", false, "emit begin and end markers around the run")
	return runCmd
}

func parseSettings(settings *collector.Settings, interval, minimumSleep, resolution, sources string) error {
	if interval != "" {
		if err := settings.Interval.UnmarshalText([]byte(interval)); err != nil {
			return fmt.Errorf("couldn't parse --interval: %w", err)
		}
	}
	if minimumSleep != "" {
		if err := settings.MinimumSleep.UnmarshalText([]byte(minimumSleep)); err != nil {
			return fmt.Errorf("couldn't parse --minimum-sleep: %w", err)
		}
	}
	if resolution != "" {
		if err := settings.Resolution.UnmarshalText([]byte(resolution)); err != nil {
			return fmt.Errorf("couldn't parse --resolution: %w", err)
		}
	}
	if sources != "" {
		if err := settings.Sources.UnmarshalText([]byte(sources)); err != nil {
			return fmt.Errorf("couldn't parse --sources: %w", err)
		}
	}
	return nil
}

func buildCollector(settings collector.Settings, configPath string, all, demo bool) (*collector.Collector, error) {
	switch {
	case demo:
		pairs, err := demoSensors()
		if err != nil {
			return nil, err
		}
		return collector.New(settings, pairs...)
	case configPath != "":
		return collector.FromFile(settings, configPath)
	case all:
		return collector.ForAll(settings)
	default:
		return nil, fmt.Errorf("%w: pick --all, --demo or a configuration file", sensor.ErrInvalidArgument)
	}
}

// demoSensors builds three synthetic sensors with distinct waveforms.
func demoSensors() ([]collector.SensorConfig, error) {
	constant, err := synthetic.New("demo/constant")
	if err != nil {
		return nil, err
	}
	wave, err := synthetic.New("demo/wave",
		synthetic.WithMidpoint(65), synthetic.WithAmplitude(20), synthetic.WithFrequency(0.5))
	if err != nil {
		return nil, err
	}
	idle, err := synthetic.New("demo/idle",
		synthetic.WithMidpoint(3.5), synthetic.WithAmplitude(0.5), synthetic.WithFrequency(2))
	if err != nil {
		return nil, err
	}
	return []collector.SensorConfig{{Sensor: constant}, {Sensor: wave}, {Sensor: idle}}, nil
}

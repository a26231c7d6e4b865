package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/powertap/powertap/sensor"
	"github.com/powertap/powertap/sensors"
)

func getListCmd(logger *logrus.Logger) *cobra.Command {
	var demo bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the power sensors usable on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sens []sensor.Sensor
			if demo {
				pairs, err := demoSensors()
				if err != nil {
					return err
				}
				for _, pair := range pairs {
					sens = append(sens, pair.Sensor)
				}
			} else {
				sens = sensors.Discover(logger)
			}
			if len(sens) == 0 {
				fprintf(stdout, "no usable sensors found; try --demo, or check device permissions\n")
				return nil
			}
			for _, sen := range sens {
				fprintf(stdout, "%s", descriptionColor.Sprint(sen.Name()))
				if d, ok := sen.(sensor.Describer); ok {
					fprintf(stdout, "  %s", d.Description())
				}
				if loc, ok := sen.(sensor.Locatable); ok {
					fprintf(stdout, "  (%s)", loc.Path())
				}
				fprintf(stdout, "\n")
				if err := sen.Close(); err != nil {
					logger.WithError(err).WithField("sensor", sen.Name()).Warn("Couldn't close sensor")
				}
			}
			return nil
		},
	}
	listCmd.Flags().BoolVar(&demo, "demo", false, "list the synthetic demo sensors instead of hardware")
	return listCmd
}

package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/powertap/powertap/collector"
)

func getTemplateCmd(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "template <path>",
		Short: "Write a sensor configuration file template",
		Long: "Discover the sensors usable on this machine and write a configuration\n" +
			"file with one fully spelled out entry per sensor, ready to be edited\n" +
			"and passed to run --config.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := collector.WriteTemplate(afero.NewOsFs(), args[0], logger); err != nil {
				return err
			}
			logger.WithField("path", args[0]).Info("Configuration template written")
			return nil
		},
	}
}

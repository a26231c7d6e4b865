// Package cmd implements the powertap command line interface.
package cmd

import (
	"fmt"
	"io"
	stdlog "log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

//nolint:gochecknoglobals
var (
	descriptionColor = color.New(color.FgCyan)

	stdoutTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	stderrTTY = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	stdout    io.Writer = colorable.NewColorableStdout()
	stderr    io.Writer = colorable.NewColorableStderr()
)

// rootCommand keeps all fields needed for the main powertap command.
type rootCommand struct {
	cmd    *cobra.Command
	logger *logrus.Logger

	verbose bool
	quiet   bool
	noColor bool
	logFmt  string
}

func newRootCommand(logger *logrus.Logger) *rootCommand {
	c := &rootCommand{logger: logger}
	// the base command when called without any subcommands.
	c.cmd = &cobra.Command{
		Use:   "powertap",
		Short: "a multi-sensor power sampling tool",
		Long: "powertap samples the power sensors of this machine and streams\n" +
			"their readings into one or more outputs.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}
	c.cmd.PersistentFlags().AddFlagSet(c.rootCmdPersistentFlagSet())
	return c
}

func (c *rootCommand) persistentPreRunE(cmd *cobra.Command, args []string) error {
	if c.noColor {
		stdout = colorable.NewNonColorable(os.Stdout)
		stderr = colorable.NewNonColorable(os.Stderr)
		color.NoColor = true
	}
	if err := c.setupLoggers(); err != nil {
		return err
	}
	stdlog.SetOutput(c.logger.Writer())
	return nil
}

func (c *rootCommand) setupLoggers() error {
	if c.verbose {
		c.logger.SetLevel(logrus.DebugLevel)
	} else if c.quiet {
		c.logger.SetLevel(logrus.WarnLevel)
	}
	c.logger.SetOutput(stderr)

	switch c.logFmt {
	case "json":
		c.logger.SetFormatter(&logrus.JSONFormatter{})
		c.logger.Debug("Logger format: JSON")
	case "", "text":
		c.logger.SetFormatter(&logrus.TextFormatter{ForceColors: stderrTTY, DisableColors: c.noColor})
		c.logger.Debug("Logger format: TEXT")
	default:
		return fmt.Errorf("unknown log format `%s`", c.logFmt)
	}
	return nil
}

func (c *rootCommand) rootCmdPersistentFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVarP(&c.quiet, "quiet", "q", false, "only log warnings and errors")
	flags.BoolVar(&c.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&c.logFmt, "log-format", "", "log output format, possible values are text,json")
	return flags
}

// Execute adds all child commands to the root command and runs it. It
// is called once, by main().
func Execute() {
	logger := &logrus.Logger{
		Out:       os.Stderr,
		Formatter: &logrus.TextFormatter{ForceColors: stderrTTY},
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}

	c := newRootCommand(logger)
	c.cmd.AddCommand(
		getRunCmd(logger),
		getListCmd(logger),
		getTemplateCmd(logger),
		getVersionCmd(),
	)

	if err := c.cmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

// fprintf panics when there's an error writing to the supplied io.Writer
func fprintf(w io.Writer, format string, a ...interface{}) (n int) {
	n, err := fmt.Fprintf(w, format, a...)
	if err != nil {
		panic(err.Error())
	}
	return n
}

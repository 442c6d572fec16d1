package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/23skdu/vsakit/internal/config"
	"github.com/23skdu/vsakit/internal/logging"
)

// app is the state shared by every subcommand once the root has loaded the
// configuration.
type app struct {
	cfg    config.Config
	logger zerolog.Logger

	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	a := &app{logger: logging.DiscardLogger()}

	root := &cobra.Command{
		Use:           "vsakit",
		Short:         "Fault-injection and integrity testkit for sparse ternary vectors",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file read before the environment")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "console", "log format: json or console")

	root.AddCommand(
		newGenerateCmd(a),
		newCorruptCmd(a),
		newCampaignCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if err := config.ValidateConfig(&cfg); err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// finish applies flag overrides on top of the loaded configuration and
// validates the result.
func (a *app) finish(apply func(*config.Config)) error {
	apply(&a.cfg)
	return config.ValidateConfig(&a.cfg)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/config"
	"github.com/cory-johannsen/raid/internal/observability"
)

// app carries what every subcommand needs after flag parsing.
type app struct {
	v      *viper.Viper
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	var configPath string

	root := &cobra.Command{
		Use:           "raid",
		Short:         "Turn-based battle engine tooling",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				a.v.SetConfigFile(configPath)
				if err := a.v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config: %w", err)
				}
			}
			cfg, err := config.LoadFromViper(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logger, err := observability.NewLogger(cfg.Logging)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to configuration file (defaults and RAID_* env vars apply without one)")
	pf.String("log-level", "", "override logging.level")
	pf.String("content", "", "override content.dir")
	pf.String("scripts", "", "override content.script_dir")
	bind(a.v, pf.Lookup("log-level"), "logging.level")
	bind(a.v, pf.Lookup("content"), "content.dir")
	bind(a.v, pf.Lookup("scripts"), "content.script_dir")

	root.AddCommand(newSimulateCmd(a), newContentCmd(a), newMigrateCmd(a), newStatsCmd(a))
	return root
}

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/rollcall/internal/config"
	"github.com/BrandonDHaskell/rollcall/internal/logging"
)

// commandContext carries what every subcommand needs once the environment
// has been read.
type commandContext struct {
	cfg    config.Config
	logger *slog.Logger
}

func (c *commandContext) load() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logging.New(os.Stderr, level).With("app", "rollcall", "env", cfg.Env)
	slog.SetDefault(c.logger)
	return nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "rollcall",
		Short:         "Face-recognition attendance server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newAttendanceCommand(ctx))

	return rootCmd
}

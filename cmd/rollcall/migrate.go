package main

import (
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/rollcall/internal/db"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lock, err := db.AcquireLock(ctx.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			// Open applies pending migrations.
			conn, err := db.Open(cmd.Context(), db.Config{Path: ctx.cfg.DBPath, Env: ctx.cfg.Env})
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx.logger.InfoContext(cmd.Context(), "migrations applied", "db_path", ctx.cfg.DBPath)
			return nil
		},
	}
}

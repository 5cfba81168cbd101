package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/migrations"
)

func newMigrateCmd(a *app) *cobra.Command {
	var direction string
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the statistics database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			m, err := migrations.New(a.cfg.Database.DSN())
			if err != nil {
				return err
			}
			defer m.Close()

			switch direction {
			case "up":
				if steps > 0 {
					err = m.Steps(steps)
				} else {
					err = m.Up()
				}
			case "down":
				if steps > 0 {
					err = m.Steps(-steps)
				} else {
					err = m.Down()
				}
			default:
				return fmt.Errorf("invalid direction %q: must be 'up' or 'down'", direction)
			}
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration failed: %w", err)
			}

			version, dirty, _ := m.Version()
			elapsed := time.Since(start)
			a.logger.Info("migration complete",
				zap.String("direction", direction),
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
				zap.Bool("changed", !errors.Is(err, migrate.ErrNoChange)),
				zap.Duration("elapsed", elapsed),
			)
			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Fprintf(cmd.OutOrStdout(), "no changes (version=%d dirty=%v) [%s]\n", version, dirty, elapsed)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "migrated %s to version=%d dirty=%v [%s]\n", direction, version, dirty, elapsed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "up", "migration direction: up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}

package main

import (
	"fmt"
	"strconv"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/persistence"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/persistence/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Applies the embedded Postgres migrations.

SQLite databases are created with the current schema on open, so "up"
only opens them and the other subcommands are rejected.

Examples:
  recipeflow-admin migrate up
  recipeflow-admin migrate down 1
  recipeflow-admin migrate version`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, log, err := c.loadConfig()
				if err != nil {
					return err
				}
				defer func() { _ = log.Sync() }()

				if cfg.Database.Driver == "sqlite" {
					db, err := persistence.Open(cfg, log, nil)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.out, "SQLite schema ready at %s\n", cfg.GetDSN())
					return db.Close()
				}

				if err := persistence.Migrate(cfg, log); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "Migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations, one step by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}

				return c.withMigrator(func(m *migrations.Migrator) error {
					if err := m.Steps(-steps); err != nil {
						return err
					}
					fmt.Fprintf(c.out, "Rolled back %d migration(s)\n", steps)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withMigrator(func(m *migrations.Migrator) error {
					status, err := m.Status()
					if err != nil {
						return err
					}
					printMigrationStatus(c, status)
					return nil
				})
			},
		},
	)
	return cmd
}

func (c *cli) withMigrator(fn func(*migrations.Migrator) error) error {
	cfg, log, err := c.loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := requirePostgres(cfg); err != nil {
		return err
	}

	m, err := migrations.Open(cfg.GetMigrationURL(), cfg.Database.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	return fn(m)
}

func requirePostgres(cfg *config.Config) error {
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("versioned migrations need the postgres driver, configured driver is %q", cfg.Database.Driver)
	}
	return nil
}

func printMigrationStatus(c *cli, status *migrations.MigrationStatus) {
	dirty := ""
	if status.Dirty {
		dirty = " (dirty)"
	}
	fmt.Fprintf(c.out, "Current version: %d%s\n", status.Version, dirty)
	for _, m := range status.Applied {
		fmt.Fprintf(c.out, "  [x] %03d %s\n", m.Version, m.Name)
	}
	for _, m := range status.Pending {
		fmt.Fprintf(c.out, "  [ ] %03d %s\n", m.Version, m.Name)
	}
}

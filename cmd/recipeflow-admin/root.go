package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/container"
	"github.com/alchemorsel/recipeflow/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const appStopTimeout = 15 * time.Second

// cli carries the state shared by every subcommand
type cli struct {
	configPath string
	verbose    bool
	out        io.Writer
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "recipeflow-admin",
		Short: "Administers the recipeflow pipeline",
		Long: `recipeflow-admin manages the stores behind the recipe pipeline.

Commands:
  migrate    Apply or roll back the Postgres schema
  learn      Recompute cuisine knowledge bases from sacred analyses
  knowledge  Inspect a learned knowledge base
  cards      Generate workflow cards for a stored recipe
  token      Mint operator tokens for the HTTP API

Configuration is read from --config, then RECIPEFLOW_* environment
variables, then built-in defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.out = cmd.OutOrStdout()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(
		newMigrateCmd(c),
		newLearnCmd(c),
		newKnowledgeCmd(c),
		newCardsCmd(c),
		newTokenCmd(c),
	)
	return rootCmd
}

// loadConfig reads configuration without starting any services
func (c *cli) loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := c.newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// newLogger keeps stdout free for command output
func (c *cli) newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.App.LogLevel
	if c.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// startServices boots the pipeline services and fills targets from the
// container. The returned stop function releases every resource.
func (c *cli) startServices(ctx context.Context, targets ...interface{}) (func(), error) {
	app := fx.New(
		fx.NopLogger,
		container.Module(c.configPath),
		fx.Decorate(func(cfg *config.Config) (*zap.Logger, error) {
			return c.newLogger(cfg)
		}),
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return nil, err
	}
	if err := app.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start services: %w", err)
	}

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), appStopTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}, nil
}

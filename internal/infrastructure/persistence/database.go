// Package persistence opens the configured relational store
package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	gormModels "github.com/alchemorsel/recipeflow/internal/infrastructure/persistence/gorm"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/persistence/migrations"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/persistence/postgres"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Database is an open GORM handle plus its lifecycle hooks
type Database struct {
	DB     *gorm.DB
	Driver string
	sqlDB  *sql.DB
	close  func() error
}

// Open connects to the configured driver. SQLite schemas are created with
// AutoMigrate; Postgres schemas come from the embedded migrations when
// database.auto_migrate is set.
func Open(cfg *config.Config, logger *zap.Logger, observer gormModels.QueryObserver) (*Database, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return openSQLite(cfg, logger, observer)
	case "postgres":
		return openPostgres(cfg, logger, observer)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func openSQLite(cfg *config.Config, logger *zap.Logger, observer gormModels.QueryObserver) (*Database, error) {
	gormLogger := gormModels.NewLogger(logger, cfg.Database.LogLevel, cfg.Database.SlowQueryThreshold)

	db, err := sqlite.SetupDatabase(cfg.GetDSN(), gormLogger)
	if err != nil {
		return nil, err
	}

	monitor := gormModels.NewQueryMonitor(logger, observer, cfg.Database.SlowQueryThreshold)
	if err := monitor.Install(db); err != nil {
		logger.Warn("Failed to install query monitoring", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	logger.Info("SQLite database ready", zap.String("path", cfg.GetDSN()))
	return &Database{DB: db, Driver: "sqlite", sqlDB: sqlDB, close: sqlDB.Close}, nil
}

func openPostgres(cfg *config.Config, logger *zap.Logger, observer gormModels.QueryObserver) (*Database, error) {
	if cfg.Database.AutoMigrate {
		if err := Migrate(cfg, logger); err != nil {
			return nil, err
		}
	}

	cm, err := postgres.NewConnectionManager(cfg.Database, logger, observer)
	if err != nil {
		return nil, err
	}

	sqlDB, err := cm.GetDB().DB()
	if err != nil {
		_ = cm.Close()
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	return &Database{DB: cm.GetDB(), Driver: "postgres", sqlDB: sqlDB, close: cm.Close}, nil
}

// Migrate applies the embedded Postgres migrations
func Migrate(cfg *config.Config, logger *zap.Logger) error {
	m, err := migrations.Open(cfg.GetMigrationURL(), cfg.Database.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	return m.Up()
}

// HealthCheck pings the database
func (d *Database) HealthCheck(ctx context.Context) error {
	return d.sqlDB.PingContext(ctx)
}

// Stats returns the connection pool statistics
func (d *Database) Stats() sql.DBStats {
	return d.sqlDB.Stats()
}

// Close releases the connection pool
func (d *Database) Close() error {
	return d.close()
}

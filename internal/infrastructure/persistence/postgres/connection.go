// Package postgres provides PostgreSQL database connection and management
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	gormModels "github.com/alchemorsel/recipeflow/internal/infrastructure/persistence/gorm"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// ConnectionManager manages the primary PostgreSQL connection and any
// read replicas registered through dbresolver
type ConnectionManager struct {
	config  config.DatabaseConfig
	logger  *zap.Logger
	db      *gorm.DB
	writeDB *sql.DB
}

// ConnectionConfig holds pool settings after defaults are applied
type ConnectionConfig struct {
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
	LogLevel           string
}

// DefaultConnectionConfig returns the pool defaults
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxOpenConns:       25,
		MaxIdleConns:       5,
		ConnMaxLifetime:    30 * time.Minute,
		ConnMaxIdleTime:    5 * time.Minute,
		SlowQueryThreshold: 200 * time.Millisecond,
		LogLevel:           "warn",
	}
}

// NewConnectionManager connects to the primary and registers replicas.
// observer may be nil.
func NewConnectionManager(cfg config.DatabaseConfig, log *zap.Logger, observer gormModels.QueryObserver) (*ConnectionManager, error) {
	connConfig := DefaultConnectionConfig()

	if cfg.MaxOpenConns > 0 {
		connConfig.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		connConfig.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		connConfig.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		connConfig.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}
	if cfg.SlowQueryThreshold > 0 {
		connConfig.SlowQueryThreshold = cfg.SlowQueryThreshold
	}
	if cfg.LogLevel != "" {
		connConfig.LogLevel = cfg.LogLevel
	}

	cm := &ConnectionManager{
		config: cfg,
		logger: log.Named("postgres"),
	}

	if err := cm.initializePrimaryConnection(connConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize primary connection: %w", err)
	}

	if err := cm.initializeReadReplicas(connConfig); err != nil {
		cm.logger.Warn("Failed to initialize read replicas", zap.Error(err))
	}

	monitor := gormModels.NewQueryMonitor(cm.logger, observer, connConfig.SlowQueryThreshold)
	if err := monitor.Install(cm.db); err != nil {
		cm.logger.Warn("Failed to install query monitoring", zap.Error(err))
	}

	cm.logger.Info("Database connection manager initialized",
		zap.Int("max_open_conns", connConfig.MaxOpenConns),
		zap.Int("max_idle_conns", connConfig.MaxIdleConns),
		zap.Duration("conn_max_lifetime", connConfig.ConnMaxLifetime),
		zap.Int("replicas", len(cfg.Replicas)),
	)

	return cm, nil
}

func (cm *ConnectionManager) initializePrimaryConnection(connConfig *ConnectionConfig) error {
	db, err := gorm.Open(postgres.Open(cm.dsn(cm.config.Host)), &gorm.Config{
		Logger:                 gormModels.NewLogger(cm.logger, connConfig.LogLevel, connConfig.SlowQueryThreshold),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(connConfig.MaxOpenConns)
	sqlDB.SetMaxIdleConns(connConfig.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(connConfig.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connConfig.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	cm.db = db
	cm.writeDB = sqlDB
	return nil
}

// initializeReadReplicas routes reads to replica hosts. Writes and
// transactions stay on the primary.
func (cm *ConnectionManager) initializeReadReplicas(connConfig *ConnectionConfig) error {
	if len(cm.config.Replicas) == 0 {
		return nil
	}

	replicas := make([]gorm.Dialector, len(cm.config.Replicas))
	for i, host := range cm.config.Replicas {
		replicas[i] = postgres.Open(cm.dsn(host))
	}

	err := cm.db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: replicas,
		Policy:   dbresolver.RandomPolicy{},
	}).
		SetMaxOpenConns(connConfig.MaxOpenConns).
		SetMaxIdleConns(connConfig.MaxIdleConns).
		SetConnMaxLifetime(connConfig.ConnMaxLifetime).
		SetConnMaxIdleTime(connConfig.ConnMaxIdleTime))
	if err != nil {
		return fmt.Errorf("failed to register read replicas: %w", err)
	}

	cm.logger.Info("Read replicas configured", zap.Strings("hosts", cm.config.Replicas))
	return nil
}

func (cm *ConnectionManager) dsn(host string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host,
		cm.config.Port,
		cm.config.Username,
		cm.config.Password,
		cm.config.Database,
		cm.config.SSLMode,
	)
}

// GetDB returns the main database connection
func (cm *ConnectionManager) GetDB() *gorm.DB {
	return cm.db
}

// Stats returns the primary pool statistics
func (cm *ConnectionManager) Stats() sql.DBStats {
	return cm.writeDB.Stats()
}

// HealthCheck pings the primary
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.writeDB.PingContext(ctx); err != nil {
		return fmt.Errorf("primary database ping failed: %w", err)
	}
	return nil
}

// Close closes the primary pool
func (cm *ConnectionManager) Close() error {
	if cm.writeDB == nil {
		return nil
	}
	if err := cm.writeDB.Close(); err != nil {
		cm.logger.Error("Failed to close primary database", zap.Error(err))
		return err
	}
	return nil
}

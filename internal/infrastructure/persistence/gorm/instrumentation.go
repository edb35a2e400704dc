package gorm

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// QueryObserver receives the timing of every statement GORM executes
type QueryObserver interface {
	ObserveQuery(operation, table string, duration time.Duration, err error)
}

const queryStartKey = "query_monitor:start"

// QueryMonitor times statements through GORM callbacks, logs slow ones and
// forwards timings to an observer
type QueryMonitor struct {
	logger        *zap.Logger
	observer      QueryObserver
	slowThreshold time.Duration
}

// NewQueryMonitor creates a query monitor. observer may be nil.
func NewQueryMonitor(logger *zap.Logger, observer QueryObserver, slowThreshold time.Duration) *QueryMonitor {
	return &QueryMonitor{
		logger:        logger.Named("query_monitor"),
		observer:      observer,
		slowThreshold: slowThreshold,
	}
}

// Install registers the monitor's callbacks on every GORM processor
func (qm *QueryMonitor) Install(db *gorm.DB) error {
	cb := db.Callback()

	register := []struct {
		operation string
		before    func(name string, fn func(*gorm.DB)) error
		after     func(name string, fn func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, r := range register {
		if err := r.before("monitor:before_"+r.operation, qm.before); err != nil {
			return fmt.Errorf("register %s monitor: %w", r.operation, err)
		}
		if err := r.after("monitor:after_"+r.operation, qm.after(r.operation)); err != nil {
			return fmt.Errorf("register %s monitor: %w", r.operation, err)
		}
	}
	return nil
}

func (qm *QueryMonitor) before(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func (qm *QueryMonitor) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		value, ok := db.InstanceGet(queryStartKey)
		if !ok {
			return
		}
		start, ok := value.(time.Time)
		if !ok {
			return
		}
		duration := time.Since(start)

		err := db.Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = nil
		}

		table := ""
		if db.Statement != nil {
			table = db.Statement.Table
		}

		if qm.observer != nil {
			qm.observer.ObserveQuery(operation, table, duration, err)
		}

		if qm.slowThreshold > 0 && duration > qm.slowThreshold {
			qm.logger.Warn("Slow query",
				zap.String("operation", operation),
				zap.String("table", table),
				zap.Duration("duration", duration),
				zap.String("sql", db.Statement.SQL.String()),
			)
		}
	}
}

// NewLogger adapts zap to GORM's logger. level follows the database log
// level setting: silent, error, warn or info.
func NewLogger(logger *zap.Logger, level string, slowThreshold time.Duration) gormlogger.Interface {
	logLevel := gormlogger.Warn
	switch strings.ToLower(level) {
	case "silent":
		logLevel = gormlogger.Silent
	case "error":
		logLevel = gormlogger.Error
	case "info", "debug":
		logLevel = gormlogger.Info
	}

	return gormlogger.New(
		&logWriter{logger: logger.Named("gorm")},
		gormlogger.Config{
			SlowThreshold:             slowThreshold,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// logWriter implements GORM's Writer interface on top of zap
type logWriter struct {
	logger *zap.Logger
}

// Printf implements the Writer interface
func (w *logWriter) Printf(format string, args ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))

	switch {
	case strings.Contains(msg, "SLOW SQL"):
		w.logger.Warn("GORM slow query", zap.String("message", msg))
	case strings.Contains(msg, "[error]"):
		w.logger.Error("GORM error", zap.String("message", msg))
	default:
		w.logger.Debug("GORM log", zap.String("message", msg))
	}
}

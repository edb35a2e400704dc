package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Watch re-decodes the configuration whenever the config file changes and
// passes the new value to onChange. Invalid edits are logged and ignored.
// Only settings read at call time, such as the log level, take effect
// without a restart.
func Watch(v *viper.Viper, logger *zap.Logger, onChange func(*Config)) {
	if v.ConfigFileUsed() == "" {
		logger.Debug("No config file in use, hot reload disabled")
		return
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		cfg, err := Decode(v)
		if err != nil {
			logger.Warn("Ignoring invalid config change",
				zap.String("file", event.Name),
				zap.Error(err),
			)
			return
		}
		logger.Info("Config reloaded", zap.String("file", event.Name), zap.String("op", event.Op.String()))
		onChange(cfg)
	})
	v.WatchConfig()
}

// LevelUpdater returns an onChange callback that applies app.log_level to level
func LevelUpdater(level zap.AtomicLevel, logger *zap.Logger) func(*Config) {
	return func(cfg *Config) {
		next := level.Level()
		if err := next.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
			logger.Warn("Ignoring unknown log level", zap.String("level", cfg.App.LogLevel))
			return
		}
		if next != level.Level() {
			logger.Info("Log level changed", zap.Stringer("from", level.Level()), zap.Stringer("to", next))
			level.SetLevel(next)
		}
	}
}

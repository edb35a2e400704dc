// Package container provides dependency injection using Uber FX
package container

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alchemorsel/recipeflow/internal/application/cards"
	"github.com/alchemorsel/recipeflow/internal/application/extraction"
	"github.com/alchemorsel/recipeflow/internal/application/knowledge"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/ai"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/ai/ollama"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/cache"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/http/server"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/lock"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/monitoring"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/persistence"
	gormRepo "github.com/alchemorsel/recipeflow/internal/infrastructure/persistence/gorm"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/persistence/memory"
	redisRepo "github.com/alchemorsel/recipeflow/internal/infrastructure/persistence/redis"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/security"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/source"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/storage"
	"github.com/alchemorsel/recipeflow/internal/ports/inbound"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"github.com/alchemorsel/recipeflow/pkg/healthcheck"
	"github.com/alchemorsel/recipeflow/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cacheSweepInterval = time.Minute

// ConfigPath is the optional config file handed to viper. Empty means the
// default search locations.
type ConfigPath string

// Module assembles the pipeline services without the HTTP surface, for
// commands that drive the services directly
func Module(path string) fx.Option {
	return fx.Options(
		fx.Supply(ConfigPath(path)),
		ConfigModule,
		LoggerModule,
		TelemetryModule,
		DatabaseModule,
		CacheModule,
		RepositoryModule,
		ServiceModule,
	)
}

// APIModule is Module plus the HTTP server and its lifecycle
func APIModule(path string) fx.Option {
	return fx.Options(
		Module(path),
		HealthModule,
		HTTPModule,
		LifecycleModule,
	)
}

// ConfigModule provides configuration and hot reload of the log level
var ConfigModule = fx.Provide(
	func(path ConfigPath) (*viper.Viper, error) {
		return config.NewViper(string(path))
	},
	config.Decode,
)

// LoggerModule provides logging
var LoggerModule = fx.Options(
	fx.Provide(
		func(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
			return logger.NewWithLevel(logger.Config{
				Level:       cfg.App.LogLevel,
				Format:      cfg.App.LogFormat,
				Development: cfg.App.Debug,
			})
		},
	),
	fx.Invoke(func(v *viper.Viper, level zap.AtomicLevel, log *zap.Logger) {
		config.Watch(v, log, config.LevelUpdater(level, log))
	}),
)

// TelemetryModule provides tracing, the Prometheus registry and the
// pipeline metrics
var TelemetryModule = fx.Provide(
	monitoring.NewRegistry,
	func(lc fx.Lifecycle, cfg *config.Config, registry *prometheus.Registry, log *zap.Logger) (*monitoring.Telemetry, error) {
		telemetry, err := monitoring.NewTelemetry(monitoring.TelemetryConfigFrom(cfg), registry, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: telemetry.Shutdown})
		return telemetry, nil
	},
	func(registry *prometheus.Registry, telemetry *monitoring.Telemetry, log *zap.Logger) (*monitoring.MetricsCollector, error) {
		return monitoring.NewMetricsCollector(registry, telemetry.Meter(), log)
	},
	func(collector *monitoring.MetricsCollector) outbound.PipelineMetrics {
		return collector
	},
)

// DatabaseModule provides database connections
var DatabaseModule = fx.Provide(
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, collector *monitoring.MetricsCollector) (*persistence.Database, error) {
		db, err := persistence.Open(cfg, log, collector)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", cfg.Database.Driver, err)
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return db.Close()
			},
		})
		return db, nil
	},
	func(db *persistence.Database) *gorm.DB {
		return db.DB
	},
)

// CacheModule provides caching and the pipeline locks. Without Redis both
// fall back to process local implementations.
var CacheModule = fx.Provide(
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*cache.RedisClient, error) {
		if !cfg.Redis.Enabled {
			return nil, nil
		}
		client, err := cache.NewRedisClient(cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		return client, nil
	},
	func(lc fx.Lifecycle, client *cache.RedisClient, log *zap.Logger) outbound.CacheRepository {
		if client != nil {
			return redisRepo.NewCacheRepository(client, log)
		}

		log.Info("Redis disabled, using in-memory cache")
		repo := memory.NewCacheRepository()
		ctx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				repo.StartSweeper(ctx, cacheSweepInterval)
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return nil
			},
		})
		return repo
	},
	func(cfg *config.Config, client *cache.RedisClient, log *zap.Logger) outbound.LockManager {
		return lock.NewLockManager(cfg.Locks, client, log)
	},
)

// RepositoryModule provides repository implementations
var RepositoryModule = fx.Provide(
	gormRepo.NewUploadRepository,
	gormRepo.NewRecipeRepository,
	gormRepo.NewSacredAnalysisRepository,
	gormRepo.NewKnowledgeRepository,
	gormRepo.NewCardRepository,
	func(cfg *config.Config, log *zap.Logger) (outbound.BlobStore, error) {
		return storage.NewBlobStore(cfg, log)
	},
)

// ServiceModule provides the generation adapter and application services
var ServiceModule = fx.Provide(
	security.NewValidator,
	func(cfg *config.Config, log *zap.Logger) outbound.SourceFetcher {
		return source.NewHTTPFetcher(cfg.Extraction, log)
	},
	func(lc fx.Lifecycle, cfg *config.Config, metrics outbound.PipelineMetrics, log *zap.Logger) (outbound.GenerationService, error) {
		provider, err := ai.NewProvider(context.Background(), cfg.AI, log)
		if err != nil {
			return nil, err
		}
		instrumented := ai.NewInstrumentedService(provider, metrics, log)
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return instrumented.Close()
			},
		})
		return instrumented, nil
	},
	func(
		cfg *config.Config,
		analyses outbound.SacredAnalysisRepository,
		bases outbound.KnowledgeRepository,
		cacheRepo outbound.CacheRepository,
		locks outbound.LockManager,
		metrics outbound.PipelineMetrics,
		log *zap.Logger,
	) inbound.KnowledgeService {
		return knowledge.NewService(analyses, bases, cacheRepo, locks, metrics, knowledge.Config{
			ContextTopN:      cfg.Knowledge.ContextTopN,
			ContextCacheTTL:  cfg.Knowledge.ContextCacheTTL,
			LockTTL:          cfg.Locks.LearnerTTL,
			LearnConcurrency: cfg.Knowledge.LearnConcurrency,
		}, log)
	},
	newExtractionService,
	newCardService,
)

type extractionParams struct {
	fx.In

	Config    *config.Config
	Uploads   outbound.UploadRepository
	Recipes   outbound.RecipeRepository
	Generator outbound.GenerationService
	Fetcher   outbound.SourceFetcher
	Blobs     outbound.BlobStore
	Knowledge inbound.KnowledgeService
	Metrics   outbound.PipelineMetrics
	Validate  *validator.Validate
	Logger    *zap.Logger
}

func newExtractionService(p extractionParams) inbound.ExtractionService {
	return extraction.NewService(extraction.Dependencies{
		Uploads:   p.Uploads,
		Recipes:   p.Recipes,
		Generator: p.Generator,
		Fetcher:   p.Fetcher,
		Blobs:     p.Blobs,
		Knowledge: p.Knowledge,
		Metrics:   p.Metrics,
		Validate:  p.Validate,
		Logger:    p.Logger,
	}, extraction.Config{
		Temperature: p.Config.AI.ExtractionTemperature,
		MaxTokens:   p.Config.AI.MaxTokens,
	})
}

type cardParams struct {
	fx.In

	Config    *config.Config
	Recipes   outbound.RecipeRepository
	Analyses  outbound.SacredAnalysisRepository
	Cards     outbound.CardRepository
	Generator outbound.GenerationService
	Locks     outbound.LockManager
	Metrics   outbound.PipelineMetrics
	Validate  *validator.Validate
	Logger    *zap.Logger
}

func newCardService(p cardParams) inbound.CardService {
	return cards.NewService(cards.Dependencies{
		Recipes:   p.Recipes,
		Analyses:  p.Analyses,
		Cards:     p.Cards,
		Generator: p.Generator,
		Locks:     p.Locks,
		Metrics:   p.Metrics,
		Validate:  p.Validate,
		Logger:    p.Logger,
	}, cards.Config{
		Temperature: p.Config.AI.CardsTemperature,
		MaxTokens:   p.Config.AI.MaxTokens,
		LockTTL:     p.Config.Locks.CardsTTL,
	})
}

// HealthModule registers the readiness checks for every backing service
var HealthModule = fx.Provide(NewHealthCheck)

// NewHealthCheck builds the health endpoint checks. Redis and the local
// Ollama daemon only degrade readiness; the database is critical.
func NewHealthCheck(cfg *config.Config, db *persistence.Database, client *cache.RedisClient, log *zap.Logger) *healthcheck.HealthCheck {
	health := healthcheck.New(cfg.App.Version, log)
	health.SetCacheTTL(5 * time.Second)
	health.Register("database", healthcheck.NewDatabaseChecker(db))

	if client != nil {
		health.Register("redis", healthcheck.NewPingChecker("redis", client, false))
	}

	if cfg.AI.Provider == ollama.ProviderName {
		url := strings.TrimRight(cfg.AI.OllamaURL, "/") + "/api/tags"
		health.Register("ollama", healthcheck.NewExternalServiceChecker("ollama", url, 3*time.Second))
	}

	return health
}

type httpParams struct {
	fx.In

	Config     *config.Config
	Extraction inbound.ExtractionService
	Cards      inbound.CardService
	Knowledge  inbound.KnowledgeService
	Validate   *validator.Validate
	Health     *healthcheck.HealthCheck
	Telemetry  *monitoring.Telemetry
	Collector  *monitoring.MetricsCollector
	Logger     *zap.Logger
}

// HTTPModule provides HTTP server and handlers
var HTTPModule = fx.Provide(
	func(p httpParams) *server.Server {
		pipeline := handlers.NewPipelineHandlers(p.Extraction, p.Cards, p.Knowledge, p.Validate, handlers.PipelineConfig{
			MaxBodyBytes: p.Config.Server.MaxBodyBytes,
			DefaultTopN:  p.Config.Knowledge.ContextTopN,
		}, p.Logger)

		return server.NewServer(p.Config, server.Dependencies{
			Pipeline:     pipeline,
			Health:       p.Health,
			Tokens:       security.NewTokenService(p.Config.Auth, p.Logger),
			Observer:     p.Collector,
			Instrumenter: p.Telemetry,
			Metrics:      p.Collector.Handler(),
		}, p.Logger)
	},
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(RegisterLifecycleHooks)

// RegisterLifecycleHooks starts the HTTP server with the application and
// drains it first on stop. A listener failure shuts the whole app down.
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	srv *server.Server,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting recipeflow",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("ai_provider", cfg.AI.Provider),
				zap.String("database", cfg.Database.Driver),
			)

			go func() {
				if err := srv.Start(); err != nil {
					log.Error("HTTP server stopped unexpectedly", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down recipeflow")

			if err := srv.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}

			_ = log.Sync()
			return nil
		},
	})
}

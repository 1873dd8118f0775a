// Package app wires Anchor's infrastructure adapters into a running Engine:
// Postgres Store, the Redis-backed Engram cache, the mirror/notebook
// CompositeReader, the Kafka event publisher, and the Prometheus metrics
// bundle, following the single composition-root pattern of the teacher's
// cmd/apiserver/adapters.go.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/RSBalchII/anchor/internal/application/query"
	"github.com/RSBalchII/anchor/internal/config"
	"github.com/RSBalchII/anchor/internal/domain/memory"
	"github.com/RSBalchII/anchor/internal/infrastructure/database/postgres"
	"github.com/RSBalchII/anchor/internal/infrastructure/database/postgres/repositories"
	"github.com/RSBalchII/anchor/internal/infrastructure/database/redis"
	"github.com/RSBalchII/anchor/internal/infrastructure/messaging/kafka"
	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/prometheus"
	"github.com/RSBalchII/anchor/internal/infrastructure/storage"
	"github.com/RSBalchII/anchor/internal/infrastructure/storage/filesystem"
	"github.com/RSBalchII/anchor/internal/infrastructure/storage/minio"
	"github.com/jackc/pgx/v5/pgxpool"
)

// bootLockName is the Tabula Rasa boot-ownership mutex name of §4.1/§9: a
// single anchor process instance owns the data directory at a time, and a
// crashed holder's lock expires with its TTL rather than wedging the next
// boot forever.
const bootLockName = "boot-owner"
const bootLockTTL = 30 * time.Second

// defaultMigrationPath mirrors the CLI migration commands' own default so a
// boot against an unconfigured MigrationPath still finds the migrations
// directory shipped alongside the binary.
const defaultMigrationPath = "file://migrations"

// App bundles every wired dependency along with the shutdown hooks needed
// to release them cleanly.
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Engine    *query.Engine
	Collector prometheus.MetricsCollector

	pool         *pgxpool.Pool
	redisClient  *redis.Client
	publisher    *kafka.Publisher
	bootLock     redis.DistributedLock
	bootLockHeld bool
}

// Bootstrap wires every infrastructure adapter named in the configuration
// into a ready-to-use App. It is the sole place that knows how to construct
// a Store, a SourceReader, an EventPublisher and a MetricsCollector from raw
// config.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.NewLogger(toLoggingConfig(cfg.Log))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	pool, err := postgres.NewConnectionPool(cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: postgres pool init failed: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		postgres.Close(pool)
		return nil, fmt.Errorf("bootstrap: redis client init failed: %w", err)
	}

	app := &App{Config: cfg, Logger: logger, pool: pool, redisClient: redisClient}

	bootLock, owned, err := acquireBootLock(ctx, redisClient, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("bootstrap: tabula rasa boot-ownership check failed: %w", err)
	}
	app.bootLock = bootLock
	app.bootLockHeld = owned

	if err := runTabulaRasa(cfg.Store, owned, logger); err != nil {
		app.Close()
		return nil, fmt.Errorf("bootstrap: tabula rasa schema step failed: %w", err)
	}

	baseStore := repositories.NewStore(pool, logger)
	engramCache := redis.NewRedisCache(redisClient, logger, cfg.Redis.KeyPrefix, cfg.Redis.DefaultTTL)
	var store memory.Store = redis.NewCachedStore(baseStore, engramCache, cfg.Redis.DefaultTTL)

	reader, err := buildSourceReader(cfg, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("bootstrap: source reader init failed: %w", err)
	}

	if cfg.Kafka.AutoCreateTopics {
		ensureEngramTopic(cfg, logger)
	}

	publisher, err := kafka.NewPublisher(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		MaxRetries: cfg.Kafka.ProducerRetries,
		BatchSize:  cfg.Kafka.BatchSize,
	}, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("bootstrap: kafka publisher init failed: %w", err)
	}
	app.publisher = publisher

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "anchor",
		Subsystem:            "query",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("bootstrap: metrics collector init failed: %w", err)
	}
	metrics := prometheus.NewMetrics(collector)
	app.Collector = collector

	app.Engine = query.NewEngine(store, reader, publisher, logger, metrics, cfg.Engine, cfg.Filesystem.NotebookRoot)

	return app, nil
}

// toLoggingConfig adapts the configuration package's plain LogConfig record
// into the logging package's construction parameters. The two types are kept
// separate so internal/config has no dependency on zap-flavored concepts
// like error output paths.
func toLoggingConfig(c config.LogConfig) logging.LogConfig {
	out := logging.LogConfig{Level: c.Level, Format: c.Format}
	if c.Output != "" {
		out.OutputPaths = []string{c.Output}
	}
	return out
}

// acquireBootLock enforces the Tabula Rasa boot-ownership rule of §4.1/§9:
// only one live anchor process owns the data directory at a time. Winning
// the SetNX race (owned=true) means the store was not already owned by a
// live process — the signal that triggers Tabula Rasa. Losing the race
// (owned=false, err=nil) means another live process already owns the
// store, so this process must not wipe it; it only ensures the schema is
// migrated. A crashed holder's lock expires with its TTL, so the next boot
// wins the race and performs Tabula Rasa rather than waiting forever.
func acquireBootLock(ctx context.Context, client *redis.Client, logger logging.Logger) (lock redis.DistributedLock, owned bool, err error) {
	factory := redis.NewLockFactory(client)
	lock = factory.NewMutex(bootLockName, bootLockTTL)

	ok, err := lock.TryLock(ctx)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		logger.Info("store already owned by a live process; skipping tabula rasa")
		return nil, false, nil
	}
	logger.Info("acquired tabula rasa boot-ownership lock")
	return lock, true, nil
}

// runTabulaRasa performs the schema half of the Tabula Rasa boot policy
// (§4.1, §9): when this process won boot-ownership (owned=true), the store
// was not already owned by a live process, so it drops and re-creates the
// schema from scratch via postgres.TabulaRasa — the filesystem remains
// the source of truth and the ingestion pipeline re-populates it. When
// another live process already owns the store (owned=false), this process
// must not wipe shared state out from under it; it only applies any
// pending migrations so the schema exists before queries run against it.
func runTabulaRasa(cfg config.StoreConfig, owned bool, logger logging.Logger) error {
	dsn := cfg.DSN()
	path := cfg.MigrationPath
	if path == "" {
		path = defaultMigrationPath
	}

	if owned {
		logger.Info("tabula rasa: dropping and re-creating schema")
		return postgres.TabulaRasa(dsn, path)
	}

	logger.Info("store already live-owned: applying pending migrations only")
	return postgres.RunMigrations(dsn, path)
}

// ensureEngramTopic creates the engram.recorded topic when the operator has
// opted into auto-provisioning rather than managing Kafka topics out of
// band. Failures are logged and swallowed: topic creation is a startup
// nicety, never a condition that should block the engine from serving
// queries against a degraded event bus.
func ensureEngramTopic(cfg *config.Config, logger logging.Logger) {
	mgr, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Warn("kafka topic manager init failed, skipping auto-create", logging.Err(err))
		return
	}
	defer mgr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mgr.EnsureEngramRecordedTopic(ctx, cfg.Kafka.NumPartitions, cfg.Kafka.ReplicationFactor); err != nil {
		logger.Warn("failed to auto-create engram.recorded topic", logging.Err(err))
	}
}

// buildSourceReader assembles the mirror-root-first CompositeReader of
// §4.7 step 3 / §6.3: MinIO when configured, a secondary filesystem mirror
// directory when configured, and the notebook root as the always-present
// fallback.
func buildSourceReader(cfg *config.Config, logger logging.Logger) (memory.SourceReader, error) {
	notebook := filesystem.NewNotebookReader(cfg.Filesystem.NotebookRoot)

	var mirror storage.RangeReader
	switch {
	case cfg.MinIO.Endpoint != "":
		client, err := minio.NewClient(cfg.MinIO, logger)
		if err != nil {
			return nil, err
		}
		mirror = minio.NewMirrorReader(client, logger)
	case cfg.Filesystem.MirrorRootDir != "":
		mirror = filesystem.NewNotebookReader(cfg.Filesystem.MirrorRootDir)
	}

	return storage.NewCompositeReader(mirror, notebook, logger), nil
}

// Close releases every held resource: the boot-ownership lock first (so a
// waiting instance can proceed promptly), then the infrastructure clients.
func (a *App) Close() {
	if a.bootLockHeld && a.bootLock != nil {
		if err := a.bootLock.Unlock(context.Background()); err != nil {
			a.Logger.Warn("failed to release boot-ownership lock", logging.Err(err))
		}
		a.bootLockHeld = false
	}
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.pool != nil {
		postgres.Close(a.pool)
	}
}

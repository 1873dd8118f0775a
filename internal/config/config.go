// Package config defines all configuration structures for the Anchor
// retrieval engine. No I/O or parsing logic lives here — only plain data
// types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// StoreConfig holds PostgreSQL connection parameters for the Store (§4.1).
type StoreConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// DSN renders the config as a PostgreSQL connection URL. The connection
// pool and the schema-lifecycle CLI commands both build their DSN here so
// the format string exists exactly once.
func (c StoreConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// FilesystemConfig holds the notebook-root and mirror-root resolution
// parameters described in §6.3.
type FilesystemConfig struct {
	// NotebookRoot is the base directory relative paths are resolved against.
	NotebookRoot string `mapstructure:"notebook_root"`

	// MirrorRootDir, when set, is a local directory shadowing NotebookRoot
	// for engine-managed copies. Mutually exclusive in practice with the
	// MinIO mirror root, but both are wired so either can serve §4.7 step 3.
	MirrorRootDir string `mapstructure:"mirror_root_dir"`
}

// RedisConfig holds Redis connection parameters for the Engram sidecar
// cache (DOMAIN STACK, Engram sidecar).
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer parameters for best-effort EngramRecorded
// event publication (DOMAIN STACK, Event publication).
type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"`
	TimeoutMS         int      `mapstructure:"timeout_ms"`
	ProducerRetries   int      `mapstructure:"producer_retries"`
	BatchSize         int      `mapstructure:"batch_size"`
	AutoCreateTopics  bool     `mapstructure:"auto_create_topics"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
	NumPartitions     int      `mapstructure:"num_partitions"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters backing
// the mirror root (DOMAIN STACK, Mirror root).
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format"` // "json" | "console"
	Output           string `mapstructure:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
}

// EngineConfig holds the retrieval pipeline's tunable thresholds and weights,
// the full recognized-options table of §6.4. Most of these fields are safe to
// hot-reload at runtime (see internal/config/loader.go Watch); none affect
// schema.
type EngineConfig struct {
	MaxCharsDefault      int           `mapstructure:"max_chars_default"`
	MaxCharsLimit        int           `mapstructure:"max_chars_limit"`
	FTSWindowSize        int           `mapstructure:"fts_window_size"`
	WalkDampingAlpha     float64       `mapstructure:"walk_damping_alpha"`
	WalkTimeLambda       float64       `mapstructure:"walk_time_lambda"`
	WalkAnchorCap        int           `mapstructure:"walk_anchor_cap"`
	WalkTimeout          time.Duration `mapstructure:"walk_timeout_ms"`
	WalkTemperature      float64       `mapstructure:"walk_temperature"`
	SimhashNearThreshold int           `mapstructure:"simhash_near_threshold"`
	ElasticRadiusMin     int           `mapstructure:"elastic_radius_min"`
	ElasticRadiusMax     int           `mapstructure:"elastic_radius_max"`
	BudgetSplitPrimary   float64       `mapstructure:"budget_split_primary"`
	HideYearsInTags      bool          `mapstructure:"hide_years_in_tags"`
	POSWhitelist         []string      `mapstructure:"pos_whitelist"`
	BucketAllowList      []string      `mapstructure:"bucket_allow_list"`
	SemanticCategories   []string      `mapstructure:"semantic_categories"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the Anchor engine. Every
// infrastructure component and pipeline stage reads its settings from the
// relevant sub-struct.
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Filesystem FilesystemConfig `mapstructure:"filesystem"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Log        LogConfig        `mapstructure:"log"`
	Engine     EngineConfig     `mapstructure:"engine"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the engine.
func (c *Config) Validate() error {
	// Store
	if c.Store.Host == "" {
		return fmt.Errorf("config: store.host is required")
	}
	if c.Store.Port < 1 || c.Store.Port > 65535 {
		return fmt.Errorf("config: store.port %d is out of range [1, 65535]", c.Store.Port)
	}
	if c.Store.User == "" {
		return fmt.Errorf("config: store.user is required")
	}
	if c.Store.DBName == "" {
		return fmt.Errorf("config: store.db_name is required")
	}
	if c.Store.MaxConns < 1 {
		return fmt.Errorf("config: store.max_conns must be ≥ 1, got %d", c.Store.MaxConns)
	}

	// Filesystem
	if c.Filesystem.NotebookRoot == "" {
		return fmt.Errorf("config: filesystem.notebook_root is required")
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("config: kafka.topic is required")
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Engine
	if c.Engine.MaxCharsDefault < 1 {
		return fmt.Errorf("config: engine.max_chars_default must be ≥ 1, got %d", c.Engine.MaxCharsDefault)
	}
	if c.Engine.MaxCharsLimit < c.Engine.MaxCharsDefault {
		return fmt.Errorf("config: engine.max_chars_limit (%d) must be ≥ max_chars_default (%d)",
			c.Engine.MaxCharsLimit, c.Engine.MaxCharsDefault)
	}
	if c.Engine.WalkAnchorCap < 1 {
		return fmt.Errorf("config: engine.walk_anchor_cap must be ≥ 1, got %d", c.Engine.WalkAnchorCap)
	}
	if c.Engine.WalkTimeout <= 0 {
		return fmt.Errorf("config: engine.walk_timeout_ms must be > 0")
	}
	if c.Engine.SimhashNearThreshold < 0 || c.Engine.SimhashNearThreshold > 64 {
		return fmt.Errorf("config: engine.simhash_near_threshold %d is out of range [0, 64]", c.Engine.SimhashNearThreshold)
	}
	if c.Engine.ElasticRadiusMin < 1 || c.Engine.ElasticRadiusMin > c.Engine.ElasticRadiusMax {
		return fmt.Errorf("config: engine.elastic_radius_min/max are invalid (%d/%d)",
			c.Engine.ElasticRadiusMin, c.Engine.ElasticRadiusMax)
	}
	if c.Engine.BudgetSplitPrimary <= 0 || c.Engine.BudgetSplitPrimary >= 1 {
		return fmt.Errorf("config: engine.budget_split_primary %f must be in (0, 1)", c.Engine.BudgetSplitPrimary)
	}

	return nil
}

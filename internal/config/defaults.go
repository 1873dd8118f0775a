// Package config provides configuration loading, defaults, and validation for
// the Anchor retrieval engine.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultStoreHost     = "localhost"
	DefaultStorePort     = 5432
	DefaultStoreDBName   = "anchor"
	DefaultStoreMaxConns = 25

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultKafkaBroker = "localhost:9092"
	DefaultKafkaTopic  = "engram.recorded"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "anchor-mirror"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// DefaultMaxCharsDefault is the default per-request character budget (§6.4).
	DefaultMaxCharsDefault = 20_000
	// DefaultMaxCharsLimit is the upper bound enforced on requested budgets.
	DefaultMaxCharsLimit = 200_000
	DefaultFTSWindowSize = 3

	DefaultWalkDampingAlpha     = 0.85
	DefaultWalkTimeLambda       = 1e-5
	DefaultWalkAnchorCap        = 50
	DefaultWalkTimeout          = 10 * time.Second
	DefaultSimhashNearThreshold = 3

	DefaultElasticRadiusMin = 200
	DefaultElasticRadiusMax = 32_000

	DefaultBudgetSplitPrimary = 0.70
)

// defaultPOSWhitelist mirrors §4.3's example whitelist of tokens that bypass
// POS filtering even though they would otherwise be dropped.
var defaultPOSWhitelist = []string{"burnout", "career"}

// defaultSemanticCategories is the closed set named in §4.3 step 1.
var defaultSemanticCategories = []string{
	"relationship", "narrative", "technical", "industry",
	"location", "emotional", "temporal", "causal",
}

// defaultBucketAllowList seeds a small starter set; operators extend it via
// configuration per the resolved open question in §9.
var defaultBucketAllowList = []string{"inbox", "journal", "projects", "archive"}

// ─────────────────────────────────────────────────────────────────────────────
// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// It must be called after unmarshalling raw config data and before Validate()
// so that optional-but-defaulted fields are never seen as missing.
// ─────────────────────────────────────────────────────────────────────────────

// ApplyDefaults fills every zero-value field in cfg with the engine default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	if cfg.Store.Host == "" {
		cfg.Store.Host = DefaultStoreHost
	}
	if cfg.Store.Port == 0 {
		cfg.Store.Port = DefaultStorePort
	}
	if cfg.Store.DBName == "" {
		cfg.Store.DBName = DefaultStoreDBName
	}
	if cfg.Store.MaxConns == 0 {
		cfg.Store.MaxConns = DefaultStoreMaxConns
	}
	if cfg.Store.SSLMode == "" {
		cfg.Store.SSLMode = "disable"
	}

	// ── Filesystem ────────────────────────────────────────────────────────────
	if cfg.Filesystem.NotebookRoot == "" {
		cfg.Filesystem.NotebookRoot = "."
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0". We leave it as-is (0 is also the default).

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	if cfg.Engine.MaxCharsDefault == 0 {
		cfg.Engine.MaxCharsDefault = DefaultMaxCharsDefault
	}
	if cfg.Engine.MaxCharsLimit == 0 {
		cfg.Engine.MaxCharsLimit = DefaultMaxCharsLimit
	}
	if cfg.Engine.FTSWindowSize == 0 {
		cfg.Engine.FTSWindowSize = DefaultFTSWindowSize
	}
	if cfg.Engine.WalkDampingAlpha == 0 {
		cfg.Engine.WalkDampingAlpha = DefaultWalkDampingAlpha
	}
	if cfg.Engine.WalkTimeLambda == 0 {
		cfg.Engine.WalkTimeLambda = DefaultWalkTimeLambda
	}
	if cfg.Engine.WalkAnchorCap == 0 {
		cfg.Engine.WalkAnchorCap = DefaultWalkAnchorCap
	}
	if cfg.Engine.WalkTimeout == 0 {
		cfg.Engine.WalkTimeout = DefaultWalkTimeout
	}
	if cfg.Engine.SimhashNearThreshold == 0 {
		cfg.Engine.SimhashNearThreshold = DefaultSimhashNearThreshold
	}
	if cfg.Engine.ElasticRadiusMin == 0 {
		cfg.Engine.ElasticRadiusMin = DefaultElasticRadiusMin
	}
	if cfg.Engine.ElasticRadiusMax == 0 {
		cfg.Engine.ElasticRadiusMax = DefaultElasticRadiusMax
	}
	if cfg.Engine.BudgetSplitPrimary == 0 {
		cfg.Engine.BudgetSplitPrimary = DefaultBudgetSplitPrimary
	}
	if len(cfg.Engine.POSWhitelist) == 0 {
		cfg.Engine.POSWhitelist = defaultPOSWhitelist
	}
	if len(cfg.Engine.SemanticCategories) == 0 {
		cfg.Engine.SemanticCategories = defaultSemanticCategories
	}
	if len(cfg.Engine.BucketAllowList) == 0 {
		cfg.Engine.BucketAllowList = defaultBucketAllowList
	}
}

package prometheus

// Metrics bundles the counters, gauges and histograms the query pipeline
// emits at each stage of the Parse -> EngramLookup -> AnchorSearch -> Walk ->
// Deduplicate -> Inflate -> Assemble pipeline (SPEC_FULL.md AMBIENT STACK,
// "Metrics").
type Metrics struct {
	// StageLatency observes wall-clock seconds per pipeline stage, labeled
	// by stage name ("parse", "engram_lookup", "anchor_search", "walk",
	// "deduplicate", "inflate", "assemble").
	StageLatency HistogramVec

	// StageErrorsTotal counts non-fatal stage failures, labeled by stage
	// and error code, mirroring the StageError values returned in Response.
	StageErrorsTotal CounterVec

	// WalkDeadlineAbortsTotal counts Physics Tag-Walker invocations that hit
	// their deadline-race cancellation before the relational query returned.
	WalkDeadlineAbortsTotal Counter

	// WalkCandidatesTotal observes how many gravity-scored candidates the
	// Tag-Walker surfaced per invocation, before MAX_ANCHOR_IDS capping.
	WalkCandidatesTotal Histogram

	// EngramCacheHitsTotal / EngramCacheMissesTotal count Redis-backed
	// Engram sidecar lookups, per DOMAIN STACK's singleflight-coalesced
	// cache wiring.
	EngramCacheHitsTotal   Counter
	EngramCacheMissesTotal Counter

	// DeduplicatedTotal counts results removed as near-duplicates by the
	// Deduplicator's min-Hamming clustering.
	DeduplicatedTotal Counter

	// InflationsTotal counts Context Inflator expansions performed, labeled
	// by source ("notebook_root", "mirror_root").
	InflationsTotal CounterVec

	// BudgetUtilizationRatio observes the fraction of the requested
	// character budget the Budget Assembler actually filled.
	BudgetUtilizationRatio Histogram

	// RequestsTotal counts completed search requests, labeled by outcome
	// ("ok", "partial", "error").
	RequestsTotal CounterVec
}

// NewMetrics registers every Anchor metric against collector and returns the
// bundle. Registration failures degrade to no-op collectors rather than
// aborting startup, per MetricsCollector's own register() behavior.
func NewMetrics(collector MetricsCollector) *Metrics {
	return &Metrics{
		StageLatency: collector.RegisterHistogram(
			"stage_latency_seconds",
			"Latency of each query pipeline stage in seconds",
			[]float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			"stage",
		),
		StageErrorsTotal: collector.RegisterCounter(
			"stage_errors_total",
			"Count of non-fatal pipeline stage errors",
			"stage", "code",
		),
		WalkDeadlineAbortsTotal: collector.RegisterCounter(
			"walk_deadline_aborts_total",
			"Count of Physics Tag-Walker invocations cancelled by the walk deadline",
		).WithLabelValues(),
		WalkCandidatesTotal: collector.RegisterHistogram(
			"walk_candidates",
			"Number of gravity-scored candidates surfaced per Tag-Walker invocation",
			[]float64{0, 1, 2, 5, 10, 25, 50, 100},
		).WithLabelValues(),
		EngramCacheHitsTotal: collector.RegisterCounter(
			"engram_cache_hits_total",
			"Count of Engram sidecar cache hits",
		).WithLabelValues(),
		EngramCacheMissesTotal: collector.RegisterCounter(
			"engram_cache_misses_total",
			"Count of Engram sidecar cache misses",
		).WithLabelValues(),
		DeduplicatedTotal: collector.RegisterCounter(
			"deduplicated_total",
			"Count of results removed as near-duplicates",
		).WithLabelValues(),
		InflationsTotal: collector.RegisterCounter(
			"inflations_total",
			"Count of Context Inflator expansions performed",
			"source",
		),
		BudgetUtilizationRatio: collector.RegisterHistogram(
			"budget_utilization_ratio",
			"Fraction of the requested character budget filled by the Budget Assembler",
			[]float64{.1, .25, .5, .7, .85, .95, 1},
		).WithLabelValues(),
		RequestsTotal: collector.RegisterCounter(
			"requests_total",
			"Count of completed search requests",
			"outcome",
		),
	}
}

// ObserveStage records a stage's duration and, if code is non-empty,
// increments StageErrorsTotal for that stage/code pair.
func (m *Metrics) ObserveStage(stage string, seconds float64, code string) {
	m.StageLatency.WithLabelValues(stage).Observe(seconds)
	if code != "" {
		m.StageErrorsTotal.WithLabelValues(stage, code).Inc()
	}
}

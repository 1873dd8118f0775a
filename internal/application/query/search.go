package query

import (
	"context"
	"strconv"
	"time"

	"github.com/RSBalchII/anchor/internal/config"
	"github.com/RSBalchII/anchor/internal/domain/memory"
	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/prometheus"
	"github.com/RSBalchII/anchor/pkg/errors"
)

// Engine is the logical "search" entry point of §6.1, wiring Parse ->
// EngramLookup -> AnchorSearch (with a fuzzy retry on an empty merge) ->
// Walk -> Deduplicate -> Inflate -> Assemble into the single request/response
// contract the CLI and any future transport bind to.
type Engine struct {
	store     memory.Store
	reader    memory.SourceReader
	publisher memory.EventPublisher
	logger    logging.Logger
	metrics   *prometheus.Metrics
	cfg       config.EngineConfig
	notebook  string
	parserOpt ParserOptions
}

// NewEngine builds an Engine from its wired dependencies.
func NewEngine(store memory.Store, reader memory.SourceReader, publisher memory.EventPublisher, logger logging.Logger, metrics *prometheus.Metrics, cfg config.EngineConfig, notebookRoot string) *Engine {
	return &Engine{
		store:     store,
		reader:    reader,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
		notebook:  notebookRoot,
		parserOpt: NewParserOptions(cfg.SemanticCategories, cfg.BucketAllowList, cfg.POSWhitelist),
	}
}

// Search runs the full retrieval pipeline for req, producing the assembled
// context string, structured results, and diagnostic metadata of §6.1.
func (e *Engine) Search(ctx context.Context, req Request) Response {
	var stageErrs []StageError
	maxChars := req.MaxChars
	if maxChars <= 0 {
		maxChars = e.cfg.MaxCharsDefault
	}
	if e.cfg.MaxCharsLimit > 0 && maxChars > e.cfg.MaxCharsLimit {
		maxChars = e.cfg.MaxCharsLimit
	}

	parsed := timeStage(e, "parse", func() ParsedQuery {
		return Parse(req.Query, req.ExplicitTags, e.parserOpt)
	})

	if len(parsed.Tokens) == 0 && len(parsed.ScopeTags) == 0 {
		return Response{
			Context: NoResultsSentinel,
			Results: []Result{},
			Metadata: Metadata{
				TokenBudget: maxChars,
				StageErrors: []StageError{{Stage: "parse", Code: errors.CodeEmptyQuery.String(), Message: "empty_query"}},
			},
		}
	}

	var engramAtomIDs []string
	e.timeStageErr("engram_lookup", func() *StageError {
		ids, ok, err := EngramLookup(ctx, e.store, parsed.Sanitized)
		if err != nil {
			return &StageError{Stage: "engram_lookup", Code: errors.CodeStoreQueryFailed.String(), Message: err.Error()}
		}
		if ok {
			e.observeCacheHit(true)
			engramAtomIDs = ids
		} else {
			e.observeCacheHit(false)
		}
		return nil
	})

	scaling := DeriveScaling(maxChars)

	anchorInput := AnchorSearchInput{
		Parsed:           parsed,
		Buckets:          req.Buckets,
		ProvenanceFilter: req.Provenance,
		CharBudget:       maxChars,
		Fuzzy:            false,
	}

	var anchors []Result
	var hitsPerTerm map[string]int
	usedFuzzy := false
	timeStage(e, "anchor_search", func() struct{} {
		var errs []StageError
		anchors, hitsPerTerm, errs = AnchorSearch(ctx, e.store, anchorInput)
		stageErrs = append(stageErrs, errs...)
		if len(anchors) == 0 {
			anchorInput.Fuzzy = true
			usedFuzzy = true
			anchors, hitsPerTerm, errs = AnchorSearch(ctx, e.store, anchorInput)
			stageErrs = append(stageErrs, errs...)
		}
		return struct{}{}
	})

	anchors = applyFilters(anchors, req.FilterType, req.FilterMinVal, req.FilterMaxVal)
	anchors = filterTemporal(anchors, parsed.TemporalTags)

	SortForWalk(anchors, len(parsed.TemporalTags) > 0)
	if len(anchors) > scaling.AnchorLimit {
		anchors = anchors[:scaling.AnchorLimit]
	}

	anchorIDs := make([]string, 0, len(anchors)+len(engramAtomIDs))
	anchorIDs = append(anchorIDs, engramAtomIDs...)
	anchorIDs = append(anchorIDs, e.resolveAnchorAtomIDs(ctx, anchors)...)

	walkResults, walkErr := e.runWalk(ctx, anchorIDs, scaling.WalkLimit)
	if walkErr != nil {
		stageErrs = append(stageErrs, *walkErr)
	}

	combined := make([]Result, 0, len(anchors)+len(walkResults))
	combined = append(combined, anchors...)
	combined = append(combined, walkResults...)

	deduped := timeStage(e, "deduplicate", func() []Result {
		return Deduplicate(combined, e.cfg.SimhashNearThreshold)
	})
	if e.metrics != nil && len(combined) > len(deduped) {
		e.metrics.DeduplicatedTotal.Inc()
	}

	compounds := e.loadCompounds(ctx, deduped)
	radius := ElasticRadius(maxChars, maxInt(len(deduped), 1), 0, e.cfg.ElasticRadiusMin, e.cfg.ElasticRadiusMax)

	inflated, inflateErrs := e.timeStageSlice("inflate", func() ([]Result, []StageError) {
		return Inflate(ctx, e.reader, compounds, e.notebook, deduped, radius)
	})
	stageErrs = append(stageErrs, inflateErrs...)
	fillSourceFromCompounds(inflated, compounds)
	e.observeInflations(inflated, compounds)

	response := timeStage(e, "assemble", func() Response {
		return Assemble(inflated, maxChars, req.Provenance, parsed.ScopeTags, parsed.EntityPairs, e.cfg.HideYearsInTags)
	})
	response.Metadata.StageErrors = append(stageErrs, response.Metadata.StageErrors...)
	response.Metadata.UsedFuzzy = usedFuzzy
	response.Metadata.ElasticRadius = radius
	response.Metadata.HitsPerTerm = hitsPerTerm
	if len(response.Results) == 0 {
		response.Context = NoResultsSentinel
		response.Results = []Result{}
	}

	if e.metrics != nil && maxChars > 0 {
		e.metrics.BudgetUtilizationRatio.Observe(float64(len(response.Context)) / float64(maxChars))
	}

	if len(anchorIDs) > 0 {
		resultAtomIDs := make([]string, 0, len(inflated))
		for _, r := range inflated {
			if r.ID != "" {
				resultAtomIDs = append(resultAtomIDs, r.ID)
			}
		}
		if len(resultAtomIDs) > 0 {
			RecordEngram(ctx, e.store, e.publisher, e.logger, parsed.Sanitized, resultAtomIDs)
		}
	}

	if e.metrics != nil {
		e.metrics.RequestsTotal.WithLabelValues(requestOutcome(stageErrs)).Inc()
	}

	return response
}

// requestOutcome classifies a completed request for RequestsTotal: "ok" when
// no stage reported an error, "partial" when some stages failed but the
// pipeline still produced a response (the normal degrade-to-empty contract).
func requestOutcome(stageErrs []StageError) string {
	if len(stageErrs) == 0 {
		return "ok"
	}
	return "partial"
}

// observeInflations increments InflationsTotal once per freshly-inflated
// result, labeled by which source satisfied the read: compounds with a
// mirror key are read mirror-first by the CompositeReader, falling back to
// the notebook root otherwise, per §4.7 step 3.
func (e *Engine) observeInflations(results []Result, compounds map[string]memory.Compound) {
	if e.metrics == nil {
		return
	}
	for _, r := range results {
		if !r.IsInflated {
			continue
		}
		source := "notebook_root"
		if c, ok := compounds[r.CompoundID]; ok && c.MirrorKey != "" {
			source = "mirror_root"
		}
		e.metrics.InflationsTotal.WithLabelValues(source).Inc()
	}
}

func (e *Engine) runWalk(ctx context.Context, anchorIDs []string, anchorCap int) ([]Result, *StageError) {
	if len(anchorIDs) == 0 {
		return nil, nil
	}
	timeout := e.cfg.WalkTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	results, stageErr := Walk(ctx, e.store, WalkInput{
		AnchorIDs:    anchorIDs,
		DampingAlpha: e.cfg.WalkDampingAlpha,
		TimeLambda:   e.cfg.WalkTimeLambda,
		AnchorCap:    anchorCap,
		Timeout:      timeout,
		Temperature:  e.cfg.WalkTemperature,
	})
	if e.metrics != nil {
		if stageErr != nil && stageErr.Code == errors.CodeWalkTimeout.String() {
			e.metrics.WalkDeadlineAbortsTotal.Inc()
		}
		e.metrics.WalkCandidatesTotal.Observe(float64(len(results)))
	}
	return results, stageErr
}

// resolveAnchorAtomIDs turns Strategy A's atom-label anchors into real
// atom_ids so they can seed the Tag-Walker, which keys anchor_stats off
// atoms.atom_id, per §4.5 step 1.
func (e *Engine) resolveAnchorAtomIDs(ctx context.Context, anchors []Result) []string {
	labels := make([]string, 0, len(anchors))
	seen := make(map[string]struct{}, len(anchors))
	for _, a := range anchors {
		if a.ID == "" {
			continue
		}
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		labels = append(labels, a.ID)
	}
	if len(labels) == 0 {
		return nil
	}

	atoms, err := e.store.FindAtomsByLabel(ctx, labels)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(atoms))
	for _, at := range atoms {
		ids = append(ids, at.AtomID)
	}
	return ids
}

func (e *Engine) loadCompounds(ctx context.Context, results []Result) map[string]memory.Compound {
	compounds := make(map[string]memory.Compound, len(results))
	for _, r := range results {
		if r.CompoundID == "" {
			continue
		}
		if _, ok := compounds[r.CompoundID]; ok {
			continue
		}
		c, err := e.store.FindCompound(ctx, r.CompoundID)
		if err != nil {
			continue
		}
		compounds[r.CompoundID] = c
	}
	return compounds
}

func (e *Engine) observeCacheHit(hit bool) {
	if e.metrics == nil {
		return
	}
	if hit {
		e.metrics.EngramCacheHitsTotal.Inc()
	} else {
		e.metrics.EngramCacheMissesTotal.Inc()
	}
}

func timeStage[T any](e *Engine, stage string, fn func() T) T {
	start := time.Now()
	res := fn()
	if e.metrics != nil {
		e.metrics.ObserveStage(stage, time.Since(start).Seconds(), "")
	}
	return res
}

func (e *Engine) timeStageSlice(stage string, fn func() ([]Result, []StageError)) ([]Result, []StageError) {
	start := time.Now()
	res, errs := fn()
	if e.metrics != nil {
		code := ""
		if len(errs) > 0 {
			code = errs[0].Code
		}
		e.metrics.ObserveStage(stage, time.Since(start).Seconds(), code)
	}
	return res, errs
}

func (e *Engine) timeStageErr(stage string, fn func() *StageError) *StageError {
	start := time.Now()
	err := fn()
	if e.metrics != nil {
		code := ""
		if err != nil {
			code = err.Code
		}
		e.metrics.ObserveStage(stage, time.Since(start).Seconds(), code)
	}
	return err
}

// applyFilters narrows results to the caller's optional type/numeric-range
// filters, per §6.1's `filters?: {type?, minVal?, maxVal?}`. Results with no
// numeric value are kept unless a numeric bound was requested.
func applyFilters(results []Result, filterType memory.MoleculeType, minVal, maxVal *float64) []Result {
	if filterType == "" && minVal == nil && maxVal == nil {
		return results
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if filterType != "" && r.Type != "" && r.Type != filterType {
			continue
		}
		if (minVal != nil || maxVal != nil) && r.NumericValue == nil {
			continue
		}
		if minVal != nil && r.NumericValue != nil && *r.NumericValue < *minVal {
			continue
		}
		if maxVal != nil && r.NumericValue != nil && *r.NumericValue > *maxVal {
			continue
		}
		out = append(out, r)
	}
	return out
}

// filterTemporal narrows results to the years named in the query's temporal
// tags, per §4.4's temporal-range handling. A result passes when its
// timestamp's year, or any of its tags, matches a temporal tag. With no
// temporal tags the input passes through untouched.
func filterTemporal(results []Result, temporalTags map[string]struct{}) []Result {
	if len(temporalTags) == 0 {
		return results
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		year := strconv.Itoa(r.Timestamp.Year())
		if _, ok := temporalTags[year]; ok {
			out = append(out, r)
			continue
		}
		for _, t := range r.Tags {
			if _, ok := temporalTags[t]; ok {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// fillSourceFromCompounds backfills Source and Timestamp on results that
// arrived without them — tag-walk neighbors carry only their atom record —
// using the compound they were inflated from.
func fillSourceFromCompounds(results []Result, compounds map[string]memory.Compound) {
	for i := range results {
		if results[i].CompoundID == "" {
			continue
		}
		c, ok := compounds[results[i].CompoundID]
		if !ok {
			continue
		}
		if results[i].Source == "" {
			results[i].Source = c.Path
		}
		if results[i].Timestamp.IsZero() {
			results[i].Timestamp = c.Timestamp
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package query

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/RSBalchII/anchor/internal/domain/memory"
	"github.com/RSBalchII/anchor/pkg/errors"
)

const perTokenAtomCap = 5
const strategyBLimit = 20

// ScalingParams are the dynamic-scaling quantities derived from the
// requested character budget, per §4.4.
type ScalingParams struct {
	TargetAtoms int
	AnchorLimit int
	WalkLimit   int
}

// DeriveScaling computes target_atoms / anchor_limit / walk_limit from the
// requested character budget.
func DeriveScaling(charBudget int) ScalingParams {
	targetAtoms := int(math.Max(5, math.Ceil(float64(charBudget)/4/200)))
	anchorLimit := int(math.Ceil(0.70 * float64(targetAtoms)))
	walkLimit := int(math.Max(2, math.Floor(0.30*float64(targetAtoms))))
	return ScalingParams{TargetAtoms: targetAtoms, AnchorLimit: anchorLimit, WalkLimit: walkLimit}
}

// AnchorSearchInput bundles the parameters Anchor Search needs beyond the
// parsed query.
type AnchorSearchInput struct {
	Parsed           ParsedQuery
	Buckets          []string
	ProvenanceFilter string
	CharBudget       int
	Fuzzy            bool
}

// AnchorSearch runs Strategy A (atom-position radial) and Strategy B
// (molecule FTS) concurrently and merges their output, deduplicating on
// (compound_id, start_byte). A stage error from either strategy is
// recorded but does not abort the other. The returned hitsPerTerm map
// counts, per sanitized token, how many merged results matched it.
func AnchorSearch(ctx context.Context, store memory.Store, in AnchorSearchInput) ([]Result, map[string]int, []StageError) {
	scaling := DeriveScaling(in.CharBudget)

	var stageErrs []StageError
	var strategyA []Result
	var strategyB []Result

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := runStrategyA(gctx, store, in.Parsed.Tokens, scaling.AnchorLimit)
		if err != nil {
			stageErrs = append(stageErrs, StageError{Stage: "anchor_search_a", Code: errors.GetCode(err).String(), Message: err.Error()})
			return nil
		}
		strategyA = res
		return nil
	})

	g.Go(func() error {
		res, err := runStrategyB(gctx, store, in.Parsed.Tokens, in.Fuzzy, in.ProvenanceFilter, in.Buckets)
		if err != nil {
			stageErrs = append(stageErrs, StageError{Stage: "anchor_search_b", Code: errors.GetCode(err).String(), Message: err.Error()})
			return nil
		}
		strategyB = res
		return nil
	})

	_ = g.Wait()

	merged := mergeAnchorResults(strategyA, strategyB)
	return merged, countHitsPerTerm(merged, in.Parsed.Tokens), stageErrs
}

// countHitsPerTerm tallies how many merged results each sanitized token
// matched, either as the result's atom label or as a substring of its
// content. Terms with zero hits are recorded explicitly so the metadata
// distinguishes "no hits" from "not searched".
func countHitsPerTerm(results []Result, tokens []string) map[string]int {
	hits := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		if len(tok) <= 2 {
			continue
		}
		count := 0
		for _, r := range results {
			if strings.EqualFold(strings.TrimPrefix(r.ID, "#"), tok) ||
				strings.Contains(strings.ToLower(r.Content), tok) {
				count++
			}
		}
		hits[tok] = count
	}
	return hits
}

func runStrategyA(ctx context.Context, store memory.Store, tokens []string, anchorLimit int) ([]Result, error) {
	var candidates []string
	for _, tok := range tokens {
		if len(tok) > 2 {
			candidates = append(candidates, tok)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	hits, err := store.FindAtomPositions(ctx, candidates, perTokenAtomCap)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "atom-position radial lookup failed")
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if len(results) >= anchorLimit {
			break
		}
		results = append(results, Result{
			ID:                 h.AtomLabel,
			Content:            h.Compound.CompoundBody,
			Source:             h.Compound.Path,
			Timestamp:          h.Compound.Timestamp,
			Provenance:         h.Compound.Provenance,
			CompoundID:         h.CompoundID,
			StartByte:          h.ByteOffset,
			MolecularSignature: h.Compound.MolecularSignature,
			ConnectionType:     ConnectionDirectFTS,
		})
	}
	return results, nil
}

func runStrategyB(ctx context.Context, store memory.Store, tokens []string, fuzzy bool, provenanceFilter string, buckets []string) ([]Result, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	filter := memory.MoleculeFilter{Provenance: provenanceFilter, Buckets: buckets}
	hits, err := store.SearchMolecules(ctx, BuildFTSExpression(tokens, fuzzy), filter, strategyBLimit)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "molecule FTS search failed")
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			ID:                 h.Molecule.MoleculeID,
			Content:            h.Molecule.Content,
			Source:             h.Compound.Path,
			Timestamp:          h.Compound.Timestamp,
			Provenance:         h.Compound.Provenance,
			Score:              10 * h.Rank,
			CompoundID:         h.Molecule.CompoundID,
			StartByte:          h.Molecule.StartByte,
			EndByte:            h.Molecule.EndByte,
			Type:               h.Molecule.Type,
			MolecularSignature: h.Molecule.MolecularSignature,
			ConnectionType:     ConnectionDirectFTS,
		})
	}
	return results, nil
}

func mergeAnchorResults(a, b []Result) []Result {
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]Result, 0, len(a)+len(b))
	for _, list := range [][]Result{a, b} {
		for _, r := range list {
			key := dedupKey(r)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, r)
		}
	}
	return merged
}

func dedupKey(r Result) string {
	return r.CompoundID + "\x00" + strconv.Itoa(r.StartByte)
}

// SortForWalk orders anchors by timestamp ascending when a temporal range
// was present in the query, preserving chronology; otherwise by score
// descending, per §4.4's temporal-range handling rule.
func SortForWalk(results []Result, hasTemporalRange bool) {
	if hasTemporalRange {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Timestamp.Before(results[j].Timestamp)
		})
		return
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// BuildFTSExpression joins sanitized tokens with '&' (AND) by default or
// '|' (OR) under fuzzy mode, matching the to_tsquery('simple', expr) form
// the Store builds its SearchMolecules query from.
func BuildFTSExpression(tokens []string, fuzzy bool) string {
	op := " & "
	if fuzzy {
		op = " | "
	}
	return strings.Join(tokens, op)
}

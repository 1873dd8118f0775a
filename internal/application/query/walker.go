package query

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RSBalchII/anchor/internal/domain/memory"
	"github.com/RSBalchII/anchor/pkg/errors"
)

// MaxAnchorIDs caps the anchor-id fan-out per walk query, per §4.5.
const MaxAnchorIDs = 50

// WalkInput bundles the Physics Tag-Walker's tunables.
type WalkInput struct {
	AnchorIDs    []string
	DampingAlpha float64
	TimeLambda   float64
	AnchorCap    int
	Timeout      time.Duration
	Temperature  float64
	Rand         *rand.Rand // used only when Temperature > 0
}

// Walk executes the Physics Tag-Walker's Unified Field Equation as a single
// relational Store query, racing it against a hard wall-clock deadline via
// errgroup.WithContext — the same fan-out idiom AnchorSearch uses. The query
// runs under the group's derived context; a separate goroutine feeds a
// completion signal off g.Wait() so the select below can return the moment
// whichever side finishes first, without waiting on a query that lost the
// race. If the deadline wins, the walk is abandoned and the caller proceeds
// with anchors alone — this is not treated as a pipeline failure.
func Walk(ctx context.Context, store memory.Store, in WalkInput) ([]Result, *StageError) {
	anchorIDs := in.AnchorIDs
	if len(anchorIDs) > MaxAnchorIDs {
		anchorIDs = anchorIDs[:MaxAnchorIDs]
	}
	if len(anchorIDs) == 0 {
		return nil, nil
	}

	cap := in.AnchorCap
	if cap <= 0 {
		cap = MaxAnchorIDs
	}

	deadline := in.Timeout
	if deadline <= 0 {
		deadline = 10 * time.Second
	}

	walkCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	g, gctx := errgroup.WithContext(walkCtx)

	var candidates []memory.TagWalkCandidate
	g.Go(func() error {
		c, err := store.WalkTags(gctx, anchorIDs, in.DampingAlpha, in.TimeLambda, cap)
		if err != nil {
			return err
		}
		candidates = c
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return nil, &StageError{Stage: "walk", Code: errors.CodeStoreQueryFailed.String(), Message: err.Error()}
		}
		if in.Temperature > 0 {
			candidates = SampleSerendipity(candidates, cap, in.Temperature, in.Rand)
		}
		return candidatesToResults(candidates, in.Temperature), nil
	case <-walkCtx.Done():
		return nil, &StageError{Stage: "walk", Code: errors.CodeWalkTimeout.String(), Message: "tag-walk query exceeded deadline"}
	}
}

func candidatesToResults(candidates []memory.TagWalkCandidate, temperature float64) []Result {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		endByte := c.ByteOffset
		if c.CompoundID != "" {
			endByte = c.ByteOffset + len(c.Label)
		}
		results = append(results, Result{
			ID:                 c.AtomID,
			Content:            c.Content,
			Timestamp:          c.Timestamp,
			Tags:               c.Tags,
			Buckets:            c.Buckets,
			Provenance:         c.Provenance,
			Score:              c.GravityScore,
			MolecularSignature: c.MolecularSignature,
			CompoundID:         c.CompoundID,
			StartByte:          c.ByteOffset,
			EndByte:            endByte,
			BestAnchorID:       c.BestAnchorID,
			ConnectionType:     ClassifyConnection(c.HammingToBest, c.DeltaHours, c.SharedTags, temperature),
		})
	}
	return results
}

// SampleSerendipity applies weighted reservoir sampling (A-Res) over the
// candidate set: the key for candidate i is rand^(1 / (sharedTags_i ·
// (1/temperature))), so a higher temperature flattens the preference for
// well-connected candidates and lets loosely-linked atoms through, per §4.5.
// A nil rng falls back to a time-seeded source; callers wanting
// reproducibility pass their own.
func SampleSerendipity(candidates []memory.TagWalkCandidate, k int, temperature float64, rng *rand.Rand) []memory.TagWalkCandidate {
	if temperature <= 0 || len(candidates) <= k {
		return candidates
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	type keyed struct {
		candidate memory.TagWalkCandidate
		key       float64
	}
	keys := make([]keyed, len(candidates))
	for i, c := range candidates {
		shared := float64(c.SharedTags)
		if shared < 1 {
			shared = 1
		}
		weight := shared * (1 / temperature)
		keys[i] = keyed{candidate: c, key: math.Pow(rng.Float64(), 1/weight)}
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].key > keys[j].key })

	out := make([]memory.TagWalkCandidate, 0, k)
	for i := 0; i < k && i < len(keys); i++ {
		out = append(out, keys[i].candidate)
	}
	return out
}

// ClassifyConnection labels a candidate's discovery path per §4.5: direct
// simhash match, temporal neighbor, serendipity pick, or default tag-walk
// neighbor.
func ClassifyConnection(candidateHamming int, deltaHours float64, sharedTags int, temperature float64) ConnectionType {
	switch {
	case candidateHamming <= 3:
		return ConnectionDirectSimhash
	case deltaHours < 1 && candidateHamming > 0:
		return ConnectionTemporalNeighbor
	case temperature > 0.1 && sharedTags <= 1:
		return ConnectionSerendipity
	default:
		return ConnectionTagWalkNeighbor
	}
}

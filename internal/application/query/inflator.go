package query

import (
	"context"
	"math"
	"strings"

	"github.com/RSBalchII/anchor/internal/domain/memory"
	"github.com/RSBalchII/anchor/pkg/errors"
)

const boundaryTrimWindow = 50

// ElasticRadius computes the hit-based inflation radius, per §4.7. An
// explicitRadius greater than zero is used verbatim; otherwise the radius
// is derived from the character budget and hit count, clamped to
// [min, max].
func ElasticRadius(charBudget, hits, explicitRadius, min, max int) int {
	if explicitRadius > 0 {
		return explicitRadius
	}
	if hits < 1 {
		hits = 1
	}
	radius := int(math.Floor(float64(charBudget) / float64(hits) / 2))
	if radius < min {
		radius = min
	}
	if radius > max {
		radius = max
	}
	return radius
}

// inflationWindow is an internal planning record for one result's byte
// window before overlap-merging. resultIdxs accumulates every result whose
// original window was subsumed into this one as windows merge, so all of
// them receive the same inflated content.
type inflationWindow struct {
	resultIdxs []int
	start, end int
}

// Inflate replaces each result's terse content with a coherent byte-aligned
// window of surrounding text, per §4.7. Results without compound
// coordinates, or already marked inflated, are left untouched. A window
// whose trimmed content is all-whitespace (including a source truncated to
// zero bytes) discards its results entirely.
func Inflate(ctx context.Context, reader memory.SourceReader, compounds map[string]memory.Compound, notebookRoot string, results []Result, radius int) ([]Result, []StageError) {
	var stageErrs []StageError
	dropped := make(map[int]struct{})

	windows := make([]inflationWindow, 0, len(results))
	for i, r := range results {
		if r.IsInflated || r.CompoundID == "" {
			continue
		}
		start := r.StartByte - radius
		if start < 0 {
			start = 0
		}
		end := r.EndByte
		if end <= r.StartByte {
			end = r.StartByte + 1
		}
		end += radius
		windows = append(windows, inflationWindow{resultIdxs: []int{i}, start: start, end: end})
	}

	// Windows only merge within the same compound: offsets of different
	// compounds address different sources.
	groups := make(map[string][]inflationWindow)
	var order []string
	for _, w := range windows {
		id := results[w.resultIdxs[0]].CompoundID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], w)
	}
	var merged []inflationWindow
	for _, id := range order {
		merged = append(merged, mergeWindows(groups[id], 3*radius)...)
	}

	for _, w := range merged {
		r := results[w.resultIdxs[0]]
		compound, ok := compounds[r.CompoundID]
		if !ok {
			continue
		}

		size := int64(len(compound.CompoundBody))
		if reader != nil {
			if s, err := reader.Stat(ctx, compound.Path, compound.MirrorKey); err == nil && s > 0 {
				size = s
			}
		}
		start := int64(w.start)
		end := int64(w.end)
		if end > size {
			end = size
		}
		if start < 0 {
			start = 0
		}
		if start >= end {
			for _, idx := range w.resultIdxs {
				dropped[idx] = struct{}{}
			}
			continue
		}

		var content string
		bytes, err := readFromSource(ctx, reader, compound, notebookRoot, start, end-start)
		if err == nil {
			content = string(bytes)
		} else {
			stageErrs = append(stageErrs, StageError{Stage: "inflate", Code: errors.CodeSourceUnavailable.String(), Message: err.Error()})
			content = sliceCompoundBody(compound.CompoundBody, int(start), int(end))
		}

		trimmed := trimPartialWords(content, start == 0, end == size)
		if strings.TrimSpace(trimmed) == "" {
			for _, idx := range w.resultIdxs {
				dropped[idx] = struct{}{}
			}
			continue
		}

		for _, idx := range w.resultIdxs {
			results[idx].Content = "..." + trimmed + "..."
			results[idx].IsInflated = true
		}
	}

	if len(dropped) == 0 {
		return results, stageErrs
	}
	kept := make([]Result, 0, len(results))
	for i, r := range results {
		if _, ok := dropped[i]; ok {
			continue
		}
		kept = append(kept, r)
	}
	return kept, stageErrs
}

func readFromSource(ctx context.Context, reader memory.SourceReader, compound memory.Compound, notebookRoot string, start, length int64) ([]byte, error) {
	if reader == nil {
		return nil, errors.New(errors.CodeSourceUnavailable, "no source reader configured")
	}
	path := compound.Path
	return reader.ReadRange(ctx, path, compound.MirrorKey, int(start), int(length))
}

func sliceCompoundBody(body string, start, end int) string {
	b := []byte(body)
	if start < 0 {
		start = 0
	}
	if end > len(b) {
		end = len(b)
	}
	if start >= end {
		return ""
	}
	return string(b[start:end])
}

// mergeWindows sorts windows by start offset and merges adjacent ones
// whose combined width stays within maxWindowSize, per §4.7.
func mergeWindows(windows []inflationWindow, maxWindowSize int) []inflationWindow {
	if len(windows) == 0 {
		return nil
	}
	sorted := make([]inflationWindow, len(windows))
	copy(sorted, windows)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].start < sorted[j-1].start; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	merged := []inflationWindow{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if w.start <= last.end {
			candidateEnd := last.end
			if w.end > candidateEnd {
				candidateEnd = w.end
			}
			if candidateEnd-last.start <= maxWindowSize {
				last.end = candidateEnd
				last.resultIdxs = append(last.resultIdxs, w.resultIdxs...)
				continue
			}
		}
		merged = append(merged, w)
	}
	return merged
}

// trimPartialWords drops partial words at the boundaries that are not
// already the genuine start/end of the source, per §4.7 step 6: "if the
// window does not begin at byte 0" (and symmetrically at the tail). atStart
// and atEnd report whether the window's clamped start/end already coincide
// with byte 0 / the source's size; when true, that side holds the real
// edge of the file, not a radius cut through the middle of a word, so it is
// left untouched.
func trimPartialWords(content string, atStart, atEnd bool) string {
	b := []byte(content)
	if len(b) == 0 {
		return ""
	}

	headCut := 0
	if !atStart {
		headLimit := boundaryTrimWindow
		if headLimit > len(b) {
			headLimit = len(b)
		}
		for i := 0; i < headLimit; i++ {
			if isSpaceByte(b[i]) {
				headCut = i + 1
				break
			}
		}
	}

	tailCut := len(b)
	if !atEnd {
		tailLimit := len(b) - boundaryTrimWindow
		if tailLimit < headCut {
			tailLimit = headCut
		}
		for i := len(b) - 1; i >= tailLimit; i-- {
			if isSpaceByte(b[i]) {
				tailCut = i
				break
			}
		}
	}

	if headCut >= tailCut {
		return ""
	}
	return string(b[headCut:tailCut])
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

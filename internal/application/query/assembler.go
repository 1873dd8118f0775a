package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RSBalchII/anchor/internal/domain/memory"
)

// packFraction is the fraction of max_chars assembly packs up to, per §4.8.
const packFraction = 0.95

// primaryPoolFraction is the share of max_chars reserved for direct-term
// results; the remainder goes to associative results.
const primaryPoolFraction = 0.70

// Assemble scores, sorts, and greedily packs results into the final
// context string under the character budget, per §4.8.
func Assemble(results []Result, maxChars int, provenanceFilter string, scopeTags map[string]struct{}, entityPairs [][2]string, hideYearsInTags bool) Response {
	scored := make([]Result, len(results))
	copy(scored, results)
	for i := range scored {
		scored[i].Score = adjustedScore(scored[i], provenanceFilter, scopeTags, entityPairs)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	budget := int(float64(maxChars) * packFraction)
	packed, metadata := pack(scored, budget)

	if hideYearsInTags {
		for i := range packed {
			packed[i].Tags = filterYearTags(packed[i].Tags)
		}
	}

	var sb strings.Builder
	for i, r := range packed {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(formatHeader(r))
		sb.WriteString("\n")
		sb.WriteString(r.Content)
	}

	metadata.TokenBudget = maxChars
	return Response{
		Context:  sb.String(),
		Results:  packed,
		Metadata: metadata,
	}
}

func adjustedScore(r Result, provenanceFilter string, scopeTags map[string]struct{}, entityPairs [][2]string) float64 {
	score := r.Score
	if score == 0 {
		score = 1.0
	}

	score *= provenanceMultiplier(r.Provenance, provenanceFilter)
	score *= typeMultiplier(r.Type)

	for _, t := range r.Tags {
		if _, ok := scopeTags[t]; ok {
			score *= 1.5
			break
		}
	}

	lowerContent := strings.ToLower(r.Content)
	for _, pair := range entityPairs {
		if strings.Contains(lowerContent, strings.ToLower(pair[0])) && strings.Contains(lowerContent, strings.ToLower(pair[1])) {
			score *= 2.0
			break
		}
	}

	return score
}

func provenanceMultiplier(resultProvenance memory.Provenance, filter string) float64 {
	switch filter {
	case "internal":
		if resultProvenance == memory.ProvenanceInternal {
			return 3.0
		}
		return 0.5
	case "external":
		if resultProvenance == memory.ProvenanceExternal {
			return 1.5
		}
		return 0.5
	case "all", "":
		if resultProvenance == memory.ProvenanceInternal {
			return 2.0
		}
		return 1.0
	default:
		return 1.0
	}
}

func typeMultiplier(t memory.MoleculeType) float64 {
	switch t {
	case memory.MoleculeTypeProse:
		return 1.0
	case memory.MoleculeTypeCode:
		return 0.8
	case memory.MoleculeTypeData:
		return 0.6
	case memory.MoleculeTypeLog:
		return 0.4
	default:
		return 1.0
	}
}

func pack(sorted []Result, budget int) ([]Result, Metadata) {
	packed := make([]Result, 0, len(sorted))
	used := 0
	for _, r := range sorted {
		if used+len(r.Content) > budget && used > 0 {
			continue
		}
		packed = append(packed, r)
		used += len(r.Content)
		if used >= budget {
			break
		}
	}
	return packed, Metadata{}
}

func formatHeader(r Result) string {
	return fmt.Sprintf("[%s] %s (%s):", r.Provenance, r.Source, r.Timestamp.Format("2006-01-02"))
}

func filterYearTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if len(t) == 4 && isAllDigits(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SplitBudget reserves primaryPoolFraction of maxChars for direct-term
// results and the remainder for associative results, splitting evenly
// across terms within each pool. It returns only these per-term shares;
// budget left unused in one pool is not moved to the other.
func SplitBudget(maxChars int, directTermCount, associativeTermCount int) (primaryPerTerm, associativePerTerm int) {
	primaryBudget := int(float64(maxChars) * primaryPoolFraction)
	associativeBudget := maxChars - primaryBudget

	if directTermCount > 0 {
		primaryPerTerm = primaryBudget / directTermCount
	}
	if associativeTermCount > 0 {
		associativePerTerm = associativeBudget / associativeTermCount
	}
	return primaryPerTerm, associativePerTerm
}

package query

import "github.com/RSBalchII/anchor/internal/domain/memory"

// Deduplicate reduces near-duplicate results while preserving discovered
// metadata, per §4.6. Candidates whose signature is the sentinel "no
// fingerprint" are never merged. Output retains original score ordering of
// the first occurrence of each accepted result.
func Deduplicate(candidates []Result, nearThreshold int) []Result {
	unique := make([]Result, 0, len(candidates))
	signatures := make([]string, 0, len(candidates))

	for _, c := range candidates {
		if c.Frequency == 0 {
			c.Frequency = 1
		}

		if c.MolecularSignature == "" || c.MolecularSignature == memory.NoFingerprint {
			unique = append(unique, c)
			signatures = append(signatures, memory.NoFingerprint)
			continue
		}

		bestIdx := -1
		bestDist := 65
		for i, s := range signatures {
			if s == memory.NoFingerprint {
				continue
			}
			d := memory.HammingDistance(s, c.MolecularSignature)
			if d < bestDist {
				bestDist = d
				bestIdx = i
			}
		}

		if bestIdx >= 0 && bestDist < nearThreshold {
			mergeInto(&unique[bestIdx], c)
			continue
		}

		unique = append(unique, c)
		signatures = append(signatures, c.MolecularSignature)
	}

	return unique
}

// mergeInto folds c's tags, buckets, and a frequency increment into target,
// preserving target's insertion order for the union.
func mergeInto(target *Result, c Result) {
	target.Tags = unionPreserveOrder(target.Tags, c.Tags)
	target.Buckets = unionPreserveOrder(target.Buckets, c.Buckets)
	target.Frequency++
}

func unionPreserveOrder(base, additions []string) []string {
	seen := make(map[string]struct{}, len(base)+len(additions))
	out := make([]string, 0, len(base)+len(additions))
	for _, v := range base {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, v := range additions {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

package query

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParsedQuery is the deterministic parser's output, per §4.3.
type ParsedQuery struct {
	Sanitized    string
	Tokens       []string
	TemporalTags map[string]struct{}
	ScopeTags    map[string]struct{}
	ScopeBuckets map[string]struct{}
	Intent       Intent
	EntityPairs  [][2]string
}

// Intent is the inferred primary intent of a query.
type Intent string

const (
	IntentEmotional  Intent = "emotional"
	IntentTemporal   Intent = "temporal"
	IntentRelational Intent = "relational"
	IntentCreative   Intent = "creative"
	IntentFactual    Intent = "factual"
)

var yearRangeRe = regexp.MustCompile(`(?i)\b(?:from|between)\s+(\d{4})\s+(?:to|and)\s+(\d{4})\b`)
var relativeTimeRe = regexp.MustCompile(`(?i)\blast\s+(\d+)\s+(day|days|month|months|year|years)\b`)
var bareYearRe = regexp.MustCompile(`\b(20[2-3]\d)\b`)

var conversationalPatterns = []struct {
	re    *regexp.Regexp
	group int
}{
	{regexp.MustCompile(`(?i)^what is the (?:latest|recent) (.+)$`), 1},
	{regexp.MustCompile(`(?i)^tell me about (.+)$`), 1},
	{regexp.MustCompile(`(?i)^what do (?:i|you) know about (.+)$`), 1},
	{regexp.MustCompile(`(?i)^(?:do you remember|remind me about) (.+)$`), 1},
}

var emotionalLexicon = []string{"feel", "feeling", "felt", "sad", "happy", "angry", "anxious", "worried", "love", "hurt", "afraid", "excited"}
var temporalLexicon = []string{"when", "last", "ago", "recent", "recently", "yesterday", "year", "month", "date"}
var relationalLexicon = []string{"with", "met", "told", "said", "relationship", "friend", "partner", "family"}
var creativeLexicon = []string{"idea", "imagine", "dream", "sketch", "design", "invent", "brainstorm"}

var entityIndicators = map[string]struct{}{
	"and": {}, "with": {}, "met": {}, "told": {}, "said": {}, "visited": {}, "called": {}, "texted": {}, "about": {},
}

// ParserOptions holds the configurable sets the parser consults; callers
// build these once from EngineConfig and reuse across requests. Now is the
// reference clock for resolving relative expressions like "last 2 years"
// into absolute year tags; it defaults to time.Now, and tests pin it.
type ParserOptions struct {
	SemanticCategories map[string]struct{} // closed set, e.g. {relationship, narrative, ...}
	BucketAllowList    map[string]struct{}
	POSWhitelist       map[string]struct{}
	Now                func() time.Time
}

// NewParserOptions builds ParserOptions from the configuration slices.
func NewParserOptions(semanticCategories, bucketAllowList, posWhitelist []string) ParserOptions {
	return ParserOptions{
		SemanticCategories: toSet(semanticCategories),
		BucketAllowList:    toSet(bucketAllowList),
		POSWhitelist:       toSet(posWhitelist),
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[strings.ToLower(it)] = struct{}{}
	}
	return set
}

// Parse turns a free-form query into a ParsedQuery, following the
// deterministic pipeline of §4.3. No LLM call of any kind is made.
func Parse(rawQuery string, explicitTags []string, opts ParserOptions) ParsedQuery {
	pq := ParsedQuery{
		TemporalTags: map[string]struct{}{},
		ScopeTags:    map[string]struct{}{},
		ScopeBuckets: map[string]struct{}{},
	}

	for _, t := range explicitTags {
		pq.ScopeTags[strings.ToLower(t)] = struct{}{}
	}

	// 1. Hashtag extraction.
	words := strings.Fields(rawQuery)
	var nonHashtagWords []string
	for _, w := range words {
		if strings.HasPrefix(w, "#") {
			tag := strings.ToLower(strings.TrimPrefix(w, "#"))
			if tag == "" {
				continue
			}
			if _, ok := opts.SemanticCategories[tag]; ok {
				pq.ScopeTags[tag] = struct{}{}
			} else if _, ok := opts.BucketAllowList[tag]; ok {
				pq.ScopeBuckets[tag] = struct{}{}
			} else {
				pq.ScopeTags[tag] = struct{}{}
			}
			continue
		}
		nonHashtagWords = append(nonHashtagWords, w)
	}
	remaining := strings.Join(nonHashtagWords, " ")

	// 2. Temporal extraction.
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	extractTemporal(remaining, pq.TemporalTags, now())

	// 3. POS filtering (approximated deterministically: keep alphanumeric
	// tokens (letters and digits) of length > 2 plus the configurable whitelist; this stands in
	// for a local POS tagger while remaining fully deterministic).
	tokens := posFilter(remaining, opts.POSWhitelist)

	// 4. Sanitize for FTS.
	sanitized := sanitizeForFTS(remaining)

	// 5. Conversational expansion.
	expanded := expandConversational(sanitized)
	if expanded != "" && expanded != sanitized {
		sanitized = expanded
	}

	if sanitized == "" {
		sanitized = strings.ToLower(strings.TrimSpace(rawQuery))
	}

	pq.Sanitized = sanitized
	pq.Tokens = tokens

	// 6. Intent scoring.
	pq.Intent = scoreIntent(remaining)

	// 7. Entity pairs.
	pq.EntityPairs = extractEntityPairs(tokens)

	return pq
}

func extractTemporal(text string, temporalTags map[string]struct{}, now time.Time) {
	for _, m := range yearRangeRe.FindAllStringSubmatch(text, -1) {
		a, errA := strconv.Atoi(m[1])
		b, errB := strconv.Atoi(m[2])
		if errA != nil || errB != nil {
			continue
		}
		if a > b {
			a, b = b, a
		}
		for y := a; y <= b; y++ {
			temporalTags[strconv.Itoa(y)] = struct{}{}
		}
	}

	// Relative expressions ("last 2 years") resolve against the reference
	// clock: every year the window [now-N units, now] touches is implicated.
	for _, m := range relativeTimeRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		var from time.Time
		switch strings.TrimSuffix(strings.ToLower(m[2]), "s") {
		case "day":
			from = now.AddDate(0, 0, -n)
		case "month":
			from = now.AddDate(0, -n, 0)
		case "year":
			from = now.AddDate(-n, 0, 0)
		default:
			continue
		}
		for y := from.Year(); y <= now.Year(); y++ {
			temporalTags[strconv.Itoa(y)] = struct{}{}
		}
	}

	for _, m := range bareYearRe.FindAllString(text, -1) {
		temporalTags[m] = struct{}{}
	}
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

func sanitizeForFTS(text string) string {
	lower := strings.ToLower(text)
	replaced := nonAlnumRe.ReplaceAllString(lower, " ")
	return strings.Join(strings.Fields(replaced), " ")
}

func posFilter(text string, whitelist map[string]struct{}) []string {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			tokens = append(tokens, f)
			continue
		}
		if _, ok := whitelist[f]; ok {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func expandConversational(sanitized string) string {
	for _, p := range conversationalPatterns {
		if m := p.re.FindStringSubmatch(sanitized); m != nil {
			return strings.TrimSpace(m[p.group])
		}
	}
	return sanitized
}

func scoreIntent(text string) Intent {
	lower := strings.ToLower(text)
	scores := map[Intent]int{
		IntentEmotional:  countMarkers(lower, emotionalLexicon),
		IntentTemporal:   countMarkers(lower, temporalLexicon),
		IntentRelational: countMarkers(lower, relationalLexicon),
		IntentCreative:   countMarkers(lower, creativeLexicon),
		IntentFactual:    1,
	}
	order := []Intent{IntentEmotional, IntentTemporal, IntentRelational, IntentCreative, IntentFactual}
	best := IntentFactual
	bestScore := -1
	for _, intent := range order {
		if scores[intent] > bestScore {
			bestScore = scores[intent]
			best = intent
		}
	}
	return best
}

func countMarkers(text string, lexicon []string) int {
	count := 0
	for _, w := range lexicon {
		count += strings.Count(text, w)
	}
	return count
}

func extractEntityPairs(tokens []string) [][2]string {
	var pairs [][2]string
	for i := 1; i < len(tokens)-1; i++ {
		if _, ok := entityIndicators[tokens[i]]; ok {
			x, y := tokens[i-1], tokens[i+1]
			pairs = append(pairs, [2]string{x, y}, [2]string{y, x})
		}
	}
	return pairs
}

// SortedSet returns the set's members in deterministic ascending order, for
// stable test assertions and log output.
func SortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

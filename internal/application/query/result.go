// Package query implements Anchor's retrieval pipeline: deterministic query
// parsing, concurrent anchor search, physics-based tag walking,
// near-duplicate deduplication, byte-accurate context inflation, and
// budget-constrained context assembly.
package query

import (
	"time"

	"github.com/RSBalchII/anchor/internal/domain/memory"
)

// NoResultsSentinel is the fixed context string returned when a search
// produces zero results, per §7.
const NoResultsSentinel = "No results found."

// ConnectionType labels how a Result was discovered, for provenance rather
// than ranking.
type ConnectionType string

const (
	ConnectionDirectFTS        ConnectionType = "direct_fts"
	ConnectionDirectSimhash    ConnectionType = "direct_simhash"
	ConnectionTemporalNeighbor ConnectionType = "temporal_neighbor"
	ConnectionTagWalkNeighbor  ConnectionType = "tag_walk_neighbor"
	ConnectionSerendipity      ConnectionType = "serendipity"
)

// Result is a single item in the assembled search response.
type Result struct {
	ID         string
	Content    string
	Source     string
	Timestamp  time.Time
	Buckets    []string
	Tags       []string
	Epochs     []string
	Provenance memory.Provenance
	Score      float64

	Sequence           *int
	MolecularSignature string
	Frequency          int

	CompoundID string
	StartByte  int
	EndByte    int
	Type       memory.MoleculeType

	NumericValue *float64
	NumericUnit  string

	IsInflated bool

	SemanticCategories []string
	RelatedEntities    []string

	ConnectionType ConnectionType
	BestAnchorID   string
}

// Metadata carries diagnostic information about how a search was executed.
type Metadata struct {
	TokenBudget   int
	HitsPerTerm   map[string]int
	ElasticRadius int
	StageErrors   []StageError
	UsedFuzzy     bool
}

// StageError records a non-fatal failure in one pipeline stage. The
// pipeline continues with whatever partial results that stage produced.
type StageError struct {
	Stage   string
	Code    string
	Message string
}

// Response is the logical search entry point's output, per §6.1.
type Response struct {
	Context  string
	Results  []Result
	Metadata Metadata
}

// Request is the logical search entry point's input, per §6.1.
type Request struct {
	Query        string
	Buckets      []string
	MaxChars     int
	Provenance   string // "internal" | "external" | "quarantine" | "all"
	ExplicitTags []string
	FilterType   memory.MoleculeType
	FilterMinVal *float64
	FilterMaxVal *float64
}

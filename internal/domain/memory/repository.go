package memory

import (
	"context"
	"time"
)

// AtomPositionHit is a single (compound, byte offset) match for an atom
// label, returned by atom-position radial lookups (Anchor Search Strategy A).
type AtomPositionHit struct {
	CompoundID string
	ByteOffset int
	AtomLabel  string
	Compound   Compound
}

// MoleculeFTSHit is a full-text-search match over molecule content,
// returned by Anchor Search Strategy B.
type MoleculeFTSHit struct {
	Molecule Molecule
	Compound Compound
	Rank     float64
}

// MoleculeFilter narrows a molecule FTS query inside the Store, rather than
// post-filtering rows in the application layer. An empty Provenance (or
// "all") and an empty Buckets slice apply no filter.
type MoleculeFilter struct {
	Provenance string
	Buckets    []string
}

// TagWalkCandidate is a scored candidate surfaced by the Physics Tag-Walker.
// Beyond the gravity score and the anchor it was pulled toward, it carries
// the candidate atom's own record and the per-pair statistics of the winning
// anchor so the caller can label the connection without a second query.
// CompoundID/ByteOffset are a representative atom position for the
// candidate, when one exists, so tag-walk neighbors can be inflated like any
// other result.
type TagWalkCandidate struct {
	AtomID             string
	Label              string
	Content            string
	Tags               []string
	Buckets            []string
	Timestamp          time.Time
	Provenance         Provenance
	MolecularSignature string

	CompoundID string
	ByteOffset int

	GravityScore  float64
	BestAnchorID  string
	SharedTags    int
	HammingToBest int
	DeltaHours    float64
}

// Store is the persistence contract the query pipeline depends on. It is
// implemented by the PostgreSQL-backed adapter in
// internal/infrastructure/database/postgres; tests may substitute an
// in-memory fake.
//
// Every method that can fail mid-operation returns an error wrapping one of
// pkg/errors' store-stage codes; callers treat a failed stage as empty
// rather than aborting the whole pipeline, except for store-unreachable
// errors raised during initial connection, which are fatal.
type Store interface {
	// FindCompound returns the Compound with the given id.
	FindCompound(ctx context.Context, compoundID string) (Compound, error)

	// FindAtomsByLabel returns every Atom whose label matches one of the
	// given labels (case-insensitive), used by Engram lookups and direct
	// hashtag scope resolution.
	FindAtomsByLabel(ctx context.Context, labels []string) ([]Atom, error)

	// FindAtomPositions performs the radial atom-position scan of Anchor
	// Search Strategy A: for each label, locate its occurrences and the
	// owning compound.
	FindAtomPositions(ctx context.Context, labels []string, limit int) ([]AtomPositionHit, error)

	// SearchMolecules performs the full-text search of Anchor Search
	// Strategy B over molecule content, using 'simple' tsvector/ts_rank.
	// tsQuery is a ready-built to_tsquery expression — the caller owns the
	// AND/OR term algebra (and the decision to retry with OR after an
	// empty AND pass); the Store only binds it. The filter's provenance
	// and bucket constraints are applied inside the query.
	SearchMolecules(ctx context.Context, tsQuery string, filter MoleculeFilter, limit int) ([]MoleculeFTSHit, error)

	// WalkTags executes the Physics Tag-Walker's Unified Field Equation as
	// a single relational query seeded from anchorIDs, returning at most
	// anchorCap candidates above the gravity-score floor.
	WalkTags(ctx context.Context, anchorIDs []string, dampingAlpha, timeLambda float64, anchorCap int) ([]TagWalkCandidate, error)

	// GetEngram returns the atom ids bound to keyHash, or ok=false if no
	// engram exists for that key.
	GetEngram(ctx context.Context, keyHash string) (atomIDs []string, ok bool, err error)

	// PutEngram writes (or overwrites) the atom-id binding for keyHash.
	PutEngram(ctx context.Context, keyHash string, atomIDs []string) error

	// HealthCheck verifies the Store is reachable.
	HealthCheck(ctx context.Context) error
}

// EventPublisher publishes best-effort domain events. A failure to publish
// must never be surfaced as a pipeline failure; implementations log and
// swallow.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// SourceReader is the filesystem/mirror contract: byte-exact positional
// reads against either the notebook root or the mirror root, per §6.3.
type SourceReader interface {
	// ReadRange returns length bytes starting at offset from the source
	// identified by path (notebook-root relative or absolute) or, when
	// mirrorKey is non-empty, from the mirror root instead.
	ReadRange(ctx context.Context, path, mirrorKey string, offset, length int) ([]byte, error)

	// Stat returns the size in bytes of the source identified by path or
	// mirrorKey.
	Stat(ctx context.Context, path, mirrorKey string) (size int64, err error)
}

// Package repositories implements the memory.Store contract against
// PostgreSQL via pgx/v5, the direct continuation of the teacher's own
// connection-pool and migration packages (internal/infrastructure/database/postgres).
package repositories

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RSBalchII/anchor/internal/domain/memory"
	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
	"github.com/RSBalchII/anchor/pkg/errors"
)

// Store implements memory.Store over a pgxpool.Pool.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewStore wraps an already-connected pool (see postgres.NewConnectionPool)
// as a memory.Store.
func NewStore(pool *pgxpool.Pool, logger logging.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// HealthCheck verifies the Store is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	var result int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable, "store health check failed")
	}
	return nil
}

// FindCompound returns the Compound with the given id.
func (s *Store) FindCompound(ctx context.Context, compoundID string) (memory.Compound, error) {
	const query = `
		SELECT compound_id, path, provenance, timestamp, compound_body, molecular_signature, mirror_key
		FROM compounds
		WHERE compound_id = $1`

	var c memory.Compound
	var provenance string
	row := s.pool.QueryRow(ctx, query, compoundID)
	err := row.Scan(&c.CompoundID, &c.Path, &provenance, &c.Timestamp, &c.CompoundBody, &c.MolecularSignature, &c.MirrorKey)
	if err != nil {
		if err == pgx.ErrNoRows {
			return memory.Compound{}, errors.NotFound("compound not found: " + compoundID)
		}
		return memory.Compound{}, errors.Wrap(err, errors.CodeStoreQueryFailed, "find compound failed")
	}
	c.Provenance = memory.Provenance(provenance)
	return c, nil
}

// FindAtomsByLabel returns every Atom whose label matches one of the given
// labels (case-insensitive).
func (s *Store) FindAtomsByLabel(ctx context.Context, labels []string) ([]memory.Atom, error) {
	if len(labels) == 0 {
		return nil, nil
	}

	const query = `
		SELECT atom_id, label, type, weight, content, tags, buckets, timestamp, provenance, molecular_signature
		FROM atoms
		WHERE lower(label) = ANY($1)`

	rows, err := s.pool.Query(ctx, query, lowerAll(labels))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "find atoms by label failed")
	}
	defer rows.Close()

	var atoms []memory.Atom
	for rows.Next() {
		var a memory.Atom
		var atomType, provenance string
		if err := rows.Scan(&a.AtomID, &a.Label, &atomType, &a.Weight, &a.Content, &a.Tags, &a.Buckets, &a.Timestamp, &provenance, &a.MolecularSignature); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "scan atom row failed")
		}
		a.Type = memory.AtomType(atomType)
		a.Provenance = memory.Provenance(provenance)
		atoms = append(atoms, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "iterate atom rows failed")
	}
	return atoms, nil
}

// FindAtomPositions performs the radial atom-position scan of Anchor Search
// Strategy A: for each label, a per-term-capped lookup of its occurrences
// and owning compound, per §4.4.
func (s *Store) FindAtomPositions(ctx context.Context, labels []string, limit int) ([]memory.AtomPositionHit, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	const query = `
		SELECT ap.compound_id, ap.byte_offset, ap.atom_label,
		       c.path, c.provenance, c.timestamp, c.compound_body, c.molecular_signature, c.mirror_key
		FROM unnest($1::text[]) AS term(label)
		CROSS JOIN LATERAL (
			SELECT ap2.compound_id, ap2.byte_offset, ap2.atom_label
			FROM atom_positions ap2
			WHERE lower(ap2.atom_label) = lower(term.label)
			   OR lower(ap2.atom_label) = ('#' || lower(term.label))
			   OR lower(ltrim(ap2.atom_label, '#')) = lower(term.label)
			LIMIT $2
		) ap
		JOIN compounds c ON c.compound_id = ap.compound_id`

	rows, err := s.pool.Query(ctx, query, labels, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "atom position radial scan failed")
	}
	defer rows.Close()

	var hits []memory.AtomPositionHit
	for rows.Next() {
		var h memory.AtomPositionHit
		var provenance string
		if err := rows.Scan(&h.CompoundID, &h.ByteOffset, &h.AtomLabel,
			&h.Compound.Path, &provenance, &h.Compound.Timestamp, &h.Compound.CompoundBody,
			&h.Compound.MolecularSignature, &h.Compound.MirrorKey); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "scan atom position row failed")
		}
		h.Compound.CompoundID = h.CompoundID
		h.Compound.Provenance = memory.Provenance(provenance)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "iterate atom position rows failed")
	}
	return hits, nil
}

// SearchMolecules performs the full-text search of Anchor Search Strategy B
// over molecule content. The caller supplies the finished to_tsquery
// expression (query.BuildFTSExpression owns the AND/OR algebra); provenance
// and bucket constraints are applied inside the query rather than
// post-filtered in Go, per §4.4.
func (s *Store) SearchMolecules(ctx context.Context, tsQuery string, filter memory.MoleculeFilter, limit int) ([]memory.MoleculeFTSHit, error) {
	if strings.TrimSpace(tsQuery) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	provenance := filter.Provenance
	if provenance == "all" {
		provenance = ""
	}

	const query = `
		SELECT m.molecule_id, m.compound_id, m.content, m.sequence, m.start_byte, m.end_byte,
		       m.type, m.numeric_value, m.numeric_unit, m.molecular_signature,
		       c.path, c.provenance, c.timestamp, c.compound_body, c.molecular_signature, c.mirror_key,
		       ts_rank(to_tsvector('simple', m.content), to_tsquery('simple', $1)) AS rank
		FROM molecules m
		JOIN compounds c ON c.compound_id = m.compound_id
		WHERE to_tsvector('simple', m.content) @@ to_tsquery('simple', $1)
		  AND ($2 = '' OR c.provenance = $2)
		  AND (cardinality($3::text[]) = 0 OR EXISTS (
			SELECT 1
			FROM atom_positions ap
			JOIN atoms a ON lower(a.label) = lower(ap.atom_label)
			WHERE ap.compound_id = m.compound_id
			  AND EXISTS (SELECT 1 FROM unnest(a.buckets) AS b WHERE b = ANY($3))
		  ))
		ORDER BY rank DESC
		LIMIT $4`

	rows, err := s.pool.Query(ctx, query, tsQuery, provenance, filter.Buckets, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "molecule FTS search failed")
	}
	defer rows.Close()

	var hits []memory.MoleculeFTSHit
	for rows.Next() {
		var h memory.MoleculeFTSHit
		var moleculeType, provenance string
		if err := rows.Scan(
			&h.Molecule.MoleculeID, &h.Molecule.CompoundID, &h.Molecule.Content, &h.Molecule.Sequence,
			&h.Molecule.StartByte, &h.Molecule.EndByte, &moleculeType, &h.Molecule.NumericValue,
			&h.Molecule.NumericUnit, &h.Molecule.MolecularSignature,
			&h.Compound.Path, &provenance, &h.Compound.Timestamp, &h.Compound.CompoundBody,
			&h.Compound.MolecularSignature, &h.Compound.MirrorKey, &h.Rank,
		); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "scan molecule FTS row failed")
		}
		h.Molecule.Type = memory.MoleculeType(moleculeType)
		h.Compound.CompoundID = h.Molecule.CompoundID
		h.Compound.Provenance = memory.Provenance(provenance)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "iterate molecule FTS rows failed")
	}
	return hits, nil
}

// WalkTags executes the Physics Tag-Walker's Unified Field Equation as a
// single relational query seeded from anchorIDs, per §4.5.
func (s *Store) WalkTags(ctx context.Context, anchorIDs []string, dampingAlpha, timeLambda float64, anchorCap int) ([]memory.TagWalkCandidate, error) {
	if len(anchorIDs) == 0 {
		return nil, nil
	}
	if anchorCap <= 0 {
		anchorCap = 50
	}

	const query = `
		WITH anchor_stats AS (
			SELECT atom_id, timestamp AS anchor_ts, molecular_signature AS anchor_hash, tags AS anchor_tags_arr
			FROM atoms
			WHERE atom_id = ANY($1)
		),
		anchor_tag_pool AS (
			SELECT DISTINCT unnest(anchor_tags_arr) AS tag FROM anchor_stats
		),
		candidates AS (
			SELECT DISTINCT a.atom_id, a.label, a.content, a.tags, a.buckets, a.timestamp, a.provenance, a.molecular_signature
			FROM atoms a
			WHERE NOT (a.atom_id = ANY($1))
			  AND EXISTS (
				SELECT 1 FROM unnest(a.tags) t WHERE t IN (SELECT tag FROM anchor_tag_pool)
			  )
		),
		pairs AS (
			SELECT
				c.atom_id AS candidate_id,
				st.atom_id AS anchor_id,
				(SELECT count(DISTINCT t) FROM unnest(c.tags) t WHERE t = ANY(st.anchor_tags_arr)) AS shared_tags,
				anchor_hamming_distance(st.anchor_hash, c.molecular_signature) AS hamming,
				abs(extract(epoch FROM (c.timestamp - st.anchor_ts))) / 3600.0 AS delta_hours,
				$2::float8 * exp(-$3::float8 * abs(extract(epoch FROM (c.timestamp - st.anchor_ts))) / 3600.0)
					* (1 - anchor_hamming_distance(st.anchor_hash, c.molecular_signature)::float8 / 64.0) AS base_weight
			FROM candidates c
			CROSS JOIN anchor_stats st
		),
		scored AS (
			SELECT candidate_id, anchor_id, shared_tags, hamming, delta_hours, shared_tags * base_weight AS gravity
			FROM pairs
			WHERE shared_tags > 0
		),
		ranked AS (
			SELECT DISTINCT ON (candidate_id)
				candidate_id, anchor_id AS best_anchor_id, shared_tags, hamming, delta_hours, gravity AS gravity_score
			FROM scored
			ORDER BY candidate_id, gravity DESC
		)
		SELECT r.candidate_id, c.label, c.content, c.tags, c.buckets, c.timestamp, c.provenance, c.molecular_signature,
		       COALESCE(ap.compound_id, ''), COALESCE(ap.byte_offset, 0),
		       r.gravity_score, r.best_anchor_id, r.shared_tags, r.hamming, r.delta_hours
		FROM ranked r
		JOIN candidates c ON c.atom_id = r.candidate_id
		LEFT JOIN LATERAL (
			SELECT ap2.compound_id, ap2.byte_offset
			FROM atom_positions ap2
			WHERE lower(ap2.atom_label) = lower(c.label)
			ORDER BY ap2.compound_id, ap2.byte_offset
			LIMIT 1
		) ap ON true
		WHERE r.gravity_score > 0.1
		ORDER BY r.gravity_score DESC
		LIMIT $4`

	rows, err := s.pool.Query(ctx, query, anchorIDs, dampingAlpha, timeLambda, anchorCap)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "tag-walk query failed")
	}
	defer rows.Close()

	var candidates []memory.TagWalkCandidate
	for rows.Next() {
		var c memory.TagWalkCandidate
		var provenance string
		if err := rows.Scan(
			&c.AtomID, &c.Label, &c.Content, &c.Tags, &c.Buckets, &c.Timestamp, &provenance, &c.MolecularSignature,
			&c.CompoundID, &c.ByteOffset,
			&c.GravityScore, &c.BestAnchorID, &c.SharedTags, &c.HammingToBest, &c.DeltaHours,
		); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "scan tag-walk row failed")
		}
		c.Provenance = memory.Provenance(provenance)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreQueryFailed, "iterate tag-walk rows failed")
	}
	return candidates, nil
}

// GetEngram returns the atom ids bound to keyHash, or ok=false if absent.
func (s *Store) GetEngram(ctx context.Context, keyHash string) ([]string, bool, error) {
	const query = `SELECT atom_ids FROM engrams WHERE key_hash = $1`

	var raw []byte
	err := s.pool.QueryRow(ctx, query, keyHash).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, errors.CodeStoreQueryFailed, "get engram failed")
	}

	var atomIDs []string
	if err := json.Unmarshal(raw, &atomIDs); err != nil {
		return nil, false, errors.Wrap(err, errors.CodeSerialization, "engram atom_ids decode failed")
	}
	return atomIDs, true, nil
}

// PutEngram writes (or overwrites) the atom-id binding for keyHash.
func (s *Store) PutEngram(ctx context.Context, keyHash string, atomIDs []string) error {
	raw, err := json.Marshal(atomIDs)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "engram atom_ids encode failed")
	}

	const query = `
		INSERT INTO engrams (key_hash, atom_ids)
		VALUES ($1, $2)
		ON CONFLICT (key_hash) DO UPDATE SET atom_ids = EXCLUDED.atom_ids`

	if _, err := s.pool.Exec(ctx, query, keyHash, raw); err != nil {
		return errors.Wrap(err, errors.CodeStoreQueryFailed, "put engram failed")
	}
	return nil
}

func lowerAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, v := range ss {
		out[i] = strings.ToLower(v)
	}
	return out
}

// Package memory defines Anchor's content-addressed memory model: the
// Compound/Molecule/Atom hierarchy the ingestion pipeline populates and the
// retrieval core reads, plus the Engram sidecar the retrieval core itself
// writes back.
package memory

import "time"

// Provenance classifies where a Compound originated.
type Provenance string

const (
	ProvenanceInternal   Provenance = "internal"
	ProvenanceExternal   Provenance = "external"
	ProvenanceQuarantine Provenance = "quarantine"
)

// MoleculeType classifies the kind of content a Molecule carries.
type MoleculeType string

const (
	MoleculeTypeProse MoleculeType = "prose"
	MoleculeTypeCode  MoleculeType = "code"
	MoleculeTypeData  MoleculeType = "data"
	MoleculeTypeLog   MoleculeType = "log"
)

// AtomType classifies what an Atom represents.
type AtomType string

const (
	AtomTypeConcept AtomType = "concept"
	AtomTypeEntity  AtomType = "entity"
	AtomTypeKeyword AtomType = "keyword"
	AtomTypeSystem  AtomType = "system"
)

// EdgeRelation names the relationship an Edge carries between two Atoms.
type EdgeRelation string

const (
	EdgeRelationParentOf    EdgeRelation = "parent_of"
	EdgeRelationTagCoOccurs EdgeRelation = "tag_co_occurs"
)

// Compound is the content+path-addressed unit of ingestion: one file (or
// file-like source) at one point in time.
type Compound struct {
	CompoundID         string
	Path               string
	Provenance         Provenance
	Timestamp          time.Time
	CompoundBody       string
	MolecularSignature string
	MirrorKey          string
}

// Molecule is a contiguous byte range within a Compound's body.
type Molecule struct {
	MoleculeID         string
	CompoundID         string
	Content            string
	Sequence           int
	StartByte          int
	EndByte            int
	Type               MoleculeType
	NumericValue       *float64
	NumericUnit        string
	MolecularSignature string
}

// Atom is a named concept, entity, keyword, or system marker that recurs
// across molecules.
type Atom struct {
	AtomID             string
	Label              string
	Type               AtomType
	Weight             float64
	Content            string
	Tags               []string
	Buckets            []string
	Timestamp          time.Time
	Provenance         Provenance
	MolecularSignature string
}

// AtomPosition anchors an Atom to a precise byte offset within a Compound.
type AtomPosition struct {
	CompoundID string
	ByteOffset int
	AtomLabel  string
}

// Edge is a weighted, possibly directed relationship between two Atoms.
type Edge struct {
	SourceID string
	TargetID string
	Relation EdgeRelation
	Weight   float64
}

// Engram is the lexical sidecar mapping a normalized phrase hash to the set
// of atom ids it has been bound to by past successful searches.
type Engram struct {
	KeyHash string
	AtomIDs []string
}

// HasEmptyByteRange reports whether the molecule's byte range is negative or
// empty (start < 0 or start >= end). The end offset is not checked against
// the body length.
func (m Molecule) HasEmptyByteRange() bool {
	return m.StartByte < 0 || m.StartByte >= m.EndByte
}

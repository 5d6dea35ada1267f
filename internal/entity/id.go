package entity

import (
	"crypto/sha256"
	"encoding/hex"
)

// idSeparator is the fixed, never-changed separator folded into the
// content-addressed hash. Changing it would silently change every
// entity_id ever derived, so it is not configurable.
const idSeparator = "\x1f"

// MakeEntityID derives the stable, content-addressed identifier of §4.1:
// a 128-bit (truncated SHA-256) hash over the UTF-8-normalized tuple
// (repositoryID, filePath, qualifiedName) joined with a fixed separator.
// Two extractions of unchanged text yield identical IDs; a collision is
// treated as a hard bug, never handled defensively.
func MakeEntityID(repositoryID, filePath, qualifiedName string) string {
	h := sha256.New()
	h.Write([]byte(repositoryID))
	h.Write([]byte(idSeparator))
	h.Write([]byte(filePath))
	h.Write([]byte(idSeparator))
	h.Write([]byte(qualifiedName))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// NewSourceReference constructs a SourceReference, the shape handlers emit
// while walking a syntax tree (§4.2).
func NewSourceReference(target string, refType RefType, loc Location) SourceReference {
	return SourceReference{Target: target, RefType: refType, Location: loc}
}

// NewCodeEntity builds a CodeEntity with its EntityID derived via
// MakeEntityID, so callers never hand-compute the ID themselves.
func NewCodeEntity(repositoryID, filePath, qualifiedName, name string, entityType EntityType, language Language) CodeEntity {
	return CodeEntity{
		EntityID:      MakeEntityID(repositoryID, filePath, qualifiedName),
		RepositoryID:  repositoryID,
		Name:          name,
		QualifiedName: qualifiedName,
		EntityType:    entityType,
		Language:      language,
		FilePath:      filePath,
		Visibility:    VisibilityNone,
	}
}

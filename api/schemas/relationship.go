package schemas

import (
	"time"
)

// RelationshipType defines the semantic link between two concepts.
type RelationshipType string

const (
	RelPrerequisite RelationshipType = "prerequisite"
	RelEnables      RelationshipType = "enables"
	RelRelated      RelationshipType = "related"
	RelSpecializes  RelationshipType = "specializes"
	RelGeneralizes  RelationshipType = "generalizes"
	RelEquivalent   RelationshipType = "equivalent"
	RelConflicts    RelationshipType = "conflicts"
	RelAppliesTo    RelationshipType = "applies_to"
)

// relationshipMultipliers weight an edge by how strongly its type binds the
// two concepts. Prerequisite and enablement edges carry full weight.
var relationshipMultipliers = map[RelationshipType]float64{
	RelPrerequisite: 1.0,
	RelEnables:      1.0,
	RelEquivalent:   0.9,
	RelSpecializes:  0.8,
	RelGeneralizes:  0.8,
	RelAppliesTo:    0.7,
	RelRelated:      0.6,
	RelConflicts:    0.4,
}

// relationshipInverses maps each type to its reverse-direction counterpart.
// Symmetric types map to themselves; applies_to has no inverse.
var relationshipInverses = map[RelationshipType]RelationshipType{
	RelPrerequisite: RelEnables,
	RelEnables:      RelPrerequisite,
	RelSpecializes:  RelGeneralizes,
	RelGeneralizes:  RelSpecializes,
	RelRelated:      RelRelated,
	RelEquivalent:   RelEquivalent,
	RelConflicts:    RelConflicts,
}

// Multiplier returns the type-specific weight factor. Unknown types weigh
// nothing.
func (t RelationshipType) Multiplier() float64 {
	return relationshipMultipliers[t]
}

// Inverse returns the reverse-direction type, if the type has one.
func (t RelationshipType) Inverse() (RelationshipType, bool) {
	inv, ok := relationshipInverses[t]
	return inv, ok
}

// RelationshipStrength grades how essential a relationship is.
type RelationshipStrength string

const (
	StrengthWeak      RelationshipStrength = "weak"
	StrengthModerate  RelationshipStrength = "moderate"
	StrengthStrong    RelationshipStrength = "strong"
	StrengthEssential RelationshipStrength = "essential"
)

var strengthValues = map[RelationshipStrength]float64{
	StrengthWeak:      0.3,
	StrengthModerate:  0.6,
	StrengthStrong:    0.8,
	StrengthEssential: 1.0,
}

// Value returns the numeric weight of the strength grade.
func (s RelationshipStrength) Value() float64 {
	return strengthValues[s]
}

// ConceptRelationship is an immutable, directed, typed edge between two
// concepts. Construct it with NewConceptRelationship and treat it as a value.
type ConceptRelationship struct {
	ID            string                 `json:"id,omitempty"`
	SourceID      string                 `json:"source_concept_id"`
	TargetID      string                 `json:"target_concept_id"`
	Type          RelationshipType       `json:"relationship_type"`
	Strength      RelationshipStrength   `json:"strength"`
	Explanation   string                 `json:"explanation,omitempty"`
	EvidenceScore float64                `json:"evidence_score"`
	CreatedAt     time.Time              `json:"created_at"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// NewConceptRelationship validates and builds an edge. The source and target
// must differ and the evidence score must be a probability.
func NewConceptRelationship(sourceID, targetID string, relType RelationshipType, strength RelationshipStrength, evidenceScore float64) (ConceptRelationship, error) {
	if err := ValidateNonEmptyString(sourceID, "source_concept_id"); err != nil {
		return ConceptRelationship{}, err
	}
	if err := ValidateNonEmptyString(targetID, "target_concept_id"); err != nil {
		return ConceptRelationship{}, err
	}
	if sourceID == targetID {
		return ConceptRelationship{}, NewValidationError("target_concept_id",
			"relationship source and target must differ, both are '%s'", sourceID)
	}
	if _, ok := relationshipMultipliers[relType]; !ok {
		return ConceptRelationship{}, NewValidationError("relationship_type",
			"unknown relationship type '%s'", relType)
	}
	if _, ok := strengthValues[strength]; !ok {
		return ConceptRelationship{}, NewValidationError("strength",
			"unknown relationship strength '%s'", strength)
	}
	if err := ValidateProbabilityScore(evidenceScore, "evidence_score"); err != nil {
		return ConceptRelationship{}, err
	}

	return ConceptRelationship{
		SourceID:      sourceID,
		TargetID:      targetID,
		Type:          relType,
		Strength:      strength,
		EvidenceScore: evidenceScore,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Weight combines strength, evidence and the type multiplier into a single
// edge weight in [0, 1].
func (r ConceptRelationship) Weight() float64 {
	return r.Strength.Value() * r.EvidenceScore * r.Type.Multiplier()
}

// Inverted returns the edge with source and target swapped and the inverse
// type. Types without an inverse report false.
func (r ConceptRelationship) Inverted() (ConceptRelationship, bool) {
	invType, ok := r.Type.Inverse()
	if !ok {
		return ConceptRelationship{}, false
	}
	inv := r
	inv.SourceID, inv.TargetID = r.TargetID, r.SourceID
	inv.Type = invType
	return inv, true
}

// Key identifies an edge by its (source, target, type) triple, the identity
// used for deduplication in relationship queries.
func (r ConceptRelationship) Key() string {
	return r.SourceID + "\x00" + r.TargetID + "\x00" + string(r.Type)
}

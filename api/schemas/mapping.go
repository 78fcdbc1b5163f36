package schemas

import (
	"fmt"
	"sort"
	"time"
)

// ConceptMapping is an immutable aggregate over one domain's concept-id set
// and the relationship edges among them. Every edge endpoint must be a member
// of the id set; the aggregate is rebuilt wholesale on re-save, never patched.
type ConceptMapping struct {
	conceptIDs    IDSet
	relationships []ConceptRelationship
	domain        string
	version       string
	createdAt     time.Time
	metadata      map[string]interface{}
}

// NewConceptMapping validates membership consistency and builds the
// aggregate. The relationship slice is copied so later caller mutations
// cannot reach inside.
func NewConceptMapping(domain, version string, conceptIDs []string, relationships []ConceptRelationship) (*ConceptMapping, error) {
	if err := ValidateNonEmptyString(domain, "domain"); err != nil {
		return nil, err
	}
	if len(conceptIDs) == 0 {
		return nil, NewValidationError("concept_ids", "mapping requires at least one concept")
	}

	ids := NewIDSet(conceptIDs...)
	rels := make([]ConceptRelationship, len(relationships))
	copy(rels, relationships)

	for _, rel := range rels {
		if !ids.Has(rel.SourceID) {
			return nil, fmt.Errorf("relationship %s->%s references source '%s' outside the mapping's concept set",
				rel.SourceID, rel.TargetID, rel.SourceID)
		}
		if !ids.Has(rel.TargetID) {
			return nil, fmt.Errorf("relationship %s->%s references target '%s' outside the mapping's concept set",
				rel.SourceID, rel.TargetID, rel.TargetID)
		}
	}

	return &ConceptMapping{
		conceptIDs:    ids,
		relationships: rels,
		domain:        domain,
		version:       version,
		createdAt:     time.Now().UTC(),
	}, nil
}

// Domain returns the domain this mapping covers.
func (m *ConceptMapping) Domain() string { return m.domain }

// Version returns the mapping's version string.
func (m *ConceptMapping) Version() string { return m.version }

// CreatedAt returns the construction timestamp.
func (m *ConceptMapping) CreatedAt() time.Time { return m.createdAt }

// ConceptIDs returns the member ids in sorted order.
func (m *ConceptMapping) ConceptIDs() []string { return m.conceptIDs.Sorted() }

// Size returns the number of member concepts.
func (m *ConceptMapping) Size() int { return len(m.conceptIDs) }

// Contains reports whether id is a member of the mapping.
func (m *ConceptMapping) Contains(id string) bool { return m.conceptIDs.Has(id) }

// Relationships returns a copy of the edge list.
func (m *ConceptMapping) Relationships() []ConceptRelationship {
	out := make([]ConceptRelationship, len(m.relationships))
	copy(out, m.relationships)
	return out
}

// PrerequisitesOf returns the ids that must precede the given concept,
// i.e. the sources of prerequisite edges targeting it.
func (m *ConceptMapping) PrerequisitesOf(id string) []string {
	prereqs := make(IDSet)
	for _, rel := range m.relationships {
		if rel.Type == RelPrerequisite && rel.TargetID == id {
			prereqs.Add(rel.SourceID)
		}
	}
	return prereqs.Sorted()
}

// EnabledBy returns the ids that the given concept unlocks: targets of its
// enables edges plus targets of prerequisite edges it sources.
func (m *ConceptMapping) EnabledBy(id string) []string {
	enabled := make(IDSet)
	for _, rel := range m.relationships {
		if rel.SourceID != id {
			continue
		}
		if rel.Type == RelEnables || rel.Type == RelPrerequisite {
			enabled.Add(rel.TargetID)
		}
	}
	return enabled.Sorted()
}

// FoundationalConcepts returns the ids with no incoming prerequisite edge.
func (m *ConceptMapping) FoundationalConcepts() []string {
	hasPrereq := make(IDSet)
	for _, rel := range m.relationships {
		if rel.Type == RelPrerequisite {
			hasPrereq.Add(rel.TargetID)
		}
	}
	foundational := make([]string, 0, len(m.conceptIDs))
	for id := range m.conceptIDs {
		if !hasPrereq.Has(id) {
			foundational = append(foundational, id)
		}
	}
	sort.Strings(foundational)
	return foundational
}

// AdvancedConcepts returns the ids that enable three or more others.
func (m *ConceptMapping) AdvancedConcepts() []string {
	var advanced []string
	for id := range m.conceptIDs {
		if len(m.EnabledBy(id)) >= 3 {
			advanced = append(advanced, id)
		}
	}
	sort.Strings(advanced)
	return advanced
}

// Centrality sums the weights of every edge incident to the concept and
// normalizes by the number of other members. A single-concept mapping has
// centrality zero.
func (m *ConceptMapping) Centrality(id string) float64 {
	if len(m.conceptIDs) <= 1 || !m.conceptIDs.Has(id) {
		return 0
	}
	var total float64
	for _, rel := range m.relationships {
		if rel.SourceID == id || rel.TargetID == id {
			total += rel.Weight()
		}
	}
	return total / float64(len(m.conceptIDs)-1)
}

// FilterByStrength returns a new mapping over the same concept set keeping
// only edges whose weight meets the minimum.
func (m *ConceptMapping) FilterByStrength(min float64) (*ConceptMapping, error) {
	var kept []ConceptRelationship
	for _, rel := range m.relationships {
		if rel.Weight() >= min {
			kept = append(kept, rel)
		}
	}
	return NewConceptMapping(m.domain, m.version, m.conceptIDs.Sorted(), kept)
}

// LearningPathFor expands the target's direct prerequisites into paths, one
// per prerequisite, each ending at the target. It deliberately stays a
// single-level expansion; deeper ancestor ordering lives in the learning-path
// use case. A target with no prerequisites yields a single one-step path, an
// unknown target yields nothing.
func (m *ConceptMapping) LearningPathFor(target string) [][]string {
	if !m.conceptIDs.Has(target) {
		return nil
	}
	prereqs := m.PrerequisitesOf(target)
	if len(prereqs) == 0 {
		return [][]string{{target}}
	}
	paths := make([][]string, 0, len(prereqs))
	for _, prereq := range prereqs {
		paths = append(paths, []string{prereq, target})
	}
	return paths
}

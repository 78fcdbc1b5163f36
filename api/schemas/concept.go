package schemas

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// -- Concept Classification Enums --

// ConceptType categorizes the mathematical role of a concept.
type ConceptType string

const (
	TypeAxiom      ConceptType = "axiom"
	TypeTheorem    ConceptType = "theorem"
	TypeDefinition ConceptType = "definition"
	TypeLemma      ConceptType = "lemma"
	TypeCorollary  ConceptType = "corollary"
	TypeConjecture ConceptType = "conjecture"
	TypeAlgorithm  ConceptType = "algorithm"
)

// conceptTypeModifiers feed into ComplexityScore. Axioms are taken as given,
// conjectures demand the most context.
var conceptTypeModifiers = map[ConceptType]float64{
	TypeAxiom:      0.0,
	TypeDefinition: 0.1,
	TypeCorollary:  0.2,
	TypeAlgorithm:  0.2,
	TypeTheorem:    0.3,
	TypeLemma:      0.3,
	TypeConjecture: 0.4,
}

// ParseConceptType parses a concept type case-insensitively.
func ParseConceptType(raw string) (ConceptType, error) {
	ct := ConceptType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := conceptTypeModifiers[ct]; !ok {
		return "", NewValidationError("concept_type", "unknown concept type '%s'", raw)
	}
	return ct, nil
}

// ConceptLevel orders concepts by the education stage at which they are
// normally taught.
type ConceptLevel string

const (
	LevelElementary    ConceptLevel = "elementary"
	LevelMiddleSchool  ConceptLevel = "middle_school"
	LevelHighSchool    ConceptLevel = "high_school"
	LevelUndergraduate ConceptLevel = "undergraduate"
	LevelGraduate      ConceptLevel = "graduate"
	LevelResearch      ConceptLevel = "research"
)

// conceptLevelScores are the base complexity contributions per level.
var conceptLevelScores = map[ConceptLevel]float64{
	LevelElementary:    0.1,
	LevelMiddleSchool:  0.2,
	LevelHighSchool:    0.3,
	LevelUndergraduate: 0.5,
	LevelGraduate:      0.7,
	LevelResearch:      0.9,
}

// ParseConceptLevel parses a level case- and separator-insensitively, so
// "Middle School", "middle-school" and "MIDDLE_SCHOOL" all resolve to
// LevelMiddleSchool.
func ParseConceptLevel(raw string) (ConceptLevel, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	cl := ConceptLevel(normalized)
	if _, ok := conceptLevelScores[cl]; !ok {
		return "", NewValidationError("level", "unknown concept level '%s'", raw)
	}
	return cl, nil
}

// BaseScore returns the level's contribution to the complexity score.
func (l ConceptLevel) BaseScore() float64 {
	return conceptLevelScores[l]
}

// -- Structured Sub-Records --

// Example is a worked instance (or counterexample) attached to a concept.
type Example struct {
	Description string `json:"description"`
	Expression  string `json:"expression,omitempty"`
	Source      string `json:"source,omitempty"`
}

// ProofSketch outlines one proof strategy for a concept.
type ProofSketch struct {
	Approach string `json:"approach"`
	Outline  string `json:"outline,omitempty"`
}

// -- Concept Record (boundary schema) --

// ConceptRecord is the untrusted, serializable form of a concept as it
// arrives from loaders or leaves via ToRecord. Format validation happens on
// this type; domain invariants are enforced when it is promoted to a Concept.
type ConceptRecord struct {
	ID                     string                 `json:"id"`
	Name                   string                 `json:"name"`
	FormalStatement        string                 `json:"formal_statement"`
	InformalDescription    string                 `json:"informal_description"`
	MathematicalDefinition string                 `json:"mathematical_definition,omitempty"`
	ConceptType            string                 `json:"concept_type,omitempty"`
	Level                  string                 `json:"level,omitempty"`
	Domain                 string                 `json:"domain,omitempty"`
	Subdomain              string                 `json:"subdomain,omitempty"`
	Prerequisites          []string               `json:"prerequisites,omitempty"`
	Enables                []string               `json:"enables,omitempty"`
	RelatedConcepts        []string               `json:"related_concepts,omitempty"`
	Examples               []Example              `json:"examples,omitempty"`
	Counterexamples        []Example              `json:"counterexamples,omitempty"`
	ProofSketches          []ProofSketch          `json:"proof_sketches,omitempty"`
	Tags                   []string               `json:"tags,omitempty"`
	Metadata               map[string]interface{} `json:"metadata,omitempty"`

	// Derived fields, populated on export only and ignored on input.
	ComplexityScore float64 `json:"complexity_score,omitempty"`
	IsFoundational  bool    `json:"is_foundational,omitempty"`
	IsAdvanced      bool    `json:"is_advanced,omitempty"`
}

// ValidateFormat runs the infrastructure-level checks on a raw record:
// required fields, the id pattern, minimum lengths and enum membership.
// Domain invariants (self-references, cycle guards) are left to NewConcept.
func (r ConceptRecord) ValidateFormat() error {
	for _, required := range []struct {
		value, field string
	}{
		{r.ID, "id"},
		{r.Name, "name"},
		{r.FormalStatement, "formal_statement"},
		{r.InformalDescription, "informal_description"},
	} {
		if err := ValidateRequiredField(required.value, required.field); err != nil {
			return err
		}
	}
	if !conceptIDPattern.MatchString(r.ID) {
		return NewValidationError("id",
			"'%s' must start with a letter and contain only letters, digits and underscores", r.ID)
	}
	if err := ValidateNonEmptyString(r.Name, "name"); err != nil {
		return err
	}
	if len(strings.TrimSpace(r.InformalDescription)) < minDescriptionLength {
		return NewValidationError("informal_description",
			"must be at least %d characters", minDescriptionLength)
	}
	if r.ConceptType != "" {
		if _, err := ParseConceptType(r.ConceptType); err != nil {
			return err
		}
	}
	if r.Level != "" {
		if _, err := ParseConceptLevel(r.Level); err != nil {
			return err
		}
	}
	return nil
}

// -- Concept Entity --

// conceptIDPattern: a letter followed by letters, digits or underscores.
var conceptIDPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

const minDescriptionLength = 10

// Concept is a single atomic concept extracted from a paper or curriculum.
// Identity is the ID; the relationship sets never contain the concept's own
// id, and an id can never sit in both Prerequisites and Enables.
type Concept struct {
	ID                     string
	Name                   string
	FormalStatement        string
	InformalDescription    string
	MathematicalDefinition string
	Type                   ConceptType
	Level                  ConceptLevel
	Domain                 string
	Subdomain              string
	Prerequisites          IDSet
	Enables                IDSet
	RelatedConcepts        IDSet
	Examples               []Example
	Counterexamples        []Example
	ProofSketches          []ProofSketch
	Tags                   IDSet
	Metadata               map[string]interface{}
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NewConcept validates and constructs a Concept. Self-references in the
// relationship sets are silently dropped; tags are lowercased and trimmed.
func NewConcept(rec ConceptRecord) (*Concept, error) {
	if err := ValidateNonEmptyString(rec.ID, "id"); err != nil {
		return nil, err
	}
	if !conceptIDPattern.MatchString(rec.ID) {
		return nil, NewValidationError("id",
			"'%s' must start with a letter and contain only letters, digits and underscores", rec.ID)
	}
	if err := ValidateNonEmptyString(rec.Name, "name"); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(rec.InformalDescription)) < minDescriptionLength {
		return nil, NewValidationError("informal_description",
			"must be at least %d characters", minDescriptionLength)
	}

	ct := TypeDefinition
	if rec.ConceptType != "" {
		parsed, err := ParseConceptType(rec.ConceptType)
		if err != nil {
			return nil, err
		}
		ct = parsed
	}
	level := LevelUndergraduate
	if rec.Level != "" {
		parsed, err := ParseConceptLevel(rec.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	c := &Concept{
		ID:                     rec.ID,
		Name:                   strings.TrimSpace(rec.Name),
		FormalStatement:        rec.FormalStatement,
		InformalDescription:    rec.InformalDescription,
		MathematicalDefinition: rec.MathematicalDefinition,
		Type:                   ct,
		Level:                  level,
		Domain:                 rec.Domain,
		Subdomain:              rec.Subdomain,
		Prerequisites:          NewIDSet(rec.Prerequisites...),
		Enables:                NewIDSet(rec.Enables...),
		RelatedConcepts:        NewIDSet(rec.RelatedConcepts...),
		Examples:               rec.Examples,
		Counterexamples:        rec.Counterexamples,
		ProofSketches:          rec.ProofSketches,
		Tags:                   make(IDSet, len(rec.Tags)),
		Metadata:               rec.Metadata,
		CreatedAt:              time.Now().UTC(),
		UpdatedAt:              time.Now().UTC(),
	}

	// A concept may never reference itself.
	c.Prerequisites.Remove(c.ID)
	c.Enables.Remove(c.ID)
	c.RelatedConcepts.Remove(c.ID)

	for _, tag := range rec.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			c.Tags.Add(tag)
		}
	}

	return c, nil
}

// AddPrerequisite records that id must be learned before this concept. It
// rejects self-references and ids already declared in Enables, which would
// form a direct two-node cycle.
func (c *Concept) AddPrerequisite(id string) error {
	if id == c.ID {
		return NewValidationError("prerequisites", "concept '%s' cannot be its own prerequisite", id)
	}
	if c.Enables.Has(id) {
		return fmt.Errorf("concept '%s' already enables '%s'; adding it as a prerequisite would create a cycle", c.ID, id)
	}
	c.Prerequisites.Add(id)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// AddEnabledConcept records that this concept unlocks id. Symmetric guard to
// AddPrerequisite.
func (c *Concept) AddEnabledConcept(id string) error {
	if id == c.ID {
		return NewValidationError("enables", "concept '%s' cannot enable itself", id)
	}
	if c.Prerequisites.Has(id) {
		return fmt.Errorf("concept '%s' already requires '%s'; adding it as enabled would create a cycle", c.ID, id)
	}
	c.Enables.Add(id)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// IsFoundational reports whether the concept has no prerequisites.
func (c *Concept) IsFoundational() bool {
	return len(c.Prerequisites) == 0
}

// IsAdvanced reports whether the concept enables at least three others.
func (c *Concept) IsAdvanced() bool {
	return len(c.Enables) >= 3
}

// ComplexityScore combines the level base score (50%), a prerequisite-count
// term capped at 0.4 (30%) and the concept-type modifier (20%), clamped to
// [0, 1].
func (c *Concept) ComplexityScore() float64 {
	prereqScore := float64(len(c.Prerequisites)) * 0.1
	if prereqScore > 0.4 {
		prereqScore = 0.4
	}
	score := 0.5*c.Level.BaseScore() + 0.3*prereqScore + 0.2*conceptTypeModifiers[c.Type]
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// SearchCriteria is an AND-combination of optional concept filters. Zero
// values mean "no constraint".
type SearchCriteria struct {
	Domain   string
	Level    ConceptLevel
	Type     ConceptType
	Tags     []string
	Keywords string
}

// MatchesSearchCriteria evaluates every populated filter against the concept.
// Keyword matching is a case-insensitive substring check over the name and
// informal description; tags require superset membership.
func (c *Concept) MatchesSearchCriteria(criteria SearchCriteria) bool {
	if criteria.Domain != "" && c.Domain != criteria.Domain {
		return false
	}
	if criteria.Level != "" && c.Level != criteria.Level {
		return false
	}
	if criteria.Type != "" && c.Type != criteria.Type {
		return false
	}
	if criteria.Keywords != "" {
		haystack := strings.ToLower(c.Name + " " + c.InformalDescription)
		if !strings.Contains(haystack, strings.ToLower(criteria.Keywords)) {
			return false
		}
	}
	for _, tag := range criteria.Tags {
		if !c.Tags.Has(strings.ToLower(strings.TrimSpace(tag))) {
			return false
		}
	}
	return true
}

// ToRecord exports the concept, including the derived classification fields.
func (c *Concept) ToRecord() ConceptRecord {
	return ConceptRecord{
		ID:                     c.ID,
		Name:                   c.Name,
		FormalStatement:        c.FormalStatement,
		InformalDescription:    c.InformalDescription,
		MathematicalDefinition: c.MathematicalDefinition,
		ConceptType:            string(c.Type),
		Level:                  string(c.Level),
		Domain:                 c.Domain,
		Subdomain:              c.Subdomain,
		Prerequisites:          c.Prerequisites.Sorted(),
		Enables:                c.Enables.Sorted(),
		RelatedConcepts:        c.RelatedConcepts.Sorted(),
		Examples:               c.Examples,
		Counterexamples:        c.Counterexamples,
		ProofSketches:          c.ProofSketches,
		Tags:                   c.Tags.Sorted(),
		Metadata:               c.Metadata,
		ComplexityScore:        c.ComplexityScore(),
		IsFoundational:         c.IsFoundational(),
		IsAdvanced:             c.IsAdvanced(),
	}
}

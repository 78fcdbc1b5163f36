package schemas

import (
	"context"
)

// -- Repository Ports --

// ConceptRepository abstracts concept storage so the graph core stays
// independent of any particular backend (in-memory, PostgreSQL, ...).
type ConceptRepository interface {
	// FindByID retrieves a concept by id. A miss returns (nil, nil) and is
	// counted in the repository statistics rather than reported as an error.
	FindByID(ctx context.Context, id string) (*Concept, error)
	// FindByDomain retrieves every concept in a domain.
	FindByDomain(ctx context.Context, domain string) ([]*Concept, error)
	// Save upserts a single concept.
	Save(ctx context.Context, concept *Concept) error
	// SaveMany upserts a batch of concepts.
	SaveMany(ctx context.Context, concepts []*Concept) error
	// Search returns the concepts matching every populated criterion.
	Search(ctx context.Context, criteria SearchCriteria) ([]*Concept, error)
	// GetStatistics returns a snapshot of the repository's counters.
	GetStatistics() RepositoryStatistics
}

// MappingRepository abstracts storage for per-domain concept mappings.
type MappingRepository interface {
	// FindByDomain retrieves the mapping for a domain, or (nil, nil).
	FindByDomain(ctx context.Context, domain string) (*ConceptMapping, error)
	// Save replaces the domain's mapping wholesale.
	Save(ctx context.Context, mapping *ConceptMapping) error
	// FindRelationships returns the union of edges into and out of the
	// concept, deduplicated by (source, target, type).
	FindRelationships(ctx context.Context, conceptID string) ([]ConceptRelationship, error)
}

// -- Boundary Ports --

// ConceptLoader reads raw concept records from an external source. Records
// are returned as parsed; format validation and promotion to entities are
// the caller's responsibility.
type ConceptLoader interface {
	Load(ctx context.Context, source string) ([]ConceptRecord, error)
}

// MultiSourceLoader is the optional extension for loaders that can read
// several sources at once. LoadAll returns the concatenated records in
// source order; one unreadable source fails the whole call.
type MultiSourceLoader interface {
	ConceptLoader
	LoadAll(ctx context.Context, sources []string) ([]ConceptRecord, error)
}

// EventPublisher receives best-effort notifications after integration runs.
// Publish failures degrade to warnings, never to run failures.
type EventPublisher interface {
	Publish(ctx context.Context, event IntegrationEvent) error
}

package knowledgegraph

import (
	"context"
	"sort"
	"sync"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
	"go.uber.org/zap"
)

// domainEdge tags an indexed relationship with the domain whose mapping
// contributed it, so replacing one domain's mapping cannot disturb edges
// that another domain's mapping still contains.
type domainEdge struct {
	domain string
	rel    schemas.ConceptRelationship
}

// InMemoryMappingRepository stores one ConceptMapping per domain and keeps
// forward (source id -> edges) and reverse (target id -> edges) adjacency
// indexes over every stored mapping's relationships. Replacing a domain's
// mapping prunes only that domain's old edges from both indexes before the
// new ones are added.
type InMemoryMappingRepository struct {
	mappings map[string]*schemas.ConceptMapping
	forward  map[string][]domainEdge
	reverse  map[string][]domainEdge

	mu  sync.RWMutex
	log *zap.Logger
}

var _ schemas.MappingRepository = (*InMemoryMappingRepository)(nil)

// NewInMemoryMappingRepository creates an empty in-memory mapping store.
func NewInMemoryMappingRepository(logger *zap.Logger) *InMemoryMappingRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryMappingRepository{
		mappings: make(map[string]*schemas.ConceptMapping),
		forward:  make(map[string][]domainEdge),
		reverse:  make(map[string][]domainEdge),
		log:      logger.Named("MappingRepository"),
	}
}

// FindByDomain retrieves the mapping for a domain, or (nil, nil) when the
// domain has never been saved.
func (r *InMemoryMappingRepository) FindByDomain(ctx context.Context, domain string) (*schemas.ConceptMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mappings[domain], nil
}

// Save replaces the domain's mapping wholesale and rebuilds that domain's
// slice of the adjacency indexes.
func (r *InMemoryMappingRepository) Save(ctx context.Context, mapping *schemas.ConceptMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	domain := mapping.Domain()
	if old, exists := r.mappings[domain]; exists {
		for _, rel := range old.Relationships() {
			r.forward[rel.SourceID] = pruneDomain(r.forward[rel.SourceID], domain)
			r.reverse[rel.TargetID] = pruneDomain(r.reverse[rel.TargetID], domain)
		}
	}

	r.mappings[domain] = mapping
	for _, rel := range mapping.Relationships() {
		r.forward[rel.SourceID] = append(r.forward[rel.SourceID], domainEdge{domain: domain, rel: rel})
		r.reverse[rel.TargetID] = append(r.reverse[rel.TargetID], domainEdge{domain: domain, rel: rel})
	}

	r.log.Debug("Mapping saved",
		zap.String("domain", domain),
		zap.Int("concepts", mapping.Size()),
		zap.Int("relationships", len(mapping.Relationships())))
	return nil
}

// pruneDomain removes every edge the given domain contributed to the slice.
// Edges the same concepts carry in other domains' mappings are untouched.
func pruneDomain(edges []domainEdge, domain string) []domainEdge {
	kept := edges[:0]
	for _, e := range edges {
		if e.domain != domain {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// FindRelationships returns the union of the concept's outgoing and incoming
// edges across all stored mappings, deduplicated by (source, target, type)
// and sorted for stable output.
func (r *InMemoryMappingRepository) FindRelationships(ctx context.Context, conceptID string) ([]schemas.ConceptRelationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []schemas.ConceptRelationship
	for _, e := range r.forward[conceptID] {
		if _, dup := seen[e.rel.Key()]; !dup {
			seen[e.rel.Key()] = struct{}{}
			out = append(out, e.rel)
		}
	}
	for _, e := range r.reverse[conceptID] {
		if _, dup := seen[e.rel.Key()]; !dup {
			seen[e.rel.Key()] = struct{}{}
			out = append(out, e.rel)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

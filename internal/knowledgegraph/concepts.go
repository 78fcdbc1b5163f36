package knowledgegraph

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
	"go.uber.org/zap"
)

// InMemoryConceptRepository is a fast, ephemeral implementation of the
// ConceptRepository port. Concepts live in a primary id map; secondary
// indexes by domain, level, type and tag keep multi-criteria search from
// scanning the whole store. A RWMutex serializes writers while letting
// readers proceed together; readers never observe a half-updated index.
type InMemoryConceptRepository struct {
	concepts map[string]*schemas.Concept
	byDomain map[string]schemas.IDSet
	byLevel  map[schemas.ConceptLevel]schemas.IDSet
	byType   map[schemas.ConceptType]schemas.IDSet
	byTag    map[string]schemas.IDSet

	mu  sync.RWMutex
	log *zap.Logger

	queries     atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	lastUpdated atomic.Int64 // unix nanos
}

var _ schemas.ConceptRepository = (*InMemoryConceptRepository)(nil)

// NewInMemoryConceptRepository creates an empty in-memory concept store.
func NewInMemoryConceptRepository(logger *zap.Logger) *InMemoryConceptRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryConceptRepository{
		concepts: make(map[string]*schemas.Concept),
		byDomain: make(map[string]schemas.IDSet),
		byLevel:  make(map[schemas.ConceptLevel]schemas.IDSet),
		byType:   make(map[schemas.ConceptType]schemas.IDSet),
		byTag:    make(map[string]schemas.IDSet),
		log:      logger.Named("ConceptRepository"),
	}
}

// FindByID retrieves a concept by id. A miss returns (nil, nil) and bumps
// the miss counter.
func (r *InMemoryConceptRepository) FindByID(ctx context.Context, id string) (*schemas.Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.queries.Add(1)
	concept, ok := r.concepts[id]
	if !ok {
		r.cacheMisses.Add(1)
		return nil, nil
	}
	r.cacheHits.Add(1)
	return concept, nil
}

// FindByDomain returns every concept in the domain, sorted by id.
func (r *InMemoryConceptRepository) FindByDomain(ctx context.Context, domain string) ([]*schemas.Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.queries.Add(1)
	return r.collect(r.byDomain[domain]), nil
}

// Save upserts a concept. On update, every stale index entry for the id is
// removed before the new attribute values are indexed, so an id can never
// linger in a bucket for a previous domain, level, type or tag.
func (r *InMemoryConceptRepository) Save(ctx context.Context, concept *schemas.Concept) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveLocked(concept)
	return nil
}

// SaveMany upserts a batch under a single lock acquisition.
func (r *InMemoryConceptRepository) SaveMany(ctx context.Context, concepts []*schemas.Concept) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, concept := range concepts {
		r.saveLocked(concept)
	}
	return nil
}

// saveLocked assumes the caller holds the write lock.
func (r *InMemoryConceptRepository) saveLocked(concept *schemas.Concept) {
	if old, exists := r.concepts[concept.ID]; exists {
		r.unindexLocked(old)
	}
	r.concepts[concept.ID] = concept
	r.indexLocked(concept)
	r.lastUpdated.Store(time.Now().UTC().UnixNano())
	r.log.Debug("Concept saved",
		zap.String("id", concept.ID),
		zap.String("domain", concept.Domain))
}

func (r *InMemoryConceptRepository) indexLocked(c *schemas.Concept) {
	addTo(r.byDomain, c.Domain, c.ID)
	addTo(r.byLevel, c.Level, c.ID)
	addTo(r.byType, c.Type, c.ID)
	for tag := range c.Tags {
		addTo(r.byTag, tag, c.ID)
	}
}

func (r *InMemoryConceptRepository) unindexLocked(c *schemas.Concept) {
	removeFrom(r.byDomain, c.Domain, c.ID)
	removeFrom(r.byLevel, c.Level, c.ID)
	removeFrom(r.byType, c.Type, c.ID)
	for tag := range c.Tags {
		removeFrom(r.byTag, tag, c.ID)
	}
}

func addTo[K comparable](index map[K]schemas.IDSet, key K, id string) {
	bucket, ok := index[key]
	if !ok {
		bucket = make(schemas.IDSet)
		index[key] = bucket
	}
	bucket.Add(id)
}

func removeFrom[K comparable](index map[K]schemas.IDSet, key K, id string) {
	if bucket, ok := index[key]; ok {
		bucket.Remove(id)
		if len(bucket) == 0 {
			delete(index, key)
		}
	}
}

// Search narrows a candidate set through the indexes first (each indexed
// criterion is one lookup plus a set intersection) and only then evaluates
// the full predicate, so non-indexed filters like keyword search run over
// the narrowed candidates instead of the whole store.
func (r *InMemoryConceptRepository) Search(ctx context.Context, criteria schemas.SearchCriteria) ([]*schemas.Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.queries.Add(1)

	candidates, constrained := r.indexedCandidatesLocked(criteria)
	if constrained && len(candidates) == 0 {
		return nil, nil
	}

	var matches []*schemas.Concept
	appendMatch := func(c *schemas.Concept) {
		if c.MatchesSearchCriteria(criteria) {
			matches = append(matches, c)
		}
	}
	if constrained {
		for id := range candidates {
			appendMatch(r.concepts[id])
		}
	} else {
		for _, c := range r.concepts {
			appendMatch(c)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

// indexedCandidatesLocked intersects the index buckets for every indexed
// criterion. The second return value is false when no criterion is indexed,
// meaning the caller must fall back to a full scan.
func (r *InMemoryConceptRepository) indexedCandidatesLocked(criteria schemas.SearchCriteria) (schemas.IDSet, bool) {
	var candidates schemas.IDSet
	constrained := false

	narrow := func(bucket schemas.IDSet) {
		if !constrained {
			candidates = bucket.Clone()
			constrained = true
			return
		}
		candidates = candidates.Intersect(bucket)
	}

	if criteria.Domain != "" {
		narrow(r.byDomain[criteria.Domain])
	}
	if criteria.Level != "" {
		narrow(r.byLevel[criteria.Level])
	}
	if criteria.Type != "" {
		narrow(r.byType[criteria.Type])
	}
	for _, tag := range criteria.Tags {
		narrow(r.byTag[strings.ToLower(strings.TrimSpace(tag))])
	}
	return candidates, constrained
}

// GetStatistics returns a snapshot of the running counters.
func (r *InMemoryConceptRepository) GetStatistics() schemas.RepositoryStatistics {
	stats := schemas.RepositoryStatistics{
		Queries:     r.queries.Load(),
		CacheHits:   r.cacheHits.Load(),
		CacheMisses: r.cacheMisses.Load(),
	}
	if nanos := r.lastUpdated.Load(); nanos > 0 {
		stats.LastUpdated = time.Unix(0, nanos).UTC()
	}
	return stats
}

// collect materializes an id bucket into a sorted concept slice. The caller
// must hold at least the read lock.
func (r *InMemoryConceptRepository) collect(ids schemas.IDSet) []*schemas.Concept {
	if len(ids) == 0 {
		return nil
	}
	out := make([]*schemas.Concept, 0, len(ids))
	for _, id := range ids.Sorted() {
		if c, ok := r.concepts[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

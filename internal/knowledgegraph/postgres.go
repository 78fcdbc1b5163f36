package knowledgegraph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
)

// DBPool abstracts the pgxpool.Pool so the postgres repositories can be
// exercised against pgxmock in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresConceptRepository is the durable ConceptRepository backend. Each
// concept row carries the full record as JSONB plus the indexed columns the
// search queries filter on.
type PostgresConceptRepository struct {
	pool DBPool
	log  *zap.Logger

	queries     atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	lastUpdated atomic.Int64
}

var _ schemas.ConceptRepository = (*PostgresConceptRepository)(nil)

// NewPostgresConceptRepository verifies the connection and wraps the pool.
func NewPostgresConceptRepository(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresConceptRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresConceptRepository{
		pool: pool,
		log:  logger.Named("PostgresConceptRepository"),
	}, nil
}

const selectConceptByID = `
	SELECT record FROM concepts WHERE id = $1;
`

// FindByID retrieves a concept by id; a miss returns (nil, nil).
func (r *PostgresConceptRepository) FindByID(ctx context.Context, id string) (*schemas.Concept, error) {
	r.queries.Add(1)

	var rec schemas.ConceptRecord
	err := r.pool.QueryRow(ctx, selectConceptByID, id).Scan(&rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.cacheMisses.Add(1)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query concept '%s': %w", id, err)
	}
	r.cacheHits.Add(1)
	return schemas.NewConcept(rec)
}

const selectConceptsByDomain = `
	SELECT record FROM concepts WHERE domain = $1 ORDER BY id ASC;
`

// FindByDomain returns every concept in the domain, ordered by id.
func (r *PostgresConceptRepository) FindByDomain(ctx context.Context, domain string) ([]*schemas.Concept, error) {
	r.queries.Add(1)

	rows, err := r.pool.Query(ctx, selectConceptsByDomain, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to query domain '%s': %w", domain, err)
	}
	defer rows.Close()
	return scanConcepts(rows)
}

const upsertConcept = `
	INSERT INTO concepts (id, domain, level, concept_type, record, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		domain = EXCLUDED.domain,
		level = EXCLUDED.level,
		concept_type = EXCLUDED.concept_type,
		record = EXCLUDED.record,
		updated_at = EXCLUDED.updated_at;
`

// Save upserts a single concept.
func (r *PostgresConceptRepository) Save(ctx context.Context, concept *schemas.Concept) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, upsertConcept,
		concept.ID, concept.Domain, string(concept.Level), string(concept.Type), concept.ToRecord(), now)
	if err != nil {
		return fmt.Errorf("failed to save concept '%s': %w", concept.ID, err)
	}
	r.lastUpdated.Store(now.UnixNano())
	return nil
}

// SaveMany upserts a batch inside one transaction so a failure leaves no
// partial batch behind.
func (r *PostgresConceptRepository) SaveMany(ctx context.Context, concepts []*schemas.Concept) error {
	if len(concepts) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			r.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, concept := range concepts {
		batch.Queue(upsertConcept,
			concept.ID, concept.Domain, string(concept.Level), string(concept.Type), concept.ToRecord(), now)
	}

	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	for i := range concepts {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to upsert concept '%s': %w", concepts[i].ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	r.lastUpdated.Store(now.UnixNano())
	return nil
}

// Search pushes the indexed criteria (domain, level, type) into the SQL
// WHERE clause and evaluates the remaining predicate (tags, keywords) on the
// narrowed rows, mirroring the in-memory index-then-predicate design.
func (r *PostgresConceptRepository) Search(ctx context.Context, criteria schemas.SearchCriteria) ([]*schemas.Concept, error) {
	r.queries.Add(1)

	query := "SELECT record FROM concepts WHERE 1=1"
	var args []interface{}
	if criteria.Domain != "" {
		args = append(args, criteria.Domain)
		query += fmt.Sprintf(" AND domain = $%d", len(args))
	}
	if criteria.Level != "" {
		args = append(args, string(criteria.Level))
		query += fmt.Sprintf(" AND level = $%d", len(args))
	}
	if criteria.Type != "" {
		args = append(args, string(criteria.Type))
		query += fmt.Sprintf(" AND concept_type = $%d", len(args))
	}
	query += " ORDER BY id ASC;"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search concepts: %w", err)
	}
	defer rows.Close()

	candidates, err := scanConcepts(rows)
	if err != nil {
		return nil, err
	}
	var matches []*schemas.Concept
	for _, c := range candidates {
		if c.MatchesSearchCriteria(criteria) {
			matches = append(matches, c)
		}
	}
	return matches, nil
}

// GetStatistics returns a snapshot of the repository's counters.
func (r *PostgresConceptRepository) GetStatistics() schemas.RepositoryStatistics {
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

func scanConcepts(rows pgx.Rows) ([]*schemas.Concept, error) {
	var out []*schemas.Concept
	for rows.Next() {
		var rec schemas.ConceptRecord
		if err := rows.Scan(&rec); err != nil {
			return nil, fmt.Errorf("failed to scan concept row: %w", err)
		}
		concept, err := schemas.NewConcept(rec)
		if err != nil {
			return nil, fmt.Errorf("stored concept '%s' failed validation: %w", rec.ID, err)
		}
		out = append(out, concept)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// PostgresMappingRepository persists one mapping row per domain plus an edge
// table queried by either endpoint.
type PostgresMappingRepository struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.MappingRepository = (*PostgresMappingRepository)(nil)

// NewPostgresMappingRepository wraps the pool; the connection is assumed to
// have been verified by the concept repository sharing it.
func NewPostgresMappingRepository(pool DBPool, logger *zap.Logger) *PostgresMappingRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresMappingRepository{
		pool: pool,
		log:  logger.Named("PostgresMappingRepository"),
	}
}

const selectMappingByDomain = `
	SELECT version, concept_ids FROM mappings WHERE domain = $1;
`

const selectRelationshipsByDomain = `
	SELECT source_id, target_id, rel_type, strength, evidence_score, explanation, created_at
	FROM mapping_relationships WHERE domain = $1 ORDER BY source_id, target_id, rel_type;
`

// FindByDomain reassembles the domain's mapping from its row and edge table,
// or returns (nil, nil) when the domain is unknown.
func (r *PostgresMappingRepository) FindByDomain(ctx context.Context, domain string) (*schemas.ConceptMapping, error) {
	var version string
	var conceptIDs []string
	err := r.pool.QueryRow(ctx, selectMappingByDomain, domain).Scan(&version, &conceptIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query mapping for domain '%s': %w", domain, err)
	}

	rows, err := r.pool.Query(ctx, selectRelationshipsByDomain, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships for domain '%s': %w", domain, err)
	}
	defer rows.Close()

	var rels []schemas.ConceptRelationship
	for rows.Next() {
		var rel schemas.ConceptRelationship
		var relType, strength string
		if err := rows.Scan(&rel.SourceID, &rel.TargetID, &relType, &strength, &rel.EvidenceScore, &rel.Explanation, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relationship row: %w", err)
		}
		rel.Type = schemas.RelationshipType(relType)
		rel.Strength = schemas.RelationshipStrength(strength)
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return schemas.NewConceptMapping(domain, version, conceptIDs, rels)
}

const upsertMapping = `
	INSERT INTO mappings (domain, version, concept_ids, created_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (domain) DO UPDATE SET
		version = EXCLUDED.version,
		concept_ids = EXCLUDED.concept_ids,
		created_at = EXCLUDED.created_at;
`

const deleteRelationshipsByDomain = `
	DELETE FROM mapping_relationships WHERE domain = $1;
`

const insertRelationship = `
	INSERT INTO mapping_relationships
		(domain, source_id, target_id, rel_type, strength, evidence_score, explanation, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`

// Save replaces the domain's mapping row and its edge set in one
// transaction.
func (r *PostgresMappingRepository) Save(ctx context.Context, mapping *schemas.ConceptMapping) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			r.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, upsertMapping,
		mapping.Domain(), mapping.Version(), mapping.ConceptIDs(), mapping.CreatedAt()); err != nil {
		return fmt.Errorf("failed to upsert mapping for domain '%s': %w", mapping.Domain(), err)
	}
	if _, err := tx.Exec(ctx, deleteRelationshipsByDomain, mapping.Domain()); err != nil {
		return fmt.Errorf("failed to prune relationships for domain '%s': %w", mapping.Domain(), err)
	}

	rels := mapping.Relationships()
	if len(rels) > 0 {
		batch := &pgx.Batch{}
		for _, rel := range rels {
			batch.Queue(insertRelationship,
				mapping.Domain(), rel.SourceID, rel.TargetID, string(rel.Type),
				string(rel.Strength), rel.EvidenceScore, rel.Explanation, rel.CreatedAt)
		}
		br := tx.SendBatch(ctx, batch)
		if br == nil {
			return fmt.Errorf("failed to send batch: batch results is nil")
		}
		for range rels {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("failed to insert relationship: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const selectRelationshipsByConcept = `
	SELECT source_id, target_id, rel_type, strength, evidence_score, explanation, created_at
	FROM mapping_relationships WHERE source_id = $1 OR target_id = $1;
`

// FindRelationships returns the union of edges into and out of the concept,
// deduplicated by (source, target, type).
func (r *PostgresMappingRepository) FindRelationships(ctx context.Context, conceptID string) ([]schemas.ConceptRelationship, error) {
	rows, err := r.pool.Query(ctx, selectRelationshipsByConcept, conceptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships for concept '%s': %w", conceptID, err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var out []schemas.ConceptRelationship
	for rows.Next() {
		var rel schemas.ConceptRelationship
		var relType, strength string
		if err := rows.Scan(&rel.SourceID, &rel.TargetID, &relType, &strength, &rel.EvidenceScore, &rel.Explanation, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relationship row: %w", err)
		}
		rel.Type = schemas.RelationshipType(relType)
		rel.Strength = schemas.RelationshipStrength(strength)
		if _, dup := seen[rel.Key()]; dup {
			continue
		}
		seen[rel.Key()] = struct{}{}
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

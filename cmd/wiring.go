package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
	"github.com/conceptmap-dev/conceptmap-cli/internal/config"
	"github.com/conceptmap-dev/conceptmap-cli/internal/knowledgegraph"
)

// repositories bundles the storage backends a command runs against, plus
// the cleanup that releases them.
type repositories struct {
	Concepts schemas.ConceptRepository
	Mappings schemas.MappingRepository
	Close    func()
}

// resolveDomain falls back to the configured default domain when the flag
// was not set. Every command taking a --domain flag resolves it here so they
// cannot disagree about the default.
func resolveDomain(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return appConfig.Integration.DefaultDomain
}

// buildRepositories constructs the repository pair for the configured
// backend. The in-memory backend is per-process: integrate and query must
// happen in the same invocation for its contents to be visible.
func buildRepositories(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repositories, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return &repositories{
			Concepts: knowledgegraph.NewInMemoryConceptRepository(logger),
			Mappings: knowledgegraph.NewInMemoryMappingRepository(logger),
			Close:    func() {},
		}, nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Storage.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		concepts, err := knowledgegraph.NewPostgresConceptRepository(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &repositories{
			Concepts: concepts,
			Mappings: knowledgegraph.NewPostgresMappingRepository(pool, logger),
			Close:    pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend '%s'", cfg.Storage.Backend)
	}
}

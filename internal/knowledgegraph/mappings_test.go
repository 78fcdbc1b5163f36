package knowledgegraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
)

func newEdge(t *testing.T, source, target string, relType schemas.RelationshipType) schemas.ConceptRelationship {
	t.Helper()
	rel, err := schemas.NewConceptRelationship(source, target, relType, schemas.StrengthStrong, 1.0)
	require.NoError(t, err)
	return rel
}

func newMapping(t *testing.T, domain string, ids []string, rels []schemas.ConceptRelationship) *schemas.ConceptMapping {
	t.Helper()
	m, err := schemas.NewConceptMapping(domain, "1", ids, rels)
	require.NoError(t, err)
	return m
}

func TestInMemoryMappingRepositoryFindByDomain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := NewInMemoryMappingRepository(zap.NewNop())

	missing, err := repo.FindByDomain(ctx, "algebra")
	require.NoError(t, err)
	assert.Nil(t, missing)

	saved := newMapping(t, "algebra", []string{"a", "b"}, []schemas.ConceptRelationship{
		newEdge(t, "a", "b", schemas.RelPrerequisite),
	})
	require.NoError(t, repo.Save(ctx, saved))

	found, err := repo.FindByDomain(ctx, "algebra")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, saved.ConceptIDs(), found.ConceptIDs())
}

func TestInMemoryMappingRepositoryFindRelationships(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("should union outgoing and incoming edges", func(t *testing.T) {
		t.Parallel()
		repo := NewInMemoryMappingRepository(zap.NewNop())
		require.NoError(t, repo.Save(ctx, newMapping(t, "algebra", []string{"a", "b", "c"},
			[]schemas.ConceptRelationship{
				newEdge(t, "a", "b", schemas.RelPrerequisite),
				newEdge(t, "b", "c", schemas.RelEnables),
			})))

		rels, err := repo.FindRelationships(ctx, "b")
		require.NoError(t, err)
		require.Len(t, rels, 2)
		assert.Equal(t, "a", rels[0].SourceID)
		assert.Equal(t, "b", rels[1].SourceID)
	})

	t.Run("should return nothing for an unknown concept", func(t *testing.T) {
		t.Parallel()
		repo := NewInMemoryMappingRepository(zap.NewNop())
		rels, err := repo.FindRelationships(ctx, "ghost")
		require.NoError(t, err)
		assert.Empty(t, rels)
	})

	t.Run("should span mappings from different domains", func(t *testing.T) {
		t.Parallel()
		repo := NewInMemoryMappingRepository(zap.NewNop())
		require.NoError(t, repo.Save(ctx, newMapping(t, "algebra", []string{"sets", "groups"},
			[]schemas.ConceptRelationship{newEdge(t, "sets", "groups", schemas.RelPrerequisite)})))
		require.NoError(t, repo.Save(ctx, newMapping(t, "analysis", []string{"sets", "measure"},
			[]schemas.ConceptRelationship{newEdge(t, "sets", "measure", schemas.RelPrerequisite)})))

		rels, err := repo.FindRelationships(ctx, "sets")
		require.NoError(t, err)
		assert.Len(t, rels, 2)
	})
}

func TestInMemoryMappingRepositorySaveIsDomainScoped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("should keep another domain's identical edge when a domain is replaced", func(t *testing.T) {
		t.Parallel()
		repo := NewInMemoryMappingRepository(zap.NewNop())

		// The same a -> b prerequisite edge exists in two domains' mappings.
		require.NoError(t, repo.Save(ctx, newMapping(t, "algebra", []string{"a", "b"},
			[]schemas.ConceptRelationship{newEdge(t, "a", "b", schemas.RelPrerequisite)})))
		require.NoError(t, repo.Save(ctx, newMapping(t, "topology", []string{"a", "b"},
			[]schemas.ConceptRelationship{newEdge(t, "a", "b", schemas.RelPrerequisite)})))

		// Replacing algebra's mapping with an edge-free one must not touch
		// the edge topology's mapping still contains.
		require.NoError(t, repo.Save(ctx, newMapping(t, "algebra", []string{"a", "b"}, nil)))

		rels, err := repo.FindRelationships(ctx, "a")
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, "b", rels[0].TargetID)

		kept, err := repo.FindByDomain(ctx, "topology")
		require.NoError(t, err)
		require.NotNil(t, kept)
		assert.Len(t, kept.Relationships(), 1)
	})

	t.Run("should drop the edge once no domain carries it", func(t *testing.T) {
		t.Parallel()
		repo := NewInMemoryMappingRepository(zap.NewNop())
		require.NoError(t, repo.Save(ctx, newMapping(t, "algebra", []string{"a", "b"},
			[]schemas.ConceptRelationship{newEdge(t, "a", "b", schemas.RelPrerequisite)})))
		require.NoError(t, repo.Save(ctx, newMapping(t, "algebra", []string{"a", "b"}, nil)))

		rels, err := repo.FindRelationships(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, rels)
	})
}

func TestInMemoryMappingRepositorySaveReplacesDomain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := NewInMemoryMappingRepository(zap.NewNop())
	require.NoError(t, repo.Save(ctx, newMapping(t, "algebra", []string{"a", "b", "c"},
		[]schemas.ConceptRelationship{
			newEdge(t, "a", "b", schemas.RelPrerequisite),
			newEdge(t, "a", "c", schemas.RelRelated),
		})))

	// Replace the domain's mapping with a smaller edge set.
	require.NoError(t, repo.Save(ctx, newMapping(t, "algebra", []string{"a", "b"},
		[]schemas.ConceptRelationship{newEdge(t, "a", "b", schemas.RelPrerequisite)})))

	rels, err := repo.FindRelationships(ctx, "a")
	require.NoError(t, err)
	require.Len(t, rels, 1, "old domain edges must be pruned")
	assert.Equal(t, "b", rels[0].TargetID)

	stale, err := repo.FindRelationships(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, stale)
}

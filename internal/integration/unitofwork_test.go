package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
	"github.com/conceptmap-dev/conceptmap-cli/internal/knowledgegraph"
)

func TestUnitOfWorkCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	concept := func(t *testing.T, id string) *schemas.Concept {
		t.Helper()
		c, err := schemas.NewConcept(schemas.ConceptRecord{
			ID:                  id,
			Name:                "Concept " + id,
			FormalStatement:     "A formal statement.",
			InformalDescription: "An informal description long enough to validate.",
			Domain:              "algebra",
		})
		require.NoError(t, err)
		return c
	}

	t.Run("should commit concepts then mapping", func(t *testing.T) {
		t.Parallel()
		concepts := knowledgegraph.NewInMemoryConceptRepository(zap.NewNop())
		mappings := knowledgegraph.NewInMemoryMappingRepository(zap.NewNop())

		mapping, err := schemas.NewConceptMapping("algebra", "1", []string{"sets"}, nil)
		require.NoError(t, err)

		uow := newUnitOfWork(concepts, mappings, zap.NewNop())
		uow.StageConcepts([]*schemas.Concept{concept(t, "sets")})
		uow.StageMapping(mapping)
		require.NoError(t, uow.Commit(ctx))

		saved, err := concepts.FindByID(ctx, "sets")
		require.NoError(t, err)
		assert.NotNil(t, saved)

		found, err := mappings.FindByDomain(ctx, "algebra")
		require.NoError(t, err)
		assert.NotNil(t, found)
	})

	t.Run("should abort the mapping when the concept stage fails", func(t *testing.T) {
		t.Parallel()
		concepts := &failingConceptRepo{knowledgegraph.NewInMemoryConceptRepository(zap.NewNop())}
		mappings := knowledgegraph.NewInMemoryMappingRepository(zap.NewNop())

		mapping, err := schemas.NewConceptMapping("algebra", "1", []string{"sets"}, nil)
		require.NoError(t, err)

		uow := newUnitOfWork(concepts, mappings, zap.NewNop())
		uow.StageConcepts([]*schemas.Concept{concept(t, "sets")})
		uow.StageMapping(mapping)

		commitErr := uow.Commit(ctx)
		require.Error(t, commitErr)

		var ce *CommitError
		require.ErrorAs(t, commitErr, &ce)
		assert.Equal(t, StageConcepts, ce.Stage)

		found, err := mappings.FindByDomain(ctx, "algebra")
		require.NoError(t, err)
		assert.Nil(t, found, "staged mapping must not be written")
	})

	t.Run("should identify a mapping-stage failure after concepts committed", func(t *testing.T) {
		t.Parallel()
		concepts := knowledgegraph.NewInMemoryConceptRepository(zap.NewNop())
		mappings := &failingMappingRepo{knowledgegraph.NewInMemoryMappingRepository(zap.NewNop())}

		mapping, err := schemas.NewConceptMapping("algebra", "1", []string{"sets"}, nil)
		require.NoError(t, err)

		uow := newUnitOfWork(concepts, mappings, zap.NewNop())
		uow.StageConcepts([]*schemas.Concept{concept(t, "sets")})
		uow.StageMapping(mapping)

		commitErr := uow.Commit(ctx)
		require.Error(t, commitErr)

		var ce *CommitError
		require.ErrorAs(t, commitErr, &ce)
		assert.Equal(t, StageMapping, ce.Stage)

		saved, findErr := concepts.FindByID(ctx, "sets")
		require.NoError(t, findErr)
		assert.NotNil(t, saved, "committed concepts stay committed")
	})
}

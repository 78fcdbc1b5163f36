package knowledgegraph

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newConcept(t *testing.T, id, domain string, mutate ...func(*schemas.ConceptRecord)) *schemas.Concept {
	t.Helper()
	rec := schemas.ConceptRecord{
		ID:                  id,
		Name:                "Concept " + id,
		FormalStatement:     "A formal statement for " + id,
		InformalDescription: "An informal description long enough to validate.",
		Domain:              domain,
		ConceptType:         string(schemas.TypeDefinition),
		Level:               string(schemas.LevelUndergraduate),
	}
	for _, fn := range mutate {
		fn(&rec)
	}
	c, err := schemas.NewConcept(rec)
	require.NoError(t, err)
	return c
}

func TestInMemoryConceptRepositoryFindByID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("should return the saved concept and count a hit", func(t *testing.T) {
		t.Parallel()
		repo := NewInMemoryConceptRepository(zap.NewNop())
		require.NoError(t, repo.Save(ctx, newConcept(t, "groups", "algebra")))

		found, err := repo.FindByID(ctx, "groups")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "groups", found.ID)

		stats := repo.GetStatistics()
		assert.EqualValues(t, 1, stats.CacheHits)
		assert.EqualValues(t, 0, stats.CacheMisses)
	})

	t.Run("should return nil without error on a miss and count it", func(t *testing.T) {
		t.Parallel()
		repo := NewInMemoryConceptRepository(zap.NewNop())

		found, err := repo.FindByID(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, found)

		stats := repo.GetStatistics()
		assert.EqualValues(t, 1, stats.Queries)
		assert.EqualValues(t, 1, stats.CacheMisses)
	})
}

func TestInMemoryConceptRepositorySave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("should replace the stored concept on re-save", func(t *testing.T) {
		t.Parallel()
		repo := NewInMemoryConceptRepository(zap.NewNop())
		require.NoError(t, repo.Save(ctx, newConcept(t, "groups", "algebra")))

		updated := newConcept(t, "groups", "algebra")
		updated.Name = "Group Theory"
		require.NoError(t, repo.Save(ctx, updated))

		found, err := repo.FindByID(ctx, "groups")
		require.NoError(t, err)
		assert.Equal(t, "Group Theory", found.Name)
	})

	t.Run("should move the id between index buckets on attribute change", func(t *testing.T) {
		t.Parallel()
		repo := NewInMemoryConceptRepository(zap.NewNop())
		require.NoError(t, repo.Save(ctx, newConcept(t, "groups", "algebra", func(r *schemas.ConceptRecord) {
			r.Tags = []string{"structures"}
		})))

		moved := newConcept(t, "groups", "topology", func(r *schemas.ConceptRecord) {
			r.Level = string(schemas.LevelGraduate)
			r.Tags = []string{"spaces"}
		})
		require.NoError(t, repo.Save(ctx, moved))

		stale, err := repo.FindByDomain(ctx, "algebra")
		require.NoError(t, err)
		assert.Empty(t, stale, "old domain bucket must not retain the id")

		current, err := repo.FindByDomain(ctx, "topology")
		require.NoError(t, err)
		require.Len(t, current, 1)

		byTag, err := repo.Search(ctx, schemas.SearchCriteria{Tags: []string{"structures"}})
		require.NoError(t, err)
		assert.Empty(t, byTag, "old tag bucket must not retain the id")
	})

	t.Run("should record a last-updated timestamp", func(t *testing.T) {
		t.Parallel()
		repo := NewInMemoryConceptRepository(zap.NewNop())
		assert.True(t, repo.GetStatistics().LastUpdated.IsZero())

		require.NoError(t, repo.Save(ctx, newConcept(t, "groups", "algebra")))
		assert.False(t, repo.GetStatistics().LastUpdated.IsZero())
	})
}

func TestInMemoryConceptRepositoryFindByDomain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := NewInMemoryConceptRepository(zap.NewNop())
	require.NoError(t, repo.SaveMany(ctx, []*schemas.Concept{
		newConcept(t, "rings", "algebra"),
		newConcept(t, "groups", "algebra"),
		newConcept(t, "limits", "analysis"),
	}))

	found, err := repo.FindByDomain(ctx, "algebra")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "groups", found[0].ID, "results are sorted by id")
	assert.Equal(t, "rings", found[1].ID)

	none, err := repo.FindByDomain(ctx, "geometry")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryConceptRepositorySearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	seed := func(t *testing.T) *InMemoryConceptRepository {
		t.Helper()
		repo := NewInMemoryConceptRepository(zap.NewNop())
		require.NoError(t, repo.SaveMany(ctx, []*schemas.Concept{
			newConcept(t, "groups", "algebra", func(r *schemas.ConceptRecord) {
				r.Tags = []string{"structures"}
			}),
			newConcept(t, "rings", "algebra", func(r *schemas.ConceptRecord) {
				r.Level = string(schemas.LevelGraduate)
				r.Tags = []string{"structures"}
			}),
			newConcept(t, "limits", "analysis", func(r *schemas.ConceptRecord) {
				r.InformalDescription = "The behavior of a function near a point."
			}),
		}))
		return repo
	}

	t.Run("should AND-combine every populated criterion", func(t *testing.T) {
		t.Parallel()
		repo := seed(t)
		found, err := repo.Search(ctx, schemas.SearchCriteria{
			Domain: "algebra",
			Level:  schemas.LevelUndergraduate,
			Tags:   []string{"structures"},
		})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "groups", found[0].ID)
	})

	t.Run("should apply keyword filters over indexed candidates", func(t *testing.T) {
		t.Parallel()
		repo := seed(t)
		found, err := repo.Search(ctx, schemas.SearchCriteria{
			Domain:   "analysis",
			Keywords: "FUNCTION",
		})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "limits", found[0].ID)
	})

	t.Run("should fall back to a full scan with no indexed criteria", func(t *testing.T) {
		t.Parallel()
		repo := seed(t)
		found, err := repo.Search(ctx, schemas.SearchCriteria{Keywords: "concept"})
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("should return nothing for an empty index bucket", func(t *testing.T) {
		t.Parallel()
		repo := seed(t)
		found, err := repo.Search(ctx, schemas.SearchCriteria{Domain: "geometry", Keywords: "concept"})
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestInMemoryConceptRepositoryConcurrency(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewInMemoryConceptRepository(zap.NewNop())

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := fmt.Sprintf("concept_%d_%d", w, i)
				assert.NoError(t, repo.Save(ctx, newConcept(t, id, "stress")))
				_, err := repo.FindByID(ctx, id)
				assert.NoError(t, err)
				_, err = repo.Search(ctx, schemas.SearchCriteria{Domain: "stress"})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	found, err := repo.FindByDomain(ctx, "stress")
	require.NoError(t, err)
	assert.Len(t, found, writers*perWriter)
}

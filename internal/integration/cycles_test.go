package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
)

func edge(t *testing.T, source, target string) schemas.ConceptRelationship {
	t.Helper()
	rel, err := schemas.NewConceptRelationship(source, target, schemas.RelPrerequisite, schemas.StrengthStrong, 1.0)
	require.NoError(t, err)
	return rel
}

func TestDetectCycle(t *testing.T) {
	t.Parallel()

	t.Run("should accept an empty edge set", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, detectCycle(nil))
	})

	t.Run("should accept a DAG", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, detectCycle([]schemas.ConceptRelationship{
			edge(t, "a", "b"),
			edge(t, "a", "c"),
			edge(t, "b", "d"),
			edge(t, "c", "d"),
		}))
	})

	t.Run("should accept a diamond with shared ancestors", func(t *testing.T) {
		t.Parallel()
		// d is reachable twice; reachability is not a cycle.
		assert.NoError(t, detectCycle([]schemas.ConceptRelationship{
			edge(t, "a", "b"),
			edge(t, "b", "d"),
			edge(t, "a", "d"),
		}))
	})

	t.Run("should report a direct cycle with its path", func(t *testing.T) {
		t.Parallel()
		err := detectCycle([]schemas.ConceptRelationship{
			edge(t, "a", "b"),
			edge(t, "b", "a"),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCycleDetected)

		var cycleErr *CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []string{"a", "b", "a"}, cycleErr.Path)
	})

	t.Run("should report only the cycle segment of a longer walk", func(t *testing.T) {
		t.Parallel()
		err := detectCycle([]schemas.ConceptRelationship{
			edge(t, "a", "b"),
			edge(t, "b", "c"),
			edge(t, "c", "d"),
			edge(t, "d", "b"),
		})
		require.Error(t, err)

		var cycleErr *CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []string{"b", "c", "d", "b"}, cycleErr.Path, "the entry walk from a is excluded")
	})
}

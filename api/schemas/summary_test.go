package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConceptIntegrationSummary(t *testing.T) {
	t.Parallel()

	var s ConceptIntegrationSummary
	s.AddError("save failed")
	s.AddWarning("record 3 skipped")
	s.AddWarning("record 7 skipped")

	assert.Equal(t, []string{"save failed"}, s.Errors)
	assert.Len(t, s.Warnings, 2)
}

func TestRepositoryStatisticsHitRatio(t *testing.T) {
	t.Parallel()

	assert.Zero(t, RepositoryStatistics{}.HitRatio())
	assert.InDelta(t, 0.75, RepositoryStatistics{CacheHits: 3, CacheMisses: 1}.HitRatio(), 1e-9)
	assert.InDelta(t, 0.0, RepositoryStatistics{CacheMisses: 5}.HitRatio(), 1e-9)
}

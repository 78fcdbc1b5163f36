package schemas

import (
	"time"
)

// IntegrationResult classifies the overall outcome of one integration run.
type IntegrationResult string

const (
	ResultSuccess         IntegrationResult = "success"
	ResultPartialSuccess  IntegrationResult = "partial_success"
	ResultValidationError IntegrationResult = "validation_error"
	ResultStorageError    IntegrationResult = "storage_error"
	ResultDependencyError IntegrationResult = "dependency_error"
)

// ConceptIntegrationSummary is the sole contract an integration run exposes
// to its caller: a result classification, counters, and the accumulated
// error and warning messages. No exception or stack trace escapes Execute.
type ConceptIntegrationSummary struct {
	Result               IntegrationResult `json:"result"`
	Domain               string            `json:"domain"`
	ConceptsProcessed    int               `json:"concepts_processed"`
	ConceptsCreated      int               `json:"concepts_created"`
	ConceptsUpdated      int               `json:"concepts_updated"`
	RelationshipsCreated int               `json:"relationships_created"`
	Errors               []string          `json:"errors,omitempty"`
	Warnings             []string          `json:"warnings,omitempty"`
	ProcessingTimeMS     int64             `json:"processing_time_ms"`
	Timestamp            time.Time         `json:"timestamp"`
}

// AddError records a fatal or partial failure message.
func (s *ConceptIntegrationSummary) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// AddWarning records a non-fatal, per-record degradation.
func (s *ConceptIntegrationSummary) AddWarning(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// IntegrationEvent is the best-effort notification published after a run.
type IntegrationEvent struct {
	Domain               string            `json:"domain"`
	Result               IntegrationResult `json:"result"`
	ConceptsProcessed    int               `json:"concepts_processed"`
	ConceptsCreated      int               `json:"concepts_created"`
	ConceptsUpdated      int               `json:"concepts_updated"`
	RelationshipsCreated int               `json:"relationships_created"`
	Timestamp            time.Time         `json:"timestamp"`
}

// RepositoryStatistics carries the running counters a repository maintains
// alongside its data. A hit is a FindByID that located the concept, a miss
// one that did not.
type RepositoryStatistics struct {
	Queries     int64     `json:"queries"`
	CacheHits   int64     `json:"cache_hits"`
	CacheMisses int64     `json:"cache_misses"`
	LastUpdated time.Time `json:"last_updated"`
}

// HitRatio returns hits/(hits+misses), or zero before any lookup.
func (s RepositoryStatistics) HitRatio() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

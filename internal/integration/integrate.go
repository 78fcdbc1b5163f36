// Package integration holds the use cases that move concepts from external
// sources into the knowledge graph: the integration pipeline, the cycle
// validator guarding mapping commits, and learning-path generation.
package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
)

// mappingVersion stamps mappings produced by this pipeline.
const mappingVersion = "1.0"

// IntegrateConceptsUseCase runs the fixed pipeline that loads, validates,
// diffs, saves and links a batch of concepts for one domain. Every internal
// failure is converted into a summary entry; Execute never lets an error or
// panic escape.
type IntegrateConceptsUseCase struct {
	loader    schemas.ConceptLoader
	concepts  schemas.ConceptRepository
	mappings  schemas.MappingRepository
	publisher schemas.EventPublisher // optional
	log       *zap.Logger
}

// NewIntegrateConceptsUseCase wires the pipeline. The publisher may be nil,
// in which case the publish step is skipped.
func NewIntegrateConceptsUseCase(
	loader schemas.ConceptLoader,
	concepts schemas.ConceptRepository,
	mappings schemas.MappingRepository,
	publisher schemas.EventPublisher,
	logger *zap.Logger,
) *IntegrateConceptsUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrateConceptsUseCase{
		loader:    loader,
		concepts:  concepts,
		mappings:  mappings,
		publisher: publisher,
		log:       logger.Named("IntegrateConcepts"),
	}
}

// Execute runs the pipeline against one source for one domain. forceUpdate
// controls whether concepts that already exist in the repository are
// overwritten or skipped with a warning.
func (uc *IntegrateConceptsUseCase) Execute(ctx context.Context, source, domain string, forceUpdate bool) (summary *schemas.ConceptIntegrationSummary) {
	started := time.Now()
	summary = &schemas.ConceptIntegrationSummary{
		Domain:    domain,
		Timestamp: started.UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			uc.log.Error("Integration pipeline panicked", zap.Any("panic", r))
			summary.AddError(fmt.Sprintf("internal error: %v", r))
			summary.Result = schemas.ResultDependencyError
		}
		summary.ProcessingTimeMS = time.Since(started).Milliseconds()
	}()

	// Step 1: load. A loader failure with nothing salvaged is fatal.
	records, err := uc.loader.Load(ctx, source)
	if err != nil {
		uc.log.Error("Concept source failed to load", zap.String("source", source), zap.Error(err))
		summary.AddError(fmt.Sprintf("failed to load source '%s': %v", source, err))
		if len(records) == 0 {
			summary.Result = schemas.ResultValidationError
			return summary
		}
	}

	uc.run(ctx, records, domain, forceUpdate, summary)
	return summary
}

// ExecuteAll runs the pipeline once over the combined records of several
// sources, so relationships declared across file boundaries land in the same
// mapping. Loaders implementing MultiSourceLoader read the sources
// concurrently; others are drained one source at a time.
func (uc *IntegrateConceptsUseCase) ExecuteAll(ctx context.Context, sources []string, domain string, forceUpdate bool) (summary *schemas.ConceptIntegrationSummary) {
	started := time.Now()
	summary = &schemas.ConceptIntegrationSummary{
		Domain:    domain,
		Timestamp: started.UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			uc.log.Error("Integration pipeline panicked", zap.Any("panic", r))
			summary.AddError(fmt.Sprintf("internal error: %v", r))
			summary.Result = schemas.ResultDependencyError
		}
		summary.ProcessingTimeMS = time.Since(started).Milliseconds()
	}()

	records, err := uc.loadSources(ctx, sources)
	if err != nil {
		uc.log.Error("Concept sources failed to load", zap.Strings("sources", sources), zap.Error(err))
		summary.AddError(fmt.Sprintf("failed to load sources: %v", err))
		summary.Result = schemas.ResultValidationError
		return summary
	}

	uc.run(ctx, records, domain, forceUpdate, summary)
	return summary
}

// loadSources reads every source, preferring the loader's concurrent
// multi-source path when it offers one.
func (uc *IntegrateConceptsUseCase) loadSources(ctx context.Context, sources []string) ([]schemas.ConceptRecord, error) {
	if multi, ok := uc.loader.(schemas.MultiSourceLoader); ok {
		return multi.LoadAll(ctx, sources)
	}

	var all []schemas.ConceptRecord
	for _, source := range sources {
		records, err := uc.loader.Load(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("failed to load source '%s': %w", source, err)
		}
		all = append(all, records...)
	}
	return all, nil
}

// run is the shared pipeline body behind Execute and ExecuteAll.
func (uc *IntegrateConceptsUseCase) run(ctx context.Context, records []schemas.ConceptRecord, domain string, forceUpdate bool, summary *schemas.ConceptIntegrationSummary) {
	// Step 2: format-validate; per-record failures are warnings.
	valid := uc.validateFormats(records, summary)

	// Step 3: promote records to entities.
	batch := uc.buildEntities(valid, domain, summary)

	// Step 4: best-effort existence check.
	existing := uc.checkExisting(ctx, batch, summary)

	// Step 5: split into create/update and commit through the unit of work;
	// relationships derived from the batch ride the same commit.
	uc.saveBatch(ctx, batch, existing, domain, forceUpdate, summary)

	summary.Result = uc.assess(summary)

	// Step 6: best-effort event publish.
	uc.publish(ctx, summary)
}

// validateFormats filters out records failing format validation, degrading
// each to a warning.
func (uc *IntegrateConceptsUseCase) validateFormats(records []schemas.ConceptRecord, summary *schemas.ConceptIntegrationSummary) []schemas.ConceptRecord {
	valid := make([]schemas.ConceptRecord, 0, len(records))
	for _, rec := range records {
		if err := rec.ValidateFormat(); err != nil {
			summary.AddWarning(fmt.Sprintf("record '%s' failed format validation: %v", rec.ID, err))
			continue
		}
		valid = append(valid, rec)
	}
	return valid
}

// buildEntities converts records into Concept entities. A record whose
// domain is unset inherits the run's domain. Conversion failures degrade to
// warnings so the rest of the batch proceeds.
func (uc *IntegrateConceptsUseCase) buildEntities(records []schemas.ConceptRecord, domain string, summary *schemas.ConceptIntegrationSummary) []*schemas.Concept {
	batch := make([]*schemas.Concept, 0, len(records))
	for _, rec := range records {
		if rec.Domain == "" {
			rec.Domain = domain
		}
		concept, err := schemas.NewConcept(rec)
		if err != nil {
			summary.AddWarning(fmt.Sprintf("record '%s' rejected by domain validation: %v", rec.ID, err))
			continue
		}
		batch = append(batch, concept)
	}
	return batch
}

// checkExisting looks up every batch member in the repository. Lookup errors
// degrade to warnings; the affected concept is then treated as new.
func (uc *IntegrateConceptsUseCase) checkExisting(ctx context.Context, batch []*schemas.Concept, summary *schemas.ConceptIntegrationSummary) schemas.IDSet {
	existing := make(schemas.IDSet)
	for _, concept := range batch {
		found, err := uc.concepts.FindByID(ctx, concept.ID)
		if err != nil {
			summary.AddWarning(fmt.Sprintf("existence check for '%s' failed: %v", concept.ID, err))
			continue
		}
		if found != nil {
			existing.Add(concept.ID)
		}
	}
	return existing
}

// saveBatch decides create vs. update per concept, derives the relationship
// edges declared inside the batch, validates the whole edge set for cycles,
// and commits concepts and mapping through the unit of work.
func (uc *IntegrateConceptsUseCase) saveBatch(ctx context.Context, batch []*schemas.Concept, existing schemas.IDSet, domain string, forceUpdate bool, summary *schemas.ConceptIntegrationSummary) {
	var toSave []*schemas.Concept
	var created, updated int
	for _, concept := range batch {
		if existing.Has(concept.ID) {
			if !forceUpdate {
				summary.AddWarning(fmt.Sprintf("concept '%s' exists, skipping (use force to update)", concept.ID))
				continue
			}
			updated++
		} else {
			created++
		}
		toSave = append(toSave, concept)
	}
	if len(toSave) == 0 {
		return
	}

	uow := newUnitOfWork(uc.concepts, uc.mappings, uc.log)
	uow.StageConcepts(toSave)

	mapping, relationshipCount := uc.buildMapping(toSave, domain, summary)
	if mapping != nil {
		uow.StageMapping(mapping)
	}

	if err := uow.Commit(ctx); err != nil {
		stage := StageConcepts
		var commitErr *CommitError
		if errors.As(err, &commitErr) {
			stage = commitErr.Stage
		}
		if stage == StageConcepts {
			// Persistence failure is fatal: nothing was written.
			summary.AddError(fmt.Sprintf("failed to persist concept batch: %v", err))
			return
		}
		// Concepts committed, mapping did not. Counts stand.
		summary.AddError(fmt.Sprintf("failed to persist relationship mapping: %v", err))
		summary.ConceptsProcessed = len(toSave)
		summary.ConceptsCreated = created
		summary.ConceptsUpdated = updated
		return
	}

	summary.ConceptsProcessed = len(toSave)
	summary.ConceptsCreated = created
	summary.ConceptsUpdated = updated
	summary.RelationshipsCreated = relationshipCount
}

// buildMapping derives prerequisite/enables edges from the batch's declared
// sets, restricted to ids present in the batch, runs the whole-graph cycle
// check, and wraps the result in a ConceptMapping. Failures are recorded as
// errors and leave the concept save unaffected.
func (uc *IntegrateConceptsUseCase) buildMapping(batch []*schemas.Concept, domain string, summary *schemas.ConceptIntegrationSummary) (*schemas.ConceptMapping, int) {
	batchIDs := make(schemas.IDSet, len(batch))
	for _, concept := range batch {
		batchIDs.Add(concept.ID)
	}

	seen := make(map[string]struct{})
	var edges []schemas.ConceptRelationship
	addEdge := func(sourceID, targetID string, relType schemas.RelationshipType) {
		rel, err := schemas.NewConceptRelationship(sourceID, targetID, relType, schemas.StrengthStrong, 1.0)
		if err != nil {
			summary.AddWarning(fmt.Sprintf("skipping relationship %s->%s: %v", sourceID, targetID, err))
			return
		}
		if _, dup := seen[rel.Key()]; dup {
			return
		}
		seen[rel.Key()] = struct{}{}
		rel.ID = uuid.NewString()
		edges = append(edges, rel)
	}

	for _, concept := range batch {
		for prereq := range concept.Prerequisites {
			if batchIDs.Has(prereq) {
				addEdge(prereq, concept.ID, schemas.RelPrerequisite)
			}
		}
		for enabled := range concept.Enables {
			if batchIDs.Has(enabled) {
				addEdge(concept.ID, enabled, schemas.RelEnables)
			}
		}
	}

	if err := detectCycle(edges); err != nil {
		summary.AddError(fmt.Sprintf("relationship graph rejected: %v", err))
		return nil, 0
	}

	mapping, err := schemas.NewConceptMapping(domain, mappingVersion, batchIDs.Sorted(), edges)
	if err != nil {
		summary.AddError(fmt.Sprintf("failed to build concept mapping: %v", err))
		return nil, 0
	}
	return mapping, len(edges)
}

// assess classifies the run once every step has finished.
func (uc *IntegrateConceptsUseCase) assess(summary *schemas.ConceptIntegrationSummary) schemas.IntegrationResult {
	if len(summary.Errors) > 0 {
		if summary.ConceptsCreated > 0 || summary.ConceptsUpdated > 0 {
			return schemas.ResultPartialSuccess
		}
		return schemas.ResultStorageError
	}
	if summary.ConceptsProcessed == 0 {
		return schemas.ResultValidationError
	}
	return schemas.ResultSuccess
}

// publish emits the best-effort run event. Failures become warnings.
func (uc *IntegrateConceptsUseCase) publish(ctx context.Context, summary *schemas.ConceptIntegrationSummary) {
	if uc.publisher == nil {
		return
	}
	event := schemas.IntegrationEvent{
		Domain:               summary.Domain,
		Result:               summary.Result,
		ConceptsProcessed:    summary.ConceptsProcessed,
		ConceptsCreated:      summary.ConceptsCreated,
		ConceptsUpdated:      summary.ConceptsUpdated,
		RelationshipsCreated: summary.RelationshipsCreated,
		Timestamp:            time.Now().UTC(),
	}
	if err := uc.publisher.Publish(ctx, event); err != nil {
		summary.AddWarning(fmt.Sprintf("event publish failed: %v", err))
	}
}

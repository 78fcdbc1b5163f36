package integration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
)

// unitOfWork stages one integration run's writes - the concept batch and the
// derived mapping - and commits them in dependency order. The two
// repositories have no shared transaction, so the coordination lives here:
// concepts commit first, and a concept failure aborts the staged mapping
// outright. A mapping failure after concepts committed cannot be rolled
// back; it is surfaced as a StageMapping error and logged as the known
// inconsistency it is, so operators can re-run the relationship build.
type unitOfWork struct {
	concepts schemas.ConceptRepository
	mappings schemas.MappingRepository
	log      *zap.Logger

	stagedConcepts []*schemas.Concept
	stagedMapping  *schemas.ConceptMapping
}

// CommitStage names the phase a commit error originated from.
type CommitStage int

const (
	StageConcepts CommitStage = iota
	StageMapping
)

// CommitError wraps a commit failure with the stage that produced it.
type CommitError struct {
	Stage CommitStage
	Err   error
}

func (e *CommitError) Error() string { return e.Err.Error() }
func (e *CommitError) Unwrap() error { return e.Err }

func newUnitOfWork(concepts schemas.ConceptRepository, mappings schemas.MappingRepository, log *zap.Logger) *unitOfWork {
	return &unitOfWork{
		concepts: concepts,
		mappings: mappings,
		log:      log,
	}
}

// StageConcepts records the concept batch to be written on Commit.
func (u *unitOfWork) StageConcepts(concepts []*schemas.Concept) {
	u.stagedConcepts = concepts
}

// StageMapping records the mapping to be written after the concepts.
func (u *unitOfWork) StageMapping(mapping *schemas.ConceptMapping) {
	u.stagedMapping = mapping
}

// Commit writes the staged concepts, then the staged mapping. The returned
// error is always a *CommitError identifying the failed stage.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if len(u.stagedConcepts) > 0 {
		if err := u.concepts.SaveMany(ctx, u.stagedConcepts); err != nil {
			if u.stagedMapping != nil {
				u.log.Warn("Concept commit failed; staged mapping discarded",
					zap.String("domain", u.stagedMapping.Domain()),
					zap.Error(err))
			}
			return &CommitError{Stage: StageConcepts, Err: fmt.Errorf("failed to save concept batch: %w", err)}
		}
	}

	if u.stagedMapping != nil {
		if err := u.mappings.Save(ctx, u.stagedMapping); err != nil {
			// Compensating action: the concepts committed above stay; record
			// what a re-run needs to repair.
			u.log.Error("Mapping commit failed after concepts were saved; domain mapping is stale",
				zap.String("domain", u.stagedMapping.Domain()),
				zap.Int("concepts_committed", len(u.stagedConcepts)),
				zap.Error(err))
			return &CommitError{Stage: StageMapping, Err: fmt.Errorf("failed to save mapping: %w", err)}
		}
	}
	return nil
}

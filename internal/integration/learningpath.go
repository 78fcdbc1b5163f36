package integration

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
)

// GenerateLearningPathUseCase orders the prerequisite ancestry of requested
// target concepts into study sequences. The ordering is a topological sort
// (Kahn's algorithm) restricted to the ancestor subgraph of each target, so
// foundational concepts come first and the target itself comes last.
type GenerateLearningPathUseCase struct {
	mappings schemas.MappingRepository
	log      *zap.Logger
}

// NewGenerateLearningPathUseCase wires the use case.
func NewGenerateLearningPathUseCase(mappings schemas.MappingRepository, logger *zap.Logger) *GenerateLearningPathUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerateLearningPathUseCase{
		mappings: mappings,
		log:      logger.Named("GenerateLearningPath"),
	}
}

// Execute builds one ordered path per requested target found in the
// domain's mapping. Targets absent from the mapping are logged and skipped;
// a missing domain mapping fails the whole call. maxDepth bounds how far up
// the prerequisite ancestry each path reaches; values below 1 default to 10.
func (uc *GenerateLearningPathUseCase) Execute(ctx context.Context, targetIDs []string, domain string, maxDepth int) (map[string][]string, error) {
	if maxDepth < 1 {
		maxDepth = 10
	}

	mapping, err := uc.mappings.FindByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping for domain '%s': %w", domain, err)
	}
	if mapping == nil {
		return nil, fmt.Errorf("no concept mapping exists for domain '%s'", domain)
	}

	paths := make(map[string][]string, len(targetIDs))
	for _, target := range targetIDs {
		if !mapping.Contains(target) {
			uc.log.Warn("Requested target is not in the domain mapping; skipping",
				zap.String("target", target),
				zap.String("domain", domain))
			continue
		}
		paths[target] = uc.buildPath(mapping, target, maxDepth)
	}
	return paths, nil
}

// buildPath collects the target's prerequisite ancestors up to maxDepth
// levels, then runs Kahn's algorithm over that subgraph. The visited set
// breaks true cycles during collection; ties in the sort are resolved
// lexicographically so output is deterministic.
func (uc *GenerateLearningPathUseCase) buildPath(mapping *schemas.ConceptMapping, target string, maxDepth int) []string {
	members := collectAncestors(mapping, target, maxDepth)

	// In-degree restricted to the subgraph: an edge prereq -> dependent
	// exists when dependent lists prereq and both are members.
	inDegree := make(map[string]int, len(members))
	dependents := make(map[string][]string, len(members))
	for id := range members {
		inDegree[id] += 0
		for _, prereq := range mapping.PrerequisitesOf(id) {
			if !members.Has(prereq) {
				continue
			}
			inDegree[id]++
			dependents[prereq] = append(dependents[prereq], id)
		}
	}

	var ready []string
	for id, degree := range inDegree {
		if degree == 0 && id != target {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	ordered := make([]string, 0, len(members))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, id)

		var unlocked []string
		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 && dependent != target {
				unlocked = append(unlocked, dependent)
			}
		}
		if len(unlocked) > 0 {
			sort.Strings(unlocked)
			ready = mergeSorted(ready, unlocked)
		}
	}

	// Anything left over sits on a cycle that survived upstream validation.
	// Emit it in stable order rather than dropping it silently.
	if len(ordered) != len(members)-1 {
		var leftover []string
		placed := schemas.NewIDSet(ordered...)
		for id := range members {
			if id != target && !placed.Has(id) {
				leftover = append(leftover, id)
			}
		}
		if len(leftover) > 0 {
			sort.Strings(leftover)
			uc.log.Warn("Prerequisite subgraph contains a cycle; appending unordered remainder",
				zap.String("target", target),
				zap.Strings("concepts", leftover))
			ordered = append(ordered, leftover...)
		}
	}

	return append(ordered, target)
}

// collectAncestors walks prerequisite edges upward from target, bounded by
// maxDepth levels and guarded by a visited set so cycles terminate.
func collectAncestors(mapping *schemas.ConceptMapping, target string, maxDepth int) schemas.IDSet {
	members := schemas.NewIDSet(target)
	frontier := []string{target}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, prereq := range mapping.PrerequisitesOf(id) {
				if members.Has(prereq) {
					continue
				}
				members.Add(prereq)
				next = append(next, prereq)
			}
		}
		frontier = next
	}
	return members
}

// mergeSorted merges two sorted string slices.
func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

package integration

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
)

// ErrCycleDetected marks a relationship set whose "learn source before
// target" ordering cannot be satisfied.
var ErrCycleDetected = errors.New("cycle detected in concept relationships")

// CycleError reports the concrete offending node sequence so callers can
// name the cycle instead of just rejecting the batch.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// detectCycle runs a DFS over the directed "source precedes target" graph
// formed by the given edges. Both prerequisite and enables edges point from
// the earlier concept to the later one, so any directed cycle is a genuine
// ordering contradiction. Returns nil when the graph is a DAG.
//
// Entity-level guards only block two-node cycles; this is the dedicated
// whole-graph check that runs before a mapping is committed.
func detectCycle(relationships []schemas.ConceptRelationship) error {
	adjacent := make(map[string][]string)
	for _, rel := range relationships {
		adjacent[rel.SourceID] = append(adjacent[rel.SourceID], rel.TargetID)
	}
	roots := make([]string, 0, len(adjacent))
	for id, targets := range adjacent {
		sort.Strings(targets)
		roots = append(roots, id)
	}
	sort.Strings(roots)

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int)
	var stack []string

	var visit func(id string) *CycleError
	visit = func(id string) *CycleError {
		state[id] = inProgress
		stack = append(stack, id)
		for _, next := range adjacent[id] {
			switch state[next] {
			case inProgress:
				// Slice the stack back to the first occurrence of next to
				// report only the cycle itself.
				start := 0
				for i, node := range stack {
					if node == next {
						start = i
						break
					}
				}
				path := append(append([]string{}, stack[start:]...), next)
				return &CycleError{Path: path}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, root := range roots {
		if state[root] == unvisited {
			if cycle := visit(root); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

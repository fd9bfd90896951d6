package capability

import (
	"sort"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// DFS colors for cycle detection.
const (
	colorWhite = 0 // unvisited
	colorGray  = 1 // on the current DFS path
	colorBlack = 2 // fully explored
)

// DetectCycle runs a full DAG check over workflow tasks and returns the
// ids of one detected cycle, or nil when the graph is acyclic. Unknown
// dependency references are ignored here; the missing-edge validator
// reports them separately.
func DetectCycle(tasks []spec.Task) []string {
	edges := make(map[string][]string, len(tasks))
	known := make(map[string]bool, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
		ids = append(ids, t.ID)
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if known[dep] {
				// Edge dep -> t: t runs after dep.
				edges[dep] = append(edges[dep], t.ID)
			}
		}
	}
	// Deterministic traversal order for stable cycle reports.
	sort.Strings(ids)

	colors := make(map[string]int, len(ids))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = colorGray
		stack = append(stack, id)
		for _, next := range edges[id] {
			switch colors[next] {
			case colorGray:
				// Back edge: slice the cycle out of the DFS stack.
				for i, n := range stack {
					if n == next {
						cycle = append([]string{}, stack[i:]...)
						return true
					}
				}
				cycle = append([]string{}, next)
				return true
			case colorWhite:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		colors[id] = colorBlack
		return false
	}

	for _, id := range ids {
		if colors[id] == colorWhite {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

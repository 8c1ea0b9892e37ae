package claude

import (
	"github.com/joshharrison/critpath/internal/graph"
)

// Skipped is an inferred edge that Apply refused, with the reason.
type Skipped struct {
	Edge   DepEdge
	Reason string
}

// Apply adds inferred edges to g in order. Edges naming unknown tasks,
// self-dependencies, duplicates and edges that would close a cycle are
// skipped, so g stays a valid DAG.
func Apply(g *graph.Graph, edges []DepEdge) (applied []DepEdge, skipped []Skipped) {
	for _, e := range edges {
		if _, ok := g.Task(e.From); !ok {
			skipped = append(skipped, Skipped{e, "unknown task " + e.From})
			continue
		}
		if _, ok := g.Task(e.To); !ok {
			skipped = append(skipped, Skipped{e, "unknown task " + e.To})
			continue
		}
		if e.From == e.To {
			skipped = append(skipped, Skipped{e, "self dependency"})
			continue
		}
		if dependsOn(g, e.From, e.To) {
			skipped = append(skipped, Skipped{e, "already implied"})
			continue
		}
		if dependsOn(g, e.To, e.From) {
			skipped = append(skipped, Skipped{e, "would create a cycle"})
			continue
		}
		if err := g.AddDependency(e.From, e.To); err != nil {
			skipped = append(skipped, Skipped{e, err.Error()})
			continue
		}
		applied = append(applied, e)
	}
	return applied, skipped
}

// dependsOn reports whether from transitively depends on to.
func dependsOn(g *graph.Graph, from, to string) bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.Successors(id) {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

package graph

import "sort"

// Validate checks that g is a well-formed DAG: every edge endpoint is a known
// task and no task transitively depends on itself. It must pass before any
// path computation.
func Validate(g *Graph) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, e := range g.sortedEdges() {
		if _, ok := g.tasks[e.From]; !ok {
			return &DanglingReferenceError{From: e.From, To: e.To, Missing: e.From}
		}
		if _, ok := g.tasks[e.To]; !ok {
			return &DanglingReferenceError{From: e.From, To: e.To, Missing: e.To}
		}
	}
	// Adjacency can drift from the edge set only for graphs assembled by hand.
	for from, deps := range g.dependsOn {
		for _, to := range deps {
			if _, ok := g.tasks[from]; !ok {
				return &DanglingReferenceError{From: from, To: to, Missing: from}
			}
			if _, ok := g.tasks[to]; !ok {
				return &DanglingReferenceError{From: from, To: to, Missing: to}
			}
		}
	}

	if cycle := g.detectCycle(); cycle != nil {
		return &CycleError{Cycle: cycle}
	}
	return nil
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is acyclic.
func (g *Graph) DetectCycle() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.detectCycle()
}

// detectCycle walks DEPENDS_ON edges depth-first with coloring:
// white (unvisited), gray (in progress), black (done).
func (g *Graph) detectCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int)
	parent := make(map[string]string)

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		for _, next := range g.dependsOn[node] {
			if color[next] == gray {
				cycle := []string{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

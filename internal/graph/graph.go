package graph

import (
	"fmt"
	"slices"
	"sort"
)

// New returns an empty graph for the named project.
func New(name string) *Graph {
	return &Graph{
		name:      name,
		tasks:     make(map[string]*Task),
		dependsOn: make(map[string][]string),
		dependent: make(map[string][]string),
		edges:     make(map[Dependency]struct{}),
	}
}

// Build constructs a validated Graph from raw definitions. Dependencies come
// from both TaskDef.DependsOn and deps; duplicates collapse. No partial graph
// is returned on error.
func Build(name string, tasks []TaskDef, deps []DependencyDef) (*Graph, error) {
	g := New(name)

	for _, td := range tasks {
		status, err := ParseStatus(td.Status)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", td.ID, err)
		}
		if err := g.AddTask(td.ID, td.Name, td.Duration, status); err != nil {
			return nil, err
		}
	}

	for _, td := range tasks {
		for _, to := range td.DependsOn {
			if err := g.AddDependency(td.ID, to); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range deps {
		if err := g.AddDependency(d.From, d.To); err != nil {
			return nil, err
		}
	}

	if err := Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Name returns the project name.
func (g *Graph) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.name
}

// AddTask inserts a task. The id must be new and the duration non-negative.
func (g *Graph) AddTask(id, name string, duration int, status Status) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidTask)
	}
	if duration < 0 {
		return fmt.Errorf("%w: task %s has negative duration %d", ErrInvalidTask, id, duration)
	}
	if status == "" {
		status = StatusNotStarted
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.tasks[id]; ok {
		return &DuplicateIDError{ID: id}
	}
	g.tasks[id] = &Task{ID: id, Name: name, Duration: duration, Status: status}
	return nil
}

// AddDependency records that from depends on to. Both tasks must exist.
// Adding an edge that is already present is a no-op.
func (g *Graph) AddDependency(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.tasks[from]; !ok {
		return &UnknownTaskError{ID: from}
	}
	if _, ok := g.tasks[to]; !ok {
		return &UnknownTaskError{ID: to}
	}
	if from == to {
		return &CycleError{Cycle: []string{from, to}}
	}

	key := Dependency{From: from, To: to}
	if _, ok := g.edges[key]; ok {
		return nil
	}
	g.edges[key] = struct{}{}
	g.dependsOn[from] = insertSorted(g.dependsOn[from], to)
	g.dependent[to] = insertSorted(g.dependent[to], from)
	return nil
}

// SetStatus updates a task's status.
func (g *Graph) SetStatus(id string, status Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tasks[id]
	if !ok {
		return &UnknownTaskError{ID: id}
	}
	t.Status = status
	return nil
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// Task returns a copy of the task with the given id.
func (g *Graph) Task(id string) (Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	t, ok := g.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Tasks returns copies of all tasks ordered by id.
func (g *Graph) Tasks() []Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Task, 0, len(g.tasks))
	for _, t := range g.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all dependencies ordered by (From, To).
func (g *Graph) Edges() []Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedEdges()
}

func (g *Graph) sortedEdges() []Dependency {
	out := make([]Dependency, 0, len(g.edges))
	for e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Successors returns the tasks id depends on (the targets of its DEPENDS_ON
// edges), sorted.
func (g *Graph) Successors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.dependsOn[id])
}

// Predecessors returns the tasks that depend on id, sorted.
func (g *Graph) Predecessors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.dependent[id])
}

// Roots returns the start tasks: tasks that depend on nothing.
func (g *Graph) Roots() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var roots []string
	for id := range g.tasks {
		if len(g.dependsOn[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns the terminal tasks: tasks nothing depends on.
func (g *Graph) Leaves() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var leaves []string
	for id := range g.tasks {
		if len(g.dependent[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Snapshot returns an independent deep copy of the graph. Mutating either
// graph afterwards does not affect the other.
func (g *Graph) Snapshot() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := New(g.name)
	for id, t := range g.tasks {
		cp := *t
		s.tasks[id] = &cp
	}
	for id, deps := range g.dependsOn {
		s.dependsOn[id] = slices.Clone(deps)
	}
	for id, deps := range g.dependent {
		s.dependent[id] = slices.Clone(deps)
	}
	for e := range g.edges {
		s.edges[e] = struct{}{}
	}
	return s
}

// Filter returns a new graph containing only tasks matching pred.
// Dependencies touching a filtered-out task are dropped.
func (g *Graph) Filter(pred func(Task) bool) (*Graph, error) {
	tasks, deps := g.Defs()

	keep := make(map[string]bool)
	var kept []TaskDef
	for _, td := range tasks {
		t, _ := g.Task(td.ID)
		if pred(t) {
			keep[td.ID] = true
			kept = append(kept, td)
		}
	}

	var keptDeps []DependencyDef
	for _, d := range deps {
		if keep[d.From] && keep[d.To] {
			keptDeps = append(keptDeps, d)
		}
	}
	return Build(g.Name(), kept, keptDeps)
}

// Defs reads the graph back as raw definitions, tasks by id and
// dependencies by (from, to).
func (g *Graph) Defs() ([]TaskDef, []DependencyDef) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tasks := make([]TaskDef, 0, len(ids))
	for _, id := range ids {
		t := g.tasks[id]
		tasks = append(tasks, TaskDef{
			ID:       t.ID,
			Name:     t.Name,
			Duration: t.Duration,
			Status:   string(t.Status),
		})
	}

	edges := g.sortedEdges()
	deps := make([]DependencyDef, 0, len(edges))
	for _, e := range edges {
		deps = append(deps, DependencyDef{From: e.From, To: e.To})
	}
	return tasks, deps
}

func insertSorted(list []string, id string) []string {
	i, found := slices.BinarySearch(list, id)
	if found {
		return list
	}
	return slices.Insert(list, i, id)
}

package cpm

import (
	"fmt"
	"sort"

	"github.com/joshharrison/critpath/internal/graph"
)

// TopoOrder returns the tasks of g in dependency order: every task appears
// after all tasks it depends on. Ties are broken by id.
func TopoOrder(g *graph.Graph) ([]string, error) {
	s := g.Snapshot()
	if err := graph.Validate(s); err != nil {
		return nil, err
	}
	return topoSort(s)
}

// CriticalPath computes the maximum-duration chain of dependent tasks.
//
// Each task's cumulative duration is its own duration plus the best
// cumulative duration among the tasks it depends on. The chain is rebuilt
// from the terminal task with the largest cumulative duration. Ties at
// either step go to the lexicographically smallest task id.
func CriticalPath(g *graph.Graph) (*PathResult, error) {
	s := g.Snapshot()
	if err := graph.Validate(s); err != nil {
		return nil, err
	}
	if s.Len() == 0 {
		return nil, graph.ErrEmptyGraph
	}

	order, err := topoSort(s)
	if err != nil {
		return nil, err
	}
	return longestPath(s, order), nil
}

func longestPath(s *graph.Graph, order []string) *PathResult {
	cum := make(map[string]int, len(order))
	back := make(map[string]string, len(order))

	for _, id := range order {
		t, _ := s.Task(id)
		best, bestID := -1, ""
		for _, dep := range s.Successors(id) {
			if cum[dep] > best {
				best, bestID = cum[dep], dep
			}
		}
		cum[id] = t.Duration + max(0, best)
		if bestID != "" {
			back[id] = bestID
		}
	}

	end, endCum := "", -1
	for _, id := range s.Leaves() {
		if cum[id] > endCum {
			end, endCum = id, cum[id]
		}
	}

	var ids []string
	for cur := end; cur != ""; cur = back[cur] {
		ids = append(ids, cur)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	return newPathResult(s, ids)
}

func newPathResult(s *graph.Graph, ids []string) *PathResult {
	pr := &PathResult{
		TaskIDs: ids,
		Path:    make([]string, len(ids)),
	}
	for i, id := range ids {
		t, _ := s.Task(id)
		pr.Path[i] = t.Name
		pr.TotalDuration += t.Duration
	}
	return pr
}

// Analyze performs critical path method scheduling on a task graph:
// earliest/latest start and finish, slack, and parallel waves.
func Analyze(g *graph.Graph) (*Result, error) {
	s := g.Snapshot()
	if err := graph.Validate(s); err != nil {
		return nil, err
	}
	if s.Len() == 0 {
		return nil, graph.ErrEmptyGraph
	}

	order, err := topoSort(s)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Tasks:     make(map[string]*TaskSchedule),
		TopoOrder: order,
	}
	for _, id := range order {
		t, _ := s.Task(id)
		result.Tasks[id] = &TaskSchedule{TaskID: id, Duration: t.Duration}
	}

	// Forward pass: ES = max(EF of everything this task depends on)
	for _, id := range order {
		ts := result.Tasks[id]
		es := 0
		for _, dep := range s.Successors(id) {
			if ef := result.Tasks[dep].EF; ef > es {
				es = ef
			}
		}
		ts.ES = es
		ts.EF = es + ts.Duration
		if ts.EF > result.TotalDuration {
			result.TotalDuration = ts.EF
		}
	}

	// Backward pass: LF = min(LS of every dependent), terminal tasks finish at the end.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ts := result.Tasks[id]

		lf := result.TotalDuration
		for _, dependent := range s.Predecessors(id) {
			if ls := result.Tasks[dependent].LS; ls < lf {
				lf = ls
			}
		}
		ts.LF = lf
		ts.LS = lf - ts.Duration
		ts.Slack = ts.LS - ts.ES
		ts.IsCritical = ts.Slack == 0
	}

	result.CriticalPath = longestPath(s, order).TaskIDs
	result.Waves = computeWaves(result)

	return result, nil
}

// topoSort performs Kahn's algorithm over a validated snapshot.
func topoSort(s *graph.Graph) ([]string, error) {
	tasks := s.Tasks()
	inDegree := make(map[string]int, len(tasks))
	for _, t := range tasks {
		inDegree[t.ID] = len(s.Successors(t.ID))
	}

	// Start with tasks that depend on nothing; Roots is already sorted.
	queue := s.Roots()

	order := make([]string, 0, len(tasks))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []string
		for _, dependent := range s.Predecessors(node) {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				newReady = append(newReady, dependent)
			}
		}
		sort.Strings(newReady)
		queue = append(queue, newReady...)
	}

	if len(order) != len(tasks) {
		return nil, fmt.Errorf("topological sort failed: graph has a cycle (%d of %d tasks sorted)", len(order), len(tasks))
	}
	return order, nil
}

// computeWaves groups tasks by their earliest start time.
func computeWaves(result *Result) []Wave {
	esGroups := make(map[int][]string)
	for _, id := range result.TopoOrder {
		es := result.Tasks[id].ES
		esGroups[es] = append(esGroups[es], id)
	}

	esValues := make([]int, 0, len(esGroups))
	for es := range esGroups {
		esValues = append(esValues, es)
	}
	sort.Ints(esValues)

	waves := make([]Wave, len(esValues))
	for i, es := range esValues {
		taskIDs := esGroups[es]
		sort.Strings(taskIDs)

		hasCritical := false
		for _, id := range taskIDs {
			result.Tasks[id].Wave = i
			if result.Tasks[id].IsCritical {
				hasCritical = true
			}
		}

		// Critical tasks first within a wave
		sort.SliceStable(taskIDs, func(a, b int) bool {
			return result.Tasks[taskIDs[a]].IsCritical && !result.Tasks[taskIDs[b]].IsCritical
		})

		waves[i] = Wave{
			Index:      i,
			TaskIDs:    taskIDs,
			IsCritical: hasCritical,
		}
	}
	return waves
}

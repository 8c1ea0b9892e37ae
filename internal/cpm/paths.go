package cpm

import (
	"container/heap"
	"context"
	"iter"
	"slices"
	"sort"

	"github.com/joshharrison/critpath/internal/graph"
)

// Paths validates g and returns a sequence of every maximal path from a
// start task (depends on nothing) to a terminal task (nothing depends on it).
//
// The sequence is lazy and restartable: each range walks a fresh DFS over a
// snapshot taken when Paths was called. Paths come out in DFS order, not ranked.
func Paths(g *graph.Graph) (iter.Seq[PathResult], error) {
	s := g.Snapshot()
	if err := graph.Validate(s); err != nil {
		return nil, err
	}

	tasks := make(map[string]graph.Task, s.Len())
	for _, t := range s.Tasks() {
		tasks[t.ID] = t
	}
	roots := s.Roots()

	return func(yield func(PathResult) bool) {
		var stack []string

		var walk func(id string, total int) bool
		walk = func(id string, total int) bool {
			stack = append(stack, id)
			defer func() { stack = stack[:len(stack)-1] }()

			total += tasks[id].Duration
			dependents := s.Predecessors(id)
			if len(dependents) == 0 {
				pr := PathResult{
					TaskIDs:       slices.Clone(stack),
					Path:          make([]string, len(stack)),
					TotalDuration: total,
				}
				for i, tid := range stack {
					pr.Path[i] = tasks[tid].Name
				}
				return yield(pr)
			}
			for _, next := range dependents {
				if !walk(next, total) {
					return false
				}
			}
			return true
		}

		for _, root := range roots {
			if !walk(root, 0) {
				return
			}
		}
	}, nil
}

// EnumeratePaths returns all start-to-terminal paths ranked by total duration,
// longest first. maxResults <= 0 returns every path. The first entry is the
// same chain CriticalPath returns.
func EnumeratePaths(g *graph.Graph, maxResults int) ([]PathResult, error) {
	return Enumerate(g, EnumerateOptions{MaxResults: maxResults})
}

// Enumerate is EnumeratePaths with explicit bounds. With MaxResults set only
// the best MaxResults paths are held in memory at any time.
func Enumerate(g *graph.Graph, opts EnumerateOptions) ([]PathResult, error) {
	return EnumerateContext(context.Background(), g, opts)
}

// EnumerateContext is Enumerate that stops with ctx.Err() once ctx is done.
// The context is checked after every complete path.
func EnumerateContext(ctx context.Context, g *graph.Graph, opts EnumerateOptions) ([]PathResult, error) {
	seq, err := Paths(g)
	if err != nil {
		return nil, err
	}

	var (
		h       pathHeap
		visited int
	)
	for pr := range seq {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		visited++
		if opts.MaxVisited > 0 && visited > opts.MaxVisited {
			return nil, ErrEnumerationLimit
		}
		heap.Push(&h, pr)
		if opts.MaxResults > 0 && h.Len() > opts.MaxResults {
			heap.Pop(&h)
		}
	}

	out := []PathResult(h)
	sort.Slice(out, func(i, j int) bool { return ranksBefore(out[i], out[j]) })
	return out, nil
}

// ranksBefore orders paths by duration descending, then by task ids compared
// from the terminal task backwards. Comparing from the end matches the
// back-pointer walk in CriticalPath, so rank one is always the critical path.
func ranksBefore(a, b PathResult) bool {
	if a.TotalDuration != b.TotalDuration {
		return a.TotalDuration > b.TotalDuration
	}
	i, j := len(a.TaskIDs)-1, len(b.TaskIDs)-1
	for ; i >= 0 && j >= 0; i, j = i-1, j-1 {
		if a.TaskIDs[i] != b.TaskIDs[j] {
			return a.TaskIDs[i] < b.TaskIDs[j]
		}
	}
	return i < j
}

// pathHeap keeps the worst-ranked path on top so it can be evicted.
type pathHeap []PathResult

func (h pathHeap) Len() int           { return len(h) }
func (h pathHeap) Less(i, j int) bool { return ranksBefore(h[j], h[i]) }
func (h pathHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *pathHeap) Push(x any) { *h = append(*h, x.(PathResult)) }

func (h *pathHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyGraph is returned by path computations on a graph with no tasks.
	ErrEmptyGraph = errors.New("graph has no tasks")

	// ErrInvalidTask wraps malformed task definitions (empty id, negative duration).
	ErrInvalidTask = errors.New("invalid task")
)

// DuplicateIDError reports an AddTask with an id already in the graph.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate task id %q", e.ID)
}

// UnknownTaskError reports a reference to a task id that is not in the graph.
type UnknownTaskError struct {
	ID string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %q", e.ID)
}

// CycleError reports a dependency cycle. Cycle lists the task ids along the
// cycle with the first id repeated at the end.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// DanglingReferenceError reports an edge whose endpoint is missing from the task set.
type DanglingReferenceError struct {
	From, To string
	Missing  string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dependency %s -> %s references missing task %q", e.From, e.To, e.Missing)
}

// IsStructural reports whether err is a structural invariant violation
// (a cycle or a dangling reference) rather than bad construction input.
func IsStructural(err error) bool {
	var cyc *CycleError
	var dangling *DanglingReferenceError
	return errors.As(err, &cyc) || errors.As(err, &dangling)
}

package graph

import (
	"fmt"
	"strings"
	"sync"
)

// Status is the progress state of a task.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// ParseStatus normalises user input ("in_progress", "In Progress", "completed", ...)
// into a Status. An empty string means not started.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	switch norm {
	case "", "not started", "notstarted", "todo", "open":
		return StatusNotStarted, nil
	case "in progress", "inprogress", "running":
		return StatusInProgress, nil
	case "completed", "complete", "done", "closed":
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("unknown task status %q (use not_started, in_progress or completed)", s)
}

// Task is a unit of project work. Duration is measured in days.
type Task struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	Status   Status `json:"status"`
}

// Dependency is a DEPENDS_ON edge: From cannot start until To completes.
type Dependency struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TaskDef is a raw task definition as read from files, requests or backends.
type TaskDef struct {
	ID        string   `json:"id" yaml:"id" bson:"id"`
	Name      string   `json:"name" yaml:"name" bson:"name"`
	Duration  int      `json:"duration" yaml:"duration" bson:"duration"`
	Status    string   `json:"status,omitempty" yaml:"status,omitempty" bson:"status"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty" bson:"-"`
}

// DependencyDef is a raw DEPENDS_ON definition.
type DependencyDef struct {
	From string `json:"from" yaml:"from" bson:"from"`
	To   string `json:"to" yaml:"to" bson:"to"`
}

// Graph is a project's tasks and DEPENDS_ON edges.
//
// All methods are safe for concurrent use. Analyses should work on a
// Snapshot so that mutations never interleave with a traversal.
type Graph struct {
	name      string
	tasks     map[string]*Task
	dependsOn map[string][]string // task -> tasks it depends on
	dependent map[string][]string // task -> tasks that depend on it
	edges     map[Dependency]struct{}

	mu sync.RWMutex
}

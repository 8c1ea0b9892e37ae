// Package project reads project definition files (YAML or JSON) into task graphs.
package project

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshharrison/critpath/internal/graph"
)

// File is the on-disk shape of a project definition.
//
//	name: AI Dashboard Implementation
//	tasks:
//	  - id: T3
//	    name: Model Integration
//	    duration: 4
//	    depends_on: [T1]
type File struct {
	Name         string                `json:"name" yaml:"name"`
	Tasks        []graph.TaskDef       `json:"tasks" yaml:"tasks"`
	Dependencies []graph.DependencyDef `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Load reads and parses a project file. JSON is accepted since it is a YAML subset.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a project definition, rejecting unknown fields.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	return &f, nil
}

// Graph builds and validates the task graph described by f.
func (f *File) Graph() (*graph.Graph, error) {
	return graph.Build(f.Name, f.Tasks, f.Dependencies)
}

// FromGraph converts a graph back into a project file, with each task's
// dependencies folded into depends_on.
func FromGraph(g *graph.Graph) *File {
	tasks, deps := g.Defs()
	idx := make(map[string]int, len(tasks))
	for i, td := range tasks {
		idx[td.ID] = i
	}
	for _, d := range deps {
		i := idx[d.From]
		tasks[i].DependsOn = append(tasks[i].DependsOn, d.To)
	}
	return &File{Name: g.Name(), Tasks: tasks}
}

// Marshal renders f as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// Sample returns the AI Dashboard Implementation demo project.
func Sample() *File {
	return &File{
		Name: "AI Dashboard Implementation",
		Tasks: []graph.TaskDef{
			{ID: "T1", Name: "Data Pipeline", Duration: 3, Status: string(graph.StatusCompleted)},
			{ID: "T2", Name: "UI Design", Duration: 2, Status: string(graph.StatusInProgress)},
			{ID: "T3", Name: "Model Integration", Duration: 4, Status: string(graph.StatusNotStarted), DependsOn: []string{"T1"}},
			{ID: "T4", Name: "Testing", Duration: 3, Status: string(graph.StatusNotStarted), DependsOn: []string{"T2", "T3"}},
			{ID: "T5", Name: "Deployment", Duration: 1, Status: string(graph.StatusNotStarted), DependsOn: []string{"T4"}},
		},
	}
}

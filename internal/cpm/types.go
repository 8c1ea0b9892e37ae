package cpm

import "errors"

// ErrEnumerationLimit is returned when path enumeration visits more complete
// paths than EnumerateOptions.MaxVisited allows.
var ErrEnumerationLimit = errors.New("path enumeration limit exceeded")

// PathResult is one start-to-terminal chain of tasks and its summed duration.
type PathResult struct {
	TaskIDs       []string `json:"task_ids"`
	Path          []string `json:"path"` // task names, start first
	TotalDuration int      `json:"total_duration"`
}

// EnumerateOptions bounds path enumeration.
type EnumerateOptions struct {
	// MaxResults keeps only the best N paths. Zero or negative keeps all.
	MaxResults int
	// MaxVisited aborts once this many complete paths have been walked.
	// Zero or negative means no limit.
	MaxVisited int
}

// Result holds the complete critical path analysis.
type Result struct {
	Tasks         map[string]*TaskSchedule `json:"tasks"`
	CriticalPath  []string                 `json:"critical_path"` // ordered task IDs, start first
	TotalDuration int                      `json:"total_duration"`
	Waves         []Wave                   `json:"waves"` // parallelizable groups
	TopoOrder     []string                 `json:"topo_order"`
}

// TaskSchedule holds the scheduling info for a single task.
type TaskSchedule struct {
	TaskID     string `json:"task_id"`
	Duration   int    `json:"duration"`
	ES         int    `json:"es"` // earliest start/finish
	EF         int    `json:"ef"`
	LS         int    `json:"ls"` // latest start/finish
	LF         int    `json:"lf"`
	Slack      int    `json:"slack"`
	IsCritical bool   `json:"is_critical"`
	Wave       int    `json:"wave"` // which parallel wave this belongs to
}

// Wave represents a group of tasks that can run in parallel.
type Wave struct {
	Index      int      `json:"index"`
	TaskIDs    []string `json:"task_ids"`
	IsCritical bool     `json:"is_critical"` // true if wave contains zero-slack tasks
}

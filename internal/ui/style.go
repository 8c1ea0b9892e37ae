package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/joshharrison/critpath/internal/graph"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// PrintBanner renders the colored critpath banner for a project.
func PrintBanner(w io.Writer, project string) {
	frame := color.New(color.FgCyan)
	nodes := color.New(color.FgYellow)
	brand := color.New(color.Bold, color.FgMagenta)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +------------------------------+")
	nodes.Fprintln(w, "   |  o--o--o--o--o--o--o--o--o   |")
	brand.Fprintln(w, "   |   C R I T P A T H            |")
	nodes.Fprintln(w, "   |  o--o--o--o--o--o--o--o--o   |")
	frame.Fprintln(w, "   +------------------------------+")
	if project != "" {
		fmt.Fprintf(w, "   %s\n", BoldWhite(project))
	}
	fmt.Fprintln(w)
}

// taskColors is a palette of distinct bold colors for differentiating tasks.
var taskColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// taskColorIndex hashes a task ID to a palette index.
func taskColorIndex(taskID string) int {
	var h uint32
	for _, c := range taskID {
		h = h*31 + uint32(c)
	}
	return int(h % uint32(len(taskColors)))
}

// TaskID returns the task ID in its stable palette color.
func TaskID(taskID string) string {
	return taskColors[taskColorIndex(taskID)](taskID)
}

// StatusIcon returns a colored status icon for compact table display.
func StatusIcon(status graph.Status) string {
	switch status {
	case graph.StatusCompleted:
		return Green("✓")
	case graph.StatusInProgress:
		return Cyan("●")
	default:
		return Dim("◌")
	}
}

// StatusText returns the status name colored like its icon.
func StatusText(status graph.Status) string {
	switch status {
	case graph.StatusCompleted:
		return Green(string(status))
	case graph.StatusInProgress:
		return Cyan(string(status))
	default:
		return Dim(string(status))
	}
}

// Slack colors a slack value: zero slack is critical.
func Slack(slack int) string {
	if slack == 0 {
		return BoldYellow("0")
	}
	return Dim(fmt.Sprintf("%d", slack))
}

package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/ui"
)

// RankedPath is an enumerated path with its rank (1 = longest) and whether
// its duration equals the critical duration.
type RankedPath struct {
	Rank int `json:"rank"`
	cpm.PathResult
	Critical bool `json:"critical"`
}

// Report is the machine-readable analysis of one project.
type Report struct {
	Project      string             `json:"project"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Tasks        []graph.Task       `json:"tasks"`
	Dependencies []graph.Dependency `json:"dependencies"`
	CriticalPath *cpm.PathResult    `json:"critical_path,omitempty"`
	Paths        []RankedPath       `json:"paths"`
	Schedule     *cpm.Result        `json:"schedule,omitempty"`
}

// Reporter renders analysis results for terminals, JSON consumers and Graphviz.
type Reporter struct {
	Graph    *graph.Graph
	Critical *cpm.PathResult // nil when not computed
	Paths    []cpm.PathResult
	Schedule *cpm.Result // nil when not computed
}

// New creates a Reporter. Any of cp, paths and schedule may be nil.
func New(g *graph.Graph, cp *cpm.PathResult, paths []cpm.PathResult, schedule *cpm.Result) *Reporter {
	return &Reporter{Graph: g, Critical: cp, Paths: paths, Schedule: schedule}
}

// Ranked returns the paths with rank and critical marker applied.
func (r *Reporter) Ranked() []RankedPath {
	out := make([]RankedPath, 0, len(r.Paths))
	for i, p := range r.Paths {
		out = append(out, RankedPath{
			Rank:       i + 1,
			PathResult: p,
			Critical:   r.Critical != nil && p.TotalDuration == r.Critical.TotalDuration,
		})
	}
	return out
}

// Report assembles the machine-readable report.
func (r *Reporter) Report() Report {
	return Report{
		Project:      r.Graph.Name(),
		GeneratedAt:  time.Now().UTC(),
		Tasks:        r.Graph.Tasks(),
		Dependencies: r.Graph.Edges(),
		CriticalPath: r.Critical,
		Paths:        r.Ranked(),
		Schedule:     r.Schedule,
	}
}

// JSON returns the indented report.
func (r *Reporter) JSON() ([]byte, error) {
	return json.MarshalIndent(r.Report(), "", "  ")
}

// PrintOverview writes one line per task.
func (r *Reporter) PrintOverview(w io.Writer) {
	tasks := r.Graph.Tasks()
	fmt.Fprintf(w, "%s %s\n", ui.BoldCyan("📊 Project Overview:"), ui.Dim(fmt.Sprintf("(%d tasks)", len(tasks))))
	for _, t := range tasks {
		fmt.Fprintf(w, "  %s %s: %s (Duration: %s, Status: %s)\n",
			ui.StatusIcon(t.Status), ui.TaskID(t.ID), t.Name,
			days(t.Duration), ui.StatusText(t.Status))
	}
}

// PrintAnalysis writes the critical path followed by every ranked path.
// Paths whose duration equals the critical duration are marked.
func (r *Reporter) PrintAnalysis(w io.Writer) {
	fmt.Fprintf(w, "\n%s\n", ui.BoldCyan("🔍 Critical Path Analysis:"))
	if r.Critical == nil || len(r.Critical.TaskIDs) == 0 {
		fmt.Fprintln(w, ui.Yellow("No critical path found!"))
		return
	}
	fmt.Fprintf(w, "Critical Path:  %s\n", ui.BoldYellow(strings.Join(r.Critical.Path, " → ")))
	fmt.Fprintf(w, "Task IDs:       %s\n", ui.Dim(strings.Join(r.Critical.TaskIDs, " → ")))
	fmt.Fprintf(w, "Total Duration: %s\n", ui.Bold(days(r.Critical.TotalDuration)))

	if len(r.Paths) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", ui.BoldCyan("📈 All Possible Paths:"))
	for _, p := range r.Ranked() {
		marker := ""
		if p.Critical {
			marker = ui.BoldRed("🔥 CRITICAL")
		}
		fmt.Fprintf(w, "  Path %d: %s (Duration: %s) %s\n",
			p.Rank, strings.Join(p.Path, " → "), days(p.TotalDuration), marker)
	}
}

// PrintSchedule writes the ES/EF/LS/LF/slack table grouped by wave.
func (r *Reporter) PrintSchedule(w io.Writer) {
	if r.Schedule == nil {
		fmt.Fprintln(w, ui.Yellow("No schedule computed."))
		return
	}
	fmt.Fprintf(w, "%s %s\n\n", ui.BoldCyan("🗓  Schedule"),
		ui.Dim(fmt.Sprintf("(project duration %s)", days(r.Schedule.TotalDuration))))

	for _, wave := range r.Schedule.Waves {
		marker := ""
		if wave.IsCritical {
			marker = " " + ui.BoldYellow("⚡")
		}
		fmt.Fprintf(w, "  %s %d%s\n", ui.BoldWhite("WAVE"), wave.Index+1, marker)
		for _, id := range wave.TaskIDs {
			ts := r.Schedule.Tasks[id]
			t, _ := r.Graph.Task(id)
			name := truncate(t.Name, 30)
			fmt.Fprintf(w, "    %-8s %-30s ES %3d  EF %3d  LS %3d  LF %3d  slack %s\n",
				ui.TaskID(id), name, ts.ES, ts.EF, ts.LS, ts.LF, ui.Slack(ts.Slack))
		}
		fmt.Fprintln(w)
	}
}

// PrintASCII draws a text Gantt chart from the schedule: one row per task,
// offset by its earliest start, with critical tasks drawn in '='.
func (r *Reporter) PrintASCII(w io.Writer) {
	if r.Schedule == nil {
		fmt.Fprintln(w, ui.Yellow("No schedule computed."))
		return
	}

	width := 0
	for _, id := range r.Schedule.TopoOrder {
		if len(id) > width {
			width = len(id)
		}
	}

	fmt.Fprintf(w, "%*s |%s\n", width, "", axis(r.Schedule.TotalDuration))
	for _, id := range r.Schedule.TopoOrder {
		ts := r.Schedule.Tasks[id]
		bar := strings.Repeat("#", ts.Duration)
		if ts.IsCritical {
			bar = ui.BoldYellow(strings.Repeat("=", ts.Duration))
		}
		if ts.Duration == 0 {
			bar = ui.Dim("◆")
		}
		deps := ""
		if s := r.Graph.Successors(id); len(s) > 0 {
			deps = ui.Dim(" ← " + strings.Join(s, ", "))
		}
		fmt.Fprintf(w, "%-*s |%s%s%s\n", width, id, strings.Repeat(" ", ts.ES), bar, deps)
	}
}

// axis renders a day ruler with a tick every five days.
func axis(total int) string {
	var b strings.Builder
	for d := 0; d < total; d++ {
		if d%5 == 0 {
			b.WriteByte('|')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// WriteDOT renders the graph in Graphviz DOT. Edges point from prerequisite
// to dependent; critical tasks and the edges between them are red.
func (r *Reporter) WriteDOT(w io.Writer) error {
	critical := make(map[string]bool)
	criticalEdge := make(map[graph.Dependency]bool)
	if r.Critical != nil {
		ids := r.Critical.TaskIDs
		for i, id := range ids {
			critical[id] = true
			if i > 0 {
				criticalEdge[graph.Dependency{From: ids[i], To: ids[i-1]}] = true
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", r.Graph.Name())
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded];\n")
	for _, t := range r.Graph.Tasks() {
		attrs := ""
		if critical[t.ID] {
			attrs = ", color=red, penwidth=2"
		}
		fmt.Fprintf(&b, "  %q [label=%q%s];\n", t.ID, fmt.Sprintf("%s\n%s (%dd)", t.ID, t.Name, t.Duration), attrs)
	}
	for _, e := range r.Graph.Edges() {
		attrs := ""
		if criticalEdge[e] {
			attrs = " [color=red, penwidth=2]"
		}
		fmt.Fprintf(&b, "  %q -> %q%s;\n", e.To, e.From, attrs)
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

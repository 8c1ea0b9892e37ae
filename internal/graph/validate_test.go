package graph

import (
	"errors"
	"testing"
)

// handBuilt assembles a Graph directly, bypassing AddDependency checks, the
// way a faulty loader might.
func handBuilt(ids []string, edges ...Dependency) *Graph {
	g := New("hand")
	for _, id := range ids {
		g.tasks[id] = &Task{ID: id, Name: id, Duration: 1, Status: StatusNotStarted}
	}
	for _, e := range edges {
		g.edges[e] = struct{}{}
		g.dependsOn[e.From] = append(g.dependsOn[e.From], e.To)
		g.dependent[e.To] = append(g.dependent[e.To], e.From)
	}
	return g
}

func TestValidate_NoCycle(t *testing.T) {
	g := handBuilt([]string{"a", "b"}, Dependency{From: "b", To: "a"})

	if err := Validate(g); err != nil {
		t.Errorf("expected valid graph, got %v", err)
	}
	if cycle := g.DetectCycle(); cycle != nil {
		t.Errorf("expected no cycle, got %v", cycle)
	}
}

func TestValidate_TwoTaskMutualDependency(t *testing.T) {
	g := New("p")
	g.AddTask("a", "A", 1, "")
	g.AddTask("b", "B", 1, "")
	g.AddDependency("a", "b")
	g.AddDependency("b", "a")

	err := Validate(g)
	var cyc *CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cyc.Cycle) != 3 {
		t.Errorf("expected cycle [a b a], got %v", cyc.Cycle)
	}
	if !IsStructural(err) {
		t.Error("cycle should be a structural error")
	}
}

func TestValidate_WithCycle(t *testing.T) {
	g := handBuilt([]string{"a", "b", "c", "d"},
		Dependency{From: "d", To: "a"},
		Dependency{From: "a", To: "b"},
		Dependency{From: "b", To: "c"},
		Dependency{From: "c", To: "a"},
	)

	err := Validate(g)
	var cyc *CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	want := []string{"a", "b", "c", "a"}
	if len(cyc.Cycle) != len(want) {
		t.Fatalf("expected cycle %v, got %v", want, cyc.Cycle)
	}
	for i := range want {
		if cyc.Cycle[i] != want[i] {
			t.Errorf("expected cycle %v, got %v", want, cyc.Cycle)
			break
		}
	}
}

func TestValidate_SelfLoopHandBuilt(t *testing.T) {
	g := handBuilt([]string{"a"}, Dependency{From: "a", To: "a"})

	var cyc *CycleError
	if err := Validate(g); !errors.As(err, &cyc) {
		t.Fatalf("expected CycleError, got %v", err)
	}
}

func TestValidate_DanglingReference(t *testing.T) {
	g := handBuilt([]string{"a"}, Dependency{From: "a", To: "missing"})

	err := Validate(g)
	var dangling *DanglingReferenceError
	if !errors.As(err, &dangling) {
		t.Fatalf("expected DanglingReferenceError, got %v", err)
	}
	if dangling.Missing != "missing" || dangling.From != "a" {
		t.Errorf("unexpected dangling details: %+v", dangling)
	}
	if !IsStructural(err) {
		t.Error("dangling reference should be a structural error")
	}
}

func TestIsStructural_ConstructionErrors(t *testing.T) {
	if IsStructural(&DuplicateIDError{ID: "a"}) {
		t.Error("duplicate id is not structural")
	}
	if IsStructural(&UnknownTaskError{ID: "a"}) {
		t.Error("unknown task is not structural")
	}
}

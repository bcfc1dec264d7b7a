package model

import (
	"testing"
	"time"
)

func TestAddObservation(t *testing.T) {
	tr := &Trace{ID: "t1"}

	root := tr.AddObservation(Observation{Name: "plan"}, -1)
	child := tr.AddObservation(Observation{Name: "tool"}, root)

	if tr.Len() != 2 {
		t.Errorf("expected 2 observations, got %d", tr.Len())
	}
	if len(tr.Roots) != 1 || tr.Roots[0] != root {
		t.Errorf("unexpected roots: %v", tr.Roots)
	}
	if tr.Observations[child].Parent != root {
		t.Errorf("child must point at parent, got %d", tr.Observations[child].Parent)
	}
	if len(tr.Observations[root].Children) != 1 || tr.Observations[root].Children[0] != child {
		t.Errorf("parent must list child, got %v", tr.Observations[root].Children)
	}
	if tr.Observations[root].Parent != -1 {
		t.Errorf("root parent must be -1, got %d", tr.Observations[root].Parent)
	}
}

func TestObservationDuration(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	obs := Observation{Name: "x", Start: start, End: start.Add(3 * time.Second)}
	d, ok := obs.Duration()
	if !ok || d != 3*time.Second {
		t.Errorf("expected 3s duration, got %v (%v)", d, ok)
	}

	if _, ok := (&Observation{Name: "x", Start: start}).Duration(); ok {
		t.Error("missing end must yield no duration")
	}
	if _, ok := (&Observation{Name: "x", End: start}).Duration(); ok {
		t.Error("missing start must yield no duration")
	}
	if (&Observation{Name: "x", Start: start}).HasEnd() {
		t.Error("zero end time must report absent")
	}
}

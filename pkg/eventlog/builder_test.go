package eventlog

import (
	"errors"
	"testing"
	"time"

	"github.com/tracemine/tracemine/internal/model"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTrace(id string, outcome *bool, obs ...model.Observation) *model.Trace {
	tr := &model.Trace{ID: id, Outcome: outcome}
	for _, o := range obs {
		tr.AddObservation(o, -1)
	}
	return tr
}

func boolPtr(b bool) *bool { return &b }

func TestBuildOrdersByTimestamp(t *testing.T) {
	tr := newTrace("c1", nil,
		model.Observation{Name: "third", Start: at("2025-03-01T10:00:02Z")},
		model.Observation{Name: "first", Start: at("2025-03-01T10:00:00Z")},
		model.Observation{Name: "second", Start: at("2025-03-01T10:00:01Z")},
	)

	log, err := Build([]*model.Trace{tr}, DefaultConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	got := log.ActivitySequence("c1")
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestBuildTieBreakByFlattenIndex(t *testing.T) {
	// Equal timestamps: document order decides.
	ts := at("2025-03-01T10:00:00Z")
	tr := newTrace("c1", nil,
		model.Observation{Name: "a", Start: ts},
		model.Observation{Name: "b", Start: ts},
		model.Observation{Name: "c", Start: ts},
	)

	log, err := Build([]*model.Trace{tr}, DefaultConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	got := log.ActivitySequence("c1")
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestBuildNestedObservationsInheritCase(t *testing.T) {
	tr := &model.Trace{ID: "c1", Outcome: boolPtr(true)}
	root := tr.AddObservation(model.Observation{
		Name:  "plan",
		Start: at("2025-03-01T10:00:00Z"),
		End:   at("2025-03-01T10:00:10Z"),
	}, -1)
	tr.AddObservation(model.Observation{
		Name:  "tool_call",
		Start: at("2025-03-01T10:00:01Z"),
		End:   at("2025-03-01T10:00:04Z"),
	}, root)

	log, err := Build([]*model.Trace{tr}, DefaultConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	events := log.Case("c1")
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		if e.CaseID != "c1" {
			t.Errorf("nested event must carry top-level case id, got %s", e.CaseID)
		}
		if e.Outcome != model.OutcomeSuccess {
			t.Errorf("event must inherit trace outcome, got %s", e.Outcome)
		}
	}
	if events[1].Activity != "tool_call" || events[1].Duration != (3 * time.Second).Nanoseconds() {
		t.Errorf("unexpected nested event: %+v", events[1])
	}
}

func TestBuildLenientSkipsMissingTimestamp(t *testing.T) {
	good := newTrace("good", nil, model.Observation{Name: "a", Start: at("2025-03-01T10:00:00Z")})
	bad := newTrace("bad", nil,
		model.Observation{Name: "a", Start: at("2025-03-01T10:00:00Z")},
		model.Observation{Name: "b"},
	)

	log, err := Build([]*model.Trace{good, bad}, Config{Mode: ModeLenient})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if log.NumCases() != 1 {
		t.Errorf("expected 1 case, got %d", log.NumCases())
	}
	if log.SkippedCases != 1 {
		t.Errorf("expected 1 skipped case, got %d", log.SkippedCases)
	}
	if log.HasCase("bad") {
		t.Error("dropped case must not appear in the log")
	}
}

func TestBuildStrictFailsOnMissingTimestamp(t *testing.T) {
	bad := newTrace("bad", nil, model.Observation{Name: "b"})

	_, err := Build([]*model.Trace{bad}, Config{Mode: ModeStrict})
	if err == nil {
		t.Fatal("expected error in strict mode")
	}

	var missing *MissingTimestampError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingTimestampError, got %T", err)
	}
	if missing.CaseID != "bad" || missing.Activity != "b" {
		t.Errorf("unexpected error detail: %+v", missing)
	}
}

func TestBuildDuplicateCaseID(t *testing.T) {
	a := newTrace("dup", nil, model.Observation{Name: "a", Start: at("2025-03-01T10:00:00Z")})
	b := newTrace("dup", nil, model.Observation{Name: "b", Start: at("2025-03-01T10:00:00Z")})

	if _, err := Build([]*model.Trace{a, b}, DefaultConfig()); err == nil {
		t.Fatal("expected duplicate case id error")
	}
}

func TestBuildEmptyTraceCountsAsSkipped(t *testing.T) {
	log, err := Build([]*model.Trace{{ID: "empty"}}, DefaultConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if log.NumCases() != 0 || log.SkippedCases != 1 {
		t.Errorf("expected 0 cases / 1 skipped, got %d / %d", log.NumCases(), log.SkippedCases)
	}
}

func TestBuildOrderIndependence(t *testing.T) {
	make3 := func() []*model.Trace {
		return []*model.Trace{
			newTrace("c1", nil,
				model.Observation{Name: "a", Start: at("2025-03-01T10:00:00Z")},
				model.Observation{Name: "b", Start: at("2025-03-01T10:00:01Z")},
			),
			newTrace("c2", nil,
				model.Observation{Name: "a", Start: at("2025-03-01T11:00:00Z")},
			),
		}
	}

	fresh := make3()
	reversed := []*model.Trace{fresh[1], fresh[0]}

	logA, err := Build(make3(), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	logB, err := Build(reversed, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	idsA, idsB := logA.CaseIDs(), logB.CaseIDs()
	if len(idsA) != len(idsB) {
		t.Fatalf("case counts differ: %d vs %d", len(idsA), len(idsB))
	}
	for i := range idsA {
		if idsA[i] != idsB[i] {
			t.Errorf("case order differs at %d: %s vs %s", i, idsA[i], idsB[i])
		}
	}
}

func TestBuildCasesSortedByID(t *testing.T) {
	traces := []*model.Trace{
		newTrace("zebra", nil, model.Observation{Name: "a", Start: at("2025-03-01T10:00:00Z")}),
		newTrace("alpha", nil, model.Observation{Name: "a", Start: at("2025-03-01T10:00:00Z")}),
	}

	log, err := Build(traces, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	ids := log.CaseIDs()
	if ids[0] != "alpha" || ids[1] != "zebra" {
		t.Errorf("cases must be sorted by id, got %v", ids)
	}
}

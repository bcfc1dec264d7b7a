package pipe

import (
	"context"
	"testing"
	"time"

	"github.com/tracemine/tracemine/internal/model"
	"github.com/tracemine/tracemine/pkg/eventlog"
)

func sampleTraces() []*model.Trace {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mk := func(id string, names ...string) *model.Trace {
		tr := &model.Trace{ID: id}
		for i, name := range names {
			start := base.Add(time.Duration(i) * time.Minute)
			tr.AddObservation(model.Observation{
				Name:  name,
				Start: start,
				End:   start.Add(30 * time.Second),
			}, -1)
		}
		return tr
	}

	return []*model.Trace{
		mk("c1", "plan", "search", "answer"),
		mk("c2", "plan", "search", "answer"),
		mk("c3", "plan", "answer"),
	}
}

func TestRun(t *testing.T) {
	res, err := Run(context.Background(), sampleTraces(), DefaultConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.RunID == "" {
		t.Error("run must be assigned an id")
	}
	if res.Log.NumCases() != 3 {
		t.Errorf("expected 3 cases, got %d", res.Log.NumCases())
	}
	if res.DFG == nil || res.Variants == nil || res.Performance == nil {
		t.Fatal("all analyzers must produce output")
	}

	if got := res.DFG.EdgeCount("plan", "search"); got != 2 {
		t.Errorf("expected plan->search count 2, got %d", got)
	}
	if len(res.Variants.Variants) != 2 {
		t.Errorf("expected 2 variants, got %d", len(res.Variants.Variants))
	}
	if res.Variants.TotalCases != 3 {
		t.Errorf("expected 3 analyzed cases, got %d", res.Variants.TotalCases)
	}
	if len(res.Performance.Activities) != 3 {
		t.Errorf("expected 3 activity rows, got %d", len(res.Performance.Activities))
	}
}

func TestRunSequentialMatchesParallel(t *testing.T) {
	par := DefaultConfig()
	seq := DefaultConfig()
	seq.Parallel = false

	a, err := Run(context.Background(), sampleTraces(), par)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run(context.Background(), sampleTraces(), seq)
	if err != nil {
		t.Fatal(err)
	}

	if a.DFG.NumEdges() != b.DFG.NumEdges() {
		t.Errorf("edge counts differ: %d vs %d", a.DFG.NumEdges(), b.DFG.NumEdges())
	}
	if len(a.Variants.Variants) != len(b.Variants.Variants) {
		t.Errorf("variant counts differ")
	}
	if a.Performance.GrandTotal != b.Performance.GrandTotal {
		t.Errorf("grand totals differ: %v vs %v", a.Performance.GrandTotal, b.Performance.GrandTotal)
	}
}

func TestRunPropagatesBuildErrors(t *testing.T) {
	bad := &model.Trace{ID: "bad"}
	bad.AddObservation(model.Observation{Name: "x"}, -1)

	cfg := DefaultConfig()
	cfg.Builder.Mode = eventlog.ModeStrict

	if _, err := Run(context.Background(), []*model.Trace{bad}, cfg); err == nil {
		t.Fatal("expected strict-mode build error")
	}
}

func TestAnalyzeEmptyLog(t *testing.T) {
	res, err := Analyze(context.Background(), model.NewEventLog(nil, 0), DefaultConfig())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.DFG.NumEdges() != 0 || res.Variants.TotalCases != 0 {
		t.Error("empty log must analyze to empty results")
	}
	if len(res.Loops) != 0 {
		t.Errorf("expected no loops, got %+v", res.Loops)
	}
}

package index

import (
	"reflect"
	"testing"

	"github.com/tracemine/tracemine/internal/model"
)

func testLog() *model.EventLog {
	seqs := []struct {
		id  string
		seq []string
	}{
		{"c1", []string{"plan", "search", "answer"}},
		{"c2", []string{"plan", "answer"}},
		{"c3", []string{"search", "retry", "search"}},
	}

	var events []model.Event
	for _, c := range seqs {
		for i, act := range c.seq {
			events = append(events, model.Event{
				CaseID:       c.id,
				Activity:     act,
				Timestamp:    int64(i),
				Duration:     model.NoDuration,
				FlattenIndex: i,
			})
		}
	}
	return model.NewEventLog(events, 0)
}

func TestBuild(t *testing.T) {
	idx := Build(testLog())

	if idx.NumCases() != 3 {
		t.Errorf("expected 3 cases, got %d", idx.NumCases())
	}

	want := []string{"answer", "plan", "retry", "search"}
	if got := idx.Activities(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected activities %v, got %v", want, got)
	}
}

func TestLookup(t *testing.T) {
	idx := Build(testLog())

	search := idx.Lookup("search")
	if search.GetCardinality() != 2 {
		t.Errorf("expected 2 cases with search, got %d", search.GetCardinality())
	}

	// Repeated activity within a case indexes the case once.
	retry := idx.Lookup("retry")
	if retry.GetCardinality() != 1 {
		t.Errorf("expected 1 case with retry, got %d", retry.GetCardinality())
	}

	if idx.Lookup("missing").GetCardinality() != 0 {
		t.Error("unknown activity must yield an empty bitmap")
	}

	// Mutating the returned bitmap must not corrupt the index.
	search.Clear()
	if idx.Lookup("search").GetCardinality() != 2 {
		t.Error("Lookup must return a clone")
	}
}

func TestCasesWithAll(t *testing.T) {
	idx := Build(testLog())

	got := idx.CasesWithAll("plan", "search")
	want := []string{"c1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := idx.CasesWithAll("plan", "retry"); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestCasesWithAny(t *testing.T) {
	idx := Build(testLog())

	got := idx.CasesWithAny("retry", "answer")
	want := []string{"c1", "c2", "c3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v in log order, got %v", want, got)
	}
}

func TestEmptyLog(t *testing.T) {
	idx := Build(model.NewEventLog(nil, 0))
	if idx.NumCases() != 0 {
		t.Errorf("expected 0 cases, got %d", idx.NumCases())
	}
	if got := idx.CasesWithAny("anything"); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

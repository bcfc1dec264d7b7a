package variants

import (
	"math"
	"sort"
	"testing"

	"github.com/tracemine/tracemine/internal/model"
)

func logWith(seqs map[string][]string, outcomes map[string]model.Outcome) *model.EventLog {
	ids := make([]string, 0, len(seqs))
	for id := range seqs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var events []model.Event
	for _, id := range ids {
		out := model.OutcomeUnknown
		if outcomes != nil {
			if o, ok := outcomes[id]; ok {
				out = o
			}
		}
		for i, act := range seqs[id] {
			events = append(events, model.Event{
				CaseID:       id,
				Activity:     act,
				Timestamp:    int64(i),
				Duration:     model.NoDuration,
				Outcome:      out,
				FlattenIndex: i,
			})
		}
	}
	return model.NewEventLog(events, 0)
}

func TestAnalyzeGroupsIdenticalSequences(t *testing.T) {
	log := logWith(map[string][]string{
		"c1": {"plan", "act", "done"},
		"c2": {"plan", "act", "done"},
		"c3": {"plan", "done"},
	}, nil)

	analysis := Analyze(log)

	if analysis.TotalCases != 3 {
		t.Errorf("expected 3 total cases, got %d", analysis.TotalCases)
	}
	if len(analysis.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(analysis.Variants))
	}

	top := analysis.Variants[0]
	if top.Frequency != 2 {
		t.Errorf("expected top variant frequency 2, got %d", top.Frequency)
	}
	if top.Name() != "plan → act → done" {
		t.Errorf("unexpected variant name: %s", top.Name())
	}
	if len(top.CaseIDs) != 2 || top.CaseIDs[0] != "c1" || top.CaseIDs[1] != "c2" {
		t.Errorf("unexpected case ids: %v", top.CaseIDs)
	}
	if math.Abs(top.RelativeFrequency-2.0/3.0) > 1e-9 {
		t.Errorf("unexpected relative frequency: %f", top.RelativeFrequency)
	}
}

func TestAnalyzeFrequenciesSumToTotal(t *testing.T) {
	log := logWith(map[string][]string{
		"c1": {"a"},
		"c2": {"a", "b"},
		"c3": {"a"},
		"c4": {"b"},
		"c5": {"a", "b"},
	}, nil)

	analysis := Analyze(log)

	var sum int
	var relSum float64
	for _, v := range analysis.Variants {
		sum += v.Frequency
		relSum += v.RelativeFrequency
	}
	if sum != analysis.TotalCases {
		t.Errorf("variant frequencies sum to %d, want %d", sum, analysis.TotalCases)
	}
	if math.Abs(relSum-1.0) > 1e-9 {
		t.Errorf("relative frequencies sum to %f, want 1", relSum)
	}
}

func TestAnalyzeDistinguishesActivityBoundaries(t *testing.T) {
	// "ab"+"c" and "a"+"bc" are different variants.
	log := logWith(map[string][]string{
		"c1": {"ab", "c"},
		"c2": {"a", "bc"},
	}, nil)

	analysis := Analyze(log)
	if len(analysis.Variants) != 2 {
		t.Errorf("expected 2 variants, got %d", len(analysis.Variants))
	}
}

func TestAnalyzeTieBreakByFirstCase(t *testing.T) {
	log := logWith(map[string][]string{
		"c1": {"x"},
		"c2": {"y"},
	}, nil)

	analysis := Analyze(log)
	if len(analysis.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(analysis.Variants))
	}
	if analysis.Variants[0].CaseIDs[0] != "c1" {
		t.Errorf("tied variants must sort by first case id, got %s first",
			analysis.Variants[0].CaseIDs[0])
	}
}

func TestAnalyzeSuccessRate(t *testing.T) {
	log := logWith(map[string][]string{
		"c1": {"a", "b"},
		"c2": {"a", "b"},
		"c3": {"a", "b"},
		"c4": {"x"},
	}, map[string]model.Outcome{
		"c1": model.OutcomeSuccess,
		"c2": model.OutcomeFailure,
		"c3": model.OutcomeSuccess,
	})

	analysis := Analyze(log)
	top := analysis.Variants[0]
	if !top.HasSuccessRate {
		t.Fatal("variant with known outcomes must report a success rate")
	}
	if math.Abs(top.SuccessRate-2.0/3.0) > 1e-9 {
		t.Errorf("expected success rate 2/3, got %f", top.SuccessRate)
	}

	other := analysis.Variants[1]
	if other.HasSuccessRate {
		t.Error("variant with only unknown outcomes must not report a success rate")
	}
}

func TestAnalyzeEmptyLog(t *testing.T) {
	analysis := Analyze(model.NewEventLog(nil, 0))
	if analysis.TotalCases != 0 || len(analysis.Variants) != 0 {
		t.Error("empty log must yield an empty analysis")
	}
}

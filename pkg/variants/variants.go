// Package variants groups cases by their exact activity sequence.
package variants

import (
	"sort"
	"strings"

	"github.com/tracemine/tracemine/internal/model"
)

// sep joins activity names into a grouping key. Unit separator, unlikely
// to appear in an activity name.
const sep = "\x1f"

// Variant is a distinct ordered activity sequence shared by one or more
// cases.
type Variant struct {
	// Sequence is the ordered activity names, including repeats.
	Sequence []string `json:"sequence"`

	// CaseIDs lists member cases in log order. The first entry is the
	// ordering tie-break.
	CaseIDs []string `json:"case_ids"`

	// Frequency is the number of member cases.
	Frequency int `json:"frequency"`

	// RelativeFrequency is Frequency over the total non-skipped cases.
	RelativeFrequency float64 `json:"relative_frequency"`

	// SuccessRate is the fraction of member cases with a true outcome,
	// over member cases whose outcome is known. Valid only when
	// HasSuccessRate is true.
	SuccessRate    float64 `json:"success_rate"`
	HasSuccessRate bool    `json:"has_success_rate"`
}

// Name renders the sequence for display, e.g. "plan → search → answer".
func (v *Variant) Name() string {
	return strings.Join(v.Sequence, " → ")
}

// Analysis is the result of variant partitioning.
type Analysis struct {
	// Variants sorted by frequency descending, ties by first-occurrence
	// case id.
	Variants []Variant

	// TotalCases is the number of non-skipped cases analyzed. The sum of
	// variant frequencies always equals this.
	TotalCases int
}

// Analyze partitions the log's cases into variants. Two cases share a
// variant iff their activity sequences are element-wise equal, repeats
// included. Cases with an unknown outcome count toward frequency but not
// toward the success-rate denominator. Empty input yields an empty
// analysis, never an error.
func Analyze(log *model.EventLog) *Analysis {
	type group struct {
		sequence []string
		caseIDs  []string
		success  int
		known    int
	}

	groups := make(map[string]*group)
	var order []string

	for _, caseID := range log.CaseIDs() {
		events := log.Case(caseID)
		if len(events) == 0 {
			continue
		}

		seq := log.ActivitySequence(caseID)
		key := strings.Join(seq, sep)
		g, ok := groups[key]
		if !ok {
			g = &group{sequence: seq}
			groups[key] = g
			order = append(order, key)
		}
		g.caseIDs = append(g.caseIDs, caseID)

		switch events[0].Outcome {
		case model.OutcomeSuccess:
			g.known++
			g.success++
		case model.OutcomeFailure:
			g.known++
		}
	}

	total := log.NumCases()
	analysis := &Analysis{TotalCases: total}
	for _, key := range order {
		g := groups[key]
		v := Variant{
			Sequence:  g.sequence,
			CaseIDs:   g.caseIDs,
			Frequency: len(g.caseIDs),
		}
		if total > 0 {
			v.RelativeFrequency = float64(v.Frequency) / float64(total)
		}
		if g.known > 0 {
			v.SuccessRate = float64(g.success) / float64(g.known)
			v.HasSuccessRate = true
		}
		analysis.Variants = append(analysis.Variants, v)
	}

	sort.SliceStable(analysis.Variants, func(i, j int) bool {
		a, b := &analysis.Variants[i], &analysis.Variants[j]
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.CaseIDs[0] < b.CaseIDs[0]
	})

	return analysis
}

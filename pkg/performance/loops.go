package performance

import "github.com/tracemine/tracemine/internal/model"

// Loop is one detected looping sub-pattern within a case.
type Loop struct {
	// CaseID identifies the case containing the loop.
	CaseID string `json:"case_id"`

	// Cycle is the repeating unit: one activity for an immediate repeat,
	// two for an alternation.
	Cycle []string `json:"cycle"`

	// Length is the length of the matched sub-sequence.
	Length int `json:"length"`

	// Repeats is Length divided by the cycle length.
	Repeats int `json:"repeats"`

	// Start is the position of the first matched event within the case.
	Start int `json:"start"`
}

// DetectLoops scans every case for looping sub-patterns. The detector is
// a heuristic, not exact cycle enumeration: it flags immediately-repeated
// activities (A, A) and two-activity alternations (A, B, A, B) of length
// four or more. Each maximal run is reported once. Results follow log
// order, so they are deterministic.
func DetectLoops(log *model.EventLog) []Loop {
	var loops []Loop
	for _, caseID := range log.CaseIDs() {
		seq := log.ActivitySequence(caseID)
		loops = append(loops, scanRepeats(caseID, seq)...)
		loops = append(loops, scanAlternations(caseID, seq)...)
	}
	return loops
}

// scanRepeats finds maximal runs of an immediately-repeated activity.
func scanRepeats(caseID string, seq []string) []Loop {
	var loops []Loop
	for i := 0; i < len(seq); {
		j := i + 1
		for j < len(seq) && seq[j] == seq[i] {
			j++
		}
		if j-i >= 2 {
			loops = append(loops, Loop{
				CaseID:  caseID,
				Cycle:   []string{seq[i]},
				Length:  j - i,
				Repeats: j - i,
				Start:   i,
			})
		}
		i = j
	}
	return loops
}

// scanAlternations finds maximal A,B,A,B runs with A != B. A run must
// cover at least two full cycles (length >= 4) to be flagged.
func scanAlternations(caseID string, seq []string) []Loop {
	var loops []Loop
	for i := 0; i+3 < len(seq); {
		a, b := seq[i], seq[i+1]
		if a == b {
			i++
			continue
		}

		j := i + 2
		for j < len(seq) {
			want := a
			if (j-i)%2 == 1 {
				want = b
			}
			if seq[j] != want {
				break
			}
			j++
		}

		length := j - i
		if length >= 4 {
			loops = append(loops, Loop{
				CaseID:  caseID,
				Cycle:   []string{a, b},
				Length:  length,
				Repeats: length / 2,
				Start:   i,
			})
			// Resume after the run; the tail pair cannot start another
			// maximal alternation of the same two activities.
			i = j - 1
			continue
		}
		i++
	}
	return loops
}

package model

import "sort"

// NoDuration is the sentinel for an absent event duration.
// Kept as a plain int64 so the column maps directly onto Arrow/Parquet.
const NoDuration int64 = -1

// Outcome is the tri-state case outcome inherited from the parent trace.
type Outcome uint8

const (
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// OutcomeOf converts an optional success flag to an Outcome.
func OutcomeOf(success *bool) Outcome {
	switch {
	case success == nil:
		return OutcomeUnknown
	case *success:
		return OutcomeSuccess
	default:
		return OutcomeFailure
	}
}

// Event is the flattened projection of one observation.
// Timestamps are stored as int64 nanoseconds since Unix epoch (UTC),
// matching the columnar output schema.
type Event struct {
	// CaseID identifies the owning trace.
	CaseID string

	// Activity is the observation name.
	Activity string

	// Timestamp in nanoseconds since Unix epoch.
	Timestamp int64

	// Duration in nanoseconds, or NoDuration when the observation had no
	// end timestamp.
	Duration int64

	// Outcome is inherited from the parent trace.
	Outcome Outcome

	// FlattenIndex is the depth-first position of the source observation
	// within its trace. It is the tie-break for equal timestamps, which
	// makes the per-case ordering a stable total order.
	FlattenIndex int
}

// HasDuration reports whether the event carries a valid duration.
func (e *Event) HasDuration() bool {
	return e.Duration >= 0
}

// EventLog is the flat, ordered collection of events across all cases.
// Events are grouped by case and, within a case, sorted by
// (timestamp, flatten index). The log is immutable once built.
type EventLog struct {
	// Events holds all events, case-contiguous, ordered per case.
	Events []Event

	// SkippedCases counts cases dropped in lenient mode (missing
	// timestamps or zero observations).
	SkippedCases int

	// cases maps case id to the [start, end) range in Events.
	cases map[string][2]int

	// caseOrder lists case ids in log order.
	caseOrder []string
}

// NewEventLog assembles an event log from case-contiguous events.
// The caller guarantees the per-case ordering invariant.
func NewEventLog(events []Event, skipped int) *EventLog {
	log := &EventLog{
		Events:       events,
		SkippedCases: skipped,
		cases:        make(map[string][2]int),
	}
	for i := 0; i < len(events); {
		j := i
		for j < len(events) && events[j].CaseID == events[i].CaseID {
			j++
		}
		log.cases[events[i].CaseID] = [2]int{i, j}
		log.caseOrder = append(log.caseOrder, events[i].CaseID)
		i = j
	}
	return log
}

// CaseIDs returns all case ids in log order.
func (l *EventLog) CaseIDs() []string {
	return l.caseOrder
}

// NumCases returns the number of non-skipped cases.
func (l *EventLog) NumCases() int {
	return len(l.caseOrder)
}

// Case returns the events of one case, or nil when the case is unknown.
func (l *EventLog) Case(id string) []Event {
	r, ok := l.cases[id]
	if !ok {
		return nil
	}
	return l.Events[r[0]:r[1]]
}

// HasCase reports whether the log contains the given case.
func (l *EventLog) HasCase(id string) bool {
	_, ok := l.cases[id]
	return ok
}

// ActivitySequence returns the ordered activity names of one case.
func (l *EventLog) ActivitySequence(id string) []string {
	events := l.Case(id)
	seq := make([]string, len(events))
	for i, e := range events {
		seq[i] = e.Activity
	}
	return seq
}

// Activities returns the sorted set of distinct activity names in the log.
func (l *EventLog) Activities() []string {
	seen := make(map[string]struct{})
	for i := range l.Events {
		seen[l.Events[i].Activity] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

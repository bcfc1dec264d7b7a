// Package eventlog flattens traces into the event log consumed by every
// downstream analyzer, and imports flat event logs (CSV, XLSX) that need
// no flattening.
package eventlog

import (
	"fmt"
	"sort"

	"github.com/tracemine/tracemine/internal/model"
)

// Mode controls how the builder treats observations without a start time.
type Mode uint8

const (
	// ModeLenient drops the affected case and counts it in SkippedCases.
	ModeLenient Mode = iota

	// ModeStrict fails the whole build on the first missing timestamp.
	ModeStrict
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "lenient"
}

// Config holds builder configuration. It is passed explicitly into Build;
// there is no ambient state.
type Config struct {
	// Mode selects strict or lenient handling of missing start times.
	Mode Mode
}

// DefaultConfig returns a Config with lenient timestamp handling.
func DefaultConfig() Config {
	return Config{Mode: ModeLenient}
}

// MissingTimestampError reports an observation without a usable start time.
// In strict mode it aborts the build; in lenient mode the case is dropped
// and tallied instead.
type MissingTimestampError struct {
	CaseID   string
	Activity string
}

// Error implements the error interface.
func (e *MissingTimestampError) Error() string {
	return fmt.Sprintf("eventlog: case %s: observation %q has no start timestamp", e.CaseID, e.Activity)
}

// Build flattens traces into a well-formed event log. Each observation
// becomes one event attributed to the top-level case id and inheriting the
// trace outcome. Per case, events are sorted by (timestamp, depth-first
// flattening index); the index tie-break makes the ordering a stable total
// order even under coarse timer resolution. Cases appear in the log
// ordered by case id, so the output is independent of input ordering.
func Build(traces []*model.Trace, cfg Config) (*model.EventLog, error) {
	cases := make(map[string][]model.Event, len(traces))
	skipped := 0

	for _, trace := range traces {
		if _, dup := cases[trace.ID]; dup {
			return nil, fmt.Errorf("eventlog: duplicate case id %q", trace.ID)
		}

		if trace.Len() == 0 {
			// Not an error, but reportable.
			skipped++
			continue
		}

		events, err := flatten(trace, cfg)
		if err != nil {
			return nil, err
		}
		if events == nil {
			skipped++
			continue
		}
		cases[trace.ID] = events
	}

	return assemble(cases, skipped), nil
}

// flatten projects one trace's observation arena into ordered events.
// A nil, nil return means the case was dropped in lenient mode.
func flatten(trace *model.Trace, cfg Config) ([]model.Event, error) {
	outcome := model.OutcomeOf(trace.Outcome)
	events := make([]model.Event, 0, trace.Len())

	// The arena is already in depth-first document order; the arena index
	// is the flattening index.
	for i := range trace.Observations {
		obs := &trace.Observations[i]
		if obs.Start.IsZero() {
			if cfg.Mode == ModeStrict {
				return nil, &MissingTimestampError{CaseID: trace.ID, Activity: obs.Name}
			}
			return nil, nil
		}

		duration := model.NoDuration
		if d, ok := obs.Duration(); ok {
			duration = d.Nanoseconds()
		}

		events = append(events, model.Event{
			CaseID:       trace.ID,
			Activity:     obs.Name,
			Timestamp:    obs.Start.UnixNano(),
			Duration:     duration,
			Outcome:      outcome,
			FlattenIndex: i,
		})
	}

	sortCase(events)
	return events, nil
}

// sortCase orders one case's events by (timestamp, flattening index).
func sortCase(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].FlattenIndex < events[j].FlattenIndex
	})
}

// assemble concatenates per-case event slices into the final log, with
// cases ordered by case id.
func assemble(cases map[string][]model.Event, skipped int) *model.EventLog {
	ids := make([]string, 0, len(cases))
	total := 0
	for id, events := range cases {
		ids = append(ids, id)
		total += len(events)
	}
	sort.Strings(ids)

	flat := make([]model.Event, 0, total)
	for _, id := range ids {
		flat = append(flat, cases[id]...)
	}
	return model.NewEventLog(flat, skipped)
}

// Package model defines core data structures for TraceMine.
package model

import "time"

// Observation is one unit of work inside a trace: a tool call, a model
// generation, or a plain span. Observations form a tree; the tree is stored
// as a flat arena per trace with parent-child links by index, so analyzers
// never need to re-walk nested structures.
type Observation struct {
	// Name is the activity label (e.g., "web_search", "generation").
	Name string

	// Type tags the kind of observation: "generation", "tool", "span".
	Type string

	// Start is the observation start time. A zero value means the start
	// timestamp was absent from the export.
	Start time.Time

	// End is the observation end time. A zero value means the observation
	// has no recorded end; its duration is then undefined.
	End time.Time

	// Parent is the arena index of the parent observation, or -1 for a
	// root observation.
	Parent int

	// Children holds arena indices of direct children, in recorded order.
	Children []int
}

// HasEnd reports whether the observation carries an end timestamp.
func (o *Observation) HasEnd() bool {
	return !o.End.IsZero()
}

// Duration returns the observation duration, or false when the end
// timestamp is absent.
func (o *Observation) Duration() (time.Duration, bool) {
	if o.Start.IsZero() || o.End.IsZero() {
		return 0, false
	}
	return o.End.Sub(o.Start), true
}

// Trace is one end-to-end case: a single agent execution. Traces are
// immutable after loading.
type Trace struct {
	// ID is the unique case identifier.
	ID string

	// Observations is the arena of all observations in the trace, stored
	// in document order (parents before their children, siblings in
	// recorded order). Roots lists the arena indices of top-level
	// observations.
	Observations []Observation
	Roots        []int

	// Outcome is the success flag from the export metadata, if present.
	Outcome *bool

	// Metadata carries the record's metadata mapping. Unknown keys are
	// preserved unmodified for forward compatibility.
	Metadata map[string]any
}

// AddObservation appends an observation to the arena and wires the
// parent-child links. parent is an arena index or -1 for a root.
// It returns the arena index of the new observation.
func (t *Trace) AddObservation(obs Observation, parent int) int {
	idx := len(t.Observations)
	obs.Parent = parent
	t.Observations = append(t.Observations, obs)
	if parent < 0 {
		t.Roots = append(t.Roots, idx)
	} else {
		t.Observations[parent].Children = append(t.Observations[parent].Children, idx)
	}
	return idx
}

// Len returns the number of observations in the trace.
func (t *Trace) Len() int {
	return len(t.Observations)
}

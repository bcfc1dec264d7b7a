// Package discovery computes directly-follows graphs from event logs.
package discovery

import (
	"sort"

	"github.com/tracemine/tracemine/internal/model"
)

// DFG is a Directly-Follows Graph.
// Mathematical definition: G = (A, F, S, E) where:
//   - A: set of activities
//   - F: directly-follows edges weighted by observed frequency
//   - S, E: counts of cases starting/ending with each activity
type DFG struct {
	// Activities is the sorted set of activity names.
	Activities []string

	// Edges maps source activity -> target activity -> count of direct
	// successions aggregated across all cases.
	Edges map[string]map[string]int64

	// StartActivities counts cases whose first event has a given activity.
	StartActivities map[string]int64

	// EndActivities counts cases whose last event has a given activity.
	EndActivities map[string]int64
}

// Edge is one weighted directly-follows relation.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Count  int64  `json:"count"`
}

// NewDFG creates an empty DFG.
func NewDFG() *DFG {
	return &DFG{
		Edges:           make(map[string]map[string]int64),
		StartActivities: make(map[string]int64),
		EndActivities:   make(map[string]int64),
	}
}

// Discover builds the DFG of an event log.
// Algorithm:
//  1. For each case, walk adjacent event pairs (e_i, e_i+1) in the
//     builder's within-case order and count (activity_i, activity_i+1).
//  2. Count the first and last activity of every case.
//
// Aggregation is commutative, so results are invariant to case input
// ordering. A single-event case contributes to start and end counts but
// no edge. Empty input yields empty maps, never an error.
func Discover(log *model.EventLog) *DFG {
	dfg := NewDFG()
	dfg.Activities = log.Activities()

	for _, caseID := range log.CaseIDs() {
		events := log.Case(caseID)
		if len(events) == 0 {
			continue
		}

		dfg.StartActivities[events[0].Activity]++
		dfg.EndActivities[events[len(events)-1].Activity]++

		for i := 0; i+1 < len(events); i++ {
			src := events[i].Activity
			dst := events[i+1].Activity
			if dfg.Edges[src] == nil {
				dfg.Edges[src] = make(map[string]int64)
			}
			dfg.Edges[src][dst]++
		}
	}

	return dfg
}

// EdgeCount returns the observed frequency of the (source, target) edge.
func (d *DFG) EdgeCount(source, target string) int64 {
	if m, ok := d.Edges[source]; ok {
		return m[target]
	}
	return 0
}

// NumEdges returns the number of distinct directly-follows edges.
func (d *DFG) NumEdges() int {
	n := 0
	for _, m := range d.Edges {
		n += len(m)
	}
	return n
}

// EdgeList returns all edges sorted by count descending, ties broken by
// source then target name, for deterministic presentation output.
func (d *DFG) EdgeList() []Edge {
	edges := make([]Edge, 0, d.NumEdges())
	for src, targets := range d.Edges {
		for dst, count := range targets {
			edges = append(edges, Edge{Source: src, Target: dst, Count: count})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Count != edges[j].Count {
			return edges[i].Count > edges[j].Count
		}
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}

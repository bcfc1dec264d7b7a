package model

import (
	"reflect"
	"testing"
)

func TestOutcomeOf(t *testing.T) {
	yes, no := true, false
	cases := []struct {
		in   *bool
		want Outcome
	}{
		{nil, OutcomeUnknown},
		{&yes, OutcomeSuccess},
		{&no, OutcomeFailure},
	}
	for _, tc := range cases {
		if got := OutcomeOf(tc.in); got != tc.want {
			t.Errorf("OutcomeOf(%v): expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestEventHasDuration(t *testing.T) {
	if (&Event{Duration: NoDuration}).HasDuration() {
		t.Error("NoDuration must report no duration")
	}
	if !(&Event{Duration: 0}).HasDuration() {
		t.Error("zero is a valid instantaneous duration")
	}
	if !(&Event{Duration: 100}).HasDuration() {
		t.Error("positive duration must report true")
	}
}

func TestNewEventLogCaseScan(t *testing.T) {
	events := []Event{
		{CaseID: "a", Activity: "x", Timestamp: 0},
		{CaseID: "a", Activity: "y", Timestamp: 1, FlattenIndex: 1},
		{CaseID: "b", Activity: "z", Timestamp: 0},
	}
	log := NewEventLog(events, 2)

	if log.NumCases() != 2 {
		t.Errorf("expected 2 cases, got %d", log.NumCases())
	}
	if log.SkippedCases != 2 {
		t.Errorf("expected 2 skipped, got %d", log.SkippedCases)
	}
	if !log.HasCase("a") || !log.HasCase("b") || log.HasCase("c") {
		t.Error("unexpected case membership")
	}

	a := log.Case("a")
	if len(a) != 2 || a[0].Activity != "x" || a[1].Activity != "y" {
		t.Errorf("unexpected case slice: %+v", a)
	}
	if log.Case("missing") != nil {
		t.Error("unknown case must yield nil")
	}

	if got := log.ActivitySequence("b"); !reflect.DeepEqual(got, []string{"z"}) {
		t.Errorf("unexpected sequence: %v", got)
	}
}

func TestEventLogActivities(t *testing.T) {
	log := NewEventLog([]Event{
		{CaseID: "a", Activity: "y", Timestamp: 0},
		{CaseID: "a", Activity: "x", Timestamp: 1, FlattenIndex: 1},
		{CaseID: "b", Activity: "x", Timestamp: 0},
	}, 0)

	want := []string{"x", "y"}
	if got := log.Activities(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestEventLogCaseOrder(t *testing.T) {
	log := NewEventLog([]Event{
		{CaseID: "zebra", Activity: "x", Timestamp: 0},
		{CaseID: "alpha", Activity: "x", Timestamp: 0},
	}, 0)

	// CaseIDs preserves the slice's block order.
	want := []string{"zebra", "alpha"}
	if got := log.CaseIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

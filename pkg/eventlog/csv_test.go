package eventlog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tracemine/tracemine/internal/model"
)

const flatLog = `case:concept:name,concept:name,time:timestamp
c1,plan,2025-03-01T10:00:00.000Z
c1,act,2025-03-01T10:00:05.000Z
c2,plan,2025-03-01T11:00:00.000Z
`

func TestImportCSV(t *testing.T) {
	log, err := ImportCSV(context.Background(), strings.NewReader(flatLog), DefaultImportConfig())
	if err != nil {
		t.Fatalf("ImportCSV failed: %v", err)
	}

	if log.NumCases() != 2 {
		t.Fatalf("expected 2 cases, got %d", log.NumCases())
	}
	seq := log.ActivitySequence("c1")
	if len(seq) != 2 || seq[0] != "plan" || seq[1] != "act" {
		t.Errorf("unexpected c1 sequence: %v", seq)
	}
	for _, e := range log.Events {
		if e.HasDuration() {
			t.Errorf("flat rows carry no duration, got %d for %s", e.Duration, e.Activity)
		}
	}
}

func TestImportCSVCustomColumns(t *testing.T) {
	in := "run;step;when\nr1;load;2025-03-01 10:00:00\nr1;parse;2025-03-01 10:00:01\n"

	cfg := DefaultImportConfig()
	cfg.CaseIDColumn = "run"
	cfg.ActivityColumn = "step"
	cfg.TimestampColumn = "when"
	cfg.Delimiter = ';'

	log, err := ImportCSV(context.Background(), strings.NewReader(in), cfg)
	if err != nil {
		t.Fatalf("ImportCSV failed: %v", err)
	}
	seq := log.ActivitySequence("r1")
	if len(seq) != 2 || seq[0] != "load" || seq[1] != "parse" {
		t.Errorf("unexpected sequence: %v", seq)
	}
}

func TestImportCSVOutcomeColumn(t *testing.T) {
	in := `case:concept:name,concept:name,time:timestamp,success
ok,plan,2025-03-01T10:00:00.000Z,true
bad,plan,2025-03-01T10:00:00.000Z,0
meh,plan,2025-03-01T10:00:00.000Z,
`
	cfg := DefaultImportConfig()
	cfg.OutcomeColumn = "success"

	log, err := ImportCSV(context.Background(), strings.NewReader(in), cfg)
	if err != nil {
		t.Fatalf("ImportCSV failed: %v", err)
	}

	want := map[string]model.Outcome{
		"ok":  model.OutcomeSuccess,
		"bad": model.OutcomeFailure,
		"meh": model.OutcomeUnknown,
	}
	for id, outcome := range want {
		events := log.Case(id)
		if len(events) != 1 {
			t.Fatalf("case %s: expected 1 event, got %d", id, len(events))
		}
		if events[0].Outcome != outcome {
			t.Errorf("case %s: expected %s, got %s", id, outcome, events[0].Outcome)
		}
	}
}

func TestImportCSVMissingColumn(t *testing.T) {
	in := "case:concept:name,concept:name\nc1,plan\n"

	_, err := ImportCSV(context.Background(), strings.NewReader(in), DefaultImportConfig())
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestImportCSVEmptyInput(t *testing.T) {
	_, err := ImportCSV(context.Background(), strings.NewReader(""), DefaultImportConfig())
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestImportCSVLenientDropsBadTimestampCase(t *testing.T) {
	in := `case:concept:name,concept:name,time:timestamp
good,plan,2025-03-01T10:00:00.000Z
bad,plan,2025-03-01T10:00:00.000Z
bad,act,not-a-time
bad,done,2025-03-01T10:00:02.000Z
`
	log, err := ImportCSV(context.Background(), strings.NewReader(in), DefaultImportConfig())
	if err != nil {
		t.Fatalf("ImportCSV failed: %v", err)
	}
	if log.NumCases() != 1 || log.SkippedCases != 1 {
		t.Errorf("expected 1 case / 1 skipped, got %d / %d", log.NumCases(), log.SkippedCases)
	}
	if log.HasCase("bad") {
		t.Error("case with unparseable timestamp must be dropped entirely")
	}
}

func TestImportCSVStrictFailsOnBadTimestamp(t *testing.T) {
	in := "case:concept:name,concept:name,time:timestamp\nc1,plan,garbage\n"

	cfg := DefaultImportConfig()
	cfg.Mode = ModeStrict

	_, err := ImportCSV(context.Background(), strings.NewReader(in), cfg)
	var missing *MissingTimestampError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingTimestampError, got %v", err)
	}
	if missing.CaseID != "c1" {
		t.Errorf("unexpected case id: %s", missing.CaseID)
	}
}

func TestImportCSVMissingCaseID(t *testing.T) {
	in := "case:concept:name,concept:name,time:timestamp\n,plan,2025-03-01T10:00:00.000Z\n"

	_, err := ImportCSV(context.Background(), strings.NewReader(in), DefaultImportConfig())
	var missing *MissingCaseIDError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingCaseIDError, got %v", err)
	}
}

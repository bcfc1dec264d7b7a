package eventlog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tracemine/tracemine/internal/model"
)

var (
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("eventlog: required column missing")

	// ErrEmptyInput is returned when a flat import has no header row.
	ErrEmptyInput = errors.New("eventlog: input has no header row")
)

// ImportConfig maps flat event-log columns onto the event schema.
// Defaults follow XES naming, which most process-mining tools emit.
type ImportConfig struct {
	// Mode selects strict or lenient handling of missing timestamps.
	Mode Mode

	// CaseIDColumn is the case identifier column.
	CaseIDColumn string

	// ActivityColumn is the activity name column.
	ActivityColumn string

	// TimestampColumn is the event timestamp column.
	TimestampColumn string

	// OutcomeColumn optionally names a boolean success column.
	OutcomeColumn string

	// TimestampFormat is a Go time layout tried before the common ones.
	TimestampFormat string

	// Delimiter is the CSV field delimiter (default: comma).
	Delimiter rune
}

// DefaultImportConfig returns an ImportConfig with XES column defaults.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		Mode:            ModeLenient,
		CaseIDColumn:    "case:concept:name",
		ActivityColumn:  "concept:name",
		TimestampColumn: "time:timestamp",
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		Delimiter:       ',',
	}
}

// ImportCSV reads a flat CSV event log. Each row is one event; rows are
// grouped by case and sorted like Build output, so the same
// well-formedness guarantees hold after import.
func ImportCSV(ctx context.Context, r io.Reader, cfg ImportConfig) (*model.EventLog, error) {
	reader := csv.NewReader(r)
	if cfg.Delimiter != 0 {
		reader.Comma = cfg.Delimiter
	}
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("eventlog: reading header: %w", err)
	}

	imp, err := newRowImporter(header, cfg)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("eventlog: reading row: %w", err)
		}
		if err := imp.addRow(row); err != nil {
			return nil, err
		}
	}

	return imp.finish(), nil
}

// rowImporter accumulates flat rows into per-case event slices.
type rowImporter struct {
	cfg     ImportConfig
	caseIdx int
	actIdx  int
	tsIdx   int
	outIdx  int // -1 when no outcome column

	cases    map[string][]model.Event
	dropped  map[string]bool
	rowInCase map[string]int
}

func newRowImporter(header []string, cfg ImportConfig) (*rowImporter, error) {
	idx := func(name string) int {
		for i, h := range header {
			if strings.TrimSpace(h) == name {
				return i
			}
		}
		return -1
	}

	imp := &rowImporter{
		cfg:       cfg,
		caseIdx:   idx(cfg.CaseIDColumn),
		actIdx:    idx(cfg.ActivityColumn),
		tsIdx:     idx(cfg.TimestampColumn),
		outIdx:    -1,
		cases:     make(map[string][]model.Event),
		dropped:   make(map[string]bool),
		rowInCase: make(map[string]int),
	}
	if cfg.OutcomeColumn != "" {
		imp.outIdx = idx(cfg.OutcomeColumn)
	}

	if imp.caseIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, cfg.CaseIDColumn)
	}
	if imp.actIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, cfg.ActivityColumn)
	}
	if imp.tsIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, cfg.TimestampColumn)
	}
	return imp, nil
}

// addRow converts one flat row into an event. A row whose timestamp is
// missing drops (lenient) or fails (strict) its whole case, mirroring the
// builder contract.
func (imp *rowImporter) addRow(row []string) error {
	field := func(i int) string {
		if i >= 0 && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	caseID := field(imp.caseIdx)
	activity := field(imp.actIdx)
	if caseID == "" {
		return &MissingCaseIDError{Activity: activity}
	}
	if imp.dropped[caseID] {
		return nil
	}

	ts, err := imp.parseTimestamp(field(imp.tsIdx))
	if err != nil {
		if imp.cfg.Mode == ModeStrict {
			return &MissingTimestampError{CaseID: caseID, Activity: activity}
		}
		imp.dropped[caseID] = true
		delete(imp.cases, caseID)
		return nil
	}

	outcome := model.OutcomeUnknown
	if imp.outIdx >= 0 {
		switch strings.ToLower(field(imp.outIdx)) {
		case "true", "1", "success":
			outcome = model.OutcomeSuccess
		case "false", "0", "failure":
			outcome = model.OutcomeFailure
		}
	}

	n := imp.rowInCase[caseID]
	imp.rowInCase[caseID] = n + 1
	imp.cases[caseID] = append(imp.cases[caseID], model.Event{
		CaseID:       caseID,
		Activity:     activity,
		Timestamp:    ts,
		Duration:     model.NoDuration,
		Outcome:      outcome,
		FlattenIndex: n,
	})
	return nil
}

func (imp *rowImporter) parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty timestamp")
	}
	layouts := []string{
		imp.cfg.TimestampFormat,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if layout == "" {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().UnixNano(), nil
		}
	}
	return 0, fmt.Errorf("unparseable timestamp %q", s)
}

// finish sorts each case and assembles the log. Dropped cases count as
// skipped, same as builder output.
func (imp *rowImporter) finish() *model.EventLog {
	for id := range imp.cases {
		sortCase(imp.cases[id])
	}
	return assemble(imp.cases, len(imp.dropped))
}

// MissingCaseIDError reports a flat row without a case identifier.
type MissingCaseIDError struct {
	Activity string
}

// Error implements the error interface.
func (e *MissingCaseIDError) Error() string {
	return fmt.Sprintf("eventlog: row for activity %q has no case id", e.Activity)
}

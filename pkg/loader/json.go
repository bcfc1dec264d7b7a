package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tracemine/tracemine/internal/model"
)

// traceRecord is the wire shape of one exported trace.
type traceRecord struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Observations []obsRecord    `json:"observations"`
	Metadata     map[string]any `json:"metadata"`
	Success      *bool          `json:"success"`
}

// obsRecord is the wire shape of one observation. Exports disagree on key
// names for timestamps and nesting, so the common aliases are accepted.
type obsRecord struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	StartTime string      `json:"startTime"`
	Start     string      `json:"start"`
	EndTime   string      `json:"endTime"`
	End       string      `json:"end"`
	Nested    []obsRecord `json:"observations"`
	Children  []obsRecord `json:"children"`
}

func (o *obsRecord) start() string {
	if o.StartTime != "" {
		return o.StartTime
	}
	return o.Start
}

func (o *obsRecord) end() string {
	if o.EndTime != "" {
		return o.EndTime
	}
	return o.End
}

func (o *obsRecord) children() []obsRecord {
	if len(o.Nested) > 0 {
		return o.Nested
	}
	return o.Children
}

// Load parses a batch export from r. The format is sniffed from the first
// non-space byte: '[' means a single JSON array of trace records, anything
// else is treated as JSONL with one record per line.
func Load(ctx context.Context, r io.Reader) ([]*model.Trace, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loader: reading export: %w", err)
	}

	if first == '[' {
		return loadArray(ctx, br)
	}
	return loadLines(ctx, br)
}

// peekNonSpace returns the first non-whitespace byte without consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			if err := br.UnreadByte(); err != nil {
				return 0, err
			}
			return b, nil
		}
	}
}

func loadArray(ctx context.Context, r io.Reader) ([]*model.Trace, error) {
	dec := json.NewDecoder(r)

	// Consume the opening bracket, then stream records one by one so a
	// single malformed record can be reported by position.
	if _, err := dec.Token(); err != nil {
		return nil, &MalformedInputError{Record: "export", Reason: "not a JSON array", Err: err}
	}

	var traces []*model.Trace
	n := 0
	for dec.More() {
		select {
		case <-ctx.Done():
			return nil, ErrContextCanceled
		default:
		}

		n++
		var rec traceRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, &MalformedInputError{
				Record: fmt.Sprintf("record %d", n),
				Reason: "unparseable record shape",
				Err:    err,
			}
		}
		trace, err := buildTrace(&rec, n)
		if err != nil {
			return nil, err
		}
		traces = append(traces, trace)
	}
	return traces, nil
}

func loadLines(ctx context.Context, r io.Reader) ([]*model.Trace, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 32*1024*1024) // 32MB max line

	var traces []*model.Trace
	n := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ErrContextCanceled
		default:
		}

		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		n++
		var rec traceRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, &MalformedInputError{
				Record: fmt.Sprintf("record %d", n),
				Reason: "unparseable record shape",
				Err:    err,
			}
		}
		trace, err := buildTrace(&rec, n)
		if err != nil {
			return nil, err
		}
		traces = append(traces, trace)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("loader: reading export: %w", err)
	}
	return traces, nil
}

// buildTrace converts one wire record into an immutable Trace, flattening
// the nested observation tree into the per-trace arena (parents before
// children, siblings in recorded order).
func buildTrace(rec *traceRecord, pos int) (*model.Trace, error) {
	if rec.ID == "" {
		return nil, &MalformedInputError{
			Record: fmt.Sprintf("record %d", pos),
			Reason: "missing case identifier",
		}
	}

	trace := &model.Trace{
		ID:       rec.ID,
		Outcome:  extractOutcome(rec),
		Metadata: rec.Metadata,
	}

	for i := range rec.Observations {
		if err := addObservation(trace, &rec.Observations[i], -1); err != nil {
			return nil, err
		}
	}
	return trace, nil
}

func addObservation(trace *model.Trace, rec *obsRecord, parent int) error {
	start, err := parseTime(rec.start())
	if err != nil {
		return &MalformedInputError{Record: trace.ID, Reason: "unparseable start timestamp", Err: err}
	}
	end, err := parseTime(rec.end())
	if err != nil {
		return &MalformedInputError{Record: trace.ID, Reason: "unparseable end timestamp", Err: err}
	}

	idx := trace.AddObservation(model.Observation{
		Name:  rec.Name,
		Type:  rec.Type,
		Start: start,
		End:   end,
	}, parent)

	children := rec.children()
	for i := range children {
		if err := addObservation(trace, &children[i], idx); err != nil {
			return err
		}
	}
	return nil
}

// extractOutcome reads the success flag from the record, preferring the
// top-level field over metadata["success"]. Unknown metadata keys are left
// untouched.
func extractOutcome(rec *traceRecord) *bool {
	if rec.Success != nil {
		return rec.Success
	}
	if rec.Metadata != nil {
		if v, ok := rec.Metadata["success"]; ok {
			if b, ok := v.(bool); ok {
				return &b
			}
		}
	}
	return nil
}

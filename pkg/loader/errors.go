package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when the input format is not supported.
	ErrUnsupportedFormat = errors.New("loader: unsupported format")

	// ErrInvalidTimestamp is returned when a timestamp cannot be parsed.
	ErrInvalidTimestamp = errors.New("loader: invalid timestamp format")

	// ErrContextCanceled is returned when the context is canceled mid-load.
	ErrContextCanceled = errors.New("loader: context canceled")
)

// MalformedInputError reports a structurally invalid trace record. It is
// fatal for the whole load: the batch export is rejected with the offending
// record identified.
type MalformedInputError struct {
	// Record identifies the offending record: its case id when known,
	// otherwise its position in the export (e.g., "record 17").
	Record string

	// Reason describes what was wrong with the record.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("loader: malformed record %s: %s: %v", e.Record, e.Reason, e.Err)
	}
	return fmt.Sprintf("loader: malformed record %s: %s", e.Record, e.Reason)
}

// Unwrap returns the underlying error.
func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

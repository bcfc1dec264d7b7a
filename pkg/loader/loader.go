// Package loader parses batch exports of hierarchical agent-execution
// traces into the normalized in-memory representation. It performs no
// mutation of external state; a load either yields a complete set of
// traces or fails with a MalformedInputError naming the offending record.
package loader

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tracemine/tracemine/internal/model"
)

// Format represents a supported trace-export format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatJSONL
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatJSONL:
		return "jsonl"
	default:
		return "unknown"
	}
}

// DetectFormat guesses the export format from a file path.
// Gzip suffixes are stripped before matching.
func DetectFormat(path string) Format {
	p := strings.ToLower(strings.TrimSuffix(path, ".gz"))
	switch {
	case strings.HasSuffix(p, ".jsonl"), strings.HasSuffix(p, ".ndjson"):
		return FormatJSONL
	case strings.HasSuffix(p, ".json"):
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// Source opens a batch export for reading. Implementations exist for local
// files and for S3 objects (pkg/storage/s3).
type Source interface {
	// Open returns a reader over the raw export bytes.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Name identifies the source for error messages and run records.
	Name() string
}

// FileSource reads a batch export from the local filesystem.
// Files ending in .gz are transparently decompressed.
type FileSource struct {
	Path string
}

// Open implements Source.
func (s *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("loader: opening %s: %w", s.Path, err)
	}
	if strings.HasSuffix(strings.ToLower(s.Path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("loader: gzip %s: %w", s.Path, err)
		}
		return &gzipReadCloser{gz: gz, file: f}, nil
	}
	return f, nil
}

// Name implements Source.
func (s *FileSource) Name() string { return s.Path }

type gzipReadCloser struct {
	gz   *gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	fileErr := g.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}

// LoadFile loads a batch export from a local path, detecting the format
// from the file extension. Unknown extensions fall back to content
// sniffing inside Load.
func LoadFile(ctx context.Context, path string) ([]*model.Trace, error) {
	src := &FileSource{Path: path}
	r, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Load(ctx, r)
}

// Timestamp layouts ordered by likelihood in trace exports.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime parses an ISO-8601-ish timestamp and normalizes it to UTC.
// An empty string yields a zero time with no error; callers distinguish
// absent from unparseable.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

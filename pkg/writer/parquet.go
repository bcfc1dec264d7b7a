package writer

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/tracemine/tracemine/internal/model"
)

// ParquetWriter writes an event log to Parquet using Apache Arrow.
// Columns: case_id, activity, timestamp (ns), duration (ns, nullable),
// outcome (nullable bool).
type ParquetWriter struct {
	cfg    Config
	output io.Writer

	allocator memory.Allocator
	schema    *arrow.Schema
	writer    *pqarrow.FileWriter

	caseIDBuilder    *array.StringBuilder
	activityBuilder  *array.StringBuilder
	timestampBuilder *array.Int64Builder
	durationBuilder  *array.Int64Builder
	outcomeBuilder   *array.BooleanBuilder

	rowCount         int
	totalRowsWritten int64
	closed           bool
}

// eventSchema returns the Arrow schema for event-log rows.
func eventSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "case_id", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "activity", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "timestamp", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "duration", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "outcome", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
	}, nil)
}

// NewParquetWriter creates a new Parquet writer over output.
func NewParquetWriter(output io.Writer, cfg Config) (*ParquetWriter, error) {
	allocator := memory.NewGoAllocator()
	schema := eventSchema()

	var codec compress.Compression
	switch cfg.Compression {
	case CompressionSnappy:
		codec = compress.Codecs.Snappy
	case CompressionGzip:
		codec = compress.Codecs.Gzip
	case CompressionZstd:
		codec = compress.Codecs.Zstd
	default:
		codec = compress.Codecs.Uncompressed
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(true),
		parquet.WithDataPageSize(1024*1024), // 1MB
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
	)

	writer, err := pqarrow.NewFileWriter(schema, output, writerProps, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("writer: creating parquet writer: %w", err)
	}

	pw := &ParquetWriter{
		cfg:              cfg,
		output:           output,
		allocator:        allocator,
		schema:           schema,
		writer:           writer,
		caseIDBuilder:    array.NewStringBuilder(allocator),
		activityBuilder:  array.NewStringBuilder(allocator),
		timestampBuilder: array.NewInt64Builder(allocator),
		durationBuilder:  array.NewInt64Builder(allocator),
		outcomeBuilder:   array.NewBooleanBuilder(allocator),
	}

	if pw.cfg.BatchSize <= 0 {
		pw.cfg.BatchSize = 8192
	}
	pw.caseIDBuilder.Reserve(pw.cfg.BatchSize)
	pw.activityBuilder.Reserve(pw.cfg.BatchSize)
	pw.timestampBuilder.Reserve(pw.cfg.BatchSize)
	pw.durationBuilder.Reserve(pw.cfg.BatchSize)
	pw.outcomeBuilder.Reserve(pw.cfg.BatchSize)

	return pw, nil
}

// WriteLog writes a whole event log in batches.
func (w *ParquetWriter) WriteLog(ctx context.Context, log *model.EventLog) error {
	for i := range log.Events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := w.WriteEvent(&log.Events[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteEvent appends a single event, flushing a batch when full.
func (w *ParquetWriter) WriteEvent(event *model.Event) error {
	w.caseIDBuilder.Append(event.CaseID)
	w.activityBuilder.Append(event.Activity)
	w.timestampBuilder.Append(event.Timestamp)

	if event.HasDuration() {
		w.durationBuilder.Append(event.Duration)
	} else {
		w.durationBuilder.AppendNull()
	}

	switch event.Outcome {
	case model.OutcomeSuccess:
		w.outcomeBuilder.Append(true)
	case model.OutcomeFailure:
		w.outcomeBuilder.Append(false)
	default:
		w.outcomeBuilder.AppendNull()
	}

	w.rowCount++
	if w.rowCount >= w.cfg.BatchSize {
		return w.flushBatch()
	}
	return nil
}

// flushBatch writes the current batch to Parquet.
func (w *ParquetWriter) flushBatch() error {
	if w.rowCount == 0 {
		return nil
	}

	caseIDArray := w.caseIDBuilder.NewArray()
	activityArray := w.activityBuilder.NewArray()
	timestampArray := w.timestampBuilder.NewArray()
	durationArray := w.durationBuilder.NewArray()
	outcomeArray := w.outcomeBuilder.NewArray()

	defer caseIDArray.Release()
	defer activityArray.Release()
	defer timestampArray.Release()
	defer durationArray.Release()
	defer outcomeArray.Release()

	batch := array.NewRecord(w.schema, []arrow.Array{
		caseIDArray,
		activityArray,
		timestampArray,
		durationArray,
		outcomeArray,
	}, int64(w.rowCount))
	defer batch.Release()

	if err := w.writer.Write(batch); err != nil {
		return fmt.Errorf("writer: writing record batch: %w", err)
	}

	w.totalRowsWritten += int64(w.rowCount)
	w.rowCount = 0
	return nil
}

// Flush flushes any buffered rows.
func (w *ParquetWriter) Flush() error {
	return w.flushBatch()
}

// RowsWritten returns the total number of rows flushed so far.
func (w *ParquetWriter) RowsWritten() int64 {
	return w.totalRowsWritten
}

// Close flushes and closes the underlying Parquet file.
func (w *ParquetWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.flushBatch(); err != nil {
		return err
	}
	return w.writer.Close()
}

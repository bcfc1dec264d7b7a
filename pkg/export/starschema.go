// Package export provides data export utilities for BI tools.
package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// StarSchemaExporter generates a star schema from an exported Parquet
// event log. Output: Fact_Events, Dim_Cases, Dim_Activities, Dim_Time.
type StarSchemaExporter struct {
	db          *sql.DB
	outputDir   string
	compression string
}

// NewStarSchemaExporter creates a new star schema exporter.
func NewStarSchemaExporter(outputDir, compression string) (*StarSchemaExporter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("export: creating output directory: %w", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("export: opening duckdb: %w", err)
	}

	if compression == "" {
		compression = "snappy"
	}

	return &StarSchemaExporter{
		db:          db,
		outputDir:   outputDir,
		compression: compression,
	}, nil
}

// Export generates the star schema from a Parquet event log.
func (e *StarSchemaExporter) Export(inputPath string) (*StarSchemaResult, error) {
	_, err := e.db.Exec(fmt.Sprintf(`
		CREATE TABLE source AS
		SELECT * FROM read_parquet('%s')
	`, inputPath))
	if err != nil {
		return nil, fmt.Errorf("export: loading source: %w", err)
	}

	result := &StarSchemaResult{OutputDir: e.outputDir}

	if err := e.generateDimCases(); err != nil {
		return nil, err
	}
	result.DimCases = filepath.Join(e.outputDir, "Dim_Cases.parquet")

	if err := e.generateDimActivities(); err != nil {
		return nil, err
	}
	result.DimActivities = filepath.Join(e.outputDir, "Dim_Activities.parquet")

	if err := e.generateDimTime(); err != nil {
		return nil, err
	}
	result.DimTime = filepath.Join(e.outputDir, "Dim_Time.parquet")

	if err := e.generateFactEvents(); err != nil {
		return nil, err
	}
	result.FactEvents = filepath.Join(e.outputDir, "Fact_Events.parquet")

	return result, nil
}

// generateDimCases creates the case dimension table. Each case carries
// its time span, event count, summed known durations, and outcome.
func (e *StarSchemaExporter) generateDimCases() error {
	query := fmt.Sprintf(`
		COPY (
			SELECT
				ROW_NUMBER() OVER (ORDER BY case_id) as case_key,
				case_id,
				MIN(timestamp) as case_start_time,
				MAX(timestamp) as case_end_time,
				COUNT(*) as event_count,
				(MAX(timestamp) - MIN(timestamp)) / 1000000000 as span_seconds,
				SUM(COALESCE(duration, 0)) / 1000000000 as busy_seconds,
				ANY_VALUE(outcome) as outcome
			FROM source
			GROUP BY case_id
			ORDER BY case_id
		) TO '%s' (FORMAT PARQUET, COMPRESSION '%s')
	`, filepath.Join(e.outputDir, "Dim_Cases.parquet"), e.compression)

	_, err := e.db.Exec(query)
	return err
}

// generateDimActivities creates the activity dimension table.
func (e *StarSchemaExporter) generateDimActivities() error {
	query := fmt.Sprintf(`
		COPY (
			SELECT
				ROW_NUMBER() OVER (ORDER BY activity) as activity_key,
				activity as activity_name,
				COUNT(*) as total_occurrences,
				SUM(COALESCE(duration, 0)) / 1000000000 as total_duration_seconds
			FROM source
			GROUP BY activity
			ORDER BY activity
		) TO '%s' (FORMAT PARQUET, COMPRESSION '%s')
	`, filepath.Join(e.outputDir, "Dim_Activities.parquet"), e.compression)

	_, err := e.db.Exec(query)
	return err
}

// generateDimTime creates a date dimension table.
func (e *StarSchemaExporter) generateDimTime() error {
	query := fmt.Sprintf(`
		COPY (
			WITH dates AS (
				SELECT DISTINCT
					DATE_TRUNC('day', EPOCH_MS(CAST(timestamp / 1000000 AS BIGINT))) as date
				FROM source
				WHERE timestamp IS NOT NULL AND timestamp > 0
			)
			SELECT
				ROW_NUMBER() OVER (ORDER BY date) as time_key,
				date as full_date,
				EXTRACT(YEAR FROM date) as year,
				EXTRACT(QUARTER FROM date) as quarter,
				EXTRACT(MONTH FROM date) as month,
				EXTRACT(DAY FROM date) as day,
				EXTRACT(DAYOFWEEK FROM date) as day_of_week,
				EXTRACT(WEEK FROM date) as week_of_year
			FROM dates
			ORDER BY date
		) TO '%s' (FORMAT PARQUET, COMPRESSION '%s')
	`, filepath.Join(e.outputDir, "Dim_Time.parquet"), e.compression)

	_, err := e.db.Exec(query)
	return err
}

// generateFactEvents creates the fact table with foreign keys.
func (e *StarSchemaExporter) generateFactEvents() error {
	_, err := e.db.Exec(`
		CREATE TABLE dim_cases_lookup AS
		SELECT case_id, ROW_NUMBER() OVER (ORDER BY case_id) as case_key
		FROM (SELECT DISTINCT case_id FROM source);

		CREATE TABLE dim_activities_lookup AS
		SELECT activity, ROW_NUMBER() OVER (ORDER BY activity) as activity_key
		FROM (SELECT DISTINCT activity FROM source);

		CREATE TABLE dim_time_lookup AS
		SELECT date, ROW_NUMBER() OVER (ORDER BY date) as time_key
		FROM (
			SELECT DISTINCT DATE_TRUNC('day', EPOCH_MS(CAST(timestamp / 1000000 AS BIGINT))) as date
			FROM source WHERE timestamp IS NOT NULL AND timestamp > 0
		);
	`)
	if err != nil {
		return fmt.Errorf("export: creating lookups: %w", err)
	}

	query := fmt.Sprintf(`
		COPY (
			SELECT
				ROW_NUMBER() OVER () as event_key,
				c.case_key,
				a.activity_key,
				t.time_key,
				s.timestamp as timestamp_nanos,
				s.duration as duration_nanos,
				s.outcome,
				EPOCH_MS(CAST(s.timestamp / 1000000 AS BIGINT)) as event_datetime,
				s.timestamp - COALESCE(LAG(s.timestamp) OVER (PARTITION BY s.case_id ORDER BY s.timestamp), s.timestamp) as time_since_prev_nanos
			FROM source s
			LEFT JOIN dim_cases_lookup c ON s.case_id = c.case_id
			LEFT JOIN dim_activities_lookup a ON s.activity = a.activity
			LEFT JOIN dim_time_lookup t ON DATE_TRUNC('day', EPOCH_MS(CAST(s.timestamp / 1000000 AS BIGINT))) = t.date
			ORDER BY s.case_id, s.timestamp
		) TO '%s' (FORMAT PARQUET, COMPRESSION '%s')
	`, filepath.Join(e.outputDir, "Fact_Events.parquet"), e.compression)

	_, err = e.db.Exec(query)
	return err
}

// Close releases resources.
func (e *StarSchemaExporter) Close() error {
	return e.db.Close()
}

// StarSchemaResult contains the paths to generated files.
type StarSchemaResult struct {
	OutputDir     string `json:"output_dir"`
	FactEvents    string `json:"fact_events"`
	DimCases      string `json:"dim_cases"`
	DimActivities string `json:"dim_activities"`
	DimTime       string `json:"dim_time"`
}

// Files returns all generated file paths.
func (r *StarSchemaResult) Files() []string {
	return []string{
		r.FactEvents,
		r.DimCases,
		r.DimActivities,
		r.DimTime,
	}
}

// TraceMine - Process mining for agent execution traces
// Discovers control flow, variants, and bottlenecks from batch trace exports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	inputFile       string
	outputFile      string
	outputDir       string
	formatFlag      string
	compressionFlag string
	batchSize       int
	strictMode      bool
	thresholdFlag   float64
	sequentialFlag  bool
	topN            int
	verbose         bool

	// Flat-file column flags
	colDelimiter       string
	colCaseID          string
	colActivity        string
	colTimestamp       string
	colOutcome         string
	colTimestampFormat string

	// Case filter flags
	withActivities []string
	anyActivity    bool

	// Watch flags
	watchDir string

	// Runs flags
	runsLimit int
	noHistory bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tracemine",
	Short: "TraceMine - Mine process models from agent execution traces",
	Long: `TraceMine turns batch exports of hierarchical agent traces into process
models: a directly-follows graph, variant frequencies, and per-step
performance with bottleneck and loop detection.

Inputs: JSON / JSONL trace exports (optionally gzipped), flat CSV or
XLSX event logs, and s3:// URLs.`,
	Version: fmt.Sprintf("%s (%s)", version, commit),
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full analysis pipeline over a trace export",
	Long: `Load traces, build the event log, and run discovery, variant, and
performance analysis. Results are printed to the terminal; pass
--output-dir to also write them as CSV tables.

Examples:
  tracemine analyze -i traces.jsonl
  tracemine analyze -i traces.json.gz --strict --bottleneck-threshold 0.3
  tracemine analyze -i events.csv --case-id case_id --activity step --timestamp ts
  tracemine analyze -i s3://bucket/exports/run42.jsonl -o results/`,
	RunE: runAnalyze,
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a trace export to a Parquet event log",
	Long: `Flatten a trace export into the canonical event log and write it as
Apache Parquet.

Examples:
  tracemine convert -i traces.jsonl -o events.parquet
  tracemine convert -i traces.json -o events.parquet --compression zstd`,
	RunE: runConvert,
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover the directly-follows graph",
	RunE:  runDiscover,
}

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "List trace variants by frequency",
	RunE:  runVariants,
}

var performanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Analyze per-activity durations, bottlenecks, and loops",
	RunE:  runPerformance,
}

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "List cases containing given activities",
	Long: `Filter cases by activity membership using the bitmap index.

Examples:
  tracemine cases -i traces.jsonl --with "ToolCall" --with "Retry"
  tracemine cases -i traces.jsonl --with "Error" --any`,
	RunE: runCases,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a Parquet event log as a BI star schema",
	Long: `Generate a star schema (Fact_Events plus case, activity, and time
dimensions) from a Parquet event log produced by convert.

Examples:
  tracemine export -i events.parquet -o warehouse/`,
	RunE: runExport,
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and analyze new trace exports",
	Long: `Watch a directory for new or updated trace exports and run the full
analysis on each. Files whose content hash matches a completed run are
skipped.

Examples:
  tracemine watch ./exports
  tracemine watch --output-dir results ./exports`,
	Args: cobra.ExactArgs(1),
	RunE: runWatchCmd,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent analysis runs",
	RunE:  runRuns,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	for _, cmd := range []*cobra.Command{analyzeCmd, convertCmd, discoverCmd, variantsCmd, performanceCmd, casesCmd} {
		cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input path (file or s3:// URL)")
		cmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Input format (json, jsonl, csv, xlsx) - auto-detected if not specified")
		cmd.Flags().BoolVar(&strictMode, "strict", false, "Fail on missing timestamps instead of skipping cases")

		// Flat-file column mapping
		cmd.Flags().StringVar(&colDelimiter, "delimiter", ",", "CSV field delimiter")
		cmd.Flags().StringVar(&colCaseID, "case-id", "case:concept:name", "Case ID column name")
		cmd.Flags().StringVar(&colActivity, "activity", "concept:name", "Activity column name")
		cmd.Flags().StringVar(&colTimestamp, "timestamp", "time:timestamp", "Timestamp column name")
		cmd.Flags().StringVar(&colOutcome, "outcome", "", "Boolean outcome column name (optional)")
		cmd.Flags().StringVar(&colTimestampFormat, "timestamp-format", "2006-01-02T15:04:05.000Z07:00", "Timestamp format (Go time layout)")

		cmd.MarkFlagRequired("input")
	}

	analyzeCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for CSV result tables (optional)")
	analyzeCmd.Flags().Float64Var(&thresholdFlag, "bottleneck-threshold", 0.20, "Fraction of total time above which an activity is a bottleneck")
	analyzeCmd.Flags().BoolVar(&sequentialFlag, "sequential", false, "Run analyzers sequentially instead of in parallel")
	analyzeCmd.Flags().IntVar(&topN, "top", 10, "Number of edges/variants to print")
	analyzeCmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the run history database")

	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output Parquet file path (required)")
	convertCmd.Flags().StringVar(&compressionFlag, "compression", "snappy", "Parquet compression (none, snappy, gzip, zstd)")
	convertCmd.Flags().IntVar(&batchSize, "batch-size", 8192, "Number of events per batch")
	convertCmd.MarkFlagRequired("output")

	discoverCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output CSV file (stdout if omitted)")
	discoverCmd.Flags().IntVar(&topN, "top", 0, "Limit printed edges (0 = all)")

	variantsCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output CSV file (stdout if omitted)")
	variantsCmd.Flags().IntVar(&topN, "top", 0, "Limit printed variants (0 = all)")

	performanceCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output CSV file (stdout if omitted)")
	performanceCmd.Flags().Float64Var(&thresholdFlag, "bottleneck-threshold", 0.20, "Fraction of total time above which an activity is a bottleneck")

	casesCmd.Flags().StringArrayVar(&withActivities, "with", nil, "Activity the case must contain (repeatable)")
	casesCmd.Flags().BoolVar(&anyActivity, "any", false, "Match cases containing any listed activity instead of all")
	casesCmd.MarkFlagRequired("with")

	exportCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input Parquet event log (required)")
	exportCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "star", "Output directory for star schema files")
	exportCmd.Flags().StringVar(&compressionFlag, "compression", "snappy", "Parquet compression for dimension tables")
	exportCmd.MarkFlagRequired("input")

	watchCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for CSV result tables (optional)")
	watchCmd.Flags().Float64Var(&thresholdFlag, "bottleneck-threshold", 0.20, "Fraction of total time above which an activity is a bottleneck")

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to list")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(variantsCmd)
	rootCmd.AddCommand(performanceCmd)
	rootCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(runsCmd)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tracemine/tracemine/internal/model"
	"github.com/tracemine/tracemine/internal/pipe"
	"github.com/tracemine/tracemine/pkg/checkpoint"
	"github.com/tracemine/tracemine/pkg/config"
	"github.com/tracemine/tracemine/pkg/discovery"
	"github.com/tracemine/tracemine/pkg/eventlog"
	"github.com/tracemine/tracemine/pkg/export"
	"github.com/tracemine/tracemine/pkg/index"
	"github.com/tracemine/tracemine/pkg/loader"
	"github.com/tracemine/tracemine/pkg/performance"
	"github.com/tracemine/tracemine/pkg/state"
	s3storage "github.com/tracemine/tracemine/pkg/storage/s3"
	"github.com/tracemine/tracemine/pkg/telemetry"
	"github.com/tracemine/tracemine/pkg/tui"
	"github.com/tracemine/tracemine/pkg/variants"
	"github.com/tracemine/tracemine/pkg/watch"
	"github.com/tracemine/tracemine/pkg/writer"
)

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted, cleaning up...")
		cancel()
	}()

	return ctx, cancel
}

func builderConfig() eventlog.Config {
	cfg := eventlog.DefaultConfig()
	if strictMode {
		cfg.Mode = eventlog.ModeStrict
	}
	return cfg
}

func importConfig() eventlog.ImportConfig {
	cfg := eventlog.DefaultImportConfig()
	cfg.Mode = builderConfig().Mode
	cfg.CaseIDColumn = colCaseID
	cfg.ActivityColumn = colActivity
	cfg.TimestampColumn = colTimestamp
	cfg.OutcomeColumn = colOutcome
	cfg.TimestampFormat = colTimestampFormat
	if colDelimiter != "" {
		cfg.Delimiter = rune(colDelimiter[0])
	}
	return cfg
}

// inputFormat resolves the input format from the flag or the path.
func inputFormat(path string) string {
	if formatFlag != "" {
		return strings.ToLower(formatFlag)
	}
	p := strings.ToLower(strings.TrimSuffix(path, ".gz"))
	switch {
	case strings.HasSuffix(p, ".csv"):
		return "csv"
	case strings.HasSuffix(p, ".xlsx"):
		return "xlsx"
	case strings.HasSuffix(p, ".jsonl"), strings.HasSuffix(p, ".ndjson"):
		return "jsonl"
	case strings.HasSuffix(p, ".json"):
		return "json"
	default:
		return ""
	}
}

// openSource opens a local file or s3:// URL as a loader source.
func openSource(ctx context.Context, path string) (loader.Source, error) {
	if strings.HasPrefix(path, "s3://") {
		bucket, key, err := s3storage.ParseURL(path)
		if err != nil {
			return nil, err
		}
		client, err := s3storage.NewClient(ctx, s3storage.DefaultConfig(bucket, os.Getenv("AWS_REGION")))
		if err != nil {
			return nil, err
		}
		return &s3storage.Source{Client: client, Key: key}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("input file does not exist: %s", path)
	}
	return &loader.FileSource{Path: path}, nil
}

// loadLog builds the event log from any supported input.
func loadLog(ctx context.Context, path string) (*model.EventLog, error) {
	format := inputFormat(path)
	if format == "" {
		return nil, fmt.Errorf("unable to detect input format, please specify with --format")
	}

	src, err := openSource(ctx, path)
	if err != nil {
		return nil, err
	}
	r, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	switch format {
	case "csv":
		return eventlog.ImportCSV(ctx, r, importConfig())
	case "xlsx":
		return eventlog.ImportXLSX(ctx, r, importConfig())
	case "json", "jsonl":
		traces, err := loader.Load(ctx, r)
		if err != nil {
			return nil, err
		}
		if verbose {
			fmt.Printf("Loaded %d traces from %s\n", len(traces), src.Name())
		}
		return eventlog.Build(traces, builderConfig())
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func pipeConfig() pipe.Config {
	cfg := pipe.DefaultConfig()
	cfg.Builder = builderConfig()
	cfg.Performance = performance.Config{BottleneckThreshold: thresholdFlag}
	cfg.Parallel = !sequentialFlag
	return cfg
}

// analyzeFile runs the full pipeline over one input and renders results.
func analyzeFile(ctx context.Context, path string, store *state.Store) (*pipe.Result, error) {
	var run *state.Run
	if store != nil {
		run = &state.Run{
			ID:        uuid.NewString(),
			Status:    state.StatusRunning,
			InputPath: path,
			CreatedAt: time.Now(),
			Config: map[string]interface{}{
				"strict":               strictMode,
				"bottleneck_threshold": thresholdFlag,
			},
		}
		if stat, err := os.Stat(path); err == nil {
			run.InputSize = stat.Size()
		}
		if err := store.CreateRun(run); err != nil && verbose {
			fmt.Fprintf(os.Stderr, "warning: recording run: %v\n", err)
		}
	}

	log, err := loadLog(ctx, path)
	if err == nil && log.NumCases() == 0 {
		err = fmt.Errorf("no complete cases in %s", path)
	}

	var res *pipe.Result
	if err == nil {
		res, err = pipe.Analyze(ctx, log, pipeConfig())
	}

	if run != nil {
		now := time.Now()
		run.CompletedAt = &now
		run.DurationMS = now.Sub(run.CreatedAt).Milliseconds()
		if err != nil {
			run.Status = state.StatusFailed
			run.Error = err.Error()
		} else {
			run.Status = state.StatusCompleted
			run.CaseCount = int64(res.Log.NumCases())
			run.EventCount = int64(len(res.Log.Events))
			run.SkippedCases = int64(res.Log.SkippedCases)
			run.VariantCount = int64(len(res.Variants.Variants))
			run.EdgeCount = int64(res.DFG.NumEdges())
			run.LoopCount = int64(len(res.Loops))
			run.OutputDir = outputDir
			// History and pipeline results share one run ID.
			res.RunID = run.ID
		}
		if updateErr := store.UpdateRun(run); updateErr != nil && verbose {
			fmt.Fprintf(os.Stderr, "warning: recording run: %v\n", updateErr)
		}
	}
	if err != nil {
		return nil, err
	}

	return res, nil
}

// writeResultTables writes all analysis tables as CSV files under dir.
func writeResultTables(dir string, res *pipe.Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tables := []struct {
		name  string
		write func(f *os.File) error
	}{
		{"events.csv", func(f *os.File) error { return writer.WriteEventLogCSV(f, res.Log) }},
		{"dfg_edges.csv", func(f *os.File) error { return writer.WriteDFGCSV(f, res.DFG) }},
		{"start_activities.csv", func(f *os.File) error { return writer.WriteActivityCountsCSV(f, res.DFG.StartActivities) }},
		{"end_activities.csv", func(f *os.File) error { return writer.WriteActivityCountsCSV(f, res.DFG.EndActivities) }},
		{"variants.csv", func(f *os.File) error { return writer.WriteVariantsCSV(f, res.Variants) }},
		{"performance.csv", func(f *os.File) error { return writer.WritePerformanceCSV(f, res.Performance) }},
		{"loops.csv", func(f *os.File) error { return writer.WriteLoopsCSV(f, res.Loops) }},
	}

	for _, t := range tables {
		f, err := os.Create(filepath.Join(dir, t.name))
		if err != nil {
			return err
		}
		if err := t.write(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

// openHistory opens the run-history store, or returns nil when disabled.
func openHistory(cfg *config.Config) *state.Store {
	if noHistory {
		return nil
	}
	store, err := state.NewStore(cfg.Storage.Database)
	if err != nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "warning: run history unavailable: %v\n", err)
		}
		return nil
	}
	return store
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := config.Global().Get()

	if cfg.Telemetry.Enabled {
		otlpCfg := telemetry.DefaultOTLPConfig("tracemine")
		if cfg.Telemetry.Endpoint != "" {
			otlpCfg.Endpoint = cfg.Telemetry.Endpoint
		}
		shutdown, err := telemetry.InitOTLP(otlpCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: telemetry disabled: %v\n", err)
		} else {
			defer shutdown(context.Background())
			spanCtx, span := telemetry.StartSpan(ctx, "analyze")
			ctx = spanCtx
			defer span.End()
		}
	}

	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	res, err := analyzeFile(ctx, inputFile, store)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	tui.PrintSummary(res)
	tui.PrintDFG(res.DFG, topN)
	tui.PrintVariants(res.Variants, topN)
	tui.PrintPerformance(res.Performance)
	tui.PrintLoops(res.Loops)

	if outputDir != "" {
		if err := writeResultTables(outputDir, res); err != nil {
			return fmt.Errorf("writing result tables: %w", err)
		}
		if verbose {
			fmt.Printf("Result tables written to %s\n", outputDir)
		}
	}

	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	log, err := loadLog(ctx, inputFile)
	if err != nil {
		return err
	}

	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	writerCfg := writer.DefaultConfig()
	writerCfg.BatchSize = batchSize
	writerCfg.Compression = writer.ParseCompression(compressionFlag)

	pw, err := writer.NewParquetWriter(f, writerCfg)
	if err != nil {
		f.Close()
		return err
	}

	if err := pw.WriteLog(ctx, log); err != nil {
		pw.Close()
		f.Close()
		return fmt.Errorf("conversion failed: %w", err)
	}
	if err := pw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	stat, _ := os.Stat(outputFile)
	size := int64(0)
	if stat != nil {
		size = stat.Size()
	}
	fmt.Printf("Wrote %d events (%d cases) to %s (%s)\n",
		pw.RowsWritten(), log.NumCases(), outputFile, humanSize(size))
	if log.SkippedCases > 0 {
		fmt.Printf("Skipped %d cases with missing timestamps\n", log.SkippedCases)
	}

	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	log, err := loadLog(ctx, inputFile)
	if err != nil {
		return err
	}

	dfg := discovery.Discover(log)

	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		return writer.WriteDFGCSV(f, dfg)
	}

	tui.PrintDFG(dfg, topN)
	return nil
}

func runVariants(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	log, err := loadLog(ctx, inputFile)
	if err != nil {
		return err
	}

	analysis := variants.Analyze(log)

	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		return writer.WriteVariantsCSV(f, analysis)
	}

	tui.PrintVariants(analysis, topN)
	return nil
}

func runPerformance(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	log, err := loadLog(ctx, inputFile)
	if err != nil {
		return err
	}

	report := performance.Analyze(log, performance.Config{BottleneckThreshold: thresholdFlag})
	loops := performance.DetectLoops(log)

	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		return writer.WritePerformanceCSV(f, report)
	}

	tui.PrintPerformance(report)
	tui.PrintLoops(loops)
	return nil
}

func runCases(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	log, err := loadLog(ctx, inputFile)
	if err != nil {
		return err
	}

	idx := index.Build(log)

	var ids []string
	if anyActivity {
		ids = idx.CasesWithAny(withActivities...)
	} else {
		ids = idx.CasesWithAll(withActivities...)
	}

	if len(ids) == 0 {
		fmt.Println("No matching cases.")
		return nil
	}

	for _, id := range ids {
		fmt.Println(id)
	}
	if verbose {
		fmt.Printf("%d of %d cases matched\n", len(ids), idx.NumCases())
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}

	exporter, err := export.NewStarSchemaExporter(outputDir, compressionFlag)
	if err != nil {
		return err
	}
	defer exporter.Close()

	result, err := exporter.Export(inputFile)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Println("Star schema written:")
	for _, file := range result.Files() {
		fmt.Printf("  %s\n", file)
	}
	return nil
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	watchDir = args[0]
	cfg := config.Global().Get()

	backend, err := watchBackend(cfg)
	if err != nil {
		return err
	}

	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	process := func(path string) error {
		hash, size, err := checkpoint.HashFile(path)
		if err != nil {
			return err
		}

		if prev, err := backend.FindByInput(ctx, path); err == nil {
			if prev.IsComplete() && prev.Matches(hash, size) {
				if verbose {
					fmt.Printf("Skipping %s (unchanged)\n", path)
				}
				return nil
			}
		}

		cp := &checkpoint.Checkpoint{
			ID:          uuid.NewString(),
			InputPath:   path,
			ContentHash: hash,
			InputSize:   size,
			Phase:       checkpoint.PhaseLoading,
			StartedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if err := backend.Save(ctx, cp); err != nil {
			return err
		}

		fmt.Printf("Analyzing %s\n", path)
		res, err := analyzeFile(ctx, path, store)
		if err != nil {
			return err
		}

		cp.TracesRead = int64(res.Log.NumCases() + res.Log.SkippedCases)
		cp.CasesBuilt = int64(res.Log.NumCases())
		cp.Complete()
		if err := backend.Save(ctx, cp); err != nil {
			return err
		}

		tui.PrintSummary(res)

		if outputDir != "" {
			dir := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
			if err := writeResultTables(dir, res); err != nil {
				return err
			}
		}
		return nil
	}

	watcher, err := watch.NewWatcher(cfg.Watch.Patterns, cfg.Watch.DebounceDelay)
	if err != nil {
		return err
	}
	defer watcher.Close()

	watcher.OnChange = process
	watcher.OnError = func(path string, err error) {
		fmt.Fprintf(os.Stderr, "watch error (%s): %v\n", path, err)
	}

	if err := watcher.Watch(watchDir); err != nil {
		return err
	}

	// Process files already present before waiting for events.
	entries, err := os.ReadDir(watchDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(watchDir, entry.Name())
		if inputFormat(path) == "" {
			continue
		}
		if err := process(path); err != nil {
			fmt.Fprintf(os.Stderr, "error processing %s: %v\n", path, err)
		}
	}

	fmt.Printf("Watching %s for trace exports (Ctrl-C to stop)\n", watchDir)
	err = watcher.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// watchBackend selects the checkpoint backend from config.
func watchBackend(cfg *config.Config) (checkpoint.Backend, error) {
	switch cfg.Checkpoint.Backend {
	case "redis":
		addr := cfg.Checkpoint.RedisURL
		if addr == "" {
			addr = "localhost:6379"
		}
		return checkpoint.NewRedisBackend(checkpoint.DefaultRedisConfig(addr))
	case "memory":
		return checkpoint.NewMemoryBackend(), nil
	default:
		return checkpoint.NewFileBackend(filepath.Join(cfg.Storage.CacheDir, "checkpoints"))
	}
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg := config.Global().Get()

	store, err := state.NewStore(cfg.Storage.Database)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	defer store.Close()

	if _, err := store.CleanupOldRuns(cfg.Storage.RunsRetention); err != nil && verbose {
		fmt.Fprintf(os.Stderr, "warning: cleanup: %v\n", err)
	}

	runs, err := store.ListRuns(runsLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	fmt.Printf("%-36s  %-9s  %8s  %8s  %8s  %s\n", "ID", "STATUS", "CASES", "EVENTS", "TIME", "INPUT")
	for _, run := range runs {
		elapsed := "-"
		if run.DurationMS > 0 {
			elapsed = (time.Duration(run.DurationMS) * time.Millisecond).String()
		}
		fmt.Printf("%-36s  %-9s  %8d  %8d  %8s  %s\n",
			run.ID, run.Status, run.CaseCount, run.EventCount, elapsed, run.InputPath)
	}
	return nil
}

// humanSize formats a byte size in human-readable form.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

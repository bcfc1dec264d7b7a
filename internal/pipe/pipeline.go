// Package pipe orchestrates the trace-to-analysis pipeline:
// traces -> event log -> {discovery, variants, performance}.
package pipe

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tracemine/tracemine/internal/model"
	"github.com/tracemine/tracemine/pkg/discovery"
	"github.com/tracemine/tracemine/pkg/eventlog"
	"github.com/tracemine/tracemine/pkg/performance"
	"github.com/tracemine/tracemine/pkg/variants"
)

// Config holds the configuration of one pipeline run. All tunables are
// passed explicitly; nothing is ambient.
type Config struct {
	// Builder configures the event log builder (strict/lenient mode).
	Builder eventlog.Config

	// Performance configures the performance analyzer.
	Performance performance.Config

	// Parallel runs the three analyzers concurrently. They are
	// independent read-only consumers of the immutable event log, so no
	// coordination is needed; this is a throughput option, not a
	// correctness requirement.
	Parallel bool
}

// DefaultConfig returns a Config with lenient building, the default
// bottleneck threshold, and parallel analyzers.
func DefaultConfig() Config {
	return Config{
		Builder:     eventlog.DefaultConfig(),
		Performance: performance.DefaultConfig(),
		Parallel:    true,
	}
}

// Result bundles everything one analysis run produces.
type Result struct {
	// RunID uniquely identifies this run.
	RunID string

	// Log is the flattened event log the analyzers consumed.
	Log *model.EventLog

	// DFG is the discovered directly-follows graph.
	DFG *discovery.DFG

	// Variants is the variant partition.
	Variants *variants.Analysis

	// Performance is the per-activity duration table.
	Performance *performance.Report

	// Loops lists detected looping sub-patterns.
	Loops []performance.Loop

	// Elapsed is the wall-clock analysis time.
	Elapsed time.Duration
}

// Run flattens traces and analyzes the resulting event log.
func Run(ctx context.Context, traces []*model.Trace, cfg Config) (*Result, error) {
	log, err := eventlog.Build(traces, cfg.Builder)
	if err != nil {
		return nil, err
	}
	return Analyze(ctx, log, cfg)
}

// Analyze runs the three analyzers over a pre-built event log. Used
// directly by the flat-import path, where no flattening is needed.
func Analyze(ctx context.Context, log *model.EventLog, cfg Config) (*Result, error) {
	start := time.Now()
	result := &Result{
		RunID: uuid.NewString(),
		Log:   log,
	}

	if cfg.Parallel {
		g, _ := errgroup.WithContext(ctx)
		g.Go(func() error {
			result.DFG = discovery.Discover(log)
			return nil
		})
		g.Go(func() error {
			result.Variants = variants.Analyze(log)
			return nil
		})
		g.Go(func() error {
			result.Performance = performance.Analyze(log, cfg.Performance)
			result.Loops = performance.DetectLoops(log)
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		result.DFG = discovery.Discover(log)
		result.Variants = variants.Analyze(log)
		result.Performance = performance.Analyze(log, cfg.Performance)
		result.Loops = performance.DetectLoops(log)
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// Package performance computes per-activity duration statistics,
// bottleneck flags, and loop-pattern heuristics over an event log.
package performance

import (
	"sort"
	"time"

	"github.com/tracemine/tracemine/internal/model"
)

// Config holds analyzer tunables, passed explicitly into Analyze.
type Config struct {
	// BottleneckThreshold is the fraction of the grand total duration an
	// activity must exceed to be flagged.
	BottleneckThreshold float64
}

// DefaultConfig returns a Config with a 20% bottleneck threshold.
func DefaultConfig() Config {
	return Config{BottleneckThreshold: 0.20}
}

// ActivityStats aggregates duration statistics for one activity.
// Events without a valid duration count toward Count but are excluded
// from every duration figure.
type ActivityStats struct {
	Activity string `json:"activity"`

	// Count is the total number of occurrences.
	Count int64 `json:"count"`

	// DurationSamples is the number of occurrences carrying a duration.
	DurationSamples int64 `json:"duration_samples"`

	// TotalDuration is the summed duration over sampled occurrences.
	TotalDuration time.Duration `json:"total_duration"`

	// MeanDuration is TotalDuration over DurationSamples.
	MeanDuration time.Duration `json:"mean_duration"`

	// PctOfTotal is this activity's share of the grand total duration.
	PctOfTotal float64 `json:"pct_of_total"`

	// Bottleneck is set when PctOfTotal exceeds the configured threshold.
	Bottleneck bool `json:"bottleneck"`
}

// Report is the performance table for an event log.
type Report struct {
	// Activities sorted by total duration descending, ties by name.
	Activities []ActivityStats

	// GrandTotal is the summed duration across all activities.
	GrandTotal time.Duration

	// Threshold echoes the bottleneck threshold used.
	Threshold float64
}

// Analyze computes the performance table. Empty input yields an empty
// report, never an error; when the grand total is zero no activity is
// flagged as a bottleneck.
func Analyze(log *model.EventLog, cfg Config) *Report {
	byActivity := make(map[string]*ActivityStats)
	var grand int64

	for i := range log.Events {
		e := &log.Events[i]
		stats, ok := byActivity[e.Activity]
		if !ok {
			stats = &ActivityStats{Activity: e.Activity}
			byActivity[e.Activity] = stats
		}
		stats.Count++
		if e.HasDuration() {
			stats.DurationSamples++
			stats.TotalDuration += time.Duration(e.Duration)
			grand += e.Duration
		}
	}

	report := &Report{
		GrandTotal: time.Duration(grand),
		Threshold:  cfg.BottleneckThreshold,
	}
	for _, stats := range byActivity {
		if stats.DurationSamples > 0 {
			stats.MeanDuration = stats.TotalDuration / time.Duration(stats.DurationSamples)
		}
		if grand > 0 {
			stats.PctOfTotal = float64(stats.TotalDuration) / float64(grand)
			stats.Bottleneck = stats.PctOfTotal > cfg.BottleneckThreshold
		}
		report.Activities = append(report.Activities, *stats)
	}

	sort.Slice(report.Activities, func(i, j int) bool {
		a, b := &report.Activities[i], &report.Activities[j]
		if a.TotalDuration != b.TotalDuration {
			return a.TotalDuration > b.TotalDuration
		}
		return a.Activity < b.Activity
	})

	return report
}

// Bottlenecks returns only the flagged activities.
func (r *Report) Bottlenecks() []ActivityStats {
	var out []ActivityStats
	for _, a := range r.Activities {
		if a.Bottleneck {
			out = append(out, a)
		}
	}
	return out
}

// Package tui renders analysis results on the terminal.
// Simple streaming output, no full-screen TUI.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/tracemine/tracemine/internal/pipe"
	"github.com/tracemine/tracemine/pkg/discovery"
	"github.com/tracemine/tracemine/pkg/performance"
	"github.com/tracemine/tracemine/pkg/variants"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
)

// PrintHeader prints the program banner.
func PrintHeader(version string) {
	fmt.Println()
	fmt.Println(titleStyle.Render("  TRACEMINE") + mutedStyle.Render(" v"+version))
	fmt.Println(mutedStyle.Render("  Process mining for agent execution traces"))
	fmt.Println()
}

// PrintSummary prints the headline numbers of an analysis run.
func PrintSummary(res *pipe.Result) {
	fmt.Println()
	fmt.Println(successStyle.Render("  ✓ ANALYSIS COMPLETE"))
	fmt.Println()
	fmt.Printf("  %s %s\n", mutedStyle.Render("Cases:"), titleStyle.Render(formatNumber(int64(res.Log.NumCases()))))
	fmt.Printf("  %s %s\n", mutedStyle.Render("Events:"), titleStyle.Render(formatNumber(int64(len(res.Log.Events)))))
	if res.Log.SkippedCases > 0 {
		fmt.Printf("  %s %s\n", mutedStyle.Render("Skipped:"), accentStyle.Render(formatNumber(int64(res.Log.SkippedCases))))
	}
	fmt.Printf("  %s %s\n", mutedStyle.Render("Variants:"), titleStyle.Render(formatNumber(int64(len(res.Variants.Variants)))))
	fmt.Printf("  %s %s\n", mutedStyle.Render("Edges:"), titleStyle.Render(formatNumber(int64(res.DFG.NumEdges()))))
	if len(res.Loops) > 0 {
		fmt.Printf("  %s %s\n", mutedStyle.Render("Loops:"), accentStyle.Render(formatNumber(int64(len(res.Loops)))))
	}
	fmt.Printf("  %s %s\n", mutedStyle.Render("Time:"), titleStyle.Render(formatDuration(res.Elapsed)))
	fmt.Println()
}

// PrintDFG prints the heaviest directly-follows edges.
func PrintDFG(dfg *discovery.DFG, limit int) {
	edges := dfg.EdgeList()
	if limit > 0 && len(edges) > limit {
		edges = edges[:limit]
	}

	fmt.Println()
	fmt.Println(accentStyle.Render("  ▸ DIRECTLY-FOLLOWS GRAPH"))
	fmt.Println()
	for _, e := range edges {
		fmt.Printf("  %s %s %s  %s\n",
			titleStyle.Render(e.Source),
			mutedStyle.Render("→"),
			titleStyle.Render(e.Target),
			mutedStyle.Render(fmt.Sprintf("×%d", e.Count)))
	}
	fmt.Println()
}

// PrintVariants prints the most frequent variants.
func PrintVariants(analysis *variants.Analysis, limit int) {
	vs := analysis.Variants
	if limit > 0 && len(vs) > limit {
		vs = vs[:limit]
	}

	fmt.Println()
	fmt.Println(accentStyle.Render("  ▸ VARIANTS"))
	fmt.Println()
	for i, v := range vs {
		line := fmt.Sprintf("  %2d. %s", i+1, v.Name())
		fmt.Println(titleStyle.Render(line))
		detail := fmt.Sprintf("      %d cases (%.1f%%)", v.Frequency, v.RelativeFrequency*100)
		if v.HasSuccessRate {
			detail += fmt.Sprintf(", %.0f%% success", v.SuccessRate*100)
		}
		fmt.Println(mutedStyle.Render(detail))
	}
	fmt.Println()
}

// PrintPerformance prints per-activity timing, flagging bottlenecks.
func PrintPerformance(report *performance.Report) {
	fmt.Println()
	fmt.Println(accentStyle.Render("  ▸ PERFORMANCE"))
	fmt.Println()
	for _, a := range report.Activities {
		marker := "  "
		name := titleStyle.Render(a.Activity)
		if a.Bottleneck {
			marker = accentStyle.Render("⚠ ")
			name = accentStyle.Render(a.Activity)
		}
		fmt.Printf("  %s%s\n", marker, name)
		fmt.Println(mutedStyle.Render(fmt.Sprintf("      total %s, mean %s, %.1f%% of run time",
			formatDuration(a.TotalDuration), formatDuration(a.MeanDuration), a.PctOfTotal*100)))
	}
	fmt.Println()
}

// PrintLoops prints detected repetition patterns.
func PrintLoops(loops []performance.Loop) {
	if len(loops) == 0 {
		return
	}

	fmt.Println()
	fmt.Println(accentStyle.Render("  ▸ LOOPS"))
	fmt.Println()
	for _, l := range loops {
		fmt.Printf("  %s  %s\n",
			titleStyle.Render(strings.Join(l.Cycle, " → ")),
			mutedStyle.Render(fmt.Sprintf("case %s, %d repeats", l.CaseID, l.Repeats)))
	}
	fmt.Println()
}

// PrintError prints a failure line.
func PrintError(err error) {
	fmt.Println(accentStyle.Render("  ✗ " + err.Error()))
}

// NewProgressBar creates a progress bar for long file loads.
func NewProgressBar(total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(mutedStyle.Render("  "+description)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// formatNumber formats an integer with thousands separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	rem := len(s) % 3
	if rem > 0 {
		b.WriteString(s[:rem])
	}
	for i := rem; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

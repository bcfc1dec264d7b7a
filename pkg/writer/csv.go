package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tracemine/tracemine/internal/model"
	"github.com/tracemine/tracemine/pkg/discovery"
	"github.com/tracemine/tracemine/pkg/performance"
	"github.com/tracemine/tracemine/pkg/variants"
)

// WriteEventLogCSV writes the tabular event log: one row per event.
func WriteEventLogCSV(w io.Writer, log *model.EventLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"case_id", "activity", "timestamp", "duration_ns", "outcome"}); err != nil {
		return err
	}

	for i := range log.Events {
		e := &log.Events[i]
		duration := ""
		if e.HasDuration() {
			duration = strconv.FormatInt(e.Duration, 10)
		}
		outcome := ""
		if e.Outcome != model.OutcomeUnknown {
			outcome = e.Outcome.String()
		}
		row := []string{
			e.CaseID,
			e.Activity,
			time.Unix(0, e.Timestamp).UTC().Format(time.RFC3339Nano),
			duration,
			outcome,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteDFGCSV writes the directly-follows edge list with counts.
func WriteDFGCSV(w io.Writer, dfg *discovery.DFG) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"source", "target", "count"}); err != nil {
		return err
	}
	for _, e := range dfg.EdgeList() {
		if err := cw.Write([]string{e.Source, e.Target, strconv.FormatInt(e.Count, 10)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteActivityCountsCSV writes a (activity, cases) count table, used for
// the DFG start- and end-activity sets. Rows are sorted by count
// descending, ties by name.
func WriteActivityCountsCSV(w io.Writer, counts map[string]int64) error {
	type row struct {
		activity string
		count    int64
	}
	rows := make([]row, 0, len(counts))
	for a, c := range counts {
		rows = append(rows, row{a, c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].activity < rows[j].activity
	})

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"activity", "cases"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.activity, strconv.FormatInt(r.count, 10)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteVariantsCSV writes the variant table.
func WriteVariantsCSV(w io.Writer, analysis *variants.Analysis) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"sequence", "frequency", "relative_frequency", "success_rate"}); err != nil {
		return err
	}
	for i := range analysis.Variants {
		v := &analysis.Variants[i]
		rate := ""
		if v.HasSuccessRate {
			rate = formatFloat(v.SuccessRate)
		}
		row := []string{
			strings.Join(v.Sequence, ";"),
			strconv.Itoa(v.Frequency),
			formatFloat(v.RelativeFrequency),
			rate,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePerformanceCSV writes the per-activity performance table.
func WritePerformanceCSV(w io.Writer, report *performance.Report) error {
	cw := csv.NewWriter(w)
	header := []string{"activity", "count", "mean_duration_ns", "total_duration_ns", "pct_of_total", "is_bottleneck"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range report.Activities {
		a := &report.Activities[i]
		row := []string{
			a.Activity,
			strconv.FormatInt(a.Count, 10),
			strconv.FormatInt(a.MeanDuration.Nanoseconds(), 10),
			strconv.FormatInt(a.TotalDuration.Nanoseconds(), 10),
			formatFloat(a.PctOfTotal),
			strconv.FormatBool(a.Bottleneck),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLoopsCSV writes the loop report.
func WriteLoopsCSV(w io.Writer, loops []performance.Loop) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"case_id", "cycle", "length", "repeats"}); err != nil {
		return err
	}
	for i := range loops {
		l := &loops[i]
		row := []string{
			l.CaseID,
			strings.Join(l.Cycle, ";"),
			strconv.Itoa(l.Length),
			strconv.Itoa(l.Repeats),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.4f", f)
}

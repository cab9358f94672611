package lilwil

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mfornace/lilwil/event"
	"github.com/mfornace/lilwil/reporting"
)

// SummaryFormatter renders the run summary for humans.
type SummaryFormatter struct {
	out   io.Writer
	color bool
}

// NewSummaryFormatter creates a formatter writing to out.
func NewSummaryFormatter(out io.Writer, color bool) *SummaryFormatter {
	return &SummaryFormatter{out: out, color: color}
}

// Format renders the summary as a one-row results table.
func (f *SummaryFormatter) Format(sum reporting.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Test Results (%s)", formatDuration(sum.Elapsed)))

	t.AppendHeader(table.Row{
		"Tests", "Failures", "Successes", "Exceptions", "Timings", "Skipped", "Status",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Failures", Align: text.AlignRight},
		{Name: "Successes", Align: text.AlignRight},
		{Name: "Exceptions", Align: text.AlignRight},
		{Name: "Timings", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
	})

	t.AppendRow(table.Row{
		sum.Units,
		sum.Counts[event.Failure],
		sum.Counts[event.Success],
		sum.Counts[event.Exception],
		sum.Counts[event.Timing],
		sum.Counts[event.Skipped],
		f.statusString(sum),
	})
	t.Render()
}

func (f *SummaryFormatter) statusString(sum reporting.Summary) string {
	failed := sum.Counts[event.Failure] > 0 || sum.Counts[event.Exception] > 0
	if !f.color {
		if failed {
			return "fail"
		}
		return "pass"
	}
	if failed {
		return text.FgRed.Sprint("fail")
	}
	return text.FgGreen.Sprint("pass")
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

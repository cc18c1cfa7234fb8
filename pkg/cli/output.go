package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/dshills/flowsync/pkg/domain/history"
	"github.com/dshills/flowsync/pkg/domain/types"
	"github.com/dshills/flowsync/pkg/gitsync"
)

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

// colorizeStatus returns a colored sync status
func colorizeStatus(status types.SyncStatus) string {
	switch status {
	case types.StatusCreated:
		return text.FgGreen.Sprint(status)
	case types.StatusUpdated:
		return text.FgCyan.Sprint(status)
	case types.StatusSkipped:
		return text.FgHiBlack.Sprint(status)
	case types.StatusFailed:
		return text.FgRed.Sprint(status)
	default:
		return string(status)
	}
}

// colorizeOutcome returns a colored run outcome
func colorizeOutcome(outcome history.Outcome) string {
	switch outcome {
	case history.OutcomeSucceeded:
		return text.FgGreen.Sprint(outcome)
	case history.OutcomePartial:
		return text.FgYellow.Sprint(outcome)
	case history.OutcomeFailed:
		return text.FgRed.Sprint(outcome)
	default:
		return string(outcome)
	}
}

// printResults renders one row per unit of work.
func printResults(w io.Writer, results []types.SyncResult) {
	t := newTable(w, table.Row{"KIND", "PATH", "STATUS", "COMMIT", "DETAIL"})
	for _, res := range results {
		detail := res.Reason
		if res.Warning != "" {
			if detail != "" {
				detail += "; "
			}
			detail += text.FgYellow.Sprint(res.Warning)
		}
		t.AppendRow(table.Row{res.Kind, res.Path, colorizeStatus(res.Status), truncateString(res.CommitRef, 12), detail})
	}
	t.Render()
}

// printReport renders a sync report with a summary line.
func printReport(w io.Writer, r *gitsync.Report) {
	if len(r.Results) > 0 {
		printResults(w, r.Results)
	}
	_, _ = fmt.Fprintf(w, "%s on %s@%s: %d created, %d updated, %d skipped, %d failed\n",
		r.Verb, r.Remote, r.Branch,
		r.Count(types.StatusCreated), r.Count(types.StatusUpdated),
		r.Count(types.StatusSkipped), r.Count(types.StatusFailed))
}

// formatDurationValue formats a duration value
func formatDurationValue(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-2] + ".."
}

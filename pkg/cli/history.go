package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dshills/flowsync/pkg/domain/history"
	"github.com/dshills/flowsync/pkg/domain/types"
	"github.com/dshills/flowsync/pkg/storage"
)

// HistoryListFlags holds the flags for the history command
type HistoryListFlags struct {
	Limit  int
	Offset int
	Verb   string
	Status string
	Since  string
}

// NewHistoryCommand creates the sync history command
func NewHistoryCommand() *cobra.Command {
	flags := &HistoryListFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded push and pull runs",
		Long:  `List recorded push and pull runs with pagination and filtering options.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, flags)
		},
	}

	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "Maximum number of runs to display")
	cmd.Flags().IntVar(&flags.Offset, "offset", 0, "Number of runs to skip")
	cmd.Flags().StringVar(&flags.Verb, "verb", "", "Filter by verb (push-flow, push-project, pull-flow, pull-project)")
	cmd.Flags().StringVar(&flags.Status, "status", "", "Filter by outcome (succeeded, partial, failed)")
	cmd.Flags().StringVar(&flags.Since, "since", "", "Filter by date (e.g., 7d, 24h, 2025-01-05)")

	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

func runHistoryList(cmd *cobra.Command, flags *HistoryListFlags) error {
	options := history.ListOptions{
		Limit:  flags.Limit,
		Offset: flags.Offset,
	}

	if flags.Verb != "" {
		verb := history.Verb(flags.Verb)
		switch verb {
		case history.VerbPushFlow, history.VerbPushProject, history.VerbPullFlow, history.VerbPullProject:
		default:
			return fmt.Errorf("invalid verb: %s (valid: push-flow, push-project, pull-flow, pull-project)", flags.Verb)
		}
		options.Verb = &verb
	}

	if flags.Status != "" {
		outcome := history.Outcome(flags.Status)
		if !outcome.IsValid() {
			return fmt.Errorf("invalid status: %s (valid: succeeded, partial, failed)", flags.Status)
		}
		options.Outcome = &outcome
	}

	if flags.Since != "" {
		startedAfter, err := parseSinceFlag(flags.Since)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		options.StartedAfter = &startedAfter
	}

	repo, err := storage.NewSQLiteHistoryRepository(GetConfigDir())
	if err != nil {
		return fmt.Errorf("failed to open sync history: %w", err)
	}
	defer func() { _ = repo.Close() }()

	result, err := repo.List(options)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(result.Runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs found.")
		return nil
	}

	t := newTable(out, table.Row{"ID", "VERB", "TARGET", "REMOTE", "OUTCOME", "DURATION", "STARTED"})
	for _, run := range result.Runs {
		remote := run.Remote
		if run.Branch != "" {
			remote += "@" + run.Branch
		}
		t.AppendRow(table.Row{
			truncateString(run.ID.String(), 10),
			run.Verb,
			truncateString(run.Target, 30),
			remote,
			colorizeOutcome(run.Outcome),
			formatDurationValue(run.Duration()),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	t.Render()

	if result.TotalCount > len(result.Runs) {
		showing := flags.Offset + len(result.Runs)
		_, _ = fmt.Fprintf(out, "\nShowing %d-%d of %d total runs\n", flags.Offset+1, showing, result.TotalCount)
	}
	return nil
}

func newHistoryShowCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Display one run and its per-file results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := storage.NewSQLiteHistoryRepository(GetConfigDir())
			if err != nil {
				return fmt.Errorf("failed to open sync history: %w", err)
			}
			defer func() { _ = repo.Close() }()

			run, err := repo.Load(types.RunID(args[0]))
			if err != nil {
				return fmt.Errorf("failed to load run: %w", err)
			}

			if asJSON {
				return printRunJSON(cmd, run)
			}
			printRunDetail(cmd, run)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the run as JSON")
	return cmd
}

func newHistoryPruneCommand() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the most recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := storage.NewSQLiteHistoryRepository(GetConfigDir())
			if err != nil {
				return fmt.Errorf("failed to open sync history: %w", err)
			}
			defer func() { _ = repo.Close() }()

			removed, err := repo.Prune(keep)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d runs\n", removed)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 100, "Number of most recent runs to keep")
	return cmd
}

func printRunDetail(cmd *cobra.Command, run *history.Run) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Run: %s\n", run.ID)
	_, _ = fmt.Fprintf(out, "Verb: %s %s\n", run.Verb, run.Target)
	_, _ = fmt.Fprintf(out, "Profile: %s\n", run.Profile)
	if run.Remote != "" {
		_, _ = fmt.Fprintf(out, "Remote: %s@%s\n", run.Remote, run.Branch)
	}
	_, _ = fmt.Fprintf(out, "Outcome: %s\n", colorizeOutcome(run.Outcome))
	_, _ = fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if !run.CompletedAt.IsZero() {
		_, _ = fmt.Fprintf(out, "Duration: %s\n", formatDurationValue(run.Duration()))
	}
	if run.Error != "" {
		_, _ = fmt.Fprintf(out, "Error: %s\n", run.Error)
	}
	if len(run.Results) > 0 {
		_, _ = fmt.Fprintln(out)
		printResults(out, run.Results)
	}
}

func printRunJSON(cmd *cobra.Command, run *history.Run) error {
	results := make([]map[string]any, len(run.Results))
	for i, res := range run.Results {
		results[i] = map[string]any{
			"kind":       res.Kind,
			"entity_id":  res.EntityID,
			"name":       res.Name,
			"path":       res.Path,
			"status":     res.Status,
			"commit_ref": res.CommitRef,
			"reason":     res.Reason,
			"warning":    res.Warning,
		}
	}

	output := map[string]any{
		"id":           run.ID,
		"verb":         run.Verb,
		"profile":      run.Profile,
		"remote":       run.Remote,
		"branch":       run.Branch,
		"target":       run.Target,
		"outcome":      run.Outcome,
		"error":        run.Error,
		"started_at":   run.StartedAt,
		"completed_at": run.CompletedAt,
		"duration_ms":  run.Duration().Milliseconds(),
		"results":      results,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// parseSinceFlag parses the --since flag into a time.Time
// Supports formats: "7d" (7 days), "24h" (24 hours), "2025-01-05" (date)
func parseSinceFlag(since string) (time.Time, error) {
	now := time.Now()

	if strings.HasSuffix(since, "d") {
		var d int
		if _, err := fmt.Sscanf(since[:len(since)-1], "%d", &d); err == nil {
			return now.AddDate(0, 0, -d), nil
		}
	}
	if strings.HasSuffix(since, "h") {
		var h int
		if _, err := fmt.Sscanf(since[:len(since)-1], "%d", &h); err == nil {
			return now.Add(-time.Duration(h) * time.Hour), nil
		}
	}

	layouts := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, since); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format (use: 7d, 24h, or 2025-01-05)")
}

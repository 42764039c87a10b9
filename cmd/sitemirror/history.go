package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/database"
)

// historyTimeLayout is the time format of the history listing.
const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show mirror runs recorded in the crawl journal",
		Long: `History lists the mirror runs recorded in the crawl journal, newest first.

Examples:
  # List every run
  sitemirror history

  # List the runs of one site
  sitemirror history https://example.com

  # Show the resources of one run
  sitemirror history --run 0b5c9f7e-6a7d-4c4f-9d1b-2f1e3f4a5b6c`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("run", "", "Show the resources recorded for this run ID")
	cmd.Flags().String("journal-dir", config.XDGDataDir(), "Directory of the crawl journal")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	runID, err := cmd.Flags().GetString("run")
	if err != nil {
		return err
	}
	journalDir, err := cmd.Flags().GetString("journal-dir")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	journal, err := database.Open(journalDir, database.Options{CreateIfNotExists: false})
	if errors.Is(err, database.ErrJournalNotFound) {
		fmt.Fprintln(out, "No mirror runs recorded yet.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer journal.Close()

	if runID != "" {
		return showRun(cmd, journal, runID)
	}

	var seed string
	if len(args) == 1 {
		seed = args[0]
	}

	runs, err := journal.ListRuns(cmd.Context(), seed)
	if err != nil {
		return err
	}
	printRuns(out, seed, runs)
	return nil
}

// printRuns writes the run listing.
func printRuns(out io.Writer, seed string, runs []database.Run) {
	if len(runs) == 0 {
		if seed != "" {
			fmt.Fprintf(out, "No mirror runs recorded for %s\n", seed)
		} else {
			fmt.Fprintln(out, "No mirror runs recorded yet.")
		}
		return
	}

	if seed != "" {
		fmt.Fprintf(out, "Mirror runs of %s (%d):\n\n", seed, len(runs))
	} else {
		fmt.Fprintf(out, "Mirror runs (%d):\n\n", len(runs))
	}

	fmt.Fprintf(out, "  %-36s  %-19s  %-11s  %6s  %6s  %9s  %s\n",
		"Run ID", "Started", "Status", "Total", "Failed", "Size", "Seed")
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-11s  %6d  %6d  %9s  %s\n",
			r.ID,
			r.StartedAt.Local().Format(historyTimeLayout),
			runStatus(r),
			r.Total(),
			failedCount(r),
			humanize.Bytes(uint64(max(r.BytesWritten, 0))),
			r.Seed,
		)
	}
}

// showRun writes the details and recorded resources of one run.
func showRun(cmd *cobra.Command, journal *database.Journal, runID string) error {
	run, err := journal.GetRun(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", runID)
	}

	resources, err := journal.RunResources(cmd.Context(), runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "  Seed:     %s\n", run.Seed)
	fmt.Fprintf(out, "  Root:     %s\n", run.Root)
	fmt.Fprintf(out, "  Started:  %s\n", run.StartedAt.Local().Format(historyTimeLayout))
	if run.Finished() {
		fmt.Fprintf(out, "  Elapsed:  %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(out, "  Status:   %s\n", runStatus(*run))
	fmt.Fprintf(out, "  Written:  %s\n", humanize.Bytes(uint64(max(run.BytesWritten, 0))))

	fmt.Fprintf(out, "\nResources (%d):\n\n", len(resources))
	for _, r := range resources {
		line := fmt.Sprintf("  %-14s  %9s  %s", r.Outcome, humanize.Bytes(uint64(max(r.Bytes, 0))), r.URL)
		if r.Error != "" {
			line += " (" + r.Error + ")"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

// runStatus describes how a run ended. A run without a finish time was
// stopped before it could record one.
func runStatus(r database.Run) string {
	switch {
	case !r.Finished():
		return "incomplete"
	case r.Cancelled:
		return "cancelled"
	case failedCount(r) > 0:
		return "failures"
	default:
		return "complete"
	}
}

func failedCount(r database.Run) int {
	n := 0
	for outcome, count := range r.Counts {
		if outcome.IsFailure() {
			n += count
		}
	}
	return n
}

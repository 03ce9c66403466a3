package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"culverin/internal/history"
	"culverin/internal/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past attack runs recorded with --history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, most recent first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the full report for one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.AddCommand(historyListCmd, historyShowCmd)
}

func openHistory() (*history.Store, error) {
	if historyDB == "" {
		return nil, fmt.Errorf("history: --history is required")
	}
	return history.Open(historyDB)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return withExitCode(exitArgsOrIO, err)
	}
	defer store.Close()

	runs, err := store.List()
	if err != nil {
		return withExitCode(exitInternal, err)
	}
	for _, r := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%.2f req/s\t%s\ttotal=%d success=%.1f%%\n",
			r.ID, r.Name, r.Rate, r.Duration, r.Metrics.TotalRequests, r.Metrics.SuccessRate*100)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return withExitCode(exitArgsOrIO, err)
	}
	defer store.Close()

	run, err := store.Get(args[0])
	if err != nil {
		return withExitCode(exitArgsOrIO, err)
	}
	if err := report.Text(cmd.OutOrStdout(), run.Metrics); err != nil {
		return withExitCode(exitArgsOrIO, err)
	}
	return nil
}

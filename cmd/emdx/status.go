package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emdx-dev/emdx/internal/types"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "knowledge",
	Short:   "Show an overview of the knowledge base and task board",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		docs, err := app.Store.ListLiveDocuments(ctx, 1<<30)
		if err != nil {
			return fail(cmd, err)
		}
		tasks, err := app.TaskList(ctx, types.WorkFilter{})
		if err != nil {
			return fail(cmd, err)
		}
		ready, err := app.TaskReady(ctx, types.WorkFilter{})
		if err != nil {
			return fail(cmd, err)
		}
		execs, err := app.Store.ListExecutions(ctx, 10)
		if err != nil {
			return fail(cmd, err)
		}

		byStatus := map[types.TaskStatus]int{}
		for _, t := range tasks {
			byStatus[t.Status]++
		}

		summary := map[string]any{
			"documents":      len(docs),
			"tasks_total":    len(tasks),
			"tasks_ready":    len(ready),
			"tasks_by_status": byStatus,
			"recent_executions": len(execs),
		}
		if emitJSON(os.Stdout, summary) {
			return nil
		}

		fmt.Printf("Documents: %d\n", len(docs))
		fmt.Printf("Tasks: %d total, %d ready\n", len(tasks), len(ready))
		for status, n := range byStatus {
			fmt.Printf("  %-8s %d\n", status, n)
		}
		fmt.Printf("Recent executions: %d\n", len(execs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

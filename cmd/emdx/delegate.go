package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emdx-dev/emdx/internal/facade"
)

var (
	delegateAgentType      string
	delegateMaxConcurrency int
	delegateWorktree       bool
	delegateTaskID         int64
	delegatePR             bool
)

var delegateCmd = &cobra.Command{
	Use:     "delegate <prompt>...",
	GroupID: "agents",
	Short:   "Spawn one agent subprocess per prompt and collect its output",
	Long: `Spawn an external agent process for each prompt given, streaming
logs to disk and collecting each agent's final output as a saved document
when it exits (spec.md 4.6).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := os.Getwd()
		if err != nil {
			return fail(cmd, err)
		}
		batch, err := app.Delegate(cmd.Context(), facade.DelegateArgs{
			Prompts:        args,
			AgentType:      delegateAgentType,
			MaxConcurrency: delegateMaxConcurrency,
			Worktree:       delegateWorktree,
			RepoPath:       repoPath,
			TaskID:         delegateTaskID,
			HasTaskID:      delegateTaskID != 0,
			PR:             delegatePR,
		})
		if err != nil {
			return fail(cmd, err)
		}

		jsonMode := emitJSONMode()
		var results []any
		for r := range batch.Results {
			if jsonMode {
				results = append(results, r)
				continue
			}
			if r.Err != nil {
				fmt.Printf("execution %d: FAILED: %s\n", r.ExecutionID, r.Err)
				continue
			}
			line := fmt.Sprintf("execution %d: done", r.ExecutionID)
			if r.Doc != nil {
				line += fmt.Sprintf(" -> #%d %s", r.Doc.ID, r.Doc.Title)
			}
			if r.PRURL != "" {
				line += " -> " + r.PRURL
			}
			fmt.Println(line)
		}
		if jsonMode {
			_ = emitJSON(os.Stdout, results)
		}
		return nil
	},
}

func init() {
	delegateCmd.Flags().StringVar(&delegateAgentType, "agent", "claude", "agent type label recorded on the execution row")
	delegateCmd.Flags().IntVar(&delegateMaxConcurrency, "max-concurrency", 5, "maximum agents running at once")
	delegateCmd.Flags().BoolVar(&delegateWorktree, "worktree", false, "run each agent in its own git worktree")
	delegateCmd.Flags().Int64Var(&delegateTaskID, "task", 0, "task id this delegation batch works on")
	delegateCmd.Flags().BoolVar(&delegatePR, "pr", false, "open a pull request via gh once each worktree execution completes")
	rootCmd.AddCommand(delegateCmd)
}

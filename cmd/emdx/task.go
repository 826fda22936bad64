package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emdx-dev/emdx/internal/facade"
	"github.com/emdx-dev/emdx/internal/types"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "tasks",
	Short:   "Create and manage tasks",
}

var (
	taskAddPriority int
	taskAddCategory string
	taskAddEpic     string
	taskAddParent   int64
	taskAddIsEpic   bool
	taskAddPrompt   string
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := app.TaskAdd(cmd.Context(), facade.TaskAddArgs{
			Title:        args[0],
			Priority:     taskAddPriority,
			CategoryKey:  taskAddCategory,
			EpicKey:      taskAddEpic,
			ParentTaskID: taskAddParent,
			HasParent:    taskAddParent != 0,
			IsEpic:       taskAddIsEpic,
			Prompt:       taskAddPrompt,
			HasPrompt:    taskAddPrompt != "",
		})
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, t) {
			return nil
		}
		fmt.Printf("Created %s: %s\n", t.DisplayID(), t.Title)
		return nil
	},
}

var (
	taskListCategory string
	taskListEpic     string
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := app.TaskList(cmd.Context(), types.WorkFilter{CategoryKey: taskListCategory, EpicKey: taskListEpic})
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, tasks) {
			return nil
		}
		printTasks(tasks)
		return nil
	},
}

var taskReadyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List tasks with no unmet blockers",
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := app.TaskReady(cmd.Context(), types.WorkFilter{CategoryKey: taskListCategory, EpicKey: taskListEpic})
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, tasks) {
			return nil
		}
		printTasks(tasks)
		return nil
	},
}

var taskViewCmd = &cobra.Command{
	Use:     "view <id>",
	Aliases: []string{"cat"},
	Short:   "Show a task and its dependency edges",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveTaskArg(cmd, args[0])
		if err != nil {
			return fail(cmd, err)
		}
		v, err := app.TaskView(cmd.Context(), id)
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, v) {
			return nil
		}
		fmt.Printf("%s: %s [%s]\n", v.Task.DisplayID(), v.Task.Title, v.Task.Status)
		if v.Task.Description != "" {
			fmt.Println(v.Task.Description)
		}
		if len(v.Blockers) > 0 {
			fmt.Printf("blocked by: %v\n", v.Blockers)
		}
		if len(v.Blocked) > 0 {
			fmt.Printf("blocks: %v\n", v.Blocked)
		}
		return nil
	},
}

// resolveTaskArg accepts a bare numeric id or a `KEY-N` display id.
func resolveTaskArg(cmd *cobra.Command, arg string) (int64, error) {
	if id, err := parseID(arg); err == nil {
		return id, nil
	}
	t, err := app.TaskResolve(cmd.Context(), arg)
	if err != nil {
		return 0, err
	}
	return t.ID, nil
}

func transitionCmd(use string, status types.TaskStatus, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveTaskArg(cmd, args[0])
			if err != nil {
				return fail(cmd, err)
			}
			if err := app.TaskTransition(cmd.Context(), id, status); err != nil {
				return fail(cmd, err)
			}
			fmt.Printf("#%d -> %s\n", id, status)
			return nil
		},
	}
}

var taskDepCmd = &cobra.Command{
	Use:   "dep <blocker> <blocked>",
	Short: "Add a dependency: blocker must complete before blocked can start",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		blocker, err := resolveTaskArg(cmd, args[0])
		if err != nil {
			return fail(cmd, err)
		}
		blocked, err := resolveTaskArg(cmd, args[1])
		if err != nil {
			return fail(cmd, err)
		}
		if err := app.TaskAddDependency(cmd.Context(), blocker, blocked); err != nil {
			return fail(cmd, err)
		}
		fmt.Printf("#%d now blocks #%d\n", blocker, blocked)
		return nil
	},
}

var taskEpicCmd = &cobra.Command{
	Use:   "epic <epic-key>",
	Short: "Show an epic's child task progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		progress, err := app.TaskEpicProgress(cmd.Context(), args[0])
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, progress) {
			return nil
		}
		fmt.Printf("%s: %d/%d done (all terminal: %v)\n", args[0], progress.Done, progress.Total, progress.AllTerminal)
		return nil
	},
}

var taskCategoryCmd = &cobra.Command{
	Use:   "category <key> <display-name>",
	Short: "Create or rename a task category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.TaskUpsertCategory(cmd.Context(), args[0], args[1]); err != nil {
			return fail(cmd, err)
		}
		fmt.Printf("Category %s: %s\n", args[0], args[1])
		return nil
	},
}

func printTasks(tasks []*types.Task) {
	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return
	}
	for _, t := range tasks {
		fmt.Printf("%-10s [%-7s] p%d  %s\n", t.DisplayID(), t.Status, t.Priority, t.Title)
	}
}

func init() {
	taskAddCmd.Flags().IntVar(&taskAddPriority, "priority", 0, "priority, higher runs first")
	taskAddCmd.Flags().StringVar(&taskAddCategory, "category", "", "category key, mints a KEY-N display id")
	taskAddCmd.Flags().StringVar(&taskAddEpic, "epic", "", "parent epic key")
	taskAddCmd.Flags().Int64Var(&taskAddParent, "parent", 0, "parent task id")
	taskAddCmd.Flags().BoolVar(&taskAddIsEpic, "is-epic", false, "mark this task as an epic")
	taskAddCmd.Flags().StringVar(&taskAddPrompt, "prompt", "", "delegation prompt for this task")

	taskListCmd.Flags().StringVar(&taskListCategory, "category", "", "restrict to a category")
	taskListCmd.Flags().StringVar(&taskListEpic, "epic", "", "restrict to an epic's children")
	taskReadyCmd.Flags().StringVar(&taskListCategory, "category", "", "restrict to a category")
	taskReadyCmd.Flags().StringVar(&taskListEpic, "epic", "", "restrict to an epic's children")

	taskCmd.AddCommand(
		taskAddCmd,
		taskListCmd,
		taskReadyCmd,
		taskViewCmd,
		transitionCmd("active", types.StatusActive, "Mark a task active"),
		transitionCmd("done", types.StatusDone, "Mark a task done"),
		transitionCmd("blocked", types.StatusBlocked, "Mark a task blocked"),
		transitionCmd("wontdo", types.StatusWontdo, "Mark a task won't-do"),
		transitionCmd("reopen", types.StatusOpen, "Reopen a task"),
		taskDepCmd,
		taskEpicCmd,
		taskCategoryCmd,
	)
	rootCmd.AddCommand(taskCmd)
}

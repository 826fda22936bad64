package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emdx-dev/emdx/internal/render"
)

// Exit codes, per spec.md 7: 0 success, 1 generic, 2 not-found, 3
// invalid-input, 130 cancelled (SIGINT/context.Canceled).
const (
	exitOK        = 0
	exitGeneric   = 1
	exitNotFound  = 2
	exitInvalid   = 3
	exitCancelled = 130
)

// lastExitCode is set by fail (below) and read by main() after
// rootCmd.Execute() returns, since cobra's RunE signature only carries an
// error, not an exit code.
var lastExitCode = exitOK

var (
	jsonOutput bool
	plainOutput bool
)

// rootCmd is the top-level command every subcommand file's init() attaches
// itself to, mirroring the teacher's cmd/bd self-registration pattern.
var rootCmd = &cobra.Command{
	Use:           "emdx",
	Short:         "A local-first knowledge base and task tracker for developers and AI agents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false, "emit unstyled plain text output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "knowledge", Title: "Knowledge Base:"},
		&cobra.Group{ID: "tasks", Title: "Tasks:"},
		&cobra.Group{ID: "agents", Title: "Agent Delegation:"},
		&cobra.Group{ID: "maintain", Title: "Maintenance:"},
	)
}

// outputMode resolves the active render.Mode from the persistent flags,
// defaulting to Rich when neither --json nor --plain is set; no terminal
// detection is done (spec.md 4.8's three output shapes).
func outputMode() render.Mode {
	switch {
	case jsonOutput:
		return render.JSON
	case plainOutput:
		return render.Plain
	default:
		return render.Rich
	}
}

// fail classifies err into an exit code via classifyErr, prints it in the
// active output mode, and records the exit code for main() to use -- every
// leaf command's RunE funnels its error here instead of returning it to
// cobra, so usage text is never printed alongside a domain error.
func fail(cmd *cobra.Command, err error) error {
	code := classifyErr(err)
	lastExitCode = code
	if outputMode() == render.JSON {
		_ = render.JSONError(os.Stderr, classifyKind(err), err.Error())
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err)
	return nil
}

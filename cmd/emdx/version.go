package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...", falling
// back to "dev" for local builds, the same pattern the teacher's own
// version command uses.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the emdx version",
	RunE: func(cmd *cobra.Command, args []string) error {
		if emitJSON(cmd.OutOrStdout(), map[string]string{"version": version}) {
			return nil
		}
		fmt.Println("emdx " + version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

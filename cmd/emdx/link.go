package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emdx-dev/emdx/internal/types"
)

var linkCmd = &cobra.Command{
	Use:     "link <src-id> <dst-id>",
	GroupID: "knowledge",
	Short:   "Manually link two documents",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := parseID(args[0])
		if err != nil {
			return fail(cmd, err)
		}
		dst, err := parseID(args[1])
		if err != nil {
			return fail(cmd, err)
		}
		if err := app.Link(cmd.Context(), src, dst, types.LinkManual, 1.0); err != nil {
			return fail(cmd, err)
		}
		fmt.Printf("Linked #%d -> #%d\n", src, dst)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linkCmd)
}

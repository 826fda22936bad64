package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:     "tag",
	GroupID: "knowledge",
	Short:   "Manage tags on documents",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <id> <tags...>",
	Short: "Attach one or more tags to a document",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return fail(cmd, err)
		}
		if err := app.AddTags(cmd.Context(), id, args[1:]); err != nil {
			return fail(cmd, err)
		}
		fmt.Printf("Tagged #%d: %s\n", id, strings.Join(args[1:], ", "))
		return nil
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list <id>",
	Short: "List a document's tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return fail(cmd, err)
		}
		tags, err := app.Store.GetTags(cmd.Context(), id)
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, tags) {
			return nil
		}
		for _, t := range tags {
			fmt.Println(t)
		}
		return nil
	},
}

func init() {
	tagCmd.AddCommand(tagAddCmd, tagListCmd)
	rootCmd.AddCommand(tagCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emdx-dev/emdx/internal/render"
	"github.com/emdx-dev/emdx/internal/types"
)

var viewCmd = &cobra.Command{
	Use:     "view <id>",
	Aliases: []string{"show", "cat"},
	GroupID: "knowledge",
	Short:   "View a document's content, tags, and links",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return fail(cmd, err)
		}
		v, err := app.View(cmd.Context(), id)
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, v) {
			return nil
		}
		mode := outputMode()
		render.Heading(mode, os.Stdout, v.Doc.Title)
		fmt.Println(render.Muted(mode, fmt.Sprintf("#%d  %s  accessed %d times", v.Doc.ID, v.Doc.DocType, v.Doc.AccessCount)))
		fmt.Println()
		if err := render.Markdown(mode, os.Stdout, v.Doc.Content); err != nil {
			return fail(cmd, err)
		}
		if len(v.Tags) > 0 {
			fmt.Printf("\ntags: %s\n", render.Accent(mode, fmt.Sprint(v.Tags)))
		}
		for _, l := range v.Links {
			fmt.Printf("-> #%d (%s, score %.2f)\n", l.TargetDocID, l.Kind, l.SimilarityScore)
		}
		return nil
	},
}

var (
	editFile   string
	editNoLink bool
)

var editCmd = &cobra.Command{
	Use:     "edit <id>",
	GroupID: "knowledge",
	Short:   "Replace a document's content",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return fail(cmd, err)
		}
		_, text, err := readSource(editFile, "", cmd.InOrStdin())
		if err != nil {
			return fail(cmd, err)
		}
		doc, err := app.Edit(cmd.Context(), id, text, !editNoLink)
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, doc) {
			return nil
		}
		mode := outputMode()
		render.Heading(mode, os.Stdout, fmt.Sprintf("Updated #%d: %s (v%d)", doc.ID, doc.Title, doc.CurrentVersionNumber))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	GroupID: "knowledge",
	Short:   "Soft-delete a document",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return fail(cmd, err)
		}
		if !confirmDestructive(cmd.InOrStdin(), fmt.Sprintf("Delete #%d?", id)) {
			return fail(cmd, types.ErrCancelled)
		}
		if err := app.Delete(cmd.Context(), id); err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, map[string]any{"deleted": id}) {
			return nil
		}
		fmt.Printf("Deleted #%d\n", id)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:     "restore <id>",
	GroupID: "knowledge",
	Short:   "Restore a soft-deleted document",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return fail(cmd, err)
		}
		if !confirmDestructive(cmd.InOrStdin(), fmt.Sprintf("Restore #%d?", id)) {
			return fail(cmd, types.ErrCancelled)
		}
		if err := app.Restore(cmd.Context(), id); err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, map[string]any{"restored": id}) {
			return nil
		}
		fmt.Printf("Restored #%d\n", id)
		return nil
	},
}

func init() {
	editCmd.Flags().StringVar(&editFile, "file", "", "read new content from this file instead of stdin")
	editCmd.Flags().BoolVar(&editNoLink, "no-link", false, "skip re-running the enrichment/auto-linking pass")
	rootCmd.AddCommand(viewCmd, editCmd, deleteCmd, restoreCmd)
}

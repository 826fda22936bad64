package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emdx-dev/emdx/internal/facade"
	"github.com/emdx-dev/emdx/internal/render"
)

var (
	saveFile    string
	saveTags    string
	saveProject string
	saveNoLink  bool
)

var saveCmd = &cobra.Command{
	Use:     "save [text]",
	GroupID: "knowledge",
	Short:   "Save a document to the knowledge base",
	Long: `Save a document from a file (--file), inline text, or stdin.

A title is required; the first line of the content is used if --title is
not given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var inline string
		if len(args) == 1 {
			inline = args[0]
		}
		_, text, err := readSource(saveFile, inline, cmd.InOrStdin())
		if err != nil {
			return fail(cmd, err)
		}

		title, _ := cmd.Flags().GetString("title")
		if title == "" {
			title = firstLine(text)
		}

		saved, err := app.Save(cmd.Context(), facade.SaveArgs{
			Source:   facade.Source{Kind: facade.SourceText, Text: text},
			Title:    title,
			Tags:     splitTags(saveTags),
			Project:  saveProject,
			AutoLink: !saveNoLink,
		})
		if err != nil {
			return fail(cmd, err)
		}

		if emitJSON(os.Stdout, saved.Doc) {
			return nil
		}
		mode := outputMode()
		render.Heading(mode, os.Stdout, fmt.Sprintf("Saved #%d: %s", saved.Doc.ID, saved.Doc.Title))
		return nil
	},
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	if len(s) > 80 {
		return s[:80]
	}
	return s
}

func init() {
	saveCmd.Flags().String("title", "", "document title (defaults to the first line of content)")
	saveCmd.Flags().StringVar(&saveFile, "file", "", "read content from this file instead of stdin")
	saveCmd.Flags().StringVar(&saveTags, "tags", "", "comma-separated tags to attach")
	saveCmd.Flags().StringVar(&saveProject, "project", "", "project label for this document")
	saveCmd.Flags().BoolVar(&saveNoLink, "no-link", false, "skip the enrichment/auto-linking pass")
	rootCmd.AddCommand(saveCmd)
}

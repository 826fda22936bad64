package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emdx-dev/emdx/internal/facade"
	"github.com/emdx-dev/emdx/internal/render"
	"github.com/emdx-dev/emdx/internal/types"
)

var (
	findTags    string
	findProject string
	findLimit   int
	findRecent  int
	findSimilar int64
	findWander  bool
	findAsk     bool
	findMode    string
)

var findCmd = &cobra.Command{
	Use:     "find [query]",
	Aliases: []string{"search"},
	GroupID: "knowledge",
	Short:   "Search the knowledge base",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var query string
		if len(args) == 1 {
			query = args[0]
		}

		if findAsk {
			if query == "" {
				return fail(cmd, types.ErrEmptyQuery)
			}
			limit := findLimit
			if limit <= 0 {
				limit = 5
			}
			qa, err := app.Ask(cmd.Context(), query, limit)
			if err != nil {
				return fail(cmd, err)
			}
			if emitJSON(os.Stdout, qa) {
				return nil
			}
			fmt.Println(qa.Answer)
			return nil
		}

		mode := types.ModeHybrid
		switch findMode {
		case "keyword":
			mode = types.ModeKeyword
		case "semantic":
			mode = types.ModeSemantic
		}

		fargs := facade.FindArgs{
			Query:  query,
			Mode:   mode,
			Limit:  findLimit,
			Wander: findWander,
		}
		if findRecent > 0 {
			fargs.Recent = findRecent
		}
		if findSimilar > 0 {
			fargs.HasSimilar = true
			fargs.Similar = findSimilar
		}
		if findTags != "" {
			fargs.Filter.Tags = []types.TagFilter{{Mode: types.TagFilterAND, Tags: splitTags(findTags)}}
		}
		if findProject != "" {
			fargs.Filter.Project = findProject
		}

		result, err := app.Find(cmd.Context(), fargs)
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, result.Results) {
			return nil
		}
		renderMode := outputMode()
		if len(result.Results) == 0 {
			fmt.Println("No results.")
			return nil
		}
		for _, r := range result.Results {
			fmt.Printf("#%-6d %s %s\n", r.Doc.ID, r.Doc.Title, render.Muted(renderMode, fmt.Sprintf("(rrf %.3f)", r.RRFScore)))
		}
		return nil
	},
}

func init() {
	findCmd.Flags().StringVar(&findTags, "tags", "", "comma-separated tags to require")
	findCmd.Flags().StringVar(&findProject, "project", "", "restrict to a project")
	findCmd.Flags().IntVar(&findLimit, "limit", 20, "maximum results")
	findCmd.Flags().IntVar(&findRecent, "recent", 0, "show the N most recently created documents instead of searching")
	findCmd.Flags().Int64Var(&findSimilar, "similar", 0, "find documents similar to this document id")
	findCmd.Flags().BoolVar(&findWander, "wander", false, "return a serendipitous sample instead of top-ranked results")
	findCmd.Flags().BoolVar(&findAsk, "ask", false, "answer the query as a natural-language question over top results")
	findCmd.Flags().StringVar(&findMode, "mode", "hybrid", "search mode: keyword, semantic, or hybrid")
	rootCmd.AddCommand(findCmd)
}

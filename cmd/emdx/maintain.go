package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/emdx-dev/emdx/internal/compact"
	"github.com/emdx-dev/emdx/internal/types"
	"github.com/emdx-dev/emdx/internal/wiki"
)

var maintainCmd = &cobra.Command{
	Use:     "maintain",
	GroupID: "maintain",
	Short:   "Housekeeping operations on the knowledge base",
}

var (
	compactSizeThreshold int
	compactDryRun        bool
)

var maintainCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Summarize large documents in place",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := compact.Config{Concurrency: 5, DryRun: compactDryRun, Actor: "emdx-cli"}
		var summarizer compact.Summarizer
		if !compactDryRun {
			if app.Invoker == nil {
				return fail(cmd, types.ErrToolMissing)
			}
			summarizer = compact.NewLLMSummarizer(app.Invoker, true, "emdx-cli")
		}
		result, err := app.MaintainCompact(cmd.Context(), summarizer, compactSizeThreshold, cfg)
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, result) {
			return nil
		}
		for _, r := range result.Results {
			if r.Err != nil {
				fmt.Printf("#%d: skipped: %s\n", r.DocID, r.Err)
				continue
			}
			fmt.Printf("#%d: %d -> %d bytes\n", r.DocID, r.OriginalSize, r.CompactedSize)
		}
		return nil
	},
}

var maintainIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild chunk embeddings for every live document and check integrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := app.MaintainIndex(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, result) {
			return nil
		}
		fmt.Printf("Rebuilt %d documents. Integrity: %s\n", result.Rebuilt, result.IntegrityMsg)
		return nil
	},
}

var maintainLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Backfill title-match, entity, and semantic links across the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := app.MaintainLink(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, map[string]int{"documents": n}) {
			return nil
		}
		fmt.Printf("Re-linked %d documents.\n", n)
		return nil
	},
}

var maintainVacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Reclaim space in the SQLite file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.MaintainVacuum(cmd.Context()); err != nil {
			return fail(cmd, err)
		}
		fmt.Println("Vacuumed.")
		return nil
	},
}

var (
	purgeOlderThan time.Duration
	reapThreshold  time.Duration
)

var maintainPurgeTrashCmd = &cobra.Command{
	Use:   "purge-trash",
	Short: "Permanently delete soft-deleted documents older than a threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := app.MaintainPurgeTrash(cmd.Context(), purgeOlderThan)
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, map[string]int{"purged": n}) {
			return nil
		}
		fmt.Printf("Purged %d documents.\n", n)
		return nil
	},
}

var maintainReapStaleCmd = &cobra.Command{
	Use:   "reap-stale",
	Short: "Mark executions with no heartbeat past the threshold as stale",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := app.MaintainReapStale(cmd.Context(), reapThreshold)
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(os.Stdout, map[string]int{"reaped": n}) {
			return nil
		}
		fmt.Printf("Reaped %d stale executions.\n", n)
		return nil
	},
}

var wikiMinCluster int

var maintainWikiCmd = &cobra.Command{
	Use:   "wiki",
	Short: "Generate synthesized wiki articles from clusters of tagged documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		if app.Invoker == nil {
			return fail(cmd, types.ErrToolMissing)
		}
		gen := wiki.NewGenerator(app.Invoker)
		docs, errs := app.WikiGenerate(cmd.Context(), gen, wikiMinCluster)
		if emitJSON(os.Stdout, map[string]any{"generated": docs, "errors": errs}) {
			return nil
		}
		for _, d := range docs {
			fmt.Printf("Generated #%d: %s\n", d.ID, d.Title)
		}
		for _, e := range errs {
			fmt.Printf("error: %s\n", e)
		}
		return nil
	},
}

func init() {
	maintainCompactCmd.Flags().IntVar(&compactSizeThreshold, "size-threshold", 4096, "only summarize documents at least this many bytes")
	maintainCompactCmd.Flags().BoolVar(&compactDryRun, "dry-run", false, "report would-be candidates without summarizing")
	maintainPurgeTrashCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 30*24*time.Hour, "purge documents deleted longer ago than this")
	maintainReapStaleCmd.Flags().DurationVar(&reapThreshold, "threshold", 30*time.Minute, "heartbeat age past which a running execution is marked stale")
	maintainWikiCmd.Flags().IntVar(&wikiMinCluster, "min-cluster-size", 2, "minimum number of documents sharing a tag to generate an article")

	maintainCmd.AddCommand(
		maintainCompactCmd,
		maintainIndexCmd,
		maintainLinkCmd,
		maintainVacuumCmd,
		maintainPurgeTrashCmd,
		maintainReapStaleCmd,
		maintainWikiCmd,
	)
	rootCmd.AddCommand(maintainCmd)
}

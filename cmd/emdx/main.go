// Command emdx is the CLI entry point for the knowledge store engine
// described in spec.md: thin glue over the Command Facade (internal/facade),
// per spec.md 1's explicit scoping-out of "CLI command parsing" from the
// core. It owns terminal I/O, dependency wiring, and exit-code translation;
// nothing else.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/emdx-dev/emdx/internal/config"
	"github.com/emdx-dev/emdx/internal/daemon"
	"github.com/emdx-dev/emdx/internal/embed"
	"github.com/emdx-dev/emdx/internal/enrich"
	"github.com/emdx-dev/emdx/internal/execution"
	"github.com/emdx-dev/emdx/internal/facade"
	"github.com/emdx-dev/emdx/internal/hooks"
	"github.com/emdx-dev/emdx/internal/llm"
	"github.com/emdx-dev/emdx/internal/logging"
	"github.com/emdx-dev/emdx/internal/search"
	"github.com/emdx-dev/emdx/internal/storage/sqlite"
	"github.com/emdx-dev/emdx/internal/task"
)

// app is the process-wide Facade every command file's RunE closes over,
// populated by buildApp in main() before rootCmd.Execute() -- the same
// "construct once, hand to every command" shape the teacher wires its
// storage handle through.
var app *facade.Facade

func main() {
	a, logger, err := buildApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "emdx: %s\n", err)
		os.Exit(exitGeneric)
	}
	app = a
	defer func() {
		_ = app.Store.Close()
		_ = logger.Sync()
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitGeneric)
	}
	os.Exit(lastExitCode)
}

// buildApp wires every collaborator the Facade needs from config defaults
// plus $EMDX_CONFIG_DIR/config.toml (spec.md §6), the same construction
// order main() in a cobra-based CLI typically follows: config, logger,
// storage, then the higher-level services built on top of storage.
func buildApp() (*facade.Facade, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logDir, err := config.LogDir()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve log dir: %w", err)
	}
	logger, err := logging.New(logDir, os.Getenv("EMDX_VERBOSE") == "1")
	if err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}

	dbPath, err := config.DatabasePath()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve database path: %w", err)
	}
	if override := os.Getenv("EMDX_DB_PATH"); override != "" {
		dbPath = override
	}
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	embedder := embed.NewHashingEmbedder(cfg.EmbeddingDim)
	searchEngine := search.New(store, embedder, cfg.RRFK)
	tasks := task.New(store)

	enrichPipeline := enrich.New(store, embedder, cfg.SemanticLinkThreshold, logger)
	enrichPipeline.Start(context.Background())

	workspaceRoot, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve working directory: %w", err)
	}
	hookRunner := hooks.NewRunnerFromWorkspace(workspaceRoot)

	registry, err := daemon.NewRegistry()
	if err != nil {
		return nil, nil, fmt.Errorf("init execution registry: %w", err)
	}

	spawner, err := execution.New(store, cfg.LLMCommand, logDir, registry, nil,
		time.Duration(cfg.HeartbeatIntervalSeconds)*time.Second, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init execution spawner: %w", err)
	}

	f := facade.New(store, searchEngine, tasks, enrichPipeline, hookRunner, nil, nil, logger)
	collector := execution.NewCollector(store, f.SaveAgentOutput, logger)
	runner := execution.NewRunner(spawner, collector, nil)
	f.Runner = runner
	f.Collector = collector

	if invoker, invErr := llm.New(cfg.LLMCommand, 60*time.Second); invErr == nil {
		f.Invoker = invoker
	} else {
		logger.Warn("llm invoker unavailable; ask/compact/wiki commands will fail", zap.Error(invErr))
	}

	return f, logger, nil
}

package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mivar/internal/config"
	"mivar/internal/debuglog"
	"mivar/internal/kb"
	"mivar/internal/kbfile"
	"mivar/internal/script"
	"mivar/internal/solver"
	"mivar/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "mivar",
		Short: "Demand-driven inference over parameters, relations and rules",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setup()
		},
	}
	configPath string
	dbPath     string
	fromStore  bool

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the config file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the document database (SQLite); overrides storage.path")
	rootCmd.PersistentFlags().BoolVarP(&fromStore, "stored", "s", false, "Treat the knowledge-base argument as a stored document name instead of a file")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(serveCmd)
}

// setup loads the config and configures logging once per invocation.
func setup() {
	var err error
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if err := debuglog.Configure(debuglog.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
}

// initStore opens the configured SQLite store.
func initStore() (storage.Store, error) {
	return storage.NewSQLiteStore(cfg.Storage.Path)
}

func newEngine() script.Engine {
	return script.NewGojaEngine(script.WithCallTimeout(cfg.Solver.CallTimeout))
}

func newSolver() *solver.Solver {
	return solver.New(
		solver.WithMaxDepth(cfg.Solver.MaxDepth),
		solver.WithLogger(log.StandardLogger()),
	)
}

// loadDocument reads ref from disk, or from the store with --stored.
func loadDocument(ctx context.Context, ref string) (*kbfile.Document, error) {
	if !fromStore {
		return kbfile.Load(ref)
	}
	store, err := initStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()
	return store.LoadDocument(ctx, ref)
}

// loadKnowledgeBase loads and builds ref.
func loadKnowledgeBase(ctx context.Context, ref string) (*kbfile.Document, *kb.KnowledgeBase, error) {
	doc, err := loadDocument(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	k, err := doc.Build(newEngine())
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", ref, err)
	}
	return doc, k, nil
}

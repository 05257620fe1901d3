package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mivar/internal/kbfile"
	"mivar/internal/storage"
)

// eachDocument calls fn for path, or for every document under path when it
// is a directory.
func eachDocument(path string, fn func(path string, doc *kbfile.Document, err error) error) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return kbfile.ScanDir(path, fn)
	}
	doc, loadErr := kbfile.Load(path)
	return fn(path, doc, loadErr)
}

var validateCmd = &cobra.Command{
	Use:   "validate <path>...",
	Short: "Check knowledge-base documents against the schema and build them",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		failed := 0
		for _, arg := range args {
			err := eachDocument(arg, func(path string, doc *kbfile.Document, err error) error {
				if err == nil {
					_, err = doc.Build(newEngine())
				}
				if err != nil {
					failed++
					fmt.Printf("❌ %s: %v\n", path, err)
					return nil
				}
				fmt.Printf("✅ %s (%d relations, %d rules)\n", path, len(doc.Relations), len(doc.Rules))
				return nil
			})
			if err != nil {
				log.Fatalf("Failed to read %s: %v", arg, err)
			}
		}
		if failed > 0 {
			os.Exit(1)
		}
	},
}

var importCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Validate documents and store them in the database",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		store, err := initStore()
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		imported := 0
		for _, arg := range args {
			err := eachDocument(arg, func(path string, doc *kbfile.Document, err error) error {
				if err == nil {
					_, err = doc.Build(newEngine())
				}
				if err != nil {
					fmt.Printf("⚠️  Skipping %s: %v\n", path, err)
					return nil
				}
				if err := store.SaveDocument(ctx, doc); err != nil {
					return fmt.Errorf("save %s: %w", doc.Name, err)
				}
				imported++
				fmt.Printf("💾 %s -> %s\n", path, doc.Name)
				return nil
			})
			if err != nil {
				log.Fatalf("Import failed: %v", err)
			}
		}
		fmt.Printf("🎉 Imported %d documents into %s\n", imported, cfg.Storage.Path)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store, err := initStore()
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		infos, err := store.ListDocuments(context.Background())
		if err != nil {
			log.Fatalf("Failed to list documents: %v", err)
		}
		if len(infos) == 0 {
			fmt.Println("No documents stored.")
			return
		}
		for _, info := range infos {
			fmt.Printf("%-24s %s  %s\n", info.Name, info.UpdatedAt.Format("2006-01-02 15:04:05"), info.Description)
		}
	},
}

var exportFormat string

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "yaml", "Output format: yaml or json")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show")
}

var exportCmd = &cobra.Command{
	Use:   "export <kb>",
	Short: "Print a knowledge base as a document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doc, k, err := loadKnowledgeBase(context.Background(), args[0])
		if err != nil {
			log.Fatalf("Failed to load knowledge base: %v", err)
		}
		out, err := kbfile.Export(k, doc.Name).Marshal(kbfile.Format(exportFormat))
		if err != nil {
			log.Fatalf("Failed to encode document: %v", err)
		}
		os.Stdout.Write(out)
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Show recorded solves of a stored document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := initStore()
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		runs, err := store.ListRuns(context.Background(), args[0], historyLimit)
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		if len(runs) == 0 {
			fmt.Printf("No runs recorded for %s.\n", args[0])
			return
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  resolved=%d unresolved=%d  %v\n",
				r.CreatedAt.Format("2006-01-02 15:04:05"), r.ID, len(r.Values), len(r.Unresolved), r.Duration)
		}
	},
}

// deleteDocuments removes every named document and its run history. It
// stops at the first failure and returns the names removed before it.
func deleteDocuments(ctx context.Context, store storage.DocumentStore, names []string) ([]string, error) {
	var deleted []string
	for _, name := range names {
		if err := store.DeleteDocument(ctx, name); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", name, err)
		}
		deleted = append(deleted, name)
	}
	return deleted, nil
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>...",
	Short: "Remove stored documents and their recorded solves",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := initStore()
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		deleted, err := deleteDocuments(context.Background(), store, args)
		for _, name := range deleted {
			fmt.Printf("🗑️  %s\n", name)
		}
		if err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
	},
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mivar/internal/kbfile"
	"mivar/internal/solver"
	"mivar/internal/storage"
)

var (
	queryPaths  []string
	knownFlags  []string
	targetFlags []string
	outputJSON  bool
	recordRun   bool
)

func init() {
	solveCmd.Flags().StringArrayVarP(&queryPaths, "query", "q", nil, "Query document (repeatable; several run as a batch)")
	solveCmd.Flags().StringArrayVarP(&knownFlags, "known", "k", nil, "Known value as path=value, value parsed as YAML (repeatable)")
	solveCmd.Flags().StringArrayVarP(&targetFlags, "target", "t", nil, "Target parameter path (repeatable)")
	solveCmd.Flags().BoolVar(&outputJSON, "json", false, "Print results as JSON")
	solveCmd.Flags().BoolVar(&recordRun, "record", false, "Record the run in the database under the document name")
}

var solveCmd = &cobra.Command{
	Use:   "solve <kb>",
	Short: "Solve target parameters from known values",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		doc, k, err := loadKnowledgeBase(ctx, args[0])
		if err != nil {
			log.Fatalf("Failed to load knowledge base: %v", err)
		}

		queries, err := collectQueries()
		if err != nil {
			log.Fatalf("Invalid query: %v", err)
		}

		batch := make([]solver.Query, len(queries))
		for i, q := range queries {
			known, targets, err := q.Resolve(k)
			if err != nil {
				log.Fatalf("Invalid query: %v", err)
			}
			batch[i] = solver.Query{Known: known, Targets: targets}
		}

		results, err := newSolver().SolveBatch(ctx, k, batch, cfg.Solver.BatchLimit)
		if err != nil {
			log.Fatalf("Solve failed: %v", err)
		}

		if recordRun {
			record(ctx, doc.Name, queries, results)
		}

		for i, res := range results {
			if outputJSON {
				printJSON(res)
				continue
			}
			if len(results) > 1 {
				fmt.Printf("-- query %d\n", i+1)
			}
			printResult(res)
		}
	},
}

// collectQueries merges --query documents and the --known/--target flags.
func collectQueries() ([]*kbfile.Query, error) {
	var queries []*kbfile.Query
	for _, path := range queryPaths {
		q, err := kbfile.LoadQuery(path)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}

	if len(knownFlags) > 0 || len(targetFlags) > 0 {
		q := &kbfile.Query{Known: map[string]any{}, Targets: targetFlags}
		for _, kv := range knownFlags {
			path, raw, ok := strings.Cut(kv, "=")
			if !ok {
				return nil, fmt.Errorf("--known %q: want path=value", kv)
			}
			var v any
			if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
				return nil, fmt.Errorf("--known %q: %w", kv, err)
			}
			q.Known[path] = v
		}
		if len(q.Targets) == 0 {
			return nil, fmt.Errorf("at least one --target is required")
		}
		queries = append(queries, q)
	}

	if len(queries) == 0 {
		return nil, fmt.Errorf("give --query or --target")
	}
	return queries, nil
}

func record(ctx context.Context, document string, queries []*kbfile.Query, results []*solver.Result) {
	store, err := initStore()
	if err != nil {
		log.Warnf("Failed to initialize database, run not recorded: %v", err)
		return
	}
	defer store.Close()

	for i, res := range results {
		run := &storage.Run{
			Document:   document,
			SessionID:  res.SessionID,
			Query:      *queries[i],
			Values:     res.Values,
			Unresolved: res.Unresolved,
			Duration:   res.Duration,
		}
		if err := store.RecordRun(ctx, run); err != nil {
			log.Warnf("Failed to record run: %v", err)
		}
	}
}

func printResult(res *solver.Result) {
	names := make([]string, 0, len(res.Values))
	for name := range res.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("✅ %s = %s\n", name, formatValue(res.Values[name]))
	}
	for _, name := range res.Unresolved {
		if serr, ok := res.Failures[name]; ok {
			fmt.Printf("❌ %s: %v\n", name, serr)
		} else {
			fmt.Printf("❌ %s: unresolved\n", name)
		}
	}
	fmt.Printf("⏱  %v (session %s)\n", res.Duration, res.SessionID)
}

func printJSON(res *solver.Result) {
	out := map[string]any{
		"session_id": res.SessionID,
		"values":     res.Values,
		"unresolved": res.Unresolved,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
}

func formatValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

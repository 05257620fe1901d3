package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mivar/internal/analysis"
)

var (
	depsImpact bool
	depsHops   int
)

func init() {
	depsCmd.Flags().BoolVar(&depsImpact, "impact", false, "List parameters that depend on the parameter instead")
	depsCmd.Flags().IntVar(&depsHops, "hops", 0, "Maximum number of rules to follow (0 = unlimited)")
}

var depsCmd = &cobra.Command{
	Use:   "deps <kb> <parameter>",
	Short: "Show which parameters a parameter may be derived from",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		_, k, err := loadKnowledgeBase(context.Background(), args[0])
		if err != nil {
			log.Fatalf("Failed to load knowledge base: %v", err)
		}

		analyzer, err := analysis.NewAnalyzer(k)
		if err != nil {
			log.Fatalf("Failed to analyze rules: %v", err)
		}

		walk, verb := analyzer.Requirements, "needs"
		if depsImpact {
			walk, verb = analyzer.Impact, "feeds"
		}
		report, err := walk(args[1], depsHops)
		if err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}

		fmt.Printf("🔍 %s %s:\n", report.Root, verb)
		fmt.Printf("  -> %d parameters directly\n", len(report.Direct))
		for _, name := range report.Direct {
			fmt.Printf("     %s\n", name)
		}
		fmt.Printf("  -> %d parameters indirectly\n", len(report.Indirect))
		for _, name := range report.Indirect {
			fmt.Printf("     %s (%d hops)\n", name, report.Hops[name])
		}
	},
}

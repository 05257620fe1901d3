package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mivar/internal/server"
	"mivar/internal/telemetry"
)

var recordRuns bool

func init() {
	serveCmd.Flags().BoolVar(&recordRuns, "record", false, "Record every solve in the database")
}

var serveCmd = &cobra.Command{
	Use:   "serve <kb>",
	Short: "Serve a knowledge base over HTTP",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "mivar",
			Traces:      cfg.Telemetry.Traces,
			Metrics:     cfg.Telemetry.Metrics,
		})
		if err != nil {
			log.Fatalf("Failed to initialize telemetry: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warnf("Telemetry shutdown: %v", err)
			}
		}()

		doc, k, err := loadKnowledgeBase(ctx, args[0])
		if err != nil {
			log.Fatalf("Failed to load knowledge base: %v", err)
		}

		opts := []server.Option{
			server.WithLogger(log.StandardLogger()),
			server.WithBatchLimit(cfg.Solver.BatchLimit),
		}
		if recordRuns {
			store, err := initStore()
			if err != nil {
				log.Fatalf("Failed to initialize database: %v", err)
			}
			defer store.Close()
			opts = append(opts, server.WithRunStore(store))
		}

		h, err := server.NewHandlers(k, doc.Name, newSolver(), opts...)
		if err != nil {
			log.Fatalf("Failed to create handlers: %v", err)
		}

		gin.SetMode(gin.ReleaseMode)
		if err := server.Serve(ctx, cfg.Server.Addr, server.NewRouter(h), log.StandardLogger()); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	},
}

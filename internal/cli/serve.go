package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/salespipe/salespipe/internal/db"
	"github.com/salespipe/salespipe/internal/logging"
	"github.com/salespipe/salespipe/internal/report"
)

var (
	serveListen      string
	serveCORSOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reporting API over the committed sales schema",
	Long: `Serve read-only sales aggregations as JSON over HTTP:

  GET /sales/product          totals per product+category pair
  GET /sales/product/totals   totals per product
  GET /sales/day              totals per calendar date
  GET /ingest/runs            recent ingestion batch summaries
  GET /healthz                liveness check

The day endpoint accepts date, start_date and end_date query parameters
in YYYY-MM-DD form; the product endpoint accepts an exact product filter.

Example:
  salespipe serve --listen :8080 --cors-origin "http://localhost:3000"`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "",
		"HTTP listen address")
	serveCmd.Flags().StringSliceVar(&serveCORSOrigins, "cors-origin", nil,
		"allowed CORS origin (repeatable)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListen != "" {
		cfg.Serve.Listen = serveListen
	}
	if len(serveCORSOrigins) > 0 {
		cfg.Serve.CORSOrigins = serveCORSOrigins
	}

	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	server := &http.Server{
		Addr:         cfg.Serve.Listen,
		Handler:      report.NewServer(pool).Handler(cfg.Serve.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logging.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Server shutdown failed")
		}
		cancel()
	}()

	logging.Info().
		Str("listen", cfg.Serve.Listen).
		Strs("cors_origins", cfg.Serve.CORSOrigins).
		Msg("Serving reporting API")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	logging.Info().Msg("Server stopped")
	return nil
}

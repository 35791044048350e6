package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salespipe/salespipe/internal/db"
	"github.com/salespipe/salespipe/internal/ingest"
	"github.com/salespipe/salespipe/internal/logging"
)

var ingestWorkers int

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.csv> [file.csv ...]",
	Short: "Ingest one or more sales CSV files",
	Long: `Ingest sales CSV files into the star schema. Each file is one
transactional batch: either all of its rows are committed together or,
on a storage failure, none are. Re-ingesting a file is safe; fact rows
are upserted by transaction id.

Rows with an unreadable transaction_id are rejected and counted; other
malformed fields (date, quantity, price) are stored as NULL rather than
dropped or zeroed.

Example:
  salespipe ingest sales_jan.csv sales_feb.csv --workers 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0,
		"number of files ingested concurrently")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestWorkers > 0 {
		cfg.Ingest.Workers = ingestWorkers
	}

	if err := cfg.ValidateIngest(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	driver := ingest.NewDriver(pool)
	summaries, err := driver.IngestFiles(ctx, args, cfg.Ingest.Workers)
	if err != nil {
		return err
	}

	var read, rejected, upserted int
	for _, sum := range summaries {
		read += sum.RowsRead
		rejected += sum.RowsRejected
		upserted += sum.RowsUpserted
	}

	logging.Info().
		Int("files", len(summaries)).
		Int("rows_read", read).
		Int("rows_rejected", rejected).
		Int("rows_upserted", upserted).
		Msg("Ingestion complete")

	return nil
}

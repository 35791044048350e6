package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/salespipe/salespipe/internal/datagen"
	"github.com/salespipe/salespipe/internal/logging"
)

var (
	sampleRows      int
	sampleOutput    string
	sampleSeed      uint64
	sampleMalformed float64
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate a synthetic sales CSV file",
	Long: `Generate a sales CSV suitable for demos and for exercising the
ingestion pipeline. With --malformed > 0 a fraction of rows is given an
unparseable field (price, quantity, date, or the transaction id itself)
so the null-substitution and rejection policies can be observed.

Example:
  salespipe sample --rows 5000 --out sales_data.csv --malformed 0.05`,
	RunE: runSample,
}

func init() {
	sampleCmd.Flags().IntVar(&sampleRows, "rows", 0,
		"number of data rows to generate")
	sampleCmd.Flags().StringVar(&sampleOutput, "out", "",
		"output CSV path")
	sampleCmd.Flags().Uint64Var(&sampleSeed, "seed", 0,
		"random seed for reproducible output (0 = random)")
	sampleCmd.Flags().Float64Var(&sampleMalformed, "malformed", -1,
		"fraction of rows with a deliberately unparseable field")
}

func runSample(cmd *cobra.Command, args []string) error {
	if sampleRows > 0 {
		cfg.Sample.Rows = sampleRows
	}
	if sampleOutput != "" {
		cfg.Sample.Output = sampleOutput
	}
	if sampleSeed > 0 {
		cfg.Sample.Seed = sampleSeed
	}
	if sampleMalformed >= 0 {
		cfg.Sample.MalformedRate = sampleMalformed
	}

	if err := cfg.ValidateSample(); err != nil {
		return err
	}

	f, err := os.Create(cfg.Sample.Output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	rows, err := datagen.WriteSample(f, datagen.SampleConfig{
		Rows:          cfg.Sample.Rows,
		Seed:          cfg.Sample.Seed,
		MalformedRate: cfg.Sample.MalformedRate,
	})
	if err != nil {
		return fmt.Errorf("failed to generate sample: %w", err)
	}

	logging.Info().
		Str("file", cfg.Sample.Output).
		Int("rows", rows).
		Float64("malformed_rate", cfg.Sample.MalformedRate).
		Msg("Sample CSV written")

	return nil
}

//-------------------------------------------------------------------------
//
// salespipe - CSV sales ingestion for PostgreSQL
//
// Copyright (c) 2025 - 2026, the salespipe authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/salespipe/salespipe/internal/db"
	"github.com/salespipe/salespipe/internal/logging"
)

// Summary reports the outcome of one ingested batch.
type Summary struct {
	File         string
	RowsRead     int
	RowsRejected int
	RowsUpserted int
	RowsDerived  int64
}

// Driver orchestrates batch ingestion: per file it streams rows through
// normalize, resolve and upsert on a single transaction, finalizes the
// derived measure, records the batch audit row and commits. A storage error
// anywhere rolls the whole batch back.
type Driver struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewDriver creates a Driver on the given pool.
func NewDriver(pool *pgxpool.Pool) *Driver {
	return &Driver{
		pool: pool,
		log:  logging.Component("ingest"),
	}
}

// IngestFile ingests one CSV file as one transactional batch. The returned
// Summary is only meaningful when err is nil; on error the store is unchanged.
func (d *Driver) IngestFile(ctx context.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sum := Summary{File: path}
	started := time.Now().UTC()

	err = db.WithTx(ctx, d.pool, func(tx pgx.Tx) error {
		reader, err := NewReader(bufio.NewReader(f))
		if err != nil {
			return err
		}

		resolver := NewResolver(tx)

		for {
			raw, err := reader.Next()
			if err == io.EOF {
				break
			}
			if errors.Is(err, ErrBadRow) {
				sum.RowsRead++
				sum.RowsRejected++
				d.log.Warn().Str("file", path).Err(err).Msg("Rejected unreadable row")
				continue
			}
			if err != nil {
				return err
			}
			sum.RowsRead++

			row, err := NormalizeRow(raw)
			if errors.Is(err, ErrMissingIdentity) {
				sum.RowsRejected++
				d.log.Warn().
					Str("file", path).
					Int("line", reader.Line()).
					Msg("Rejected row without transaction_id")
				continue
			}
			if err != nil {
				return err
			}

			categoryID, err := resolver.Category(ctx, row.Category)
			if err != nil {
				return err
			}
			productID, err := resolver.Product(ctx, row.Product, row.Price)
			if err != nil {
				return err
			}

			if err := upsertSale(ctx, tx, row, productID, categoryID); err != nil {
				return fmt.Errorf("upsert transaction %d: %w", row.TransactionID, err)
			}
			sum.RowsUpserted++
		}

		derived, err := finalize(ctx, tx)
		if err != nil {
			return fmt.Errorf("finalize total_sales: %w", err)
		}
		sum.RowsDerived = derived

		return db.RecordRun(ctx, tx, db.Run{
			File:         path,
			RowsRead:     sum.RowsRead,
			RowsRejected: sum.RowsRejected,
			RowsUpserted: sum.RowsUpserted,
			StartedAt:    started,
			FinishedAt:   time.Now().UTC(),
		})
	})
	if err != nil {
		return Summary{File: path}, fmt.Errorf("ingest %s: %w", path, err)
	}

	d.log.Info().
		Str("file", path).
		Int("rows_read", sum.RowsRead).
		Int("rows_rejected", sum.RowsRejected).
		Int("rows_upserted", sum.RowsUpserted).
		Int64("rows_derived", sum.RowsDerived).
		Dur("elapsed", time.Since(started)).
		Msg("Batch complete")

	return sum, nil
}

// IngestFiles ingests several files, at most workers at a time. Each file is
// its own batch with its own transaction; concurrent batches are safe because
// dimension resolution and fact upserts are conflict-tolerant at the SQL
// level. The first failing batch cancels the rest.
func (d *Driver) IngestFiles(ctx context.Context, paths []string, workers int) ([]Summary, error) {
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	summaries := make([]Summary, len(paths))
	for i, path := range paths {
		g.Go(func() error {
			sum, err := d.IngestFile(ctx, path)
			if err != nil {
				return err
			}
			summaries[i] = sum
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

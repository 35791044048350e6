//-------------------------------------------------------------------------
//
// salespipe - CSV sales ingestion for PostgreSQL
//
// Copyright (c) 2025 - 2026, the salespipe authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run is one ingestion batch summary persisted for auditing. The row is
// written on the batch transaction, so a rolled-back batch leaves no trace.
type Run struct {
	ID           int64
	File         string
	RowsRead     int
	RowsRejected int
	RowsUpserted int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// RecordRun inserts a batch summary on the given transaction.
func RecordRun(ctx context.Context, tx pgx.Tx, run Run) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO ingest_runs (file, rows_read, rows_rejected, rows_upserted, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, run.File, run.RowsRead, run.RowsRejected, run.RowsUpserted, run.StartedAt, run.FinishedAt)
	return err
}

// RecentRuns returns the most recent ingestion batches, newest first.
func RecentRuns(ctx context.Context, pool *pgxpool.Pool, limit int) ([]Run, error) {
	rows, err := pool.Query(ctx, `
        SELECT id, file, rows_read, rows_rejected, rows_upserted, started_at, finished_at
        FROM ingest_runs
        ORDER BY id DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.File, &r.RowsRead, &r.RowsRejected,
			&r.RowsUpserted, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

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
	"context"

	"github.com/jackc/pgx/v5"
)

const finalizeSQL = `
UPDATE sales
SET total_sales = COALESCE(price, 0) * COALESCE(quantity, 0)
WHERE total_sales IS NULL
`

// finalize computes total_sales for every fact row left unresolved by the
// batch's upserts. One set-based pass after all row mutations guarantees the
// measure reflects the latest price and quantity even when a row was touched
// several times within the batch.
func finalize(ctx context.Context, tx pgx.Tx) (int64, error) {
	tag, err := tx.Exec(ctx, finalizeSQL)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

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

// The update branch resets total_sales to NULL instead of recomputing it
// inline: the finalizer recomputes every unresolved measure in one pass, so
// the derived value can never drift from a stale quantity or price.
const upsertSaleSQL = `
INSERT INTO sales (transaction_id, date, product_id, category_id, quantity, price, total_sales)
VALUES ($1, $2, $3, $4, $5, $6, NULL)
ON CONFLICT (transaction_id) DO UPDATE SET
    date        = EXCLUDED.date,
    product_id  = EXCLUDED.product_id,
    category_id = EXCLUDED.category_id,
    quantity    = EXCLUDED.quantity,
    price       = EXCLUDED.price,
    total_sales = NULL
`

// upsertSale inserts or updates the fact row keyed by transaction_id.
// Re-running the same batch converges to the same final state instead of
// duplicating rows.
func upsertSale(ctx context.Context, tx pgx.Tx, row Row, productID, categoryID int64) error {
	_, err := tx.Exec(ctx, upsertSaleSQL,
		row.TransactionID, row.Date, productID, categoryID, row.Quantity, row.Price)
	return err
}

//-------------------------------------------------------------------------
//
// salespipe - CSV sales ingestion for PostgreSQL
//
// Copyright (c) 2025 - 2026, the salespipe authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package schema owns the star schema: the sales fact table, the product and
// category dimension tables, and the ingest run audit table.
package schema

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema SQL for the sales star schema. The fact table is keyed by the
// natural transaction identifier; dimensions carry generated surrogate keys
// with a uniqueness constraint on the name. quantity, price and total_sales
// are nullable: null means "absent or unparseable in the source", which is
// distinct from zero.
const createSchemaSQL = `
-- Category Dimension
CREATE TABLE IF NOT EXISTS categories (
    id   SERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);

-- Product Dimension
CREATE TABLE IF NOT EXISTS products (
    id    SERIAL PRIMARY KEY,
    name  TEXT NOT NULL UNIQUE,
    price DOUBLE PRECISION
);

-- Sales Fact
CREATE TABLE IF NOT EXISTS sales (
    transaction_id BIGINT PRIMARY KEY,
    date           DATE,
    product_id     INTEGER NOT NULL REFERENCES products(id),
    category_id    INTEGER NOT NULL REFERENCES categories(id),
    quantity       INTEGER,
    price          DOUBLE PRECISION,
    total_sales    DOUBLE PRECISION
);

-- Ingestion audit
CREATE TABLE IF NOT EXISTS ingest_runs (
    id            BIGSERIAL PRIMARY KEY,
    file          TEXT NOT NULL,
    rows_read     INTEGER NOT NULL,
    rows_rejected INTEGER NOT NULL,
    rows_upserted INTEGER NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ NOT NULL
);

-- Indexes for the reporting aggregations
CREATE INDEX IF NOT EXISTS idx_sales_date ON sales(date);
CREATE INDEX IF NOT EXISTS idx_sales_product ON sales(product_id);
CREATE INDEX IF NOT EXISTS idx_sales_category ON sales(category_id);
`

const dropSchemaSQL = `
DROP TABLE IF EXISTS ingest_runs CASCADE;
DROP TABLE IF EXISTS sales CASCADE;
DROP TABLE IF EXISTS products CASCADE;
DROP TABLE IF EXISTS categories CASCADE;
`

// Create creates the sales schema.
func Create(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, createSchemaSQL)
	return err
}

// Drop drops the sales schema.
func Drop(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, dropSchemaSQL)
	return err
}

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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Insert-or-fetch in a single statement. When the name already exists the
// insert branch returns nothing and the select branch supplies the key, so
// concurrent first-sightings of the same name never raise a uniqueness error.
const resolveCategorySQL = `
WITH ins AS (
    INSERT INTO categories (name)
    VALUES ($1)
    ON CONFLICT (name) DO NOTHING
    RETURNING id
)
SELECT id FROM ins
UNION ALL
SELECT id FROM categories WHERE name = $1
LIMIT 1
`

// Product price is captured at first sight only: DO NOTHING leaves the stored
// price untouched on every later encounter.
const resolveProductSQL = `
WITH ins AS (
    INSERT INTO products (name, price)
    VALUES ($1, $2)
    ON CONFLICT (name) DO NOTHING
    RETURNING id
)
SELECT id FROM ins
UNION ALL
SELECT id FROM products WHERE name = $1
LIMIT 1
`

// Resolver resolves category and product names to dimension surrogate keys,
// creating rows lazily on first encounter. Keys are cached per batch so each
// distinct name costs at most one round trip.
type Resolver struct {
	tx         pgx.Tx
	categories map[string]int64
	products   map[string]int64
}

// NewResolver creates a Resolver operating on the batch transaction.
func NewResolver(tx pgx.Tx) *Resolver {
	return &Resolver{
		tx:         tx,
		categories: make(map[string]int64),
		products:   make(map[string]int64),
	}
}

// Category returns the surrogate key for a category name, creating the row
// if needed.
func (r *Resolver) Category(ctx context.Context, name string) (int64, error) {
	if id, ok := r.categories[name]; ok {
		return id, nil
	}
	id, err := r.resolve(ctx, resolveCategorySQL, name)
	if err != nil {
		return 0, fmt.Errorf("resolve category %q: %w", name, err)
	}
	r.categories[name] = id
	return id, nil
}

// Product returns the surrogate key for a product name, creating the row with
// the given first-seen price if needed. The price is never updated afterwards.
func (r *Resolver) Product(ctx context.Context, name string, price *float64) (int64, error) {
	if id, ok := r.products[name]; ok {
		return id, nil
	}
	id, err := r.resolve(ctx, resolveProductSQL, name, price)
	if err != nil {
		return 0, fmt.Errorf("resolve product %q: %w", name, err)
	}
	r.products[name] = id
	return id, nil
}

// resolve runs the insert-or-fetch statement until it yields a key. A
// concurrent transaction can commit the name between this statement's
// snapshot and its conflict check, in which case neither branch returns a
// row; re-running with a fresh snapshot then finds the winner's row.
func (r *Resolver) resolve(ctx context.Context, sql string, args ...any) (int64, error) {
	for {
		var id int64
		err := r.tx.QueryRow(ctx, sql, args...).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
}

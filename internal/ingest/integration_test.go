//-------------------------------------------------------------------------
//
// salespipe - CSV sales ingestion for PostgreSQL
//
// Copyright (c) 2025 - 2026, the salespipe authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

//go:build integration
// +build integration

// Integration tests for the ingestion pipeline.
// Run with: go test -tags=integration ./internal/ingest/...
// Requires PostgreSQL to be available.
// Set SALESPIPE_TEST_CONN environment variable to override connection string.

package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salespipe/salespipe/internal/datagen"
	"github.com/salespipe/salespipe/internal/ingest"
	"github.com/salespipe/salespipe/internal/schema"
	"github.com/salespipe/salespipe/internal/testutil"
)

// setupTestDB creates a fresh test database with the sales schema.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	baseConnStr := testutil.SkipIfNoPostgres(t)
	testConnStr := testutil.CreateTestDB(t, baseConnStr, "ingest")
	dbName := testutil.GetDBNameFromConnStr(testConnStr)

	cleanup := testutil.NewTestCleanup(t, baseConnStr, dbName)
	t.Cleanup(cleanup.Cleanup)

	pool := testutil.ConnectTestDB(t, testConnStr)
	cleanup.SetPool(pool)

	if err := schema.Create(context.Background(), pool); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return pool
}

// writeCSV writes content to a temp file and returns its path.
func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write CSV: %v", err)
	}
	return path
}

const header = "transaction_id,date,category,product,quantity,price\n"

type saleRow struct {
	date       *string
	productID  int64
	categoryID int64
	quantity   *int64
	price      *float64
	totalSales *float64
}

func fetchSale(t *testing.T, pool *pgxpool.Pool, txID int64) saleRow {
	t.Helper()
	var s saleRow
	err := pool.QueryRow(context.Background(), `
        SELECT to_char(date, 'YYYY-MM-DD'), product_id, category_id, quantity, price, total_sales
        FROM sales WHERE transaction_id = $1
    `, txID).Scan(&s.date, &s.productID, &s.categoryID, &s.quantity, &s.price, &s.totalSales)
	if err != nil {
		t.Fatalf("Failed to fetch sale %d: %v", txID, err)
	}
	return s
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// TestIngestSingleRow verifies one clean row end to end: fact values,
// dimension resolution, and the derived total.
func TestIngestSingleRow(t *testing.T) {
	pool := setupTestDB(t)
	driver := ingest.NewDriver(pool)
	ctx := context.Background()

	path := writeCSV(t, header+"1,2024-01-05,Snacks,Chips,4,2.5\n")
	sum, err := driver.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if sum.RowsRead != 1 || sum.RowsRejected != 0 || sum.RowsUpserted != 1 {
		t.Errorf("Unexpected summary: %+v", sum)
	}

	s := fetchSale(t, pool, 1)
	if s.date == nil || *s.date != "2024-01-05" {
		t.Errorf("Expected date 2024-01-05, got %v", s.date)
	}
	if s.quantity == nil || *s.quantity != 4 {
		t.Errorf("Expected quantity 4, got %v", s.quantity)
	}
	if s.price == nil || *s.price != 2.5 {
		t.Errorf("Expected price 2.5, got %v", s.price)
	}
	if s.totalSales == nil || *s.totalSales != 10.0 {
		t.Errorf("Expected total_sales 10.0, got %v", s.totalSales)
	}

	var productName, categoryName string
	err = pool.QueryRow(ctx, `
        SELECT p.name, c.name FROM sales s
        JOIN products p ON s.product_id = p.id
        JOIN categories c ON s.category_id = c.id
        WHERE s.transaction_id = 1
    `).Scan(&productName, &categoryName)
	if err != nil {
		t.Fatalf("Failed to join dimensions: %v", err)
	}
	if productName != "Chips" || categoryName != "Snacks" {
		t.Errorf("Expected Chips/Snacks, got %s/%s", productName, categoryName)
	}
}

// TestIngestIdempotence verifies that re-ingesting the same file changes
// nothing: same row counts, same values.
func TestIngestIdempotence(t *testing.T) {
	pool := setupTestDB(t)
	driver := ingest.NewDriver(pool)
	ctx := context.Background()

	path := writeCSV(t, header+
		"1,2024-01-05,Snacks,Chips,4,2.5\n"+
		"2,2024-01-06,Snacks,Pretzels,2,3.0\n"+
		"3,2024-01-06,Dairy,Milk,1,1.19\n")

	first, err := driver.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}
	second, err := driver.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}

	if first.RowsUpserted != 3 || second.RowsUpserted != 3 {
		t.Errorf("Unexpected upsert counts: %d then %d", first.RowsUpserted, second.RowsUpserted)
	}
	if n := countRows(t, pool, "sales"); n != 3 {
		t.Errorf("Expected 3 sales rows after double ingest, got %d", n)
	}
	if n := countRows(t, pool, "products"); n != 3 {
		t.Errorf("Expected 3 products after double ingest, got %d", n)
	}
	if n := countRows(t, pool, "categories"); n != 2 {
		t.Errorf("Expected 2 categories after double ingest, got %d", n)
	}

	s := fetchSale(t, pool, 1)
	if s.totalSales == nil || *s.totalSales != 10.0 {
		t.Errorf("Expected total_sales 10.0 after re-ingest, got %v", s.totalSales)
	}
}

// TestIngestNullPolicy verifies that invalid numerics land as NULL, not zero,
// and the row is still ingested.
func TestIngestNullPolicy(t *testing.T) {
	pool := setupTestDB(t)
	driver := ingest.NewDriver(pool)
	ctx := context.Background()

	path := writeCSV(t, header+
		"10,2024-02-01,Snacks,Chips,4,abc\n"+
		"11,2024-02-01,Snacks,Chips,,2.5\n"+
		"12,not-a-date,Snacks,Chips,1,2.5\n")

	sum, err := driver.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if sum.RowsRejected != 0 {
		t.Errorf("Malformed fields must not reject rows, got %d rejections", sum.RowsRejected)
	}

	s10 := fetchSale(t, pool, 10)
	if s10.price != nil {
		t.Errorf("Expected NULL price for 'abc', got %v", *s10.price)
	}
	if s10.totalSales == nil || *s10.totalSales != 0 {
		t.Errorf("Expected total_sales 0 with NULL price, got %v", s10.totalSales)
	}

	s11 := fetchSale(t, pool, 11)
	if s11.quantity != nil {
		t.Errorf("Expected NULL quantity for empty value, got %v", *s11.quantity)
	}
	if s11.totalSales == nil || *s11.totalSales != 0 {
		t.Errorf("Expected total_sales 0 with NULL quantity, got %v", s11.totalSales)
	}

	s12 := fetchSale(t, pool, 12)
	if s12.date != nil {
		t.Errorf("Expected NULL date for 'not-a-date', got %v", *s12.date)
	}
	if s12.totalSales == nil || *s12.totalSales != 2.5 {
		t.Errorf("Expected total_sales 2.5 for dateless row, got %v", s12.totalSales)
	}
}

// TestIngestMissingIdentity verifies rejection and counting of identity-less
// rows without losing the rest of the file.
func TestIngestMissingIdentity(t *testing.T) {
	pool := setupTestDB(t)
	driver := ingest.NewDriver(pool)
	ctx := context.Background()

	path := writeCSV(t, header+
		"20,2024-03-01,Snacks,Chips,1,2.5\n"+
		",2024-03-01,Snacks,Chips,1,2.5\n"+
		"bogus,2024-03-01,Snacks,Chips,1,2.5\n"+
		"21,2024-03-02,Dairy,Milk,2,1.19\n")

	sum, err := driver.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if sum.RowsRead != 4 {
		t.Errorf("Expected 4 rows read, got %d", sum.RowsRead)
	}
	if sum.RowsRejected != 2 {
		t.Errorf("Expected 2 rejected rows, got %d", sum.RowsRejected)
	}
	if sum.RowsUpserted != 2 {
		t.Errorf("Expected 2 upserted rows, got %d", sum.RowsUpserted)
	}
	if n := countRows(t, pool, "sales"); n != 2 {
		t.Errorf("Expected 2 sales rows, got %d", n)
	}

	// The batch summary is persisted for auditing.
	var read, rejected, upserted int
	err = pool.QueryRow(ctx, `
        SELECT rows_read, rows_rejected, rows_upserted FROM ingest_runs ORDER BY id DESC LIMIT 1
    `).Scan(&read, &rejected, &upserted)
	if err != nil {
		t.Fatalf("Failed to read ingest_runs: %v", err)
	}
	if read != 4 || rejected != 2 || upserted != 2 {
		t.Errorf("Audit row mismatch: read=%d rejected=%d upserted=%d", read, rejected, upserted)
	}
}

// TestIngestUpdateInPlace verifies that a corrected file updates the existing
// fact row and re-derives total_sales.
func TestIngestUpdateInPlace(t *testing.T) {
	pool := setupTestDB(t)
	driver := ingest.NewDriver(pool)
	ctx := context.Background()

	v1 := writeCSV(t, header+"5001,2024-04-01,Snacks,Chips,1,2.5\n")
	if _, err := driver.IngestFile(ctx, v1); err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}

	s := fetchSale(t, pool, 5001)
	if s.totalSales == nil || *s.totalSales != 2.5 {
		t.Fatalf("Expected total_sales 2.5, got %v", s.totalSales)
	}

	v2 := writeCSV(t, header+"5001,2024-04-01,Snacks,Chips,3,2.5\n")
	if _, err := driver.IngestFile(ctx, v2); err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}

	if n := countRows(t, pool, "sales"); n != 1 {
		t.Fatalf("Expected 1 sales row after update, got %d", n)
	}
	s = fetchSale(t, pool, 5001)
	if s.quantity == nil || *s.quantity != 3 {
		t.Errorf("Expected quantity 3 after update, got %v", s.quantity)
	}
	if s.totalSales == nil || *s.totalSales != 7.5 {
		t.Errorf("Expected total_sales 7.5 after update, got %v", s.totalSales)
	}
}

// TestIngestDimensionInvariants verifies one dimension row per distinct name
// and first-sight price capture.
func TestIngestDimensionInvariants(t *testing.T) {
	pool := setupTestDB(t)
	driver := ingest.NewDriver(pool)
	ctx := context.Background()

	path := writeCSV(t, header+
		"30,2024-05-01,Snacks,Chips,1,2.5\n"+
		"31,2024-05-01,Snacks,Chips,2,9.99\n"+ // price change must not touch the dimension
		"32,2024-05-02,Snacks,chips,1,2.5\n") // name match is case-sensitive

	for i := 0; i < 3; i++ {
		if _, err := driver.IngestFile(ctx, path); err != nil {
			t.Fatalf("Ingest %d failed: %v", i, err)
		}
	}

	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE name = 'Chips'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected exactly one 'Chips' row, got %d", n)
	}
	if n := countRows(t, pool, "products"); n != 2 {
		t.Errorf("Expected 2 products (Chips, chips), got %d", n)
	}
	if n := countRows(t, pool, "categories"); n != 1 {
		t.Errorf("Expected 1 category, got %d", n)
	}

	var price *float64
	if err := pool.QueryRow(ctx, `SELECT price FROM products WHERE name = 'Chips'`).Scan(&price); err != nil {
		t.Fatal(err)
	}
	if price == nil || *price != 2.5 {
		t.Errorf("Expected first-sight price 2.5 on dimension, got %v", price)
	}
}

// TestIngestSentinelDimension verifies that rows without product or category
// names resolve against the sentinel dimension instead of failing.
func TestIngestSentinelDimension(t *testing.T) {
	pool := setupTestDB(t)
	driver := ingest.NewDriver(pool)
	ctx := context.Background()

	path := writeCSV(t, header+
		"40,2024-06-01,,,2,5.0\n"+
		"41,2024-06-01,Snacks,,1,3.0\n")

	if _, err := driver.IngestFile(ctx, path); err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}

	var n int
	err := pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM sales s
        JOIN products p ON s.product_id = p.id
        WHERE p.name = $1
    `, ingest.SentinelName).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Expected 2 sales under sentinel product, got %d", n)
	}

	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM categories WHERE name = $1`,
		ingest.SentinelName).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected 1 sentinel category, got %d", n)
	}
}

// TestIngestDuplicateIDsWithinFile verifies last-row-wins for repeated
// transaction ids in one batch.
func TestIngestDuplicateIDsWithinFile(t *testing.T) {
	pool := setupTestDB(t)
	driver := ingest.NewDriver(pool)
	ctx := context.Background()

	path := writeCSV(t, header+
		"50,2024-07-01,Snacks,Chips,1,2.5\n"+
		"50,2024-07-02,Snacks,Chips,6,2.0\n")

	if _, err := driver.IngestFile(ctx, path); err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}

	if n := countRows(t, pool, "sales"); n != 1 {
		t.Fatalf("Expected 1 sales row, got %d", n)
	}
	s := fetchSale(t, pool, 50)
	if s.quantity == nil || *s.quantity != 6 {
		t.Errorf("Expected last quantity 6, got %v", s.quantity)
	}
	if s.totalSales == nil || *s.totalSales != 12.0 {
		t.Errorf("Expected total_sales 12.0, got %v", s.totalSales)
	}
}

// TestIngestBatchRollback verifies that a storage failure mid-batch leaves
// the store exactly as it was before the batch.
func TestIngestBatchRollback(t *testing.T) {
	pool := setupTestDB(t)
	driver := ingest.NewDriver(pool)
	ctx := context.Background()

	good := writeCSV(t, header+"60,2024-08-01,Snacks,Chips,1,2.5\n")
	if _, err := driver.IngestFile(ctx, good); err != nil {
		t.Fatalf("Baseline ingest failed: %v", err)
	}

	// The second row's quantity parses as int64 but overflows the INTEGER
	// column, forcing a storage error after the first row was upserted.
	bad := writeCSV(t, header+
		"61,2024-08-02,Dairy,Milk,1,1.19\n"+
		"62,2024-08-02,Dairy,Butter,99999999999,4.0\n")

	if _, err := driver.IngestFile(ctx, bad); err == nil {
		t.Fatal("Expected storage error for overflowing quantity")
	}

	if n := countRows(t, pool, "sales"); n != 1 {
		t.Errorf("Failed batch must leave no rows behind, have %d", n)
	}
	if n := countRows(t, pool, "ingest_runs"); n != 1 {
		t.Errorf("Failed batch must leave no audit row, have %d", n)
	}
	var name string
	err := pool.QueryRow(ctx, `SELECT name FROM categories ORDER BY name LIMIT 1`).Scan(&name)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Snacks" {
		t.Errorf("Dimension rows of the failed batch must be rolled back, found %q", name)
	}
}

// TestIngestConcurrentDimensionCreation verifies that two parallel batches
// introducing the same new product end with exactly one dimension row.
func TestIngestConcurrentDimensionCreation(t *testing.T) {
	pool := setupTestDB(t)
	driver := ingest.NewDriver(pool)
	ctx := context.Background()

	var files []string
	files = append(files, writeCSV(t, header+
		"70,2024-09-01,Gadgets,Widget,1,10.0\n"+
		"71,2024-09-01,Gadgets,Widget,2,10.0\n"))
	files = append(files, writeCSV(t, header+
		"72,2024-09-02,Gadgets,Widget,3,10.0\n"+
		"73,2024-09-02,Gadgets,Widget,4,10.0\n"))

	if _, err := driver.IngestFiles(ctx, files, 2); err != nil {
		t.Fatalf("Concurrent ingest failed: %v", err)
	}

	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE name = 'Widget'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Expected exactly one 'Widget' product, got %d", n)
	}

	var distinct int
	err := pool.QueryRow(ctx, `SELECT COUNT(DISTINCT product_id) FROM sales`).Scan(&distinct)
	if err != nil {
		t.Fatal(err)
	}
	if distinct != 1 {
		t.Errorf("All facts must reference the single product id, got %d distinct", distinct)
	}
	if n := countRows(t, pool, "sales"); n != 4 {
		t.Errorf("Expected 4 sales rows from both batches, got %d", n)
	}
}

// TestIngestSampleRoundTrip generates a synthetic file and ingests it.
func TestIngestSampleRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	driver := ingest.NewDriver(pool)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "sample.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := datagen.WriteSample(f, datagen.SampleConfig{
		Rows:          500,
		Seed:          11,
		MalformedRate: 0.1,
	})
	if cerr := f.Close(); cerr != nil {
		t.Fatal(cerr)
	}
	if err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}

	sum, err := driver.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if sum.RowsRead != rows {
		t.Errorf("Expected %d rows read, got %d", rows, sum.RowsRead)
	}
	if sum.RowsUpserted+sum.RowsRejected != sum.RowsRead {
		t.Errorf("Summary does not add up: %+v", sum)
	}

	// Every committed fact must satisfy the derived-measure identity.
	var violations int
	err = pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM sales
        WHERE total_sales IS DISTINCT FROM COALESCE(price, 0) * COALESCE(quantity, 0)
    `).Scan(&violations)
	if err != nil {
		t.Fatal(err)
	}
	if violations != 0 {
		t.Errorf("%d rows violate the total_sales identity", violations)
	}
}

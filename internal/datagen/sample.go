//-------------------------------------------------------------------------
//
// salespipe - CSV sales ingestion for PostgreSQL
//
// Copyright (c) 2025 - 2026, the salespipe authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package datagen generates synthetic sales CSV files for demos and tests.
package datagen

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Header is the column layout of generated files, matching the ingestion
// contract.
var Header = []string{"transaction_id", "date", "category", "product", "quantity", "price"}

// SampleConfig controls sample CSV generation.
type SampleConfig struct {
	// Rows is the number of data rows to write.
	Rows int

	// Seed makes output reproducible when non-zero.
	Seed uint64

	// MalformedRate is the fraction of rows (0..1) given a deliberately
	// unparseable field, to exercise the null-substitution policy.
	MalformedRate float64

	// FirstTransactionID is the transaction id of the first row; ids
	// increase by one per row. Defaults to 5001 when zero.
	FirstTransactionID int64
}

// product is a generated dimension entry with a stable price, so repeated
// sightings of a name carry consistent values.
type product struct {
	name     string
	category string
	price    float64
}

// WriteSample writes cfg.Rows sales rows as CSV to w, header included.
// It returns the number of data rows written.
func WriteSample(w io.Writer, cfg SampleConfig) (int, error) {
	if cfg.Rows < 1 {
		return 0, fmt.Errorf("rows must be at least 1")
	}

	faker := gofakeit.New(cfg.Seed)

	firstID := cfg.FirstTransactionID
	if firstID == 0 {
		firstID = 5001
	}

	// A small dimension universe so products and categories repeat across
	// fact rows, as they do in real sales exports.
	numProducts := min(20, cfg.Rows)
	products := make([]product, numProducts)
	for i := range products {
		products[i] = product{
			name:     fmt.Sprintf("%s %s", faker.AdjectiveDescriptive(), faker.ProductName()),
			category: faker.ProductCategory(),
			price:    faker.Price(0.5, 200),
		}
	}

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return 0, err
	}

	for i := 0; i < cfg.Rows; i++ {
		p := products[faker.Number(0, numProducts-1)]
		record := []string{
			strconv.FormatInt(firstID+int64(i), 10),
			faker.DateRange(start, end).Format("2006-01-02"),
			p.category,
			p.name,
			strconv.Itoa(faker.Number(1, 20)),
			strconv.FormatFloat(p.price, 'f', 2, 64),
		}

		if cfg.MalformedRate > 0 && faker.Float64Range(0, 1) < cfg.MalformedRate {
			corrupt(faker, record)
		}

		if err := cw.Write(record); err != nil {
			return 0, err
		}
	}

	cw.Flush()
	return cfg.Rows, cw.Error()
}

// corrupt damages one field of the record in place. The identity field is
// damaged too, but less often, since identity-less rows are rejected rather
// than null-substituted.
func corrupt(faker *gofakeit.Faker, record []string) {
	switch faker.Number(0, 9) {
	case 0:
		record[0] = "" // missing identity, row will be rejected
	case 1, 2:
		record[1] = "not-a-date"
	case 3:
		record[2] = ""
	case 4:
		record[3] = ""
	case 5, 6:
		record[4] = "many"
	default:
		record[5] = "n/a"
	}
}

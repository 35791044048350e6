//-------------------------------------------------------------------------
//
// salespipe - CSV sales ingestion for PostgreSQL
//
// Copyright (c) 2025 - 2026, the salespipe authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package ingest implements the CSV ingestion pipeline: rows are normalized,
// dimension names are resolved to surrogate keys, facts are upserted by
// transaction id, and the derived total_sales measure is finalized in one
// set-based pass per batch.
package ingest

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// SentinelName replaces absent or unreadable product and category names so
// dimension foreign keys are never null. Only fact measures may be null.
const SentinelName = "MISSING"

// ErrMissingIdentity marks a row whose transaction_id is absent or not an
// integer. The transaction id is the identity of the fact, so such rows are
// rejected and counted; every other malformed field degrades to null instead.
var ErrMissingIdentity = errors.New("missing or invalid transaction_id")

// RawRow is one CSV data row as read from the file, all fields still text.
type RawRow struct {
	TransactionID string
	Date          string
	Category      string
	Product       string
	Quantity      string
	Price         string
}

// Row is a normalized, typed sales record. Nil pointer fields represent SQL
// NULL: the source value was absent or unparseable, which is deliberately
// distinct from zero.
type Row struct {
	TransactionID int64
	Date          *time.Time
	Category      string
	Product       string
	Quantity      *int64
	Price         *float64
}

// dateLayouts are tried in order. ISO dates come first since that is the
// documented source format; the rest cover common variants seen in exports.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02 Jan 2006",
}

// NormalizeRow validates and types one raw CSV row. It is a pure function:
// no side effects, deterministic output. Unparseable numeric and date fields
// become nil, empty dimension names become the sentinel label, and only a
// missing identity rejects the row.
func NormalizeRow(raw RawRow) (Row, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw.TransactionID), 10, 64)
	if err != nil {
		return Row{}, ErrMissingIdentity
	}

	return Row{
		TransactionID: id,
		Date:          parseDate(raw.Date),
		Category:      normalizeName(raw.Category),
		Product:       normalizeName(raw.Product),
		Quantity:      parseInt(raw.Quantity),
		Price:         parseFloat(raw.Price),
	}, nil
}

func normalizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return SentinelName
	}
	return s
}

func parseInt(s string) *int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

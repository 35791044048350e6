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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Required header names. Column order in the file is immaterial; the reader
// builds a header-index map.
var requiredColumns = []string{
	"transaction_id", "date", "category", "product", "quantity", "price",
}

// ErrBadRow marks a data row that cannot be read as a record (wrong field
// count or a CSV quoting problem). Such rows are rejected individually; they
// never fail the batch.
var ErrBadRow = errors.New("unreadable csv row")

const utf8BOM = "\uFEFF"

// Reader streams RawRows from a CSV source. The first row must be a header
// containing all required columns. The underlying csv.Reader runs in lenient
// mode (lazy quotes, variable field count) and the Reader enforces the header
// width itself, so one bad row costs one rejection rather than the file.
type Reader struct {
	cr    *csv.Reader
	idx   map[string]int
	width int
	line  int
}

// NewReader reads the header row and validates that every required column is
// present.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, utf8BOM))
		idx[strings.ToLower(name)] = i
	}

	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q in header", col)
		}
	}

	return &Reader{cr: cr, idx: idx, width: len(header), line: 1}, nil
}

// Line returns the 1-based line number of the most recently read row.
func (r *Reader) Line() int {
	return r.line
}

// Next returns the next data row. It returns io.EOF at end of input and an
// error wrapping ErrBadRow for rows that cannot be read as records.
func (r *Reader) Next() (RawRow, error) {
	rec, err := r.cr.Read()
	r.line++
	if err == io.EOF {
		return RawRow{}, io.EOF
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return RawRow{}, fmt.Errorf("line %d: %w: %v", r.line, ErrBadRow, err)
		}
		return RawRow{}, fmt.Errorf("read row: %w", err)
	}
	if len(rec) != r.width {
		return RawRow{}, fmt.Errorf("line %d: %w: got %d fields, header has %d",
			r.line, ErrBadRow, len(rec), r.width)
	}

	return RawRow{
		TransactionID: rec[r.idx["transaction_id"]],
		Date:          rec[r.idx["date"]],
		Category:      rec[r.idx["category"]],
		Product:       rec[r.idx["product"]],
		Quantity:      rec[r.idx["quantity"]],
		Price:         rec[r.idx["price"]],
	}, nil
}

package report

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the aggregate
// queries run against the pool in the server and against a transaction in
// tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProductSales is one product+category aggregate line. Quantity is a pointer
// because SUM over all-null quantities is itself null.
type ProductSales struct {
	Product    string  `json:"product"`
	Category   string  `json:"category"`
	Quantity   *int64  `json:"quantity"`
	TotalSales float64 `json:"total_sales"`
}

// ProductTotal is the total sales for one product across all categories.
type ProductTotal struct {
	Product    string  `json:"product"`
	TotalSales float64 `json:"total_sales"`
}

// DaySales is the total sales for one calendar date.
type DaySales struct {
	Date       string  `json:"date"`
	TotalSales float64 `json:"total_sales"`
}

// DayFilter restricts the per-day aggregation. Filter precedence mirrors the
// reporting client contract: exact date wins, then a closed range, then the
// open-ended bounds.
type DayFilter struct {
	Date      *time.Time
	StartDate *time.Time
	EndDate   *time.Time
}

// ProductCategorySales returns total sales per product+category pair, ordered
// by total descending. A non-empty product narrows the result to that product.
func ProductCategorySales(ctx context.Context, q Querier, product string) ([]ProductSales, error) {
	sql := `
        SELECT p.name, c.name, SUM(s.quantity), COALESCE(SUM(s.total_sales), 0)
        FROM sales s
        JOIN products p ON s.product_id = p.id
        JOIN categories c ON s.category_id = c.id
    `
	var args []any
	if product != "" {
		sql += ` WHERE p.name = $1`
		args = append(args, product)
	}
	sql += `
        GROUP BY p.name, c.name
        ORDER BY COALESCE(SUM(s.total_sales), 0) DESC
    `

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []ProductSales{}
	for rows.Next() {
		var ps ProductSales
		if err := rows.Scan(&ps.Product, &ps.Category, &ps.Quantity, &ps.TotalSales); err != nil {
			return nil, err
		}
		results = append(results, ps)
	}
	return results, rows.Err()
}

// ProductTotals returns total sales per product, ordered by total descending.
func ProductTotals(ctx context.Context, q Querier) ([]ProductTotal, error) {
	rows, err := q.Query(ctx, `
        SELECT p.name, COALESCE(SUM(s.total_sales), 0)
        FROM sales s
        JOIN products p ON s.product_id = p.id
        GROUP BY p.name
        ORDER BY COALESCE(SUM(s.total_sales), 0) DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []ProductTotal{}
	for rows.Next() {
		var pt ProductTotal
		if err := rows.Scan(&pt.Product, &pt.TotalSales); err != nil {
			return nil, err
		}
		results = append(results, pt)
	}
	return results, rows.Err()
}

// SalesByDay returns total sales grouped by date in ascending date order.
// Rows whose date is null (unparseable in the source) are excluded; they
// have no calendar day to report under.
func SalesByDay(ctx context.Context, q Querier, filter DayFilter) ([]DaySales, error) {
	sql := `
        SELECT s.date, COALESCE(SUM(s.total_sales), 0)
        FROM sales s
        WHERE s.date IS NOT NULL
    `
	var args []any
	switch {
	case filter.Date != nil:
		sql += ` AND s.date = $1`
		args = append(args, *filter.Date)
	case filter.StartDate != nil && filter.EndDate != nil:
		sql += ` AND s.date BETWEEN $1 AND $2`
		args = append(args, *filter.StartDate, *filter.EndDate)
	case filter.StartDate != nil:
		sql += ` AND s.date >= $1`
		args = append(args, *filter.StartDate)
	case filter.EndDate != nil:
		sql += ` AND s.date <= $1`
		args = append(args, *filter.EndDate)
	}
	sql += `
        GROUP BY s.date
        ORDER BY s.date
    `

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []DaySales{}
	for rows.Next() {
		var date time.Time
		var total float64
		if err := rows.Scan(&date, &total); err != nil {
			return nil, err
		}
		results = append(results, DaySales{
			Date:       date.Format("2006-01-02"),
			TotalSales: total,
		})
	}
	return results, rows.Err()
}

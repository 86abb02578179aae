package reports

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLRepository is the Postgres implementation of Repository.
type SQLRepository struct {
	db *pgxpool.Pool
}

func NewSQLRepository(db *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) StockValuation(ctx context.Context) ([]ValuationLine, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, code, name, COALESCE(stock_qty, 0), COALESCE(avg_cost, 0),
			COALESCE(stock_qty, 0) * COALESCE(avg_cost, 0) AS value
		 FROM products
		 WHERE is_active AND COALESCE(stock_qty, 0) <> 0
		 ORDER BY value DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("stock valuation: %w", err)
	}
	defer rows.Close()

	var out []ValuationLine
	for rows.Next() {
		var line ValuationLine
		if err := rows.Scan(&line.ProductID, &line.Code, &line.Name,
			&line.Qty, &line.AvgCost, &line.Value); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// MonthlyCMV sums sale outflows net of voided sales.
func (r *SQLRepository) MonthlyCMV(ctx context.Context, months int) ([]MonthlyCMV, error) {
	rows, err := r.db.Query(ctx,
		`SELECT EXTRACT(YEAR FROM created_at)::int AS year,
			EXTRACT(MONTH FROM created_at)::int AS month,
			COALESCE(SUM(total_cost) FILTER (WHERE kind = 'OUT' AND reason = 'sale'), 0)
			- COALESCE(SUM(total_cost) FILTER (WHERE kind = 'IN' AND reason = 'sale_revert'), 0) AS cmv
		 FROM stock_movements
		 WHERE reason IN ('sale', 'sale_revert')
		   AND created_at >= date_trunc('month', CURRENT_DATE) - make_interval(months => $1 - 1)
		 GROUP BY 1, 2
		 ORDER BY 1 DESC, 2 DESC`, months)
	if err != nil {
		return nil, fmt.Errorf("monthly cmv: %w", err)
	}
	defer rows.Close()

	var out []MonthlyCMV
	for rows.Next() {
		var row MonthlyCMV
		if err := rows.Scan(&row.Year, &row.Month, &row.CMV); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

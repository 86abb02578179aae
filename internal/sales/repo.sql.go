package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLRepository persists sales in PostgreSQL.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs SQLRepository.
func NewRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

func (r *SQLRepository) Create(ctx context.Context, sale Sale) (Sale, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Sale{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO sales (sale_number, sale_date, total, status, created_at)
VALUES ($1,$2,$3,$4,NOW()) RETURNING id, created_at`,
		sale.SaleNumber, sale.SaleDate, sale.Total, string(sale.Status)).
		Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return Sale{}, err
	}
	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		err = tx.QueryRow(ctx, `INSERT INTO sale_items (sale_id, product_id, qty, unit_price, total)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			item.SaleID, item.ProductID, item.Qty, item.UnitPrice, item.Total).
			Scan(&item.ID)
		if err != nil {
			return Sale{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sales WHERE id=$1`, id)
	return err
}

func (r *SQLRepository) GetByID(ctx context.Context, id int64) (Sale, error) {
	var sale Sale
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, sale_number, sale_date, total, status, created_at
FROM sales WHERE id=$1`, id).
		Scan(&sale.ID, &sale.SaleNumber, &sale.SaleDate, &sale.Total, &status, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrSaleNotFound
		}
		return Sale{}, err
	}
	sale.Status = Status(status)

	rows, err := r.pool.Query(ctx, `SELECT si.id, si.sale_id, si.product_id, p.name, si.qty, si.unit_price, si.total
FROM sale_items si
JOIN products p ON p.id = si.product_id
WHERE si.sale_id=$1
ORDER BY si.id ASC`, id)
	if err != nil {
		return Sale{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName,
			&item.Qty, &item.UnitPrice, &item.Total); err != nil {
			return Sale{}, err
		}
		sale.Items = append(sale.Items, item)
	}
	return sale, rows.Err()
}

func (r *SQLRepository) List(ctx context.Context, status Status, limit int) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_number, sale_date, total, status, created_at
FROM sales
WHERE ($1 = '' OR status = $1)
ORDER BY id DESC
LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sales := []Sale{}
	for rows.Next() {
		var sale Sale
		var st string
		if err := rows.Scan(&sale.ID, &sale.SaleNumber, &sale.SaleDate, &sale.Total, &st, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.Status = Status(st)
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

// SetStatus flips the sale status only when the current status still
// matches.
func (r *SQLRepository) SetStatus(ctx context.Context, id int64, from, to Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sales SET status=$3 WHERE id=$1 AND status=$2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// MonthlyRevenue sums closed sales per calendar month, newest first.
func (r *SQLRepository) MonthlyRevenue(ctx context.Context, months int) ([]MonthlyRevenue, error) {
	rows, err := r.pool.Query(ctx, `SELECT EXTRACT(YEAR FROM sale_date)::int, EXTRACT(MONTH FROM sale_date)::int, COALESCE(SUM(total),0)
FROM sales
WHERE status = 'CLOSED'
  AND sale_date >= date_trunc('month', CURRENT_DATE) - make_interval(months => $1 - 1)
GROUP BY 1, 2
ORDER BY 1 DESC, 2 DESC`, months)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []MonthlyRevenue{}
	for rows.Next() {
		var rev MonthlyRevenue
		if err := rows.Scan(&rev.Year, &rev.Month, &rev.Revenue); err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

package cashbook

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLRepository is the Postgres implementation of Repository.
type SQLRepository struct {
	db *pgxpool.Pool
}

func NewSQLRepository(db *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) CreateCategory(ctx context.Context, category *CashCategory) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO cash_categories (name, kind) VALUES ($1, $2) RETURNING id, created_at`,
		category.Name, category.Kind,
	).Scan(&category.ID, &category.CreatedAt)
}

func (r *SQLRepository) ListCategories(ctx context.Context) ([]CashCategory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, kind, created_at FROM cash_categories ORDER BY kind, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CashCategory
	for rows.Next() {
		var c CashCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLRepository) GetCategory(ctx context.Context, id int64) (*CashCategory, error) {
	var c CashCategory
	err := r.db.QueryRow(ctx,
		`SELECT id, name, kind, created_at FROM cash_categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Kind, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *SQLRepository) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cash_categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *SQLRepository) CreateEntry(ctx context.Context, entry *CashEntry) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO cash_entries (entry_date, kind, category_id, description, amount, method)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		entry.EntryDate, entry.Kind, entry.CategoryID, entry.Description, entry.Amount, entry.Method,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *SQLRepository) ListEntries(ctx context.Context, from, to time.Time, kind Kind) ([]CashEntry, error) {
	query := `SELECT e.id, e.entry_date, e.kind, e.category_id, c.name, e.description,
		e.amount, COALESCE(e.method, ''), e.created_at
		FROM cash_entries e
		JOIN cash_categories c ON c.id = e.category_id
		WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if !from.IsZero() {
		argCount++
		query += ` AND e.entry_date >= $` + strconv.Itoa(argCount)
		args = append(args, from)
	}
	if !to.IsZero() {
		argCount++
		query += ` AND e.entry_date <= $` + strconv.Itoa(argCount)
		args = append(args, to)
	}
	if kind != "" {
		argCount++
		query += ` AND e.kind = $` + strconv.Itoa(argCount)
		args = append(args, kind)
	}
	query += ` ORDER BY e.entry_date DESC, e.id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cash entries: %w", err)
	}
	defer rows.Close()

	var out []CashEntry
	for rows.Next() {
		var e CashEntry
		if err := rows.Scan(&e.ID, &e.EntryDate, &e.Kind, &e.CategoryID, &e.CategoryName,
			&e.Description, &e.Amount, &e.Method, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLRepository) GetEntry(ctx context.Context, id int64) (*CashEntry, error) {
	var e CashEntry
	err := r.db.QueryRow(ctx,
		`SELECT e.id, e.entry_date, e.kind, e.category_id, c.name, e.description,
			e.amount, COALESCE(e.method, ''), e.created_at
		 FROM cash_entries e
		 JOIN cash_categories c ON c.id = e.category_id
		 WHERE e.id = $1`, id,
	).Scan(&e.ID, &e.EntryDate, &e.Kind, &e.CategoryID, &e.CategoryName,
		&e.Description, &e.Amount, &e.Method, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *SQLRepository) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cash_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *SQLRepository) MonthlyTotals(ctx context.Context, months int) ([]MonthlyTotal, error) {
	rows, err := r.db.Query(ctx,
		`SELECT EXTRACT(YEAR FROM entry_date)::int AS year,
			EXTRACT(MONTH FROM entry_date)::int AS month,
			COALESCE(SUM(amount) FILTER (WHERE kind = 'IN'), 0) AS income,
			COALESCE(SUM(amount) FILTER (WHERE kind = 'OUT'), 0) AS expense
		 FROM cash_entries
		 WHERE entry_date >= date_trunc('month', CURRENT_DATE) - make_interval(months => $1 - 1)
		 GROUP BY 1, 2
		 ORDER BY 1 DESC, 2 DESC`, months)
	if err != nil {
		return nil, fmt.Errorf("monthly cash totals: %w", err)
	}
	defer rows.Close()

	var out []MonthlyTotal
	for rows.Next() {
		var t MonthlyTotal
		if err := rows.Scan(&t.Year, &t.Month, &t.Income, &t.Expense); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

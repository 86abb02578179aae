package suppliers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resto-erp/resto-erp/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Supplier, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, id int64, supplier Supplier) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, error) {
	query := `SELECT id, name, COALESCE(tax_number,''), COALESCE(phone,''), COALESCE(email,''), is_active, created_at, updated_at
FROM suppliers WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		query += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var suppliers []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.TaxNumber, &s.Phone, &s.Email,
			&s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.db.QueryRow(ctx, `SELECT id, name, COALESCE(tax_number,''), COALESCE(phone,''), COALESCE(email,''), is_active, created_at, updated_at
FROM suppliers WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.TaxNumber, &s.Phone, &s.Email, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, shared.ErrNotFound
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO suppliers (name, tax_number, phone, email, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`,
		supplier.Name, supplier.TaxNumber, supplier.Phone, supplier.Email, supplier.IsActive, now).
		Scan(&supplier.ID)
	if err != nil {
		return Supplier{}, err
	}
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	return supplier, nil
}

func (r *repository) Update(ctx context.Context, id int64, supplier Supplier) error {
	tag, err := r.db.Exec(ctx, `UPDATE suppliers SET name = $1, tax_number = $2, phone = $3, email = $4, is_active = $5, updated_at = $6
WHERE id = $7`,
		supplier.Name, supplier.TaxNumber, supplier.Phone, supplier.Email, supplier.IsActive, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

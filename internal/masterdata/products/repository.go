package products

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
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Deactivate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	HasMovements(ctx context.Context, id int64) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, code, name, category_id, unit_id, sale_price, default_markup,
is_ingredient, is_sale_item, COALESCE(stock_qty,0), COALESCE(avg_cost,0), COALESCE(last_cost,0),
is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.CategoryID != nil {
		argCount++
		where += ` AND category_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.CategoryID)
	}
	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}
	if filters.IsIngredient != nil {
		argCount++
		where += ` AND is_ingredient = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsIngredient)
	}
	if filters.IsSaleItem != nil {
		argCount++
		where += ` AND is_sale_item = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsSaleItem)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO products
(code, name, category_id, unit_id, sale_price, default_markup, is_ingredient, is_sale_item, stock_qty, avg_cost, last_cost, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, 0, $9, $10, $10) RETURNING id`,
		product.Code, product.Name, product.CategoryID, product.UnitID, product.SalePrice,
		product.DefaultMarkup, product.IsIngredient, product.IsSaleItem, product.IsActive, now).
		Scan(&product.ID)
	if err != nil {
		return Product{}, err
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET code = $1, name = $2, category_id = $3, unit_id = $4,
sale_price = $5, default_markup = $6, is_ingredient = $7, is_sale_item = $8, is_active = $9, updated_at = $10
WHERE id = $11`,
		product.Code, product.Name, product.CategoryID, product.UnitID, product.SalePrice,
		product.DefaultMarkup, product.IsIngredient, product.IsSaleItem, product.IsActive, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) HasMovements(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_movements WHERE product_id = $1)`, id).Scan(&exists)
	return exists, err
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.CategoryID, &p.UnitID, &p.SalePrice,
		&p.DefaultMarkup, &p.IsIngredient, &p.IsSaleItem, &p.StockQty, &p.AvgCost,
		&p.LastCost, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "name":
		return "name " + dir
	case "stock_qty":
		return "stock_qty " + dir
	case "avg_cost":
		return "avg_cost " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}

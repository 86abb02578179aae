package purchasing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLRepository persists purchases in PostgreSQL. Purchase item ids are
// drawn from the shared lot sequence so every lot id is unique across
// purchase lines and production runs.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs SQLRepository.
func NewRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

func (r *SQLRepository) Create(ctx context.Context, purchase Purchase) (Purchase, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Purchase{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO purchases (supplier_id, doc_number, doc_date, freight, other_costs, total, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		purchase.SupplierID, purchase.DocNumber, purchase.DocDate, purchase.Freight,
		purchase.OtherCosts, purchase.Total, string(purchase.Status)).
		Scan(&purchase.ID, &purchase.CreatedAt, &purchase.UpdatedAt)
	if err != nil {
		return Purchase{}, err
	}
	for i := range purchase.Items {
		item := &purchase.Items[i]
		item.PurchaseID = purchase.ID
		err = tx.QueryRow(ctx, `INSERT INTO purchase_items (id, purchase_id, product_id, qty, unit_price, discount, total, lot_number, expiry_date)
VALUES (nextval('lot_id_seq'),$1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
			item.PurchaseID, item.ProductID, item.Qty, item.UnitPrice, item.Discount,
			item.Total, item.LotNumber, item.ExpiryDate).
			Scan(&item.ID)
		if err != nil {
			return Purchase{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Purchase{}, err
	}
	return purchase, nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id int64) (Purchase, error) {
	var purchase Purchase
	var status string
	err := r.pool.QueryRow(ctx, `SELECT p.id, p.supplier_id, COALESCE(s.name,''), p.doc_number, p.doc_date,
p.freight, p.other_costs, p.total, p.status, p.created_at, p.updated_at
FROM purchases p
LEFT JOIN suppliers s ON s.id = p.supplier_id
WHERE p.id=$1`, id).
		Scan(&purchase.ID, &purchase.SupplierID, &purchase.SupplierName, &purchase.DocNumber,
			&purchase.DocDate, &purchase.Freight, &purchase.OtherCosts, &purchase.Total,
			&status, &purchase.CreatedAt, &purchase.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, ErrPurchaseNotFound
		}
		return Purchase{}, err
	}
	purchase.Status = Status(status)

	rows, err := r.pool.Query(ctx, `SELECT pi.id, pi.purchase_id, pi.product_id, pr.name, pi.qty, pi.unit_price,
pi.discount, pi.total, COALESCE(pi.lot_number,''), pi.expiry_date
FROM purchase_items pi
JOIN products pr ON pr.id = pi.product_id
WHERE pi.purchase_id=$1
ORDER BY pi.id ASC`, id)
	if err != nil {
		return Purchase{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item PurchaseItem
		if err := rows.Scan(&item.ID, &item.PurchaseID, &item.ProductID, &item.ProductName,
			&item.Qty, &item.UnitPrice, &item.Discount, &item.Total,
			&item.LotNumber, &item.ExpiryDate); err != nil {
			return Purchase{}, err
		}
		purchase.Items = append(purchase.Items, item)
	}
	return purchase, rows.Err()
}

func (r *SQLRepository) List(ctx context.Context, status Status, limit int) ([]Purchase, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.supplier_id, COALESCE(s.name,''), p.doc_number, p.doc_date,
p.freight, p.other_costs, p.total, p.status, p.created_at, p.updated_at
FROM purchases p
LEFT JOIN suppliers s ON s.id = p.supplier_id
WHERE ($1 = '' OR p.status = $1)
ORDER BY p.id DESC
LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	purchases := []Purchase{}
	for rows.Next() {
		var purchase Purchase
		var st string
		if err := rows.Scan(&purchase.ID, &purchase.SupplierID, &purchase.SupplierName,
			&purchase.DocNumber, &purchase.DocDate, &purchase.Freight, &purchase.OtherCosts,
			&purchase.Total, &st, &purchase.CreatedAt, &purchase.UpdatedAt); err != nil {
			return nil, err
		}
		purchase.Status = Status(st)
		purchases = append(purchases, purchase)
	}
	return purchases, rows.Err()
}

// SetStatus flips the purchase status only when the current status
// still matches, making concurrent post/reverse attempts lose cleanly.
func (r *SQLRepository) SetStatus(ctx context.Context, id int64, from, to Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE purchases SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

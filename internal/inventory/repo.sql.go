package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resto-erp/resto-erp/internal/platform/db"
)

// Repository persists the movement ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	GetBalanceForUpdate(ctx context.Context, productID int64) (ProductBalance, error)
	UpdateBalance(ctx context.Context, balance ProductBalance) error
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, productID int64) (ProductBalance, error) {
	var bal ProductBalance
	err := r.tx.QueryRow(ctx, `SELECT id, COALESCE(stock_qty,0), COALESCE(avg_cost,0), COALESCE(last_cost,0), updated_at
FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&bal.ProductID, &bal.StockQty, &bal.AvgCost, &bal.LastCost, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductBalance{}, ErrProductNotFound
		}
		return ProductBalance{}, err
	}
	return bal, nil
}

func (r *txRepository) UpdateBalance(ctx context.Context, balance ProductBalance) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET stock_qty=$2, avg_cost=$3, last_cost=$4, updated_at=NOW() WHERE id=$1`,
		balance.ProductID, balance.StockQty, balance.AvgCost, balance.LastCost)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (moved_at, kind, product_id, qty, unit_cost, total_cost, reason, reference_id, note)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		m.MovedAt, string(m.Kind), m.ProductID, m.Qty, m.UnitCost, m.TotalCost, m.Reason, nullInt(m.ReferenceID), m.Note).
		Scan(&id)
	return id, err
}

// GetBalance reads the cached ledger row without locking.
func (r *Repository) GetBalance(ctx context.Context, productID int64) (ProductBalance, error) {
	var bal ProductBalance
	err := r.pool.QueryRow(ctx, `SELECT id, COALESCE(stock_qty,0), COALESCE(avg_cost,0), COALESCE(last_cost,0), updated_at
FROM products WHERE id=$1`, productID).
		Scan(&bal.ProductID, &bal.StockQty, &bal.AvgCost, &bal.LastCost, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductBalance{}, ErrProductNotFound
		}
		return ProductBalance{}, err
	}
	return bal, nil
}

// ListMovements lists ledger rows, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, moved_at, kind, product_id, qty, unit_cost, total_cost, reason, COALESCE(reference_id,0), COALESCE(note,'')
FROM stock_movements
WHERE ($1 = 0 OR product_id = $1)
  AND ($2 = '' OR kind = $2)
  AND ($3 = '' OR reason = $3)
ORDER BY id DESC
LIMIT $4`, filter.ProductID, string(filter.Kind), filter.Reason, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

// ListByReference lists movements for one reason and reference id,
// oldest first.
func (r *Repository) ListByReference(ctx context.Context, reason string, referenceID int64) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, moved_at, kind, product_id, qty, unit_cost, total_cost, reason, COALESCE(reference_id,0), COALESCE(note,'')
FROM stock_movements
WHERE reason=$1 AND reference_id=$2
ORDER BY id ASC`, reason, referenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

// ListLedger returns the full movement history of a product, oldest first.
func (r *Repository) ListLedger(ctx context.Context, productID int64) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, moved_at, kind, product_id, qty, unit_cost, total_cost, reason, COALESCE(reference_id,0), COALESCE(note,'')
FROM stock_movements
WHERE product_id=$1
ORDER BY id ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

// lotOriginsQuery lists the inbound lots of a product: purchase line
// items plus finished-goods production runs. Purchase lots are priced
// at the line's landed cost so allocation charges the same unit cost
// the ledger valued the stock at. Consumption is derived in Go, see
// ApplyLotConsumption.
const lotOriginsQuery = `
SELECT pi.id AS lot_id, 'purchase' AS source, pi.product_id,
       COALESCE(pi.lot_number,'') AS lot_number, pi.expiry_date,
       pi.qty AS original_qty,
       CASE WHEN pi.qty > 0 THEN pi.total / pi.qty ELSE 0 END AS unit_cost
  FROM purchase_items pi
  JOIN purchases p ON p.id = pi.purchase_id
 WHERE pi.product_id = $1 AND p.status <> 'DRAFT'
UNION ALL
SELECT pr.id, 'production', pr.product_id,
       COALESCE(pr.lot_number,''), pr.expiry_date,
       pr.qty, pr.unit_cost
  FROM production_runs pr
 WHERE pr.product_id = $1 AND pr.status <> 'DRAFT'`

// LotOrigins loads the lot rows of a product without balances.
func (r *Repository) LotOrigins(ctx context.Context, productID int64) ([]LotBalance, error) {
	rows, err := r.pool.Query(ctx, lotOriginsQuery, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lots := []LotBalance{}
	for rows.Next() {
		var lot LotBalance
		var source string
		if err := rows.Scan(&lot.LotID, &source, &lot.ProductID, &lot.LotNumber, &lot.ExpiryDate,
			&lot.OriginalQty, &lot.UnitCost); err != nil {
			return nil, err
		}
		lot.Source = LotSource(source)
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// ExpiringLots lists lots with balance left expiring within the window.
// The consumed CTE mirrors ApplyLotConsumption: OUTs consume, reverting
// INs restore, and the IN that created a production lot (reason
// 'production', reference = run id) is the lot's origin, not consumption.
func (r *Repository) ExpiringLots(ctx context.Context, withinDays int) ([]ExpiringLot, error) {
	rows, err := r.pool.Query(ctx, `
WITH consumed AS (
    SELECT reference_id AS lot_id,
           COALESCE(SUM(CASE WHEN kind='OUT' THEN qty ELSE -qty END), 0) AS qty_used
      FROM stock_movements
     WHERE reference_id IS NOT NULL
       AND reason IN ('production', 'purchase_revert', 'production_revert')
       AND NOT (kind = 'IN' AND reason = 'production')
     GROUP BY reference_id
), lots AS (
    SELECT pi.id AS lot_id, pi.product_id, COALESCE(pi.lot_number,'') AS lot_number,
           pi.expiry_date, pi.qty AS original_qty
      FROM purchase_items pi
      JOIN purchases p ON p.id = pi.purchase_id
     WHERE p.status <> 'DRAFT'
    UNION ALL
    SELECT pr.id, pr.product_id, COALESCE(pr.lot_number,''), pr.expiry_date, pr.qty
      FROM production_runs pr
     WHERE pr.status <> 'DRAFT'
)
SELECT l.lot_id, l.product_id, pr.name, l.lot_number, l.expiry_date,
       GREATEST(l.original_qty - COALESCE(c.qty_used, 0), 0) AS remaining,
       (l.expiry_date - CURRENT_DATE) AS days_left
  FROM lots l
  JOIN products pr ON pr.id = l.product_id
  LEFT JOIN consumed c ON c.lot_id = l.lot_id
 WHERE l.expiry_date IS NOT NULL
   AND (l.expiry_date - CURRENT_DATE) <= $1
   AND GREATEST(l.original_qty - COALESCE(c.qty_used, 0), 0) > 0
 ORDER BY l.expiry_date ASC`, withinDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lots := []ExpiringLot{}
	for rows.Next() {
		var lot ExpiringLot
		if err := rows.Scan(&lot.LotID, &lot.ProductID, &lot.ProductName, &lot.LotNumber,
			&lot.ExpiryDate, &lot.Remaining, &lot.DaysLeft); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// ListProductIDs returns every product id, used by the ledger verify job.
func (r *Repository) ListProductIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM products ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanMovements(rows pgx.Rows) ([]Movement, error) {
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.MovedAt, &kind, &m.ProductID, &m.Qty, &m.UnitCost,
			&m.TotalCost, &m.Reason, &m.ReferenceID, &m.Note); err != nil {
			return nil, err
		}
		m.Kind = MovementKind(kind)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

package production

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLRepository persists production runs in PostgreSQL. Run ids come
// from the shared lot sequence so the finished-good lot id never
// collides with a purchase item id.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs SQLRepository.
func NewRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

func (r *SQLRepository) Create(ctx context.Context, run ProductionRun) (ProductionRun, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ProductionRun{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO production_runs (id, product_id, qty, unit_cost, total_cost, lot_number, expiry_date, run_date, status, created_at)
VALUES (nextval('lot_id_seq'),$1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id, created_at`,
		run.ProductID, run.Qty, run.UnitCost, run.TotalCost, run.LotNumber,
		run.ExpiryDate, run.RunDate, string(run.Status)).
		Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return ProductionRun{}, err
	}
	for i := range run.Items {
		item := &run.Items[i]
		item.RunID = run.ID
		err = tx.QueryRow(ctx, `INSERT INTO production_items (run_id, ingredient_id, lot_id, qty, unit_cost, total_cost)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			item.RunID, item.IngredientID, item.LotID, item.Qty, item.UnitCost, item.TotalCost).
			Scan(&item.ID)
		if err != nil {
			return ProductionRun{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return ProductionRun{}, err
	}
	return run, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM production_runs WHERE id=$1`, id)
	return err
}

func (r *SQLRepository) GetByID(ctx context.Context, id int64) (ProductionRun, error) {
	var run ProductionRun
	var status string
	err := r.pool.QueryRow(ctx, `SELECT pr.id, pr.product_id, p.name, pr.qty, pr.unit_cost, pr.total_cost,
COALESCE(pr.lot_number,''), pr.expiry_date, pr.run_date, pr.status, pr.created_at
FROM production_runs pr
JOIN products p ON p.id = pr.product_id
WHERE pr.id=$1`, id).
		Scan(&run.ID, &run.ProductID, &run.ProductName, &run.Qty, &run.UnitCost, &run.TotalCost,
			&run.LotNumber, &run.ExpiryDate, &run.RunDate, &status, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductionRun{}, ErrRunNotFound
		}
		return ProductionRun{}, err
	}
	run.Status = Status(status)

	rows, err := r.pool.Query(ctx, `SELECT pi.id, pi.run_id, pi.ingredient_id, p.name, pi.lot_id, pi.qty, pi.unit_cost, pi.total_cost
FROM production_items pi
JOIN products p ON p.id = pi.ingredient_id
WHERE pi.run_id=$1
ORDER BY pi.id ASC`, id)
	if err != nil {
		return ProductionRun{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item ProductionItem
		if err := rows.Scan(&item.ID, &item.RunID, &item.IngredientID, &item.IngredientName,
			&item.LotID, &item.Qty, &item.UnitCost, &item.TotalCost); err != nil {
			return ProductionRun{}, err
		}
		run.Items = append(run.Items, item)
	}
	return run, rows.Err()
}

func (r *SQLRepository) List(ctx context.Context, status Status, limit int) ([]ProductionRun, error) {
	rows, err := r.pool.Query(ctx, `SELECT pr.id, pr.product_id, p.name, pr.qty, pr.unit_cost, pr.total_cost,
COALESCE(pr.lot_number,''), pr.expiry_date, pr.run_date, pr.status, pr.created_at
FROM production_runs pr
JOIN products p ON p.id = pr.product_id
WHERE ($1 = '' OR pr.status = $1)
ORDER BY pr.id DESC
LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs := []ProductionRun{}
	for rows.Next() {
		var run ProductionRun
		var st string
		if err := rows.Scan(&run.ID, &run.ProductID, &run.ProductName, &run.Qty, &run.UnitCost,
			&run.TotalCost, &run.LotNumber, &run.ExpiryDate, &run.RunDate, &st, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.Status = Status(st)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SetStatus flips the run status only when the current status still
// matches.
func (r *SQLRepository) SetStatus(ctx context.Context, id int64, from, to Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE production_runs SET status=$3 WHERE id=$1 AND status=$2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

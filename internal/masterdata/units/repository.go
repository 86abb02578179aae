package units

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resto-erp/resto-erp/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context) ([]Unit, error)
	Get(ctx context.Context, id int64) (Unit, error)
	Create(ctx context.Context, unit Unit) (Unit, error)
	Update(ctx context.Context, id int64, unit Unit) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Unit, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, abbreviation, created_at, updated_at FROM units ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.Abbreviation, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Unit, error) {
	var u Unit
	err := r.db.QueryRow(ctx, `SELECT id, name, abbreviation, created_at, updated_at FROM units WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Abbreviation, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, shared.ErrNotFound
	}
	return u, err
}

func (r *repository) Create(ctx context.Context, unit Unit) (Unit, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO units (name, abbreviation, created_at, updated_at) VALUES ($1, $2, $3, $3) RETURNING id`,
		unit.Name, unit.Abbreviation, now).Scan(&unit.ID)
	if err != nil {
		return Unit{}, err
	}
	unit.CreatedAt = now
	unit.UpdatedAt = now
	return unit, nil
}

func (r *repository) Update(ctx context.Context, id int64, unit Unit) error {
	tag, err := r.db.Exec(ctx, `UPDATE units SET name = $1, abbreviation = $2, updated_at = $3 WHERE id = $4`,
		unit.Name, unit.Abbreviation, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM units WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

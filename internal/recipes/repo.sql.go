package recipes

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLRepository persists recipes in PostgreSQL.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs SQLRepository.
func NewRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

func (r *SQLRepository) Create(ctx context.Context, recipe Recipe) (Recipe, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO recipes (product_id, yield_qty, yield_unit, overhead_pct, loss_pct, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		recipe.ProductID, recipe.YieldQty, recipe.YieldUnit, recipe.OverheadPct, recipe.LossPct).
		Scan(&recipe.ID, &recipe.CreatedAt, &recipe.UpdatedAt)
	return recipe, err
}

func (r *SQLRepository) Update(ctx context.Context, recipe Recipe) (Recipe, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE recipes SET yield_qty=$2, yield_unit=$3, overhead_pct=$4, loss_pct=$5, updated_at=NOW() WHERE id=$1`,
		recipe.ID, recipe.YieldQty, recipe.YieldUnit, recipe.OverheadPct, recipe.LossPct)
	if err != nil {
		return Recipe{}, err
	}
	if tag.RowsAffected() == 0 {
		return Recipe{}, ErrRecipeNotFound
	}
	return r.GetByID(ctx, recipe.ID)
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recipes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecipeNotFound
	}
	return nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id int64) (Recipe, error) {
	recipe, err := r.scanHeader(ctx, `SELECT id, product_id, yield_qty, COALESCE(yield_unit,''), overhead_pct, loss_pct, created_at, updated_at
FROM recipes WHERE id=$1`, id)
	if err != nil {
		return Recipe{}, err
	}
	recipe.Items, err = r.loadItems(ctx, recipe.ID)
	return recipe, err
}

func (r *SQLRepository) GetByProduct(ctx context.Context, productID int64) (Recipe, error) {
	recipe, err := r.scanHeader(ctx, `SELECT id, product_id, yield_qty, COALESCE(yield_unit,''), overhead_pct, loss_pct, created_at, updated_at
FROM recipes WHERE product_id=$1`, productID)
	if err != nil {
		return Recipe{}, err
	}
	recipe.Items, err = r.loadItems(ctx, recipe.ID)
	return recipe, err
}

func (r *SQLRepository) scanHeader(ctx context.Context, query string, arg any) (Recipe, error) {
	var recipe Recipe
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&recipe.ID, &recipe.ProductID, &recipe.YieldQty, &recipe.YieldUnit,
			&recipe.OverheadPct, &recipe.LossPct, &recipe.CreatedAt, &recipe.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Recipe{}, ErrRecipeNotFound
	}
	return recipe, err
}

func (r *SQLRepository) List(ctx context.Context) ([]Recipe, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, yield_qty, COALESCE(yield_unit,''), overhead_pct, loss_pct, created_at, updated_at
FROM recipes ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recipes := []Recipe{}
	for rows.Next() {
		var recipe Recipe
		if err := rows.Scan(&recipe.ID, &recipe.ProductID, &recipe.YieldQty, &recipe.YieldUnit,
			&recipe.OverheadPct, &recipe.LossPct, &recipe.CreatedAt, &recipe.UpdatedAt); err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	return recipes, rows.Err()
}

func (r *SQLRepository) loadItems(ctx context.Context, recipeID int64) ([]RecipeItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT ri.id, ri.recipe_id, ri.ingredient_id, p.name, COALESCE(u.abbreviation,''), ri.qty, COALESCE(ri.unit,''), COALESCE(ri.conversion_factor,1)
FROM recipe_items ri
JOIN products p ON p.id = ri.ingredient_id
LEFT JOIN units u ON u.id = p.unit_id
WHERE ri.recipe_id=$1
ORDER BY ri.id ASC`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []RecipeItem{}
	for rows.Next() {
		var item RecipeItem
		if err := rows.Scan(&item.ID, &item.RecipeID, &item.IngredientID, &item.IngredientName,
			&item.IngredientUnit, &item.Qty, &item.Unit, &item.ConversionFactor); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *SQLRepository) AddItem(ctx context.Context, item RecipeItem) (RecipeItem, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO recipe_items (recipe_id, ingredient_id, qty, unit, conversion_factor)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		item.RecipeID, item.IngredientID, item.Qty, item.Unit, item.ConversionFactor).
		Scan(&item.ID)
	return item, err
}

func (r *SQLRepository) RemoveItem(ctx context.Context, recipeID, itemID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recipe_items WHERE id=$1 AND recipe_id=$2`, itemID, recipeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecipeNotFound
	}
	return nil
}

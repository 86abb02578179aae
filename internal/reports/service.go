package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/resto-erp/resto-erp/internal/cashbook"
	"github.com/resto-erp/resto-erp/internal/inventory"
	"github.com/resto-erp/resto-erp/internal/recipes"
	"github.com/resto-erp/resto-erp/internal/sales"
)

// Repository runs the report queries that live directly on the ledger.
type Repository interface {
	StockValuation(ctx context.Context) ([]ValuationLine, error)
	MonthlyCMV(ctx context.Context, months int) ([]MonthlyCMV, error)
}

// SalesPort feeds revenue into the monthly result.
type SalesPort interface {
	Revenue(ctx context.Context, months int) ([]sales.MonthlyRevenue, error)
}

// CashPort feeds cash expenses and other income into the monthly result.
type CashPort interface {
	MonthlyTotals(ctx context.Context, months int) ([]cashbook.MonthlyTotal, error)
}

// LotsPort exposes the expiring lot view.
type LotsPort interface {
	ExpiringLots(ctx context.Context, withinDays int) ([]inventory.ExpiringLot, error)
}

// RecipesPort exposes recipe cost previews.
type RecipesPort interface {
	List(ctx context.Context) ([]recipes.Recipe, error)
	PreviewCost(ctx context.Context, recipeID int64) (recipes.CostBreakdown, error)
}

// Service builds report views behind the versioned cache. Concurrent
// requests for the same key share one build via singleflight.
type Service struct {
	repo     Repository
	sales    SalesPort
	cash     CashPort
	lots     LotsPort
	recipes  RecipesPort
	cache    *Cache
	logger   *slog.Logger
	buildSF  singleflight.Group
}

func NewService(repo Repository, salesPort SalesPort, cashPort CashPort, lotsPort LotsPort,
	recipesPort RecipesPort, cache *Cache, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		sales:   salesPort,
		cash:    cashPort,
		lots:    lotsPort,
		recipes: recipesPort,
		cache:   cache,
		logger:  logger,
	}
}

// InvalidateOnMovements is plugged into the ledger as a post-commit
// hook so every posted movement bumps the cache version.
func (s *Service) InvalidateOnMovements(ctx context.Context, movements []inventory.Movement) error {
	if len(movements) == 0 {
		return nil
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("report cache bump failed", "error", err)
	}
	return nil
}

func (s *Service) cached(ctx context.Context, dest interface{}, keyParts []string, loader func(context.Context) (interface{}, error)) error {
	key, err := s.cache.BuildKey(ctx, keyParts...)
	if err != nil {
		return fmt.Errorf("reports: build cache key: %w", err)
	}
	return s.cache.FetchJSON(ctx, key, dest, func(ctx context.Context) (interface{}, error) {
		resultChan := s.buildSF.DoChan(key, func() (interface{}, error) {
			return loader(ctx)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-resultChan:
			return res.Val, res.Err
		}
	})
}

// StockValuation sums qty times average cost over every active product.
func (s *Service) StockValuation(ctx context.Context) (StockValuation, error) {
	var out StockValuation
	err := s.cached(ctx, &out, []string{"reports", "valuation"}, func(ctx context.Context) (interface{}, error) {
		lines, err := s.repo.StockValuation(ctx)
		if err != nil {
			return nil, err
		}
		valuation := StockValuation{Lines: lines, GeneratedAt: time.Now()}
		for _, line := range lines {
			valuation.Total += line.Value
		}
		valuation.TotalDisplay = FormatBRL(valuation.Total)
		return valuation, nil
	})
	return out, err
}

// CMV returns the monthly cost of goods sold for the trailing window.
func (s *Service) CMV(ctx context.Context, months int) ([]MonthlyCMV, error) {
	if months <= 0 {
		months = 12
	}
	var out []MonthlyCMV
	err := s.cached(ctx, &out, []string{"reports", "cmv", strconv.Itoa(months)}, func(ctx context.Context) (interface{}, error) {
		return s.repo.MonthlyCMV(ctx, months)
	})
	return out, err
}

// MonthlyResult joins revenue, CMV and the cash book into the simple
// monthly P&L, most recent month first.
func (s *Service) MonthlyResult(ctx context.Context, months int) ([]MonthlyResult, error) {
	if months <= 0 {
		months = 12
	}
	var out []MonthlyResult
	err := s.cached(ctx, &out, []string{"reports", "result", strconv.Itoa(months)}, func(ctx context.Context) (interface{}, error) {
		revenue, err := s.sales.Revenue(ctx, months)
		if err != nil {
			return nil, err
		}
		cmv, err := s.repo.MonthlyCMV(ctx, months)
		if err != nil {
			return nil, err
		}
		cash, err := s.cash.MonthlyTotals(ctx, months)
		if err != nil {
			return nil, err
		}

		byMonth := map[[2]int]*MonthlyResult{}
		get := func(year, month int) *MonthlyResult {
			key := [2]int{year, month}
			r, ok := byMonth[key]
			if !ok {
				r = &MonthlyResult{Year: year, Month: month}
				byMonth[key] = r
			}
			return r
		}
		for _, row := range revenue {
			get(row.Year, row.Month).Revenue = row.Revenue
		}
		for _, row := range cmv {
			get(row.Year, row.Month).CMV = row.CMV
		}
		for _, row := range cash {
			r := get(row.Year, row.Month)
			r.Expenses = row.Expense
			r.OtherIncome = row.Income
		}

		results := make([]MonthlyResult, 0, len(byMonth))
		for _, r := range byMonth {
			r.GrossMargin = r.Revenue - r.CMV
			r.Net = r.GrossMargin - r.Expenses + r.OtherIncome
			r.NetDisplay = FormatBRL(r.Net)
			results = append(results, *r)
		}
		sortResults(results)
		return results, nil
	})
	return out, err
}

func sortResults(results []MonthlyResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0; j-- {
			a, b := results[j-1], results[j]
			if a.Year > b.Year || (a.Year == b.Year && a.Month >= b.Month) {
				break
			}
			results[j-1], results[j] = b, a
		}
	}
}

// ExpiringLots is the dashboard view of lots running out of shelf life.
// Not cached, the underlying query already scans only open lots.
func (s *Service) ExpiringLots(ctx context.Context, withinDays int) ([]inventory.ExpiringLot, error) {
	if withinDays <= 0 {
		withinDays = 30
	}
	return s.lots.ExpiringLots(ctx, withinDays)
}

// RecipeCosts previews the current cost of every recipe at today's
// average ingredient costs.
func (s *Service) RecipeCosts(ctx context.Context) ([]RecipeCostRow, error) {
	var out []RecipeCostRow
	err := s.cached(ctx, &out, []string{"reports", "recipe_costs"}, func(ctx context.Context) (interface{}, error) {
		list, err := s.recipes.List(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]RecipeCostRow, 0, len(list))
		for _, recipe := range list {
			breakdown, err := s.recipes.PreviewCost(ctx, recipe.ID)
			if err != nil {
				s.logger.Warn("recipe cost preview failed", "recipe_id", recipe.ID, "error", err)
				continue
			}
			rows = append(rows, RecipeCostRow{
				RecipeID:  recipe.ID,
				ProductID: recipe.ProductID,
				BatchCost: breakdown.BatchCost,
				UnitCost:  breakdown.UnitCost,
				Warnings:  breakdown.Warnings,
			})
		}
		return rows, nil
	})
	return out, err
}

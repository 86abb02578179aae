package products

import (
	"context"

	"github.com/resto-erp/resto-erp/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

// Delete removes the product, or only deactivates it once movements
// exist so the ledger history stays replayable.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	hasMovements, err := s.repo.HasMovements(ctx, id)
	if err != nil {
		return err
	}
	if hasMovements {
		return s.repo.Deactivate(ctx, id)
	}
	return s.repo.Delete(ctx, id)
}

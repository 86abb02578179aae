package suppliers

import (
	"context"
	"fmt"
	"strings"

	"github.com/resto-erp/resto-erp/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return Supplier{}, fmt.Errorf("%w: supplier name", shared.ErrRequiredField)
	}
	return s.repo.Create(ctx, supplier)
}

func (s *Service) Update(ctx context.Context, id int64, supplier Supplier) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if strings.TrimSpace(supplier.Name) == "" {
		return fmt.Errorf("%w: supplier name", shared.ErrRequiredField)
	}
	return s.repo.Update(ctx, id, supplier)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

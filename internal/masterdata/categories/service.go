package categories

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

func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Category, error) {
	if id <= 0 {
		return Category{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, category Category) (Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return Category{}, fmt.Errorf("%w: category name", shared.ErrRequiredField)
	}
	return s.repo.Create(ctx, category)
}

func (s *Service) Update(ctx context.Context, id int64, category Category) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: category name", shared.ErrRequiredField)
	}
	return s.repo.Update(ctx, id, category)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

package units

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

func (s *Service) List(ctx context.Context) ([]Unit, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Unit, error) {
	if id <= 0 {
		return Unit{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, unit Unit) (Unit, error) {
	if err := s.validate(unit); err != nil {
		return Unit{}, err
	}
	return s.repo.Create(ctx, unit)
}

func (s *Service) Update(ctx context.Context, id int64, unit Unit) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(unit); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, unit)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(u Unit) error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: unit name", shared.ErrRequiredField)
	}
	if strings.TrimSpace(u.Abbreviation) == "" {
		return fmt.Errorf("%w: unit abbreviation", shared.ErrRequiredField)
	}
	return nil
}

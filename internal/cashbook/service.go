package cashbook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/resto-erp/resto-erp/internal/shared"
)

// Repository persists cash categories and entries.
type Repository interface {
	CreateCategory(ctx context.Context, category *CashCategory) error
	ListCategories(ctx context.Context) ([]CashCategory, error)
	GetCategory(ctx context.Context, id int64) (*CashCategory, error)
	DeleteCategory(ctx context.Context, id int64) error

	CreateEntry(ctx context.Context, entry *CashEntry) error
	ListEntries(ctx context.Context, from, to time.Time, kind Kind) ([]CashEntry, error)
	GetEntry(ctx context.Context, id int64) (*CashEntry, error)
	DeleteEntry(ctx context.Context, id int64) error

	MonthlyTotals(ctx context.Context, months int) ([]MonthlyTotal, error)
}

// AuditPort records who changed the book.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates cash book operations.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
}

func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

func (s *Service) CreateCategory(ctx context.Context, category CashCategory) (*CashCategory, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, fmt.Errorf("category name is required")
	}
	if category.Kind != KindIn && category.Kind != KindOut {
		return nil, fmt.Errorf("category kind must be IN or OUT")
	}
	if err := s.repo.CreateCategory(ctx, &category); err != nil {
		return nil, fmt.Errorf("create cash category: %w", err)
	}
	return &category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]CashCategory, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.repo.DeleteCategory(ctx, id)
}

// CreateEntry validates the line against its category and records it.
func (s *Service) CreateEntry(ctx context.Context, entry CashEntry) (*CashEntry, error) {
	if entry.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if entry.Kind != KindIn && entry.Kind != KindOut {
		return nil, fmt.Errorf("entry kind must be IN or OUT")
	}
	category, err := s.repo.GetCategory(ctx, entry.CategoryID)
	if err != nil {
		return nil, err
	}
	if category.Kind != entry.Kind {
		return nil, ErrKindMismatch
	}
	if entry.EntryDate.IsZero() {
		entry.EntryDate = time.Now()
	}
	if err := s.repo.CreateEntry(ctx, &entry); err != nil {
		return nil, fmt.Errorf("create cash entry: %w", err)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   "cash_entry.create",
		Entity:   "cash_entry",
		EntityID: strconv.FormatInt(entry.ID, 10),
		Meta: map[string]any{
			"kind":     entry.Kind,
			"category": category.Name,
			"amount":   entry.Amount,
		},
	})
	return &entry, nil
}

func (s *Service) ListEntries(ctx context.Context, from, to time.Time, kind Kind) ([]CashEntry, error) {
	return s.repo.ListEntries(ctx, from, to, kind)
}

func (s *Service) DeleteEntry(ctx context.Context, id int64) error {
	entry, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteEntry(ctx, id); err != nil {
		return err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   "cash_entry.delete",
		Entity:   "cash_entry",
		EntityID: strconv.FormatInt(id, 10),
		Meta: map[string]any{
			"kind":   entry.Kind,
			"amount": entry.Amount,
		},
	})
	return nil
}

// MonthlyTotals returns per-month income and expense for the trailing
// window, most recent month first. months defaults to 12.
func (s *Service) MonthlyTotals(ctx context.Context, months int) ([]MonthlyTotal, error) {
	if months <= 0 {
		months = 12
	}
	return s.repo.MonthlyTotals(ctx, months)
}

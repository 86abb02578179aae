package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/resto-erp/resto-erp/internal/inventory"
	"github.com/resto-erp/resto-erp/internal/shared"
)

// Repository abstracts sale persistence.
type Repository interface {
	Create(ctx context.Context, sale Sale) (Sale, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, status Status, limit int) ([]Sale, error)
	SetStatus(ctx context.Context, id int64, from, to Status) error
	MonthlyRevenue(ctx context.Context, months int) ([]MonthlyRevenue, error)
}

// Registrar posts stock movements atomically.
type Registrar interface {
	RegisterBatch(ctx context.Context, inputs []inventory.RegisterInput) ([]inventory.Movement, error)
	MovementsByReference(ctx context.Context, reason string, referenceID int64) ([]inventory.Movement, error)
}

// IdempotencyPort guards checkout and void against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service orchestrates sale checkout and void.
type Service struct {
	repo        Repository
	registrar   Registrar
	idempotency IdempotencyPort
	locks       *shared.ProductLocks
}

// NewService builds Service.
func NewService(repo Repository, registrar Registrar, idempotency IdempotencyPort, locks *shared.ProductLocks) *Service {
	return &Service{repo: repo, registrar: registrar, idempotency: idempotency, locks: locks}
}

// CheckoutInput describes a new sale.
type CheckoutInput struct {
	SaleDate time.Time
	Items    []CheckoutItem
}

// CheckoutItem is one requested sale line.
type CheckoutItem struct {
	ProductID int64
	Qty       float64
	UnitPrice float64
}

// Checkout stores the sale and registers one OUT per line at the
// product's current average cost, all referencing the sale id.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (Sale, error) {
	if len(input.Items) == 0 {
		return Sale{}, ErrNoItems
	}
	sale := Sale{
		SaleNumber: generateNumber("VD"),
		SaleDate:   input.SaleDate,
		Status:     StatusClosed,
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = time.Now().UTC()
	}
	for _, item := range input.Items {
		if item.ProductID <= 0 || item.Qty <= 0 {
			return Sale{}, inventory.ErrInvalidQuantity
		}
		if item.UnitPrice < 0 {
			return Sale{}, inventory.ErrInvalidUnitCost
		}
		line := SaleItem{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Total:     item.Qty * item.UnitPrice,
		}
		sale.Items = append(sale.Items, line)
		sale.Total += line.Total
	}

	release := s.locks.Acquire(productIDs(sale.Items)...)
	defer release()

	sale, err := s.repo.Create(ctx, sale)
	if err != nil {
		return Sale{}, err
	}

	key := fmt.Sprintf("SALE:POST:%d", sale.ID)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "sales"); err != nil {
			_ = s.repo.Delete(ctx, sale.ID)
			return Sale{}, err
		}
		inserted = true
	}

	inputs := make([]inventory.RegisterInput, 0, len(sale.Items))
	for _, item := range sale.Items {
		inputs = append(inputs, inventory.RegisterInput{
			Kind:        inventory.MovementOut,
			ProductID:   item.ProductID,
			Qty:         item.Qty,
			Reason:      inventory.ReasonSale,
			ReferenceID: sale.ID,
			Note:        sale.SaleNumber,
		})
	}
	if _, err := s.registrar.RegisterBatch(ctx, inputs); err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		_ = s.repo.Delete(ctx, sale.ID)
		return Sale{}, err
	}
	return sale, nil
}

// Void undoes a closed sale by replaying its OUT movements as IN at the
// unit cost each movement captured, so the ledger value returns exactly.
func (s *Service) Void(ctx context.Context, id int64) error {
	sale, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch sale.Status {
	case StatusClosed:
	case StatusVoided:
		return ErrAlreadyVoided
	default:
		return ErrInvalidState
	}

	key := fmt.Sprintf("SALE:VOID:%d", sale.ID)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "sales"); err != nil {
			return err
		}
		inserted = true
	}

	release := s.locks.Acquire(productIDs(sale.Items)...)
	defer release()

	movements, err := s.registrar.MovementsByReference(ctx, inventory.ReasonSale, sale.ID)
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}
	inputs := make([]inventory.RegisterInput, 0, len(movements))
	for _, movement := range movements {
		cost := movement.UnitCost
		inputs = append(inputs, inventory.RegisterInput{
			Kind:        inventory.MovementIn,
			ProductID:   movement.ProductID,
			Qty:         movement.Qty,
			UnitCost:    &cost,
			Reason:      inventory.ReasonSaleRevert,
			ReferenceID: sale.ID,
			Note:        fmt.Sprintf("void %s", sale.SaleNumber),
		})
	}
	if len(inputs) > 0 {
		if _, err := s.registrar.RegisterBatch(ctx, inputs); err != nil {
			if inserted {
				_ = s.idempotency.Delete(ctx, key)
			}
			return err
		}
	}
	if err := s.repo.SetStatus(ctx, sale.ID, StatusClosed, StatusVoided); err != nil {
		return err
	}
	return nil
}

// GetByID loads a sale with its items.
func (s *Service) GetByID(ctx context.Context, id int64) (Sale, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns sales, newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, limit int) ([]Sale, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.List(ctx, status, limit)
}

// Revenue returns closed-sale revenue grouped by month.
func (s *Service) Revenue(ctx context.Context, months int) ([]MonthlyRevenue, error) {
	if months <= 0 {
		months = 12
	}
	return s.repo.MonthlyRevenue(ctx, months)
}

func productIDs(items []SaleItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

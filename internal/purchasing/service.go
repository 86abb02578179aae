package purchasing

import (
	"context"
	"fmt"
	"time"

	"github.com/resto-erp/resto-erp/internal/inventory"
	"github.com/resto-erp/resto-erp/internal/shared"
)

// Repository abstracts purchase persistence.
type Repository interface {
	Create(ctx context.Context, purchase Purchase) (Purchase, error)
	GetByID(ctx context.Context, id int64) (Purchase, error)
	List(ctx context.Context, status Status, limit int) ([]Purchase, error)
	SetStatus(ctx context.Context, id int64, from, to Status) error
}

// Registrar posts stock movements atomically.
type Registrar interface {
	RegisterBatch(ctx context.Context, inputs []inventory.RegisterInput) ([]inventory.Movement, error)
}

// IdempotencyPort guards posting and reversal against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service orchestrates purchase posting and reversal.
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

// CreateDraftInput describes a new purchase with its lines.
type CreateDraftInput struct {
	SupplierID int64
	DocNumber  string
	DocDate    time.Time
	Freight    float64
	OtherCosts float64
	Items      []DraftItem
}

// DraftItem is one requested invoice line.
type DraftItem struct {
	ProductID  int64
	Qty        float64
	UnitPrice  float64
	Discount   float64
	LotNumber  string
	ExpiryDate *time.Time
}

// CreateDraft validates and stores a draft purchase. Drafts have no
// ledger effect until posted.
func (s *Service) CreateDraft(ctx context.Context, input CreateDraftInput) (Purchase, error) {
	if len(input.Items) == 0 {
		return Purchase{}, ErrNoItems
	}
	purchase := Purchase{
		SupplierID: input.SupplierID,
		DocNumber:  input.DocNumber,
		DocDate:    input.DocDate,
		Freight:    input.Freight,
		OtherCosts: input.OtherCosts,
		Status:     StatusDraft,
	}
	if purchase.DocNumber == "" {
		purchase.DocNumber = generateNumber("PC")
	}
	if purchase.DocDate.IsZero() {
		purchase.DocDate = time.Now().UTC()
	}
	for _, item := range input.Items {
		if item.ProductID <= 0 || item.Qty <= 0 {
			return Purchase{}, inventory.ErrInvalidQuantity
		}
		if item.UnitPrice < 0 || item.Discount < 0 {
			return Purchase{}, inventory.ErrInvalidUnitCost
		}
		line := PurchaseItem{
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			UnitPrice:  item.UnitPrice,
			Discount:   item.Discount,
			Total:      item.Qty*item.UnitPrice - item.Discount,
			LotNumber:  item.LotNumber,
			ExpiryDate: item.ExpiryDate,
		}
		purchase.Items = append(purchase.Items, line)
		purchase.Total += line.Total
	}
	purchase.Total += input.Freight + input.OtherCosts
	return s.repo.Create(ctx, purchase)
}

// GetByID loads a purchase with its items.
func (s *Service) GetByID(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns purchases, newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, limit int) ([]Purchase, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.List(ctx, status, limit)
}

// Post moves a draft into stock. One IN movement per item, each
// referencing its own item id so the line becomes a trackable lot.
func (s *Service) Post(ctx context.Context, id int64) error {
	purchase, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if purchase.Status != StatusDraft {
		return ErrInvalidState
	}
	if len(purchase.Items) == 0 {
		return ErrNoItems
	}

	key := fmt.Sprintf("PC:POST:%d", purchase.ID)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "purchasing"); err != nil {
			return err
		}
		inserted = true
	}

	release := s.locks.Acquire(productIDs(purchase.Items)...)
	defer release()

	inputs := make([]inventory.RegisterInput, 0, len(purchase.Items))
	for _, item := range purchase.Items {
		cost := item.EffectiveUnitCost()
		inputs = append(inputs, inventory.RegisterInput{
			Kind:        inventory.MovementIn,
			ProductID:   item.ProductID,
			Qty:         item.Qty,
			UnitCost:    &cost,
			Reason:      inventory.ReasonPurchase,
			ReferenceID: item.ID,
			Note:        lotNote(item),
		})
	}
	if _, err := s.registrar.RegisterBatch(ctx, inputs); err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}
	if err := s.repo.SetStatus(ctx, purchase.ID, StatusDraft, StatusPosted); err != nil {
		return err
	}
	return nil
}

// Reverse backs a posted purchase out of stock with one compensating
// OUT per item at the item's landed cost.
func (s *Service) Reverse(ctx context.Context, id int64) error {
	purchase, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch purchase.Status {
	case StatusPosted:
	case StatusReversed:
		return ErrAlreadyReversed
	default:
		return ErrInvalidState
	}

	key := fmt.Sprintf("PC:REVERSE:%d", purchase.ID)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "purchasing"); err != nil {
			return err
		}
		inserted = true
	}

	release := s.locks.Acquire(productIDs(purchase.Items)...)
	defer release()

	inputs := make([]inventory.RegisterInput, 0, len(purchase.Items))
	for _, item := range purchase.Items {
		cost := item.EffectiveUnitCost()
		inputs = append(inputs, inventory.RegisterInput{
			Kind:        inventory.MovementOut,
			ProductID:   item.ProductID,
			Qty:         item.Qty,
			UnitCost:    &cost,
			Reason:      inventory.ReasonPurchaseRevert,
			ReferenceID: item.ID,
			Note:        fmt.Sprintf("reversal of %s", purchase.DocNumber),
		})
	}
	if _, err := s.registrar.RegisterBatch(ctx, inputs); err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}
	if err := s.repo.SetStatus(ctx, purchase.ID, StatusPosted, StatusReversed); err != nil {
		return err
	}
	return nil
}

func productIDs(items []PurchaseItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func lotNote(item PurchaseItem) string {
	note := fmt.Sprintf("lot:%s", item.LotNumber)
	if item.ExpiryDate != nil {
		note += ";exp:" + item.ExpiryDate.Format("2006-01-02")
	}
	return note
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

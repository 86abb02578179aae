package inventory

import (
	"context"
	"math"
	"sort"
)

// LotBalances returns the derived remaining balance of every inbound lot
// for the product, ordered by expiry date ascending (lots without expiry
// last) then lot id ascending. The result is recomputed from the
// movement ledger on every call, never cached.
func (s *Service) LotBalances(ctx context.Context, productID int64) ([]LotBalance, error) {
	lots, err := s.repo.LotOrigins(ctx, productID)
	if err != nil {
		return nil, err
	}
	movements, err := s.repo.ListLedger(ctx, productID)
	if err != nil {
		return nil, err
	}
	ApplyLotConsumption(lots, movements)
	SortLots(lots)
	return lots, nil
}

// consumesLots tells whether movements with the reason reference lots
// in their reference id. Sale movements reference sale ids instead and
// must never count against a lot.
func consumesLots(reason string) bool {
	switch reason {
	case ReasonProduction, ReasonPurchaseRevert, ReasonProductionRevert:
		return true
	}
	return false
}

// ApplyLotConsumption fills Consumed and Remaining on each lot from the
// product's movement history. OUT movements referencing a lot consume
// it; compensating IN movements give the balance back. The IN that
// created a production lot carries the run's id as its reference and is
// the lot's origin, not consumption of it. Remaining never goes below
// zero.
func ApplyLotConsumption(lots []LotBalance, movements []Movement) {
	consumed := make(map[int64]float64)
	for _, m := range movements {
		if m.ReferenceID == 0 || !consumesLots(m.Reason) {
			continue
		}
		if m.Kind == MovementIn && m.Reason == ReasonProduction {
			continue
		}
		if m.Kind == MovementOut {
			consumed[m.ReferenceID] += m.Qty
		} else {
			consumed[m.ReferenceID] -= m.Qty
		}
	}
	for i := range lots {
		lots[i].Consumed = consumed[lots[i].LotID]
		remaining := lots[i].OriginalQty - lots[i].Consumed
		if remaining < 0 {
			remaining = 0
		}
		lots[i].Remaining = remaining
	}
}

// Allocate walks the product's lots in FIFO order and greedily takes
// from each lot's remaining balance until the requirement is met or the
// lots run out. It never mutates state; callers make the allocation
// durable by registering OUT movements that reference each lot.
func (s *Service) Allocate(ctx context.Context, productID int64, required float64) (Allocation, error) {
	alloc := Allocation{ProductID: productID, Required: required}
	if required <= 0 {
		alloc.Required = 0
		return alloc, nil
	}
	lots, err := s.LotBalances(ctx, productID)
	if err != nil {
		return Allocation{}, err
	}
	remaining := required
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		if lot.Remaining <= 0 {
			continue
		}
		take := math.Min(lot.Remaining, remaining)
		alloc.Lines = append(alloc.Lines, AllocationLine{
			LotID:      lot.LotID,
			Qty:        take,
			UnitCost:   lot.UnitCost,
			LotNumber:  lot.LotNumber,
			ExpiryDate: lot.ExpiryDate,
		})
		remaining -= take
	}
	return alloc, nil
}

// SortLots orders lots by expiry ascending with nil expiry last,
// tie-broken by ascending lot id.
func SortLots(lots []LotBalance) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
			return a.LotID < b.LotID
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		case a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.LotID < b.LotID
		default:
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
	})
}

package shared

import (
	"sort"
	"sync"
)

// ProductLocks serialises stock operations per product. Multi-product
// acquisitions always lock in ascending product id order so that two
// overlapping production runs cannot deadlock.
type ProductLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewProductLocks constructs the lock registry.
func NewProductLocks() *ProductLocks {
	return &ProductLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *ProductLocks) lockFor(productID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[productID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[productID] = m
	}
	return m
}

// Acquire locks every given product id and returns a release function.
// Duplicate ids are collapsed; a nil registry yields a no-op release.
func (l *ProductLocks) Acquire(productIDs ...int64) func() {
	if l == nil || len(productIDs) == 0 {
		return func() {}
	}
	seen := make(map[int64]struct{}, len(productIDs))
	ids := make([]int64, 0, len(productIDs))
	for _, id := range productIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		m := l.lockFor(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

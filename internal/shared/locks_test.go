package shared

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProductLocksSerialisesCounter(t *testing.T) {
	locks := NewProductLocks()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire(7)
			counter++
			release()
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
}

func TestProductLocksMultiAcquireNoDeadlock(t *testing.T) {
	locks := NewProductLocks()
	var wg sync.WaitGroup
	// Opposite orderings resolve to the same ascending lock order.
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			release := locks.Acquire(1, 2, 3)
			release()
		}()
		go func() {
			defer wg.Done()
			release := locks.Acquire(3, 2, 1)
			release()
		}()
	}
	wg.Wait()
}

func TestProductLocksNilAndEmpty(t *testing.T) {
	var nilLocks *ProductLocks
	require.NotPanics(t, func() { nilLocks.Acquire(1)() })
	locks := NewProductLocks()
	require.NotPanics(t, func() { locks.Acquire()() })
}

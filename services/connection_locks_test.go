package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionLocks_Opposite_Order_Does_Not_Deadlock(t *testing.T) {
	req := require.New(t)
	locks := newConnectionLocks()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := locks.lock("a", "b")
			counter++
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := locks.lock("b", "a", "")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	req.Equal(100, counter)
	req.Zero(locks.size())
}

func TestConnectionLocks_Duplicate_Ids(t *testing.T) {
	req := require.New(t)
	locks := newConnectionLocks()

	// Given the same id twice
	unlock := locks.lock("a", "a")
	req.Equal(1, locks.size())

	// Then it is taken once and released
	unlock()
	req.Zero(locks.size())
}

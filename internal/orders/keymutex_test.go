package orders

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexExcludesSameKey(t *testing.T) {
	km := newKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.lock("a")
			counter++
			km.unlock("a")
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
}

func TestKeyedMutexDropsIdleEntries(t *testing.T) {
	km := newKeyedMutex()
	km.lock("a")
	km.unlock("a")
	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries)
}

// Overlapping multi-key holders must not deadlock as long as keys are
// acquired in sorted order.
func TestLockAllOverlappingSets(t *testing.T) {
	km := newKeyedMutex()
	setA := []string{"a", "b", "c"}
	setB := []string{"b", "c", "d"}
	sort.Strings(setA)
	sort.Strings(setB)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			km.lockAll(setA)
			km.unlockAll(setA)
		}()
		go func() {
			defer wg.Done()
			km.lockAll(setB)
			km.unlockAll(setB)
		}()
	}
	wg.Wait()
}

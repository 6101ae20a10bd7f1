package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardSerializesSameKey(t *testing.T) {
	guard := New()

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := guard.Lock("case", "EXT-1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}

func TestGuardIndependentKeys(t *testing.T) {
	guard := New()

	unlockA := guard.Lock("case", "EXT-A")
	done := make(chan struct{})
	go func() {
		unlockB := guard.Lock("payment", "EXT-A")
		unlockB()
		close(done)
	}()
	<-done // different entity type never blocks on EXT-A's case lock
	unlockA()
}

func TestGuardReleasesEntries(t *testing.T) {
	guard := New()
	unlock := guard.Lock("organisation", "ORG-1")
	unlock()

	guard.mu.Lock()
	defer guard.mu.Unlock()
	assert.Empty(t, guard.locks)
}

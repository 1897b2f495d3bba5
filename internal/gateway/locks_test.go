package gateway

import (
	"sync"
	"testing"
)

func TestConversationLocksSerializeSameKey(t *testing.T) {
	locks := newConversationLocks()
	const n = 200
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("conv-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != n {
		t.Fatalf("counter = %d, want %d", counter, n)
	}
	locks.mu.Lock()
	remaining := len(locks.entries)
	locks.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("entries leaked: %d", remaining)
	}
}

func TestConversationLocksIndependentKeys(t *testing.T) {
	locks := newConversationLocks()
	unlockA := locks.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()
	// Holding "a" must not block "b".
	<-done
	unlockA()
}

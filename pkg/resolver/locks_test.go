package resolver

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocksSerializeSameIdentity(t *testing.T) {
	var locks keyedLocks

	const workers = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			unlock := locks.lock("owner/pkg")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestKeyedLocksIndependentIdentities(t *testing.T) {
	var locks keyedLocks

	unlockA := locks.lock("owner/a")

	done := make(chan struct{})

	go func() {
		unlockB := locks.lock("owner/b")
		unlockB()
		close(done)
	}()

	// a held lock on one package must not block another package
	<-done

	unlockA()
}

package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedLockSerializesSameKey(t *testing.T) {
	t.Parallel()

	locks := NewKeyedLock()
	key := ScopedKey("u1", "clients")

	var (
		wg      sync.WaitGroup
		counter int
	)

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire(key)
			defer release()
			counter++
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
}

func TestKeyedLockIndependentKeys(t *testing.T) {
	t.Parallel()

	locks := NewKeyedLock()

	releaseA := locks.Acquire(ScopedKey("u1", "clients"))
	defer releaseA()

	// A held lock on one set must not block another set.
	done := make(chan struct{})
	go func() {
		release := locks.Acquire(ScopedKey("u1", "projects"))
		release()
		close(done)
	}()
	<-done
}

package registry

import (
	"sync"
	"testing"
)

func TestSlugLocksSerialisesSameSlug(t *testing.T) {
	locks := NewSlugLocks()

	const workers = 16
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Lock("banner")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Fatalf("counter = %d, want %d", counter, workers)
	}
}

func TestSlugLocksIndependentSlugs(t *testing.T) {
	locks := NewSlugLocks()

	releaseA := locks.Lock("a")

	done := make(chan struct{})
	go func() {
		release := locks.Lock("b")
		release()
		close(done)
	}()

	// Holding "a" must not block "b".
	<-done
	releaseA()
}

func TestSlugLocksReleasesEntries(t *testing.T) {
	locks := NewSlugLocks()

	release := locks.Lock("transient")
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.slugs) != 0 {
		t.Fatalf("lock table still holds %d entries", len(locks.slugs))
	}
}

package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestLockerSerializesSameKey(t *testing.T) {
	locker := newRequestLocker()

	const workers = 32
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			unlock := locker.Lock("req-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestRequestLockerIndependentKeys(t *testing.T) {
	locker := newRequestLocker()

	unlockA := locker.Lock("req-a")
	// A different request must not block behind req-a.
	done := make(chan struct{})
	go func() {
		unlockB := locker.Lock("req-b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()

	// Re-acquiring a released key succeeds.
	unlock := locker.Lock("req-a")
	unlock()
}

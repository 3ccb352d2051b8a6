package document

import (
	"sync"
	"testing"
)

func TestKeyedLock_SerialisesSameKey(t *testing.T) {
	var l keyedLock
	var wg sync.WaitGroup
	counter := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("invoice/inv-1")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if len(l.locks) != 0 {
		t.Errorf("%d lock entries left behind", len(l.locks))
	}
}

func TestKeyedLock_DistinctKeysIndependent(t *testing.T) {
	var l keyedLock
	unlockA := l.lock("invoice/a")
	done := make(chan struct{})
	go func() {
		unlock := l.lock("invoice/b")
		unlock()
		close(done)
	}()
	<-done
	unlockA()
}

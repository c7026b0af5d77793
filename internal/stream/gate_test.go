package stream

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGateSingleFlight(t *testing.T) {
	g := NewGate()

	var acquired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire() {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := acquired.Load(); got != 1 {
		t.Fatalf("expected exactly one successful acquisition, got %d", got)
	}
	if g.TryAcquire() {
		t.Fatal("gate should be held")
	}

	g.Release()
	if !g.TryAcquire() {
		t.Fatal("gate should be free after release")
	}
}

func TestGateReleaseWithoutAcquire(t *testing.T) {
	g := NewGate()
	g.Release() // must not panic or corrupt the slot
	if !g.TryAcquire() {
		t.Fatal("gate should be free")
	}
	if g.TryAcquire() {
		t.Fatal("second acquisition must fail")
	}
}

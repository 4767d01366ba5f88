package replacer_test

import (
	"sync"
	"testing"

	"exhashdb/pkg/replacer"
)

// Mirrors the canonical BusTub-style LRU replacer scenario: unpin a run
// of frames, then check that Victim empties them out in LRU order and
// that Pin removes a frame from future victim consideration.
func TestLRUReplacer(t *testing.T) {
	r := replacer.NewLRUReplacer()

	for _, f := range []int64{1, 2, 3, 4, 5} {
		r.Unpin(f)
	}
	if got := r.Size(); got != 5 {
		t.Fatalf("Size() = %d, want 5", got)
	}

	if f, ok := r.Victim(); !ok || f != 1 {
		t.Fatalf("Victim() = (%d, %v), want (1, true)", f, ok)
	}
	if got := r.Size(); got != 4 {
		t.Fatalf("Size() after first victim = %d, want 4", got)
	}

	r.Pin(3)
	if got := r.Size(); got != 3 {
		t.Fatalf("Size() after Pin(3) = %d, want 3", got)
	}

	var order []int64
	for {
		f, ok := r.Victim()
		if !ok {
			break
		}
		order = append(order, f)
	}
	want := []int64{2, 4, 5}
	if len(order) != len(want) {
		t.Fatalf("victim order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("victim order = %v, want %v", order, want)
		}
	}

	if _, ok := r.Victim(); ok {
		t.Fatal("Victim() on empty replacer should return false")
	}
	if got := r.Size(); got != 0 {
		t.Fatalf("Size() on empty replacer = %d, want 0", got)
	}
}

// Re-unpinning an already-tracked frame must not move it — it stays at
// its original position instead of jumping back to the MRU end.
func TestLRUReplacerUnpinNoOpWhenTracked(t *testing.T) {
	r := replacer.NewLRUReplacer()
	for _, f := range []int64{1, 2, 3} {
		r.Unpin(f)
	}
	// 1 is already tracked: this must be a no-op, not a move-to-front.
	r.Unpin(1)
	if got := r.Size(); got != 3 {
		t.Fatalf("Size() = %d, want 3", got)
	}
	if f, _ := r.Victim(); f != 1 {
		t.Fatalf("Victim() = %d, want 1 (unchanged LRU order)", f)
	}
}

func TestLRUReplacerConcurrent(t *testing.T) {
	r := replacer.NewLRUReplacer()
	var wg sync.WaitGroup
	for i := int64(0); i < 100; i++ {
		wg.Add(1)
		go func(f int64) {
			defer wg.Done()
			r.Unpin(f)
			r.Pin(f)
			r.Unpin(f)
		}(i)
	}
	wg.Wait()
	if got := r.Size(); got != 100 {
		t.Fatalf("Size() = %d, want 100", got)
	}
}

package allocator

import (
	"testing"
	"unsafe"
)

// newTestArena builds an Allocator with a small preallocation so arena
// tests exercise splitting, coalescing, and growth without needing
// hundred-kilobyte allocations.
func newTestArena() *Allocator {
	return New(WithInitialHeap(4096), WithMMAPThreshold(4096))
}

func TestBrkAllocateSplitsRemainder(t *testing.T) {
	a := newTestArena()

	first := a.Alloc(64)
	if first == nil {
		t.Fatal("Alloc(64) returned nil")
	}

	h := a.headerOf(first)
	if h.status != statusAlloc {
		t.Fatalf("status = %v, want ALLOC", h.status)
	}

	if h.next == nil || h.next.status != statusFree {
		t.Fatal("expected a FREE remainder block after the first allocation")
	}

	wantPayload := a.align(64)
	if h.size != wantPayload {
		t.Fatalf("allocated payload = %d, want %d", h.size, wantPayload)
	}
}

func TestFreeThenAllocateReusesSlot(t *testing.T) {
	// Scenario 1 from spec.md §8: a=alloc(100); b=alloc(200); free(a);
	// c=alloc(80) reuses a's slot via best fit.
	a := newTestArena()

	ptrA := a.Alloc(100)
	ptrB := a.Alloc(200)
	_ = ptrB

	a.Free(ptrA)

	ptrC := a.Alloc(80)
	if ptrC != ptrA {
		t.Fatalf("Alloc(80) after freeing a 100-byte slot = %p, want reuse of %p", ptrC, ptrA)
	}
}

func TestFreeCoalescesAdjacentBlocks(t *testing.T) {
	// Scenario 2 from spec.md §8: two adjacent allocations, both freed,
	// coalesce into one FREE block on the next sweep.
	a := newTestArena()

	ptrA := a.Alloc(100)
	ptrB := a.Alloc(100)

	a.Free(ptrA)
	a.Free(ptrB)

	// A further allocation forces a best-fit sweep, which performs the
	// coalescing the spec describes as a side effect of the scan.
	a.Alloc(1)

	freeCount := 0
	for cur := a.heapStart; cur != nil; cur = cur.next {
		if cur.next != nil && cur.status == statusFree && cur.next.status == statusFree {
			t.Fatal("two adjacent FREE blocks survived a best-fit sweep")
		}
		if cur.status == statusFree {
			freeCount++
		}
	}

	if freeCount == 0 {
		t.Fatal("expected at least one FREE block after freeing two adjacent allocations")
	}
}

func TestGrowthAppendsWhenTailIsAlloc(t *testing.T) {
	a := New(WithInitialHeap(128), WithMMAPThreshold(1<<20))

	// Exhaust the tiny preallocation with an ALLOC block, forcing growth
	// to append a brand-new block rather than extend in place.
	ptr := a.Alloc(200)
	if ptr == nil {
		t.Fatal("Alloc(200) returned nil")
	}

	statsBefore := a.Stats()

	ptr2 := a.Alloc(300)
	if ptr2 == nil {
		t.Fatal("Alloc(300) returned nil")
	}

	statsAfter := a.Stats()
	if statsAfter.ArenaFootprint <= statsBefore.ArenaFootprint {
		t.Fatal("arena footprint did not grow")
	}
}

func TestGrowthExtendsFreeTailInPlace(t *testing.T) {
	a := New(WithInitialHeap(128), WithMMAPThreshold(1<<20))

	// The preallocation's single FREE block is the tail; a request larger
	// than it should extend it in place rather than appending.
	ptr := a.Alloc(1000)
	if ptr == nil {
		t.Fatal("Alloc(1000) returned nil")
	}

	if a.heapStart.next != nil {
		t.Fatal("expected the grown tail to remain the only arena block")
	}
}

func TestReachableRejectsAlienPointer(t *testing.T) {
	a := newTestArena()

	var local blockHeader

	if a.reachable(&local) {
		t.Fatal("a stack-allocated header should not be reachable from heapStart")
	}

	// Free on an alien pointer must be a silent no-op, never a panic.
	a.Free(unsafe.Pointer(uintptr(unsafe.Pointer(&local)) + a.metaSize))
}

func TestDoubleFreeIsNoOp(t *testing.T) {
	a := newTestArena()

	ptr := a.Alloc(32)
	a.Free(ptr)

	statsAfterFirstFree := a.Stats()
	a.Free(ptr)
	statsAfterSecondFree := a.Stats()

	if statsAfterFirstFree != statsAfterSecondFree {
		t.Fatalf("double free changed arena shape: %+v vs %+v", statsAfterFirstFree, statsAfterSecondFree)
	}
}

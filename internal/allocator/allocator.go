// Package allocator implements a minimal, single-threaded dynamic memory
// allocator in the tradition of a textbook malloc/free/calloc/realloc: an
// intrusive free-list arena grown by extending the process data segment,
// and an mmap-backed registry for large allocations, with best-fit search,
// splitting, and eager forward coalescing on the arena side.
//
// It is grounded on original_source/osmem.c, reworked into Go the way this
// repository's own internal/allocator package structures an allocator:
// a Config/Option constructor, an Allocator value holding all process-wide
// state, and package-level convenience wrappers over one default instance.
package allocator

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/go-mem/osmem/internal/errors"
)

// Allocator holds all of the process-wide mutable state spec.md describes:
// the two list roots and the mmap threshold. It is not safe for concurrent
// use — spec.md §5 is explicit that this allocator is single-threaded,
// cooperative, and holds no locks.
type Allocator struct {
	cfg       *Config
	metaSize  uintptr
	heapStart *blockHeader
	mmapStart *blockHeader
	threshold uintptr
}

// New constructs an Allocator. Most callers should use the package-level
// Alloc/Free/Calloc/Realloc functions instead, which operate on a shared
// default instance; New exists for tests that need an isolated arena.
func New(options ...Option) *Allocator {
	cfg := defaultConfig()
	for _, opt := range options {
		opt(cfg)
	}

	a := &Allocator{cfg: cfg}
	a.metaSize = alignUp(unsafe.Sizeof(blockHeader{}), cfg.Alignment)
	a.threshold = cfg.MMAPThreshold

	return a
}

func (a *Allocator) align(n uintptr) uintptr {
	return alignUp(n, a.cfg.Alignment)
}

// Alloc implements spec.md §4.4 Allocate: returns a pointer to an aligned,
// uninitialized payload of at least size bytes, or nil if size is zero.
func (a *Allocator) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	payload := a.align(size)
	if a.footprint(payload) < a.threshold {
		return a.payloadOf(a.brkAllocate(payload))
	}

	return a.payloadOf(a.mmapAllocate(payload))
}

// Free implements spec.md §4.4 Free: a nil pointer or a pointer this
// allocator does not own is a silent no-op.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	h := a.headerOf(ptr)
	if h.status == statusMapped {
		a.mmapFree(h)
		return
	}

	a.brkFree(h)
}

// Calloc implements spec.md §4.4 Zero-init: it temporarily lowers the mmap
// threshold to the page size so that any allocation meeting or exceeding a
// page is served pre-zeroed by the kernel, then zeroes the returned region
// unconditionally to also cover the sub-page case served from the brk
// arena, which can return dirty memory left over from a prior free.
//
// This override is process-global and, per spec.md §9, not reentrancy-safe:
// Calloc must not be called concurrently with itself.
func (a *Allocator) Calloc(nmemb, size uintptr) unsafe.Pointer {
	if nmemb == 0 || size == 0 {
		return nil
	}

	saved := a.threshold
	a.threshold = osPageSize()

	ptr := a.Alloc(nmemb * size)

	a.threshold = saved

	if ptr == nil {
		return nil
	}

	h := a.headerOf(ptr)
	zeroBytes(ptr, h.size)

	return ptr
}

// Realloc implements spec.md §4.4 Resize.
func (a *Allocator) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return a.Alloc(size)
	}

	if size == 0 {
		a.Free(ptr)
		return nil
	}

	h := a.headerOf(ptr)
	if h.status == statusFree {
		return nil
	}

	payload := a.align(size)

	if h.status == statusMapped {
		return a.resizeMapped(h, ptr, payload)
	}

	return a.resizeBrk(h, ptr, payload)
}

// resizeMapped always relocates: allocate fresh, copy, free the old
// mapping.
func (a *Allocator) resizeMapped(h *blockHeader, ptr unsafe.Pointer, payload uintptr) unsafe.Pointer {
	newPtr := a.Alloc(payload)
	if newPtr != nil {
		copyBytes(newPtr, ptr, min(h.size, payload))
	}

	a.mmapFree(h)

	return newPtr
}

// resizeBrk implements the five-case decision tree of spec.md §4.4 for an
// ALLOC source living in the brk arena.
func (a *Allocator) resizeBrk(h *blockHeader, ptr unsafe.Pointer, payload uintptr) unsafe.Pointer {
	reqFootprint := a.footprint(payload)

	// Case 1: crossing the threshold upward.
	if reqFootprint >= a.threshold {
		newHeader := a.mmapAllocate(payload)
		newPtr := a.payloadOf(newHeader)
		copyBytes(newPtr, ptr, min(h.size, payload))
		a.brkFree(h)

		return newPtr
	}

	// Case 2: unknown source.
	if !a.reachable(h) {
		return nil
	}

	// Case 3: grow in place by coalescing forward, as long as the block
	// stays short of the request.
	origSize := h.size
	h.status = statusFree

	for a.footprint(h.size) < reqFootprint && coalesceOnce(a, h) {
	}

	h.status = statusAlloc

	if a.footprint(h.size) >= reqFootprint {
		a.splitIfPossible(h, reqFootprint)
		return ptr
	}

	// Case 4: tail of the arena.
	if h.next == nil {
		h.status = statusFree

		// A best-fit elsewhere may have become viable as a side effect of
		// the coalescing sweep above running over the rest of the arena.
		// Guard against selecting h itself: it is FREE right now only as
		// resize's own scratch state (spec.md §9 flags the naive version
		// of this check as a likely source of a self-selection bug).
		candidate, _ := a.bestFit(reqFootprint)
		if candidate != nil && candidate != h {
			candidate.status = statusAlloc
			newPtr := a.payloadOf(candidate)
			copyBytes(newPtr, ptr, min(origSize, payload))
			a.coalesceForward(h)

			return newPtr
		}

		a.growArena(h, reqFootprint)

		return ptr
	}

	// Case 5: relocate inside the arena. Undo the partial coalesce from
	// case 3 if it changed h's boundary, then allocate fresh.
	if h.size != origSize {
		a.splitBlock(h, a.footprint(origSize))
	}

	newHeader := a.brkAllocate(payload)
	newPtr := a.payloadOf(newHeader)
	copyBytes(newPtr, ptr, min(origSize, payload))
	a.brkFree(h)

	return newPtr
}

// extendBreak extends the data segment by delta bytes. A kernel refusal is
// fatal (spec.md §4.5): there is no retry and no partial success.
func (a *Allocator) extendBreak(delta uintptr) unsafe.Pointer {
	base, err := extendDataSegment(delta)
	if err != nil {
		fatal("brk", err)
	}

	return base
}

// mapPages obtains a fresh anonymous mapping of size bytes, fatal on
// failure.
func (a *Allocator) mapPages(size uintptr) unsafe.Pointer {
	base, err := mapAnonymousPages(size)
	if err != nil {
		fatal("mmap", err)
	}

	return base
}

// unmapPages releases a mapping obtained from mapPages, fatal on failure.
func (a *Allocator) unmapPages(base unsafe.Pointer, size uintptr) {
	if err := munmapRegion(base, size); err != nil {
		fatal("munmap", err)
	}
}

// fatal reports an unrecoverable kernel failure and terminates the
// process, the Go equivalent of osmem.c's DIE macro: there is no soft
// failure mode for "the kernel refused to give us memory".
func fatal(op string, err error) {
	fmt.Fprintln(os.Stderr, errors.KernelFailure(op, err).Error())
	os.Exit(1)
}

// Stats summarizes the allocator's current state, for tests and the
// osmembench command. It is a read-only scan, not a Non-goal debug
// instrumentation feature (no canaries, no poisoning) — it exists because
// the testable properties of spec.md §8 (monotonic arena footprint,
// no-adjacent-free invariant) need something to observe.
type Stats struct {
	ArenaFootprint   uintptr
	ArenaFreeBytes   uintptr
	ArenaBlockCount  int
	MappedBlockCount int
	MappedBytes      uintptr
}

// Stats walks both lists and reports their current shape.
func (a *Allocator) Stats() Stats {
	var s Stats

	for cur := a.heapStart; cur != nil; cur = cur.next {
		fp := a.footprint(cur.size)
		s.ArenaFootprint += fp
		s.ArenaBlockCount++

		if cur.status == statusFree {
			s.ArenaFreeBytes += cur.size
		}
	}

	for cur := a.mmapStart; cur != nil; cur = cur.next {
		s.MappedBlockCount++
		s.MappedBytes += a.footprint(cur.size)
	}

	return s
}

// global is the default, process-wide allocator instance backing the
// package-level convenience functions below.
var global = New()

// Alloc allocates size bytes using the default allocator.
func Alloc(size uintptr) unsafe.Pointer { return global.Alloc(size) }

// Free releases a pointer obtained from Alloc, Calloc, or Realloc on the
// default allocator.
func Free(ptr unsafe.Pointer) { global.Free(ptr) }

// Calloc allocates and zeroes nmemb*size bytes using the default allocator.
func Calloc(nmemb, size uintptr) unsafe.Pointer { return global.Calloc(nmemb, size) }

// Realloc resizes a pointer owned by the default allocator.
func Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer { return global.Realloc(ptr, size) }

// GetStats reports the default allocator's current state.
func GetStats() Stats { return global.Stats() }

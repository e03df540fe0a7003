package allocator

// This file implements the brk arena: a singly linked list of blocks
// carved out of one contiguous, monotonically growing data-segment
// extension. It is grounded directly on original_source/osmem.c's
// request_space/find_best_fit/split_block/coalesce_blocks, generalized
// behind the Allocator receiver instead of package globals.

// initHeap performs the one-time preallocation described in spec.md §3
// "Lifecycle": extend the data segment by InitialHeap and install the
// extension as a single FREE block.
func (a *Allocator) initHeap() {
	base := a.extendBreak(a.cfg.InitialHeap)

	block := (*blockHeader)(base)
	block.size = a.cfg.InitialHeap - a.metaSize
	block.status = statusFree
	block.next = nil

	a.heapStart = block
}

// canCoalesce reports whether h is FREE and immediately followed by another
// FREE block.
func canCoalesce(h *blockHeader) bool {
	return h.status == statusFree && h.next != nil && h.next.status == statusFree
}

// coalesceOnce absorbs h's successor into h, once, if both are FREE.
func coalesceOnce(a *Allocator, h *blockHeader) bool {
	if !canCoalesce(h) {
		return false
	}

	next := h.next
	h.size += a.footprint(next.size)
	h.next = next.next

	return true
}

// coalesceForward absorbs as many forward FREE neighbors as possible.
// Backward coalescing is never performed directly; a free predecessor picks
// up a freed block on its own turn through bestFit's sweep (spec.md §4.2
// "Coalescing").
func (a *Allocator) coalesceForward(h *blockHeader) {
	for coalesceOnce(a, h) {
	}
}

// bestFit scans the arena from heapStart, coalescing every block it visits
// before considering it, and returns the smallest FREE block whose
// footprint satisfies blockSize (ties go to the first one found), along
// with the last block visited (the arena tail, needed for growth).
func (a *Allocator) bestFit(blockSize uintptr) (best, tail *blockHeader) {
	for cur := a.heapStart; cur != nil; cur = cur.next {
		a.coalesceForward(cur)

		if cur.status == statusFree && a.footprint(cur.size) >= blockSize {
			if best == nil || cur.size < best.size {
				best = cur
			}
		}

		tail = cur
	}

	return best, tail
}

// splitBlock divides h into an ALLOC-sized prefix of footprint blockSize
// and a FREE remainder, inserted immediately after h in the list. Matches
// osmem.c's split_block exactly, remainder header included even when that
// leaves fewer than META bytes of remainder payload (see SPEC_FULL.md §5).
func (a *Allocator) splitBlock(h *blockHeader, blockSize uintptr) {
	remainder := (*blockHeader)(addPointer(h, blockSize))
	remainder.size = h.size - blockSize
	remainder.status = statusFree
	remainder.next = h.next

	h.size = blockSize - a.metaSize
	h.next = remainder
}

// splitIfPossible splits h when its payload exceeds the requested
// footprint. This is osmem.c's `if (block->size > blk_size)` check,
// comparing a payload against a footprint — spec.md §9 flags this as an
// open question rather than a clear bug, and this implementation follows
// the source rather than "fixing" it.
func (a *Allocator) splitIfPossible(h *blockHeader, requestedFootprint uintptr) {
	if h.size > requestedFootprint {
		a.splitBlock(h, requestedFootprint)
	}
}

// growArena extends the arena to provide a block of the given footprint.
// If tail is FREE, the extension is folded into it in place; otherwise (or
// if the arena has no tail yet) a brand-new ALLOC block is appended.
func (a *Allocator) growArena(tail *blockHeader, need uintptr) *blockHeader {
	if tail != nil && tail.status == statusFree {
		delta := need - a.footprint(tail.size)
		a.extendBreak(delta)
		tail.size += delta
		tail.status = statusAlloc

		return tail
	}

	base := a.extendBreak(need)

	block := (*blockHeader)(base)
	block.size = need - a.metaSize
	block.status = statusAlloc
	block.next = nil

	if tail != nil {
		tail.next = block
	} else {
		a.heapStart = block
	}

	return block
}

// brkAllocate is the brk-backend entry point: best-fit search, splitting
// the winner, or growing the arena when nothing fits.
func (a *Allocator) brkAllocate(payload uintptr) *blockHeader {
	if a.heapStart == nil {
		a.initHeap()
	}

	reqFootprint := a.footprint(payload)

	best, tail := a.bestFit(reqFootprint)
	if best == nil {
		return a.growArena(tail, reqFootprint)
	}

	best.status = statusAlloc
	a.splitIfPossible(best, reqFootprint)

	return best
}

// reachable reports whether h is a live node of the brk arena. An alien
// pointer or a block that somehow escaped the list fails this check.
func (a *Allocator) reachable(h *blockHeader) bool {
	for cur := a.heapStart; cur != nil; cur = cur.next {
		if cur == h {
			return true
		}
	}

	return false
}

// brkFree marks h FREE and coalesces it forward. Alien pointers and double
// frees are silently ignored, per spec.md §4.2 "Free".
func (a *Allocator) brkFree(h *blockHeader) {
	if !a.reachable(h) {
		return
	}

	h.status = statusFree
	a.coalesceForward(h)
}

package allocator

import "unsafe"

// The map registry is a singly linked list of standalone page-mapped
// blocks, unordered, existing only so Free can find and unlink a block by
// identity. It never participates in best-fit search — MAPPED blocks are
// never split or coalesced (spec.md §4.3). The mmap/munmap calls themselves
// are grounded on other_examples' buddy allocator (alewtschuk-balloc),
// which maps its whole pool the same way and unmaps it by recasting the
// base pointer to a byte slice of the exact size.

// mmapAllocate obtains a fresh anonymous mapping sized to hold payload
// bytes and pushes it onto the registry.
func (a *Allocator) mmapAllocate(payload uintptr) *blockHeader {
	footprint := a.footprint(payload)

	base := a.mapPages(footprint)

	block := (*blockHeader)(base)
	block.size = payload
	block.status = statusMapped
	block.next = a.mmapStart

	a.mmapStart = block

	return block
}

// mmapFree locates h in the registry by identity, unlinks it, and unmaps
// its exact footprint. A miss (alien pointer) is a silent no-op.
func (a *Allocator) mmapFree(h *blockHeader) {
	var prev *blockHeader

	for cur := a.mmapStart; cur != nil; cur = cur.next {
		if cur == h {
			if prev != nil {
				prev.next = cur.next
			} else {
				a.mmapStart = cur.next
			}

			a.unmapPages(unsafe.Pointer(cur), a.footprint(cur.size))

			return
		}

		prev = cur
	}
}

//go:build linux

package allocator

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// The allocator treats the kernel as a black box offering four primitives:
// extend the data segment, map anonymous pages, unmap pages, and query the
// page size. They are implemented here for real with golang.org/x/sys/unix
// rather than mocked, following the same direct-syscall style as
// other_examples' buddy allocator (balloc.go), which maps its whole arena
// with unix.Mmap up front.
//
// Go's own runtime does not use brk on Linux — it gets its memory from
// mmap — so driving the break directly here does not fight the Go heap.

// extendDataSegment grows the process break by delta bytes and returns the
// address of the newly available region (the previous break), mirroring
// sbrk(2) built on top of the raw brk(2) syscall.
func extendDataSegment(delta uintptr) (unsafe.Pointer, error) {
	cur, _, errno := unix.Syscall(unix.SYS_BRK, 0, 0, 0)
	if errno != 0 {
		return nil, errno
	}

	want := cur + delta

	got, _, errno := unix.Syscall(unix.SYS_BRK, want, 0, 0)
	if errno != 0 {
		return nil, errno
	}

	if got < want {
		return nil, unix.ENOMEM
	}

	return unsafe.Pointer(cur), nil
}

// mapAnonymousPages obtains a private, anonymous, read-write mapping of
// exactly size bytes.
func mapAnonymousPages(size uintptr) (unsafe.Pointer, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}

	return unsafe.Pointer(&data[0]), nil
}

// munmapRegion releases a mapping previously obtained from mapAnonymousPages.
func munmapRegion(base unsafe.Pointer, size uintptr) error {
	return unix.Munmap(unsafe.Slice((*byte)(base), size))
}

// osPageSize reports the kernel's page size.
func osPageSize() uintptr {
	return uintptr(unix.Getpagesize())
}

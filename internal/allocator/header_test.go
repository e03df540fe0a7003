package allocator

import (
	"testing"
	"unsafe"
)

func TestAlignUp(t *testing.T) {
	cases := []struct{ n, align, want uintptr }{
		{0, 8, 0},
		{1, 8, 8},
		{7, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{128 * 1024, 8, 128 * 1024},
	}

	for _, c := range cases {
		if got := alignUp(c.n, c.align); got != c.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", c.n, c.align, got, c.want)
		}
	}
}

func TestHeaderPayloadRoundTrip(t *testing.T) {
	a := New()

	ptr := a.Alloc(100)
	if ptr == nil {
		t.Fatal("Alloc(100) returned nil")
	}
	defer a.Free(ptr)

	if uintptr(ptr)%a.cfg.Alignment != 0 {
		t.Fatalf("payload pointer %p is not %d-aligned", ptr, a.cfg.Alignment)
	}

	h := a.headerOf(ptr)
	if got := a.payloadOf(h); got != ptr {
		t.Fatalf("payloadOf(headerOf(ptr)) = %p, want %p", got, ptr)
	}

	if h.status != statusAlloc {
		t.Fatalf("status = %v, want ALLOC", h.status)
	}
}

func TestFootprintIsAligned(t *testing.T) {
	a := New()
	if a.metaSize%a.cfg.Alignment != 0 {
		t.Fatalf("META = %d is not a multiple of %d", a.metaSize, a.cfg.Alignment)
	}

	for n := uintptr(1); n < 64; n++ {
		payload := a.align(n)
		if a.footprint(payload)%a.cfg.Alignment != 0 {
			t.Errorf("footprint(%d) not aligned", payload)
		}
	}
}

func TestZeroAndCopyBytes(t *testing.T) {
	var buf [16]byte
	for i := range buf {
		buf[i] = 0xAA
	}

	zeroBytes(unsafe.Pointer(&buf[0]), 16)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %x, want 0 after zeroBytes", i, b)
		}
	}

	src := [4]byte{1, 2, 3, 4}
	var dst [4]byte
	copyBytes(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), 4)
	if dst != src {
		t.Fatalf("copyBytes produced %v, want %v", dst, src)
	}
}

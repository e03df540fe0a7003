// Command osmembench drives the allocator through a synthetic workload and
// reports the shape it leaves behind: arena footprint, live block counts,
// and mapped-registry usage. It exists to exercise Alloc/Free/Calloc/Realloc
// end to end outside of the test suite, the way orizon-config exercises its
// own package from a small flag-driven main.
package main

import (
	"flag"
	"fmt"
	"os"
	"unsafe"

	"github.com/go-mem/osmem/internal/allocator"
)

func main() {
	var (
		count        int
		minSize      int
		maxSize      int
		mmapSize     int
		growProbePct int
		verbose      bool
	)

	flag.IntVar(&count, "count", 64, "number of small allocations to cycle through")
	flag.IntVar(&minSize, "min", 16, "minimum payload size in bytes for small allocations")
	flag.IntVar(&maxSize, "max", 512, "maximum payload size in bytes for small allocations")
	flag.IntVar(&mmapSize, "mmap-size", 256*1024, "payload size in bytes for the map-registry allocation")
	flag.IntVar(&growProbePct, "grow-every", 8, "grow every Nth small block via Realloc")
	flag.BoolVar(&verbose, "verbose", false, "print per-step allocator stats")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Drives the allocator through allocate/free/resize traffic and reports its final shape.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if minSize <= 0 || maxSize < minSize {
		fmt.Fprintln(os.Stderr, "invalid -min/-max: need 0 < min <= max")
		os.Exit(2)
	}

	a := allocator.New()

	ptrs := make([]unsafe.Pointer, 0, count)
	span := maxSize - minSize + 1

	for i := 0; i < count; i++ {
		size := uintptr(minSize + i%span)
		ptr := a.Alloc(size)
		if ptr == nil {
			fmt.Fprintf(os.Stderr, "allocation #%d of %d bytes failed\n", i, size)
			os.Exit(1)
		}
		ptrs = append(ptrs, ptr)

		if growProbePct > 0 && i%growProbePct == 0 {
			grown := a.Realloc(ptr, size*2)
			if grown == nil {
				fmt.Fprintf(os.Stderr, "resize of allocation #%d failed\n", i)
				os.Exit(1)
			}
			ptrs[len(ptrs)-1] = grown
		}

		if verbose {
			printStats(a, fmt.Sprintf("after alloc #%d", i))
		}
	}

	big := a.Calloc(1, uintptr(mmapSize))
	if big == nil {
		fmt.Fprintln(os.Stderr, "zero-init allocation failed")
		os.Exit(1)
	}

	for i, ptr := range ptrs {
		if i%2 == 0 {
			a.Free(ptr)
		}
	}

	a.Free(big)

	for i, ptr := range ptrs {
		if i%2 != 0 {
			a.Free(ptr)
		}
	}

	printStats(a, "final")
}

func printStats(a *allocator.Allocator, label string) {
	s := a.Stats()
	fmt.Printf("%-20s arena_footprint=%d arena_free=%d arena_blocks=%d mapped_blocks=%d mapped_bytes=%d\n",
		label, s.ArenaFootprint, s.ArenaFreeBytes, s.ArenaBlockCount, s.MappedBlockCount, s.MappedBytes)
}

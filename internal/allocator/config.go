package allocator

// Default tuning constants from spec: the alignment unit, the size of the
// first data-segment extension (also the default mmap threshold), and the
// mmap threshold itself. Both default to 128 KiB, the same constant, for
// the reason spec.md gives: the preallocation exists to amortize small
// allocations, which is only worthwhile if most of what goes through the
// brk backend fits inside it.
const (
	DefaultAlignment     uintptr = 8
	DefaultInitialHeap   uintptr = 128 * 1024
	DefaultMMAPThreshold uintptr = 128 * 1024
)

// Config holds the handful of knobs that are safe to vary without touching
// the allocator's invariants. There is no per-call configuration surface:
// the allocator is process-global state (see Allocator), so Config only
// shapes the single default instance or an instance built for testing.
type Config struct {
	Alignment     uintptr
	InitialHeap   uintptr
	MMAPThreshold uintptr
}

// Option configures an Allocator at construction time.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		Alignment:     DefaultAlignment,
		InitialHeap:   DefaultInitialHeap,
		MMAPThreshold: DefaultMMAPThreshold,
	}
}

// WithAlignment overrides the alignment unit (must be a power of two).
func WithAlignment(n uintptr) Option {
	return func(c *Config) { c.Alignment = n }
}

// WithInitialHeap overrides the size of the first data-segment extension.
func WithInitialHeap(n uintptr) Option {
	return func(c *Config) { c.InitialHeap = n }
}

// WithMMAPThreshold overrides the footprint boundary routing allocations to
// the map-registry backend.
func WithMMAPThreshold(n uintptr) Option {
	return func(c *Config) { c.MMAPThreshold = n }
}

package offheap

// Allocator is the allocation contract consumed by RefCount and Handle. It
// is injected rather than global so that tests can substitute an
// instrumented implementation.
//
// Required guarantees:
//   - returned blocks are zero-initialized;
//   - the base address of every returned block is a multiple of
//     RefCellPairAlign (the cell mode tagging depends on it);
//   - Free accepts exactly a pointer previously returned by AllocZeroed,
//     at most once.
type Allocator interface {
	AllocZeroed(size int) (uintptr, error)
	Free(uPtr uintptr)
}

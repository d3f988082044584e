package offheap

import "sync/atomic"

// RefCount is an allocation-backed reference count over one cell of a pair
// block. The encoding is zero-based: the cell's value equals the number of
// live references minus one, so a freshly allocated zero cell already
// represents one owner.
type RefCount struct {
	uCell RefCellUPtr
}

// Init allocates a zeroed pair block and picks the cell matching mode.
// Allocation failure is returned as-is; the RefCount stays uninited.
func (p *RefCount) Init(alloc Allocator, mode ShareMode) error {
	var (
		uPair uintptr
		err   error
	)

	uPair, err = alloc.AllocZeroed(RefCellPairSize)
	if err != nil {
		return err
	}

	if mode == ShareModeUnsynced {
		uPair += uintptr(RefCellSize)
	}
	p.uCell = RefCellUPtr(uPair)
	return nil
}

// InitFrom applies the copy rules: alias the source cell (and increment)
// when its discipline can serve the demand, fork a fresh synchronized zero
// cell when an unsynchronized source must become cross-thread-shareable,
// no-op when the source is uninited. A fork leaves the source untouched.
func (p *RefCount) InitFrom(src *RefCount, demand SharingDemand, alloc Allocator) error {
	if !src.IsInited() {
		p.uCell = 0
		return nil
	}

	if !src.IsShared() && demand == DemandShared {
		return p.Init(alloc, ShareModeSynced)
	}

	p.uCell = src.uCell
	p.Incr()
	return nil
}

func (p *RefCount) IsInited() bool { return p.uCell != 0 }

func (p *RefCount) IsShared() bool { return p.uCell.IsShared() }

func (p *RefCount) Incr() {
	if p.uCell.IsShared() {
		atomic.AddUint32(p.uCell.Ptr(), 1)
	} else {
		*p.uCell.Ptr()++
	}
}

// DecrAndCheckLast drops one reference and reports whether it was the last.
// With the zero-based encoding the last decrement is the one that wraps
// below zero; the atomic add guarantees exactly one caller per cell observes
// the wrap.
func (p *RefCount) DecrAndCheckLast() bool {
	if p.uCell.IsShared() {
		return atomic.AddUint32(p.uCell.Ptr(), ^uint32(0)) == ^uint32(0)
	}

	if *p.uCell.Ptr() == 0 {
		return true
	}
	*p.uCell.Ptr()--
	return false
}

// IsUnique reports whether no other live reference aliases this cell.
func (p *RefCount) IsUnique() bool {
	return p.Value() == 0
}

func (p *RefCount) Value() uint32 {
	if p.uCell.IsShared() {
		return atomic.LoadUint32(p.uCell.Ptr())
	}
	return *p.uCell.Ptr()
}

// Dealloc returns the cell's pair block to the allocator. Only the caller
// that observed DecrAndCheckLast() == true may invoke it.
func (p *RefCount) Dealloc(alloc Allocator) {
	uPair := uintptr(p.uCell) &^ uintptr(RefCellPairAlign-1)
	alloc.Free(uPair)
	p.uCell = 0
}

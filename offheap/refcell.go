package offheap

import "unsafe"

// ShareMode selects the increment discipline of a counter cell. It is fixed
// when the cell is allocated and never changes for a live cell: mixing plain
// and atomic access on the same memory is undefined.
type ShareMode int32

const (
	ShareModeSynced ShareMode = iota
	ShareModeUnsynced
)

// SharingDemand describes what the new reference produced by a copy will be
// used as. It decides between aliasing the source cell and forking a fresh
// one.
type SharingDemand int32

const (
	// DemandReadOnly is a read-only alias of the source.
	DemandReadOnly SharingDemand = iota
	// DemandExclusive is another owner confined to the source's thread.
	DemandExclusive
	// DemandShared is an owner that may be touched from multiple threads.
	DemandShared
)

type RefCellUPtr uintptr

func (u RefCellUPtr) Ptr() *uint32 { return (*uint32)(unsafe.Pointer(u)) }

// IsShared recovers the cell's discipline from its address: the synchronized
// cell of a pair sits at the 8-aligned base, the unsynchronized one at
// base+RefCellSize.
func (u RefCellUPtr) IsShared() bool {
	return uintptr(u)&uintptr(RefCellSize) == 0
}

package offheap

import "unsafe"

const (
	// RefCellSize is the width of one counter cell.
	RefCellSize = int(unsafe.Sizeof(uint32(0)))

	// Counter cells are allocated in pairs so that the sharing mode of a
	// cell is recoverable from its address alone: the synchronized cell
	// sits at the pair's 8-aligned base, the unsynchronized cell at
	// base+RefCellSize.
	RefCellPairSize  = 2 * RefCellSize
	RefCellPairAlign = 8

	DefaultPerMmapBytesSize = 64 * 1024
)

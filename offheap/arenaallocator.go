package offheap

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/VictoriaMetrics/metrics"
	"github.com/cockroachdb/errors"
)

type blockState struct {
	sizeClass int
	freed     bool
}

// ArenaAllocator hands out 8-aligned zeroed blocks carved from anonymous
// mmap regions: atomic bump allocation over the current region, mutex-guarded
// region growth, per-size free lists threading the next pointer through the
// freed block's first word. Freed blocks are re-zeroed on reuse to keep the
// AllocZeroed contract.
//
// Freeing a pointer twice, or a pointer the arena never returned, is an
// unrecoverable defect and panics.
type ArenaAllocator struct {
	perMmapBytesSize int

	regionsMutex     sync.Mutex
	currentMmapBytes atomic.Pointer[mmapbytes]
	mmapBytesList    []*mmapbytes

	blocksMutex sync.Mutex
	freeBlocks  map[int]uintptr
	blockStates map[uintptr]blockState

	mappedBytes int64
	closed      int32

	allocBlocksMetric *metrics.Counter
	freeBlocksMetric  *metrics.Counter
	mmapRegionsMetric *metrics.Counter
}

func (p *ArenaAllocator) Init(perMmapBytesSize int) error {
	var err error

	if perMmapBytesSize <= 0 {
		perMmapBytesSize = DefaultPerMmapBytesSize
	}
	p.perMmapBytesSize = perMmapBytesSize
	p.freeBlocks = make(map[int]uintptr)
	p.blockStates = make(map[uintptr]blockState)

	p.allocBlocksMetric = metrics.GetOrCreateCounter("offheap_arena_blocks_allocated_total")
	p.freeBlocksMetric = metrics.GetOrCreateCounter("offheap_arena_blocks_freed_total")
	p.mmapRegionsMetric = metrics.GetOrCreateCounter("offheap_arena_mmap_regions_total")

	err = p.growMmapBytesList(p.perMmapBytesSize)
	if err != nil {
		return err
	}

	return nil
}

// caller must hold regionsMutex, except during Init.
func (p *ArenaAllocator) growMmapBytesList(size int) error {
	mmapBytes, err := AllocMmapBytes(size)
	if err != nil {
		return err
	}
	p.mmapBytesList = append(p.mmapBytesList, &mmapBytes)
	p.currentMmapBytes.Store(&mmapBytes)
	atomic.AddInt64(&p.mappedBytes, int64(size))
	p.mmapRegionsMetric.Inc()
	return nil
}

// alignBlockSize rounds size up to a multiple of RefCellPairAlign, which
// both keeps the bump pointer aligned and leaves room for the free-list
// link word.
func alignBlockSize(size int) int {
	if size <= 0 {
		size = 1
	}
	return (size + RefCellPairAlign - 1) &^ (RefCellPairAlign - 1)
}

func (p *ArenaAllocator) AllocZeroed(size int) (uintptr, error) {
	var (
		uBlock uintptr
		err    error
	)

	if atomic.LoadInt32(&p.closed) != 0 {
		return 0, ErrArenaClosed
	}

	sizeClass := alignBlockSize(size)

	uBlock = p.takeFreeBlock(sizeClass)
	if uBlock != 0 {
		memZero(uBlock, sizeClass)
	} else {
		uBlock, err = p.mallocBlock(sizeClass)
		if err != nil {
			return 0, err
		}
	}

	p.blocksMutex.Lock()
	p.blockStates[uBlock] = blockState{sizeClass: sizeClass}
	p.blocksMutex.Unlock()

	p.allocBlocksMetric.Inc()
	return uBlock, nil
}

func (p *ArenaAllocator) takeFreeBlock(sizeClass int) uintptr {
	p.blocksMutex.Lock()
	uBlock := p.freeBlocks[sizeClass]
	if uBlock != 0 {
		p.freeBlocks[sizeClass] = *(*uintptr)(unsafe.Pointer(uBlock))
	}
	p.blocksMutex.Unlock()
	return uBlock
}

func (p *ArenaAllocator) mallocBlock(sizeClass int) (uintptr, error) {
	for {
		currentMmapBytes := p.currentMmapBytes.Load()
		end := atomic.AddUintptr(&currentMmapBytes.addrStart, uintptr(sizeClass))
		if end <= currentMmapBytes.addrEnd {
			return end - uintptr(sizeClass), nil
		}

		// region exhausted; a failed bump leaves addrStart past addrEnd,
		// which only wastes the tail. Grow under the mutex, retry on the
		// new region; skip growing if another caller already replaced it.
		p.regionsMutex.Lock()
		if p.currentMmapBytes.Load() == currentMmapBytes {
			growSize := p.perMmapBytesSize
			if sizeClass > growSize {
				growSize = sizeClass
			}
			err := p.growMmapBytesList(growSize)
			if err != nil {
				p.regionsMutex.Unlock()
				return 0, err
			}
		}
		p.regionsMutex.Unlock()
	}
}

func (p *ArenaAllocator) Free(uBlock uintptr) {
	if uBlock == 0 {
		return
	}

	p.blocksMutex.Lock()
	state, exists := p.blockStates[uBlock]
	if !exists {
		p.blocksMutex.Unlock()
		panic(errors.Wrapf(ErrBadFreePointer, "addr 0x%x", uBlock))
	}
	if state.freed {
		p.blocksMutex.Unlock()
		panic(errors.Wrapf(ErrDoubleFree, "addr 0x%x", uBlock))
	}
	state.freed = true
	p.blockStates[uBlock] = state
	*(*uintptr)(unsafe.Pointer(uBlock)) = p.freeBlocks[state.sizeClass]
	p.freeBlocks[state.sizeClass] = uBlock
	p.blocksMutex.Unlock()

	p.freeBlocksMetric.Inc()
}

type ArenaStats struct {
	LiveBlocksNum int
	MappedBytes   int64
	RegionsNum    int
}

func (p *ArenaAllocator) Stats() ArenaStats {
	var stats ArenaStats

	p.blocksMutex.Lock()
	for _, state := range p.blockStates {
		if !state.freed {
			stats.LiveBlocksNum++
		}
	}
	p.blocksMutex.Unlock()

	p.regionsMutex.Lock()
	stats.RegionsNum = len(p.mmapBytesList)
	p.regionsMutex.Unlock()

	stats.MappedBytes = atomic.LoadInt64(&p.mappedBytes)
	return stats
}

// Close unmaps every region. The caller must have released all live blocks;
// any block handed out by this arena is invalid afterwards.
func (p *ArenaAllocator) Close() error {
	var err error

	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return nil
	}

	p.regionsMutex.Lock()
	for _, mmapBytes := range p.mmapBytesList {
		releaseErr := mmapBytes.Release()
		if err == nil {
			err = releaseErr
		}
	}
	p.mmapBytesList = nil
	p.currentMmapBytes.Store(nil)
	p.regionsMutex.Unlock()

	p.blocksMutex.Lock()
	p.freeBlocks = make(map[int]uintptr)
	p.blockStates = make(map[uintptr]blockState)
	p.blocksMutex.Unlock()

	return err
}

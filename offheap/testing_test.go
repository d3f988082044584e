package offheap

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

var errMockAlloc = errors.New("offheap: mock allocation failure")

// MockAllocator wraps an ArenaAllocator and tracks every block it hands out:
// live blocks are mirrored in a Bitmap keyed by allocation order, so tests
// can assert exact alloc/free pairing. Setting failAllocsAfter >= 0 makes
// AllocZeroed fail after that many more successes, for allocation-failure
// paths. Not safe for concurrent use.
type MockAllocator struct {
	arena           ArenaAllocator
	allocsNum       int
	freesNum        int
	failAllocsAfter int
	liveSlots       Bitmap
	slotOf          map[uintptr]int32
}

func (p *MockAllocator) Init(t *testing.T) {
	require.NoError(t, p.arena.Init(4096))
	p.slotOf = make(map[uintptr]int32)
	p.failAllocsAfter = -1
	t.Cleanup(func() {
		require.NoError(t, p.arena.Close())
	})
}

func (p *MockAllocator) AllocZeroed(size int) (uintptr, error) {
	if p.failAllocsAfter == 0 {
		return 0, errMockAlloc
	}
	if p.failAllocsAfter > 0 {
		p.failAllocsAfter--
	}

	uBlock, err := p.arena.AllocZeroed(size)
	if err != nil {
		return 0, err
	}

	slot := int32(p.allocsNum)
	p.allocsNum++
	p.slotOf[uBlock] = slot
	p.liveSlots.Set(slot)
	return uBlock, nil
}

func (p *MockAllocator) Free(uPtr uintptr) {
	slot, exists := p.slotOf[uPtr]
	if exists {
		p.liveSlots.UnSet(slot)
		delete(p.slotOf, uPtr)
		p.freesNum++
	}
	p.arena.Free(uPtr)
}

func (p *MockAllocator) IsLive(uPtr uintptr) bool {
	slot, exists := p.slotOf[uPtr]
	return exists && p.liveSlots.Has(slot)
}

func (p *MockAllocator) LiveNum() int {
	return p.liveSlots.Count()
}

package offheap

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAlignment(t *testing.T) {
	var arena ArenaAllocator
	require.NoError(t, arena.Init(0))
	defer func() {
		require.NoError(t, arena.Close())
	}()

	var blocks []uintptr
	for _, size := range []int{1, 4, 8, 9, 16, 100, 4097} {
		uBlock, err := arena.AllocZeroed(size)
		require.NoError(t, err)
		assert.Zero(t, uBlock%uintptr(RefCellPairAlign), "size %d", size)
		blocks = append(blocks, uBlock)
	}

	for _, uBlock := range blocks {
		arena.Free(uBlock)
	}
	assert.Zero(t, arena.Stats().LiveBlocksNum)
}

func TestArenaZeroedReuse(t *testing.T) {
	var arena ArenaAllocator
	require.NoError(t, arena.Init(0))
	defer func() {
		require.NoError(t, arena.Close())
	}()

	uBlock, err := arena.AllocZeroed(64)
	require.NoError(t, err)

	s := unsafe.Slice((*byte)(unsafe.Pointer(uBlock)), 64)
	for i := range s {
		s[i] = 0xaa
	}
	arena.Free(uBlock)

	// the free list is LIFO per size class, so the same block comes back
	uReused, err := arena.AllocZeroed(64)
	require.NoError(t, err)
	assert.Equal(t, uBlock, uReused)

	s = unsafe.Slice((*byte)(unsafe.Pointer(uReused)), 64)
	for i := range s {
		assert.Zero(t, s[i], "byte %d not re-zeroed", i)
	}
	arena.Free(uReused)
}

func TestArenaDoubleFree(t *testing.T) {
	var arena ArenaAllocator
	require.NoError(t, arena.Init(0))
	defer func() {
		require.NoError(t, arena.Close())
	}()

	uBlock, err := arena.AllocZeroed(8)
	require.NoError(t, err)
	arena.Free(uBlock)

	assert.PanicsWithError(t, errors.Wrapf(ErrDoubleFree, "addr 0x%x", uBlock).Error(), func() {
		arena.Free(uBlock)
	})

	assert.Panics(t, func() {
		arena.Free(uintptr(0xdeadbeef0))
	})
}

func TestArenaGrowth(t *testing.T) {
	var arena ArenaAllocator
	require.NoError(t, arena.Init(64))
	defer func() {
		require.NoError(t, arena.Close())
	}()

	var blocks []uintptr
	for i := 0; i < 64; i++ {
		uBlock, err := arena.AllocZeroed(32)
		require.NoError(t, err)
		blocks = append(blocks, uBlock)
	}

	// a request larger than the growth step gets a dedicated region
	uBig, err := arena.AllocZeroed(1 << 16)
	require.NoError(t, err)
	blocks = append(blocks, uBig)

	stats := arena.Stats()
	assert.Greater(t, stats.RegionsNum, 1)
	assert.Equal(t, len(blocks), stats.LiveBlocksNum)

	for _, uBlock := range blocks {
		arena.Free(uBlock)
	}
	assert.Zero(t, arena.Stats().LiveBlocksNum)
}

// Concurrent allocations must each get a private block, including while the
// arena is growing regions under contention.
func TestArenaConcurrentAlloc(t *testing.T) {
	var arena ArenaAllocator
	require.NoError(t, arena.Init(64))
	defer func() {
		require.NoError(t, arena.Close())
	}()

	const workersNum = 8
	const allocsPerWorker = 200

	pool, err := ants.NewPool(workersNum)
	require.NoError(t, err)

	results := make([][]uintptr, workersNum)
	workerErrs := make([]error, workersNum)
	var wg sync.WaitGroup
	for i := 0; i < workersNum; i++ {
		i := i
		wg.Add(1)
		require.NoError(t, pool.Submit(func() {
			defer wg.Done()
			blocks := make([]uintptr, 0, allocsPerWorker)
			for j := 0; j < allocsPerWorker; j++ {
				uBlock, allocErr := arena.AllocZeroed(32)
				if allocErr != nil {
					workerErrs[i] = allocErr
					return
				}
				blocks = append(blocks, uBlock)
			}
			results[i] = blocks
		}))
	}
	wg.Wait()
	pool.Release()

	seen := make(map[uintptr]struct{})
	for i, blocks := range results {
		require.NoError(t, workerErrs[i])
		require.Len(t, blocks, allocsPerWorker)
		for _, uBlock := range blocks {
			assert.Zero(t, uBlock%uintptr(RefCellPairAlign))
			_, dup := seen[uBlock]
			require.False(t, dup, "block 0x%x handed out twice", uBlock)
			seen[uBlock] = struct{}{}
		}
	}

	for uBlock := range seen {
		arena.Free(uBlock)
	}
	assert.Zero(t, arena.Stats().LiveBlocksNum)
}

func TestArenaClosed(t *testing.T) {
	var arena ArenaAllocator
	require.NoError(t, arena.Init(0))
	require.NoError(t, arena.Close())

	_, err := arena.AllocZeroed(8)
	assert.True(t, errors.Is(err, ErrArenaClosed))

	// Close is idempotent
	require.NoError(t, arena.Close())
}

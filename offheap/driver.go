package offheap

import (
	"go.uber.org/zap"
)

var DefaultDriver Driver

func init() {
	var err error
	err = DefaultDriver.Init(DriverOptions{})
	if err != nil {
		panic(err)
	}
}

type DriverOptions struct {
	// PerMmapBytesSize is the growth step of the backing arena; zero means
	// DefaultPerMmapBytesSize.
	PerMmapBytesSize int
	// Logger defaults to zap.NewNop.
	Logger *zap.Logger
}

// Driver owns an arena and builds Handles and RefCounts on it.
type Driver struct {
	allocator ArenaAllocator
	logger    *zap.Logger
}

func (p *Driver) Init(options DriverOptions) error {
	var err error

	p.logger = options.Logger
	if p.logger == nil {
		p.logger = zap.NewNop()
	}

	err = p.allocator.Init(options.PerMmapBytesSize)
	if err != nil {
		p.logger.Error("offheap arena init failed", zap.Error(err))
		return err
	}

	return nil
}

func (p *Driver) Allocator() Allocator {
	return &p.allocator
}

// NewHandle allocates a zeroed resource of size bytes and binds a Handle
// over it in one step.
func (p *Driver) NewHandle(size int, mode ShareMode) (Handle, error) {
	var (
		handle    Handle
		uResource uintptr
		err       error
	)

	uResource, err = p.allocator.AllocZeroed(size)
	if err != nil {
		p.logger.Error("offheap alloc resource failed",
			zap.Int("size", size), zap.Error(err))
		return handle, err
	}

	err = handle.Init(&p.allocator, uResource, size, mode)
	if err != nil {
		p.allocator.Free(uResource)
		p.logger.Error("offheap alloc refcount failed",
			zap.Int("size", size), zap.Error(err))
		return handle, err
	}

	return handle, nil
}

func (p *Driver) NewRefCount(mode ShareMode) (RefCount, error) {
	var (
		refCount RefCount
		err      error
	)

	err = refCount.Init(&p.allocator, mode)
	if err != nil {
		p.logger.Error("offheap alloc refcount failed", zap.Error(err))
		return refCount, err
	}

	return refCount, nil
}

func (p *Driver) Stats() ArenaStats {
	return p.allocator.Stats()
}

func (p *Driver) Close() error {
	stats := p.allocator.Stats()
	if stats.LiveBlocksNum != 0 {
		p.logger.Warn("offheap driver closing with live blocks",
			zap.Int("liveBlocksNum", stats.LiveBlocksNum))
	}
	return p.allocator.Close()
}

package offheap

// Handle is a reference-counted owner of one off-heap resource block.
// Copies made through InitFrom/Assign either alias the resource and its
// RefCount or, when an unsynchronized allocation must become
// cross-thread-shareable, fork a private clone. Release drops one reference
// and frees resource and counter on the last one.
//
// A Handle is either Unbound (no resource, no counter) or Bound (both set);
// the two fields move together, there is no partial state.
type Handle struct {
	uResource uintptr
	size      int
	refCount  RefCount
	alloc     Allocator
}

// Init binds an already-allocated resource and creates a fresh counter for
// it. Ownership of uResource transfers to the Handle; it must have been
// allocated from alloc. A zero uResource leaves the Handle Unbound. On
// allocation failure the Handle stays Unbound and the resource remains the
// caller's.
func (p *Handle) Init(alloc Allocator, uResource uintptr, size int, mode ShareMode) error {
	var err error

	if uResource == 0 {
		*p = Handle{}
		return nil
	}

	err = p.refCount.Init(alloc, mode)
	if err != nil {
		return err
	}

	p.alloc = alloc
	p.uResource = uResource
	p.size = size
	return nil
}

// InitFrom makes p a new reference to src's resource. An Unbound src yields
// an Unbound p. The fork case clones the resource bytes into a fresh
// allocation with a fresh synchronized counter at zero; src's counter is
// untouched.
func (p *Handle) InitFrom(src *Handle, demand SharingDemand) error {
	if !src.IsInited() {
		*p = Handle{}
		return nil
	}

	if !src.refCount.IsShared() && demand == DemandShared {
		return p.initCloneFrom(src)
	}

	p.alloc = src.alloc
	p.uResource = src.uResource
	p.size = src.size
	p.refCount = src.refCount
	p.refCount.Incr()
	return nil
}

func (p *Handle) initCloneFrom(src *Handle) error {
	var (
		uResource uintptr
		err       error
	)

	uResource, err = src.alloc.AllocZeroed(src.size)
	if err != nil {
		return err
	}
	memCopy(uResource, src.uResource, src.size)

	err = p.refCount.Init(src.alloc, ShareModeSynced)
	if err != nil {
		src.alloc.Free(uResource)
		return err
	}

	p.alloc = src.alloc
	p.uResource = uResource
	p.size = src.size
	return nil
}

// Assign releases p's current reference and adopts src's per the copy
// rules. Assigning a Handle to itself, or to another Handle aliasing the
// same cell, is a no-op. The new reference is taken before the old one is
// dropped, so the operation never double-decrements and never frees a cell
// the source still needs.
func (p *Handle) Assign(src *Handle, demand SharingDemand) error {
	var (
		adopted Handle
		err     error
	)

	if p == src || (p.refCount.IsInited() && p.refCount.uCell == src.refCount.uCell) {
		return nil
	}

	err = adopted.InitFrom(src, demand)
	if err != nil {
		return err
	}

	p.Release()
	*p = adopted
	return nil
}

// Release drops one reference. The decrement that observes the last
// reference frees the resource first and the counter's pair block second;
// nothing may observe the counter after that point. The Handle returns to
// Unbound and may be re-Inited.
func (p *Handle) Release() {
	if !p.IsInited() {
		return
	}

	if p.refCount.DecrAndCheckLast() {
		p.alloc.Free(p.uResource)
		p.refCount.Dealloc(p.alloc)
	}
	*p = Handle{}
}

// Get returns the raw resource pointer without transferring ownership; zero
// for an Unbound Handle.
func (p *Handle) Get() uintptr { return p.uResource }

func (p *Handle) Size() int { return p.size }

func (p *Handle) IsInited() bool { return p.uResource != 0 }

// IsUnique reports whether p is the only live reference to its resource.
// Only meaningful for a Bound Handle.
func (p *Handle) IsUnique() bool { return p.refCount.IsUnique() }

package offheap

import (
	"syscall"
	"unsafe"

	"github.com/cockroachdb/errors"
)

type mmapbytes struct {
	bytes     []byte
	addrStart uintptr
	addrEnd   uintptr
}

func AllocMmapBytes(size int) (mmapbytes, error) {
	var (
		ret mmapbytes
		err error
	)
	prot := syscall.PROT_READ | syscall.PROT_WRITE
	flags := syscall.MAP_ANON | syscall.MAP_PRIVATE

	ret.bytes, err = syscall.Mmap(-1, 0, size, prot, flags)
	if err != nil {
		return ret, errors.Wrapf(ErrMmap, "size %d: %v", size, err)
	}
	ret.addrStart = *((*uintptr)((unsafe.Pointer)(&ret.bytes)))
	ret.addrEnd = ret.addrStart + uintptr(size)
	return ret, nil
}

func (p *mmapbytes) Release() error {
	if p.bytes == nil {
		return nil
	}
	err := syscall.Munmap(p.bytes)
	p.bytes = nil
	p.addrStart = 0
	p.addrEnd = 0
	return err
}

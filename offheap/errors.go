package offheap

import "github.com/cockroachdb/errors"

var (
	ErrMmap           = errors.New("offheap: mmap failed")
	ErrDoubleFree     = errors.New("offheap: double free")
	ErrBadFreePointer = errors.New("offheap: free of unknown pointer")
	ErrArenaClosed    = errors.New("offheap: arena closed")
)

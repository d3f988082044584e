package offheap

import "unsafe"

func memZero(uBlock uintptr, size int) {
	s := unsafe.Slice((*byte)(unsafe.Pointer(uBlock)), size)
	for i := range s {
		s[i] = 0
	}
}

func memCopy(uDst uintptr, uSrc uintptr, size int) {
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uDst)), size),
		unsafe.Slice((*byte)(unsafe.Pointer(uSrc)), size))
}

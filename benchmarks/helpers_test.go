package arena_test

import "unsafe"

func unsafeBytes(ptr unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(ptr), n)
}

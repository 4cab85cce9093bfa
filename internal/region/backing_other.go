//go:build !unix

package region

import "unsafe"

// platformAllocate is the non-unix fallback: golang.org/x/sys has no
// portable anonymous-mapping primitive outside the unix family, so
// platforms like Windows get a heap buffer aligned to the requested
// alignment instead. The
// segment's addressing and locking semantics are identical either way;
// only the source of the backing pages differs.
func platformAllocate(size, alignment uintptr) ([]byte, func(), error) {
	if size == 0 {
		return nil, func() {}, nil
	}

	buf := make([]byte, size+alignment)
	base := uintptr(unsafe.Pointer(&buf[0]))
	aligned := alignUp(base, alignment)
	offset := aligned - base
	sub := buf[offset : offset+size : offset+size]

	return sub, func() {}, nil
}

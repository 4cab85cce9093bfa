//go:build unix

package region

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// platformAllocate backs a segment with an anonymous mmap mapping. This
// replaces the teacher's allocateSystemMemory placeholder (region_alloc.go:
// "In production, this would use mmap() on Unix or VirtualAlloc() on
// Windows") with the real syscall, using the x/sys dependency the teacher
// already carries for exactly this kind of platform call.
func platformAllocate(size, alignment uintptr) ([]byte, func(), error) {
	if size == 0 {
		return nil, func() {}, nil
	}

	pageSize := uintptr(unix.Getpagesize())
	if alignment <= pageSize {
		raw, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
		if err != nil {
			return nil, nil, fmt.Errorf("regiontx: mmap %d bytes: %w", size, err)
		}
		return raw, func() { _ = unix.Munmap(raw) }, nil
	}

	// Alignment wider than a page: over-map and hand back an aligned
	// sub-slice, but keep munmap-ing the full original mapping.
	extra := int(size + alignment)
	raw, err := unix.Mmap(-1, 0, extra, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, nil, fmt.Errorf("regiontx: mmap %d bytes: %w", extra, err)
	}

	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := alignUp(base, alignment)
	offset := aligned - base
	sub := raw[offset : offset+size : offset+size]

	return sub, func() { _ = unix.Munmap(raw) }, nil
}

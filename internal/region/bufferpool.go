package region

import (
	"sync"
)

// sizeClass identifies a pool of interchangeable backing buffers: same
// byte length and same alignment.
type sizeClass struct {
	size      uintptr
	alignment uintptr
}

// pooledBuffer pairs a backing buffer with the platform release function
// that returns its pages to the OS.
type pooledBuffer struct {
	buf  []byte
	free func()
}

// bufferPool recycles segment backing buffers by size class, generalizing
// the teacher's whole-region freeRegions reuse pool (region_alloc.go's
// AllocateRegion/FreeRegion) down to per-segment granularity: repeatedly
// allocating and freeing same-size segments (a common pattern for object
// pools built atop this engine) reuses mmap'd pages instead of mapping and
// unmapping on every transaction.
type bufferPool struct {
	mu      sync.Mutex
	classes map[sizeClass]*bufferQueue
}

const poolClassCapacity = 64

func newBufferPool() *bufferPool {
	return &bufferPool{classes: make(map[sizeClass]*bufferQueue)}
}

func (p *bufferPool) classFor(c sizeClass) *bufferQueue {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.classes[c]
	if !ok {
		q = newBufferQueue(poolClassCapacity)
		p.classes[c] = q
	}
	return q
}

// acquire returns a zeroed buffer of exactly size bytes aligned to
// alignment, and a release function that returns it to the pool (or frees
// it immediately if the pool's class is saturated).
func (p *bufferPool) acquire(size, alignment uintptr) ([]byte, func(), error) {
	c := sizeClass{size: size, alignment: alignment}
	q := p.classFor(c)

	var pb pooledBuffer
	if q.Dequeue(&pb) {
		for i := range pb.buf {
			pb.buf[i] = 0
		}
		return pb.buf, func() { p.release(c, pb) }, nil
	}

	buf, free, err := platformAllocate(size, alignment)
	if err != nil {
		return nil, nil, err
	}
	pb = pooledBuffer{buf: buf, free: free}
	return pb.buf, func() { p.release(c, pb) }, nil
}

func (p *bufferPool) release(c sizeClass, pb pooledBuffer) {
	q := p.classFor(c)
	if !q.Enqueue(pb) {
		pb.free()
	}
}

// destroyAll drains every size class and releases every idle buffer back
// to the OS. Used by Region.Destroy so that, per spec, all segment buffers
// ever created in the region are freed once the region is torn down.
func (p *bufferPool) destroyAll() {
	p.mu.Lock()
	classes := p.classes
	p.classes = make(map[sizeClass]*bufferQueue)
	p.mu.Unlock()

	for _, q := range classes {
		var pb pooledBuffer
		for q.Dequeue(&pb) {
			pb.free()
		}
	}
}

package region

import "sync/atomic"

// segmentIndex is a lock-free hash map from a segment's base address to the
// *Segment itself, giving LocateExact O(1) lookup instead of Locate's binary
// search. It is a specialization of the teacher's generic lock-free map
// (internal/runtime/concurrency) to the one instantiation this package ever
// needs: buckets are singly-linked lists of atomic pointers, values are
// swapped by replacing a node's value box, and deletion is logical (the
// value box goes nil) with a best-effort physical unlink.
type segmentIndex struct {
	buckets []atomic.Pointer[indexNode]
	mask    uint64
}

type indexNode struct {
	key  uintptr
	val  atomic.Pointer[Segment]
	next atomic.Pointer[indexNode]
}

// newSegmentIndex creates an index with bucket count rounded up to the next
// power of two.
func newSegmentIndex(buckets uint64) *segmentIndex {
	n := uint64(1)
	for n < buckets {
		n <<= 1
	}
	return &segmentIndex{
		buckets: make([]atomic.Pointer[indexNode], n),
		mask:    n - 1,
	}
}

func (x *segmentIndex) bucketFor(key uintptr) *atomic.Pointer[indexNode] {
	h := uint64(key) * 0x9E3779B97F4A7C15
	return &x.buckets[h&x.mask]
}

// Load returns the segment based at key, if present.
func (x *segmentIndex) Load(key uintptr) (*Segment, bool) {
	for n := x.bucketFor(key).Load(); n != nil; n = n.next.Load() {
		if n.key == key {
			if seg := n.val.Load(); seg != nil {
				return seg, true
			}
			return nil, false
		}
	}
	return nil, false
}

// Store sets the segment for key, inserting a new bucket entry if absent.
func (x *segmentIndex) Store(key uintptr, seg *Segment) {
	head := x.bucketFor(key)
	for {
		for n := head.Load(); n != nil; n = n.next.Load() {
			if n.key == key {
				n.val.Store(seg)
				return
			}
		}
		fresh := &indexNode{key: key}
		fresh.val.Store(seg)
		old := head.Load()
		fresh.next.Store(old)
		if head.CompareAndSwap(old, fresh) {
			return
		}
	}
}

// Delete removes key from the index, logically first and then with a
// best-effort physical unlink; a failed unlink just means a concurrent
// insert raced ahead of it, which the next Delete or traversal resolves.
func (x *segmentIndex) Delete(key uintptr) {
	head := x.bucketFor(key)
	prev := head
	for n := prev.Load(); n != nil; {
		next := n.next.Load()
		if n.key == key {
			n.val.Store(nil)
			prev.CompareAndSwap(n, next)
			return
		}
		prev = &n.next
		n = next
	}
}

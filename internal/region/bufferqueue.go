package region

import (
	"runtime"
	"sync/atomic"
)

// bufferQueue is a bounded multi-producer multi-consumer lock-free ring
// buffer of pooledBuffer values, built on Dmitry Vyukov's per-slot
// sequence-number algorithm. It specializes the teacher's generic MPMCQueue
// (internal/runtime/concurrency) to the one payload type bufferPool ever
// queues, since every class in bufferPool.classes holds the same element
// type regardless of size class.
type bufferQueue struct {
	_pad0   [64]byte
	mask    uint64
	_pad1   [64]byte
	enqueue uint64
	_pad2   [64]byte
	dequeue uint64
	_pad3   [64]byte
	cells   []bufferQueueCell
}

type bufferQueueCell struct {
	seq uint64
	val pooledBuffer
}

// newBufferQueue creates a queue with the given capacity, rounded up to a
// power of two.
func newBufferQueue(capacity uint64) *bufferQueue {
	n := uint64(1)
	for n < capacity {
		n <<= 1
	}
	q := &bufferQueue{
		mask:  n - 1,
		cells: make([]bufferQueueCell, n),
	}
	for i := range q.cells {
		q.cells[i].seq = uint64(i)
	}
	return q
}

// Enqueue tries to push v, returning false if the queue is full.
func (q *bufferQueue) Enqueue(v pooledBuffer) bool {
	for {
		pos := atomic.LoadUint64(&q.enqueue)
		c := &q.cells[pos&q.mask]
		seq := atomic.LoadUint64(&c.seq)
		switch dif := int64(seq) - int64(pos); {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.enqueue, pos, pos+1) {
				c.val = v
				atomic.StoreUint64(&c.seq, pos+1)
				return true
			}
		case dif < 0:
			return false
		default:
			runtime.Gosched()
		}
	}
}

// Dequeue tries to pop into out, returning false if the queue is empty.
func (q *bufferQueue) Dequeue(out *pooledBuffer) bool {
	for {
		pos := atomic.LoadUint64(&q.dequeue)
		c := &q.cells[pos&q.mask]
		seq := atomic.LoadUint64(&c.seq)
		switch dif := int64(seq) - int64(pos+1); {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.dequeue, pos, pos+1) {
				*out = c.val
				atomic.StoreUint64(&c.seq, pos+q.mask+1)
				return true
			}
		case dif < 0:
			return false
		default:
			runtime.Gosched()
		}
	}
}

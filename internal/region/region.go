package region

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/orizon-labs/regiontx/internal/metrics"
)

// Config carries a Region's ambient dependencies and tunables, generalizing
// the teacher's RegionPolicy/SecurityPolicy knob-struct idiom down to the
// handful of knobs a fixed-size-segment engine actually has: there is no
// compaction, growth, or shrink policy here because segments never move or
// resize once created.
type Config struct {
	// ZeroOnFree clears a segment's bytes the moment it is tombstoned,
	// mirroring the teacher's SecurityPolicy.EnableZeroOnFree.
	ZeroOnFree bool
	Logger     log.Logger
	Metrics    *metrics.Metrics
}

func (c Config) logger() log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.NewNopLogger()
}

// Region is a collection of segments sharing one alignment and a single
// never-freeable root segment.
type Region struct {
	alignment uintptr

	root *Segment

	// structMu guards segs and index. It is never held across a segment
	// lock acquisition or release — it protects only the container, per
	// spec §5: "structural mutex never held across content locks."
	structMu sync.Mutex
	segs     []*Segment // sorted by Base(), for Locate's binary search
	index    *segmentIndex

	pool       *bufferPool
	logger     log.Logger
	metrics    *metrics.Metrics
	zeroOnFree bool

	destroyed atomic.Bool
}

// Create allocates a zero-initialized root segment of the given size,
// aligned as requested, and returns the region that owns it.
func Create(size, alignment uintptr, cfg Config) (*Region, error) {
	if !isPowerOfTwo(alignment) {
		return nil, &Error{Op: "create", Code: ErrCodeInvalidAlignment}
	}
	if size == 0 || size%alignment != 0 {
		return nil, &Error{Op: "create", Code: ErrCodeInvalidSize}
	}

	pool := newBufferPool()
	buf, release, err := pool.acquire(size, alignment)
	if err != nil {
		return nil, &Error{Op: "create", Code: ErrCodeOutOfMemory, Err: err}
	}

	root := newSegment(buf, release, true)

	r := &Region{
		alignment:  alignment,
		root:       root,
		index:      newSegmentIndex(64),
		pool:       pool,
		logger:     cfg.logger(),
		metrics:    cfg.Metrics,
		zeroOnFree: cfg.ZeroOnFree,
	}
	r.insertLocked(root)
	r.metrics.SegmentAllocated()

	level.Info(r.logger).Log("event", "region_created", "size", size, "alignment", alignment, "root_base", root.Base())

	return r, nil
}

func (r *Region) insertLocked(seg *Segment) {
	r.structMu.Lock()
	defer r.structMu.Unlock()

	i := sort.Search(len(r.segs), func(i int) bool { return r.segs[i].Base() >= seg.Base() })
	r.segs = append(r.segs, nil)
	copy(r.segs[i+1:], r.segs[i:])
	r.segs[i] = seg
	r.index.Store(seg.Base(), seg)
}

// Locate returns the segment whose [base, base+size) range contains addr.
func (r *Region) Locate(addr uintptr) (*Segment, bool) {
	r.structMu.Lock()
	defer r.structMu.Unlock()
	segs := r.segs

	i := sort.Search(len(segs), func(i int) bool { return segs[i].Base() > addr }) - 1
	if i < 0 || i >= len(segs) {
		return nil, false
	}
	seg := segs[i]
	if !seg.Contains(addr) {
		return nil, false
	}
	return seg, true
}

// LocateExact returns the segment whose base address is exactly addr, used
// by Free which matches segments by base == target. Backed by the
// lock-free map for O(1) lookup instead of the binary search Locate uses.
func (r *Region) LocateExact(addr uintptr) (*Segment, bool) {
	return r.index.Load(addr)
}

// NewSegment allocates and registers a new non-root segment of size bytes,
// zero-initialized, and returns it locked exclusively. Locking before the
// segment is visible to any other transaction is uncontested by
// construction (spec §4.4.5), so this acquires the lock directly rather
// than through the non-blocking TryAcquireExclusive path other callers use.
func (r *Region) NewSegment(size uintptr) (*Segment, error) {
	buf, release, err := r.pool.acquire(size, r.alignment)
	if err != nil {
		return nil, &Error{Op: "alloc", Code: ErrCodeOutOfMemory, Err: err}
	}
	seg := newSegment(buf, release, false)
	seg.lock.Lock()
	r.insertLocked(seg)
	r.metrics.SegmentAllocated()
	return seg, nil
}

// Demolish removes seg from the region's segment index and releases its
// backing buffer. It does not touch seg's lock: both engine callers
// (commit of a pending free, rollback of a pending allocation) hold seg's
// exclusive lock across the call and release it right after. Removing from
// the index first ensures no concurrent Locate/LocateExact can observe a
// segment mid-teardown.
func (r *Region) Demolish(seg *Segment) {
	r.structMu.Lock()
	for i, s := range r.segs {
		if s == seg {
			r.segs = append(r.segs[:i], r.segs[i+1:]...)
			break
		}
	}
	r.index.Delete(seg.Base())
	r.structMu.Unlock()

	seg.destroy()
	r.metrics.SegmentFreed()
}

// Root returns the region's non-freeable root segment.
func (r *Region) Root() *Segment { return r.root }

// Start returns the root segment's base address.
func (r *Region) Start() uintptr { return r.root.Base() }

// Size returns the root segment's size.
func (r *Region) Size() uintptr { return r.root.Size() }

// Alignment returns the region's alignment.
func (r *Region) Alignment() uintptr { return r.alignment }

// ZeroOnFree reports whether tombstoned segments should be zeroed
// immediately, per Config.ZeroOnFree.
func (r *Region) ZeroOnFree() bool { return r.zeroOnFree }

// Logger returns the region's logger, never nil.
func (r *Region) Logger() log.Logger { return r.logger }

// Metrics returns the region's metrics sink, which may be nil.
func (r *Region) Metrics() *metrics.Metrics { return r.metrics }

// Destroy releases every segment (root and survivors) and the region
// itself. The caller must ensure no concurrent transactions are active;
// Destroy does not itself synchronize against in-flight transactions.
func (r *Region) Destroy() error {
	if !r.destroyed.CompareAndSwap(false, true) {
		return &Error{Op: "destroy", Code: ErrCodeAlreadyDestroyed}
	}

	r.structMu.Lock()
	segs := r.segs
	r.segs = nil
	r.structMu.Unlock()

	for _, seg := range segs {
		r.index.Delete(seg.Base())
		seg.destroy()
	}
	r.pool.destroyAll()

	level.Info(r.logger).Log("event", "region_destroyed", "segments_freed", len(segs))

	return nil
}

// Package engine implements the transactional operation layer: begin, end,
// read, write, alloc, free, and the rollback machinery that ties them
// together. It is the component spec.md calls the "Transactional Engine"
// and assigns the bulk of the implementation budget to.
package engine

import (
	"github.com/go-kit/log/level"

	"github.com/orizon-labs/regiontx/internal/metrics"
	"github.com/orizon-labs/regiontx/internal/region"
	"github.com/orizon-labs/regiontx/internal/txn"
)

// AllocResult is the three-way outcome of Alloc: a successful allocation,
// a non-fatal out-of-memory condition that leaves the transaction live, or
// a fatal abort.
type AllocResult int

const (
	AllocSuccess AllocResult = iota
	AllocNoMem
	AllocAbort
)

// Begin allocates a fresh transaction bound to r. No locks are acquired
// until the first Read, Write, Alloc, or Free.
func Begin(r *region.Region, readOnly bool) *txn.Transaction {
	tx := txn.New(r, readOnly)
	level.Debug(r.Logger()).Log("event", "begin", "read_only", readOnly)
	return tx
}

// End commits tx. Read-only transactions simply release their shared
// locks; read-write transactions physically delete pending frees, release
// their remaining held and pending-alloc locks, and drop the undo log.
// This design has no optimistic validation phase, so End never fails for
// a live transaction (spec §4.4.2, §9).
func End(tx *txn.Transaction) bool {
	if !tx.Finish(txn.Committed) {
		return false
	}

	if tx.ReadOnly {
		for seg := range tx.HeldShared() {
			seg.ReleaseShared()
		}
		tx.Region.Metrics().CommitTransaction()
		level.Debug(tx.Region.Logger()).Log("event", "commit", "read_only", true)
		return true
	}

	freed := tx.PendingFrees()
	for seg := range freed {
		tx.Region.Demolish(seg)
		seg.ReleaseExclusive()
	}
	for seg := range tx.HeldExclusive() {
		if _, alreadyReleased := freed[seg]; alreadyReleased {
			continue
		}
		seg.ReleaseExclusive()
	}
	for seg := range tx.PendingAllocs() {
		if _, alreadyReleased := freed[seg]; alreadyReleased {
			continue
		}
		seg.ReleaseExclusive()
	}
	// Not explicit in spec.md's commit step list, but a read-write
	// transaction can also hold shared locks from Reads; leaving them
	// held past commit would leak locks forever. See DESIGN.md.
	for seg := range tx.HeldShared() {
		seg.ReleaseShared()
	}

	tx.Region.Metrics().CommitTransaction()
	level.Debug(tx.Region.Logger()).Log("event", "commit", "read_only", false)
	return true
}

// Read copies size bytes from source into target. It aborts if source is
// not inside any live segment, the segment's shared lock cannot be
// acquired, or the segment is tombstoned.
func Read(tx *txn.Transaction, source uintptr, target []byte) bool {
	seg, ok := tx.Region.Locate(source)
	if !ok {
		return abort(tx, metrics.AbortSegmentNotFound)
	}

	if !tx.AlreadyHolds(seg) {
		if !seg.TryAcquireShared() {
			return abort(tx, metrics.AbortLockContention)
		}
		tx.RegisterShared(seg)
	}

	if seg.Tombstoned() {
		return abort(tx, metrics.AbortTombstoned)
	}

	offset := source - seg.Base()
	copy(target, seg.Bytes()[offset:offset+uintptr(len(target))])
	return true
}

// Write copies data into target. It aborts if tx is read-only, target is
// not inside any live segment, the segment's exclusive lock cannot be
// acquired (including when only a shared hold exists — lock-strength
// promotion is never attempted, spec §5), or the segment is tombstoned.
func Write(tx *txn.Transaction, target uintptr, data []byte) bool {
	if tx.ReadOnly {
		return abort(tx, metrics.AbortReadOnly)
	}

	seg, ok := tx.Region.Locate(target)
	if !ok {
		return abort(tx, metrics.AbortSegmentNotFound)
	}

	if !acquireExclusiveFor(tx, seg) {
		return abort(tx, metrics.AbortLockContention)
	}

	if seg.Tombstoned() {
		return abort(tx, metrics.AbortTombstoned)
	}

	size := uintptr(len(data))
	offset := target - seg.Base()

	prev := make([]byte, size)
	copy(prev, seg.Bytes()[offset:offset+size])
	tx.RecordUndo(target, prev)

	copy(seg.Bytes()[offset:offset+size], data)
	return true
}

// Alloc creates a new size-byte segment, zero-initialized, locked
// exclusively for the duration of the transaction, and registered as
// pending until commit. Allocation failure returns AllocNoMem and leaves
// the transaction live; every other failure path aborts it.
func Alloc(tx *txn.Transaction, size uintptr) (uintptr, AllocResult) {
	if tx.ReadOnly {
		abort(tx, metrics.AbortReadOnly)
		return 0, AllocAbort
	}

	seg, err := tx.Region.NewSegment(size)
	if err != nil {
		level.Warn(tx.Region.Logger()).Log("event", "alloc_nomem", "size", size, "err", err)
		return 0, AllocNoMem
	}

	tx.RegisterAlloc(seg)
	return seg.Base(), AllocSuccess
}

// Free marks the segment based at target tombstoned and schedules it for
// physical deletion on commit. Root segments never match. It aborts if no
// such segment exists, or its exclusive lock cannot be acquired. A shared
// hold that tx took by an earlier Read is released and the exclusive lock
// tried in its place, so Free aborts only if another transaction holds the
// segment at that point. With ZeroOnFree the cleared bytes are recorded in
// the undo log, so an abort restores them.
func Free(tx *txn.Transaction, target uintptr) bool {
	if tx.ReadOnly {
		return abort(tx, metrics.AbortReadOnly)
	}

	seg, ok := tx.Region.LocateExact(target)
	if !ok || seg.Root() {
		return abort(tx, metrics.AbortSegmentNotFound)
	}

	if tx.AlreadyHolds(seg) && !tx.HoldsExclusive(seg) {
		seg.ReleaseShared()
		delete(tx.HeldShared(), seg)
	}
	if !acquireExclusiveFor(tx, seg) {
		return abort(tx, metrics.AbortLockContention)
	}

	if tx.Region.ZeroOnFree() {
		prev := make([]byte, len(seg.Bytes()))
		copy(prev, seg.Bytes())
		tx.RecordUndo(seg.Base(), prev)
		clearBytes(seg.Bytes())
	}
	seg.MarkTombstoned()
	tx.RegisterFree(seg)
	return true
}

// acquireExclusiveFor obtains seg's exclusive lock for tx, registering the
// acquisition, unless tx already holds it. A segment held only in shared
// mode cannot be promoted (spec §5): that case reports failure without
// attempting TryAcquireExclusive at all, matching "implementers must not
// issue a try-exclusive when a shared hold exists."
func acquireExclusiveFor(tx *txn.Transaction, seg *region.Segment) bool {
	if tx.AlreadyHolds(seg) {
		return tx.HoldsExclusive(seg)
	}
	if !seg.TryAcquireExclusive() {
		return false
	}
	tx.RegisterExclusive(seg)
	return true
}

// abort rolls tx back, finishes it as Aborted, and records telemetry. It
// always returns false so call sites can write `return abort(tx, reason)`.
func abort(tx *txn.Transaction, reason metrics.AbortReason) bool {
	tx.Finish(txn.Aborted)
	Rollback(tx)
	tx.Region.Metrics().AbortTransaction(reason)
	level.Debug(tx.Region.Logger()).Log("event", "abort", "reason", string(reason))
	return false
}

// Rollback unwinds every pending effect of tx: replaying the undo log,
// clearing tombstones it set, destroying its pending allocations, and
// releasing every lock it holds. It is called by abort on every abort path,
// once per transaction; it is not idempotent, since a second call would
// release the same locks again.
func Rollback(tx *txn.Transaction) {
	if tx.ReadOnly {
		for seg := range tx.HeldShared() {
			seg.ReleaseShared()
		}
		return
	}

	tx.Undo(func(target uintptr, prev []byte) {
		seg, ok := tx.Region.Locate(target)
		if !ok {
			return
		}
		offset := target - seg.Base()
		copy(seg.Bytes()[offset:offset+uintptr(len(prev))], prev)
	})

	for seg := range tx.PendingFrees() {
		seg.ClearTombstone()
	}
	// A segment allocated and then freed within the same transaction lives
	// in both PendingAllocs and PendingFrees; acquireExclusiveFor never adds
	// a pending-alloc segment to HeldExclusive (it short-circuits on
	// AlreadyHolds), so the loop below never double-releases it.
	for seg := range tx.PendingAllocs() {
		tx.Region.Demolish(seg)
		seg.ReleaseExclusive()
	}
	for seg := range tx.HeldExclusive() {
		seg.ReleaseExclusive()
	}
	for seg := range tx.HeldShared() {
		seg.ReleaseShared()
	}
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

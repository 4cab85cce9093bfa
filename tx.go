package stm

import (
	"github.com/orizon-labs/regiontx/internal/engine"
	"github.com/orizon-labs/regiontx/internal/txn"
)

// Tx is a handle to an in-flight transaction. It is not safe for
// concurrent use by multiple goroutines; a transaction has exactly one
// owning thread, as spec'd.
type Tx struct {
	tx *txn.Transaction
}

// ReadOnly reports whether the transaction was opened read-only.
func (t *Tx) ReadOnly() bool { return t.tx.ReadOnly }

// End commits the transaction. A read-only transaction simply releases
// its shared locks; a read-write transaction physically deletes pending
// frees, releases its remaining locks, and drops its undo log. End never
// fails for a transaction that has not already been ended or aborted —
// there is no optimistic validation phase in this design — so End returns
// false only for a handle that was already ended or aborted.
func (t *Tx) End() bool { return engine.End(t.tx) }

// Read copies len(target) bytes starting at source into target. It
// aborts the transaction and returns false if source does not fall
// inside any live segment, the segment's shared lock cannot be acquired
// without blocking, or the segment is tombstoned.
func (t *Tx) Read(source uintptr, target []byte) bool { return engine.Read(t.tx, source, target) }

// Write copies data into the region starting at target. It aborts and
// returns false if the transaction is read-only, target does not fall
// inside any live segment, the segment's exclusive lock cannot be
// acquired without blocking, or the segment is tombstoned.
func (t *Tx) Write(target uintptr, data []byte) bool { return engine.Write(t.tx, target, data) }

// Alloc creates a new, zero-initialized segment of size bytes, visible to
// other transactions only if this one commits. AllocNoMem leaves the
// transaction live; every other non-success result is a fatal abort.
func (t *Tx) Alloc(size uintptr) (uintptr, AllocResult) { return engine.Alloc(t.tx, size) }

// Free schedules the segment based at target for deletion when the
// transaction commits. It aborts and returns false if no live,
// non-root segment has that exact base address, or its exclusive lock
// cannot be acquired without blocking.
func (t *Tx) Free(target uintptr) bool { return engine.Free(t.tx, target) }

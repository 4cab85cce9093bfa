// Package txn implements per-transaction state: the undo log, held-lock
// sets, and pending-alloc/pending-free bookkeeping the engine consults on
// every read, write, alloc, free, commit, and rollback.
package txn

import (
	"github.com/orizon-labs/regiontx/internal/concurrency"
	"github.com/orizon-labs/regiontx/internal/region"
)

// State is the transaction's lifecycle state: active -> committed or
// active -> aborted, terminal in both directions (spec §4.4.8).
type State uint32

const (
	Active State = iota
	Committed
	Aborted
)

// undoRecord is one pre-image entry. Records form a singly linked list
// built by head-insertion so RecordUndo is O(1) and matches spec's
// "prepend, then replay front-to-back" rollback ordering exactly: the most
// recently recorded write sits at the head and is undone first.
type undoRecord struct {
	target uintptr
	prev   []byte
	next   *undoRecord
}

// Transaction is the per-transaction state container described in spec §4.3.
type Transaction struct {
	Region   *region.Region
	ReadOnly bool

	state uint32

	undoHead *undoRecord

	heldExclusive map[*region.Segment]struct{}
	heldShared    map[*region.Segment]struct{}
	pendingAllocs map[*region.Segment]struct{}
	pendingFrees  map[*region.Segment]struct{}
}

// New begins a fresh transaction bound to r. No locks are acquired yet.
func New(r *region.Region, readOnly bool) *Transaction {
	return &Transaction{
		Region:        r,
		ReadOnly:      readOnly,
		heldExclusive: make(map[*region.Segment]struct{}),
		heldShared:    make(map[*region.Segment]struct{}),
		pendingAllocs: make(map[*region.Segment]struct{}),
		pendingFrees:  make(map[*region.Segment]struct{}),
	}
}

// State returns the transaction's current lifecycle state.
func (t *Transaction) State() State { return State(concurrency.LoadUint32(&t.state)) }

// Finish transitions the transaction from Active to the given terminal
// state exactly once. It reports whether this call performed the
// transition, guarding against a handle being ended or aborted twice.
func (t *Transaction) Finish(to State) bool {
	return concurrency.CASUint32(&t.state, uint32(Active), uint32(to))
}

// RecordUndo prepends a pre-image record to the undo log.
func (t *Transaction) RecordUndo(target uintptr, prev []byte) {
	t.undoHead = &undoRecord{target: target, prev: prev, next: t.undoHead}
}

// Undo replays the undo log front-to-back (most recent write first),
// invoking apply(target, prev) for each record.
func (t *Transaction) Undo(apply func(target uintptr, prev []byte)) {
	for r := t.undoHead; r != nil; r = r.next {
		apply(r.target, r.prev)
	}
	t.undoHead = nil
}

// AlreadyHolds reports whether lock-wise the transaction already owns seg,
// either via a prior held-shared/held-exclusive acquisition or because seg
// is one of this transaction's own pending allocations. Consulting this
// before every try-acquire in Read/Write/Free is what avoids self-deadlock
// when a transaction revisits a segment it already touched (spec §5).
func (t *Transaction) AlreadyHolds(seg *region.Segment) bool {
	if _, ok := t.heldExclusive[seg]; ok {
		return true
	}
	if _, ok := t.heldShared[seg]; ok {
		return true
	}
	if _, ok := t.pendingAllocs[seg]; ok {
		return true
	}
	return false
}

// HoldsExclusive reports whether the transaction holds seg's lock in
// exclusive mode (directly, or implicitly via pending-alloc ownership).
func (t *Transaction) HoldsExclusive(seg *region.Segment) bool {
	if _, ok := t.heldExclusive[seg]; ok {
		return true
	}
	_, ok := t.pendingAllocs[seg]
	return ok
}

func (t *Transaction) RegisterShared(seg *region.Segment)    { t.heldShared[seg] = struct{}{} }
func (t *Transaction) RegisterExclusive(seg *region.Segment) { t.heldExclusive[seg] = struct{}{} }
func (t *Transaction) RegisterAlloc(seg *region.Segment)     { t.pendingAllocs[seg] = struct{}{} }
func (t *Transaction) RegisterFree(seg *region.Segment)      { t.pendingFrees[seg] = struct{}{} }

func (t *Transaction) HeldShared() map[*region.Segment]struct{}    { return t.heldShared }
func (t *Transaction) HeldExclusive() map[*region.Segment]struct{} { return t.heldExclusive }
func (t *Transaction) PendingAllocs() map[*region.Segment]struct{} { return t.pendingAllocs }
func (t *Transaction) PendingFrees() map[*region.Segment]struct{}  { return t.pendingFrees }

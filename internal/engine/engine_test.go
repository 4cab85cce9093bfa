package engine

import (
	"bytes"
	"sync"
	"testing"

	"github.com/orizon-labs/regiontx/internal/region"
	"github.com/orizon-labs/regiontx/internal/txn"
)

func newTestRegion(t *testing.T, size, alignment uintptr) *region.Region {
	t.Helper()
	r, err := region.Create(size, alignment, region.Config{})
	if err != nil {
		t.Fatalf("region.Create: %v", err)
	}
	t.Cleanup(func() { r.Destroy() })
	return r
}

func TestReadOnlyTransactionSeesZeroedRoot(t *testing.T) {
	r := newTestRegion(t, 1024, 8)

	tx := Begin(r, true)
	buf := make([]byte, 8)
	if !Read(tx, r.Start(), buf) {
		t.Fatalf("Read should succeed on a fresh region")
	}
	if !bytes.Equal(buf, make([]byte, 8)) {
		t.Fatalf("expected zeroed bytes, got %v", buf)
	}
	if !End(tx) {
		t.Fatalf("End should commit a read-only transaction")
	}
}

func TestWriteThenReadByDifferentTransaction(t *testing.T) {
	r := newTestRegion(t, 1024, 8)

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	w := Begin(r, false)
	if !Write(w, r.Start(), want) {
		t.Fatalf("Write should succeed")
	}
	if !End(w) {
		t.Fatalf("End should commit the write")
	}

	readTx := Begin(r, true)
	got := make([]byte, 8)
	if !Read(readTx, r.Start(), got) {
		t.Fatalf("Read should succeed")
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	End(readTx)
}

func TestReadAfterWriteWithinSameTransaction(t *testing.T) {
	r := newTestRegion(t, 1024, 8)
	want := []byte{9, 9, 9, 9, 9, 9, 9, 9}

	tx := Begin(r, false)
	if !Write(tx, r.Start(), want) {
		t.Fatalf("Write should succeed")
	}
	got := make([]byte, 8)
	if !Read(tx, r.Start(), got) {
		t.Fatalf("Read of own write should succeed")
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read-after-write: got %v, want %v", got, want)
	}
	End(tx)
}

func TestConcurrentWritersToSameSegmentOneAborts(t *testing.T) {
	r := newTestRegion(t, 1024, 8)

	t4 := Begin(r, false)
	if !Write(t4, r.Start(), []byte{9, 9, 9, 9, 9, 9, 9, 9}) {
		t.Fatalf("t4 write should succeed")
	}

	t5 := Begin(r, false)
	if Write(t5, r.Start(), []byte{1, 1, 1, 1, 1, 1, 1, 1}) {
		t.Fatalf("t5 should abort: t4 holds the exclusive lock on the root segment")
	}
	if t5.State() != txn.Aborted {
		t.Fatalf("t5 should be aborted")
	}

	if !End(t4) {
		t.Fatalf("t4 should commit")
	}

	t6 := Begin(r, true)
	got := make([]byte, 8)
	Read(t6, r.Start(), got)
	if !bytes.Equal(got, []byte{9, 9, 9, 9, 9, 9, 9, 9}) {
		t.Fatalf("expected t4's write to have committed, got %v", got)
	}
	End(t6)
}

func TestAllocThenAbortMakesAddressUnreachable(t *testing.T) {
	r := newTestRegion(t, 1024, 8)

	t7 := Begin(r, false)
	addr, res := Alloc(t7, 16)
	if res != AllocSuccess {
		t.Fatalf("Alloc should succeed, got %v", res)
	}

	// Force an abort: address 0 is outside every segment.
	if Write(t7, 0, []byte{1}) {
		t.Fatalf("write to address 0 should fail")
	}

	t8 := Begin(r, false)
	if Read(t8, addr, make([]byte, 16)) {
		t.Fatalf("segment allocated by an aborted transaction must not be reachable")
	}
	End(t8)
}

func TestAllocWriteCommitThenFreeThenReadAborts(t *testing.T) {
	r := newTestRegion(t, 1024, 8)

	t9 := Begin(r, false)
	addr, res := Alloc(t9, 32)
	if res != AllocSuccess {
		t.Fatalf("Alloc should succeed, got %v", res)
	}
	payload := bytes.Repeat([]byte{0xAB}, 32)
	if !Write(t9, addr, payload) {
		t.Fatalf("Write to freshly allocated segment should succeed")
	}
	if !End(t9) {
		t.Fatalf("End should commit")
	}

	t10 := Begin(r, false)
	got := make([]byte, 32)
	if !Read(t10, addr, got) {
		t.Fatalf("Read of committed allocation should succeed")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %v, want %v", got, payload)
	}
	if !Free(t10, addr) {
		t.Fatalf("Free should succeed")
	}
	if !End(t10) {
		t.Fatalf("End should commit the free")
	}

	t11 := Begin(r, false)
	if Read(t11, addr, make([]byte, 32)) {
		t.Fatalf("reading a freed segment's address should abort")
	}
}

func TestAllocThenFreeWithinSameTransactionCommits(t *testing.T) {
	r := newTestRegion(t, 1024, 8)

	tx := Begin(r, false)
	addr, res := Alloc(tx, 16)
	if res != AllocSuccess {
		t.Fatalf("Alloc should succeed, got %v", res)
	}
	// The segment now lives in both PendingAllocs and PendingFrees: nothing
	// ever removes an allocation from PendingAllocs once it is there.
	if !Free(tx, addr) {
		t.Fatalf("Free of the transaction's own allocation should succeed")
	}
	if !End(tx) {
		t.Fatalf("End must not double-release the segment's exclusive lock")
	}

	verify := Begin(r, false)
	if Read(verify, addr, make([]byte, 16)) {
		t.Fatalf("reading an address alloc'd and freed in one transaction should abort")
	}
	End(verify)
}

func TestWriteRollbackRestoresPreImage(t *testing.T) {
	r := newTestRegion(t, 1024, 8)

	seed := Begin(r, false)
	Write(seed, r.Start(), []byte{0, 0, 0, 0, 0, 0, 0, 0})
	End(seed)

	t12 := Begin(r, false)
	Write(t12, r.Start(), []byte{1, 1, 1, 1, 1, 1, 1, 1})
	Write(t12, r.Start(), []byte{2, 2, 2, 2, 2, 2, 2, 2})

	// Force abort: a write to an unmapped address.
	if Write(t12, 0, []byte{1}) {
		t.Fatalf("write to address 0 should abort")
	}

	verify := Begin(r, true)
	got := make([]byte, 8)
	Read(verify, r.Start(), got)
	if !bytes.Equal(got, make([]byte, 8)) {
		t.Fatalf("rollback should restore the pre-T12 zeroed bytes, got %v", got)
	}
	End(verify)
}

func TestReadOnlyTransactionCannotWrite(t *testing.T) {
	r := newTestRegion(t, 1024, 8)
	tx := Begin(r, true)
	if Write(tx, r.Start(), []byte{1}) {
		t.Fatalf("write on a read-only transaction must fail")
	}
}

func TestFreeRejectsRootSegment(t *testing.T) {
	r := newTestRegion(t, 1024, 8)
	tx := Begin(r, false)
	if Free(tx, r.Start()) {
		t.Fatalf("freeing the root segment must fail")
	}
}

func TestSelfDeadlockAvoidanceOnRevisit(t *testing.T) {
	r := newTestRegion(t, 1024, 8)
	tx := Begin(r, false)

	if !Write(tx, r.Start(), []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Fatalf("first write should succeed")
	}
	// Revisiting a segment this transaction already holds exclusively
	// must not attempt a fresh TryAcquireExclusive (which would fail
	// against a non-reentrant lock and wrongly abort).
	if !Write(tx, r.Start(), []byte{9, 9, 9, 9, 9, 9, 9, 9}) {
		t.Fatalf("second write to the same segment by the same transaction must succeed")
	}
	if !Read(tx, r.Start(), make([]byte, 8)) {
		t.Fatalf("read of a segment already held exclusively must succeed")
	}
	End(tx)
}

func TestConcurrentAllocDoesNotRace(t *testing.T) {
	r := newTestRegion(t, 4096, 8)

	const n = 32
	var wg sync.WaitGroup
	addrs := make([]uintptr, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx := Begin(r, false)
			addr, res := Alloc(tx, 8)
			if res != AllocSuccess {
				return
			}
			addrs[i] = addr
			End(tx)
		}(i)
	}
	wg.Wait()

	seen := make(map[uintptr]bool)
	for _, a := range addrs {
		if a == 0 {
			continue
		}
		if seen[a] {
			t.Fatalf("duplicate address %d handed out to two transactions", a)
		}
		seen[a] = true
	}
}

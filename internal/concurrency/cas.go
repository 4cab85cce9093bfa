package concurrency

import "sync/atomic"

// CASUint32 performs an atomic compare-and-swap on a uint32 variable. Used
// by txn.Transaction to drive its Active/Committed/Aborted lifecycle with a
// single CAS, the same pattern the teacher's stm.go used for TVar versions.
func CASUint32(addr *uint32, old, new uint32) bool {
	return atomic.CompareAndSwapUint32(addr, old, new)
}

// LoadUint32 atomically reads a uint32 variable.
func LoadUint32(addr *uint32) uint32 { return atomic.LoadUint32(addr) }

// Package stm implements a software transactional memory runtime: a
// user-space region of aligned byte segments that concurrent goroutines
// read, write, allocate, and free inside all-or-nothing transactions.
//
// A Region is created with Create and holds one never-freeable root
// segment plus any segments allocated by committed transactions. A Tx is
// opened against a Region with Begin, performs a sequence of Read, Write,
// Alloc, and Free calls, and is closed with End. Every failure during a
// transaction — contention on a segment lock, an address outside any live
// segment, a write to a tombstoned segment — aborts the transaction
// immediately, except an out-of-memory result from Alloc, which leaves it
// live: its pending effects are unwound and the handle is no
// longer usable. There is no retry inside the library; callers that want
// to retry after an abort begin a new transaction.
package stm

package stm

import (
	"github.com/orizon-labs/regiontx/internal/engine"
	"github.com/orizon-labs/regiontx/internal/region"
)

// ErrorCode classifies why Create or Destroy failed.
type ErrorCode = region.ErrorCode

const (
	ErrInvalidAlignment = region.ErrCodeInvalidAlignment
	ErrInvalidSize      = region.ErrCodeInvalidSize
	ErrOutOfMemory      = region.ErrCodeOutOfMemory
	ErrAlreadyDestroyed = region.ErrCodeAlreadyDestroyed
)

// RegionError is returned by Create and Destroy. Use errors.As to recover
// the classifying Code.
type RegionError = region.Error

// AllocResult is the outcome of Tx.Alloc: success with a fresh address, a
// non-fatal out-of-memory condition that leaves the transaction live, or a
// fatal abort.
type AllocResult = engine.AllocResult

const (
	AllocSuccess = engine.AllocSuccess
	AllocNoMem   = engine.AllocNoMem
	AllocAbort   = engine.AllocAbort
)

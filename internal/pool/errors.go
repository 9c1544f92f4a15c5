package pool

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrLimitExceeded        = errors.New("daily limit exceeded")
	ErrInsufficientSupply   = errors.New("insufficient supply")
	ErrContention           = errors.New("proxies were taken by another user, try again")
	ErrAlreadyClaimed       = errors.New("proxy already used")
	ErrSomeAlreadyUsed      = errors.New("some proxies already used, try again")
	ErrNotInBatch           = errors.New("proxy not in current batch")
	ErrNoValidEntries       = errors.New("no valid entries")
	ErrConfirmationMismatch = errors.New("confirmation mismatch")
)

// LimitError carries how many proxies the user may still claim today.
type LimitError struct {
	Remaining int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %d remaining today", ErrLimitExceeded, e.Remaining)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// SupplyError carries the number of unused proxies in the pool.
type SupplyError struct {
	Available int
}

func (e *SupplyError) Error() string {
	return fmt.Sprintf("%s: only %d available", ErrInsufficientSupply, e.Available)
}

func (e *SupplyError) Unwrap() error { return ErrInsufficientSupply }

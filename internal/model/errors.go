package model

import "errors"

// Failure classes shared by the scan job and the query path. Callers wrap them
// with context and classify with errors.Is.
var (
	// ErrProvider marks a failed or timed-out remote chain call.
	ErrProvider = errors.New("provider error")
	// ErrNotFound marks a chain entity that an earlier call implied should exist.
	ErrNotFound = errors.New("not found")
	// ErrParse marks malformed input such as an address, hash, or event payload.
	ErrParse = errors.New("parse error")
	// ErrNumericOverflow marks a block number or window outside the storable range.
	ErrNumericOverflow = errors.New("numeric overflow")
	// ErrPersistence marks a failed store read or write.
	ErrPersistence = errors.New("persistence error")

	ErrUnsupportedChain    = errors.New("blockchain not supported")
	ErrUnsupportedExchange = errors.New("exchange not supported")
	ErrPairNotFound        = errors.New("pair does not exist")
)

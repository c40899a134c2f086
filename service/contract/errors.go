package contract

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means the gateway was constructed with a missing or
	// invalid endpoint/address. Fatal to contract features only.
	ErrConfiguration = errors.New("contract: invalid configuration")

	// ErrReadUnavailable means no read handle exists (misconfiguration).
	ErrReadUnavailable = errors.New("contract: read handle unavailable")

	// ErrWriteUnavailable means no write handle exists: the wallet is not
	// paired or no signer can be derived. Recoverable once connection
	// state changes.
	ErrWriteUnavailable = errors.New("contract: write handle unavailable")

	// ErrEventNotFound means the expected event topic was absent from a
	// transaction receipt. The on-chain entity may exist, but its
	// identifier cannot be recovered, so the operation is a failure.
	ErrEventNotFound = errors.New("contract: expected event not found in receipt")

	// ErrEventDecodeFailed means the expected event was present but its
	// payload could not be decoded.
	ErrEventDecodeFailed = errors.New("contract: event decode failed")
)

// ReadFailedError wraps an underlying read-call failure, preserving the
// original message.
type ReadFailedError struct {
	Method string
	Err    error
}

func (e *ReadFailedError) Error() string {
	return fmt.Sprintf("contract: read %s failed: %v", e.Method, e.Err)
}

func (e *ReadFailedError) Unwrap() error { return e.Err }

// WriteFailedError wraps an underlying write-call failure, preserving the
// original message.
type WriteFailedError struct {
	Method string
	Err    error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("contract: write %s failed: %v", e.Method, e.Err)
}

func (e *WriteFailedError) Unwrap() error { return e.Err }

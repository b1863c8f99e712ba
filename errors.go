package logship

import (
	"errors"
	"time"

	"github.com/hyp3rd/ewrap"
)

// Common errors surfaced by the shipping pipeline.
var (
	// ErrShipperClosed is returned when writing to a shut-down shipper.
	ErrShipperClosed = ewrap.New("shipper is closed")

	// ErrBufferFull is returned when an admission would exceed the buffer's
	// entry or byte limit. The caller may force a Flush and retry.
	ErrBufferFull = ewrap.New("record buffer is full")

	// ErrCircuitOpen is returned when the circuit breaker is open and the
	// transport call was not attempted.
	ErrCircuitOpen = ewrap.New("circuit breaker is open")

	// ErrFlushTimeout is returned when an explicit flush does not complete
	// within the configured wait.
	ErrFlushTimeout = ewrap.New("flush timed out")

	// ErrTailCanceled is returned by a tail sequence after the caller cancels
	// the handle.
	ErrTailCanceled = ewrap.New("tail canceled")

	// ErrReconnectsExhausted is returned by a tail sequence when the stream
	// kept failing past the reconnect budget.
	ErrReconnectsExhausted = ewrap.New("stream reconnect attempts exhausted")
)

// ErrorKind classifies a transport failure for retry purposes.
type ErrorKind uint8

const (
	// KindTransient marks failures worth retrying: network errors, timeouts,
	// rate limits, backend unavailability.
	KindTransient ErrorKind = iota
	// KindPermanent marks failures that retrying cannot fix: validation,
	// permission, malformed payloads.
	KindPermanent
)

// String returns a human-readable kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// TransportError wraps a transport failure with its retry classification and
// an optional server-suggested retry delay.
type TransportError struct {
	Kind ErrorKind
	// RetryAfter is a server-supplied delay hint (e.g. from a rate-limit
	// response). Zero means no hint. The hint overrides the computed backoff
	// for the next attempt only.
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " transport error"
	}

	return e.Kind.String() + " transport error: " + e.Err.Error()
}

// Unwrap exposes the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable transport failure.
func Transient(err error) *TransportError {
	return &TransportError{Kind: KindTransient, Err: err}
}

// Permanent wraps err as a non-retryable transport failure.
func Permanent(err error) *TransportError {
	return &TransportError{Kind: KindPermanent, Err: err}
}

// WithRetryAfter attaches a server-suggested delay to the error and returns
// the receiver for chaining.
func (e *TransportError) WithRetryAfter(delay time.Duration) *TransportError {
	e.RetryAfter = delay

	return e
}

// RetryAfterHint extracts a server-suggested retry delay from err, or zero if
// none is attached.
func RetryAfterHint(err error) time.Duration {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.RetryAfter
	}

	return 0
}

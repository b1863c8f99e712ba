// Package logship provides a resilient client-side pipeline for shipping log
// records to a remote ingestion service and for live-tailing records back from
// it.
//
// The package is built around a small number of cooperating pieces:
// - A bounded in-memory buffer that admits records without blocking producers
// - A background flush loop that drains the buffer, chunks records into
//   transport-sized batches, and delivers them
// - A retry executor with exponential backoff and full jitter, protected by a
//   circuit breaker so a failing backend is not hammered
// - A reconnecting live-tail stream that survives transient disconnects with
//   bounded backoff
//
// Delivery is best-effort: records that exhaust their retry budget are either
// re-admitted to the buffer for a later cycle or dropped with an observable
// signal (hooks and metrics). Nothing is persisted across process restarts.
//
// Basic usage:
//
//	ship, err := shipper.New(logship.DefaultConfig(), transport)
//	if err != nil {
//		panic(err)
//	}
//	defer ship.Shutdown(context.Background())
//
//	err = ship.Write(ctx, logship.Record{Body: []byte(`{"msg":"hello"}`)})
//
// Concrete transports live in the transport package; the core depends only on
// the interfaces defined here.
package logship

import (
	"context"
	"time"
)

// Transport delivers batches of records to a backend. Implementations own wire
// encoding, authentication header attachment, and endpoint addressing.
//
// Send must return a SendResult describing partial acceptance when the backend
// rejects a subset of the batch; in that case the returned error is nil and the
// rejected records are listed in Result.Failed. A non-nil error means the batch
// as a whole did not go through.
type Transport interface {
	Send(ctx context.Context, batch []Record) (*SendResult, error)
}

// StreamTransport opens a server-side stream of records for live tailing.
type StreamTransport interface {
	OpenStream(ctx context.Context, req TailRequest) (StreamHandle, error)
}

// StreamHandle is an open live-tail stream. Recv blocks until the next event
// arrives, the stream fails, or the context is canceled. Close releases the
// underlying connection and unblocks any pending Recv.
type StreamHandle interface {
	Recv(ctx context.Context) (StreamEvent, error)
	Close() error
}

// TokenProvider supplies authentication tokens to transports. The core never
// consults it directly.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// SendResult reports the outcome of a single transport send.
type SendResult struct {
	// Accepted is the number of records the backend acknowledged.
	Accepted int
	// Failed lists records the backend rejected, keyed by record ID.
	Failed []RecordFailure
}

// RecordFailure describes a single rejected record within a batch.
type RecordFailure struct {
	// ID is the record identifier assigned at admission.
	ID string
	// Err is the per-record rejection cause.
	Err error
}

// BatchResult is returned by direct (unbuffered) batch writes.
type BatchResult struct {
	// SuccessCount is the number of records delivered.
	SuccessCount int
	// Failures lists records that could not be delivered.
	Failures []RecordFailure
}

// TailRequest describes a live-tail subscription. The request is opaque to the
// resilience core; transports interpret the fields they understand.
type TailRequest struct {
	// Query is a backend-specific filter expression. Validation happens
	// server-side.
	Query string
	// GroupKeys restricts the tail to records carrying one of these grouping
	// keys. Empty means no restriction.
	GroupKeys []string
	// Since asks the backend to start from records at or after this time.
	// Zero means "now".
	Since time.Time
}

// StreamEvent is a single event yielded by a live-tail stream. Exactly one of
// Record and Suppression is set.
type StreamEvent struct {
	Record      *Record
	Suppression *SuppressionNotice
}

// SuppressionNotice signals that the backend dropped records from the stream,
// typically due to rate limiting. It is passed through to the consumer rather
// than absorbed, so gaps in the tail are visible.
type SuppressionNotice struct {
	// Dropped is the number of records the backend discarded, when known.
	Dropped int
	// Reason is the backend-supplied explanation, if any.
	Reason string
}

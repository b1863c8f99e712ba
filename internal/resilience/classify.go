package resilience

import (
	"context"
	"errors"
	"io"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hyp3rd/logship"
)

// DefaultClassifier is the default retryable/terminal predicate. It
// understands the package's own TransportError kinds, gRPC status codes, and
// common network failure modes. Unknown errors are treated as retryable so a
// misbehaving backend does not silently discard data.
func DefaultClassifier(err error) bool {
	if err == nil {
		return false
	}

	// Cancellation is a caller decision, never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, logship.ErrCircuitOpen) {
		return false
	}

	var transportErr *logship.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Kind == logship.KindTransient
	}

	if grpcStatus, ok := status.FromError(err); ok && grpcStatus.Code() != codes.Unknown {
		return retryableCode(grpcStatus.Code())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	return true
}

// retryableCode maps gRPC status codes to retryability.
func retryableCode(code codes.Code) bool {
	switch code {
	case codes.Unavailable,
		codes.DeadlineExceeded,
		codes.ResourceExhausted,
		codes.Aborted,
		codes.Internal:
		return true
	case codes.OK,
		codes.Canceled,
		codes.Unknown,
		codes.InvalidArgument,
		codes.NotFound,
		codes.AlreadyExists,
		codes.PermissionDenied,
		codes.FailedPrecondition,
		codes.OutOfRange,
		codes.Unimplemented,
		codes.DataLoss,
		codes.Unauthenticated:
		return false
	default:
		return false
	}
}

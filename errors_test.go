package logship

import (
	"errors"
	"testing"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/stretchr/testify/require"
)

func TestErrorKindString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "transient", KindTransient.String())
	require.Equal(t, "permanent", KindPermanent.String())
	require.Equal(t, "unknown", ErrorKind(99).String())
}

func TestTransportErrorWrapping(t *testing.T) {
	t.Parallel()

	cause := ewrap.New("connection reset")
	err := Transient(cause)

	require.Equal(t, KindTransient, err.Kind)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "transient transport error")
	require.Contains(t, err.Error(), "connection reset")

	require.Equal(t, KindPermanent, Permanent(cause).Kind)
}

func TestTransportErrorWithoutCause(t *testing.T) {
	t.Parallel()

	err := &TransportError{Kind: KindPermanent}
	require.Equal(t, "permanent transport error", err.Error())
	require.NoError(t, err.Unwrap())
}

func TestRetryAfterHint(t *testing.T) {
	t.Parallel()

	err := Transient(ewrap.New("throttled")).WithRetryAfter(7 * time.Second)
	require.Equal(t, 7*time.Second, RetryAfterHint(err))

	// The hint survives wrapping.
	wrapped := ewrap.Wrap(err, "delivery failed")
	require.Equal(t, 7*time.Second, RetryAfterHint(wrapped))

	require.Zero(t, RetryAfterHint(ewrap.New("plain failure")))
	require.Zero(t, RetryAfterHint(nil))
}

func TestSentinelsAreDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		ErrShipperClosed,
		ErrBufferFull,
		ErrCircuitOpen,
		ErrFlushTimeout,
		ErrTailCanceled,
		ErrReconnectsExhausted,
	}

	for i, sentinel := range sentinels {
		for j, other := range sentinels {
			if i == j {
				continue
			}

			require.False(t, errors.Is(sentinel, other))
		}
	}
}

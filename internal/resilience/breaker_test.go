package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/logship"
)

func newTestBreaker(now *time.Time) *Breaker {
	breaker := NewBreaker(BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
	})
	breaker.now = func() time.Time { return *now }

	return breaker
}

func TestBreakerOpensAfterFailureThreshold(t *testing.T) {
	t.Parallel()

	now := time.Now()
	breaker := newTestBreaker(&now)

	for i := range 5 {
		require.NoError(t, breaker.Allow(), "call %d must be admitted while closed", i+1)
		breaker.OnFailure()
	}

	require.Equal(t, StateOpen, breaker.State())
	require.ErrorIs(t, breaker.Allow(), logship.ErrCircuitOpen,
		"6th call must be rejected without attempting the operation")
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	now := time.Now()
	breaker := newTestBreaker(&now)

	for range 4 {
		breaker.OnFailure()
	}

	require.Equal(t, 4, breaker.Failures())

	breaker.OnSuccess()
	require.Equal(t, 0, breaker.Failures())
	require.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	t.Parallel()

	now := time.Now()
	breaker := newTestBreaker(&now)

	for range 5 {
		breaker.OnFailure()
	}

	require.ErrorIs(t, breaker.Allow(), logship.ErrCircuitOpen)

	now = now.Add(30 * time.Second)
	require.NoError(t, breaker.Allow(), "probe must be admitted after the reset timeout")
	require.Equal(t, StateHalfOpen, breaker.State())
}

func TestBreakerClosesAfterSuccessThreshold(t *testing.T) {
	t.Parallel()

	now := time.Now()
	breaker := newTestBreaker(&now)

	for range 5 {
		breaker.OnFailure()
	}

	now = now.Add(time.Minute)
	require.NoError(t, breaker.Allow())

	breaker.OnSuccess()
	require.Equal(t, StateHalfOpen, breaker.State(), "one success is not enough to close")

	breaker.OnSuccess()
	require.Equal(t, StateClosed, breaker.State())
	require.Equal(t, 0, breaker.Failures())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	now := time.Now()
	breaker := newTestBreaker(&now)

	for range 5 {
		breaker.OnFailure()
	}

	now = now.Add(time.Minute)
	require.NoError(t, breaker.Allow())
	require.Equal(t, StateHalfOpen, breaker.State())

	breaker.OnFailure()
	require.Equal(t, StateOpen, breaker.State())

	// The open window restarts from the half-open failure.
	require.ErrorIs(t, breaker.Allow(), logship.ErrCircuitOpen)
	now = now.Add(29 * time.Second)
	require.ErrorIs(t, breaker.Allow(), logship.ErrCircuitOpen)
	now = now.Add(time.Second)
	require.NoError(t, breaker.Allow())
}

func TestBreakerOnOpenCallback(t *testing.T) {
	t.Parallel()

	opens := 0
	breaker := NewBreaker(BreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		ResetTimeout:     time.Minute,
		OnOpen:           func() { opens++ },
	})

	breaker.OnFailure()
	require.Equal(t, 0, opens)
	breaker.OnFailure()
	require.Equal(t, 1, opens)
	breaker.OnFailure()
	require.Equal(t, 1, opens, "already-open breaker must not fire again")
}

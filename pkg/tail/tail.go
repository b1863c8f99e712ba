// Package tail implements the reconnecting live-tail stream. A Handle wraps a
// server-streaming read and re-establishes it on transient failure with
// bounded backoff, exposing a pull-based sequence of events to the caller.
//
// The reconnect loop is an explicit state machine (Connecting, Streaming,
// Disconnected, Terminated) driven by the caller's Next calls and a
// cancellation channel, so its timing is testable without a live connection.
package tail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/logship"
	"github.com/hyp3rd/logship/internal/resilience"
)

// State represents the tail session state.
type State uint8

const (
	// StateConnecting means the stream is being (re-)established.
	StateConnecting State = iota
	// StateStreaming means events are flowing.
	StateStreaming
	// StateDisconnected means the stream failed and a reconnect is pending.
	StateDisconnected
	// StateTerminated means the sequence has ended; no further events.
	StateTerminated
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDisconnected:
		return "disconnected"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Tailer opens live-tail sessions against a stream transport.
type Tailer struct {
	transport     logship.StreamTransport
	backoff       *resilience.Backoff
	maxReconnects int
	classify      resilience.Classifier
}

// New creates a tailer using the retry and reconnect settings from config.
func New(config logship.Config, transport logship.StreamTransport) (*Tailer, error) {
	if transport == nil {
		return nil, ewrap.New("stream transport cannot be nil")
	}

	config = config.Normalize()

	classify := resilience.DefaultClassifier
	if config.Classify != nil {
		classify = config.Classify
	}

	return &Tailer{
		transport:     transport,
		backoff:       resilience.NewBackoff(config.BaseDelay, config.MaxDelay),
		maxReconnects: config.MaxReconnects,
		classify:      classify,
	}, nil
}

// Tail starts a live-tail session. The returned handle yields events lazily
// through Next; the sequence is conceptually infinite, continuing across
// reconnects, until canceled or terminally exhausted.
//
// Reconnects re-open the stream with the original request parameters, so the
// sequence is at-least-once: records produced during a gap may be re-delivered
// or, if the backend's retention window moved on, missed. Consumers needing
// deduplication should key on record IDs.
func (t *Tailer) Tail(_ context.Context, req logship.TailRequest) *Handle {
	handle := &Handle{
		tailer:   t,
		req:      req,
		cancelCh: make(chan struct{}),
	}
	handle.sleep = handle.waitCancelable

	return handle
}

// Handle is a live-tail session. Next is intended for a single consumer
// goroutine; Cancel and IsActive may be called from any goroutine.
type Handle struct {
	tailer *Tailer
	req    logship.TailRequest

	mu       sync.Mutex
	state    State
	stream   logship.StreamHandle
	lastErr  error
	attempts int

	cancelCh   chan struct{}
	cancelOnce sync.Once

	// sleep waits out a reconnect backoff. Overridable in tests.
	sleep func(ctx context.Context, delay time.Duration) error
}

// Next returns the next event in the sequence, transparently reconnecting on
// transient stream failures. It blocks until an event arrives, the session
// terminates, or ctx is done. After termination every call returns the same
// final error; the sequence never just stops without one.
func (h *Handle) Next(ctx context.Context) (logship.StreamEvent, error) {
	for {
		if err := h.poll(ctx); err != nil {
			return logship.StreamEvent{}, err
		}

		stream, err := h.currentStream(ctx)
		if err != nil {
			return logship.StreamEvent{}, err
		}

		if stream == nil {
			continue // reconnect round completed; try again
		}

		event, err := stream.Recv(ctx)
		if err == nil {
			h.mu.Lock()
			h.attempts = 0
			h.mu.Unlock()

			if event.Suppression != nil {
				logship.FireHooks(ctx, &logship.Event{
					Kind:    logship.EventSuppression,
					Records: event.Suppression.Dropped,
				})
			}

			return event, nil
		}

		h.dropStream()

		if err := h.handleStreamError(ctx, err); err != nil {
			return logship.StreamEvent{}, err
		}
	}
}

// Cancel terminates the sequence. The loop observes the signal at the next
// poll point; a consumer blocked in Recv is unblocked by closing the
// underlying stream. Cancel is idempotent.
func (h *Handle) Cancel() {
	h.cancelOnce.Do(func() {
		close(h.cancelCh)
		h.dropStream()
	})
}

// IsActive reports whether the sequence can still yield events.
func (h *Handle) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.state != StateTerminated
}

// State returns the current session state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.state
}

// Err returns the final error after the session terminated, nil otherwise.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateTerminated {
		return nil
	}

	return h.lastErr
}

// poll checks for cancellation, context expiry, or prior termination.
func (h *Handle) poll(ctx context.Context) error {
	select {
	case <-h.cancelCh:
		return h.terminate(logship.ErrTailCanceled)
	default:
	}

	if ctx.Err() != nil {
		return h.terminate(ewrap.Wrap(ctx.Err(), "tail context done"))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateTerminated {
		return h.lastErr
	}

	return nil
}

// currentStream returns the open stream, establishing one when absent. A
// failed open follows the same transient/terminal handling as a mid-stream
// failure and returns a nil stream so the caller re-enters the loop.
func (h *Handle) currentStream(ctx context.Context) (logship.StreamHandle, error) {
	h.mu.Lock()
	stream := h.stream
	h.mu.Unlock()

	if stream != nil {
		return stream, nil
	}

	h.setState(StateConnecting)

	opened, err := h.tailer.transport.OpenStream(ctx, h.req)
	if err != nil {
		if handleErr := h.handleStreamError(ctx, err); handleErr != nil {
			return nil, handleErr
		}

		return nil, nil
	}

	h.mu.Lock()
	// A cancel may have raced the open; release the fresh connection.
	select {
	case <-h.cancelCh:
		h.mu.Unlock()
		_ = opened.Close()

		return nil, h.terminate(logship.ErrTailCanceled)
	default:
	}

	h.stream = opened
	h.state = StateStreaming
	h.mu.Unlock()

	return opened, nil
}

// handleStreamError classifies a stream failure. Transient failures consume a
// reconnect attempt and wait out a backoff; terminal failures or an exhausted
// reconnect budget end the sequence.
func (h *Handle) handleStreamError(ctx context.Context, cause error) error {
	if !h.tailer.classify(cause) {
		return h.terminate(cause)
	}

	h.mu.Lock()
	h.state = StateDisconnected
	h.attempts++
	attempts := h.attempts
	h.lastErr = cause
	h.mu.Unlock()

	if attempts > h.tailer.maxReconnects {
		return h.terminate(errors.Join(logship.ErrReconnectsExhausted, cause))
	}

	err := h.sleep(ctx, h.tailer.backoff.Delay(attempts))
	if err != nil {
		return h.terminate(err)
	}

	return nil
}

// terminate moves to the terminal state, recording the final error. The first
// terminal cause wins; later calls return it unchanged.
func (h *Handle) terminate(cause error) error {
	h.dropStream()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateTerminated {
		h.state = StateTerminated
		h.lastErr = cause
	}

	return h.lastErr
}

// dropStream closes and forgets the current stream, if any.
func (h *Handle) dropStream() {
	h.mu.Lock()
	stream := h.stream
	h.stream = nil
	h.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
}

// setState updates the session state under the lock.
func (h *Handle) setState(state State) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
}

// waitCancelable sleeps for the backoff delay, aborting early on cancellation
// or context expiry.
func (h *Handle) waitCancelable(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-h.cancelCh:
		return logship.ErrTailCanceled
	case <-ctx.Done():
		return ewrap.Wrap(ctx.Err(), "tail context done")
	}
}

package tail

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/logship"
)

// scriptedStream yields a fixed sequence of events and errors.
type scriptedStream struct {
	mu     sync.Mutex
	events []logship.StreamEvent
	errs   []error
	closed bool
}

func (s *scriptedStream) Recv(_ context.Context) (logship.StreamEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) > 0 {
		event := s.events[0]
		s.events = s.events[1:]

		return event, nil
	}

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]

		return logship.StreamEvent{}, err
	}

	return logship.StreamEvent{}, logship.Transient(ewrap.New("stream ended"))
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

// mockStreamTransport hands out scripted streams, or errors, per open attempt.
type mockStreamTransport struct {
	mu      sync.Mutex
	opens   int
	openErr []error
	streams []*scriptedStream
}

func (m *mockStreamTransport) OpenStream(_ context.Context, _ logship.TailRequest) (logship.StreamHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opens++

	if len(m.openErr) > 0 {
		err := m.openErr[0]
		m.openErr = m.openErr[1:]

		if err != nil {
			return nil, err
		}
	}

	if len(m.streams) == 0 {
		return nil, logship.Transient(ewrap.New("no stream scripted"))
	}

	stream := m.streams[0]
	m.streams = m.streams[1:]

	return stream, nil
}

func (m *mockStreamTransport) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.opens
}

func tailConfig() logship.Config {
	config := logship.DefaultConfig()
	config.BaseDelay = time.Millisecond
	config.MaxDelay = 2 * time.Millisecond
	config.MaxReconnects = 3

	return config
}

func recordEvent(id string) logship.StreamEvent {
	return logship.StreamEvent{Record: &logship.Record{ID: id, Body: []byte("b-" + id)}}
}

// newHandle creates a handle whose backoff sleeps are recorded, not slept.
func newHandle(t *testing.T, transport *mockStreamTransport, config logship.Config) (*Handle, *[]time.Duration) {
	t.Helper()

	tailer, err := New(config, transport)
	require.NoError(t, err)

	handle := tailer.Tail(context.Background(), logship.TailRequest{Query: "service=api"})

	slept := make([]time.Duration, 0)
	handle.sleep = func(_ context.Context, delay time.Duration) error {
		slept = append(slept, delay)

		return nil
	}

	return handle, &slept
}

func TestNewRequiresTransport(t *testing.T) {
	t.Parallel()

	_, err := New(tailConfig(), nil)
	require.Error(t, err)
}

func TestNextYieldsRecords(t *testing.T) {
	t.Parallel()

	transport := &mockStreamTransport{
		streams: []*scriptedStream{{
			events: []logship.StreamEvent{recordEvent("a"), recordEvent("b")},
		}},
	}

	handle, _ := newHandle(t, transport, tailConfig())
	defer handle.Cancel()

	event, err := handle.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a", event.Record.ID)
	require.Equal(t, StateStreaming, handle.State())

	event, err = handle.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "b", event.Record.ID)
}

func TestNextReconnectsAcrossTransientFailures(t *testing.T) {
	t.Parallel()

	transport := &mockStreamTransport{
		// Three transient open failures, then a working stream.
		openErr: []error{
			logship.Transient(ewrap.New("dial timeout")),
			logship.Transient(ewrap.New("dial timeout")),
			logship.Transient(ewrap.New("dial timeout")),
		},
		streams: []*scriptedStream{{
			events: []logship.StreamEvent{recordEvent("after-reconnect")},
		}},
	}

	handle, slept := newHandle(t, transport, tailConfig())
	defer handle.Cancel()

	event, err := handle.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "after-reconnect", event.Record.ID)
	require.Equal(t, 4, transport.openCount())
	require.Len(t, *slept, 3, "each transient failure waits out a backoff")

	handle.mu.Lock()
	attempts := handle.attempts
	handle.mu.Unlock()
	require.Zero(t, attempts, "counter resets on a successfully yielded record")
}

func TestNextExhaustsReconnectBudget(t *testing.T) {
	t.Parallel()

	transport := &mockStreamTransport{
		openErr: []error{
			logship.Transient(ewrap.New("down")),
			logship.Transient(ewrap.New("down")),
			logship.Transient(ewrap.New("down")),
			logship.Transient(ewrap.New("down")),
		},
	}

	handle, slept := newHandle(t, transport, tailConfig())

	_, err := handle.Next(context.Background())
	require.ErrorIs(t, err, logship.ErrReconnectsExhausted)
	require.Equal(t, 4, transport.openCount())
	require.Len(t, *slept, 3, "the failure past the budget sleeps no backoff")
	require.False(t, handle.IsActive())
	require.Equal(t, StateTerminated, handle.State())

	// The sequence stays terminated with the same error.
	_, err2 := handle.Next(context.Background())
	require.ErrorIs(t, err2, logship.ErrReconnectsExhausted)
}

func TestNextMidStreamDisconnectResumes(t *testing.T) {
	t.Parallel()

	first := &scriptedStream{
		events: []logship.StreamEvent{recordEvent("a")},
		errs:   []error{logship.Transient(ewrap.New("connection reset"))},
	}
	second := &scriptedStream{
		events: []logship.StreamEvent{recordEvent("b")},
	}

	transport := &mockStreamTransport{streams: []*scriptedStream{first, second}}

	handle, _ := newHandle(t, transport, tailConfig())
	defer handle.Cancel()

	event, err := handle.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a", event.Record.ID)

	event, err = handle.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "b", event.Record.ID, "sequence resumes across the reconnect")

	require.True(t, first.closed, "failed stream is released")
}

func TestNextTerminalErrorEndsImmediately(t *testing.T) {
	t.Parallel()

	terminal := logship.Permanent(ewrap.New("permission denied"))
	transport := &mockStreamTransport{
		streams: []*scriptedStream{{errs: []error{terminal}}},
	}

	handle, slept := newHandle(t, transport, tailConfig())

	_, err := handle.Next(context.Background())
	require.ErrorIs(t, err, terminal)
	require.Equal(t, 1, transport.openCount(), "no reconnect after a terminal error")
	require.Empty(t, *slept)
	require.False(t, handle.IsActive())
}

func TestCancelTerminatesCleanly(t *testing.T) {
	t.Parallel()

	stream := &scriptedStream{
		events: []logship.StreamEvent{recordEvent("a")},
	}
	transport := &mockStreamTransport{streams: []*scriptedStream{stream}}

	handle, _ := newHandle(t, transport, tailConfig())

	_, err := handle.Next(context.Background())
	require.NoError(t, err)
	require.True(t, handle.IsActive())

	handle.Cancel()

	_, err = handle.Next(context.Background())
	require.ErrorIs(t, err, logship.ErrTailCanceled)
	require.False(t, handle.IsActive())
	require.True(t, stream.closed, "cancel releases the underlying connection")
	require.Equal(t, 1, transport.openCount(), "no reconnect after cancel")

	// Idempotent.
	handle.Cancel()
	require.ErrorIs(t, handle.Err(), logship.ErrTailCanceled)
}

func TestSuppressionNoticePassesThrough(t *testing.T) {
	t.Parallel()

	transport := &mockStreamTransport{
		streams: []*scriptedStream{{
			events: []logship.StreamEvent{
				{Suppression: &logship.SuppressionNotice{Dropped: 42, Reason: "rate limited"}},
				recordEvent("after"),
			},
		}},
	}

	handle, _ := newHandle(t, transport, tailConfig())
	defer handle.Cancel()

	event, err := handle.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, event.Suppression)
	require.Equal(t, 42, event.Suppression.Dropped)
	require.Nil(t, event.Record)

	event, err = handle.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "after", event.Record.ID)
}

func TestContextCancellationTerminates(t *testing.T) {
	t.Parallel()

	transport := &mockStreamTransport{
		streams: []*scriptedStream{{events: []logship.StreamEvent{recordEvent("a")}}},
	}

	handle, _ := newHandle(t, transport, tailConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handle.Next(ctx)
	require.Error(t, err)
	require.False(t, handle.IsActive())
}

// Package shipper provides the buffered delivery pipeline: producers admit
// records to a bounded buffer, and a background flush loop drains, chunks,
// and delivers them through a retry executor protected by a circuit breaker.
//
// The package bridges the interfaces of the root package with the internal
// buffer and resilience machinery. Callers interact with a Shipper through
// Write, WriteBatch, Flush, and Shutdown.
package shipper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/logship"
	"github.com/hyp3rd/logship/internal/buffer"
	"github.com/hyp3rd/logship/internal/resilience"
)

// Shipper is the buffered log-shipping adapter. It owns the bounded buffer,
// the flush loop, and the resilience layer around the transport. All exported
// methods are safe for concurrent use.
type Shipper struct {
	config    logship.Config
	transport logship.Transport
	buf       *buffer.Buffer
	executor  *resilience.Executor
	classify  resilience.Classifier

	triggerCh chan struct{}
	flushCh   chan chan error
	stopCh    chan struct{}
	wg        sync.WaitGroup

	closed     bool
	closeMutex sync.Mutex

	enqueued     atomic.Uint64
	delivered    atomic.Uint64
	dropped      atomic.Uint64
	requeued     atomic.Uint64
	retries      atomic.Uint64
	sendErrors   atomic.Uint64
	breakerOpens atomic.Uint64
}

// New creates a shipper delivering through the given transport and starts its
// background flush loop.
func New(config logship.Config, transport logship.Transport) (*Shipper, error) {
	if transport == nil {
		return nil, ewrap.New("transport cannot be nil")
	}

	config = config.Normalize()

	err := config.Validate()
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid shipper configuration")
	}

	shipper := &Shipper{
		config:    config,
		transport: transport,
		buf: buffer.New(buffer.Config{
			MaxEntries:         config.MaxEntries,
			MaxBytes:           config.MaxBytes,
			FlushThreshold:     config.FlushThreshold,
			FlushByteThreshold: config.FlushByteThreshold,
			FlushInterval:      config.FlushInterval,
		}),
		triggerCh: make(chan struct{}, 1),
		flushCh:   make(chan chan error, 1),
		stopCh:    make(chan struct{}),
	}

	shipper.classify = resilience.DefaultClassifier
	if config.Classify != nil {
		shipper.classify = config.Classify
	}

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: config.FailureThreshold,
		SuccessThreshold: config.SuccessThreshold,
		ResetTimeout:     config.ResetTimeout,
		OnOpen: func() {
			shipper.breakerOpens.Add(1)
			logship.FireHooks(context.Background(), &logship.Event{Kind: logship.EventBreakerOpened})
		},
	})

	shipper.executor = resilience.NewExecutor(resilience.ExecutorConfig{
		MaxAttempts: config.MaxAttempts,
		Backoff:     resilience.NewBackoff(config.BaseDelay, config.MaxDelay),
		Breaker:     breaker,
		Classify:    shipper.classify,
		OnRetry: func(int, error) {
			shipper.retries.Add(1)
		},
	})

	shipper.start()

	return shipper, nil
}

// Write admits a record to the buffer. It returns ErrBufferFull without
// buffering when the record does not fit; the caller may force a Flush and
// retry. Admission may trigger an asynchronous flush but never waits for one.
func (s *Shipper) Write(_ context.Context, record logship.Record) error {
	s.closeMutex.Lock()
	closed := s.closed
	s.closeMutex.Unlock()

	if closed {
		return logship.ErrShipperClosed
	}

	record = stamp(record)

	if !s.buf.Admit(record) {
		return logship.ErrBufferFull
	}

	s.enqueued.Add(1)
	s.reportMetrics()

	if s.buf.ShouldFlush() {
		s.trigger()
	}

	return nil
}

// WriteBatch bypasses the buffer and delivers the records directly, still
// going through chunking, retry, and the circuit breaker. The result reports
// per-record failures; records that fail here are never re-queued.
func (s *Shipper) WriteBatch(ctx context.Context, records []logship.Record) (logship.BatchResult, error) {
	s.closeMutex.Lock()
	closed := s.closed
	s.closeMutex.Unlock()

	if closed {
		return logship.BatchResult{}, logship.ErrShipperClosed
	}

	stamped := make([]logship.Record, len(records))
	for i, record := range records {
		stamped[i] = stamp(record)
	}

	var result logship.BatchResult

	for _, chunk := range chunkRecords(stamped, s.config.MaxBatchEntries, s.config.MaxBatchBytes) {
		sendResult, err := s.deliver(ctx, chunk)
		if err != nil {
			for _, record := range chunk {
				result.Failures = append(result.Failures, logship.RecordFailure{ID: record.ID, Err: err})
			}

			continue
		}

		result.SuccessCount += sendResult.Accepted
		result.Failures = append(result.Failures, sendResult.Failed...)
	}

	s.delivered.Add(uint64(result.SuccessCount))
	s.reportMetrics()

	return result, nil
}

// Flush forces an immediate drain-and-send cycle and waits for it to
// complete, bounded by the configured flush timeout.
func (s *Shipper) Flush(ctx context.Context) error {
	s.closeMutex.Lock()
	closed := s.closed
	s.closeMutex.Unlock()

	if closed {
		return logship.ErrShipperClosed
	}

	done := make(chan error, 1)

	select {
	case s.flushCh <- done:
	case <-s.stopCh:
		return logship.ErrShipperClosed
	case <-ctx.Done():
		return ewrap.Wrap(ctx.Err(), "flush aborted")
	}

	select {
	case err := <-done:
		return err
	case <-time.After(s.config.FlushTimeout):
		return logship.ErrFlushTimeout
	case <-ctx.Done():
		return ewrap.Wrap(ctx.Err(), "flush aborted")
	}
}

// Shutdown stops the flush loop, performs one final bounded drain-and-send,
// and discards whatever could not be delivered, reporting the discarded count
// through the drop signal. Shutdown never blocks indefinitely.
func (s *Shipper) Shutdown(ctx context.Context) error {
	s.closeMutex.Lock()

	if s.closed {
		s.closeMutex.Unlock()

		return logship.ErrShipperClosed
	}

	s.closed = true
	s.closeMutex.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	finalCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	flushErr := s.runCycle(finalCtx)

	// Anything still buffered (re-admitted failures, late admissions) is
	// discarded now, with the count surfaced to observers.
	if remaining := s.buf.Drain(); len(remaining) > 0 {
		s.drop(remaining, logship.ErrShipperClosed)
		s.reportMetrics()

		return ewrap.New("discarded buffered records at shutdown").
			WithMetadata("discarded", len(remaining))
	}

	if flushErr != nil {
		return ewrap.Wrap(flushErr, "final flush failed")
	}

	return nil
}

// Metrics returns a snapshot of the current pipeline counters.
func (s *Shipper) Metrics() logship.Metrics {
	return logship.Metrics{
		Enqueued:     s.enqueued.Load(),
		Delivered:    s.delivered.Load(),
		Dropped:      s.dropped.Load(),
		Requeued:     s.requeued.Load(),
		Retries:      s.retries.Load(),
		SendErrors:   s.sendErrors.Load(),
		BreakerOpens: s.breakerOpens.Load(),
		QueueDepth:   s.buf.Len(),
		QueueBytes:   s.buf.Bytes(),
	}
}

// start begins the background flush goroutine.
func (s *Shipper) start() {
	s.wg.Add(1)

	go s.run()
}

// run is the flush loop. Running every cycle on this single goroutine
// guarantees at most one drain-and-send is in flight; producer triggers
// coalesce through the 1-slot trigger channel.
func (s *Shipper) run() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Scheduled cycle failures surface via hooks and metrics.
			_ = s.runCycle(ctx)
		case <-s.triggerCh:
			_ = s.runCycle(ctx)
		case done := <-s.flushCh:
			done <- s.runCycle(ctx)
		case <-s.stopCh:
			return
		}
	}
}

// trigger requests a flush cycle without blocking. A trigger arriving while
// one is already pending is coalesced.
func (s *Shipper) trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// runCycle drains the buffer, chunks the records, and drives each chunk
// through the retry executor. Failed-but-retryable chunks are re-admitted;
// terminally failed chunks are dropped with an observable signal.
func (s *Shipper) runCycle(ctx context.Context) error {
	records := s.buf.Drain()
	if len(records) == 0 {
		return nil
	}

	var firstErr error

	for _, chunk := range chunkRecords(records, s.config.MaxBatchEntries, s.config.MaxBatchBytes) {
		result, err := s.deliver(ctx, chunk)

		switch {
		case err == nil:
			s.delivered.Add(uint64(result.Accepted))
			logship.FireHooks(ctx, &logship.Event{Kind: logship.EventDelivered, Records: result.Accepted})

			if len(result.Failed) > 0 {
				s.handleRejected(ctx, chunk, result.Failed)
			}
		case s.retryLater(err):
			s.requeue(ctx, chunk, err)
		default:
			s.drop(chunk, err)
		}

		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.reportMetrics()

	return firstErr
}

// deliver sends one chunk through the retry executor. The breaker wraps each
// individual attempt inside Execute, not the sequence as a whole.
func (s *Shipper) deliver(ctx context.Context, chunk []logship.Record) (*logship.SendResult, error) {
	var result *logship.SendResult

	err := s.executor.Execute(ctx, func(ctx context.Context) error {
		sendResult, err := s.transport.Send(ctx, chunk)
		if err != nil {
			s.sendErrors.Add(1)

			return err
		}

		result = sendResult

		return nil
	})
	if err != nil {
		return nil, err
	}

	if result == nil {
		result = &logship.SendResult{Accepted: len(chunk)}
	}

	return result, nil
}

// retryLater reports whether a failed chunk should be re-admitted for a
// later cycle. Exhausted-but-retryable errors qualify, as does a circuit
// rejection: the records are not at fault and may succeed once the breaker
// re-closes.
func (s *Shipper) retryLater(err error) bool {
	return errors.Is(err, logship.ErrCircuitOpen) || s.classify(err)
}

// handleRejected degrades a partial-success response to per-record
// retry/drop: rejected records with retryable causes are re-admitted, the
// rest are dropped.
func (s *Shipper) handleRejected(ctx context.Context, chunk []logship.Record, failed []logship.RecordFailure) {
	byID := make(map[string]logship.Record, len(chunk))
	for _, record := range chunk {
		byID[record.ID] = record
	}

	var retryable, terminal []logship.Record

	terminalErr := error(nil)

	for _, failure := range failed {
		record, ok := byID[failure.ID]
		if !ok {
			continue
		}

		if s.classify(failure.Err) {
			retryable = append(retryable, record)
		} else {
			terminal = append(terminal, record)

			if terminalErr == nil {
				terminalErr = failure.Err
			}
		}
	}

	if len(retryable) > 0 {
		s.requeue(ctx, retryable, ewrap.New("records rejected by backend"))
	}

	if len(terminal) > 0 {
		s.drop(terminal, terminalErr)
	}
}

// requeue re-admits failed records for a later cycle, preserving their order.
// Records that no longer fit are dropped with the original failure as cause.
func (s *Shipper) requeue(ctx context.Context, records []logship.Record, cause error) {
	var overflow []logship.Record

	admitted := 0

	for _, record := range records {
		if s.buf.Admit(record) {
			admitted++
		} else {
			overflow = append(overflow, record)
		}
	}

	if admitted > 0 {
		s.requeued.Add(uint64(admitted))
		logship.FireHooks(ctx, &logship.Event{Kind: logship.EventRequeued, Records: admitted, Err: cause})
	}

	if len(overflow) > 0 {
		s.drop(overflow, ewrap.Wrap(cause, "re-admission rejected, buffer full"))
	}
}

// drop discards records and surfaces the loss through the drop handler and
// the EventDropped hook. Loss is never silent.
func (s *Shipper) drop(records []logship.Record, cause error) {
	s.dropped.Add(uint64(len(records)))

	logship.FireHooks(context.Background(), &logship.Event{
		Kind:    logship.EventDropped,
		Records: len(records),
		Err:     cause,
	})

	if s.config.DropHandler != nil {
		s.config.DropHandler(records, cause)
	}
}

// reportMetrics pushes a snapshot to the configured reporter and the global
// handler registry.
func (s *Shipper) reportMetrics() {
	metrics := s.Metrics()

	if s.config.MetricsReporter != nil {
		s.config.MetricsReporter(metrics)
	}

	logship.EmitMetrics(context.Background(), metrics)
}

// stamp assigns an ID and timestamp to records missing them.
func stamp(record logship.Record) logship.Record {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	return record
}

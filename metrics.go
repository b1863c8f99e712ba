package logship

import (
	"context"
	"sync"

	"github.com/hyp3rd/logship/internal/constants"
)

// Metrics represents health metrics emitted by the shipping pipeline.
type Metrics struct {
	// Enqueued is the total number of records admitted to the buffer.
	Enqueued uint64
	// Delivered is the total number of records acknowledged by the backend.
	Delivered uint64
	// Dropped is the total number of records discarded without delivery.
	Dropped uint64
	// Requeued is the total number of records re-admitted after a failed
	// delivery cycle.
	Requeued uint64
	// Retries is the total number of delivery retry attempts.
	Retries uint64
	// SendErrors is the total number of failed transport sends.
	SendErrors uint64
	// BreakerOpens is the total number of circuit breaker trips.
	BreakerOpens uint64
	// QueueDepth is the current number of buffered records.
	QueueDepth int
	// QueueBytes is the current estimated byte total of buffered records.
	QueueBytes int
}

// MetricsHandler receives pipeline metrics snapshots.
type MetricsHandler func(context.Context, Metrics)

//nolint:gochecknoglobals // metrics use a package-level registry for global handlers.
var metricsRegistryOnce = sync.OnceValue(func() *metricsHandlerRegistry {
	return &metricsHandlerRegistry{}
})

// RegisterMetricsHandler adds a global handler invoked when pipeline metrics
// are emitted.
func RegisterMetricsHandler(handler MetricsHandler) {
	if handler == nil {
		return
	}

	metricsRegistryOnce().register(handler)
}

// ClearMetricsHandlers removes all registered metrics handlers.
func ClearMetricsHandlers() {
	metricsRegistryOnce().reset()
}

// EmitMetrics notifies global handlers with the provided metrics snapshot.
func EmitMetrics(ctx context.Context, metrics Metrics) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultTimeout)
	defer cancel()

	metricsRegistryOnce().emit(ctx, metrics)
}

type metricsHandlerRegistry struct {
	mu       sync.RWMutex
	handlers []MetricsHandler
}

func (r *metricsHandlerRegistry) register(handler MetricsHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, handler)
}

func (r *metricsHandlerRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = nil
}

func (r *metricsHandlerRegistry) emit(ctx context.Context, metrics Metrics) {
	for _, handler := range r.snapshot() {
		handler(ctx, metrics)
	}
}

func (r *metricsHandlerRegistry) snapshot() []MetricsHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.handlers) == 0 {
		return nil
	}

	clone := make([]MetricsHandler, len(r.handlers))
	copy(clone, r.handlers)

	return clone
}

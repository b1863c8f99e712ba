package logship

import "time"

// ConfigBuilder provides a fluent API for constructing pipeline
// configurations. It allows for more readable and chainable configuration
// setup.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder creates a new builder seeded with the default
// configuration. This is the entry point for the fluent configuration API.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: DefaultConfig()}
}

// WithBufferLimits caps the buffer by entry count and estimated byte total.
// Example: builder.WithBufferLimits(10000, 8<<20).
func (b *ConfigBuilder) WithBufferLimits(maxEntries, maxBytes int) *ConfigBuilder {
	b.config.MaxEntries = maxEntries
	b.config.MaxBytes = maxBytes

	return b
}

// WithFlushThresholds sets the entry-count and byte-total thresholds at which
// a producer-observed flush is triggered.
func (b *ConfigBuilder) WithFlushThresholds(entries, bytes int) *ConfigBuilder {
	b.config.FlushThreshold = entries
	b.config.FlushByteThreshold = bytes

	return b
}

// WithFlushInterval sets the period of the background flush timer.
func (b *ConfigBuilder) WithFlushInterval(interval time.Duration) *ConfigBuilder {
	b.config.FlushInterval = interval

	return b
}

// WithFlushTimeout bounds how long an explicit Flush waits for completion.
func (b *ConfigBuilder) WithFlushTimeout(timeout time.Duration) *ConfigBuilder {
	b.config.FlushTimeout = timeout

	return b
}

// WithBatchLimits caps each transport send by record count and estimated
// bytes. Chunk boundaries never split a single record.
func (b *ConfigBuilder) WithBatchLimits(maxEntries, maxBytes int) *ConfigBuilder {
	b.config.MaxBatchEntries = maxEntries
	b.config.MaxBatchBytes = maxBytes

	return b
}

// WithRetry configures the delivery retry budget and backoff window.
func (b *ConfigBuilder) WithRetry(maxAttempts int, baseDelay, maxDelay time.Duration) *ConfigBuilder {
	b.config.MaxAttempts = maxAttempts
	b.config.BaseDelay = baseDelay
	b.config.MaxDelay = maxDelay

	return b
}

// WithBreaker configures the circuit breaker thresholds.
func (b *ConfigBuilder) WithBreaker(failureThreshold, successThreshold int, resetTimeout time.Duration) *ConfigBuilder {
	b.config.FailureThreshold = failureThreshold
	b.config.SuccessThreshold = successThreshold
	b.config.ResetTimeout = resetTimeout

	return b
}

// WithMaxReconnects sets the reconnect budget for live-tail streams.
func (b *ConfigBuilder) WithMaxReconnects(maxReconnects int) *ConfigBuilder {
	b.config.MaxReconnects = maxReconnects

	return b
}

// WithShutdownTimeout bounds the final drain-and-send during Shutdown.
func (b *ConfigBuilder) WithShutdownTimeout(timeout time.Duration) *ConfigBuilder {
	b.config.ShutdownTimeout = timeout

	return b
}

// WithClassifier overrides the default retryable/terminal error
// classification.
func (b *ConfigBuilder) WithClassifier(classify func(err error) bool) *ConfigBuilder {
	b.config.Classify = classify

	return b
}

// WithDropHandler installs a handler invoked when records are dropped after
// exhausting their delivery options.
func (b *ConfigBuilder) WithDropHandler(handler DropFn) *ConfigBuilder {
	b.config.DropHandler = handler

	return b
}

// WithMetricsReporter installs a reporter receiving metrics snapshots as they
// change.
func (b *ConfigBuilder) WithMetricsReporter(reporter func(Metrics)) *ConfigBuilder {
	b.config.MetricsReporter = reporter

	return b
}

// Build normalizes and validates the configuration.
func (b *ConfigBuilder) Build() (Config, error) {
	config := b.config.Normalize()

	err := config.Validate()
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

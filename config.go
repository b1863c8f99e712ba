package logship

import (
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/logship/internal/constants"
)

// Default configuration values.
const (
	// DefaultMaxEntries is the default cap on buffered records.
	DefaultMaxEntries = 10_000
	// DefaultMaxBytes is the default cap on buffered record bytes.
	DefaultMaxBytes = 8 * 1024 * 1024
	// DefaultFlushThreshold is the buffered-entry count that triggers a flush.
	DefaultFlushThreshold = 256
	// DefaultFlushByteThreshold is the buffered byte total that triggers a flush.
	DefaultFlushByteThreshold = 1024 * 1024
	// DefaultFlushInterval is the period of the background flush timer.
	DefaultFlushInterval = 5 * time.Second
	// DefaultMaxBatchEntries is the per-batch record cap for transport sends.
	DefaultMaxBatchEntries = 500
	// DefaultMaxBatchBytes is the per-batch byte cap for transport sends.
	DefaultMaxBatchBytes = 1024 * 1024
	// DefaultMaxAttempts is the number of delivery attempts per batch.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the first retry backoff delay.
	DefaultBaseDelay = time.Second
	// DefaultMaxDelay caps the computed backoff delay.
	DefaultMaxDelay = 20 * time.Second
	// DefaultFailureThreshold is the consecutive-failure count that opens the breaker.
	DefaultFailureThreshold = 5
	// DefaultSuccessThreshold is the half-open success count that closes the breaker.
	DefaultSuccessThreshold = 2
	// DefaultResetTimeout is how long an open breaker waits before probing.
	DefaultResetTimeout = 30 * time.Second
	// DefaultMaxReconnects is the reconnect budget for a live-tail stream.
	DefaultMaxReconnects = 5
	// DefaultShutdownTimeout bounds the final drain during Shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// DropFn is invoked when buffered records are dropped after exhausting their
// delivery options. The error explains why delivery failed.
type DropFn func(records []Record, err error)

// Config holds the tuning knobs for the shipping pipeline.
type Config struct {
	// MaxEntries caps the number of buffered records.
	MaxEntries int
	// MaxBytes caps the estimated byte total of buffered records.
	MaxBytes int
	// FlushThreshold is the buffered-entry count at which a flush is triggered.
	FlushThreshold int
	// FlushByteThreshold is the buffered byte total at which a flush is triggered.
	FlushByteThreshold int
	// FlushInterval is the period of the background flush timer.
	FlushInterval time.Duration
	// FlushTimeout bounds how long an explicit Flush waits for completion.
	FlushTimeout time.Duration
	// MaxBatchEntries caps records per transport send.
	MaxBatchEntries int
	// MaxBatchBytes caps estimated bytes per transport send.
	MaxBatchBytes int
	// MaxAttempts is the number of delivery attempts per batch, including the
	// first.
	MaxAttempts int
	// BaseDelay is the first retry backoff delay.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff delay before jitter.
	MaxDelay time.Duration
	// FailureThreshold opens the circuit breaker after this many consecutive
	// failures.
	FailureThreshold int
	// SuccessThreshold closes a half-open breaker after this many consecutive
	// successes.
	SuccessThreshold int
	// ResetTimeout is how long an open breaker waits before allowing a probe.
	ResetTimeout time.Duration
	// MaxReconnects is the reconnect budget for a live-tail stream. The
	// counter resets on every successfully received record.
	MaxReconnects int
	// ShutdownTimeout bounds the final drain-and-send during Shutdown.
	ShutdownTimeout time.Duration
	// Classify overrides the default retryable/terminal error classification.
	// It returns true when the error is worth retrying.
	Classify func(err error) bool
	// DropHandler is invoked when records are dropped after exhausting their
	// delivery options.
	DropHandler DropFn
	// MetricsReporter receives pipeline metrics snapshots as they change.
	MetricsReporter func(Metrics)
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries:         DefaultMaxEntries,
		MaxBytes:           DefaultMaxBytes,
		FlushThreshold:     DefaultFlushThreshold,
		FlushByteThreshold: DefaultFlushByteThreshold,
		FlushInterval:      DefaultFlushInterval,
		FlushTimeout:       constants.DefaultTimeout,
		MaxBatchEntries:    DefaultMaxBatchEntries,
		MaxBatchBytes:      DefaultMaxBatchBytes,
		MaxAttempts:        DefaultMaxAttempts,
		BaseDelay:          DefaultBaseDelay,
		MaxDelay:           DefaultMaxDelay,
		FailureThreshold:   DefaultFailureThreshold,
		SuccessThreshold:   DefaultSuccessThreshold,
		ResetTimeout:       DefaultResetTimeout,
		MaxReconnects:      DefaultMaxReconnects,
		ShutdownTimeout:    DefaultShutdownTimeout,
	}
}

// Normalize fills zero-valued fields with defaults and returns the result.
// Negative values are left in place for Validate to reject.
func (c Config) Normalize() Config {
	defaults := DefaultConfig()

	if c.MaxEntries == 0 {
		c.MaxEntries = defaults.MaxEntries
	}

	if c.MaxBytes == 0 {
		c.MaxBytes = defaults.MaxBytes
	}

	if c.FlushThreshold == 0 {
		c.FlushThreshold = defaults.FlushThreshold
	}

	if c.FlushByteThreshold == 0 {
		c.FlushByteThreshold = defaults.FlushByteThreshold
	}

	if c.FlushInterval == 0 {
		c.FlushInterval = defaults.FlushInterval
	}

	if c.FlushTimeout == 0 {
		c.FlushTimeout = defaults.FlushTimeout
	}

	if c.MaxBatchEntries == 0 {
		c.MaxBatchEntries = defaults.MaxBatchEntries
	}

	if c.MaxBatchBytes == 0 {
		c.MaxBatchBytes = defaults.MaxBatchBytes
	}

	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}

	if c.BaseDelay == 0 {
		c.BaseDelay = defaults.BaseDelay
	}

	if c.MaxDelay == 0 {
		c.MaxDelay = defaults.MaxDelay
	}

	if c.FailureThreshold == 0 {
		c.FailureThreshold = defaults.FailureThreshold
	}

	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = defaults.SuccessThreshold
	}

	if c.ResetTimeout == 0 {
		c.ResetTimeout = defaults.ResetTimeout
	}

	if c.MaxReconnects == 0 {
		c.MaxReconnects = defaults.MaxReconnects
	}

	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}

	return c
}

// Validate reports configuration errors. Call after Normalize.
func (c Config) Validate() error {
	switch {
	case c.MaxEntries < 0 || c.MaxBytes < 0:
		return ewrap.New("buffer limits cannot be negative")
	case c.FlushThreshold > c.MaxEntries:
		return ewrap.New("flush threshold exceeds buffer entry limit").
			WithMetadata("flush_threshold", c.FlushThreshold).
			WithMetadata("max_entries", c.MaxEntries)
	case c.FlushByteThreshold > c.MaxBytes:
		return ewrap.New("flush byte threshold exceeds buffer byte limit").
			WithMetadata("flush_byte_threshold", c.FlushByteThreshold).
			WithMetadata("max_bytes", c.MaxBytes)
	case c.MaxAttempts < 1:
		return ewrap.New("max attempts must be at least 1")
	case c.BaseDelay < 0 || c.MaxDelay < 0:
		return ewrap.New("backoff delays cannot be negative")
	case c.MaxDelay < c.BaseDelay:
		return ewrap.New("max delay cannot be below base delay").
			WithMetadata("base_delay", c.BaseDelay.String()).
			WithMetadata("max_delay", c.MaxDelay.String())
	case c.FailureThreshold < 1 || c.SuccessThreshold < 1:
		return ewrap.New("breaker thresholds must be at least 1")
	case c.MaxReconnects < 0:
		return ewrap.New("max reconnects cannot be negative")
	default:
		return nil
	}
}

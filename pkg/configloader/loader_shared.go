package configloader

import (
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/logship"
)

type rawConfig struct {
	Buffer struct {
		MaxEntries         *int   `mapstructure:"max_entries" yaml:"max_entries"`
		MaxBytes           *int   `mapstructure:"max_bytes" yaml:"max_bytes"`
		FlushThreshold     *int   `mapstructure:"flush_threshold" yaml:"flush_threshold"`
		FlushByteThreshold *int   `mapstructure:"flush_byte_threshold" yaml:"flush_byte_threshold"`
		FlushInterval      string `mapstructure:"flush_interval" yaml:"flush_interval"`
		FlushTimeout       string `mapstructure:"flush_timeout" yaml:"flush_timeout"`
	} `mapstructure:"buffer" yaml:"buffer"`
	Batch struct {
		MaxEntries *int `mapstructure:"max_entries" yaml:"max_entries"`
		MaxBytes   *int `mapstructure:"max_bytes" yaml:"max_bytes"`
	} `mapstructure:"batch" yaml:"batch"`
	Retry struct {
		MaxAttempts *int   `mapstructure:"max_attempts" yaml:"max_attempts"`
		BaseDelay   string `mapstructure:"base_delay" yaml:"base_delay"`
		MaxDelay    string `mapstructure:"max_delay" yaml:"max_delay"`
	} `mapstructure:"retry" yaml:"retry"`
	Breaker struct {
		FailureThreshold *int   `mapstructure:"failure_threshold" yaml:"failure_threshold"`
		SuccessThreshold *int   `mapstructure:"success_threshold" yaml:"success_threshold"`
		ResetTimeout     string `mapstructure:"reset_timeout" yaml:"reset_timeout"`
	} `mapstructure:"breaker" yaml:"breaker"`
	Tail struct {
		MaxReconnects *int `mapstructure:"max_reconnects" yaml:"max_reconnects"`
	} `mapstructure:"tail" yaml:"tail"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

func applyRaw(raw rawConfig) (*logship.Config, error) {
	cfg := logship.DefaultConfig()

	if raw.Buffer.MaxEntries != nil {
		cfg.MaxEntries = *raw.Buffer.MaxEntries
	}

	if raw.Buffer.MaxBytes != nil {
		cfg.MaxBytes = *raw.Buffer.MaxBytes
	}

	if raw.Buffer.FlushThreshold != nil {
		cfg.FlushThreshold = *raw.Buffer.FlushThreshold
	}

	if raw.Buffer.FlushByteThreshold != nil {
		cfg.FlushByteThreshold = *raw.Buffer.FlushByteThreshold
	}

	err := applyDuration(&cfg.FlushInterval, raw.Buffer.FlushInterval, "buffer.flush_interval")
	if err != nil {
		return nil, err
	}

	err = applyDuration(&cfg.FlushTimeout, raw.Buffer.FlushTimeout, "buffer.flush_timeout")
	if err != nil {
		return nil, err
	}

	if raw.Batch.MaxEntries != nil {
		cfg.MaxBatchEntries = *raw.Batch.MaxEntries
	}

	if raw.Batch.MaxBytes != nil {
		cfg.MaxBatchBytes = *raw.Batch.MaxBytes
	}

	if raw.Retry.MaxAttempts != nil {
		cfg.MaxAttempts = *raw.Retry.MaxAttempts
	}

	err = applyDuration(&cfg.BaseDelay, raw.Retry.BaseDelay, "retry.base_delay")
	if err != nil {
		return nil, err
	}

	err = applyDuration(&cfg.MaxDelay, raw.Retry.MaxDelay, "retry.max_delay")
	if err != nil {
		return nil, err
	}

	if raw.Breaker.FailureThreshold != nil {
		cfg.FailureThreshold = *raw.Breaker.FailureThreshold
	}

	if raw.Breaker.SuccessThreshold != nil {
		cfg.SuccessThreshold = *raw.Breaker.SuccessThreshold
	}

	err = applyDuration(&cfg.ResetTimeout, raw.Breaker.ResetTimeout, "breaker.reset_timeout")
	if err != nil {
		return nil, err
	}

	if raw.Tail.MaxReconnects != nil {
		cfg.MaxReconnects = *raw.Tail.MaxReconnects
	}

	err = applyDuration(&cfg.ShutdownTimeout, raw.ShutdownTimeout, "shutdown_timeout")
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func allKeys() []string {
	return []string{
		"buffer.max_entries",
		"buffer.max_bytes",
		"buffer.flush_threshold",
		"buffer.flush_byte_threshold",
		"buffer.flush_interval",
		"buffer.flush_timeout",
		"batch.max_entries",
		"batch.max_bytes",
		"retry.max_attempts",
		"retry.base_delay",
		"retry.max_delay",
		"breaker.failure_threshold",
		"breaker.success_threshold",
		"breaker.reset_timeout",
		"tail.max_reconnects",
		"shutdown_timeout",
	}
}

// applyDuration parses value into target when non-empty.
func applyDuration(target *time.Duration, value, key string) error {
	if value == "" {
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return ewrap.Wrap(err, "failed to parse duration").
			WithMetadata("key", key).
			WithMetadata("value", value)
	}

	*target = parsed

	return nil
}

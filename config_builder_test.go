package logship

import (
	"testing"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/stretchr/testify/require"
)

func TestConfigBuilderChain(t *testing.T) {
	t.Parallel()

	dropped := 0

	config, err := NewConfigBuilder().
		WithBufferLimits(2000, 4<<20).
		WithFlushThresholds(100, 512*1024).
		WithFlushInterval(2 * time.Second).
		WithFlushTimeout(3 * time.Second).
		WithBatchLimits(200, 256*1024).
		WithRetry(4, 250*time.Millisecond, 8*time.Second).
		WithBreaker(3, 1, time.Minute).
		WithMaxReconnects(7).
		WithShutdownTimeout(20 * time.Second).
		WithClassifier(func(error) bool { return false }).
		WithDropHandler(func(records []Record, _ error) { dropped += len(records) }).
		Build()
	require.NoError(t, err)

	require.Equal(t, 2000, config.MaxEntries)
	require.Equal(t, 4<<20, config.MaxBytes)
	require.Equal(t, 100, config.FlushThreshold)
	require.Equal(t, 2*time.Second, config.FlushInterval)
	require.Equal(t, 3*time.Second, config.FlushTimeout)
	require.Equal(t, 200, config.MaxBatchEntries)
	require.Equal(t, 4, config.MaxAttempts)
	require.Equal(t, 250*time.Millisecond, config.BaseDelay)
	require.Equal(t, 3, config.FailureThreshold)
	require.Equal(t, 1, config.SuccessThreshold)
	require.Equal(t, time.Minute, config.ResetTimeout)
	require.Equal(t, 7, config.MaxReconnects)
	require.Equal(t, 20*time.Second, config.ShutdownTimeout)
	require.NotNil(t, config.Classify)
	require.False(t, config.Classify(ewrap.New("anything")))

	config.DropHandler([]Record{{}, {}}, ewrap.New("boom"))
	require.Equal(t, 2, dropped)
}

func TestConfigBuilderFillsDefaults(t *testing.T) {
	t.Parallel()

	config, err := NewConfigBuilder().Build()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), config)
}

func TestConfigBuilderRejectsInvalid(t *testing.T) {
	t.Parallel()

	_, err := NewConfigBuilder().
		WithBufferLimits(10, 1<<20).
		WithFlushThresholds(100, 1024).
		Build()
	require.Error(t, err)
}

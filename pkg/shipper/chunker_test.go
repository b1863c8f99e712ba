package shipper

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/logship"
)

func TestChunkRecordsEmpty(t *testing.T) {
	t.Parallel()

	require.Nil(t, chunkRecords(nil, 10, 1024))
	require.Nil(t, chunkRecords([]logship.Record{}, 10, 1024))
}

func TestChunkRecordsByCount(t *testing.T) {
	t.Parallel()

	chunks := chunkRecords(records(10), 4, 1<<20)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 4)
	require.Len(t, chunks[1], 4)
	require.Len(t, chunks[2], 2)
}

func TestChunkRecordsByBytes(t *testing.T) {
	t.Parallel()

	rec := record("sized")
	size := rec.EstimateSize()

	batch := []logship.Record{rec, rec, rec, rec}

	// Room for two records per chunk.
	chunks := chunkRecords(batch, 100, size*2)
	require.Len(t, chunks, 2)
	require.Len(t, chunks[0], 2)
	require.Len(t, chunks[1], 2)
}

func TestChunkRecordsNeverSplitsARecord(t *testing.T) {
	t.Parallel()

	huge := logship.Record{ID: "huge", Body: []byte(strings.Repeat("x", 4096))}
	small := record("small")

	chunks := chunkRecords([]logship.Record{small, huge, small}, 100, 1024)
	require.Len(t, chunks, 3)
	require.Equal(t, "small", chunks[0][0].ID)
	require.Equal(t, "huge", chunks[1][0].ID, "an oversized record forms its own chunk")
	require.Equal(t, "small", chunks[2][0].ID)
}

func TestChunkRecordsPreservesOrder(t *testing.T) {
	t.Parallel()

	chunks := chunkRecords(records(25), 7, 1<<20)

	i := 0

	for _, chunk := range chunks {
		for _, rec := range chunk {
			require.Equal(t, "rec-"+strconv.Itoa(i), rec.ID)
			i++
		}
	}

	require.Equal(t, 25, i)
}

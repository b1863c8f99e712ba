package shipper

import "github.com/hyp3rd/logship"

// chunkRecords splits records into batches respecting both a maximum count
// and a maximum estimated byte size per batch. Chunk boundaries never split a
// single record: a record whose estimate alone exceeds maxBytes forms a chunk
// of its own. Record order is preserved.
func chunkRecords(records []logship.Record, maxEntries, maxBytes int) [][]logship.Record {
	if len(records) == 0 {
		return nil
	}

	chunks := make([][]logship.Record, 0, 1)
	current := make([]logship.Record, 0, min(len(records), maxEntries))
	currentBytes := 0

	for _, record := range records {
		size := record.EstimateSize()

		full := len(current) >= maxEntries ||
			(len(current) > 0 && currentBytes+size > maxBytes)
		if full {
			chunks = append(chunks, current)
			current = make([]logship.Record, 0, maxEntries)
			currentBytes = 0
		}

		current = append(current, record)
		currentBytes += size
	}

	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	return chunks
}

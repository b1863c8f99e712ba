package logship

import "time"

// Footprint estimation constants. The estimate predicts the serialized JSON
// size of a record without encoding it, so buffer admission stays cheap.
const (
	recordBaseSize = 64 // envelope: braces, id, timestamp, punctuation
	fieldOverhead  = 8  // quotes, colon, comma per field
)

// Field represents a key-value pair of structured metadata attached to a
// record.
type Field struct {
	Key   string
	Value any
}

// Record is a single log entry awaiting delivery. A record is immutable once
// admitted to the buffer; callers must not mutate Body or Fields afterwards.
type Record struct {
	// ID identifies the record within a batch. The shipper assigns one at
	// admission when the caller leaves it empty.
	ID string
	// Timestamp is the event time. The shipper stamps admission time when
	// zero.
	Timestamp time.Time
	// Body is the opaque record payload.
	Body []byte
	// GroupKey optionally groups related records (per-host, per-stream).
	GroupKey string
	// Fields carries structured metadata serialized alongside the body.
	Fields []Field
}

// WithField returns a copy of the record with an additional metadata field.
// The receiver is not modified.
func (r Record) WithField(key string, value any) Record {
	fields := make([]Field, len(r.Fields), len(r.Fields)+1)
	copy(fields, r.Fields)
	r.Fields = append(fields, Field{Key: key, Value: value})

	return r
}

// EstimateSize predicts the serialized footprint of the record in bytes. The
// buffer uses it for byte-based admission control; it intentionally
// overestimates slightly rather than undercounting.
func (r Record) EstimateSize() int {
	size := recordBaseSize + len(r.ID) + len(r.Body) + len(r.GroupKey)

	for _, field := range r.Fields {
		size += len(field.Key) + fieldOverhead + estimateValueSize(field.Value)
	}

	return size
}

// estimateValueSize approximates the encoded size of a field value.
func estimateValueSize(value any) int {
	const scalarEstimate = 16

	switch v := value.(type) {
	case string:
		return len(v) + 2
	case []byte:
		return len(v) + 2
	case nil:
		return 4
	default:
		return scalarEstimate
	}
}

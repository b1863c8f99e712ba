// Package transport provides concrete transports for the shipping pipeline.
//
// The HTTP transport delivers record batches to an ingest endpoint with
// optional gzip compression. The websocket transport opens live-tail streams.
// The console transport is a development aid that pretty-prints batches to a
// terminal. All of them depend only on the interfaces of the root package, so
// the resilience core never sees a concrete backend.
package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/logship"
)

// ErrStreamingUnsupported is returned by transports that cannot open live-tail
// streams.
var ErrStreamingUnsupported = ewrap.New("transport does not support live-tail streams")

// StaticToken is a TokenProvider returning a fixed token, typically an API
// key loaded at startup.
type StaticToken string

// Token implements logship.TokenProvider.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// wireRecord is the JSON shape of a record on the wire, shared by the ingest
// body and the tail stream frames.
type wireRecord struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Body      json.RawMessage `json:"body"`
	GroupKey  string          `json:"group,omitempty"`
	Fields    map[string]any  `json:"fields,omitempty"`
}

// toWire converts a record for serialization. A body that is not valid JSON
// is wrapped as a JSON string so the envelope stays parseable.
func toWire(record logship.Record) wireRecord {
	wire := wireRecord{
		ID:        record.ID,
		Timestamp: record.Timestamp,
		GroupKey:  record.GroupKey,
	}

	if json.Valid(record.Body) {
		wire.Body = json.RawMessage(record.Body)
	} else {
		encoded, err := json.Marshal(string(record.Body))
		if err == nil {
			wire.Body = encoded
		}
	}

	if len(record.Fields) > 0 {
		wire.Fields = make(map[string]any, len(record.Fields))
		for _, field := range record.Fields {
			wire.Fields[field.Key] = field.Value
		}
	}

	return wire
}

// fromWire converts a received stream record back to the caller-facing type.
func fromWire(wire wireRecord) logship.Record {
	record := logship.Record{
		ID:        wire.ID,
		Timestamp: wire.Timestamp,
		Body:      []byte(wire.Body),
		GroupKey:  wire.GroupKey,
	}

	if len(wire.Fields) > 0 {
		record.Fields = make([]logship.Field, 0, len(wire.Fields))
		for key, value := range wire.Fields {
			record.Fields = append(record.Fields, logship.Field{Key: key, Value: value})
		}
	}

	return record
}

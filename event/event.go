// Package event models the session event stream as a discriminated union:
// every event carries a string "type" selecting its variant, a registry of
// per-variant decoders enforces required fields at parse time, and unknown
// discriminators fall back to an Unknown variant preserving the raw JSON.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Base carries the fields present on every session event.
type Base struct {
	Id        string `json:"id"`
	Timestamp string `json:"timestamp,omitempty"`
	Type      string `json:"type"`
	ParentId  string `json:"parentId,omitempty"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
}

// EventType returns the discriminator.
func (b *Base) EventType() string {
	return b.Type
}

// EventBase exposes the common fields.
func (b *Base) EventBase() *Base {
	return b
}

// Event is one element of a session's event stream.
type Event interface {
	EventType() string
	EventBase() *Base
}

// Unknown preserves an event whose discriminator has no registered variant.
type Unknown struct {
	Base
	Raw json.RawMessage `json:"-"`
}

type factory struct {
	required []string
	decode   func(data []byte) (Event, error)
}

var registry = map[string]factory{}

func register(eventType string, required []string, decode func(data []byte) (Event, error)) {
	registry[eventType] = factory{required: required, decode: decode}
}

// Parse decodes one session event. Variants that historically carried their
// payload nested under "data" are accepted in both layouts; flat fields win
// when both are present. A missing required field is a parse error - the
// caller drops the event and surfaces the error, the stream continues.
func Parse(data []byte) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	var typ string
	if raw, ok := fields["type"]; ok {
		_ = json.Unmarshal(raw, &typ)
	}
	if typ == "" {
		return nil, errors.New("event: missing type discriminator")
	}
	entry, ok := registry[typ]
	if !ok {
		unknown := &Unknown{Raw: append(json.RawMessage{}, data...)}
		if err := json.Unmarshal(data, &unknown.Base); err != nil {
			return nil, fmt.Errorf("failed to parse event %q: %w", typ, err)
		}
		return unknown, nil
	}
	flattened, fieldSet := flatten(data, fields)
	for _, field := range entry.required {
		if _, ok := fieldSet[field]; !ok {
			return nil, fmt.Errorf("event %q: missing required field %q", typ, field)
		}
	}
	evt, err := entry.decode(flattened)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event %q: %w", typ, err)
	}
	return evt, nil
}

// flatten merges a nested {data:{...}} payload into the top level without
// overriding fields already present there.
func flatten(data []byte, fields map[string]json.RawMessage) ([]byte, map[string]json.RawMessage) {
	raw, ok := fields["data"]
	if !ok {
		return data, fields
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil || len(nested) == 0 {
		return data, fields
	}
	merged := make(map[string]json.RawMessage, len(fields)+len(nested))
	for key, value := range nested {
		merged[key] = value
	}
	for key, value := range fields {
		merged[key] = value
	}
	flattened, err := json.Marshal(merged)
	if err != nil {
		return data, fields
	}
	return flattened, merged
}

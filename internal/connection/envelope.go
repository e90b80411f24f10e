package connection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the unit exchanged over the channel: {"type": ..., ...fields}.
type Envelope struct {
	Type string

	// Fields holds every member except "type".
	Fields map[string]json.RawMessage

	// Raw is the frame as received. Empty for locally built envelopes.
	Raw []byte
}

// NewEnvelope builds an outbound envelope from arbitrary field values.
func NewEnvelope(msgType string, data map[string]any) (Envelope, error) {
	env := Envelope{Type: msgType}
	if len(data) == 0 {
		return env, nil
	}

	env.Fields = make(map[string]json.RawMessage, len(data))
	for k, v := range data {
		if k == "type" {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal field %q: %w", k, err)
		}
		env.Fields[k] = raw
	}
	return env, nil
}

// MarshalJSON flattens the envelope into a single object.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	t, err := json.Marshal(e.Type)
	if err != nil {
		return nil, err
	}
	out["type"] = t
	return json.Marshal(out)
}

// ParseEnvelope decodes an inbound frame. Frames that are not JSON objects
// or lack a string "type" are rejected.
func ParseEnvelope(data []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, errors.New("frame is not a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}

	rawType, ok := fields["type"]
	if !ok {
		return Envelope{}, errors.New("frame has no type")
	}
	var msgType string
	if err := json.Unmarshal(rawType, &msgType); err != nil || msgType == "" {
		return Envelope{}, errors.New("frame type is not a non-empty string")
	}
	delete(fields, "type")

	return Envelope{Type: msgType, Fields: fields, Raw: data}, nil
}

// Decode unmarshals the whole frame into v.
func (e Envelope) Decode(v any) error {
	data := e.Raw
	if len(data) == 0 {
		var err error
		if data, err = e.MarshalJSON(); err != nil {
			return err
		}
	}
	return json.Unmarshal(data, v)
}

// Field unmarshals a single member into v. Returns false if absent.
func (e Envelope) Field(name string, v any) (bool, error) {
	raw, ok := e.Fields[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

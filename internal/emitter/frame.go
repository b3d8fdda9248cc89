package emitter

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	// Wildcard subscribes a handler to every frame type.
	Wildcard = "*"

	// DefaultType is assigned to frames that carry no "type" field.
	DefaultType = "message"
)

// ErrNotObject is returned by Decode when the payload is valid JSON but not an object.
var ErrNotObject = errors.New("frame is not a json object")

// Frame is a decoded inbound message.
type Frame struct {
	Type       string          // Event type tag, never empty
	Data       json.RawMessage // The complete frame object, type field included
	ReceivedAt time.Time       // Local receive time
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(v any) error {
	return json.Unmarshal(f.Data, v)
}

// envelope is used for type extraction only.
type envelope struct {
	Type string `json:"type"`
}

// Decode parses raw bytes into a Frame.
func Decode(data []byte, receivedAt time.Time) (Frame, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Frame{}, err
	}
	if fields == nil {
		return Frame{}, ErrNotObject
	}

	var env envelope
	if raw, ok := fields["type"]; ok {
		// A non-string type is treated like a missing one.
		_ = json.Unmarshal(raw, &env.Type)
	}
	if env.Type == "" {
		env.Type = DefaultType
	}

	return Frame{
		Type:       env.Type,
		Data:       json.RawMessage(data),
		ReceivedAt: receivedAt,
	}, nil
}

// NewFrame builds a frame for an outbound or locally generated payload.
func NewFrame(eventType string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: eventType, Data: data, ReceivedAt: time.Now()}, nil
}

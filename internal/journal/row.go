package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/fleetwatch/internal/connection"
	"github.com/rickgao/fleetwatch/internal/events"
	"github.com/rickgao/fleetwatch/internal/model"
)

// row is one status_events record.
type row struct {
	ID         uuid.UUID
	InstanceID string
	SessionID  string
	Event      string
	FrameType  string
	AgentID    string
	State      string
	Payload    []byte
	ReceivedAt time.Time
}

// skip reports whether an event is heartbeat noise.
func skip(ev events.Event) bool {
	env, ok := ev.Payload.(connection.Envelope)
	return ok && (env.Type == connection.TypePing || env.Type == connection.TypePong)
}

// transform converts a dispatched event into a row.
func transform(ev events.Event, instanceID, sessionID string, at time.Time) row {
	r := row{
		ID:         uuid.New(),
		InstanceID: instanceID,
		SessionID:  sessionID,
		Event:      ev.Name,
		ReceivedAt: at,
	}

	var body any
	switch p := ev.Payload.(type) {
	case connection.Envelope:
		r.FrameType = p.Type
		if f, err := model.Decode(p); err == nil {
			r.AgentID = f.AgentRef()
		}
		raw := p.Raw
		if len(raw) == 0 {
			raw, _ = p.MarshalJSON()
		}
		if json.Valid(raw) {
			r.Payload = raw
			return r
		}
		body = map[string]string{"raw": string(raw)}
	case connection.ConnectedEvent:
		r.SessionID = p.SessionID
		r.State = connection.StateConnected.String()
		body = map[string]any{"endpoint": p.Endpoint, "flushed": p.Flushed}
	case connection.DisconnectedEvent:
		body = map[string]any{"code": p.Code, "reason": p.Reason, "tag": p.Tag.String()}
	case connection.StateChangeEvent:
		r.State = p.To.String()
		body = map[string]string{"from": p.From.String(), "to": p.To.String()}
	case connection.ErrorEvent:
		m := map[string]any{"error": errString(p.Err)}
		if p.Envelope != nil {
			r.FrameType = p.Envelope.Type
			m["frame"] = json.RawMessage(p.Envelope.Raw)
			if !json.Valid(p.Envelope.Raw) {
				delete(m, "frame")
			}
		}
		body = m
	case connection.ReconnectingEvent:
		body = map[string]any{"attempt": p.Attempt, "delay_ms": p.Delay.Milliseconds()}
	case connection.ReconnectFailedEvent:
		r.State = connection.StateError.String()
		body = map[string]any{"attempts": p.Attempts}
	default:
		body = p
	}

	data, err := json.Marshal(body)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"value": fmt.Sprint(body)})
	}
	r.Payload = data
	return r
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

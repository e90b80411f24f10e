package model

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/fleetwatch/internal/connection"
	"github.com/rickgao/fleetwatch/internal/events"
)

// ErrUnknownFrame is returned by Decode for types this package does not model.
var ErrUnknownFrame = errors.New("unknown frame type")

// Types lists every modelled frame type.
var Types = []string{
	TypeConnected,
	TypeAgentStatusChange,
	TypeNewCommunication,
	TypeMeetingEvent,
	TypeAgentRegistered,
	TypeAgentUnregistered,
}

// Decode converts an envelope into its typed frame.
func Decode(env connection.Envelope) (Frame, error) {
	var f Frame
	var err error

	switch env.Type {
	case TypeConnected:
		var v Welcome
		err = env.Decode(&v)
		f = v
	case TypeAgentStatusChange:
		var v AgentStatusChange
		err = env.Decode(&v)
		f = v
	case TypeNewCommunication:
		var v Communication
		err = env.Decode(&v)
		f = v
	case TypeMeetingEvent:
		var v MeetingEvent
		err = env.Decode(&v)
		f = v
	case TypeAgentRegistered, TypeAgentUnregistered:
		var v AgentRegistration
		err = env.Decode(&v)
		f = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, env.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return f, nil
}

// Handle subscribes h to frames of frameType decoded as T. Frames that do
// not decode are logged and skipped.
func Handle[T Frame](d *events.Dispatcher, frameType string, logger *slog.Logger, h func(T)) events.Subscription {
	if logger == nil {
		logger = slog.Default()
	}
	return events.On(d, connection.MessageKey(frameType), func(env connection.Envelope) {
		f, err := Decode(env)
		if err != nil {
			logger.Warn("dropping undecodable frame", "type", env.Type, "error", err)
			return
		}
		v, ok := f.(T)
		if !ok {
			logger.Warn("frame type mismatch", "type", env.Type, "got", fmt.Sprintf("%T", f))
			return
		}
		h(v)
	})
}

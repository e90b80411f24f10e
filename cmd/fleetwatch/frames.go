package main

import (
	"log/slog"

	"github.com/rickgao/fleetwatch/internal/connection"
	"github.com/rickgao/fleetwatch/internal/events"
	"github.com/rickgao/fleetwatch/internal/model"
)

// subscribeFrames logs domain frames and channel faults.
func subscribeFrames(d *events.Dispatcher, logger *slog.Logger) {
	model.Handle(d, model.TypeConnected, logger, func(f model.Welcome) {
		logger.Info("server welcome", "client_id", f.ClientID, "message", f.Message)
	})
	model.Handle(d, model.TypeAgentStatusChange, logger, func(f model.AgentStatusChange) {
		logger.Info("agent status",
			"agent_id", f.AgentID,
			"status", f.Status,
			"previous", f.PreviousStatus,
			"task", f.Task,
		)
	})
	model.Handle(d, model.TypeNewCommunication, logger, func(f model.Communication) {
		logger.Debug("communication", "from", f.FromAgent, "to", f.ToAgent, "kind", f.Kind)
	})
	model.Handle(d, model.TypeMeetingEvent, logger, func(f model.MeetingEvent) {
		logger.Info("meeting", "meeting_id", f.MeetingID, "event", f.Event, "participants", len(f.Participants))
	})
	for _, t := range []string{model.TypeAgentRegistered, model.TypeAgentUnregistered} {
		model.Handle(d, t, logger, func(f model.AgentRegistration) {
			logger.Info("agent registration", "type", f.Type, "agent_id", f.AgentID, "name", f.Name)
		})
	}

	events.On(d, connection.EventError, func(e connection.ErrorEvent) {
		logger.Warn("channel error", "error", e.Err)
	})
	events.On(d, connection.EventReconnectFailed, func(e connection.ReconnectFailedEvent) {
		logger.Error("gave up reconnecting; run with a fresh token or restart", "attempts", e.Attempts)
	})
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Domain frame types.
const (
	TypeConnected         = "connected"
	TypeAgentStatusChange = "agent_status_change"
	TypeNewCommunication  = "new_communication"
	TypeMeetingEvent      = "meeting_event"
	TypeAgentRegistered   = "agent_registered"
	TypeAgentUnregistered = "agent_unregistered"
)

// Frame is implemented by every typed domain payload.
type Frame interface {
	FrameType() string
	// AgentRef is the agent the frame is about, or "" if none.
	AgentRef() string
}

// Timestamp decodes RFC 3339 strings and Unix millisecond numbers.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

// MarshalJSON writes RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Welcome is the server's "connected" greeting.
type Welcome struct {
	ClientID  string    `json:"clientId"`
	Message   string    `json:"message,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
}

func (Welcome) FrameType() string { return TypeConnected }
func (Welcome) AgentRef() string  { return "" }

// AgentStatusChange reports an agent moving between statuses.
type AgentStatusChange struct {
	AgentID        string    `json:"agentId"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	Task           string    `json:"currentTask,omitempty"`
	Timestamp      Timestamp `json:"timestamp"`
}

func (AgentStatusChange) FrameType() string  { return TypeAgentStatusChange }
func (f AgentStatusChange) AgentRef() string { return f.AgentID }

// Communication is a message exchanged between agents.
type Communication struct {
	ID        string    `json:"id"`
	FromAgent string    `json:"fromAgent"`
	ToAgent   string    `json:"toAgent,omitempty"`
	Kind      string    `json:"messageType,omitempty"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

func (Communication) FrameType() string  { return TypeNewCommunication }
func (f Communication) AgentRef() string { return f.FromAgent }

// MeetingEvent reports a change in a multi-agent meeting.
type MeetingEvent struct {
	MeetingID    string    `json:"meetingId"`
	Event        string    `json:"event"`
	Topic        string    `json:"topic,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	Timestamp    Timestamp `json:"timestamp"`
}

func (MeetingEvent) FrameType() string { return TypeMeetingEvent }
func (MeetingEvent) AgentRef() string  { return "" }

// AgentRegistration is carried by agent_registered and agent_unregistered.
type AgentRegistration struct {
	Type      string    `json:"type"`
	AgentID   string    `json:"agentId"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
}

func (f AgentRegistration) FrameType() string { return f.Type }
func (f AgentRegistration) AgentRef() string  { return f.AgentID }

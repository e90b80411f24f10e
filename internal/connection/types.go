package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/fleetwatch/internal/events"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrConnectTimeout   = errors.New("connection attempt timed out")
	ErrHeartbeatTimeout = errors.New("no pong within heartbeat grace window")
	ErrManagerClosed    = errors.New("connection manager closed")
	ErrAuthRejected     = errors.New("server rejected credentials")
)

// Close codes.
const (
	CloseNormalClosure    = 1000
	CloseAbnormalClosure  = 1006 // no close frame received
	ClosePolicyViolation  = 1008 // used by the server to reject credentials
	CloseHeartbeatTimeout = 4000 // sent by us when the server stops answering pings
)

// CloseError reports the closure of a transport.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("channel closed (%d)", e.Code)
	}
	return fmt.Sprintf("channel closed (%d): %s", e.Code, e.Reason)
}

// State is the connection manager state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// CloseReason tags why a channel closed.
type CloseReason int

const (
	CloseUnexpected CloseReason = iota
	CloseManual
	CloseAuthRejected
)

func (r CloseReason) String() string {
	switch r {
	case CloseManual:
		return "manual"
	case CloseAuthRejected:
		return "auth_rejected"
	default:
		return "unexpected"
	}
}

// ClassifyClose tags a closure. An owner-requested close is manual no
// matter the code; 1008 always means the credentials were rejected.
func ClassifyClose(code int, manual bool) CloseReason {
	switch {
	case code == ClosePolicyViolation:
		return CloseAuthRejected
	case manual, code == CloseNormalClosure:
		return CloseManual
	default:
		return CloseUnexpected
	}
}

// ShouldReconnect reports whether a closure with reason r is retried.
func ShouldReconnect(r CloseReason) bool {
	return r == CloseUnexpected
}

// Reserved control frame types.
const (
	TypePing = "ping"
	TypePong = "pong"
)

// Event payloads.

// ConnectedEvent is published when the channel becomes live.
type ConnectedEvent struct {
	SessionID string
	Endpoint  string // token redacted
	Flushed   int    // queued envelopes sent on open
	At        time.Time
}

// DisconnectedEvent is published whenever a live or pending channel closes.
type DisconnectedEvent struct {
	Code   int
	Reason string
	Tag    CloseReason
	At     time.Time
}

// ErrorEvent carries transport failures and server-reported errors.
// Envelope is set when the server sent an "error" frame.
type ErrorEvent struct {
	Err      error
	Envelope *Envelope
	At       time.Time
}

// StateChangeEvent is published on every state transition.
type StateChangeEvent struct {
	From State
	To   State
	At   time.Time
}

// ReconnectingEvent is published when a retry is armed.
type ReconnectingEvent struct {
	Attempt int
	Delay   time.Duration
	At      time.Time
}

// ReconnectFailedEvent is published once the attempt ceiling is reached.
type ReconnectFailedEvent struct {
	Attempts int
	At       time.Time
}

// Event keys.
var (
	EventConnected       = events.NewKey[ConnectedEvent]("connected")
	EventDisconnected    = events.NewKey[DisconnectedEvent]("disconnected")
	EventError           = events.NewKey[ErrorEvent]("error")
	EventStateChange     = events.NewKey[StateChangeEvent]("stateChange")
	EventReconnecting    = events.NewKey[ReconnectingEvent]("reconnecting")
	EventReconnectFailed = events.NewKey[ReconnectFailedEvent]("reconnectFailed")
)

// MessageKey returns the key server frames of msgType are published under.
func MessageKey(msgType string) events.Key[Envelope] {
	return events.NewKey[Envelope](msgType)
}

// BackoffConfig configures the reconnection scheduler.
type BackoffConfig struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	MaxAttempts int
}

// DefaultBackoffConfig returns the default retry policy.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
		MaxAttempts: 5,
	}
}

// TransportConfig configures the WebSocket transport.
type TransportConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64  // max inbound frame size in bytes (0 = unlimited)
	UserAgent        string // sent on the handshake when set
}

// DefaultTransportConfig returns sensible defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        1 << 20,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Endpoint          string        // ws:// or wss:// URL of the status channel
	ConnectTimeout    time.Duration // abort an attempt that has not opened in time
	HeartbeatInterval time.Duration // ping period while connected
	PongTimeout       time.Duration // grace window for a pong (0 = never declare a stall)
	Backoff           BackoffConfig
	QueueLimit        int // max envelopes held while offline (0 = unbounded)
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ConnectTimeout:    10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		PongTimeout:       10 * time.Second,
		Backoff:           DefaultBackoffConfig(),
		QueueLimit:        1000,
	}
}

package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Transport opens channels. The manager owns every Conn it returns.
type Transport interface {
	// Dial opens a channel to url. A handshake the server rejects for
	// credentials returns a *CloseError with ClosePolicyViolation.
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is a single full-duplex, message-oriented channel.
type Conn interface {
	// ReadMessage blocks for the next frame. Once the channel is closed
	// it returns a *CloseError.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one text frame.
	WriteMessage(data []byte) error

	// Close sends a close frame with code/reason and releases the channel.
	Close(code int, reason string) error

	// IsOpen reports whether the channel is still usable.
	IsOpen() bool
}

// WebSocketTransport dials WebSocket channels with gorilla/websocket.
type WebSocketTransport struct {
	cfg    TransportConfig
	logger *slog.Logger
	dialer websocket.Dialer
}

// NewWebSocketTransport creates a WebSocket transport.
func NewWebSocketTransport(cfg TransportConfig, logger *slog.Logger) *WebSocketTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketTransport{
		cfg:    cfg,
		logger: logger,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Dial establishes the WebSocket connection.
func (t *WebSocketTransport) Dial(ctx context.Context, url string) (Conn, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")
	if t.cfg.UserAgent != "" {
		header.Set("User-Agent", t.cfg.UserAgent)
	}

	conn, resp, err := t.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &CloseError{Code: ClosePolicyViolation, Reason: resp.Status}
		}
		// The dial error may echo the URL, which carries the token.
		return nil, fmt.Errorf("dial %s: %w", RedactURL(url), scrubURL(err, url))
	}

	if t.cfg.ReadLimit > 0 {
		conn.SetReadLimit(t.cfg.ReadLimit)
	}

	c := &wsConn{
		conn:   conn,
		cfg:    t.cfg,
		logger: t.logger,
	}
	c.open.Store(true)

	// Answer protocol-level pings; application heartbeats are separate.
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	t.logger.Debug("websocket connected", "url", RedactURL(url))
	return c, nil
}

// wsConn implements Conn over a gorilla connection.
type wsConn struct {
	conn   *websocket.Conn
	cfg    TransportConfig
	logger *slog.Logger

	// Write serialization
	writeMu sync.Mutex

	open      atomic.Bool
	closeOnce sync.Once
	local     atomic.Pointer[CloseError] // set when we initiated the close
}

// ReadMessage reads the next text or binary frame.
func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err == nil {
		return data, nil
	}

	c.open.Store(false)

	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return nil, &CloseError{Code: ce.Code, Reason: ce.Text}
	}
	if local := c.local.Load(); local != nil {
		return nil, local
	}
	return nil, &CloseError{Code: CloseAbnormalClosure, Reason: err.Error()}
}

// WriteMessage writes one text frame.
func (c *wsConn) WriteMessage(data []byte) error {
	if !c.open.Load() {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.open.Store(false)
		return err
	}
	return nil
}

// Close sends a close frame and closes the socket. Safe to call twice.
func (c *wsConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.local.Store(&CloseError{Code: code, Reason: reason})
		c.open.Store(false)

		werr := c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)
		if werr != nil {
			c.logger.Debug("failed to send close frame", "error", werr)
		}

		err = c.conn.Close()
	})
	return err
}

// IsOpen returns the current connection state.
func (c *wsConn) IsOpen() bool {
	return c.open.Load()
}

// scrubURL drops the URL from url.Error-style messages.
func scrubURL(err error, url string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if url == "" || !strings.Contains(msg, url) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(msg, url, RedactURL(url)), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

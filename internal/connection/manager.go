package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/rickgao/fleetwatch/internal/buffer"
	"github.com/rickgao/fleetwatch/internal/events"
)

// ManagerStats is a point-in-time view of the manager.
type ManagerStats struct {
	State             State
	SessionID         string
	ReconnectAttempts int
	Queued            int
	QueueDropped      int64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock sets the clock that drives every timer.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithReporter sets the initial status reporter.
func WithReporter(r StatusReporter) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.reporter = r
		}
	}
}

// WithDispatcher shares an existing dispatcher instead of creating one.
func WithDispatcher(d *events.Dispatcher) ManagerOption {
	return func(m *Manager) {
		if d != nil {
			m.events = d
		}
	}
}

// delivery is one item on the ordered event/status outbox.
type delivery struct {
	event  events.Event
	status *StatusUpdate
}

// Manager maintains the single status channel: connect, heartbeat,
// reconnect with backoff, queue while offline, and fan frames out to
// subscribers.
//
// No method blocks on the network. Events and status updates are delivered
// in emission order on a dedicated goroutine, so handlers may call back
// into the manager. Handlers must not call Close.
type Manager struct {
	cfg       ManagerConfig
	logger    *slog.Logger
	clock     clock.Clock
	transport Transport
	events    *events.Dispatcher

	reporterMu sync.RWMutex
	reporter   StatusReporter

	outbox    *buffer.GrowableBuffer[delivery]
	delivered chan struct{}

	mu                sync.Mutex
	state             State
	token             string
	conn              Conn
	gen               uint64 // bumped whenever an attempt or session ends
	sessionID         string
	reconnectAttempts int
	manualClose       bool
	closed            bool
	cancelDial        context.CancelFunc
	connectTimer      *clock.Timer
	reconnectTimer    *clock.Timer
	queue             *messageQueue
	heartbeat         *heartbeat
}

// NewManager creates a Connection Manager. A nil transport dials with the
// default WebSocket transport.
func NewManager(cfg ManagerConfig, transport Transport, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:       cfg,
		logger:    slog.Default(),
		clock:     clock.New(),
		transport: transport,
		reporter:  NopReporter,
		outbox:    buffer.NewGrowableBuffer[delivery](64),
		delivered: make(chan struct{}),
		state:     StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.With("endpoint", RedactURL(cfg.Endpoint))
	if m.transport == nil {
		m.transport = NewWebSocketTransport(DefaultTransportConfig(), m.logger)
	}
	if m.events == nil {
		m.events = events.NewDispatcher(m.logger)
	}
	m.queue = newMessageQueue(cfg.QueueLimit)
	m.heartbeat = newHeartbeat(m.clock, cfg.HeartbeatInterval, cfg.PongTimeout, m.onHeartbeatTick, m.onPongTimeout)

	go m.deliverLoop()
	return m
}

// Connect opens the channel, authenticating with token when non-empty.
// It is a no-op while connected or while an attempt is in progress.
func (m *Manager) Connect(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.Warn("connect on closed manager ignored")
		return
	}
	switch m.state {
	case StateConnected:
		m.logger.Warn("already connected, ignoring connect")
		return
	case StateConnecting, StateReconnecting:
		m.logger.Warn("connection attempt in progress, ignoring connect", "state", m.state.String())
		return
	}

	m.manualClose = false
	m.token = token
	m.reconnectAttempts = 0
	m.dialLocked()
}

// Disconnect closes the channel and suppresses reconnection until the next
// Connect. A zero code means normal closure. Calling it on a disconnected
// manager does nothing.
func (m *Manager) Disconnect(code int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateDisconnected && m.conn == nil {
		return
	}
	if code == 0 {
		code = CloseNormalClosure
	}

	m.manualClose = true
	m.stopAttemptLocked()
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}

	conn := m.conn
	m.teardownLocked()
	if conn != nil {
		if err := conn.Close(code, reason); err != nil {
			m.logger.Debug("close transport", "error", err)
		}
	}

	m.logger.Info("channel closed by owner", "code", code, "reason", reason)
	m.setStateLocked(StateDisconnected)
	m.emitLocked(events.Make(EventDisconnected, DisconnectedEvent{
		Code:   code,
		Reason: reason,
		Tag:    CloseManual,
		At:     m.clock.Now(),
	}))
}

// Send transmits {type, ...data} now if connected, otherwise queues it
// until the channel opens. Failures are logged and published as error
// events, never returned.
//
// The queue normally grows only while disconnected. Two cases queue while
// Connected: a write that fails (the envelope is kept for the next flush
// instead of being lost) and a send while older envelopes are still
// queued (so order is kept). Both are followed by a flush.
func (m *Manager) Send(msgType string, data map[string]any) {
	env, err := NewEnvelope(msgType, data)
	var frame []byte
	if err == nil {
		frame, err = env.MarshalJSON()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.logger.Error("dropping unserializable envelope", "type", msgType, "error", err)
		m.emitLocked(events.Make(EventError, ErrorEvent{Err: err, At: m.clock.Now()}))
		return
	}
	if m.closed {
		m.logger.Warn("send on closed manager dropped", "type", msgType)
		return
	}

	connected := m.isConnectedLocked()
	if connected && m.queue.len() == 0 {
		err := m.conn.WriteMessage(frame)
		if err == nil {
			return
		}
		m.logger.Warn("send failed, queueing", "type", msgType, "error", err)
	}

	if m.queue.enqueue(outbound{Type: msgType, Frame: frame}) {
		m.logger.Warn("outbound queue full, dropped oldest envelope", "limit", m.cfg.QueueLimit)
	}
	if connected {
		m.flushLocked()
		return
	}
	m.logger.Debug("queued envelope", "type", msgType, "queued", m.queue.len())
}

// On registers h for events named name (or events.Wildcard).
func (m *Manager) On(name string, h events.Handler) events.Subscription {
	return m.events.On(name, h)
}

// Off unregisters a handler returned by On.
func (m *Manager) Off(sub events.Subscription) {
	m.events.Off(sub)
}

// Events returns the dispatcher for typed subscriptions.
func (m *Manager) Events() *events.Dispatcher {
	return m.events
}

// SetReporter swaps the status reporter. Nil installs NopReporter.
func (m *Manager) SetReporter(r StatusReporter) {
	if r == nil {
		r = NopReporter
	}
	m.reporterMu.Lock()
	m.reporter = r
	m.reporterMu.Unlock()
}

// IsConnected is true when the manager is Connected and the transport
// still reports itself open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isConnectedLocked()
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ReconnectAttempts returns the retries scheduled since the last open.
func (m *Manager) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnectAttempts
}

// QueueLen returns the number of envelopes waiting for the channel.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.len()
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ManagerStats{
		State:             m.state,
		SessionID:         m.sessionID,
		ReconnectAttempts: m.reconnectAttempts,
		Queued:            m.queue.len(),
		QueueDropped:      m.queue.dropped(),
	}
}

// Close disconnects, stops event delivery after draining it, and makes
// the manager unusable.
func (m *Manager) Close() {
	m.Disconnect(CloseNormalClosure, "client shutdown")

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.outbox.Close()
	<-m.delivered
	m.logger.Info("connection manager stopped")
}

// dialLocked starts one connection attempt.
func (m *Manager) dialLocked() {
	m.gen++
	gen := m.gen
	m.setStateLocked(StateConnecting)

	url, err := BuildURL(m.cfg.Endpoint, m.token)
	if err != nil {
		m.logger.Error("invalid channel endpoint", "error", err)
		m.failAttemptLocked(err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	if m.cfg.ConnectTimeout > 0 {
		m.connectTimer = m.clock.AfterFunc(m.cfg.ConnectTimeout, func() { m.onConnectTimeout(gen) })
	}

	m.logger.Info("connecting", "url", RedactURL(url), "attempt", m.reconnectAttempts)
	go m.dial(ctx, gen, url)
}

func (m *Manager) dial(ctx context.Context, gen uint64, url string) {
	conn, err := m.transport.Dial(ctx, url)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != StateConnecting {
		if conn != nil {
			conn.Close(CloseNormalClosure, "attempt abandoned")
		}
		return
	}
	if err != nil {
		m.failAttemptLocked(err)
		return
	}
	m.openedLocked(conn)
}

func (m *Manager) onConnectTimeout(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != StateConnecting {
		return
	}
	m.connectTimer = nil
	m.logger.Warn("connection attempt timed out", "timeout", m.cfg.ConnectTimeout)
	m.failAttemptLocked(ErrConnectTimeout)
}

// failAttemptLocked ends a Connecting attempt that did not open.
func (m *Manager) failAttemptLocked(err error) {
	m.stopAttemptLocked()
	m.gen++
	now := m.clock.Now()

	var ce *CloseError
	rejected := errors.As(err, &ce) && ClassifyClose(ce.Code, false) == CloseAuthRejected
	if rejected {
		err = fmt.Errorf("%w: %w", ErrAuthRejected, err)
	}

	m.logger.Warn("connection attempt failed", "error", err, "attempt", m.reconnectAttempts)
	m.setStateLocked(StateError)
	m.emitLocked(events.Make(EventError, ErrorEvent{Err: err, At: now}))

	if rejected {
		m.logger.Warn("credentials rejected, not reconnecting", "reason", ce.Reason)
		m.setStateLocked(StateDisconnected)
		m.emitLocked(events.Make(EventDisconnected, DisconnectedEvent{
			Code:   ce.Code,
			Reason: ce.Reason,
			Tag:    CloseAuthRejected,
			At:     now,
		}))
		return
	}

	m.scheduleReconnectLocked()
}

// openedLocked promotes a dialed transport to the live channel.
func (m *Manager) openedLocked(conn Conn) {
	m.stopAttemptLocked()

	gen := m.gen
	m.conn = conn
	m.sessionID = uuid.NewString()
	m.reconnectAttempts = 0
	m.setStateLocked(StateConnected)
	m.heartbeat.start()

	go m.readLoop(conn, gen)

	sent := m.flushLocked()

	m.logger.Info("channel connected", "session_id", m.sessionID, "flushed", sent)
	m.emitLocked(events.Make(EventConnected, ConnectedEvent{
		SessionID: m.sessionID,
		Endpoint:  RedactURL(m.cfg.Endpoint),
		Flushed:   sent,
		At:        m.clock.Now(),
	}))
}

func (m *Manager) flushLocked() int {
	if m.conn == nil {
		return 0
	}
	sent, err := m.queue.flush(m.conn.WriteMessage)
	if err != nil {
		m.logger.Warn("queue flush interrupted",
			"sent", sent,
			"remaining", m.queue.len(),
			"error", err,
		)
	}
	return sent
}

// readLoop reads frames until the transport closes.
func (m *Manager) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleClosed(gen, err)
			return
		}
		m.handleFrame(gen, data)
	}
}

func (m *Manager) handleFrame(gen uint64, data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		m.logger.Warn("dropping malformed frame", "error", err, "size", len(data))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}

	switch env.Type {
	case TypePong:
		m.heartbeat.ponged()
	case TypePing:
		// Server-initiated probe: echo its fields back as a pong.
		if err := m.writeEnvelopeLocked(Envelope{Type: TypePong, Fields: env.Fields}); err != nil {
			m.logger.Warn("failed to answer server ping", "error", err)
		}
	case EventError.Name():
		m.logger.Warn("server reported error", "error", serverError(env))
		m.emitLocked(events.Make(EventError, ErrorEvent{
			Err:      serverError(env),
			Envelope: &env,
			At:       m.clock.Now(),
		}))
		return
	}

	m.logger.Debug("frame received", "type", env.Type, "size", len(data))
	m.emitLocked(events.Make(MessageKey(env.Type), env))
}

func (m *Manager) handleClosed(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}

	code, reason := CloseAbnormalClosure, err.Error()
	var ce *CloseError
	if errors.As(err, &ce) {
		code, reason = ce.Code, ce.Reason
	}
	tag := ClassifyClose(code, m.manualClose)

	m.teardownLocked()
	ev := events.Make(EventDisconnected, DisconnectedEvent{
		Code:   code,
		Reason: reason,
		Tag:    tag,
		At:     m.clock.Now(),
	})

	if ShouldReconnect(tag) {
		m.logger.Warn("channel closed unexpectedly", "code", code, "reason", reason)
		m.emitLocked(ev)
		m.scheduleReconnectLocked()
		return
	}

	m.logger.Info("channel closed", "code", code, "reason", reason, "tag", tag.String())
	m.setStateLocked(StateDisconnected)
	m.emitLocked(ev)
}

// scheduleReconnectLocked arms the next retry, or gives up in Error once
// the attempt ceiling is reached.
func (m *Manager) scheduleReconnectLocked() {
	if m.manualClose || m.closed {
		return
	}
	now := m.clock.Now()

	if m.cfg.Backoff.Exhausted(m.reconnectAttempts) {
		m.setStateLocked(StateError)
		m.logger.Error("reconnect attempts exhausted", "attempts", m.reconnectAttempts)
		m.emitLocked(events.Make(EventReconnectFailed, ReconnectFailedEvent{
			Attempts: m.reconnectAttempts,
			At:       now,
		}))
		return
	}

	m.reconnectAttempts++
	attempt := m.reconnectAttempts
	delay := m.cfg.Backoff.Delay(attempt)
	gen := m.gen

	m.setStateLocked(StateReconnecting)
	m.reconnectTimer = m.clock.AfterFunc(delay, func() { m.onReconnectTimer(gen) })

	m.logger.Info("scheduling reconnect",
		"attempt", attempt,
		"max_attempts", m.cfg.Backoff.MaxAttempts,
		"delay", delay,
	)
	m.emitLocked(events.Make(EventReconnecting, ReconnectingEvent{
		Attempt: attempt,
		Delay:   delay,
		At:      now,
	}))
}

func (m *Manager) onReconnectTimer(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != StateReconnecting {
		return
	}
	m.reconnectTimer = nil
	m.dialLocked()
}

func (m *Manager) onHeartbeatTick(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected || !m.heartbeat.tickCurrent(seq) {
		return
	}

	ping, err := NewEnvelope(TypePing, map[string]any{"timestamp": m.clock.Now().UnixMilli()})
	if err == nil {
		err = m.writeEnvelopeLocked(ping)
	}
	if err != nil {
		m.logger.Warn("failed to send ping", "error", err)
	}
	m.heartbeat.pinged()
}

func (m *Manager) onPongTimeout(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected || !m.heartbeat.graceCurrent(seq) {
		return
	}

	m.logger.Warn("heartbeat stalled, recycling channel",
		"grace", m.cfg.PongTimeout,
		"last_ping", m.heartbeat.lastPing,
		"last_pong", m.heartbeat.lastPong,
	)

	conn := m.conn
	m.teardownLocked()
	if conn != nil {
		conn.Close(CloseHeartbeatTimeout, "heartbeat timeout")
	}

	now := m.clock.Now()
	m.emitLocked(events.Make(EventError, ErrorEvent{Err: ErrHeartbeatTimeout, At: now}))
	m.emitLocked(events.Make(EventDisconnected, DisconnectedEvent{
		Code:   CloseHeartbeatTimeout,
		Reason: "heartbeat timeout",
		Tag:    CloseUnexpected,
		At:     now,
	}))
	m.scheduleReconnectLocked()
}

func (m *Manager) isConnectedLocked() bool {
	return m.state == StateConnected && m.conn != nil && m.conn.IsOpen()
}

func (m *Manager) writeEnvelopeLocked(env Envelope) error {
	if m.conn == nil {
		return ErrNotConnected
	}
	frame, err := env.MarshalJSON()
	if err != nil {
		return err
	}
	return m.conn.WriteMessage(frame)
}

// stopAttemptLocked cancels the connect timeout and any in-flight dial.
func (m *Manager) stopAttemptLocked() {
	if m.connectTimer != nil {
		m.connectTimer.Stop()
		m.connectTimer = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
}

// teardownLocked drops the live transport and invalidates its callbacks.
// The caller closes the transport.
func (m *Manager) teardownLocked() {
	m.heartbeat.stop()
	m.conn = nil
	m.sessionID = ""
	m.gen++
}

func (m *Manager) setStateLocked(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	now := m.clock.Now()

	m.logger.Debug("state change", "from", from.String(), "to", to.String())
	m.outbox.Send(delivery{status: &StatusUpdate{
		From:    from,
		To:      to,
		Attempt: m.reconnectAttempts,
		At:      now,
	}})
	m.emitLocked(events.Make(EventStateChange, StateChangeEvent{From: from, To: to, At: now}))
}

func (m *Manager) emitLocked(ev events.Event) {
	m.outbox.Send(delivery{event: ev})
}

// deliverLoop hands events and status updates to subscribers in order.
func (m *Manager) deliverLoop() {
	defer close(m.delivered)

	for {
		d, ok := m.outbox.Receive()
		if !ok {
			return
		}
		if d.status != nil {
			m.reportStatus(*d.status)
			continue
		}
		m.events.Dispatch(d.event)
	}
}

func (m *Manager) reportStatus(u StatusUpdate) {
	m.reporterMu.RLock()
	r := m.reporter
	m.reporterMu.RUnlock()

	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("status reporter panicked", "panic", fmt.Sprint(rec))
		}
	}()
	r.ReportStatus(u)
}

// serverError extracts the message of a server "error" frame.
func serverError(env Envelope) error {
	var msg string
	for _, field := range []string{"message", "error", "detail"} {
		if ok, err := env.Field(field, &msg); ok && err == nil && msg != "" {
			return fmt.Errorf("server error: %s", msg)
		}
	}
	return errors.New("server error")
}

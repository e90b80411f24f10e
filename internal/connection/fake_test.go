package connection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"

	"github.com/rickgao/fleetwatch/internal/events"
)

// fakeTransport hands out in-memory conns. Dials fail with failAll when
// set, and block until cancelled when hang is set.
type fakeTransport struct {
	mu      sync.Mutex
	urls    []string
	conns   []*fakeConn
	failAll error
	hang    bool
}

func (t *fakeTransport) Dial(ctx context.Context, url string) (Conn, error) {
	t.mu.Lock()
	t.urls = append(t.urls, url)
	if t.hang {
		t.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if t.failAll != nil {
		err := t.failAll
		t.mu.Unlock()
		return nil, err
	}
	c := newFakeConn()
	t.conns = append(t.conns, c)
	t.mu.Unlock()
	return c, nil
}

func (t *fakeTransport) setFail(err error) {
	t.mu.Lock()
	t.failAll = err
	t.mu.Unlock()
}

func (t *fakeTransport) dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.urls)
}

func (t *fakeTransport) url(i int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.urls[i]
}

func (t *fakeTransport) conn(i int) *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[i]
}

type fakeConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once

	mu         sync.Mutex
	written    [][]byte
	failWrites bool
	closeErr   *CloseError
	localClose *CloseError
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, c.closeErr
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("broken pipe")
	}
	if c.closeErr != nil {
		return ErrNotConnected
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.shut(&CloseError{Code: code, Reason: reason}, true)
	return nil
}

func (c *fakeConn) IsOpen() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// serverClose simulates the peer closing the channel.
func (c *fakeConn) serverClose(code int, reason string) {
	c.shut(&CloseError{Code: code, Reason: reason}, false)
}

func (c *fakeConn) shut(ce *CloseError, local bool) {
	c.once.Do(func() {
		c.mu.Lock()
		c.closeErr = ce
		if local {
			c.localClose = ce
		}
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *fakeConn) push(frame string) {
	c.frames <- []byte(frame)
}

func (c *fakeConn) setFailWrites(v bool) {
	c.mu.Lock()
	c.failWrites = v
	c.mu.Unlock()
}

func (c *fakeConn) closedBy() *CloseError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localClose
}

func (c *fakeConn) sentFrames() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.written))
	for _, w := range c.written {
		var m map[string]any
		if err := json.Unmarshal(w, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) types() []string {
	var out []string
	for _, f := range c.sentFrames() {
		t, _ := f["type"].(string)
		out = append(out, t)
	}
	return out
}

// recorder captures every event and status update a manager delivers.
type recorder struct {
	mu       sync.Mutex
	events   []events.Event
	statuses []StatusUpdate
}

func newRecorder(m *Manager) *recorder {
	r := &recorder{}
	m.On(events.Wildcard, func(ev events.Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	m.SetReporter(StatusReporterFunc(func(u StatusUpdate) {
		r.mu.Lock()
		r.statuses = append(r.statuses, u)
		r.mu.Unlock()
	}))
	return r
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func (r *recorder) payloads(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, ev := range r.events {
		if ev.Name == name {
			out = append(out, ev.Payload)
		}
	}
	return out
}

func (r *recorder) transitions() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.statuses))
	for _, u := range r.statuses {
		out = append(out, u.To)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestManager(t *testing.T, tr *fakeTransport, mutate ...func(*ManagerConfig)) (*Manager, *clock.Mock, *recorder) {
	t.Helper()

	cfg := DefaultManagerConfig()
	cfg.Endpoint = "ws://fleet.test/ws/status"
	for _, f := range mutate {
		f(&cfg)
	}

	mock := clock.NewMock()
	m := NewManager(cfg, tr, WithClock(mock), WithLogger(discardLogger()))
	rec := newRecorder(m)
	t.Cleanup(m.Close)
	return m, mock, rec
}

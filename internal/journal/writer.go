package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/fleetwatch/internal/buffer"
	"github.com/rickgao/fleetwatch/internal/connection"
	"github.com/rickgao/fleetwatch/internal/events"
)

// DB is the subset of pgxpool.Pool the writer needs.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config holds writer settings.
type Config struct {
	InstanceID    string
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int // max records held before the oldest are evicted
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		InstanceID:    "fleetwatch",
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// Stats holds writer counters.
type Stats struct {
	Inserts int64
	Errors  int64
	Flushes int64
	Dropped int64 // evicted from the buffer before being written
}

// Writer consumes dispatched events and writes them to status_events.
type Writer struct {
	cfg    Config
	logger *slog.Logger
	clock  clock.Clock

	// Input from the dispatcher
	input   *buffer.GrowableBuffer[row]
	session string // touched only on the delivery goroutine

	// Database
	db DB

	// Batching
	batch       []row
	batchMu     sync.Mutex
	flushTicker *clock.Ticker

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	consumed chan struct{}
	wg       sync.WaitGroup

	metrics Stats
}

// NewWriter creates a journal writer.
func NewWriter(cfg Config, db DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Writer{
		cfg:    cfg,
		logger: logger.With("component", "journal"),
		clock:  clock.New(),
		input:  buffer.NewBoundedBuffer[row](min(cfg.BatchSize, 1024), cfg.BufferSize),
		db:     db,
		batch:  make([]row, 0, cfg.BatchSize),
	}
}

// Attach subscribes the writer to every event on d.
func (w *Writer) Attach(d *events.Dispatcher) events.Subscription {
	return d.OnAny(w.Record)
}

// Record transforms ev and buffers it for writing. It must be called from
// a single goroutine, as the dispatcher's delivery loop does.
func (w *Writer) Record(ev events.Event) {
	if skip(ev) {
		return
	}

	switch p := ev.Payload.(type) {
	case connection.ConnectedEvent:
		w.session = p.SessionID
	case connection.DisconnectedEvent:
		defer func() { w.session = "" }()
	}

	w.input.Send(transform(ev, w.cfg.InstanceID, w.session, w.clock.Now()))
}

// Start begins consuming records and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = w.clock.Ticker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.consumed = make(chan struct{})
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"buffer_size", w.cfg.BufferSize,
	)
	return nil
}

// Stop drains buffered records, writes them with ctx, and shuts down.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	w.input.Close()
	if w.cancel == nil {
		// Never started: write whatever was recorded.
		for _, r := range w.input.DrainTo(0) {
			w.batch = append(w.batch, r)
		}
		w.flush(ctx)
		return ctx.Err()
	}

	// The consumer drains the closed input before the flush loop stops.
	select {
	case <-w.consumed:
	case <-ctx.Done():
		w.logger.Warn("journal writer drain timed out", "remaining", w.input.Len())
	}

	w.flushTicker.Stop()
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	// Final flush
	w.flush(ctx)

	stats := w.Stats()
	w.logger.Info("journal writer stopped",
		"inserts", stats.Inserts,
		"errors", stats.Errors,
		"dropped", stats.Dropped,
	)
	return ctx.Err()
}

// Stats returns current counters.
func (w *Writer) Stats() Stats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	s := w.metrics
	s.Dropped = w.input.Stats().TotalDropped
	return s
}

// consumeLoop moves buffered records into the batch until the input closes.
func (w *Writer) consumeLoop() {
	defer close(w.consumed)

	for {
		r, ok := w.input.Receive()
		if !ok {
			return
		}
		w.add(r)
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

func (w *Writer) add(r row) {
	w.batchMu.Lock()
	w.batch = append(w.batch, r)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]row, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed status events",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

const insertSQL = `
	INSERT INTO status_events (id, instance_id, session_id, event, frame_type, agent_id, state, payload, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

// batchInsert inserts rows using pgx.Batch.
func (w *Writer) batchInsert(ctx context.Context, rows []row) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertSQL,
			r.ID, r.InstanceID, r.SessionID, r.Event, r.FrameType, r.AgentID, r.State, r.Payload, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

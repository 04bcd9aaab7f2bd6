package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/storefront-realtime/internal/auth"
)

// Batcher queues records and delivers them in the background.
type Batcher struct {
	cfg    Config
	sink   Sink
	creds  auth.Provider
	logger *slog.Logger
	now    func() time.Time

	sessionID string

	// Deliveries run under deliverCtx so that a flush started by Shutdown
	// outlives the application context.
	deliverCtx    context.Context
	cancelDeliver context.CancelFunc

	mu       sync.Mutex
	queue    []Record
	userID   string
	url      string
	lastTS   int64
	inflight chan struct{} // non-nil while a delivery run is active
	closed   bool
	stats    Stats

	startOnce sync.Once
}

// NewBatcher creates a Batcher delivering to sink. creds may be nil.
func NewBatcher(cfg Config, sink Sink, creds auth.Provider, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	if creds == nil {
		creds = auth.Static{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = DefaultConfig().MaxQueue
	}
	cfg.MaxQueue = max(cfg.MaxQueue, cfg.BatchSize)

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Batcher{
		cfg:           cfg,
		sink:          sink,
		creds:         creds,
		logger:        logger.With("component", "telemetry"),
		now:           time.Now,
		sessionID:     sessionID,
		deliverCtx:    ctx,
		cancelDeliver: cancel,
		queue:         make([]Record, 0, cfg.BatchSize),
	}
}

// Start runs the periodic flush until ctx is cancelled.
func (b *Batcher) Start(ctx context.Context) error {
	b.startOnce.Do(func() {
		go b.flushLoop(ctx)

		b.logger.Info("telemetry batcher started",
			"batch_size", b.cfg.BatchSize,
			"flush_interval", b.cfg.FlushInterval,
			"session_id", b.sessionID,
		)
	})
	return nil
}

func (b *Batcher) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}

// SessionID returns the id attached to every record.
func (b *Batcher) SessionID() string {
	return b.sessionID
}

// SetUser sets the user id for later records. Empty falls back to the
// credential provider's identity.
func (b *Batcher) SetUser(id string) {
	b.mu.Lock()
	b.userID = id
	b.mu.Unlock()
}

// SetURL sets the page URL for later records.
func (b *Batcher) SetURL(url string) {
	b.mu.Lock()
	b.url = url
	b.mu.Unlock()
}

// Len returns the number of queued records.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Stats returns current metrics.
func (b *Batcher) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Queued = len(b.queue)
	return s
}

// Log queues one record. It never blocks on delivery; reaching the batch
// size starts a flush in the background.
func (b *Batcher) Log(action string, data map[string]any) {
	clean := normalize(data, b.logger)

	b.mu.Lock()
	if b.closed {
		b.stats.Rejected++
		b.mu.Unlock()
		b.logger.Debug("dropping record", "action", action, "error", ErrShutdown)
		return
	}

	ts := b.now().UnixMilli()
	if ts <= b.lastTS {
		ts = b.lastTS + 1
	}
	b.lastTS = ts

	userID := b.userID
	if userID == "" {
		userID = b.creds.Credentials().Identity()
	}
	if userID == "" {
		userID = auth.Anonymous
	}

	b.queue = append(b.queue, Record{
		Service:   b.cfg.Service,
		Action:    action,
		UserID:    userID,
		Data:      clean,
		Timestamp: ts,
		URL:       b.url,
		UserAgent: b.cfg.UserAgent,
		SessionID: b.sessionID,
	})
	b.stats.Logged++
	evicted := b.trim()
	full := len(b.queue) >= b.cfg.BatchSize
	b.mu.Unlock()

	if evicted > 0 {
		b.logger.Debug("telemetry queue full, dropped oldest", "records", evicted, "max_queue", b.cfg.MaxQueue)
	}
	if full {
		b.Flush()
	}
}

// trim evicts the oldest records beyond MaxQueue and returns how many.
// Caller holds b.mu.
func (b *Batcher) trim() int {
	over := len(b.queue) - b.cfg.MaxQueue
	if over <= 0 {
		return 0
	}
	n := copy(b.queue, b.queue[over:])
	clear(b.queue[n:])
	b.queue = b.queue[:n]
	b.stats.Dropped += int64(over)
	return over
}

// normalize deep-copies data through JSON so later caller mutations and
// values that can't be serialized never reach the queue.
func normalize(data map[string]any, logger *slog.Logger) map[string]any {
	if len(data) == 0 {
		return map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		logger.Debug("unserializable telemetry data", "error", err)
		return map[string]any{}
	}
	out := make(map[string]any, len(data))
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// Flush starts delivering the oldest batch. It does nothing when the queue
// is empty or a delivery run is already active.
func (b *Batcher) Flush() {
	b.flush()
}

func (b *Batcher) flush() bool {
	b.mu.Lock()
	if b.inflight != nil || len(b.queue) == 0 {
		b.mu.Unlock()
		return false
	}
	batch := b.take()
	done := make(chan struct{})
	b.inflight = done
	b.mu.Unlock()

	go b.deliverLoop(batch, done)
	return true
}

// take removes up to BatchSize records from the front of the queue.
// Caller holds b.mu.
func (b *Batcher) take() []Record {
	n := min(len(b.queue), b.cfg.BatchSize)
	batch := make([]Record, n)
	copy(batch, b.queue[:n])

	rest := make([]Record, len(b.queue)-n, max(b.cfg.BatchSize, len(b.queue)-n))
	copy(rest, b.queue[n:])
	b.queue = rest

	b.stats.Flushes++
	return batch
}

// deliverLoop delivers batch, then keeps going while a full batch is
// waiting. It is the only delivery run at any time.
func (b *Batcher) deliverLoop(batch []Record, done chan struct{}) {
	for {
		b.deliver(batch)

		b.mu.Lock()
		if len(b.queue) < b.cfg.BatchSize {
			b.inflight = nil
			b.mu.Unlock()
			close(done)
			return
		}
		batch = b.take()
		b.mu.Unlock()
	}
}

func (b *Batcher) deliver(batch []Record) {
	creds := b.creds.Credentials()
	start := time.Now()

	if bs, ok := b.sink.(BatchSink); ok {
		ctx, cancel := b.deliveryContext()
		err := bs.DeliverBatch(ctx, batch, creds)
		cancel()
		b.record(len(batch), err)
		b.logger.Debug("telemetry batch delivered", "records", len(batch), "duration", time.Since(start))
		return
	}

	g := new(errgroup.Group)
	if b.cfg.MaxConcurrency > 0 {
		g.SetLimit(b.cfg.MaxConcurrency)
	}
	for _, rec := range batch {
		g.Go(func() error {
			ctx, cancel := b.deliveryContext()
			defer cancel()
			b.record(1, b.sink.Deliver(ctx, rec, creds))
			return nil
		})
	}
	g.Wait()

	b.logger.Debug("telemetry flushed", "records", len(batch), "duration", time.Since(start))
}

func (b *Batcher) deliveryContext() (context.Context, context.CancelFunc) {
	if b.cfg.DeliveryTimeout > 0 {
		return context.WithTimeout(b.deliverCtx, b.cfg.DeliveryTimeout)
	}
	return context.WithCancel(b.deliverCtx)
}

// record counts the outcome of delivering n records. Errors stop here.
func (b *Batcher) record(n int, err error) {
	var derr *DeliveryError
	rejected := errors.As(err, &derr) && derr.IsAuthFailure()

	b.mu.Lock()
	switch {
	case err == nil:
		b.stats.Delivered += int64(n)
	case rejected:
		b.stats.AuthDropped += int64(n)
	default:
		b.stats.Failed += int64(n)
	}
	b.mu.Unlock()

	switch {
	case err == nil:
	case rejected:
		b.logger.Debug("telemetry rejected, dropping", "status", derr.StatusCode, "records", n)
	default:
		b.logger.Warn("telemetry delivery failed", "error", err, "records", n)
	}
}

// Shutdown is the teardown hook: it stops accepting records, flushes what is
// queued and waits for delivery or ctx, whichever comes first.
func (b *Batcher) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	queued := len(b.queue)
	b.mu.Unlock()

	b.logger.Info("stopping telemetry batcher", "queued", queued)
	defer b.cancelDeliver()

	for {
		b.mu.Lock()
		inflight := b.inflight
		b.mu.Unlock()

		if inflight != nil {
			select {
			case <-inflight:
				continue
			case <-ctx.Done():
				b.logger.Warn("telemetry shutdown timed out", "queued", b.Len())
				return ctx.Err()
			}
		}

		if !b.flush() {
			b.logger.Info("telemetry batcher stopped")
			return nil
		}
	}
}

package connection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/storefront-realtime/internal/auth"
	"github.com/rickgao/storefront-realtime/internal/history"
	"github.com/rickgao/storefront-realtime/internal/protocol"
	"github.com/rickgao/storefront-realtime/internal/ratelimit"
	"github.com/rickgao/storefront-realtime/internal/sanitize"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithCredentials sets the token/CSRF provider.
func WithCredentials(p auth.Provider) Option {
	return func(m *Manager) { m.creds = p }
}

// WithSanitizer replaces the outbound string sanitizer.
func WithSanitizer(s sanitize.Sanitizer) Option {
	return func(m *Manager) { m.sanitizer = s }
}

// WithLimiter replaces the inbound rate limiter.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(m *Manager) { m.limiter = l }
}

// WithNotifier sets where toast-worthy messages are surfaced.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithDialer replaces the transport constructor.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

// Manager owns one realtime transport and shares it between any number of
// subscribers.
type Manager struct {
	cfg       Config
	logger    *slog.Logger
	creds     auth.Provider
	sanitizer sanitize.Sanitizer
	limiter   ratelimit.Limiter
	notifier  Notifier
	store     *history.Store
	dial      Dialer

	// Requests from other goroutines are folded into flags and a wake-up
	// signal so callers never block, even from inside a Handler.
	wantConnect   atomic.Bool
	wantReconnect atomic.Bool
	wake          chan struct{}

	dialed    chan dialResult
	done      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool

	mu        sync.RWMutex
	state     State
	transport Transport
	subs      map[uint64]Handler
	nextSub   uint64
	attempts  int

	counters counters

	// Loop-owned.
	ctx       context.Context
	dialing   bool
	reconnect *time.Timer
	heartbeat *time.Ticker
}

type counters struct {
	dials, received, delivered            atomic.Int64
	bufferFull                             atomic.Int64
	oversized, malformed, untyped, limited atomic.Int64
	sent, rejected                         atomic.Int64
}

type dialResult struct {
	transport Transport
	err       error
}

// NewManager creates a Manager. Call Start to run its event loop.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		wake:    make(chan struct{}, 1),
		dialed:  make(chan dialResult),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		subs:    make(map[uint64]Handler),
		state:   StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "connection")
	if m.creds == nil {
		m.creds = auth.Static{}
	}
	if m.sanitizer == nil {
		m.sanitizer = sanitize.NewPolicy()
	}
	if m.limiter == nil {
		m.limiter = ratelimit.NewWindow(cfg.RateLimit, cfg.RateWindow)
	}
	if m.notifier == nil {
		m.notifier = LogNotifier{Logger: m.logger}
	}
	if m.dial == nil {
		m.dial = NewClient
	}
	m.store = history.NewStore(cfg.History)

	return m
}

// Start runs the event loop until ctx is cancelled or Close is called.
// It does not dial; the first Connect or Subscribe does.
func (m *Manager) Start(ctx context.Context) error {
	select {
	case <-m.done:
		return ErrAlreadyClosed
	default:
	}

	m.startOnce.Do(func() {
		m.started.Store(true)
		m.ctx = ctx
		go m.run(ctx)
	})
	return nil
}

// Close tears the connection down for good. No reconnect is scheduled
// afterwards and Send returns false.
func (m *Manager) Close(ctx context.Context) error {
	m.closeOnce.Do(func() { close(m.done) })

	if !m.started.Load() {
		return nil
	}

	select {
	case <-m.stopped:
		return nil
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
		return ctx.Err()
	}
}

// Connect asks for a connection. It is a no-op while a transport exists or
// a dial or reconnect is pending.
func (m *Manager) Connect() {
	m.wantConnect.Store(true)
	m.signal()
}

// Reconnect resets the attempt budget and dials immediately unless a
// transport is already open or being dialed.
func (m *Manager) Reconnect() {
	m.wantReconnect.Store(true)
	m.signal()
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Subscribe registers h for every later event and makes sure a connection
// exists or is pending. The returned function unsubscribes.
func (m *Manager) Subscribe(h Handler) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = h
	m.mu.Unlock()

	m.Connect()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Listen is Subscribe over a channel. Events that don't fit in the buffer
// are dropped. cancel unsubscribes and closes the channel.
func (m *Manager) Listen(buffer int) (<-chan Event, func()) {
	l := &listener{ch: make(chan Event, buffer), logger: m.logger}
	unsubscribe := m.Subscribe(l.deliver)
	return l.ch, func() {
		unsubscribe()
		l.close()
	}
}

type listener struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
	logger *slog.Logger
}

func (l *listener) deliver(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- e:
	default:
		l.logger.Warn("listener buffer full, dropping event", "kind", e.Kind)
	}
}

func (l *listener) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Store returns the bounded message history fed by inbound frames.
func (m *Manager) Store() *history.Store {
	return m.store
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	s := Stats{
		State:       m.state,
		Attempts:    m.attempts,
		Subscribers: len(m.subs),
	}
	m.mu.RUnlock()

	c := &m.counters
	s.Dials = c.dials.Load()
	s.FramesReceived = c.received.Load()
	s.FramesDelivered = c.delivered.Load()
	s.Dropped = DropStats{
		BufferFull:  c.bufferFull.Load(),
		Oversized:   c.oversized.Load(),
		Malformed:   c.malformed.Load(),
		Untyped:     c.untyped.Load(),
		RateLimited: c.limited.Load(),
	}
	s.Sent = c.sent.Load()
	s.Rejected = c.rejected.Load()
	s.History = m.store.Stats()
	return s
}

// Send writes one envelope of the given type. It returns false when the
// transport is not open, the envelope is too large, or the write fails.
// Every string in data is sanitized first.
func (m *Manager) Send(kind string, data map[string]any) bool {
	m.mu.RLock()
	t := m.transport
	open := m.state == StateConnected
	m.mu.RUnlock()

	if t == nil || !open || !t.IsConnected() {
		m.counters.rejected.Add(1)
		return false
	}

	clean := sanitize.Map(m.sanitizer, data)
	if err := m.write(t, protocol.Kind(m.sanitizer.String(kind)), clean); err != nil {
		m.logger.Warn("send failed", "type", kind, "error", err)
		m.counters.rejected.Add(1)
		return false
	}
	return true
}

// write stamps, encodes and writes an envelope on t.
func (m *Manager) write(t Transport, kind protocol.Kind, data map[string]any) error {
	creds := m.creds.Credentials()
	env := protocol.NewEnvelope(kind, data, protocol.Meta{
		UserID: creds.Identity(),
		CSRF:   creds.CSRF,
	})

	payload, err := env.Encode(m.cfg.MaxOutboundBytes)
	if err != nil {
		return err
	}
	if err := t.Send(payload); err != nil {
		return err
	}
	m.counters.sent.Add(1)
	return nil
}

// run is the event loop. Every state transition happens here.
func (m *Manager) run(ctx context.Context) {
	defer close(m.stopped)
	defer m.teardown()

	for {
		var (
			messages  <-chan TimestampedMessage
			errs      <-chan error
			reconnect <-chan time.Time
			heartbeat <-chan time.Time
		)
		if t := m.current(); t != nil {
			messages = t.Messages()
			errs = t.Errors()
		}
		if m.reconnect != nil {
			reconnect = m.reconnect.C
		}
		if m.heartbeat != nil {
			heartbeat = m.heartbeat.C
		}

		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return

		case <-m.wake:
			m.handleRequests()

		case res := <-m.dialed:
			m.handleDial(res)

		case <-reconnect:
			m.reconnect = nil
			m.startDial()

		case <-heartbeat:
			if t := m.current(); t != nil {
				if err := m.write(t, protocol.KindHeartbeat, nil); err != nil {
					m.logger.Debug("heartbeat failed", "error", err)
				}
			}

		case msg := <-messages:
			m.handleFrame(msg)

		case err := <-errs:
			m.handleClose(err)
		}
	}
}

func (m *Manager) current() Transport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transport
}

func (m *Manager) pending() bool {
	return m.current() != nil || m.dialing || m.reconnect != nil
}

func (m *Manager) handleRequests() {
	if m.wantReconnect.Swap(false) {
		m.wantConnect.Store(false)
		m.setAttempts(0)
		if m.current() != nil || m.dialing {
			return
		}
		m.stopReconnect()
		m.logger.Info("manual reconnect requested")
		m.startDial()
		return
	}

	if m.wantConnect.Swap(false) && !m.pending() {
		m.startDial()
	}
}

// startDial creates one transport and connects it off the loop.
func (m *Manager) startDial() {
	m.dialing = true
	m.setState(StateConnecting)

	ccfg := m.cfg.clientConfig()
	ccfg.OnDrop = func() { m.counters.bufferFull.Add(1) }
	t := m.dial(ccfg, m.logger)
	m.counters.dials.Add(1)

	ctx := m.ctx
	go func() {
		err := t.Connect(ctx)
		select {
		case m.dialed <- dialResult{transport: t, err: err}:
		case <-m.stopped:
			t.Close()
		}
	}()
}

func (m *Manager) handleDial(res dialResult) {
	m.dialing = false

	if res.err != nil {
		res.transport.Close()
		m.logger.Warn("connection failed", "error", res.err, "attempt", m.getAttempts())
		m.setState(StateError)
		m.scheduleReconnect()
		return
	}

	m.setAttempts(0)
	m.bootstrap(res.transport)

	m.mu.Lock()
	m.transport = res.transport
	m.mu.Unlock()

	if m.cfg.HeartbeatInterval > 0 {
		m.heartbeat = time.NewTicker(m.cfg.HeartbeatInterval)
	}

	m.logger.Info("connected", "url", m.cfg.URL)
	m.setState(StateConnected)
}

// bootstrap sends the authenticate, join and presence frames on a freshly
// opened transport, before any consumer can write to it.
func (m *Manager) bootstrap(t Transport) {
	if token := m.creds.Credentials().Token; token != "" {
		if err := m.write(t, protocol.KindAuth, protocol.AuthData(token)); err != nil {
			m.logger.Warn("auth frame failed", "error", err)
		}
	}
	if err := m.write(t, protocol.KindJoin, protocol.JoinData(protocol.DefaultChannel)); err != nil {
		m.logger.Warn("join frame failed", "error", err)
	}
	if err := m.write(t, protocol.KindPresence, protocol.PresenceData("online")); err != nil {
		m.logger.Warn("presence frame failed", "error", err)
	}
}

// handleClose processes a transport failure. Frames the transport read
// before failing are delivered first.
func (m *Manager) handleClose(err error) {
	t := m.current()
	if t == nil {
		return
	}
	m.drain(t)
	m.detach()

	m.logger.Warn("connection closed", "error", err)
	m.setState(StateDisconnected)
	m.scheduleReconnect()
}

func (m *Manager) drain(t Transport) {
	for {
		select {
		case msg := <-t.Messages():
			m.handleFrame(msg)
		default:
			return
		}
	}
}

// detach closes the transport and cancels its heartbeat.
func (m *Manager) detach() {
	m.mu.Lock()
	t := m.transport
	m.transport = nil
	m.mu.Unlock()

	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
	if t != nil {
		t.Close()
	}
}

// scheduleReconnect arms the backoff timer, or gives up once the attempt
// budget is spent.
func (m *Manager) scheduleReconnect() {
	attempts := m.getAttempts()
	if attempts >= m.cfg.MaxReconnectAttempts {
		m.logger.Warn("reconnect attempts exhausted", "attempts", attempts)
		m.setState(StateDisconnected)
		return
	}

	attempts++
	m.setAttempts(attempts)
	wait := Backoff(attempts, m.cfg.ReconnectBaseWait, m.cfg.ReconnectMaxWait)

	m.logger.Info("scheduling reconnect", "attempt", attempts, "wait", wait)
	m.reconnect = time.NewTimer(wait)
}

func (m *Manager) stopReconnect() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

// teardown runs once when the loop exits.
func (m *Manager) teardown() {
	m.stopReconnect()
	m.detach()
	m.setState(StateDisconnected)
	m.logger.Info("connection manager stopped")
}

// Backoff returns the delay before reconnect attempt n (1-based):
// base doubled per attempt, capped at maxWait.
func Backoff(n int, base, maxWait time.Duration) time.Duration {
	wait := base
	for i := 1; i < n && wait < maxWait; i++ {
		wait *= 2
	}
	return min(wait, maxWait)
}

func (m *Manager) getAttempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

func (m *Manager) setAttempts(n int) {
	m.mu.Lock()
	m.attempts = n
	m.mu.Unlock()
}

// setState records a transition and notifies subscribers when it changed.
func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	prev := m.state
	m.state = s
	m.mu.Unlock()

	m.logger.Debug("state change", "from", prev, "to", s)
	m.dispatch(Event{Kind: EventStatus, State: s})
}

// dispatch calls every subscriber synchronously. A panicking handler is
// logged and does not affect the others.
func (m *Manager) dispatch(e Event) {
	m.mu.RLock()
	handlers := make([]Handler, 0, len(m.subs))
	for _, h := range m.subs {
		handlers = append(handlers, h)
	}
	m.mu.RUnlock()

	for _, h := range handlers {
		m.safeCall(h, e)
	}
}

func (m *Manager) safeCall(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("subscriber panicked", "panic", r, "kind", e.Kind)
		}
	}()
	h(e)
}

package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"k8s.io/utils/clock"
)

var (
	ErrNotConnected   = errors.New("channel is not open")
	ErrConnectTimeout = errors.New("connection attempt timed out")
)

// Handler receives decoded messages in receipt order
type Handler interface {
	HandleMessage(msg Message)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(msg Message)

// HandleMessage implements Handler
func (f HandlerFunc) HandleMessage(msg Message) { f(msg) }

// Poller performs one full refresh while the channel is in polling fallback
type Poller interface {
	Poll(ctx context.Context) error
}

// PollerFunc adapts a function to Poller
type PollerFunc func(ctx context.Context) error

// Poll implements Poller
func (f PollerFunc) Poll(ctx context.Context) error { return f(ctx) }

// Options are the collaborators of a Client. Zero values get defaults.
type Options struct {
	Dialer  Dialer
	Clock   clock.WithDelayedExecution
	Handler Handler
	Poller  Poller
	Logger  *slog.Logger
	Metrics *Metrics
}

// Client is a reconnecting websocket client with heartbeat, bounded
// exponential backoff and a terminal polling fallback.
//
// All state transitions happen under mu. Every timer callback and the read
// loop carry the generation they were started under; when the generation
// has moved on (disconnect, reconnect, fallback) the callback does nothing.
type Client struct {
	cfg     Config
	dialer  Dialer
	clock   clock.WithDelayedExecution
	handler Handler
	poller  Poller
	logger  *slog.Logger
	metrics *Metrics

	mu             sync.Mutex
	state          State
	gen            uint64
	attempts       int
	retryDelay     time.Duration
	conn           Conn
	lastErr        error
	lastUpdate     time.Time
	latency        time.Duration
	cancelDial     context.CancelFunc
	reconnectTimer clock.Timer
	heartbeatTimer clock.Timer
	pollTimer      clock.Timer
	pollCancel     context.CancelFunc
	listeners      []func(Status)
	changed        bool

	writeMu sync.Mutex
}

// New creates an idle client. Nothing happens until Connect.
func New(cfg Config, opts Options) *Client {
	c := &Client{
		cfg:     cfg,
		dialer:  opts.Dialer,
		clock:   opts.Clock,
		handler: opts.Handler,
		poller:  opts.Poller,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if c.dialer == nil {
		c.dialer = NewWebsocketDialer(cfg.ConnectTimeout)
	}
	if c.clock == nil {
		c.clock = clock.RealClock{}
	}
	if c.handler == nil {
		c.handler = HandlerFunc(func(Message) {})
	}
	if c.poller == nil {
		c.poller = PollerFunc(func(context.Context) error { return nil })
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "channel")
	return c
}

// Connect starts a connection attempt. It is a no-op while open, connecting
// or in polling fallback. A disabled channel goes straight to polling.
func (c *Client) Connect() {
	c.mu.Lock()
	defer c.unlock()

	switch c.state {
	case StateOpen, StateConnecting, StatePollingFallback:
		return
	}
	if !c.cfg.Enabled {
		c.logger.Info("live channel disabled, polling only")
		c.enterFallbackLocked()
		return
	}
	c.dialLocked()
}

// Disconnect tears the session down: every timer is canceled, an open
// socket is closed with a normal-closure frame and all counters reset.
// It is safe in any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.stopTimersLocked()
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
	c.gen++
	conn := c.conn
	c.conn = nil
	c.attempts = 0
	c.retryDelay = 0
	c.lastErr = nil
	c.latency = 0
	if c.state != StateIdle {
		c.setStateLocked(StateIdle)
	}
	c.unlock()

	if conn != nil {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			c.logger.Debug("close frame not sent", "error", err)
		}
		c.writeMu.Unlock()
		conn.Close()
		c.logger.Info("disconnected")
	}
}

// Status returns the current connectivity state
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// State returns the current lifecycle state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStatus registers fn to be called after every state change. fn runs
// outside the client lock and may call Status.
func (c *Client) OnStatus(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SubscribeAgent asks the server for detailed updates about one agent
func (c *Client) SubscribeAgent(agentID string) error {
	return c.send(newAgentFrame(TypeSubscribeAgent, agentID))
}

// UnsubscribeAgent cancels SubscribeAgent
func (c *Client) UnsubscribeAgent(agentID string) error {
	return c.send(newAgentFrame(TypeUnsubscribeAgent, agentID))
}

func (c *Client) dialLocked() {
	c.stopTimersLocked()
	c.gen++
	gen := c.gen
	c.retryDelay = 0
	c.setStateLocked(StateConnecting)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel

	var timedOut atomic.Bool
	timer := c.clock.AfterFunc(c.cfg.ConnectTimeout, func() {
		timedOut.Store(true)
		cancel()
	})

	c.logger.Debug("connecting", "url", c.cfg.URL, "attempt", c.attempts)
	go c.dial(ctx, gen, timer, &timedOut)
}

func (c *Client) dial(ctx context.Context, gen uint64, timer clock.Timer, timedOut *atomic.Bool) {
	conn, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	timer.Stop()
	if timedOut.Load() {
		if conn != nil {
			conn.Close()
			conn = nil
		}
		err = fmt.Errorf("%w after %s", ErrConnectTimeout, c.cfg.ConnectTimeout)
	}

	c.mu.Lock()
	if gen != c.gen || c.state != StateConnecting {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}

	if err != nil {
		c.logger.Warn("connection attempt failed", "url", c.cfg.URL, "error", err)
		c.failLocked(StateErrored, err)
		c.unlock()
		return
	}

	c.openLocked(conn)
	topics := c.cfg.Topics
	c.unlock()

	go c.readLoop(conn, gen)

	if err := c.write(conn, subscribeFrame{Type: TypeSubscribe, Topics: topics}); err != nil {
		c.connectionLost(gen, err)
	}
}

func (c *Client) openLocked(conn Conn) {
	c.conn = conn
	c.attempts = 0
	c.lastErr = nil
	c.lastUpdate = c.clock.Now()
	c.setStateLocked(StateOpen)
	c.metrics.connected()
	c.scheduleHeartbeatLocked(c.gen)
	c.logger.Info("connected", "url", c.cfg.URL)
}

// failLocked records a closed or errored session and decides between a
// reconnect and polling fallback.
func (c *Client) failLocked(state State, err error) {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.stopTimersLocked()
	c.gen++
	c.lastErr = err
	c.setStateLocked(state)
	c.scheduleReconnectLocked()
}

func (c *Client) scheduleReconnectLocked() {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.logger.Warn("reconnect attempts exhausted, falling back to polling",
			"attempts", c.attempts, "poll_interval", c.cfg.PollInterval)
		c.enterFallbackLocked()
		return
	}

	delay := c.cfg.Backoff(c.attempts)
	c.attempts++
	c.retryDelay = delay
	gen := c.gen
	c.reconnectTimer = c.clock.AfterFunc(delay, func() { c.reconnect(gen) })
	c.metrics.reconnectScheduled()
	c.logger.Info("reconnect scheduled", "attempt", c.attempts, "delay", delay)
}

func (c *Client) reconnect(gen uint64) {
	c.mu.Lock()
	defer c.unlock()

	if gen != c.gen {
		return
	}
	if c.state != StateClosed && c.state != StateErrored {
		return
	}
	c.dialLocked()
}

func (c *Client) enterFallbackLocked() {
	c.stopTimersLocked()
	c.gen++
	c.retryDelay = 0
	c.setStateLocked(StatePollingFallback)
	c.metrics.fellBack()

	ctx, cancel := context.WithCancel(context.Background())
	c.pollCancel = cancel
	go c.poll(ctx, c.gen)
}

func (c *Client) poll(ctx context.Context, gen uint64) {
	pollCtx, cancel := context.WithTimeout(ctx, c.cfg.PollInterval)
	err := c.poller.Poll(pollCtx)
	cancel()
	c.metrics.polled(err)

	c.mu.Lock()
	defer c.unlock()

	if gen != c.gen || c.state != StatePollingFallback {
		return
	}
	if err != nil {
		c.logger.Warn("poll failed", "error", err)
		c.lastErr = err
	} else {
		c.lastErr = nil
		c.lastUpdate = c.clock.Now()
	}
	c.changed = true
	c.pollTimer = c.clock.AfterFunc(c.cfg.PollInterval, func() { c.poll(ctx, gen) })
}

func (c *Client) scheduleHeartbeatLocked(gen uint64) {
	c.heartbeatTimer = c.clock.AfterFunc(c.cfg.HeartbeatInterval, func() { c.heartbeat(gen) })
}

func (c *Client) heartbeat(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	now := c.clock.Now()
	c.scheduleHeartbeatLocked(gen)
	c.mu.Unlock()

	if err := c.write(conn, pingFrame{Type: TypePing, Timestamp: now.UnixMilli()}); err != nil {
		c.connectionLost(gen, err)
	}
}

func (c *Client) readLoop(conn Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connectionLost(gen, err)
			return
		}
		if !c.touch(gen) {
			return
		}

		msg, err := Decode(data)
		if err != nil {
			reason := "malformed"
			if errors.Is(err, ErrUnknownMessageType) {
				reason = "unknown_type"
			}
			c.logger.Warn("dropping inbound message", "reason", reason, "error", err)
			c.metrics.dropped(reason)
			continue
		}

		c.metrics.received(msg.MessageType())
		if pong, ok := msg.(Pong); ok {
			c.recordPong(gen, pong)
		}
		c.handler.HandleMessage(msg)
	}
}

// touch stamps the last update time; false means the session is stale
func (c *Client) touch(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.lastUpdate = c.clock.Now()
	return true
}

func (c *Client) recordPong(gen uint64, pong Pong) {
	if pong.Timestamp <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.latency = c.clock.Now().Sub(time.UnixMilli(pong.Timestamp))
	c.metrics.latency(c.latency.Seconds())
}

func (c *Client) connectionLost(gen uint64, err error) {
	c.mu.Lock()
	defer c.unlock()

	if gen != c.gen || c.state != StateOpen {
		return
	}
	state := StateErrored
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		state = StateClosed
	}
	c.logger.Warn("connection lost", "state", state, "error", err)
	c.failLocked(state, err)
}

func (c *Client) send(v any) error {
	c.mu.Lock()
	if c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn, gen := c.conn, c.gen
	c.mu.Unlock()

	if err := c.write(conn, v); err != nil {
		c.connectionLost(gen, err)
		return err
	}
	return nil
}

func (c *Client) write(conn Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) stopTimersLocked() {
	for _, t := range []clock.Timer{c.reconnectTimer, c.heartbeatTimer, c.pollTimer} {
		if t != nil {
			t.Stop()
		}
	}
	c.reconnectTimer, c.heartbeatTimer, c.pollTimer = nil, nil, nil
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
}

func (c *Client) setStateLocked(s State) {
	if !CanTransition(c.state, s) {
		c.logger.Error("illegal state transition", "from", c.state, "to", s)
		return
	}
	c.state = s
	c.changed = true
	c.metrics.setState(s)
}

func (c *Client) statusLocked() Status {
	st := Status{
		State:             c.state,
		Connected:         c.state == StateOpen,
		Connecting:        c.state == StateConnecting,
		Polling:           c.state == StatePollingFallback,
		LastUpdate:        c.lastUpdate,
		ReconnectAttempts: c.attempts,
		RetryDelayMs:      c.retryDelay.Milliseconds(),
		LatencyMs:         float64(c.latency) / float64(time.Millisecond),
	}
	if c.lastErr != nil {
		st.Error = c.lastErr.Error()
	}
	return st
}

// unlock releases mu and, if the state changed, notifies listeners outside
// the lock.
func (c *Client) unlock() {
	var (
		st        Status
		listeners []func(Status)
	)
	if c.changed {
		c.changed = false
		st = c.statusLocked()
		listeners = c.listeners
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

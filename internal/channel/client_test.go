package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"graphwatch/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"
	testingclock "k8s.io/utils/clock/testing"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// asyncClock runs timer callbacks on their own goroutine, like the real clock
type asyncClock struct {
	*testingclock.FakeClock
}

func newFakeClock() asyncClock {
	return asyncClock{testingclock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))}
}

func (c asyncClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return c.FakeClock.AfterFunc(d, func() { go f() })
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.BaseDelay = 5 * time.Second
	cfg.Growth = 1.5
	cfg.MaxReconnectAttempts = 3
	return cfg
}

type failingDialer struct {
	calls atomic.Int32
}

func (d *failingDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.calls.Add(1)
	return nil, errors.New("connection refused")
}

type hangingDialer struct{}

func (hangingDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) record(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

// retryDelays returns the reconnect delays in the order they were scheduled
func (r *statusRecorder) retryDelays() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, s := range r.statuses {
		if (s.State == StateErrored || s.State == StateClosed) && s.RetryDelayMs > 0 {
			out = append(out, s.RetryDelayMs)
		}
	}
	return out
}

func (r *statusRecorder) waitDelays(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.retryDelays()) >= n }, waitFor, tick)
}

type messageRecorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *messageRecorder) HandleMessage(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *messageRecorder) types() []MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MessageType, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.MessageType())
	}
	return out
}

func newWSServer(t *testing.T, onConn func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		onConn(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBackoff(t *testing.T) {
	cfg := testConfig("ws://example")

	assert.Equal(t, 5000*time.Millisecond, cfg.Backoff(0))
	assert.Equal(t, 7500*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 11250*time.Millisecond, cfg.Backoff(2))

	for i := 1; i < 10; i++ {
		assert.Greater(t, cfg.Backoff(i), cfg.Backoff(i-1))
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.URL = "http://example"
	cfg.Growth = 0.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
	assert.Contains(t, err.Error(), "growth")

	cfg = DefaultConfig()
	cfg.Growth = 1
	err = cfg.Validate()
	require.Error(t, err, "constant delays never grow")
	assert.Contains(t, err.Error(), "growth")

	cfg = DefaultConfig()
	cfg.Enabled = false
	cfg.URL = ""
	assert.NoError(t, cfg.Validate(), "url is ignored when disabled")
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateConnecting, true},
		{StateConnecting, StateOpen, true},
		{StateOpen, StateErrored, true},
		{StateErrored, StateConnecting, true},
		{StateClosed, StatePollingFallback, true},
		{StatePollingFallback, StateConnecting, false},
		{StatePollingFallback, StateIdle, true},
		{StateIdle, StateOpen, false},
		{StateOpen, StateConnecting, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestReconnectBackoffThenPollingFallback(t *testing.T) {
	fc := newFakeClock()
	dialer := &failingDialer{}
	var polls atomic.Int32

	c := New(testConfig("ws://unreachable"), Options{
		Dialer: dialer,
		Clock:  fc,
		Poller: PollerFunc(func(ctx context.Context) error {
			polls.Add(1)
			return nil
		}),
	})
	rec := &statusRecorder{}
	c.OnStatus(rec.record)
	t.Cleanup(c.Disconnect)

	c.Connect()
	rec.waitDelays(t, 1)
	fc.Step(5 * time.Second)
	rec.waitDelays(t, 2)
	fc.Step(7500 * time.Millisecond)
	rec.waitDelays(t, 3)
	fc.Step(11250 * time.Millisecond)

	require.Eventually(t, func() bool { return c.State() == StatePollingFallback }, waitFor, tick)
	require.Eventually(t, func() bool { return polls.Load() >= 1 }, waitFor, tick)

	assert.Equal(t, []int64{5000, 7500, 11250}, rec.retryDelays())
	assert.Equal(t, int32(4), dialer.calls.Load(), "initial attempt plus three reconnects")

	// fallback is terminal: time passing and Connect never dial again
	fc.Step(time.Hour)
	require.Eventually(t, func() bool { return polls.Load() >= 2 }, waitFor, tick)
	c.Connect()
	assert.Equal(t, StatePollingFallback, c.State())
	assert.Equal(t, int32(4), dialer.calls.Load())

	st := c.Status()
	assert.True(t, st.Polling)
	assert.False(t, st.Connected)
}

func TestDisabledChannelPolls(t *testing.T) {
	cfg := testConfig("")
	cfg.Enabled = false
	dialer := &failingDialer{}
	polled := make(chan struct{}, 1)

	c := New(cfg, Options{
		Dialer: dialer,
		Clock:  newFakeClock(),
		Poller: PollerFunc(func(ctx context.Context) error {
			select {
			case polled <- struct{}{}:
			default:
			}
			return nil
		}),
	})
	t.Cleanup(c.Disconnect)

	c.Connect()
	select {
	case <-polled:
	case <-time.After(waitFor):
		t.Fatal("poller was not called")
	}
	assert.Equal(t, StatePollingFallback, c.State())
	assert.Zero(t, dialer.calls.Load())
}

func TestPollErrorSurfacesInStatus(t *testing.T) {
	cfg := testConfig("")
	cfg.Enabled = false

	c := New(cfg, Options{
		Clock: newFakeClock(),
		Poller: PollerFunc(func(ctx context.Context) error {
			return errors.New("upstream 503")
		}),
	})
	t.Cleanup(c.Disconnect)

	c.Connect()
	require.Eventually(t, func() bool { return c.Status().Error != "" }, waitFor, tick)
	assert.Contains(t, c.Status().Error, "503")
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	fc := newFakeClock()
	dialer := &failingDialer{}

	c := New(testConfig("ws://unreachable"), Options{Dialer: dialer, Clock: fc})
	rec := &statusRecorder{}
	c.OnStatus(rec.record)

	c.Connect()
	rec.waitDelays(t, 1)
	require.Equal(t, StateErrored, c.State())

	c.Disconnect()
	st := c.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Zero(t, st.ReconnectAttempts)
	assert.Empty(t, st.Error)

	fc.Step(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), dialer.calls.Load())

	// Disconnect is safe to repeat
	c.Disconnect()
	assert.Equal(t, StateIdle, c.State())
}

func TestConnectTimeout(t *testing.T) {
	fc := newFakeClock()
	cfg := testConfig("ws://hung")

	c := New(cfg, Options{Dialer: hangingDialer{}, Clock: fc})
	t.Cleanup(c.Disconnect)

	c.Connect()
	require.Equal(t, StateConnecting, c.State())
	c.Connect() // no-op while connecting

	require.Eventually(t, fc.HasWaiters, waitFor, tick)
	fc.Step(cfg.ConnectTimeout)

	require.Eventually(t, func() bool { return c.State() == StateErrored }, waitFor, tick)
	assert.Contains(t, c.Status().Error, ErrConnectTimeout.Error())
	assert.Equal(t, int64(5000), c.Status().RetryDelayMs)
}

func TestOpenSubscribesAndDispatchesInOrder(t *testing.T) {
	subscribed := make(chan Envelope, 1)
	frames := []string{
		`{"type":"agent_update","payload":{"agentId":"x","status":"busy"}}`,
		`{"type":"metric_update","payload":{"agentId":"x","metrics":{"cpuPercent":12.5}}}`,
		`{"type":"weather_report","payload":{}}`,
		`not json`,
		`{"type":"connection_update","payload":{"sourceId":"x","targetId":"y","traffic":{"latencyMs":9}}}`,
	}

	url := newWSServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if json.Unmarshal(data, &env) == nil {
			subscribed <- env
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	handler := &messageRecorder{}
	c := New(testConfig(url), Options{Handler: handler, Clock: newFakeClock()})
	t.Cleanup(c.Disconnect)

	c.Connect()

	select {
	case env := <-subscribed:
		assert.Equal(t, TypeSubscribe, env.Type)
	case <-time.After(waitFor):
		t.Fatal("no subscribe frame")
	}

	require.Eventually(t, func() bool { return len(handler.types()) == 3 }, waitFor, tick)
	assert.Equal(t, []MessageType{TypeAgentUpdate, TypeMetricUpdate, TypeConnectionUpdate}, handler.types())

	handler.mu.Lock()
	first := handler.msgs[0].(AgentUpdate)
	handler.mu.Unlock()
	assert.Equal(t, "x", first.AgentID)
	assert.Equal(t, domain.NodeStatusBusy, *first.Status)

	st := c.Status()
	assert.Equal(t, StateOpen, st.State, "bad frames never close the channel")
	assert.True(t, st.Connected)
	assert.Zero(t, st.ReconnectAttempts)
}

func TestServerCloseSchedulesReconnect(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	fc := newFakeClock()
	c := New(testConfig(url), Options{Clock: fc})
	t.Cleanup(c.Disconnect)

	c.Connect()
	require.Eventually(t, func() bool { return c.State() == StateClosed }, waitFor, tick)

	st := c.Status()
	assert.Equal(t, 1, st.ReconnectAttempts)
	assert.Equal(t, int64(5000), st.RetryDelayMs)
}

func TestHeartbeatAndAgentSubscription(t *testing.T) {
	frames := make(chan Envelope, 8)
	url := newWSServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if json.Unmarshal(data, &env) == nil {
				frames <- env
			}
		}
	})

	fc := newFakeClock()
	cfg := testConfig(url)
	c := New(cfg, Options{Clock: fc})
	t.Cleanup(c.Disconnect)

	assert.ErrorIs(t, c.SubscribeAgent("x"), ErrNotConnected)

	c.Connect()
	require.Eventually(t, func() bool { return c.State() == StateOpen }, waitFor, tick)

	next := func() Envelope {
		t.Helper()
		select {
		case env := <-frames:
			return env
		case <-time.After(waitFor):
			t.Fatal("no frame received")
			return Envelope{}
		}
	}

	assert.Equal(t, TypeSubscribe, next().Type)

	require.NoError(t, c.SubscribeAgent("x"))
	env := next()
	assert.Equal(t, TypeSubscribeAgent, env.Type)
	assert.JSONEq(t, `{"agentId":"x"}`, string(env.Payload))

	fc.Step(cfg.HeartbeatInterval)
	ping := next()
	assert.Equal(t, TypePing, ping.Type)
	assert.Equal(t, fc.Now().UnixMilli(), ping.Timestamp)

	require.NoError(t, c.UnsubscribeAgent("x"))
	assert.Equal(t, TypeUnsubscribeAgent, next().Type)
}

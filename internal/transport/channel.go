// Package transport maintains the logical, always-retried event-stream
// connection to the diagnosis backend.
package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/starhyc/problem-diagnosis-assistant/internal/protocol"
)

// Status is the channel's current linkage to the backend.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// MessageHandler receives each inbound envelope in arrival order.
type MessageHandler func(protocol.Envelope)

// StatusHandler receives connection status transitions.
type StatusHandler func(Status)

// Options configures a Channel. Zero values fall back to defaults.
type Options struct {
	URL string
	// ReconnectDelay is the backoff base; attempt n waits n*ReconnectDelay.
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	Dialer               *websocket.Dialer
}

const (
	defaultReconnectDelay = 3 * time.Second
	defaultMaxAttempts    = 5
)

// Channel owns a single bidirectional event connection with automatic
// reconnection. At most one underlying socket is live at a time; a new
// connect supersedes any prior one.
type Channel struct {
	url         string
	delay       time.Duration
	maxAttempts int
	dialer      *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	status   Status
	attempts int
	timer    *time.Timer
	closed   bool
	gen      int

	// gorilla permits one concurrent writer per connection.
	writeMu sync.Mutex

	subMu      sync.Mutex
	nextSub    int
	msgSubs    map[int]MessageHandler
	statusSubs map[int]StatusHandler
}

// NewChannel creates a disconnected channel. The socket is dialed lazily on
// the first Connect.
func NewChannel(opts Options) *Channel {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = defaultMaxAttempts
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Channel{
		url:         opts.URL,
		delay:       opts.ReconnectDelay,
		maxAttempts: opts.MaxReconnectAttempts,
		dialer:      opts.Dialer,
		status:      StatusDisconnected,
		msgSubs:     make(map[int]MessageHandler),
		statusSubs:  make(map[int]StatusHandler),
	}
}

// Connect dials the backend. Idempotent: if an attempt is in flight or a
// connection is established it returns immediately without a second socket.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.status == StatusConnected || c.status == StatusConnecting {
		c.mu.Unlock()
		return nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.closed = false
	c.status = StatusConnecting
	c.mu.Unlock()
	c.notifyStatus(StatusConnecting)

	conn, resp, err := c.dialer.Dial(c.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.setStatus(StatusError)
		c.scheduleReconnect()
		return fmt.Errorf("connect %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.conn = conn
	c.attempts = 0
	c.status = StatusConnected
	c.mu.Unlock()
	c.notifyStatus(StatusConnected)

	go c.readLoop(conn, gen)
	return nil
}

// Disconnect cancels any pending reconnect timer, closes the socket if open,
// and leaves the channel disconnected. Idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.gen++
	already := c.status == StatusDisconnected
	c.status = StatusDisconnected
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if !already {
		c.notifyStatus(StatusDisconnected)
	}
}

// Send serializes an envelope and writes it to the socket. While not
// connected the message is dropped with a warning, never queued.
func (c *Channel) Send(msgType string, data any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.status == StatusConnected && conn != nil
	c.mu.Unlock()

	if !connected {
		slog.Warn("Dropping outbound message, channel not connected", "type", msgType)
		return nil
	}

	env, err := protocol.NewEnvelope(msgType, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	return nil
}

// OnMessage subscribes to inbound envelopes. The returned function removes
// the subscription.
func (c *Channel) OnMessage(h MessageHandler) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.msgSubs[id] = h
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.msgSubs, id)
	}
}

// OnStatus subscribes to connection status transitions.
func (c *Channel) OnStatus(h StatusHandler) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.statusSubs[id] = h
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.statusSubs, id)
	}
}

// Status returns the current connection status.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Attempts returns the current reconnect attempt counter.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Endpoint returns the configured URL.
func (c *Channel) Endpoint() string { return c.url }

func (c *Channel) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Dropping unparseable inbound message", "error", err)
			continue
		}
		c.notifyMessage(env)
	}

	c.mu.Lock()
	if gen != c.gen {
		// Superseded by a newer connection or an explicit disconnect.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	explicit := c.closed
	c.status = StatusDisconnected
	c.mu.Unlock()
	c.notifyStatus(StatusDisconnected)

	if !explicit {
		c.scheduleReconnect()
	}
}

func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.maxAttempts {
		c.mu.Unlock()
		slog.Warn("Reconnect attempt ceiling reached, staying disconnected", "attempts", c.maxAttempts)
		return
	}
	c.attempts++
	attempt := c.attempts
	delay := c.delay * time.Duration(attempt)
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(delay, func() {
		if err := c.Connect(); err != nil {
			slog.Warn("Reconnect failed", "attempt", attempt, "error", err)
		}
	})
	c.mu.Unlock()

	slog.Info("Scheduling reconnect", "attempt", attempt, "max", c.maxAttempts, "delay", delay)
}

func (c *Channel) setStatus(s Status) {
	c.mu.Lock()
	if c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	c.mu.Unlock()
	c.notifyStatus(s)
}

// notifyMessage fans an envelope out to all subscribers. A panicking handler
// is logged and isolated so it cannot break dispatch to the others.
func (c *Channel) notifyMessage(env protocol.Envelope) {
	c.subMu.Lock()
	handlers := make([]MessageHandler, 0, len(c.msgSubs))
	for _, h := range c.msgSubs {
		handlers = append(handlers, h)
	}
	c.subMu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Message handler panicked", "type", env.Type, "panic", r)
				}
			}()
			h(env)
		}()
	}
}

func (c *Channel) notifyStatus(s Status) {
	c.subMu.Lock()
	handlers := make([]StatusHandler, 0, len(c.statusSubs))
	for _, h := range c.statusSubs {
		handlers = append(handlers, h)
	}
	c.subMu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Status handler panicked", "status", s, "panic", r)
				}
			}()
			h(s)
		}()
	}
}

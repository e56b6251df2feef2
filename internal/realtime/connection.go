// Package realtime owns the live event channel: a websocket connection that
// the caller creates, connects and closes explicitly, and passes to whatever
// needs to subscribe. There is no process-wide socket.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gotrs-io/gotrs-hitl/internal/metrics"
)

var ErrNotConnected = errors.New("realtime connection is not open")

// Handler receives decoded events. Handlers run sequentially on the read
// goroutine and must not block for long.
type Handler func(Event)

// Options configures a Connection
type Options struct {
	URL            string
	Header         http.Header
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Metrics        *metrics.Metrics

	// HeaderFunc, when set, replaces Header and is called before every dial
	HeaderFunc func() (http.Header, error)
}

func (o *Options) defaults() {
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 5 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
}

type subscription struct {
	id      uint64
	handler Handler
	active  atomic.Bool
}

// socket is one physical websocket; a Connection may go through several
type socket struct {
	ws        *websocket.Conn
	done      chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once
	writeMu   sync.Mutex
}

// Connection is the lifecycle-scoped handle to the live channel. Handlers
// registered with On survive reconnects.
type Connection struct {
	opts Options
	log  *zap.Logger

	mu     sync.Mutex
	sock   *socket
	subs   map[string][]*subscription
	nextID uint64
}

// New builds an unconnected Connection
func New(opts Options, log *zap.Logger) *Connection {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Connection{
		opts: opts,
		log:  log.With(zap.String("component", "realtime")),
		subs: make(map[string][]*subscription),
	}
}

// Dial builds a Connection and connects it
func Dial(ctx context.Context, opts Options, log *zap.Logger) (*Connection, error) {
	c := New(opts, log)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect opens the websocket, starts the read and keepalive loops and
// dispatches a Connected event. Connecting an open Connection is a no-op.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.sock != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	header := c.opts.Header
	if c.opts.HeaderFunc != nil {
		h, err := c.opts.HeaderFunc()
		if err != nil {
			return fmt.Errorf("dial %s: %w", c.opts.URL, err)
		}
		header = h
	}

	ws, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}

	s := &socket{ws: ws, done: make(chan struct{})}
	c.mu.Lock()
	if c.sock != nil {
		// lost a concurrent Connect
		c.mu.Unlock()
		ws.Close()
		return nil
	}
	c.sock = s
	c.mu.Unlock()

	c.log.Info("live channel connected", zap.String("url", c.opts.URL))
	c.opts.Metrics.SetConnected(true)
	c.dispatch(Connected{})

	go c.readLoop(s)
	go c.pingLoop(s)
	return nil
}

// Connected reports whether a socket is currently open
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock != nil
}

// Done is closed when the current socket goes away. It returns a closed
// channel when not connected.
func (c *Connection) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.sock.done
}

// Close sends a close frame and waits for the read loop to exit. Handlers
// stay registered; calling Close twice is fine. It must not be called from a
// Handler.
func (c *Connection) Close() error {
	c.mu.Lock()
	s := c.sock
	c.mu.Unlock()
	if s == nil {
		return nil
	}

	s.closing.Store(true)
	s.writeMu.Lock()
	_ = s.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	_ = s.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	err := s.ws.Close()
	<-s.done
	return err
}

// On registers h for event and returns its unsubscribe function, which is
// synchronous and idempotent: once it returns h is never called again.
func (c *Connection) On(event string, h Handler) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	sub := &subscription{id: c.nextID, handler: h}
	sub.active.Store(true)
	c.subs[event] = append(c.subs[event], sub)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			c.mu.Lock()
			defer c.mu.Unlock()
			list := c.subs[event]
			for i, s := range list {
				if s.id == sub.id {
					c.subs[event] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(c.subs[event]) == 0 {
				delete(c.subs, event)
			}
		})
	}
}

// HandlerCount reports how many handlers are registered for event
func (c *Connection) HandlerCount(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[event])
}

// Emit sends an event frame to the server
func (c *Connection) Emit(event string, data interface{}) error {
	c.mu.Lock()
	s := c.sock
	c.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	if err := s.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

// KeepAlive reconnects after ReconnectDelay whenever the socket drops, until
// ctx is done. The initial connect is attempted immediately.
func (c *Connection) KeepAlive(ctx context.Context) {
	for {
		if err := c.Connect(ctx); err != nil {
			c.log.Warn("live channel connect failed", zap.Error(err))
		} else {
			select {
			case <-c.Done():
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

func (c *Connection) dispatch(ev Event) {
	c.mu.Lock()
	subs := append([]*subscription(nil), c.subs[ev.Name()]...)
	c.mu.Unlock()

	for _, s := range subs {
		if s.active.Load() {
			s.handler(ev)
		}
	}
}

func (c *Connection) readLoop(s *socket) {
	var cause error
	defer func() {
		s.ws.Close()
		c.mu.Lock()
		if c.sock == s {
			c.sock = nil
		}
		c.mu.Unlock()
		c.opts.Metrics.SetConnected(false)
		s.closeOnce.Do(func() { close(s.done) })
		c.log.Info("live channel disconnected", zap.Error(cause))
		c.dispatch(Disconnected{Err: cause})
	}()

	_ = s.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if !s.closing.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				cause = err
			}
			return
		}
		_ = s.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		ev, err := Decode(f)
		switch {
		case errors.Is(err, ErrUnknownEvent):
			c.log.Debug("dropping unhandled event", zap.String("event", f.Event))
			continue
		case err != nil:
			c.log.Warn("dropping invalid event", zap.String("event", f.Event), zap.Error(err))
			continue
		}
		c.dispatch(ev)
	}
}

func (c *Connection) pingLoop(s *socket) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			_ = s.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			err := s.ws.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				c.log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

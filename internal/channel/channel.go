// Package channel implements the reconnecting push-channel client. It owns a
// single websocket connection, answers keep-alive duties and hands every
// notification frame to a Sink after normalization.
package channel

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/notify"
)

const (
	pingFrame = "ping"
	pongFrame = "pong"
)

// Status is the connection state of a Channel.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Sink receives normalized notifications.
type Sink interface {
	Prepend(n model.Notification) bool
}

// Options configures a Channel. URL is the server root (ws://host:port);
// each attempt connects to URL/ws/<clientID>.
type Options struct {
	URL    string
	Dialer Dialer
	Clock  clockwork.Clock
	Logger *zap.Logger
	Sink   Sink

	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	PingInterval time.Duration

	// Callbacks run on channel goroutines, one at a time and in transition
	// order. They must not call back into the Channel.
	OnStatus    func(Status)
	OnReconnect func(attempt int, delay time.Duration)
	OnGiveUp    func()
}

// Channel maintains one logical push connection with bounded exponential
// reconnection.
type Channel struct {
	opts Options
	log  *zap.Logger

	emitMu  sync.Mutex // orders callbacks
	writeMu sync.Mutex // gorilla allows one concurrent writer
	mu      sync.Mutex

	status   Status
	attempts int
	clientID string
	conn     Conn
	gen      uint64 // incremented per connection attempt
	live     bool   // current attempt has not delivered its close event yet
	gaveUp   bool
	started  bool
	closed   bool
	retry    clockwork.Timer
	ticker   clockwork.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a disconnected Channel. Call Start to connect.
func New(opts Options) *Channel {
	if opts.Sink == nil {
		panic("channel: Options.Sink is required")
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = opts.BaseDelay
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		opts:   opts,
		log:    opts.Logger.Named("channel"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start begins the keep-alive loop and the first connection attempt.
// Calling Start more than once has no effect.
func (c *Channel) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.ticker = c.opts.Clock.NewTicker(c.opts.PingInterval)
	c.wg.Add(1)
	go c.keepAlive(c.ticker)
	c.mu.Unlock()

	c.Connect()
}

// Connect opens a connection under a fresh client id unless one is already
// being established or is open. Failures surface through the status
// callbacks, never as errors.
func (c *Channel) Connect() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.closed || c.live {
		c.mu.Unlock()
		return
	}
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.gen++
	c.live = true
	if c.gaveUp {
		c.attempts = 0
		c.gaveUp = false
	}
	c.clientID = fmt.Sprintf("user-%d", c.opts.Clock.Now().UnixMilli())
	gen, url := c.gen, c.opts.URL+"/ws/"+c.clientID
	changed := c.setStatus(Connecting)
	c.wg.Add(1)
	go c.run(gen, url)
	c.mu.Unlock()

	c.log.Debug("connecting", zap.String("url", url))
	if changed {
		c.emitStatus(Connecting)
	}
}

// Close tears the channel down: pending reconnection and keep-alive timers
// are cancelled before the socket is closed. Close blocks until every
// channel goroutine has returned.
func (c *Channel) Close() {
	c.emitMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.emitMu.Unlock()
		return
	}
	c.closed = true
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.ticker != nil {
		c.ticker.Stop()
	}
	close(c.done)
	c.cancel()
	conn := c.conn
	c.conn = nil
	c.live = false
	changed := c.setStatus(Disconnected)
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if changed {
		c.emitStatus(Disconnected)
	}
	c.emitMu.Unlock()

	c.wg.Wait()
	c.log.Debug("closed")
}

// Status returns the current connection state.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Attempts returns the number of reconnections scheduled since the last
// successful open or manual reconnect after a give-up.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// ClientID returns the id used by the most recent connection attempt.
func (c *Channel) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// GaveUp reports whether reconnection stopped after exhausting its attempts.
func (c *Channel) GaveUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gaveUp
}

func (c *Channel) run(gen uint64, url string) {
	defer c.wg.Done()

	conn, err := c.opts.Dialer.Dial(c.ctx, url)
	if err != nil {
		c.dropped(gen, err)
		return
	}
	if !c.opened(gen, conn) {
		conn.Close()
		return
	}

	c.write(gen, conn, pingFrame)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.dropped(gen, err)
			return
		}
		c.handleFrame(data)
	}
}

// opened records a successful handshake. It reports false when the attempt
// was superseded or the channel closed meanwhile.
func (c *Channel) opened(gen uint64, conn Conn) bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.closed || gen != c.gen || !c.live {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.attempts = 0
	changed := c.setStatus(Connected)
	clientID := c.clientID
	c.mu.Unlock()

	c.log.Info("connected", zap.String("client_id", clientID))
	if changed {
		c.emitStatus(Connected)
	}
	return true
}

// dropped handles the close event of attempt gen: a failed dial or a
// broken read. It schedules the next reconnection or gives up.
func (c *Channel) dropped(gen uint64, cause error) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.closed || gen != c.gen || !c.live {
		c.mu.Unlock()
		return
	}
	c.live = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	changed := c.setStatus(Disconnected)

	var (
		attempt int
		delay   time.Duration
		giveUp  bool
	)
	if c.attempts < c.opts.MaxAttempts {
		c.attempts++
		attempt = c.attempts
		delay = Backoff(attempt, c.opts.BaseDelay, c.opts.MaxDelay)
		c.retry = c.opts.Clock.AfterFunc(delay, c.Connect)
	} else {
		c.gaveUp = true
		giveUp = true
	}
	c.mu.Unlock()

	if changed {
		c.emitStatus(Disconnected)
	}
	if giveUp {
		c.log.Warn("giving up reconnecting", zap.Error(cause), zap.Int("max_attempts", c.opts.MaxAttempts))
		if c.opts.OnGiveUp != nil {
			c.opts.OnGiveUp()
		}
		return
	}
	c.log.Info("connection lost, reconnecting",
		zap.Error(cause),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)
	if c.opts.OnReconnect != nil {
		c.opts.OnReconnect(attempt, delay)
	}
}

// failed handles an error event on conn: the status drops to disconnected
// and the socket is closed, so the read loop ends and the resulting close
// event schedules the reconnection.
func (c *Channel) failed(gen uint64, conn Conn, cause error) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	changed := c.setStatus(Disconnected)
	c.mu.Unlock()

	conn.Close()
	c.log.Warn("channel error", zap.Error(cause))
	if changed {
		c.emitStatus(Disconnected)
	}
}

func (c *Channel) write(gen uint64, conn Conn, frame string) {
	c.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, []byte(frame))
	c.writeMu.Unlock()
	if err != nil {
		c.failed(gen, conn, fmt.Errorf("writing %s: %w", frame, err))
	}
}

func (c *Channel) keepAlive(ticker clockwork.Ticker) {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.Chan():
			c.mu.Lock()
			conn, gen, ok := c.conn, c.gen, c.status == Connected
			c.mu.Unlock()
			if ok && conn != nil {
				c.write(gen, conn, pingFrame)
			}
		}
	}
}

// handleFrame absorbs protocol noise and forwards notification payloads.
func (c *Channel) handleFrame(data []byte) {
	if string(bytes.TrimSpace(data)) == pongFrame {
		return
	}
	if !gjson.ValidBytes(data) {
		c.log.Debug("dropping unparseable frame", zap.ByteString("frame", data))
		return
	}

	env := gjson.ParseBytes(data)
	switch kind := env.Get("type").String(); kind {
	case "notification":
		n, err := notify.Normalize([]byte(env.Get("data").Raw))
		if err != nil {
			c.log.Warn("dropping invalid notification", zap.Error(err))
			return
		}
		c.opts.Sink.Prepend(n)
	case "connection":
		c.log.Debug("server greeting", zap.String("data", env.Get("data").Raw))
	default:
		c.log.Debug("ignoring frame", zap.String("type", kind))
	}
}

// setStatus must be called with c.mu held.
func (c *Channel) setStatus(s Status) bool {
	if c.status == s {
		return false
	}
	c.status = s
	return true
}

// emitStatus must be called with c.emitMu held.
func (c *Channel) emitStatus(s Status) {
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(s)
	}
}

package mockserver

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// sendBuffer is how many frames may queue for a slow client before new
// frames are dropped for it.
const sendBuffer = 32

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Broadcaster tracks connected push clients. Each client has one writer
// goroutine; Broadcast never blocks on a slow client.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[string]*client
	log     *zap.Logger
}

// NewBroadcaster creates an empty registry.
func NewBroadcaster(log *zap.Logger) *Broadcaster {
	return &Broadcaster{clients: make(map[string]*client), log: log}
}

// Serve runs the connection for id until the peer goes away. A second
// connection with the same id replaces the first.
func (b *Broadcaster) Serve(id string, conn *websocket.Conn, hello any) {
	c := &client{id: id, conn: conn, send: make(chan []byte, sendBuffer)}

	b.mu.Lock()
	if old, ok := b.clients[id]; ok {
		old.close()
	}
	b.clients[id] = c
	total := len(b.clients)
	b.mu.Unlock()
	b.log.Info("client connected", zap.String("client", id), zap.Int("clients", total))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				b.log.Warn("write failed, closing client", zap.String("client", id), zap.Error(err))
				break
			}
		}
		conn.Close()
	}()

	if hello != nil {
		b.enqueue(c, hello)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if string(msg) == "ping" {
			b.enqueueRaw(c, []byte("pong"))
			continue
		}
		b.log.Debug("client message", zap.String("client", id), zap.ByteString("data", msg))
	}

	b.mu.Lock()
	if b.clients[id] == c {
		delete(b.clients, id)
	}
	b.mu.Unlock()
	c.close()
	<-done
	b.log.Info("client disconnected", zap.String("client", id))
}

// Broadcast sends v as JSON to every client and returns how many accepted
// the frame.
func (b *Broadcaster) Broadcast(v any) int {
	frame, err := json.Marshal(v)
	if err != nil {
		b.log.Error("encoding broadcast", zap.Error(err))
		return 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	sent := 0
	for _, c := range b.clients {
		if b.offer(c, frame) {
			sent++
		}
	}
	return sent
}

// Count returns the number of connected clients.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// CloseAll disconnects every client.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.clients {
		c.conn.Close()
		delete(b.clients, id)
	}
}

func (b *Broadcaster) enqueue(c *client, v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		b.log.Error("encoding frame", zap.Error(err))
		return
	}
	b.enqueueRaw(c, frame)
}

func (b *Broadcaster) enqueueRaw(c *client, frame []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.offer(c, frame)
}

// offer must be called with b.mu held. Clients that were replaced or
// disconnected are skipped, so send is never written after close.
func (b *Broadcaster) offer(c *client, frame []byte) bool {
	if b.clients[c.id] != c {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		b.log.Warn("client buffer full, dropping frame", zap.String("client", c.id))
		return false
	}
}

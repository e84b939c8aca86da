package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mytechsonamy/crypto-stock-platform/internal/ringbuf"
)

// Client is a single WebSocket peer registered under one symbol — spec
// 4.8's registry entry "{user, connected_at, sent_count}".
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	log  *slog.Logger

	Symbol      string
	User        string
	ConnectedAt time.Time
	sentCount   atomic.Int64

	send chan []byte
	ring *ringbuf.Ring[[]byte]

	// lastSent and the ring are both only ever touched by the single
	// bus-consuming goroutine that calls Hub.Dispatch/DispatchAlert, and
	// flush() by the single flusher goroutine — an SPSC pair per client,
	// matching internal/ringbuf's contract.
	lastSent time.Time

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, symbol, user string, log *slog.Logger) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		log:         log,
		Symbol:      symbol,
		User:        user,
		ConnectedAt: time.Now().UTC(),
		send:        make(chan []byte, 8),
		ring:        ringbuf.New[[]byte](ringCapacity),
	}
}

// SentCount returns how many frames have been written to this client.
func (c *Client) SentCount() int64 { return c.sentCount.Load() }

// offer applies spec 4.8's throttle gate: send immediately if the last
// send was more than throttle ago, else enqueue for the next flush.
func (c *Client) offer(payload []byte) {
	now := time.Now()
	if now.Sub(c.lastSent) >= c.hub.throttle {
		c.lastSent = now
		c.trySend(payload)
		return
	}
	if !c.ring.Push(payload) {
		// Ring full: drop the oldest queued update in favor of the newest
		// (spec 5, Backpressure: "ring full => oldest dropped").
		c.ring.Pop()
		c.ring.Push(payload)
	}
}

// flush drains the ring and sends its contents as either a single message
// or one {type:"batch"} frame (spec 4.8).
func (c *Client) flush() {
	items := c.ring.DrainAll()
	if len(items) == 0 {
		return
	}
	if len(items) == 1 {
		c.lastSent = time.Now()
		c.trySend(items[0])
		return
	}

	messages := make([]json.RawMessage, len(items))
	for i, item := range items {
		messages[i] = item
	}
	payload, err := json.Marshal(batchFrame{Type: "batch", Count: len(messages), Messages: messages})
	if err != nil {
		c.log.Error("gateway: marshal batch frame failed", "symbol", c.Symbol, "error", err)
		return
	}
	c.lastSent = time.Now()
	c.trySend(payload)
}

// trySend hands payload to writePump without blocking the caller; a full
// send buffer means a very slow consumer, which is handled by the
// writePump's own deadline-triggered disconnect, not by blocking here.
func (c *Client) trySend(payload []byte) {
	select {
	case c.send <- payload:
		c.sentCount.Add(1)
	default:
		c.log.Warn("gateway: client send buffer full, dropping frame", "symbol", c.Symbol, "user", c.User)
	}
}

// writePump is the sole writer to the underlying connection, adapted from
// the teacher's internal/gateway Client.writePump: same 30s ping ticker
// and write-deadline discipline. It no longer coalesces multiple queued
// payloads into one frame with newline separators — each payload here is
// already a complete, self-contained JSON frame ("initial"/"update"/
// "batch"/"alert"), and spec 4.8 requires one frame per logical update.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// readPump only needs to keep the read side alive for pings/close
// detection and the {"type":"ping"} -> {"type":"pong"} echo (section 6);
// spec 4.8 has no client-initiated subscription protocol — a client's
// symbol is fixed for the lifetime of its connection (set at accept).
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}
		if base.Type == "ping" {
			pong, _ := json.Marshal(map[string]string{"type": "pong"})
			c.trySend(pong)
		}
	}
}

// close removes c from the registry and closes its send channel exactly
// once — spec 4.8: "Disconnected or erroring clients are removed
// synchronously from the registry."
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.hub.Remove(c)
		close(c.send)
	})
}

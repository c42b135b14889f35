// Package ops exposes the daemon's operational surface: a JSON health
// endpoint and a websocket feed of live economy transactions.
package ops

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
)

// feedClient buffers outbound frames for one websocket subscriber.
type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Feed fans transaction events out to websocket subscribers. It implements
// economy.EventSink. Slow subscribers are disconnected rather than allowed
// to backpressure the game thread.
type Feed struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

// NewFeed creates an empty feed.
func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*feedClient]struct{}),
	}
}

// EconomyEvent broadcasts one transaction record to all subscribers.
func (f *Feed) EconomyEvent(rec model.TransactionRecord) {
	payload, err := json.Marshal(map[string]any{
		"id":            rec.ID.String(),
		"ts":            rec.TS,
		"kind":          string(rec.Kind),
		"player_id":     rec.PlayerID,
		"counterparty":  rec.Counterparty,
		"amount":        int64(rec.Amount),
		"balance_after": int64(rec.BalanceAfter),
		"ref":           rec.Ref,
	})
	if err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- payload:
		default:
			// Subscriber cannot keep up; cut it loose.
			delete(f.clients, c)
			close(c.send)
		}
	}
}

// Subscribers returns the current subscriber count.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("feed upgrade failed", "error", err)
		return
	}

	client := &feedClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	f.mu.Lock()
	f.clients[client] = struct{}{}
	f.mu.Unlock()

	f.logger.Debug("feed subscriber connected", "remote", conn.RemoteAddr().String())

	go f.writePump(client)
	f.readPump(client)
}

// Close disconnects every subscriber.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		delete(f.clients, c)
		close(c.send)
	}
}

func (f *Feed) writePump(c *feedClient) {
	defer c.conn.Close()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	// Channel closed: feed shut down or subscriber dropped for being slow.
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// readPump discards inbound frames and unregisters on disconnect.
func (f *Feed) readPump(c *feedClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}

	f.mu.Lock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
	f.mu.Unlock()
}

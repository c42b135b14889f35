package ops

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
	"github.com/Vonix-Network/VonixCore-sub003/internal/store"
)

type fakeCacheStats int

func (f fakeCacheStats) CacheSize() int { return int(f) }

type fakeFlushStats struct{ depth, pending int }

func (f fakeFlushStats) QueueDepth() int  { return f.depth }
func (f fakeFlushStats) PendingSize() int { return f.pending }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(mem *store.Memory) *Server {
	return NewServer(Config{Enabled: true, Port: 0}, mem, fakeCacheStats(3),
		fakeFlushStats{depth: 2, pending: 1}, NewFeed(quietLogger()), quietLogger())
}

func TestHandleHealth(t *testing.T) {
	mem := store.NewMemory()
	s := newTestServer(mem)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Status     string                     `json:"status"`
		Version    string                     `json:"version"`
		Components map[string]json.RawMessage `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q, want %q", body.Status, "healthy")
	}
	if body.Version == "" {
		t.Error("version missing from health response")
	}
	for _, key := range []string{"database", "accounts", "flush", "feed"} {
		if _, ok := body.Components[key]; !ok {
			t.Errorf("component %q missing from health response", key)
		}
	}
}

func TestHandleHealthDatabaseDown(t *testing.T) {
	mem := store.NewMemory()
	mem.SetError(errors.New("connection refused"))
	s := newTestServer(mem)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rec.Body.String(), "unhealthy") {
		t.Error("response should report unhealthy")
	}
}

func TestFeedBroadcast(t *testing.T) {
	feed := NewFeed(quietLogger())
	srv := httptest.NewServer(feed)
	defer srv.Close()
	defer feed.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	defer conn.Close()

	// Wait for the server side to register the subscriber.
	deadline := time.Now().Add(time.Second)
	for feed.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec := model.TransactionRecord{
		ID:           uuid.New(),
		TS:           time.Now().UnixMicro(),
		Kind:         model.TxDeposit,
		PlayerID:     "p1",
		Amount:       250,
		BalanceAfter: 10250,
	}
	feed.EconomyEvent(rec)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read feed frame: %v", err)
	}

	var frame map[string]any
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame["kind"] != "deposit" {
		t.Errorf("kind = %v, want deposit", frame["kind"])
	}
	if frame["player_id"] != "p1" {
		t.Errorf("player_id = %v, want p1", frame["player_id"])
	}
	if frame["amount"] != float64(250) {
		t.Errorf("amount = %v, want 250", frame["amount"])
	}
}

func TestFeedDropsSlowSubscriber(t *testing.T) {
	feed := NewFeed(quietLogger())

	// A client that is never read from fills its buffer and gets dropped.
	stuck := &feedClient{send: make(chan []byte)}
	feed.mu.Lock()
	feed.clients[stuck] = struct{}{}
	feed.mu.Unlock()

	feed.EconomyEvent(model.TransactionRecord{ID: uuid.New(), Kind: model.TxDeposit})

	if got := feed.Subscribers(); got != 0 {
		t.Errorf("Subscribers() = %d, want 0 (slow client dropped)", got)
	}
}

func TestFeedClose(t *testing.T) {
	feed := NewFeed(quietLogger())
	srv := httptest.NewServer(feed)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for feed.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	feed.Close()
	if got := feed.Subscribers(); got != 0 {
		t.Errorf("Subscribers() after Close = %d, want 0", got)
	}
}

package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/match-escrow/pkg/contracts/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMap(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, c.ReadJSON(&m))
	return m
}

func TestHubDeliversOnlyToSubscribers(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true }, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	require.NoError(t, a.WriteJSON(ClientMsg{Type: "subscribe", MatchID: "m1"}))
	require.NoError(t, b.WriteJSON(ClientMsg{Type: "subscribe", MatchID: "m2"}))
	assert.Equal(t, "subscribed", readMap(t, a)["type"])
	assert.Equal(t, "subscribed", readMap(t, b)["type"])

	ch := make(chan *redis.Message, 2)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go Relay(ctx, ch, hub, zap.NewNop(), func() { close(done) })

	body, _ := json.Marshal(events.LiveUpdate{MatchID: "m1", Type: events.LiveBetPlaced, Payload: json.RawMessage(`{"pools":[1,2]}`)})
	ch <- &redis.Message{Payload: "not json"}
	ch <- &redis.Message{Payload: string(body)}

	got := readMap(t, a)
	assert.Equal(t, "m1", got["matchId"])
	assert.Equal(t, events.LiveBetPlaced, got["type"])

	require.NoError(t, b.WriteJSON(ClientMsg{Type: "ping"}))
	assert.Equal(t, "pong", readMap(t, b)["type"])

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true }, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)
	require.NoError(t, c.WriteJSON(ClientMsg{Type: "subscribe", MatchID: "m1"}))
	readMap(t, c)
	assert.Equal(t, 1, hub.Subscribers("m1"))

	require.NoError(t, c.WriteJSON(ClientMsg{Type: "unsubscribe", MatchID: "m1"}))
	require.NoError(t, c.WriteJSON(ClientMsg{Type: "ping"}))
	readMap(t, c)
	assert.Equal(t, 0, hub.Subscribers("m1"))
}

func TestHubDropsStalledClient(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true }, zap.NewNop())
	hub.writeWait = 50 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	stalled, healthy := dial(t, srv), dial(t, srv)
	for _, c := range []*websocket.Conn{stalled, healthy} {
		require.NoError(t, c.WriteJSON(ClientMsg{Type: "subscribe", MatchID: "m1"}))
		assert.Equal(t, "subscribed", readMap(t, c)["type"])
	}

	// healthy drena tudo e repassa só as mensagens pequenas
	require.NoError(t, healthy.SetReadDeadline(time.Time{}))
	small := make(chan map[string]any, 4)
	go func() {
		for {
			_, b, err := healthy.ReadMessage()
			if err != nil {
				return
			}
			if len(b) < 1024 {
				var m map[string]any
				if json.Unmarshal(b, &m) == nil {
					small <- m
				}
			}
		}
	}()

	big := json.RawMessage(`"` + strings.Repeat("x", 256<<10) + `"`)
	require.Eventually(t, func() bool {
		hub.Broadcast(events.LiveUpdate{MatchID: "m1", Type: events.LiveBetPlaced, Payload: big})
		return hub.Subscribers("m1") == 1
	}, 10*time.Second, time.Millisecond)

	start := time.Now()
	hub.Broadcast(events.LiveUpdate{MatchID: "m1", Type: events.LiveSettled, Payload: json.RawMessage(`{}`)})
	assert.Less(t, time.Since(start), time.Second)

	select {
	case m := <-small:
		assert.Equal(t, events.LiveSettled, m["type"])
	case <-time.After(2 * time.Second):
		t.Fatal("healthy subscriber did not receive the update")
	}
}

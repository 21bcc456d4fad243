package utility

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		if err != nil {
			http.Error(w, "bad user", http.StatusBadRequest)
			return
		}
		conn, err := hub.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(userID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(userID, conn)
		conn.Close()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, hub *Hub, userID int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user_id=" + strconv.FormatInt(userID, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.Connected(userID) }, time.Second, 10*time.Millisecond)
	return conn
}

func TestHubPush(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)

	assert.False(t, hub.Push(1, "nobody home"))

	conn := dial(t, srv, hub, 1)
	require.True(t, hub.Push(1, map[string]int{"steps": 120}))

	var got map[string]int
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, 120, got["steps"])
}

func TestHubUnregisterKeepsNewerConnection(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)

	dial(t, srv, hub, 2)
	hub.mu.Lock()
	first := hub.clients[2].conn
	hub.mu.Unlock()

	dial(t, srv, hub, 2)
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		cl, ok := hub.clients[2]
		return ok && cl.conn != first
	}, time.Second, 10*time.Millisecond)

	hub.Unregister(2, first)
	assert.True(t, hub.Connected(2))
}

func TestHubBusyWriterDoesNotBlockOthers(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)

	dial(t, srv, hub, 3)
	other := dial(t, srv, hub, 4)

	hub.mu.Lock()
	busy := hub.clients[3]
	hub.mu.Unlock()

	// Hold user 3's writer as a stalled send would.
	busy.mu.Lock()
	defer busy.mu.Unlock()

	done := make(chan bool, 1)
	go func() { done <- hub.Connected(3) && hub.Push(4, "hello") }()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("hub blocked behind another user's write")
	}

	var got string
	require.NoError(t, other.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, other.ReadJSON(&got))
	assert.Equal(t, "hello", got)
}

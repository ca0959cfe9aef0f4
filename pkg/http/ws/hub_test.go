package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsPair returns a server-side Connection (pumping) and the client end.
func wsPair(t *testing.T) (*Connection, *websocket.Conn) {
	t.Helper()

	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	conn := NewConnection(<-serverConns, zerolog.Nop())
	go conn.WritePump()

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn, client
}

func TestHubSendDeliversToConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn, client := wsPair(t)

	connID := uuid.New()
	hub.Register(connID, conn)
	assert.Equal(t, 1, hub.Count())

	require.NoError(t, hub.Send(connID, NewMessage(TypePong, nil)))

	var msg Message
	require.NoError(t, client.ReadJSON(&msg))
	assert.Equal(t, TypePong, msg.Type)
}

func TestHubSendUnknownConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	err := hub.Send(uuid.New(), NewMessage(TypePong, nil))
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestHubBroadcastAll(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	conn1, client1 := wsPair(t)
	conn2, client2 := wsPair(t)
	hub.Register(uuid.New(), conn1)
	hub.Register(uuid.New(), conn2)

	payload := LeaderboardPayload{Level: "normal", Rows: []LeaderboardRow{{Name: "ada", TotalTime: 12.5, Level: "normal"}}}
	require.NoError(t, hub.BroadcastAll(NewMessage(TypeLeaderboard, payload)))

	for _, client := range []*websocket.Conn{client1, client2} {
		var msg Message
		require.NoError(t, client.ReadJSON(&msg))
		assert.Equal(t, TypeLeaderboard, msg.Type)
	}
}

func TestHubUnregisterClosesConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn, _ := wsPair(t)

	connID := uuid.New()
	hub.Register(connID, conn)
	hub.Unregister(connID)

	assert.Equal(t, 0, hub.Count())
	assert.ErrorIs(t, conn.Send(NewMessage(TypePong, nil)), ErrConnectionClosed)
	assert.ErrorIs(t, hub.Send(connID, NewMessage(TypePong, nil)), ErrConnectionNotFound)
}

// shrinkPumpTimings makes the deadline windows small enough to cross in a
// unit test and restores them afterwards.
func shrinkPumpTimings(t *testing.T, wait, ping time.Duration) {
	t.Helper()
	restoreWait, restorePing := pongWait, pingPeriod
	pongWait, pingPeriod = wait, ping
	t.Cleanup(func() { pongWait, pingPeriod = restoreWait, restorePing })
}

func TestReadPumpStaysOpenUnderTraffic(t *testing.T) {
	// pings effectively off: only app-level frames keep this connection alive
	shrinkPumpTimings(t, 250*time.Millisecond, time.Hour)

	conn, client := wsPair(t)

	var handled atomic.Int32
	readDone := make(chan struct{})
	go func() {
		conn.ReadPump(func(Message) error {
			handled.Add(1)
			return nil
		})
		close(readDone)
	}()

	// keep talking well past the deadline window
	stop := time.Now().Add(800 * time.Millisecond)
	for time.Now().Before(stop) {
		require.NoError(t, client.WriteJSON(NewMessage(TypePing, nil)))
		time.Sleep(50 * time.Millisecond)
	}

	select {
	case <-readDone:
		t.Fatal("read loop exited while the client was still sending")
	default:
	}
	assert.Greater(t, int(handled.Load()), 10)

	client.Close()
	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit after client close")
	}
}

func TestIdleConnectionKeptAliveByPings(t *testing.T) {
	shrinkPumpTimings(t, 300*time.Millisecond, 100*time.Millisecond)

	conn, client := wsPair(t)

	readDone := make(chan struct{})
	go func() {
		conn.ReadPump(func(Message) error { return nil })
		close(readDone)
	}()

	// the client read loop answers server pings with pongs (gorilla default)
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// idle for several deadline windows without any app-level traffic
	time.Sleep(900 * time.Millisecond)

	select {
	case <-readDone:
		t.Fatal("idle connection dropped despite keepalive pings")
	default:
	}
	require.NoError(t, conn.Send(NewMessage(TypePong, nil)))
}

func TestRegisterReplacesExisting(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn1, _ := wsPair(t)
	conn2, client2 := wsPair(t)

	connID := uuid.New()
	hub.Register(connID, conn1)
	hub.Register(connID, conn2)

	assert.Equal(t, 1, hub.Count())
	assert.ErrorIs(t, conn1.Send(NewMessage(TypePong, nil)), ErrConnectionClosed)

	require.NoError(t, hub.Send(connID, NewMessage(TypePong, nil)))
	var msg Message
	require.NoError(t, client2.ReadJSON(&msg))
	assert.Equal(t, TypePong, msg.Type)
}

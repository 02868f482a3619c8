package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcap/internal/pipeline"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubBroadcastsRunEvents(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	conn := dial(t, server)

	hello := readMessage(t, conn)
	assert.Equal(t, TypeConnection, hello["type"])
	data := hello["data"].(map[string]any)
	assert.Equal(t, "connected", data["status"])
	assert.NotEmpty(t, data["client_id"])

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(pipeline.Event{
		Type:   pipeline.EventStageSucceeded,
		RunID:  "run-1",
		Stage:  pipeline.StageIDCrawl,
		Status: "succeeded",
	})

	msg := readMessage(t, conn)
	assert.Equal(t, TypeRunEvent, msg["type"])
	event := msg["data"].(map[string]any)
	assert.Equal(t, "stage:succeeded", event["type"])
	assert.Equal(t, "run-1", event["run_id"])
	assert.Equal(t, "crawl", event["stage"])
}

func TestHubFansOutToEveryClient(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	conns := []*websocket.Conn{dial(t, server), dial(t, server), dial(t, server)}
	for _, conn := range conns {
		readMessage(t, conn)
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(pipeline.Event{Type: pipeline.EventRunFinished, RunID: "run-2", Status: "failed"})

	for _, conn := range conns {
		msg := readMessage(t, conn)
		event := msg["data"].(map[string]any)
		assert.Equal(t, "run-2", event["run_id"])
		assert.Equal(t, "failed", event["status"])
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	conn := dial(t, server)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*4; i++ {
			hub.Publish(pipeline.Event{Type: pipeline.EventStageAttempt, RunID: "run-3", Attempt: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
	assert.Len(t, hub.broadcast, broadcastBuffer)
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()

	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	conn := dial(t, server)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	hub.Stop()
}

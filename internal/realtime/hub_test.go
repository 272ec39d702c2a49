package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/lalith-99/huddle/internal/observ"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	spaceA = uuid.MustParse("5a000000-0000-0000-0000-00000000000a")
	spaceB = uuid.MustParse("5a000000-0000-0000-0000-00000000000b")
	userID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
)

func startHub(t *testing.T) (*Hub, *observ.Metrics) {
	t.Helper()
	m := observ.NewMetrics()
	hub := NewHub(m, zaptest.NewLogger(t))
	go hub.Run()
	t.Cleanup(hub.Shutdown)
	return hub, m
}

func receive(t *testing.T, c *Client) models.Event {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "client channel closed")
		var evt models.Event
		require.NoError(t, json.Unmarshal(data, &evt))
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	return models.Event{}
}

func TestPublishReachesOnlyTheSpace(t *testing.T) {
	hub, m := startHub(t)
	a := NewClient(spaceA, userID)
	b := NewClient(spaceB, userID)
	hub.Register(a)
	hub.Register(b)

	require.Eventually(t, func() bool { return hub.ClientCount(spaceB) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount(spaceA))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WSClients))

	ch := &models.Channel{ID: uuid.New(), SpaceID: spaceA, Name: "design"}
	require.NoError(t, hub.Publish(context.Background(), models.Event{
		Type:      models.EventChannelCreated,
		SpaceID:   spaceA,
		ChannelID: ch.ID,
		Channel:   ch,
	}))

	evt := receive(t, a)
	assert.Equal(t, models.EventChannelCreated, evt.Type)
	require.NotNil(t, evt.Channel)
	assert.Equal(t, "design", evt.Channel.Name)

	select {
	case <-b.Send:
		t.Fatal("event leaked into another space")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	hub, m := startHub(t)
	c := NewClient(spaceA, userID)
	hub.Register(c)
	hub.Unregister(c)

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount(spaceA))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WSClients))
}

func TestSlowClientIsDropped(t *testing.T) {
	hub, _ := startHub(t)
	c := &Client{SpaceID: spaceA, UserID: userID, Send: make(chan []byte, 1)}
	hub.Register(c)

	ctx := context.Background()
	require.NoError(t, hub.Deliver(ctx, spaceA, []byte(`{}`)))
	require.NoError(t, hub.Deliver(ctx, spaceA, []byte(`{}`)))

	require.Eventually(t, func() bool { return hub.ClientCount(spaceA) == 0 }, time.Second, 10*time.Millisecond)
}

func TestPublishAfterShutdown(t *testing.T) {
	hub := NewHub(nil, nil)
	hub.Shutdown()
	// Fill the buffer so Deliver has to choose between the queue and done.
	for i := 0; i < cap(hub.broadcast); i++ {
		hub.broadcast <- delivery{}
	}
	err := hub.Publish(context.Background(), models.Event{SpaceID: spaceA})
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestServeStreamsEventsOverWebsocket(t *testing.T) {
	hub, _ := startHub(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, NewClient(spaceA, userID))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount(spaceA) == 1 }, time.Second, 10*time.Millisecond)

	msg := &models.Message{ID: 7, Text: "hello", Type: models.MessageTypeUser}
	require.NoError(t, hub.Publish(context.Background(), models.Event{
		Type:    models.EventMessageCreated,
		SpaceID: spaceA,
		Message: msg,
	}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt models.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, models.EventMessageCreated, evt.Type)
	require.NotNil(t, evt.Message)
	assert.Equal(t, int64(7), evt.Message.ID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount(spaceA) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestTopicRoundTrip(t *testing.T) {
	got, err := SpaceFromTopic(Topic(spaceA))
	require.NoError(t, err)
	assert.Equal(t, spaceA, got)

	_, err = SpaceFromTopic("other:" + spaceA.String())
	assert.Error(t, err)
}

// Needs a live Redis: HUDDLE_TEST_REDIS_URL=redis://localhost:6379/15
func TestRedisBridgeRelaysBetweenInstances(t *testing.T) {
	url := os.Getenv("HUDDLE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("HUDDLE_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	hub, _ := startHub(t)
	bridge := NewRedisBridge(rdb, hub, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bridge.Run(ctx) }()

	c := NewClient(spaceA, userID)
	hub.Register(c)

	// The subscription is confirmed asynchronously; publish until it lands.
	var evt models.Event
	require.Eventually(t, func() bool {
		_ = bridge.Publish(ctx, models.Event{Type: models.EventMessageDeleted, SpaceID: spaceA})
		select {
		case data := <-c.Send:
			return json.Unmarshal(data, &evt) == nil
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.EventMessageDeleted, evt.Type)
}

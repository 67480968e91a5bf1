package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderhub/internal/service/order/domain"
)

func dialFeed(t *testing.T, feed *EventFeed) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(feed.Serve))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestEventFeedBroadcasts(t *testing.T) {
	feed := NewEventFeed()
	defer feed.Close()
	conn := dialFeed(t, feed)

	require.NoError(t, feed.Publish(context.Background(), domain.Event{
		Type:    domain.EventOrderCreated,
		OrderID: 9,
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event domain.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, domain.EventOrderCreated, event.Type)
	assert.Equal(t, int64(9), event.OrderID)
}

func TestEventFeedSurvivesClosedSubscriber(t *testing.T) {
	feed := NewEventFeed()
	defer feed.Close()
	conn := dialFeed(t, feed)
	require.NoError(t, conn.Close())

	// 已断开的订阅者不影响发布
	assert.NoError(t, feed.Publish(context.Background(), domain.Event{Type: domain.EventOrderDeleted}))
}

package realtime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// startHub serves the hub with the user id taken from the ?user query parameter.
func startHub(t *testing.T, authorize Authorizer) (*Hub, string) {
	t.Helper()
	hub := NewHub(authorize, quietLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(r.Context(), conn, r.URL.Query().Get("user"))
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, user string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url+"?user="+user, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, cmd))
}

func read(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f Frame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

func TestHub_SubscribeAndPublish(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url, "u1")

	send(t, conn, Command{Action: ActionSubscribe, Channel: ConversationChannel("c1")})
	ack := read(t, conn)
	assert.Equal(t, EventSubscribed, ack.Event)
	assert.Equal(t, 1, hub.Subscribers("conversation-c1"))

	require.NoError(t, hub.Publish(context.Background(), "conversation-c1", EventNewMessage, map[string]string{"id": "m1"}))

	f := read(t, conn)
	assert.Equal(t, "conversation-c1", f.Channel)
	assert.Equal(t, EventNewMessage, f.Event)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.Equal(t, "m1", payload["id"])
}

func TestHub_AuthorizerDeniesSubscription(t *testing.T) {
	hub, url := startHub(t, func(_ context.Context, userID, channel string) bool {
		return channel == UserChannel(userID)
	})
	conn := dial(t, url, "u1")

	send(t, conn, Command{Action: ActionSubscribe, Channel: UserChannel("u2")})
	f := read(t, conn)
	assert.Equal(t, EventError, f.Event)
	assert.Equal(t, 0, hub.Subscribers(UserChannel("u2")))

	send(t, conn, Command{Action: ActionSubscribe, Channel: UserChannel("u1")})
	assert.Equal(t, EventSubscribed, read(t, conn).Event)
	assert.Equal(t, 1, hub.Subscribers(UserChannel("u1")))
}

func TestHub_UnsubscribeAndDisconnect(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url, "u1")

	send(t, conn, Command{Action: ActionSubscribe, Channel: "a"})
	read(t, conn)
	send(t, conn, Command{Action: ActionSubscribe, Channel: "b"})
	read(t, conn)

	send(t, conn, Command{Action: ActionUnsubscribe, Channel: "a"})
	assert.Equal(t, EventUnsubscribed, read(t, conn).Event)
	assert.Equal(t, 0, hub.Subscribers("a"))
	assert.Equal(t, 1, hub.Subscribers("b"))

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return hub.Subscribers("b") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil, quietLogger())
	assert.NoError(t, hub.Publish(context.Background(), "nobody", EventNewMessage, nil))
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "user-42", UserChannel("42"))
	assert.Equal(t, "conversation-abc", ConversationChannel("abc"))
}

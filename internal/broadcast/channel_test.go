package broadcast

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/type-rush-backend/internal/hub"
	"github.com/DoyleJ11/type-rush-backend/internal/ws"
	"github.com/DoyleJ11/type-rush-backend/pkg/types"
)

func relayServer(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(ctx, zap.NewNop())
	srv := httptest.NewServer(ws.Handler(h, ws.DefaultOptions(), zap.NewNop()))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-h.Done()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func join(t *testing.T, url, name, room string) *Channel {
	t.Helper()
	c, err := Dial(context.Background(), url, types.Participant{DisplayName: name, RoomID: room}, DefaultOptions(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func next(t *testing.T, c *Channel) (types.ServerMessage, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.Messages():
		return msg, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
		return types.ServerMessage{}, false
	}
}

func TestDial_EntersRoom(t *testing.T) {
	url := relayServer(t)
	a := join(t, url, "ada", "r1")

	msg, ok := next(t, a)
	require.True(t, ok)
	assert.Equal(t, types.TypeMembership, msg.Type)
	assert.Equal(t, []string{"ada"}, msg.Members)
}

func TestPublish_DeliveredInOrder(t *testing.T) {
	url := relayServer(t)
	a := join(t, url, "ada", "r1")
	next(t, a)
	b := join(t, url, "bob", "r1")
	next(t, b)
	next(t, a)

	ctx := context.Background()
	for _, wpm := range []int{10, 20, 30} {
		require.NoError(t, a.Publish(ctx, types.ClientMessage{Type: types.TypePerformance, WPM: wpm}))
	}
	for _, want := range []int{10, 20, 30} {
		msg, ok := next(t, b)
		require.True(t, ok)
		assert.Equal(t, "ada", msg.DisplayName)
		assert.Equal(t, want, msg.WPM)
	}
}

func TestLeave_FlushedBeforeClose(t *testing.T) {
	url := relayServer(t)
	a := join(t, url, "ada", "r1")
	next(t, a)
	b := join(t, url, "bob", "r1")
	next(t, b)
	next(t, a)

	require.NoError(t, b.Publish(context.Background(), types.ClientMessage{Type: types.TypeLeaveRoom}))
	require.NoError(t, b.Close())

	msg, ok := next(t, a)
	require.True(t, ok)
	assert.Equal(t, []string{"ada"}, msg.Members)
}

func TestDial_ZeroOptionsUseDefaults(t *testing.T) {
	url := relayServer(t)
	a := join(t, url, "ada", "r1")
	next(t, a)

	b, err := Dial(context.Background(), url, types.Participant{DisplayName: "bob", RoomID: "r1"}, Options{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	next(t, b)
	next(t, a)

	require.NoError(t, b.Publish(context.Background(), types.ClientMessage{Type: types.TypeChat, Text: "hi"}))
	msg, ok := next(t, a)
	require.True(t, ok)
	assert.Equal(t, "hi", msg.Text)
}

func TestClose(t *testing.T) {
	url := relayServer(t)
	a := join(t, url, "ada", "r1")
	next(t, a)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "idempotent")

	_, ok := next(t, a)
	assert.False(t, ok, "messages closed")
	assert.ErrorIs(t, a.Publish(context.Background(), types.ClientMessage{Type: types.TypeChat, Text: "hi"}), ErrClosed)
}

func TestServerRejects(t *testing.T) {
	url := relayServer(t)
	a := join(t, url, "", "r1")

	msg, ok := next(t, a)
	require.True(t, ok)
	assert.Equal(t, types.TypeError, msg.Type)
	assert.Equal(t, types.ErrMissingIdentity.Error(), msg.Error)

	_, ok = next(t, a)
	assert.False(t, ok, "server closed the socket")
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, "ws://127.0.0.1:1/ws", types.Participant{DisplayName: "ada", RoomID: "r1"}, DefaultOptions(), zap.NewNop())
	assert.Error(t, err)
}

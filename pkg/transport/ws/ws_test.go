package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openflow/datasync/pkg/events"
	"github.com/openflow/datasync/pkg/logging"
)

var upgrader = websocket.Upgrader{}

// fakeBackend upgrades connections, acknowledges subscribe frames and
// lets tests push event frames to the connected client.
type fakeBackend struct {
	t *testing.T

	mu     sync.Mutex
	conn   *websocket.Conn
	frames []clientMessage
	ready  chan struct{}
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	b := &fakeBackend{t: t, ready: make(chan struct{})}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	conn.WriteJSON(map[string]any{
		"type":    typeConnected,
		"content": map[string]any{"client_id": "test-client"},
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		b.mu.Lock()
		b.frames = append(b.frames, msg)
		b.mu.Unlock()

		switch msg.Type {
		case typeSubscribe:
			conn.WriteJSON(map[string]any{
				"type":    typeSubscribed,
				"content": map[string]any{"channel": msg.Content.Channel},
			})
			select {
			case <-b.ready:
			default:
				close(b.ready)
			}
		case typePing:
			conn.WriteJSON(map[string]any{"type": typePong})
		}
	}
}

func (b *fakeBackend) sendEvent(channel string, ev events.DataChangedEvent) {
	payload, err := json.Marshal(ev)
	require.NoError(b.t, err)
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotNil(b.t, b.conn)
	b.conn.WriteJSON(map[string]any{
		"type": typeEvent,
		"content": map[string]any{
			"channel": channel,
			"payload": json.RawMessage(payload),
		},
	})
}

func (b *fakeBackend) sendRaw(raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotNil(b.t, b.conn)
	b.conn.WriteMessage(websocket.TextMessage, []byte(raw))
}

func (b *fakeBackend) subscribedChannels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var channels []string
	for _, f := range b.frames {
		if f.Type == typeSubscribe && f.Content != nil {
			channels = append(channels, f.Content.Channel)
		}
	}
	return channels
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialSubscribesToDataChanged(t *testing.T) {
	backend, srv := newFakeBackend(t)
	bus := events.NewCollectingPublisher()

	source, err := Dial(context.Background(), wsURL(srv), bus, WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	defer source.Close()

	select {
	case <-backend.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("backend never saw the subscribe frame")
	}
	assert.Equal(t, []string{events.ChannelDataChanged}, backend.subscribedChannels())
}

func TestEventsAreRepublishedOnTheBus(t *testing.T) {
	backend, srv := newFakeBackend(t)
	bus := events.NewCollectingPublisher()

	source, err := Dial(context.Background(), wsURL(srv), bus, WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	defer source.Close()
	<-backend.ready

	backend.sendEvent(events.ChannelDataChanged, events.Updated(events.EntityTask, "t-1", map[string]any{"title": "ship it"}))

	assert.Eventually(t, func() bool { return bus.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	published := bus.Events()[0]
	assert.Equal(t, events.EntityTask, published.Entity)
	assert.Equal(t, events.ActionUpdated, published.Action)
	assert.Equal(t, "t-1", published.ID)
	assert.True(t, published.HasData())
}

func TestMalformedFramesAreSkipped(t *testing.T) {
	backend, srv := newFakeBackend(t)
	bus := events.NewCollectingPublisher()

	source, err := Dial(context.Background(), wsURL(srv), bus, WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	defer source.Close()
	<-backend.ready

	backend.sendRaw(`{not json`)
	backend.sendRaw(`{"type":"event","content":{"channel":"data-changed","payload":"nope"}}`)
	backend.sendEvent(events.ChannelDataChanged, events.Deleted(events.EntityChat, "c-9"))

	assert.Eventually(t, func() bool { return bus.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, events.ActionDeleted, bus.Events()[0].Action)
}

func TestPingKeepAlive(t *testing.T) {
	backend, srv := newFakeBackend(t)
	bus := events.NewCollectingPublisher()

	source, err := Dial(context.Background(), wsURL(srv), bus,
		WithLogger(logging.NewNopLogger()),
		WithPingInterval(20*time.Millisecond))
	require.NoError(t, err)
	defer source.Close()
	<-backend.ready

	assert.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		for _, f := range backend.frames {
			if f.Type == typePing {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseIsIdempotentAndSignalsDone(t *testing.T) {
	backend, srv := newFakeBackend(t)
	bus := events.NewCollectingPublisher()

	source, err := Dial(context.Background(), wsURL(srv), bus, WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	<-backend.ready

	require.NoError(t, source.Close())
	assert.NoError(t, source.Close())

	select {
	case <-source.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop never exited")
	}
	assert.NoError(t, source.Err())
}

func TestDialRejectsNilBus(t *testing.T) {
	_, err := Dial(context.Background(), "ws://localhost:0", nil)
	assert.Error(t, err)
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"entity":"task","action":"updated","id":"t-1","data":{"title":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, events.EntityTask, ev.Entity)
	assert.Equal(t, "t-1", ev.ID)

	_, err = DecodeEvent([]byte(`]`))
	assert.Error(t, err)
}

func TestDialFailsWhenServerUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	bus := events.NewCollectingPublisher()
	_, err := Dial(ctx, "ws://127.0.0.1:1/ws", bus, WithLogger(logging.NewNopLogger()))
	assert.Error(t, err)
}

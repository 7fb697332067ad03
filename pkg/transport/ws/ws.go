// Package ws feeds a datasync event bus from the backend's WebSocket
// endpoint. It speaks the backend's envelope protocol: the client sends
// subscribe and ping frames, the server answers with connected,
// subscribed, event, pong and error frames. Payloads of event frames on
// the data-changed channel are decoded into DataChangedEvents and
// republished on the local bus.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/openflow/datasync/pkg/errors"
	"github.com/openflow/datasync/pkg/events"
	"github.com/openflow/datasync/pkg/logging"
)

// Frame types exchanged with the backend.
const (
	typeSubscribe   = "subscribe"
	typeUnsubscribe = "unsubscribe"
	typePing        = "ping"
	typeConnected   = "connected"
	typeSubscribed  = "subscribed"
	typeEvent       = "event"
	typePong        = "pong"
	typeError       = "error"
)

// defaultPingInterval keeps intermediaries from dropping idle
// connections.
const defaultPingInterval = 30 * time.Second

// clientMessage is a frame sent to the server.
type clientMessage struct {
	Type    string         `json:"type"`
	Content *clientContent `json:"content,omitempty"`
}

type clientContent struct {
	Channel string `json:"channel"`
}

// serverMessage is a frame received from the server.
type serverMessage struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

type eventContent struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

type errorContent struct {
	Error string `json:"error"`
}

// Option configures a Source.
type Option func(*Source)

// WithPingInterval overrides the keep-alive interval. Zero disables
// pings.
func WithPingInterval(d time.Duration) Option {
	return func(s *Source) { s.pingInterval = d }
}

// WithChannels overrides the channels subscribed at dial time.
func WithChannels(channels ...string) Option {
	return func(s *Source) { s.channels = channels }
}

// WithLogger overrides the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Source is a live WebSocket connection republishing backend events onto
// a local bus.
type Source struct {
	conn   *websocket.Conn
	bus    events.Publisher
	logger *zerolog.Logger

	channels     []string
	pingInterval time.Duration

	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu      sync.Mutex
	readErr error
	done    chan struct{}
	closed  bool
}

// Dial connects to the backend WebSocket endpoint, subscribes to the
// configured channels (data-changed by default) and starts pumping
// events onto the bus.
func Dial(ctx context.Context, url string, bus events.Publisher, opts ...Option) (*Source, error) {
	if bus == nil {
		return nil, errors.NewConfigError("ws", "bus cannot be nil", errors.ErrInvalidInput)
	}

	s := &Source{
		bus:          bus,
		logger:       logging.Default(),
		channels:     []string{events.ChannelDataChanged},
		pingInterval: defaultPingInterval,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.NewSubscriptionError(events.ChannelDataChanged, "websocket dial failed", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	s.conn = conn

	for _, ch := range s.channels {
		if err := s.write(clientMessage{Type: typeSubscribe, Content: &clientContent{Channel: ch}}); err != nil {
			conn.Close()
			return nil, errors.NewSubscriptionError(ch, "subscribe frame failed", err)
		}
	}

	go s.readLoop()
	if s.pingInterval > 0 {
		go s.pingLoop()
	}

	s.logger.Debug().
		Str("url", url).
		Strs("channels", s.channels).
		Msg("WebSocket event source connected")
	return s, nil
}

// Done is closed when the read loop exits, either from Close or a
// connection failure.
func (s *Source) Done() <-chan struct{} { return s.done }

// Err returns the error that terminated the read loop, if any. Nil after
// a clean Close.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readErr
}

// Close tears the connection down. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}

func (s *Source) write(msg clientMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

func (s *Source) readLoop() {
	defer close(s.done)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if !s.closed {
				s.readErr = err
			}
			s.mu.Unlock()
			if s.Err() != nil {
				s.logger.Warn().Err(err).Msg("WebSocket read failed")
			}
			return
		}
		s.handleFrame(raw)
	}
}

func (s *Source) handleFrame(raw []byte) {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Warn().Err(err).Msg("Malformed server frame")
		return
	}

	switch msg.Type {
	case typeEvent:
		var content eventContent
		if err := json.Unmarshal(msg.Content, &content); err != nil {
			s.logger.Warn().Err(err).Msg("Malformed event frame")
			return
		}
		ev, err := DecodeEvent(content.Payload)
		if err != nil {
			s.logger.Warn().Err(err).Str("channel", content.Channel).Msg("Undecodable event payload")
			return
		}
		s.bus.Publish(content.Channel, ev)

	case typeConnected, typeSubscribed:
		s.logger.Debug().Str("frame", msg.Type).Msg("Handshake frame")

	case typeError:
		var content errorContent
		_ = json.Unmarshal(msg.Content, &content)
		s.logger.Warn().Str("server_error", content.Error).Msg("Server reported error")

	case typePong:
		// keep-alive answer, nothing to do

	default:
		s.logger.Debug().Str("frame", msg.Type).Msg("Ignoring unknown frame type")
	}
}

func (s *Source) pingLoop() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.write(clientMessage{Type: typePing}); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// DecodeEvent decodes a data-changed payload.
func DecodeEvent(payload []byte) (events.DataChangedEvent, error) {
	var ev events.DataChangedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return events.DataChangedEvent{}, err
	}
	return ev, nil
}

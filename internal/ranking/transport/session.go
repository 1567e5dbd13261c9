package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/questlab/ranksync/internal/ranking"
	"github.com/questlab/ranksync/pkg/logger"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// MessageHandler receives every inbound message for a topic. data is the
// full raw frame; per-topic delivery order is preserved.
type MessageHandler func(topic string, data []byte)

// StateHandler receives connection state transitions. err is non-nil for
// Disconnected when the drop had a cause.
type StateHandler func(state ranking.ConnState, err error)

// SessionOptions configures a push session.
type SessionOptions struct {
	URL         string
	Token       string
	DialTimeout time.Duration

	OnMessage MessageHandler
	OnState   StateHandler
}

// Session owns one authenticated long-lived push connection and exposes
// generic publish/subscribe primitives. It reports state and never
// retries on its own; reconnect policy belongs to the caller. A new
// Connect supersedes the previous connection, so at most one socket is
// ever live.
type Session struct {
	opts SessionOptions
	log  *logger.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	gen    uint64 // bumped per connection, guards stale read-loop events
	closed bool

	// Registered subscriptions by topic, kept for dedupe and for replay
	// after a reconnect.
	subs map[string]json.RawMessage
}

// NewSession creates a session. Handlers must be set before Connect.
func NewSession(opts SessionOptions, log *logger.Logger) *Session {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	return &Session{
		opts: opts,
		log:  log,
		subs: make(map[string]json.RawMessage),
	}
}

// frame is the wire envelope for outbound requests.
type frame struct {
	Action string          `json:"action"`
	Topic  string          `json:"topic"`
	Params json.RawMessage `json:"params,omitempty"`
}

// envelope is the minimal shape of an inbound message.
type envelope struct {
	Topic string `json:"topic"`
}

// Connect establishes the push channel. It fails fast: no retry happens
// inside this call. Classified errors: ErrInvalidCredential (nothing to
// authenticate with), ErrRejected (server-side auth rejection),
// ErrNetwork (unreachable).
func (s *Session) Connect(ctx context.Context) error {
	if s.opts.Token == "" {
		return ErrInvalidCredential
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: s.opts.DialTimeout,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.opts.Token)

	s.log.WithField("url", s.opts.URL).Debug("Connecting to ranking socket")

	conn, resp, err := dialer.DialContext(ctx, s.opts.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	// Supersede any previous connection rather than duplicating it.
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.log.Info("Connected to ranking socket")
	s.emitState(ranking.ConnConnected, nil)

	go s.readLoop(conn, gen)
	go s.pingLoop(conn, gen)

	s.replaySubscriptions(conn)

	return nil
}

// Subscribe registers a topic subscription. Calling it again with
// identical params is a no-op, so duplicate in-flight subscribe calls
// collapse into one server-side subscription. Registered subscriptions
// are replayed automatically after a reconnect.
func (s *Session) Subscribe(topic string, params interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal subscribe params: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if prev, ok := s.subs[topic]; ok && bytes.Equal(prev, raw) {
		s.mu.Unlock()
		s.log.WithField("topic", topic).Debug("Duplicate subscribe ignored")
		return nil
	}
	s.subs[topic] = raw
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		// Not connected yet; the subscription is registered and will be
		// sent on connect.
		return nil
	}

	return s.writeFrame(conn, frame{Action: "subscribe", Topic: topic, Params: raw})
}

// Unsubscribe removes a topic subscription.
func (s *Session) Unsubscribe(topic string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	_, ok := s.subs[topic]
	delete(s.subs, topic)
	conn := s.conn
	s.mu.Unlock()

	if !ok || conn == nil {
		return nil
	}

	return s.writeFrame(conn, frame{Action: "unsubscribe", Topic: topic})
}

// Publish sends a one-off message on a topic.
func (s *Session) Publish(topic string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal publish payload: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrNetwork
	}

	return s.writeFrame(conn, frame{Action: "publish", Topic: topic, Params: raw})
}

// Close tears the session down. Safe to call multiple times and from any
// state.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
	}

	s.log.Debug("Ranking socket session closed")
	return nil
}

func (s *Session) writeFrame(conn *websocket.Conn, f frame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("%w: write %s %s: %v", ErrNetwork, f.Action, f.Topic, err)
	}
	return nil
}

// replaySubscriptions re-sends every registered subscription on a fresh
// connection.
func (s *Session) replaySubscriptions(conn *websocket.Conn) {
	s.mu.Lock()
	pending := make(map[string]json.RawMessage, len(s.subs))
	for topic, raw := range s.subs {
		pending[topic] = raw
	}
	s.mu.Unlock()

	for topic, raw := range pending {
		if err := s.writeFrame(conn, frame{Action: "subscribe", Topic: topic, Params: raw}); err != nil {
			s.log.WithError(err).WithField("topic", topic).Error("Failed to replay subscription")
		}
	}
}

// readLoop reads until the connection drops, then reports Disconnected
// exactly once. It never reconnects; that decision belongs to the owner.
func (s *Session) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.isCurrent(gen) {
				s.log.WithError(err).Warn("Ranking socket disconnected")
				s.emitState(ranking.ConnDisconnected, err)
			}
			return
		}

		if !s.isCurrent(gen) {
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.log.WithError(err).Warn("Dropping unparseable socket message")
			continue
		}

		if s.opts.OnMessage != nil {
			s.opts.OnMessage(env.Topic, message)
		}
	}
}

// pingLoop keeps the connection alive until it is superseded or closed.
func (s *Session) pingLoop(conn *websocket.Conn, gen uint64) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !s.isCurrent(gen) {
			return
		}

		if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
			return
		}
	}
}

// isCurrent reports whether gen still identifies the live connection.
func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.gen == gen
}

func (s *Session) emitState(state ranking.ConnState, err error) {
	if s.opts.OnState != nil {
		s.opts.OnState(state, err)
	}
}

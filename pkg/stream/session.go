package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/swan-solutions/knocki-homeassistant/pkg/knocki"
)

// ConnectionState tracks where a session is in its lifecycle. A session
// moves disconnected -> connecting -> connected, and through closing back
// to disconnected; disconnected is terminal for a session instance.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

// session owns exactly one WebSocket connection. It is created fresh for
// each connect attempt and discarded when the connection ends; the
// supervisor never reuses one.
type session struct {
	logger        *slog.Logger
	registry      *registry
	url           string
	heartbeat     time.Duration
	state         atomic.Int32
	everConnected atomic.Bool
}

func newSession(url string, heartbeat time.Duration, reg *registry, logger *slog.Logger) *session {
	s := &session{
		logger:    logger,
		registry:  reg,
		url:       url,
		heartbeat: heartbeat,
	}
	s.state.Store(int32(StateDisconnected))
	return s
}

func (s *session) connectionState() ConnectionState {
	return ConnectionState(s.state.Load())
}

func (s *session) connected() bool {
	return s.connectionState() == StateConnected
}

func (s *session) setState(state ConnectionState) {
	s.state.Store(int32(state))
	s.logger.Debug("connection state changed", "state", state)
}

// run dials the event stream and processes frames until the connection
// ends. It returns nil on a clean server close and a
// *knocki.ConnectionError on any transport failure. The transport is
// released on every exit path.
func (s *session) run(ctx context.Context) error {
	s.setState(StateConnecting)
	defer s.setState(StateDisconnected)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil {
			if closeErr := resp.Body.Close(); closeErr != nil {
				s.logger.Debug("failed to close handshake response body", "error", closeErr)
			}
			return &knocki.ConnectionError{Message: "event stream handshake rejected: " + resp.Status, Err: err}
		}
		return &knocki.ConnectionError{Message: "dial event stream", Err: err}
	}

	s.everConnected.Store(true)
	s.setState(StateConnected)
	s.logger.Info("event stream connected")

	done := make(chan struct{})
	defer close(done)
	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.Debug("websocket close", "error", err)
		}
	}()

	// A blocked read only unwinds when the connection is closed under it.
	go func() {
		select {
		case <-ctx.Done():
			s.setState(StateClosing)
			if err := conn.Close(); err != nil {
				s.logger.Debug("websocket close on cancellation", "error", err)
			}
		case <-done:
		}
	}()

	conn.SetPingHandler(func(data string) error {
		s.logger.Debug("ping from server")
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
	})
	conn.SetPongHandler(func(string) error {
		s.logger.Debug("pong from server")
		return nil
	})

	go s.sendHeartbeats(conn, done)

	return s.readFrames(ctx, conn)
}

// sendHeartbeats pings the server on the heartbeat interval so it does
// not drop the connection as idle. A missed heartbeat surfaces as a read
// failure, which is the reconnect signal.
func (s *session) sendHeartbeats(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				s.logger.Debug("heartbeat ping failed", "error", err)
				return
			}
			s.logger.Debug("heartbeat ping sent")
		}
	}
}

func (s *session) readFrames(ctx context.Context, conn *websocket.Conn) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				s.setState(StateClosing)
				s.logger.Info("server closed event stream", "code", closeErr.Code, "reason", closeErr.Text)
				return nil
			}
			return &knocki.ConnectionError{Message: "read event frame", Err: err}
		}

		if messageType != websocket.TextMessage {
			s.logger.Debug("ignoring non-text frame", "type", messageType)
			continue
		}

		event, err := knocki.ParseEvent(data)
		if err != nil {
			// A malformed frame costs us the frame, not the connection.
			s.logger.Warn("dropping malformed event frame", "error", err)
			continue
		}

		s.logger.Debug("event received",
			"kind", event.Kind,
			"device", event.Payload.DeviceID,
			"trigger", event.Payload.Details.TriggerID,
		)
		s.registry.dispatch(ctx, event)
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jpalmerr/creditpulse/internal/store"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingPeriod   = (wsPongTimeout * 9) / 10
	wsMaxMessage   = 4096
)

// WebSocket message types.
const (
	MessageSnapshot = "snapshot"
	MessageRefetch  = "refetch"
	MessageError    = "error"
)

// Envelope wraps every WebSocket message.
type Envelope struct {
	Type      string          `json:"type"`
	Data      *store.Snapshot `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Blocking  bool            `json:"blocking,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the dashboard is served from the same origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket streams snapshots over a WebSocket. Clients may send
// {"type": "refetch"} to force a refresh; the result arrives as a snapshot.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	clientID := uuid.NewString()
	s.logger.Debug("websocket client connected", "client_id", clientID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// outbound carries replies produced by the reader; only this goroutine writes
	outbound := make(chan Envelope, 4)
	go s.readWebSocket(ctx, cancel, conn, clientID, outbound)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	write := func(env Envelope) error {
		env.Timestamp = time.Now().Unix()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(env)
	}

	current := s.store.Get()
	if err := write(Envelope{Type: MessageSnapshot, Data: &current}); err != nil {
		return
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := write(Envelope{Type: MessageSnapshot, Data: &snap}); err != nil {
				return
			}
		case env := <-outbound:
			if err := write(env); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			s.logger.Debug("websocket client disconnected", "client_id", clientID)
			return
		}
	}
}

// readWebSocket handles client messages until the connection fails, then
// cancels the connection context.
func (s *Server) readWebSocket(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, clientID string, outbound chan<- Envelope) {
	defer cancel()

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", "client_id", clientID, "error", err)
			}
			return
		}

		var msg Envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(ctx, outbound, Envelope{Type: MessageError, Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case MessageRefetch:
			go s.wsRefetch(ctx, outbound, msg.Blocking)
		default:
			s.reply(ctx, outbound, Envelope{Type: MessageError, Error: "unknown message type " + msg.Type})
		}
	}
}

// wsRefetch runs a refetch for a WebSocket client. Success shows up through
// the snapshot stream; only failures get a direct reply.
func (s *Server) wsRefetch(ctx context.Context, outbound chan<- Envelope, blocking bool) {
	if s.refresher == nil {
		s.reply(ctx, outbound, Envelope{Type: MessageError, Error: "refresh not available"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, refetchTimeout)
	defer cancel()

	var err error
	if blocking {
		err = s.refresher.RefetchBlocking(ctx)
	} else {
		err = s.refresher.Refetch(ctx)
	}
	if err != nil && ctx.Err() == nil {
		s.reply(ctx, outbound, Envelope{Type: MessageError, Error: err.Error()})
	}
}

func (s *Server) reply(ctx context.Context, outbound chan<- Envelope, env Envelope) {
	select {
	case outbound <- env:
	case <-ctx.Done():
	}
}

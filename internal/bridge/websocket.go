package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/freesat/internal/freesat"
	"github.com/muurk/freesat/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// Event types pushed on the event stream
const (
	EventPower = "power"
	EventError = "error"
)

// Event is one frame of the event stream
type Event struct {
	Type            string `json:"type"`
	Identity        string `json:"identity"`
	Timestamp       string `json:"timestamp"`
	State           string `json:"state,omitempty"`
	TransitioningTo string `json:"transitioning_to,omitempty"`
	Error           string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// handleEvents upgrades to a WebSocket and streams power changes for the
// device until the peer goes away or the bridge shuts down
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	remoteAddr := r.RemoteAddr
	s.trackConn(conn, remoteAddr)
	s.wg.Add(1)
	logging.LogWebSocketEvent(remoteAddr, id, "connected")

	defer func() {
		_ = conn.Close()
		s.untrackConn(conn)
		s.wg.Done()
		logging.LogWebSocketEvent(remoteAddr, id, "closed")
	}()

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	go readPump(conn, cancel)
	s.streamPower(ctx, conn, id)
}

// readPump consumes control frames and reports when the peer goes away.
// The stream carries no client messages; anything received is discarded.
func readPump(conn *websocket.Conn, done context.CancelFunc) {
	defer done()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

// powerWatch tracks the last state sent so only changes are pushed
type powerWatch struct {
	state   string
	target  string
	lastErr string
	sent    bool
}

// next returns the event to push for a poll result, or nil when nothing
// changed since the last push
func (p *powerWatch) next(identity string, status *freesat.PowerStatus, err error) *Event {
	now := time.Now().UTC().Format(time.RFC3339)

	if err != nil {
		msg := freesat.GetShortErrorMessage(err)
		if msg == p.lastErr {
			return nil
		}
		p.lastErr = msg
		p.sent = false
		return &Event{Type: EventError, Identity: identity, Timestamp: now, Error: msg}
	}

	p.lastErr = ""
	state, target := status.State(), status.Power.TransitioningTo
	if p.sent && state == p.state && target == p.target {
		return nil
	}
	p.state, p.target, p.sent = state, target, true
	return &Event{Type: EventPower, Identity: identity, Timestamp: now, State: state, TransitioningTo: target}
}

// streamPower is the connection's only writer: it polls the power state,
// pushes changes and keeps the connection alive with pings
func (s *Server) streamPower(ctx context.Context, conn *websocket.Conn, identity string) {
	poll := time.NewTicker(s.config.PollInterval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		poll.Stop()
		ping.Stop()
	}()

	var watch powerWatch

	check := func() bool {
		status, err := s.remote.PowerStatus(ctx, identity)
		if ctx.Err() != nil {
			return false
		}
		ev := watch.next(identity, status, err)
		if ev == nil {
			return true
		}
		data, err := json.Marshal(ev)
		if err != nil {
			logging.Error("Failed to marshal event", zap.Error(err))
			return true
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data) == nil
	}

	if !check() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bridge shutting down"))
			return
		case <-poll.C:
			if !check() {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

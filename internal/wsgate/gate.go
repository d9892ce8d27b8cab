package wsgate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/chess-arena/internal/arena"
	"github.com/kapu/chess-arena/internal/obslog"
)

// Gate upgrades client sockets and translates JSON envelopes into hub events.
// Framing stops here; the hub only ever sees typed events.
type Gate struct {
	hub       *arena.Hub
	queueSize int
}

func New(hub *arena.Hub, egressQueueSize int) *Gate {
	if egressQueueSize <= 0 {
		egressQueueSize = 32
	}
	return &Gate{hub: hub, queueSize: egressQueueSize}
}

// envelope is the inbound frame shape: {"event": "...", "data": {...}}.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type leavePayload struct {
	OpponentID string `json:"opponentId,omitempty"`
}

// ServeWS handles one client connection for its whole lifetime. Identity and
// the optional prior session id travel in the handshake query, mirroring the
// web client's socket setup.
func (g *Gate) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, idErr := parseIdentity(r.URL.Query().Get("user"))
	priorSessionID := strings.TrimSpace(r.URL.Query().Get("lastGameId"))

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	connID := uuid.NewString()

	if idErr != nil {
		wctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		_ = wsjson.Write(wctx, c, arena.Notification{Event: arena.EvError, Data: arena.ErrorPayload{
			Kind:    "invalid_identity",
			Message: "invalid user data",
		}})
		cancel()
		_ = c.Close(websocket.StatusPolicyViolation, "invalid identity")
		obslog.L().Warn("ws_identity_rejected", zap.String("conn_id", connID), zap.Error(idErr))
		return
	}

	sender := newSender(c, connID, g.queueSize)

	obslog.L().Info("ws_open",
		zap.String("conn_id", connID),
		zap.String("user_id", identity.ID),
	)
	g.hub.Connect(connID, sender, identity, priorSessionID)

	defer func() {
		g.hub.Disconnect(connID)
		sender.stop()
		_ = c.Close(websocket.StatusNormalClosure, "closed")
		obslog.L().Info("ws_close", zap.String("conn_id", connID), zap.String("user_id", identity.ID))
	}()

	ctx := r.Context()
	for {
		var env envelope
		if err := wsjson.Read(ctx, c, &env); err != nil {
			return
		}
		g.dispatch(connID, &env)
	}
}

func (g *Gate) dispatch(connID string, env *envelope) {
	switch env.Event {
	case "move":
		var req arena.MoveRequest
		if len(env.Data) > 0 {
			// a malformed body degrades to an empty request, which the hub
			// rejects as an invalid move
			_ = json.Unmarshal(env.Data, &req)
		}
		g.hub.Move(connID, req)
	case "requestState", "requestGameState":
		g.hub.RequestState(connID)
	case "getWaitingCount":
		g.hub.WaitingCount(connID)
	case "leave", "playerLeft":
		var p leavePayload
		if len(env.Data) > 0 {
			_ = json.Unmarshal(env.Data, &p)
		}
		g.hub.Leave(connID, p.OpponentID)
	case "matchCompleted":
		g.hub.MatchCompleted(connID)
	default:
		obslog.L().Debug("ws_unknown_event",
			zap.String("conn_id", connID),
			zap.String("event", env.Event),
		)
	}
}

// parseIdentity decodes the handshake user JSON. A missing or unparseable
// identity rejects the connection before any core state is created.
func parseIdentity(raw string) (arena.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return arena.Identity{}, fmt.Errorf("missing user parameter")
	}
	var id arena.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return arena.Identity{}, fmt.Errorf("parse user parameter: %w", err)
	}
	if strings.TrimSpace(id.ID) == "" {
		return arena.Identity{}, fmt.Errorf("user missing userId")
	}
	return id, nil
}

package arena

import (
	"context"
	"time"

	"github.com/kapu/chess-arena/internal/rules"
)

// Identity is assigned by the account service and is opaque to the core
// beyond equality on ID. Stats is a snapshot taken at connect time.
type Identity struct {
	ID    string        `json:"userId"`
	Name  string        `json:"username"`
	Stats StatsSnapshot `json:"stats"`
}

type StatsSnapshot struct {
	GamesPlayed int `json:"gamesPlayed,omitempty"`
	Wins        int `json:"wins,omitempty"`
	Losses      int `json:"losses,omitempty"`
	Draws       int `json:"draws,omitempty"`
}

// MoveRequest is the inbound move payload. FEN is a client-supplied resulting
// position; it is never trusted and the move is always re-validated.
type MoveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	FEN       string `json:"fen,omitempty"`
}

// Notification is one outbound event for a single connection.
type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Sender delivers notifications to one live connection. Implementations must
// not block the hub; slow consumers get dropped frames, not a stalled loop.
type Sender interface {
	Send(n Notification)
}

// Outbound event names.
const (
	EvWaiting              = "waiting"
	EvWaitingCount         = "waitingCount"
	EvSide                 = "side"
	EvOpponent             = "opponent"
	EvSessionAssigned      = "sessionAssigned"
	EvPositionUpdate       = "positionUpdate"
	EvMove                 = "move"
	EvGameOver             = "gameOver"
	EvOpponentReconnected  = "opponentReconnected"
	EvOpponentDisconnected = "opponentDisconnected"
	EvError                = "errorEvent"
)

// MovePayload is relayed to the opponent after a move is accepted.
type MovePayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	FEN       string `json:"fen"`
}

type GameOverPayload struct {
	IsCheckmate bool   `json:"isCheckmate"`
	IsDraw      bool   `json:"isDraw"`
	Winner      string `json:"winner,omitempty"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Error taxonomy. All are local and non-fatal: reported to the originating
// connection, never crashing the event loop.
var (
	ErrInvalidIdentity = errf("invalid identity")
	ErrNotInSession    = errf("not in a session")
	ErrSessionNotFound = errf("session not found")
	ErrInvalidMove     = errf("invalid move")
	ErrNotAParticipant = errf("not a participant of this session")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

func errKind(err error) string {
	switch err {
	case ErrInvalidIdentity:
		return "invalid_identity"
	case ErrNotInSession:
		return "not_in_session"
	case ErrSessionNotFound:
		return "session_not_found"
	case ErrInvalidMove:
		return "invalid_move"
	case ErrNotAParticipant:
		return "not_a_participant"
	default:
		return "server_error"
	}
}

// Result is the finished-game summary handed to the history collaborator.
type Result struct {
	SessionID string
	White     Identity
	Black     Identity
	Outcome   string // "white", "black" or "draw"
	Method    string // "checkmate", "draw" or "abandonment"
	MovesUCI  []string
	MovesSAN  []string
	StartedAt time.Time
	EndedAt   time.Time
}

// ResultSink records final results outside the core. Implementations are
// best-effort; the core never blocks on them failing.
type ResultSink interface {
	Record(ctx context.Context, r *Result)
}

// Side re-exported for callers that only import arena.
type Side = rules.Side

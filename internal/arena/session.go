package arena

import (
	"fmt"
	"time"

	"github.com/kapu/chess-arena/internal/rules"
)

type SessionStatus string

const (
	StatusActive     SessionStatus = "ACTIVE"
	StatusTerminated SessionStatus = "TERMINATED"
)

// Move is one accepted entry of the append-only move log.
type Move struct {
	From      string
	To        string
	Promotion string
	UCI       string
	SAN       string
	FEN       string // position after the move
	Side      rules.Side
	Timestamp time.Time
}

// slot is one of the two fixed seats of a session. Identity and side never
// change after creation; the connection handle is rebound on reconnect.
type slot struct {
	identity Identity
	connID   string
	side     rules.Side
}

type session struct {
	id        string
	slots     [2]*slot
	moves     []Move
	fen       string
	createdAt time.Time
	status    SessionStatus
}

// sessionID keeps the original human-traceable shape: creation time plus both
// participant ids.
func sessionID(now time.Time, a, b Identity) string {
	return fmt.Sprintf("game_%d_%s_%s", now.UnixMilli(), a.ID, b.ID)
}

func (s *session) slotByConn(connID string) *slot {
	for _, sl := range s.slots {
		if sl.connID == connID {
			return sl
		}
	}
	return nil
}

func (s *session) slotByIdentity(id string) *slot {
	for _, sl := range s.slots {
		if sl.identity.ID == id {
			return sl
		}
	}
	return nil
}

func (s *session) opponentOf(sl *slot) *slot {
	if s.slots[0] == sl {
		return s.slots[1]
	}
	return s.slots[0]
}

func (s *session) historyUCI() []string {
	out := make([]string, len(s.moves))
	for i, mv := range s.moves {
		out[i] = mv.UCI
	}
	return out
}

func (s *session) historySAN() []string {
	out := make([]string, len(s.moves))
	for i, mv := range s.moves {
		out[i] = mv.SAN
	}
	return out
}

// sideToMove follows from the move-log length: white moves on even plies.
func (s *session) sideToMove() rules.Side {
	if len(s.moves)%2 == 0 {
		return rules.SideWhite
	}
	return rules.SideBlack
}

func (s *session) white() *slot { return s.slots[0] }
func (s *session) black() *slot { return s.slots[1] }

package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Side identifies a chess side as it appears on the wire.
type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

// ErrIllegalMove is returned when a candidate move is rejected.
var ErrIllegalMove = errors.New("illegal move")

// MoveRequest is a candidate move in coordinate form. Promotion is optional
// and defaults to queen when the move requires one.
type MoveRequest struct {
	From      string
	To        string
	Promotion string
}

// Applied describes the accepted move and the position it produced.
type Applied struct {
	UCI string
	SAN string
	FEN string

	SideToMove Side

	Checkmate  bool
	Draw       bool
	WinnerSide Side
}

// Oracle is the move-legality and ending-detection boundary. Positions cross
// it as FEN strings; the move history is the source of truth.
type Oracle interface {
	InitialFEN() string
	Apply(history []string, req MoveRequest) (*Applied, error)
	Replay(history []string) (string, error)
}

// Engine implements Oracle on top of corentings/chess.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

func (e *Engine) InitialFEN() string {
	return nchess.NewGame().FEN()
}

// Apply replays the history from the start position and attempts the
// requested move. The resulting FEN is always derived here; a client-supplied
// position is never applied verbatim.
func (e *Engine) Apply(history []string, req MoveRequest) (*Applied, error) {
	game := reconstruct(history)
	if game == nil {
		return nil, fmt.Errorf("corrupt move history")
	}

	from := strings.ToLower(strings.TrimSpace(req.From))
	to := strings.ToLower(strings.TrimSpace(req.To))
	promo := strings.ToLower(strings.TrimSpace(req.Promotion))
	if len(from) != 2 || len(to) != 2 {
		return nil, ErrIllegalMove
	}

	// Plain coordinate move first, then with the promotion piece appended
	// (queen when the client omitted the choice).
	candidates := []string{from + to}
	if promo != "" {
		candidates = []string{from + to + promo, from + to}
	} else {
		candidates = append(candidates, from+to+"q")
	}

	pos := game.Position()
	notation := nchess.UCINotation{}
	var mv *nchess.Move
	var uci string
	for _, cand := range candidates {
		if m, err := notation.Decode(pos, cand); err == nil {
			mv, uci = m, cand
			break
		}
	}
	if mv == nil {
		return nil, ErrIllegalMove
	}
	if err := game.Move(mv, nil); err != nil {
		return nil, ErrIllegalMove
	}

	ap := &Applied{
		UCI:        uci,
		SAN:        nchess.AlgebraicNotation{}.Encode(pos, mv),
		FEN:        game.FEN(),
		SideToMove: sideFrom(game.Position().Turn()),
	}
	switch game.Outcome() {
	case nchess.WhiteWon:
		ap.Checkmate = true
		ap.WinnerSide = SideWhite
	case nchess.BlackWon:
		ap.Checkmate = true
		ap.WinnerSide = SideBlack
	case nchess.Draw:
		ap.Draw = true
	}
	return ap, nil
}

// Replay returns the FEN reached by replaying the history from the start
// position.
func (e *Engine) Replay(history []string) (string, error) {
	game := reconstruct(history)
	if game == nil {
		return "", fmt.Errorf("corrupt move history")
	}
	return game.FEN(), nil
}

// reconstruct always replays UCI moves from the start position. FEN is kept
// on sessions for presentation only; applying it here can double-apply moves.
func reconstruct(moves []string) *nchess.Game {
	game := nchess.NewGame()
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil
		}
	}
	return game
}

func sideFrom(c nchess.Color) Side {
	if c == nchess.White {
		return SideWhite
	}
	return SideBlack
}

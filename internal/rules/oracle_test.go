package rules

import (
    "strings"
    "testing"
)

func TestInitialFEN(t *testing.T) {
    e := NewEngine()
    fen := e.InitialFEN()
    if !strings.HasPrefix(fen, "rnbqkbnr/pppppppp/") {
        t.Fatalf("unexpected initial FEN: %q", fen)
    }
    if !strings.Contains(fen, " w ") {
        t.Fatalf("expected white to move in initial FEN: %q", fen)
    }
}

func TestApplyLegalMove(t *testing.T) {
    e := NewEngine()
    ap, err := e.Apply(nil, MoveRequest{From: "e2", To: "e4"})
    if err != nil { t.Fatalf("Apply: %v", err) }
    if ap.UCI != "e2e4" { t.Fatalf("uci = %q", ap.UCI) }
    if ap.SAN != "e4" { t.Fatalf("san = %q", ap.SAN) }
    if ap.SideToMove != SideBlack { t.Fatalf("side to move = %q", ap.SideToMove) }
    if ap.Checkmate || ap.Draw { t.Fatalf("unexpected terminal flags: %+v", ap) }
}

func TestApplyIllegalMove(t *testing.T) {
    e := NewEngine()
    if _, err := e.Apply(nil, MoveRequest{From: "d2", To: "d5"}); err != ErrIllegalMove {
        t.Fatalf("expected ErrIllegalMove, got %v", err)
    }
    // empty source square
    if _, err := e.Apply(nil, MoveRequest{From: "e5", To: "e6"}); err != ErrIllegalMove {
        t.Fatalf("expected ErrIllegalMove for empty square, got %v", err)
    }
    if _, err := e.Apply(nil, MoveRequest{From: "", To: "e4"}); err != ErrIllegalMove {
        t.Fatalf("expected ErrIllegalMove for malformed request, got %v", err)
    }
}

func TestApplyDetectsCheckmate(t *testing.T) {
    e := NewEngine()
    history := []string{"f2f3", "e7e5", "g2g4"}
    ap, err := e.Apply(history, MoveRequest{From: "d8", To: "h4"})
    if err != nil { t.Fatalf("Apply: %v", err) }
    if !ap.Checkmate { t.Fatalf("expected checkmate, got %+v", ap) }
    if ap.WinnerSide != SideBlack { t.Fatalf("winner = %q", ap.WinnerSide) }
    if ap.SAN != "Qh4#" { t.Fatalf("san = %q", ap.SAN) }
}

func TestApplyDefaultsPromotionToQueen(t *testing.T) {
    e := NewEngine()
    history := []string{"a2a4", "b7b5", "a4b5", "a7a6", "b5a6", "c7c6", "a6b7", "c6c5"}
    ap, err := e.Apply(history, MoveRequest{From: "b7", To: "a8"})
    if err != nil { t.Fatalf("Apply: %v", err) }
    if ap.UCI != "b7a8q" { t.Fatalf("expected queen promotion, uci = %q", ap.UCI) }
}

func TestReplayMatchesApply(t *testing.T) {
    e := NewEngine()
    moves := []string{"e2e4", "e7e5", "g1f3"}
    var history []string
    var lastFEN string
    for _, mv := range moves {
        ap, err := e.Apply(history, MoveRequest{From: mv[:2], To: mv[2:]})
        if err != nil { t.Fatalf("Apply %s: %v", mv, err) }
        history = append(history, ap.UCI)
        lastFEN = ap.FEN
    }
    replayed, err := e.Replay(history)
    if err != nil { t.Fatalf("Replay: %v", err) }
    if replayed != lastFEN {
        t.Fatalf("replay drift: %q vs %q", replayed, lastFEN)
    }
}

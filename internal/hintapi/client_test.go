package hintapi

import (
    "context"
    "net/http"
    "net/http/httptest"
    "sync/atomic"
    "testing"
    "time"
)

func TestBestMove(t *testing.T) {
    ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Query().Get("fen") == "" { t.Errorf("missing fen param") }
        if r.URL.Query().Get("depth") != "12" { t.Errorf("depth = %q", r.URL.Query().Get("depth")) }
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write([]byte(`{"success":true,"bestmove":"bestmove e2e4 ponder e7e5","evaluation":0.32}`))
    }))
    defer ts.Close()

    c := NewClient(ts.URL, WithTimeout(2*time.Second))
    hint, err := c.BestMove(context.Background(), "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 0)
    if err != nil { t.Fatalf("BestMove: %v", err) }
    if hint.BestMove == "" { t.Fatalf("empty best move") }
    if hint.Evaluation == nil || *hint.Evaluation != 0.32 { t.Fatalf("evaluation: %+v", hint) }
}

func TestBestMoveRetriesServerErrors(t *testing.T) {
    var calls int32
    ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if atomic.AddInt32(&calls, 1) < 3 {
            w.WriteHeader(http.StatusBadGateway)
            return
        }
        _, _ = w.Write([]byte(`{"success":true,"bestmove":"bestmove d2d4"}`))
    }))
    defer ts.Close()

    c := NewClient(ts.URL, WithRetry(3), WithTimeout(2*time.Second))
    hint, err := c.BestMove(context.Background(), "8/8/8/8/8/8/8/K6k w - - 0 1", 8)
    if err != nil { t.Fatalf("BestMove: %v", err) }
    if hint.BestMove != "bestmove d2d4" { t.Fatalf("best move = %q", hint.BestMove) }
    if n := atomic.LoadInt32(&calls); n != 3 { t.Fatalf("expected 3 attempts, got %d", n) }
}

func TestBestMoveRejectsEmptyFEN(t *testing.T) {
    c := NewClient("http://localhost:1")
    if _, err := c.BestMove(context.Background(), "  ", 10); err == nil {
        t.Fatalf("expected error for empty fen")
    }
}

func TestBestMoveFailureResponse(t *testing.T) {
    ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        _, _ = w.Write([]byte(`{"success":false}`))
    }))
    defer ts.Close()
    c := NewClient(ts.URL)
    if _, err := c.BestMove(context.Background(), "8/8/8/8/8/8/8/K6k w - - 0 1", 8); err == nil {
        t.Fatalf("expected error for unsuccessful response")
    }
}

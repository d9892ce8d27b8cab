package history

import (
    "context"
    "fmt"
    "strings"
    "testing"
    "time"

    miniredis "github.com/alicebob/miniredis/v2"

    "github.com/kapu/chess-arena/internal/arena"
)

func newTestCache(t *testing.T) *RecentCache {
    t.Helper()
    mr, err := miniredis.Run()
    if err != nil { t.Fatalf("miniredis: %v", err) }
    t.Cleanup(func() { mr.Close() })
    c, err := NewRecentCache(fmt.Sprintf("redis://%s/0", mr.Addr()))
    if err != nil { t.Fatalf("NewRecentCache: %v", err) }
    return c
}

func sampleResult(i int) *arena.Result {
    return &arena.Result{
        SessionID: fmt.Sprintf("game_%d_a_b", i),
        White:     arena.Identity{ID: "a", Name: "Alice"},
        Black:     arena.Identity{ID: "b", Name: "Bob"},
        Outcome:   "white",
        Method:    "checkmate",
        MovesUCI:  []string{"e2e4", "f7f6", "d2d4", "g7g5", "d1h5"},
        MovesSAN:  []string{"e4", "f6", "d4", "g5", "Qh5#"},
        StartedAt: time.Now().Add(-time.Minute),
        EndedAt:   time.Now(),
    }
}

func TestPushAndRecent(t *testing.T) {
    c := newTestCache(t)
    ctx := context.Background()

    for i := 0; i < 3; i++ {
        if err := c.Push(ctx, sampleResult(i)); err != nil { t.Fatalf("Push: %v", err) }
    }
    entries, err := c.Recent(ctx, 10)
    if err != nil { t.Fatalf("Recent: %v", err) }
    if len(entries) != 3 { t.Fatalf("expected 3 entries, got %d", len(entries)) }
    // newest first
    if entries[0].SessionID != "game_2_a_b" { t.Fatalf("order: %+v", entries[0]) }
    if entries[0].Plies != 5 || entries[0].Outcome != "white" {
        t.Fatalf("entry fields: %+v", entries[0])
    }
}

func TestRecentIsBounded(t *testing.T) {
    c := newTestCache(t)
    ctx := context.Background()
    for i := 0; i < recentLimit+20; i++ {
        if err := c.Push(ctx, sampleResult(i)); err != nil { t.Fatalf("Push: %v", err) }
    }
    entries, err := c.Recent(ctx, 0)
    if err != nil { t.Fatalf("Recent: %v", err) }
    if len(entries) != recentLimit {
        t.Fatalf("expected trim to %d, got %d", recentLimit, len(entries))
    }
}

func TestRecentEmptyCache(t *testing.T) {
    c := newTestCache(t)
    entries, err := c.Recent(context.Background(), 5)
    if err != nil { t.Fatalf("Recent: %v", err) }
    if len(entries) != 0 { t.Fatalf("expected empty, got %d", len(entries)) }
}

func TestPGNBuild(t *testing.T) {
    r := sampleResult(0)
    pgn := buildPGN(r, mapResultToPGN(r.Outcome))
    for _, want := range []string{"[White \"Alice\"]", "[Black \"Bob\"]", "1. e4 f6", "3. Qh5#", "1-0"} {
        if !strings.Contains(pgn, want) { t.Fatalf("pgn missing %q:\n%s", want, pgn) }
    }
}

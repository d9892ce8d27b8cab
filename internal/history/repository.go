package history

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"
    "strings"
    "time"

    _ "github.com/lib/pq"

    "github.com/kapu/chess-arena/internal/arena"
)

// Repository persists final game results. The arena core never talks to the
// database directly; it hands results over at the sink boundary.
type Repository struct {
    db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
    if strings.TrimSpace(databaseURL) == "" {
        return nil, fmt.Errorf("DATABASE_URL is required")
    }
    db, err := sql.Open("postgres", databaseURL)
    if err != nil {
        return nil, err
    }
    db.SetMaxOpenConns(16)
    db.SetMaxIdleConns(8)
    db.SetConnMaxLifetime(30 * time.Minute)
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        return nil, err
    }
    return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
    if r == nil || r.db == nil { return nil }
    return r.db.Close()
}

// SaveResult upserts a final game result keyed by session id.
func (r *Repository) SaveResult(ctx context.Context, res *arena.Result) error {
    if r == nil || r.db == nil || res == nil {
        return nil
    }

    pgnResult := mapResultToPGN(res.Outcome)
    pgn := buildPGN(res, pgnResult)

    movesUCIRaw, _ := json.Marshal(res.MovesUCI)
    movesSANRaw, _ := json.Marshal(res.MovesSAN)
    duration := res.EndedAt.Sub(res.StartedAt).Milliseconds()
    if duration < 0 { duration = 0 }

    q := `INSERT INTO arena_games (
        session_id, white_id, white_name, black_id, black_name,
        result, result_method, moves_uci, moves_san, pgn,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
      ) ON CONFLICT (session_id) DO UPDATE SET
        white_id=EXCLUDED.white_id,
        white_name=EXCLUDED.white_name,
        black_id=EXCLUDED.black_id,
        black_name=EXCLUDED.black_name,
        result=EXCLUDED.result,
        result_method=EXCLUDED.result_method,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

    _, err := r.db.ExecContext(ctx, q,
        res.SessionID,
        res.White.ID, res.White.Name,
        res.Black.ID, res.Black.Name,
        strings.TrimSpace(res.Outcome), strings.TrimSpace(res.Method),
        string(movesUCIRaw), string(movesSANRaw), pgn,
        res.StartedAt, res.EndedAt, duration,
    )
    return err
}

func mapResultToPGN(result string) string {
    switch strings.ToLower(strings.TrimSpace(result)) {
    case "white":
        return "1-0"
    case "black":
        return "0-1"
    case "draw":
        return "1/2-1/2"
    default:
        return "*"
    }
}

func buildPGN(res *arena.Result, pgnResult string) string {
    if res == nil {
        return ""
    }
    var b strings.Builder
    date := res.EndedAt
    if date.IsZero() {
        date = time.Now()
    }
    b.WriteString("[Event \"Arena\"]\n")
    b.WriteString("[Site \"chess-arena\"]\n")
    b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
    b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(res.White.Name)))
    b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(res.Black.Name)))
    if strings.TrimSpace(res.Method) != "" {
        b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(res.Method))))
    }
    b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

    for i := 0; i < len(res.MovesSAN); i += 2 {
        turn := (i / 2) + 1
        b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(res.MovesSAN[i])))
        if i+1 < len(res.MovesSAN) {
            b.WriteString(" ")
            b.WriteString(strings.TrimSpace(res.MovesSAN[i+1]))
        }
        b.WriteString(" ")
    }
    if pgnResult != "" {
        b.WriteString(pgnResult)
    }
    return b.String()
}

func sanitizePGN(s string) string {
    s = strings.ReplaceAll(s, "\\", " ")
    s = strings.ReplaceAll(s, "\"", "'")
    return strings.TrimSpace(s)
}

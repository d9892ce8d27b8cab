package wsgate

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "net/url"
    "strings"
    "testing"
    "time"

    "nhooyr.io/websocket"
    "nhooyr.io/websocket/wsjson"

    "github.com/kapu/chess-arena/internal/arena"
    "github.com/kapu/chess-arena/internal/rules"
)

func startServer(t *testing.T) *httptest.Server {
    t.Helper()
    h := arena.NewHub(arena.Config{}, rules.NewEngine(), nil)
    ctx, cancel := context.WithCancel(context.Background())
    t.Cleanup(cancel)
    go h.Run(ctx)
    ts := httptest.NewServer(NewRouter(New(h, 32), nil, nil))
    t.Cleanup(ts.Close)
    return ts
}

func dial(t *testing.T, ts *httptest.Server, userJSON, lastGameID string) *websocket.Conn {
    t.Helper()
    q := url.Values{}
    if userJSON != "" {
        q.Set("user", userJSON)
    }
    if lastGameID != "" {
        q.Set("lastGameId", lastGameID)
    }
    wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + q.Encode()
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    c, _, err := websocket.Dial(ctx, wsURL, nil)
    if err != nil { t.Fatalf("dial: %v", err) }
    t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "test done") })
    return c
}

type rxMsg struct {
    Event string          `json:"event"`
    Data  json.RawMessage `json:"data"`
}

func readUntil(t *testing.T, c *websocket.Conn, event string) json.RawMessage {
    t.Helper()
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    for {
        var m rxMsg
        if err := wsjson.Read(ctx, c, &m); err != nil {
            t.Fatalf("read waiting for %q: %v", event, err)
        }
        if m.Event == event {
            return m.Data
        }
    }
}

func TestPairingAndMoveRelayOverWebsocket(t *testing.T) {
    ts := startServer(t)

    c1 := dial(t, ts, `{"userId":"a","username":"Alice"}`, "")
    if data := readUntil(t, c1, "waiting"); string(data) != "true" {
        t.Fatalf("waiting payload: %s", data)
    }

    c2 := dial(t, ts, `{"userId":"b","username":"Bob"}`, "")

    var side1 string
    _ = json.Unmarshal(readUntil(t, c1, "side"), &side1)
    if side1 != "white" { t.Fatalf("first arrival side = %q", side1) }
    var sid string
    _ = json.Unmarshal(readUntil(t, c1, "sessionAssigned"), &sid)
    if sid == "" { t.Fatalf("empty session id") }
    readUntil(t, c2, "sessionAssigned")

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := wsjson.Write(ctx, c1, map[string]any{
        "event": "move",
        "data":  map[string]string{"from": "e2", "to": "e4"},
    }); err != nil {
        t.Fatalf("write move: %v", err)
    }

    var mp arena.MovePayload
    if err := json.Unmarshal(readUntil(t, c2, "move"), &mp); err != nil {
        t.Fatalf("decode move: %v", err)
    }
    if mp.From != "e2" || mp.To != "e4" || mp.FEN == "" {
        t.Fatalf("relayed move: %+v", mp)
    }
}

func TestHandshakeRejectsBadIdentity(t *testing.T) {
    ts := startServer(t)
    c := dial(t, ts, `not json`, "")
    var p arena.ErrorPayload
    if err := json.Unmarshal(readUntil(t, c, "errorEvent"), &p); err != nil {
        t.Fatalf("decode error payload: %v", err)
    }
    if p.Kind != "invalid_identity" { t.Fatalf("kind = %q", p.Kind) }
}

func TestHealthEndpoint(t *testing.T) {
    ts := startServer(t)
    resp, err := http.Get(ts.URL + "/health")
    if err != nil { t.Fatalf("GET /health: %v", err) }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK { t.Fatalf("status = %d", resp.StatusCode) }
    var body map[string]any
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil { t.Fatalf("decode: %v", err) }
    if body["status"] != "ok" { t.Fatalf("body: %+v", body) }
}

func TestHintEndpointUnconfigured(t *testing.T) {
    ts := startServer(t)
    resp, err := http.Get(ts.URL + "/stockfish?fen=x&depth=5")
    if err != nil { t.Fatalf("GET /stockfish: %v", err) }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusServiceUnavailable {
        t.Fatalf("status = %d", resp.StatusCode)
    }
}

func TestParseIdentity(t *testing.T) {
    id, err := parseIdentity(`{"userId":"u1","username":"Neo","stats":{"wins":3}}`)
    if err != nil { t.Fatalf("parseIdentity: %v", err) }
    if id.ID != "u1" || id.Name != "Neo" || id.Stats.Wins != 3 {
        t.Fatalf("identity: %+v", id)
    }
    if _, err := parseIdentity(""); err == nil { t.Fatalf("expected error for empty user") }
    if _, err := parseIdentity(`{"username":"NoID"}`); err == nil {
        t.Fatalf("expected error for missing userId")
    }
    if _, err := parseIdentity(`{{`); err == nil { t.Fatalf("expected error for bad json") }
}

package history

import (
    "context"
    "encoding/json"
    "fmt"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/kapu/chess-arena/internal/arena"
)

const (
    keyRecent   = "arena:recent"
    recentLimit = 50
    ttlRecent   = 24 * time.Hour
)

// RecentEntry is the trimmed result shape served to lobby feeds.
type RecentEntry struct {
    SessionID string    `json:"session_id"`
    WhiteName string    `json:"white_name"`
    BlackName string    `json:"black_name"`
    Outcome   string    `json:"outcome"`
    Method    string    `json:"method"`
    Plies     int       `json:"plies"`
    EndedAt   time.Time `json:"ended_at"`
}

// RecentCache keeps a bounded list of the latest finished games in Redis.
type RecentCache struct {
    rdb *redis.Client
}

func NewRecentCache(redisURL string) (*RecentCache, error) {
    if strings.TrimSpace(redisURL) == "" {
        return nil, fmt.Errorf("REDIS_URL required for recent cache")
    }
    opts, err := parseRedisURL(redisURL)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opts)
    if err := rdb.Ping(context.Background()).Err(); err != nil {
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return &RecentCache{rdb: rdb}, nil
}

func (c *RecentCache) Close() error {
    if c == nil || c.rdb == nil { return nil }
    return c.rdb.Close()
}

// Push prepends the result and trims the list to its bound.
func (c *RecentCache) Push(ctx context.Context, r *arena.Result) error {
    if c == nil || c.rdb == nil || r == nil { return nil }
    entry := RecentEntry{
        SessionID: r.SessionID,
        WhiteName: r.White.Name,
        BlackName: r.Black.Name,
        Outcome:   r.Outcome,
        Method:    r.Method,
        Plies:     len(r.MovesUCI),
        EndedAt:   r.EndedAt,
    }
    raw, err := json.Marshal(&entry)
    if err != nil { return err }
    pipe := c.rdb.TxPipeline()
    pipe.LPush(ctx, keyRecent, raw)
    pipe.LTrim(ctx, keyRecent, 0, recentLimit-1)
    pipe.Expire(ctx, keyRecent, ttlRecent)
    _, err = pipe.Exec(ctx)
    return err
}

// Recent returns up to limit newest entries, newest first.
func (c *RecentCache) Recent(ctx context.Context, limit int) ([]*RecentEntry, error) {
    if c == nil || c.rdb == nil { return nil, nil }
    if limit <= 0 || limit > recentLimit {
        limit = recentLimit
    }
    raws, err := c.rdb.LRange(ctx, keyRecent, 0, int64(limit)-1).Result()
    if err != nil { return nil, err }
    out := make([]*RecentEntry, 0, len(raws))
    for _, raw := range raws {
        var e RecentEntry
        if jerr := json.Unmarshal([]byte(raw), &e); jerr != nil { continue }
        out = append(out, &e)
    }
    return out, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
    u, err := url.Parse(raw)
    if err != nil { return nil, err }
    if u.Scheme != "redis" && u.Scheme != "rediss" {
        return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
    }
    db := 0
    if p := strings.TrimPrefix(u.Path, "/"); p != "" {
        if n, err := strconv.Atoi(p); err == nil { db = n }
    }
    pass, _ := u.User.Password()
    return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

package history

import (
    "context"
    "time"

    "go.uber.org/zap"

    "github.com/kapu/chess-arena/internal/arena"
    "github.com/kapu/chess-arena/internal/obslog"
)

// Sink fans a finished-game result out to the database and the recent-games
// cache. Both backends are optional and failures are logged, never surfaced
// back into the core.
type Sink struct {
    repo  *Repository
    cache *RecentCache
}

func NewSink(repo *Repository, cache *RecentCache) *Sink {
    return &Sink{repo: repo, cache: cache}
}

func (s *Sink) Record(ctx context.Context, r *arena.Result) {
    if s == nil || r == nil {
        return
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()

    if s.repo != nil {
        if err := s.repo.SaveResult(ctx, r); err != nil {
            obslog.L().Error("result_persist_error",
                zap.String("session_id", r.SessionID),
                zap.Error(err),
            )
        }
    }
    if s.cache != nil {
        if err := s.cache.Push(ctx, r); err != nil {
            obslog.L().Warn("recent_cache_error",
                zap.String("session_id", r.SessionID),
                zap.Error(err),
            )
        }
    }
    obslog.L().Info("result_recorded",
        zap.String("session_id", r.SessionID),
        zap.String("outcome", r.Outcome),
        zap.String("method", r.Method),
    )
}

package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "github.com/kapu/chess-arena/internal/arena"
    appcfg "github.com/kapu/chess-arena/internal/config"
    "github.com/kapu/chess-arena/internal/hintapi"
    "github.com/kapu/chess-arena/internal/history"
    "github.com/kapu/chess-arena/internal/obslog"
    "github.com/kapu/chess-arena/internal/rules"
    "github.com/kapu/chess-arena/internal/wsgate"
)

func main() {
    cfg, err := appcfg.Load()
    if err != nil {
        log.Fatalf("config error: %v", err)
    }
    if err := obslog.InitFromEnv(); err != nil {
        log.Fatalf("log init error: %v", err)
    }

    var repo *history.Repository
    if cfg.DatabaseURL != "" {
        repo, err = history.NewRepository(cfg.DatabaseURL)
        if err != nil {
            log.Fatalf("history repo init error: %v", err)
        }
    }
    var cache *history.RecentCache
    if cfg.RedisURL != "" {
        cache, err = history.NewRecentCache(cfg.RedisURL)
        if err != nil {
            log.Fatalf("recent cache init error: %v", err)
        }
    }

    var sink arena.ResultSink
    if repo != nil || cache != nil {
        sink = history.NewSink(repo, cache)
    }

    hub := arena.NewHub(arena.Config{
        GraceWindow:   cfg.GraceWindow,
        ViewingWindow: cfg.ViewingWindow,
        MaxSessionAge: cfg.MaxSessionAge,
        ReapInterval:  cfg.ReapInterval,
        DiagInterval:  cfg.DiagInterval,
    }, rules.NewEngine(), sink)

    ctx, cancel := context.WithCancel(context.Background())
    go hub.Run(ctx)

    var hints *hintapi.Client
    if cfg.HintAPIURL != "" {
        hints = hintapi.NewClient(cfg.HintAPIURL)
    }

    gate := wsgate.New(hub, cfg.EgressQueueSize)
    srv := &http.Server{
        Addr:    cfg.ListenAddr,
        Handler: wsgate.NewRouter(gate, hints, cache),
    }

    go func() {
        obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            obslog.L().Fatal("server_error", zap.Error(err))
        }
    }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
    <-sigCh
    obslog.L().Info("server_shutdown")

    sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
    _ = srv.Shutdown(sctx)
    scancel()

    cancel()
    if cache != nil {
        _ = cache.Close()
    }
    if repo != nil {
        _ = repo.Close()
    }
}

package wsgate

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/chess-arena/internal/hintapi"
	"github.com/kapu/chess-arena/internal/history"
	"github.com/kapu/chess-arena/internal/obslog"
)

// NewRouter assembles the HTTP surface: the websocket endpoint plus the small
// side routes the original server exposed. hints and recent may be nil when
// the corresponding collaborator is not configured.
func NewRouter(g *Gate, hints *hintapi.Client, recent *history.RecentCache) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.ServeWS)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stockfish", hintHandler(hints))
	mux.HandleFunc("/recent", recentHandler(recent))
	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// hintHandler proxies the remote engine for a best-move hint.
func hintHandler(hints *hintapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hints == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "hints not configured"})
			return
		}
		fen := r.URL.Query().Get("fen")
		depth, _ := strconv.Atoi(r.URL.Query().Get("depth"))
		hint, err := hints.BestMove(r.Context(), fen, depth)
		if err != nil {
			obslog.L().Warn("hint_error", zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"bestMove": hint.BestMove})
	}
}

func recentHandler(recent *history.RecentCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if recent == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "recent feed not configured"})
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := recent.Recent(r.Context(), limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

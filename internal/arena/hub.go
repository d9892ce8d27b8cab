package arena

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/chess-arena/internal/obslog"
	"github.com/kapu/chess-arena/internal/rules"
)

type Config struct {
	GraceWindow   time.Duration
	ViewingWindow time.Duration
	MaxSessionAge time.Duration
	ReapInterval  time.Duration
	DiagInterval  time.Duration
}

type task struct {
	connID string
	fn     func()
}

// Hub owns the waiting queue, the connection registry and the session store.
// All mutation happens on the single goroutine running Run; inbound events
// and timer callbacks are posted to it as closures, which preserves per
// connection ordering and needs no locks on the shared collections.
type Hub struct {
	cfg    Config
	oracle rules.Oracle
	sink   ResultSink

	tasks chan task
	done  chan struct{}

	reg   *registry
	queue *waitingQueue
	store *sessionStore
}

func NewHub(cfg Config, oracle rules.Oracle, sink ResultSink) *Hub {
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 30 * time.Second
	}
	if cfg.ViewingWindow <= 0 {
		cfg.ViewingWindow = 60 * time.Second
	}
	if cfg.MaxSessionAge <= 0 {
		cfg.MaxSessionAge = 3 * time.Hour
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = 15 * time.Minute
	}
	if cfg.DiagInterval <= 0 {
		cfg.DiagInterval = 60 * time.Second
	}
	return &Hub{
		cfg:    cfg,
		oracle: oracle,
		sink:   sink,
		tasks:  make(chan task, 256),
		done:   make(chan struct{}),
		reg:    newRegistry(),
		queue:  newWaitingQueue(),
		store:  newSessionStore(),
	}
}

// Run processes events until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	reap := time.NewTicker(h.cfg.ReapInterval)
	defer reap.Stop()
	diag := time.NewTicker(h.cfg.DiagInterval)
	defer diag.Stop()

	obslog.L().Info("hub_start",
		zap.Duration("grace_window", h.cfg.GraceWindow),
		zap.Duration("viewing_window", h.cfg.ViewingWindow),
		zap.Duration("max_session_age", h.cfg.MaxSessionAge),
	)
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			obslog.L().Info("hub_stop")
			return
		case t := <-h.tasks:
			h.dispatch(t)
		case <-reap.C:
			h.dispatch(task{fn: h.reapExpired})
		case <-diag.C:
			h.dispatch(task{fn: h.logState})
		}
	}
}

// dispatch runs one posted task. A panic while handling a single event is
// contained here: it is logged, the originating connection gets a generic
// server error, and the loop keeps serving other sessions.
func (h *Hub) dispatch(t task) {
	defer func() {
		if r := recover(); r != nil {
			obslog.L().Error("event_panic",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			if t.connID != "" {
				h.sendErr(t.connID, errf("internal server error"))
			}
		}
	}()
	t.fn()
}

func (h *Hub) post(connID string, fn func()) {
	select {
	case h.tasks <- task{connID: connID, fn: fn}:
	case <-h.done:
	}
}

// later schedules a deferred callback that re-enters the event loop. There is
// no cancellation: stale callbacks re-validate live state at fire time.
func (h *Hub) later(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { h.post("", fn) })
}

// Inbound events. Safe to call from any goroutine.

func (h *Hub) Connect(connID string, sender Sender, identity Identity, priorSessionID string) {
	h.post(connID, func() { h.handleConnect(connID, sender, identity, priorSessionID) })
}

func (h *Hub) Move(connID string, req MoveRequest) {
	h.post(connID, func() { h.handleMove(connID, req) })
}

func (h *Hub) RequestState(connID string) {
	h.post(connID, func() { h.handleRequestState(connID) })
}

func (h *Hub) WaitingCount(connID string) {
	h.post(connID, func() { h.send(connID, EvWaitingCount, h.queue.size()) })
}

func (h *Hub) Leave(connID, opponentID string) {
	h.post(connID, func() { h.handleLeave(connID, opponentID) })
}

func (h *Hub) MatchCompleted(connID string) {
	h.post(connID, func() { h.handleMatchCompleted(connID) })
}

func (h *Hub) Disconnect(connID string) {
	h.post(connID, func() { h.handleDisconnect(connID) })
}

// Handlers. Only ever invoked from the event loop.

func (h *Hub) handleConnect(connID string, sender Sender, identity Identity, priorSessionID string) {
	if strings.TrimSpace(identity.ID) == "" {
		if sender != nil {
			sender.Send(Notification{Event: EvError, Data: ErrorPayload{
				Kind:    errKind(ErrInvalidIdentity),
				Message: ErrInvalidIdentity.Error(),
			}})
		}
		obslog.L().Warn("connect_rejected", zap.String("conn_id", connID))
		return
	}
	c := h.reg.attach(connID, identity, sender)

	if s := h.classify(identity, priorSessionID); s != nil {
		_ = h.reconnectSession(s, c)
		return
	}

	h.queue.enqueue(identity, connID, time.Now())
	h.send(connID, EvWaiting, true)
	h.broadcastWaitingCount()
	obslog.L().Info("queue_join",
		zap.String("conn_id", connID),
		zap.String("user_id", identity.ID),
		zap.Int("waiting", h.queue.size()),
	)
	h.pairWaiting()
}

// classify prefers the client-supplied prior session id when the identity is
// actually seated in it, then falls back to the identity index.
func (h *Hub) classify(identity Identity, priorSessionID string) *session {
	if priorSessionID != "" {
		if s := h.store.get(priorSessionID); s != nil && s.slotByIdentity(identity.ID) != nil {
			return s
		}
	}
	return h.store.findByIdentity(identity.ID)
}

// reconnectSession rebinds the identity's slot to the new connection handle
// and replays the session state to it. The move log is untouched.
func (h *Hub) reconnectSession(s *session, c *conn) error {
	sl := s.slotByIdentity(c.identity.ID)
	if sl == nil {
		h.sendErr(c.id, ErrNotAParticipant)
		return ErrNotAParticipant
	}
	sl.connID = c.id
	c.sessionID = s.id
	h.queue.removeByIdentity(c.identity.ID)

	opp := s.opponentOf(sl)
	h.send(c.id, EvSide, string(sl.side))
	h.send(c.id, EvOpponent, opp.identity)
	h.send(c.id, EvWaiting, false)
	h.send(c.id, EvSessionAssigned, s.id)
	h.send(c.id, EvPositionUpdate, s.fen)
	h.send(opp.connID, EvOpponentReconnected, c.identity)
	obslog.L().Info("session_rejoin",
		zap.String("session_id", s.id),
		zap.String("user_id", c.identity.ID),
		zap.String("conn_id", c.id),
	)
	return nil
}

func (h *Hub) pairWaiting() {
	paired := false
	for {
		a, b, ok := h.queue.takePair()
		if !ok {
			break
		}
		h.createSession(a, b)
		paired = true
	}
	if paired {
		h.broadcastWaitingCount()
	}
}

// createSession seats the two earliest waiters. The first-drawn entry gets
// white.
func (h *Hub) createSession(a, b *waitingEntry) {
	now := time.Now()
	s := &session{
		id:        sessionID(now, a.identity, b.identity),
		fen:       h.oracle.InitialFEN(),
		createdAt: now,
		status:    StatusActive,
	}
	s.slots[0] = &slot{identity: a.identity, connID: a.connID, side: rules.SideWhite}
	s.slots[1] = &slot{identity: b.identity, connID: b.connID, side: rules.SideBlack}
	h.store.put(s)

	for _, sl := range s.slots {
		if c := h.reg.get(sl.connID); c != nil {
			c.sessionID = s.id
		}
		opp := s.opponentOf(sl)
		h.send(sl.connID, EvSide, string(sl.side))
		h.send(sl.connID, EvOpponent, opp.identity)
		h.send(sl.connID, EvSessionAssigned, s.id)
		h.send(sl.connID, EvWaiting, false)
		h.send(sl.connID, EvPositionUpdate, s.fen)
	}
	obslog.L().Info("session_create",
		zap.String("session_id", s.id),
		zap.String("white_id", a.identity.ID),
		zap.String("black_id", b.identity.ID),
	)
}

func (h *Hub) handleMove(connID string, req MoveRequest) {
	c := h.reg.get(connID)
	if c == nil || c.sessionID == "" {
		h.sendErr(connID, ErrNotInSession)
		return
	}
	s := h.store.get(c.sessionID)
	if s == nil {
		c.sessionID = ""
		h.sendErr(connID, ErrSessionNotFound)
		return
	}
	sl := s.slotByConn(connID)
	if sl == nil {
		h.sendErr(connID, ErrNotInSession)
		return
	}
	if s.status != StatusActive {
		h.sendErr(connID, ErrInvalidMove)
		return
	}
	if strings.TrimSpace(req.From) == "" || strings.TrimSpace(req.To) == "" {
		h.sendErr(connID, ErrInvalidMove)
		return
	}
	if sl.side != s.sideToMove() {
		h.sendErr(connID, ErrInvalidMove)
		return
	}

	// A client-supplied req.FEN is deliberately ignored: the oracle re-derives
	// the resulting position from the validated move log.
	ap, err := h.oracle.Apply(s.historyUCI(), rules.MoveRequest{
		From:      req.From,
		To:        req.To,
		Promotion: req.Promotion,
	})
	if err != nil {
		obslog.L().Warn("move_rejected",
			zap.String("session_id", s.id),
			zap.String("user_id", sl.identity.ID),
			zap.String("from", req.From),
			zap.String("to", req.To),
		)
		h.sendErr(connID, ErrInvalidMove)
		return
	}

	s.moves = append(s.moves, Move{
		From:      req.From,
		To:        req.To,
		Promotion: req.Promotion,
		UCI:       ap.UCI,
		SAN:       ap.SAN,
		FEN:       ap.FEN,
		Side:      sl.side,
		Timestamp: time.Now(),
	})
	s.fen = ap.FEN

	opp := s.opponentOf(sl)
	h.send(opp.connID, EvMove, MovePayload{
		From:      req.From,
		To:        req.To,
		Promotion: req.Promotion,
		FEN:       ap.FEN,
	})
	obslog.L().Info("session_move",
		zap.String("session_id", s.id),
		zap.String("user_id", sl.identity.ID),
		zap.String("uci", ap.UCI),
		zap.Int("ply", len(s.moves)),
	)

	if ap.Checkmate || ap.Draw {
		h.finishSession(s, ap)
	}
}

// finishSession marks the session terminated, notifies both slots and keeps
// the final position visible for the viewing window before deletion.
func (h *Hub) finishSession(s *session, ap *rules.Applied) {
	winner := ""
	outcome := "draw"
	method := "draw"
	if ap.Checkmate {
		winner = string(ap.WinnerSide)
		outcome = winner
		method = "checkmate"
	}
	payload := GameOverPayload{IsCheckmate: ap.Checkmate, IsDraw: ap.Draw, Winner: winner}
	for _, sl := range s.slots {
		h.send(sl.connID, EvGameOver, payload)
	}
	s.status = StatusTerminated
	h.record(s, outcome, method)
	obslog.L().Info("session_finish",
		zap.String("session_id", s.id),
		zap.String("outcome", outcome),
		zap.String("method", method),
	)

	sid := s.id
	h.later(h.cfg.ViewingWindow, func() {
		if h.store.remove(sid) {
			obslog.L().Info("session_expire", zap.String("session_id", sid), zap.String("reason", "viewing_window"))
		}
	})
}

func (h *Hub) handleRequestState(connID string) {
	c := h.reg.get(connID)
	if c == nil || c.sessionID == "" {
		h.sendErr(connID, ErrNotInSession)
		return
	}
	s := h.store.get(c.sessionID)
	if s == nil {
		c.sessionID = ""
		h.sendErr(connID, ErrSessionNotFound)
		return
	}
	h.send(connID, EvPositionUpdate, s.fen)
}

// handleLeave tears a session down immediately, bypassing the grace window.
func (h *Hub) handleLeave(connID, opponentID string) {
	c := h.reg.get(connID)
	if c == nil {
		return
	}
	if c.sessionID != "" {
		if s := h.store.get(c.sessionID); s != nil {
			if sl := s.slotByConn(connID); sl != nil {
				opp := s.opponentOf(sl)
				h.send(opp.connID, EvOpponentDisconnected, sl.identity)
				if s.status == StatusActive {
					h.record(s, string(opp.side), "abandonment")
				}
			}
			h.store.remove(s.id)
			obslog.L().Info("session_leave",
				zap.String("session_id", s.id),
				zap.String("user_id", c.identity.ID),
			)
		}
		c.sessionID = ""
		return
	}
	// Not seated: drop any waiting entry and honor an explicitly named
	// opponent, which covers clients whose session was already deleted.
	if h.queue.removeByConn(connID) {
		h.broadcastWaitingCount()
	}
	if opponentID != "" {
		if oc := h.reg.findByIdentity(opponentID); oc != nil {
			h.send(oc.id, EvOpponentDisconnected, c.identity)
		}
	}
}

// handleMatchCompleted deletes an already-terminated session ahead of the
// viewing window on explicit client acknowledgement.
func (h *Hub) handleMatchCompleted(connID string) {
	c := h.reg.get(connID)
	if c == nil || c.sessionID == "" {
		return
	}
	if h.store.remove(c.sessionID) {
		obslog.L().Info("session_complete_ack",
			zap.String("session_id", c.sessionID),
			zap.String("user_id", c.identity.ID),
		)
	}
	c.sessionID = ""
}

func (h *Hub) handleDisconnect(connID string) {
	c := h.reg.detach(connID)
	if c == nil {
		return
	}
	if h.queue.removeByConn(connID) {
		h.broadcastWaitingCount()
	}
	if c.sessionID == "" {
		return
	}
	sid := c.sessionID
	obslog.L().Info("grace_start",
		zap.String("session_id", sid),
		zap.String("user_id", c.identity.ID),
		zap.String("conn_id", connID),
	)
	h.later(h.cfg.GraceWindow, func() { h.terminateByDisconnect(sid, connID) })
}

// terminateByDisconnect fires when a grace window elapses. The slot still
// holding the departed handle means no reconnection happened in the interval;
// a rebound handle or an already-removed session makes this a no-op.
func (h *Hub) terminateByDisconnect(sessionID, departedConnID string) {
	s := h.store.get(sessionID)
	if s == nil {
		return
	}
	sl := s.slotByConn(departedConnID)
	if sl == nil {
		return
	}
	opp := s.opponentOf(sl)
	h.send(opp.connID, EvOpponentDisconnected, sl.identity)
	if s.status == StatusActive {
		h.record(s, string(opp.side), "abandonment")
	}
	h.store.remove(sessionID)
	obslog.L().Info("session_abandoned",
		zap.String("session_id", sessionID),
		zap.String("user_id", sl.identity.ID),
	)
}

// reapExpired is the age backstop for sessions that never reached a terminal
// or disconnect-driven cleanup.
func (h *Hub) reapExpired() {
	now := time.Now()
	for _, s := range h.store.all() {
		if now.Sub(s.createdAt) > h.cfg.MaxSessionAge {
			h.store.remove(s.id)
			obslog.L().Info("session_reaped",
				zap.String("session_id", s.id),
				zap.Duration("age", now.Sub(s.createdAt)),
			)
		}
	}
}

func (h *Hub) logState() {
	obslog.L().Info("server_state",
		zap.Int("waiting", h.queue.size()),
		zap.Int("sessions", h.store.size()),
		zap.Int("connections", h.reg.size()),
	)
}

func (h *Hub) record(s *session, outcome, method string) {
	if h.sink == nil {
		return
	}
	r := &Result{
		SessionID: s.id,
		White:     s.white().identity,
		Black:     s.black().identity,
		Outcome:   outcome,
		Method:    method,
		MovesUCI:  s.historyUCI(),
		MovesSAN:  s.historySAN(),
		StartedAt: s.createdAt,
		EndedAt:   time.Now(),
	}
	// Sink I/O must not stall the event loop.
	go h.sink.Record(context.Background(), r)
}

func (h *Hub) broadcastWaitingCount() {
	n := h.queue.size()
	for _, connID := range h.queue.connIDs() {
		h.send(connID, EvWaitingCount, n)
	}
}

func (h *Hub) send(connID, event string, data any) {
	c := h.reg.get(connID)
	if c == nil || c.sender == nil {
		return
	}
	c.sender.Send(Notification{Event: event, Data: data})
}

func (h *Hub) sendErr(connID string, err error) {
	h.send(connID, EvError, ErrorPayload{Kind: errKind(err), Message: err.Error()})
}

// Stats is a synchronous snapshot for diagnostics and tests.
type Stats struct {
	Waiting     int
	Sessions    int
	Connections int
}

func (h *Hub) Stats() Stats {
	ch := make(chan Stats, 1)
	h.post("", func() {
		ch <- Stats{Waiting: h.queue.size(), Sessions: h.store.size(), Connections: h.reg.size()}
	})
	select {
	case s := <-ch:
		return s
	case <-h.done:
		return Stats{}
	}
}

// SessionView is a read-only copy of one session's state.
type SessionView struct {
	ID       string
	FEN      string
	Status   SessionStatus
	MovesUCI []string
	White    Identity
	Black    Identity
}

func (h *Hub) LoadSession(id string) *SessionView {
	ch := make(chan *SessionView, 1)
	h.post("", func() {
		s := h.store.get(id)
		if s == nil {
			ch <- nil
			return
		}
		ch <- &SessionView{
			ID:       s.id,
			FEN:      s.fen,
			Status:   s.status,
			MovesUCI: s.historyUCI(),
			White:    s.white().identity,
			Black:    s.black().identity,
		}
	})
	select {
	case v := <-ch:
		return v
	case <-h.done:
		return nil
	}
}

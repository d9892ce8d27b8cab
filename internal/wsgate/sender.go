package wsgate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/chess-arena/internal/arena"
	"github.com/kapu/chess-arena/internal/obslog"
)

// sender is the per-connection egress queue. A single writer goroutine owns
// the socket writes; wsjson.Write is not safe for concurrent use. Send never
// blocks the hub: a full queue drops the frame instead.
type sender struct {
	conn   *websocket.Conn
	connID string
	out    chan arena.Notification

	stopOnce sync.Once
	done     chan struct{}
}

func newSender(conn *websocket.Conn, connID string, queueSize int) *sender {
	s := &sender{
		conn:   conn,
		connID: connID,
		out:    make(chan arena.Notification, queueSize),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

func (s *sender) Send(n arena.Notification) {
	select {
	case s.out <- n:
	case <-s.done:
	default:
		obslog.L().Warn("egress_drop",
			zap.String("conn_id", s.connID),
			zap.String("event", n.Event),
		)
	}
}

func (s *sender) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case n := <-s.out:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(ctx, s.conn, n)
			cancel()
			if err != nil {
				s.stop()
				return
			}
		}
	}
}

func (s *sender) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

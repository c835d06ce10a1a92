package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsSink delivers feed messages to one websocket peer.
type wsSink struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed atomic.Bool
}

func (s *wsSink) Send(ctx context.Context, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (s *wsSink) Disconnected() bool {
	return s.closed.Load()
}

// readPump discards incoming messages until the peer goes away, then marks
// the sink disconnected and cancels the feed.
func (s *wsSink) readPump(cancel context.CancelFunc) {
	defer cancel()
	defer s.closed.Store(true)

	s.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) questionFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.WithError(err).Warn("failed to upgrade feed connection")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sink := &wsSink{conn: conn}
	go sink.readPump(cancel)

	logger := h.logger.WithField("client", c.ClientIP())
	logger.Debug("feed connected")

	if err := h.feed.Run(ctx, sink); err != nil {
		logger.WithError(err).Warn("feed stopped")
	}

	sink.mu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	sink.mu.Unlock()
	logger.Debug("feed disconnected")
}

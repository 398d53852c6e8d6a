package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/live-interview/internal/interview"
	"github.com/hubenschmidt/live-interview/internal/metrics"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Runner drives one interview channel until it is over. *interview.Loop satisfies it.
type Runner interface {
	Run(ctx context.Context, sessionID string, conn interview.Conn)
}

// Handler upgrades interview channels with admission control.
type Handler struct {
	runner   Runner
	sem      chan struct{}
	baseCtx  context.Context
	sessions sync.WaitGroup
}

// NewHandler creates a WebSocket handler that runs at most maxConcurrent
// interviews at once. Sessions inherit ctx, so cancelling it ends them.
func NewHandler(ctx context.Context, runner Runner, maxConcurrent int) *Handler {
	if maxConcurrent <= 0 {
		maxConcurrent = 100
	}
	return &Handler{
		runner:  runner,
		sem:     make(chan struct{}, maxConcurrent),
		baseCtx: ctx,
	}
}

// ServeHTTP serves /ws/{id}. Returns 503 if at max concurrent session capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		metrics.AdmissionRejected.WithLabelValues("capacity").Inc()
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	h.sessions.Add(1)
	defer h.sessions.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "session_id", id, "error", err)
		return
	}

	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.Inc()
	defer metrics.SessionsActive.Dec()

	h.runner.Run(h.baseCtx, id, &deadlineConn{Conn: conn})
}

// Wait blocks until every running session, finalization included, has
// returned or ctx is done. Upgraded connections are hijacked, so
// http.Server.Shutdown does not wait for them.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deadlineConn bounds every write and says goodbye with a close frame.
type deadlineConn struct {
	*websocket.Conn
}

func (c *deadlineConn) WriteMessage(messageType int, data []byte) error {
	if err := c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(messageType, data)
}

func (c *deadlineConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.Conn.Close()
}

package trace

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	maxErrLen = 500
	queueSize = 64
)

// Tracer writes spans asynchronously via a buffered channel.
// All methods are nil-safe (no-op on nil receiver).
type Tracer struct {
	sink      Sink
	sessionID string
	ch        chan Span
	done      chan struct{}
}

// NewTracer creates a tracer bound to a session. Must call Close when done.
// A nil sink yields a nil tracer.
func NewTracer(sink Sink, sessionID string) *Tracer {
	if sink == nil {
		return nil
	}
	t := &Tracer{
		sink:      sink,
		sessionID: sessionID,
		ch:        make(chan Span, queueSize),
		done:      make(chan struct{}),
	}
	go t.drain()
	return t
}

func (t *Tracer) drain() {
	defer close(t.done)
	for sp := range t.ch {
		if err := t.sink.CreateSpan(sp); err != nil {
			slog.Warn("trace write failed", "span", sp.Name, "session_id", sp.SessionID, "error", err)
		}
	}
}

// RecordSpan records a completed span that started at startedAt.
func (t *Tracer) RecordSpan(name string, startedAt time.Time, status string, cause error) {
	if t == nil {
		return
	}
	errMsg := ""
	if cause != nil {
		errMsg = truncate(cause.Error(), maxErrLen)
	}
	t.ch <- Span{
		ID:         uuid.NewString(),
		SessionID:  t.sessionID,
		Name:       name,
		StartedAt:  startedAt.UTC(),
		DurationMs: float64(time.Since(startedAt).Microseconds()) / 1000,
		Status:     status,
		Error:      errMsg,
	}
}

// Close drains pending writes and shuts down the background goroutine.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	close(t.ch)
	<-t.done
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

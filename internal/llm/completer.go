// Package llm provides text completion backends used to prepare interview
// questions and to score transcripts.
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/hubenschmidt/live-interview/internal/backend"
	"github.com/hubenschmidt/live-interview/internal/metrics"
)

// Completer turns a system instruction and a user message into a single reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Router dispatches to the configured completion backend.
type Router struct {
	*backend.Router[Completer]
}

// NewRouter creates a router with registered completion backends and a fallback default.
func NewRouter(backends map[string]Completer, fallback string) *Router {
	return &Router{Router: backend.NewRouter(backends, fallback)}
}

// Select resolves engine to a Completer that records latency and error metrics.
func (r *Router) Select(engine string) (Completer, error) {
	name, c, err := r.Route(engine)
	if err != nil {
		return nil, err
	}
	return measured{engine: name, inner: c}, nil
}

type measured struct {
	engine string
	inner  Completer
}

func (m measured) Complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	text, err := m.inner.Complete(ctx, system, user)
	if err != nil {
		metrics.Errors.WithLabelValues("llm", m.engine).Inc()
		return "", err
	}
	metrics.StageDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	return text, nil
}

// StripCodeFence removes a surrounding Markdown code fence (``` or ```json)
// that models often wrap JSON replies in.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

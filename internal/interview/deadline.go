package interview

import (
	"context"
	"errors"
	"time"

	"github.com/hubenschmidt/live-interview/internal/prompts"
)

// ErrDeadline is the stop cause set when the session budget runs out.
var ErrDeadline = errors.New("session deadline reached")

// DeadlineGuard reports the remaining session time once per interval and
// stops the session when the deadline passes.
type DeadlineGuard struct {
	Deadline time.Time
	Interval time.Duration
	Now      func() time.Time
	Send     func(Envelope)
	// Stop is the session's one-shot stop signal.
	Stop context.CancelCauseFunc
}

// Run ticks immediately and then every Interval until the deadline passes or
// ctx is cancelled. It returns once it has stopped ticking.
func (g *DeadlineGuard) Run(ctx context.Context) {
	interval := g.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if g.tick() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick emits one timer or completion event and reports whether the deadline passed.
func (g *DeadlineGuard) tick() bool {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	remaining := int(g.Deadline.Sub(now()) / time.Second)
	if remaining > 0 {
		g.Send(newEnvelope(TypeTimer, TimerData{Remaining: remaining}))
		return false
	}
	g.Send(newEnvelope(TypeStatus, StatusData{Message: prompts.Completed}))
	g.Stop(ErrDeadline)
	return true
}

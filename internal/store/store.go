// Package store persists interview sessions, their prepared questions, the
// turn log, and the final evaluation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hubenschmidt/live-interview/internal/trace"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyExists     = errors.New("already exists")
)

// Store is the persistence contract shared by the HTTP surface and the
// interview loop. Messages are append-only; questions and evaluations are
// written once.
type Store interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	SetStatus(ctx context.Context, id string, status Status) error
	// StartSession moves the session to live, stamping started_at only if it
	// has never been set.
	StartSession(ctx context.Context, id string, at time.Time) (Session, error)
	// FinishSession moves the session to finished, stamping ended_at only if
	// it has never been set.
	FinishSession(ctx context.Context, id string, at time.Time) (Session, error)

	SaveQuestions(ctx context.Context, sessionID string, items []QuestionItem) error
	Questions(ctx context.Context, sessionID string) ([]QuestionItem, error)

	AppendMessage(ctx context.Context, m Message) error
	Messages(ctx context.Context, sessionID string) ([]Message, error)

	SaveEvaluation(ctx context.Context, ev Evaluation) error
	Evaluation(ctx context.Context, sessionID string) (Evaluation, error)

	trace.Sink
	Spans(ctx context.Context, sessionID string) ([]trace.Span, error)

	Close() error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*SQL)(nil)
)

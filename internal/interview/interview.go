// Package interview runs a timed interview over a bidirectional channel:
// question progression, the session deadline, the receive loop, and the
// one-time finalization that scores the transcript.
package interview

import (
	"context"
	"time"

	"github.com/hubenschmidt/live-interview/internal/evaluator"
	"github.com/hubenschmidt/live-interview/internal/outcome"
	"github.com/hubenschmidt/live-interview/internal/speech"
	"github.com/hubenschmidt/live-interview/internal/store"
	"github.com/hubenschmidt/live-interview/internal/trace"
)

// Conn is the candidate's channel. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Store is the persistence the session loop and finalizer need.
type Store interface {
	GetSession(ctx context.Context, id string) (store.Session, error)
	StartSession(ctx context.Context, id string, at time.Time) (store.Session, error)
	FinishSession(ctx context.Context, id string, at time.Time) (store.Session, error)
	Questions(ctx context.Context, sessionID string) ([]store.QuestionItem, error)
	AppendMessage(ctx context.Context, msg store.Message) error
	Messages(ctx context.Context, sessionID string) ([]store.Message, error)
	SaveEvaluation(ctx context.Context, ev store.Evaluation) error
}

// Synthesizer turns an interviewer prompt into a deliverable clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) outcome.Result[speech.Clip]
}

// Evaluator scores a finished interview.
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluator.Request) outcome.Result[evaluator.Scores]
}

// TranscriptArchive keeps a plain-text copy of finished transcripts.
type TranscriptArchive interface {
	SaveTranscript(sessionID, transcript string, at time.Time) (string, error)
}

// Config wires a Loop to its collaborators.
type Config struct {
	Store     Store
	Speech    Synthesizer
	Evaluator Evaluator
	// Transcripts and Spans are optional.
	Transcripts TranscriptArchive
	Spans       trace.Sink

	Budget          time.Duration
	ReceivePoll     time.Duration
	TickInterval    time.Duration
	FinalizeTimeout time.Duration
	Now             func() time.Time
}

const (
	DefaultBudget          = 15 * time.Minute
	DefaultReceivePoll     = 30 * time.Second
	DefaultTickInterval    = time.Second
	DefaultFinalizeTimeout = 60 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.ReceivePoll <= 0 {
		c.ReceivePoll = DefaultReceivePoll
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = DefaultFinalizeTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

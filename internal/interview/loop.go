package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/live-interview/internal/metrics"
	"github.com/hubenschmidt/live-interview/internal/prompts"
	"github.com/hubenschmidt/live-interview/internal/store"
	"github.com/hubenschmidt/live-interview/internal/trace"
)

// Loop admits interview channels and runs them to completion.
type Loop struct {
	cfg Config
}

// NewLoop creates a loop; zero durations take their defaults.
func NewLoop(cfg Config) *Loop {
	return &Loop{cfg: cfg.withDefaults()}
}

// Exit causes, used for logging and metrics.
const (
	exitCompleted  = "completed"
	exitStopped    = "stopped"
	exitDeadline   = "deadline"
	exitDisconnect = "disconnect"
	exitShutdown   = "shutdown"
	exitPanic      = "panic"
)

var errCompleted = errors.New("interview completed")

// Run serves one channel for sessionID and closes conn before returning.
// Channels for sessions that cannot be admitted get a single error status.
// Every admitted channel is finalized exactly once, however it ends.
func (l *Loop) Run(ctx context.Context, sessionID string, conn Conn) {
	defer conn.Close()
	log := slog.With("session_id", sessionID)
	send := newEventSender(conn, log)

	sess, questions, err := l.admit(ctx, sessionID)
	if err != nil {
		log.Warn("session not admitted", "error", err)
		send(newEnvelope(TypeStatus, StatusData{Error: prompts.NotReady}))
		return
	}
	log.Info("interview started", "role", sess.Role, "difficulty", sess.Difficulty, "questions", len(questions))

	tracer := trace.NewTracer(l.cfg.Spans, sessionID)
	defer tracer.Close()

	sessCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	guardDone := make(chan struct{})
	guard := &DeadlineGuard{
		Deadline: sess.StartedAt.Add(l.cfg.Budget),
		Interval: l.cfg.TickInterval,
		Now:      l.cfg.Now,
		Send:     send,
		Stop:     stop,
	}

	fin := NewFinalizer(l.cfg, sessionID, tracer)
	cause := exitPanic
	defer func() {
		if r := recover(); r != nil {
			log.Error("session loop panic", "panic", r)
		}
		stop(errCompleted)
		<-guardDone
		metrics.SessionExits.WithLabelValues(cause).Inc()
		log.Info("interview ended", "cause", cause)
		fin.Run(ctx)
	}()

	go func() {
		defer close(guardDone)
		guard.Run(sessCtx)
	}()

	s := &session{
		id:     sessionID,
		cfg:    l.cfg,
		log:    log,
		send:   send,
		tracer: tracer,
		engine: NewEngine(questions),
		frames: pump(sessCtx, conn),
	}
	cause = s.run(sessCtx)
}

func (l *Loop) admit(ctx context.Context, id string) (store.Session, []string, error) {
	sess, err := l.cfg.Store.GetSession(ctx, id)
	if err != nil {
		metrics.AdmissionRejected.WithLabelValues("missing").Inc()
		return store.Session{}, nil, err
	}
	if !sess.Status.Admits() {
		metrics.AdmissionRejected.WithLabelValues("status").Inc()
		return store.Session{}, nil, fmt.Errorf("session status %s", sess.Status)
	}
	items, err := l.cfg.Store.Questions(ctx, id)
	if err != nil {
		metrics.AdmissionRejected.WithLabelValues("questions").Inc()
		return store.Session{}, nil, fmt.Errorf("load questions: %w", err)
	}
	sess, err = l.cfg.Store.StartSession(ctx, id, l.cfg.Now())
	if err != nil {
		metrics.AdmissionRejected.WithLabelValues("start").Inc()
		return store.Session{}, nil, fmt.Errorf("start session: %w", err)
	}
	questions := make([]string, len(items))
	for i, it := range items {
		questions[i] = it.Question
	}
	return sess, questions, nil
}

type frame struct {
	kind int
	data []byte
}

// pump reads frames on its own goroutine so the loop can wait on them with a
// timeout. The returned channel is closed when the connection fails.
func pump(ctx context.Context, conn Conn) <-chan frame {
	frames := make(chan frame)
	go func() {
		defer close(frames)
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case frames <- frame{kind: kind, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return frames
}

// session is the per-channel state owned by the receive loop.
type session struct {
	id     string
	cfg    Config
	log    *slog.Logger
	send   func(Envelope)
	tracer *trace.Tracer
	engine *Engine
	frames <-chan frame
	last   string
}

func (s *session) run(ctx context.Context) string {
	s.ask(ctx, s.engine.Next(nil))

	poll := time.NewTimer(s.cfg.ReceivePoll)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return stopCause(ctx)
		case <-poll.C:
			poll.Reset(s.cfg.ReceivePoll)
		case f, ok := <-s.frames:
			if !ok {
				if ctx.Err() != nil {
					return stopCause(ctx)
				}
				return exitDisconnect
			}
			if cause := s.handle(ctx, f); cause != "" {
				return cause
			}
			if !poll.Stop() {
				select {
				case <-poll.C:
				default:
				}
			}
			poll.Reset(s.cfg.ReceivePoll)
		}
	}
}

func stopCause(ctx context.Context) string {
	if errors.Is(context.Cause(ctx), ErrDeadline) {
		return exitDeadline
	}
	return exitShutdown
}

// handle processes one inbound frame and returns a non-empty exit cause when
// the interview is over.
func (s *session) handle(ctx context.Context, f frame) string {
	if f.kind != websocket.TextMessage {
		s.drop("binary", nil)
		return ""
	}
	var in inbound
	if err := json.Unmarshal(f.data, &in); err != nil {
		s.drop("malformed", err)
		return ""
	}

	switch in.Type {
	case TypeCandidateText:
		var p candidateText
		if err := json.Unmarshal(in.Data, &p); err != nil {
			s.drop("malformed", err)
			return ""
		}
		if p.Text == nil {
			s.drop("missing_text", nil)
			return ""
		}
		return s.answer(ctx, *p.Text)
	case TypeControl:
		var p control
		if err := json.Unmarshal(in.Data, &p); err != nil {
			s.drop("malformed", err)
			return ""
		}
		if p.Action != ActionStop {
			s.drop("unknown_action", nil)
			return ""
		}
		s.send(newEnvelope(TypeStatus, StatusData{Message: prompts.Completed}))
		return exitStopped
	default:
		s.drop("unknown_type", nil)
		return ""
	}
}

func (s *session) drop(reason string, err error) {
	metrics.InboundDropped.WithLabelValues(reason).Inc()
	s.log.Warn("inbound frame ignored", "reason", reason, "error", err)
}

func (s *session) answer(ctx context.Context, text string) string {
	s.log.Info("candidate answered", "words", len(strings.Fields(text)))
	s.record(ctx, store.SpeakerCandidate, text)
	s.send(newEnvelope(TypeTranscript, TranscriptData{Who: string(store.SpeakerCandidate), Text: text}))

	next := s.engine.Next(&text)
	if next == s.last {
		s.send(newEnvelope(TypeStatus, StatusData{Message: prompts.Completed}))
		return exitCompleted
	}
	s.ask(ctx, next)
	return ""
}

// ask records and emits an interviewer prompt: text first, then its audio.
func (s *session) ask(ctx context.Context, prompt string) {
	s.last = prompt
	s.record(ctx, store.SpeakerInterviewer, prompt)
	s.send(newEnvelope(TypeInterviewerText, TextData{Text: prompt}))

	start := time.Now()
	clip := s.cfg.Speech.Synthesize(ctx, prompt)
	s.tracer.RecordSpan("synthesize", start, clip.Status(), clip.Cause)
	if ctx.Err() != nil {
		// The session ended mid-synthesis; nothing follows its final status.
		return
	}
	s.send(newEnvelope(TypeInterviewerAudio, AudioData{URL: clip.Value.URL}))
}

func (s *session) record(ctx context.Context, who store.Speaker, text string) {
	metrics.Turns.WithLabelValues(string(who)).Inc()
	err := s.cfg.Store.AppendMessage(ctx, store.Message{SessionID: s.id, Who: who, Text: text, TS: s.cfg.Now().UTC()})
	if err != nil {
		s.log.Error("append message", "who", who, "error", err)
	}
}

// newEventSender serializes writes from the loop and the deadline guard.
func newEventSender(conn Conn, log *slog.Logger) func(Envelope) {
	var mu sync.Mutex
	return func(ev Envelope) {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Error("marshal event", "type", ev.Type, "error", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if err = conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("write event", "type", ev.Type, "error", err)
		}
	}
}

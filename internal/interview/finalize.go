package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hubenschmidt/live-interview/internal/evaluator"
	"github.com/hubenschmidt/live-interview/internal/metrics"
	"github.com/hubenschmidt/live-interview/internal/store"
	"github.com/hubenschmidt/live-interview/internal/trace"
)

// Finalizer closes out a session once its channel is done: it marks the
// session finished, scores the transcript, and stores the evaluation.
type Finalizer struct {
	cfg       Config
	sessionID string
	tracer    *trace.Tracer
	log       *slog.Logger
	once      sync.Once
}

// NewFinalizer creates the finalizer for one session. tracer may be nil.
func NewFinalizer(cfg Config, sessionID string, tracer *trace.Tracer) *Finalizer {
	return &Finalizer{
		cfg:       cfg.withDefaults(),
		sessionID: sessionID,
		tracer:    tracer,
		log:       slog.With("session_id", sessionID),
	}
}

// Run finalizes the session the first time it is called and is a no-op
// afterwards. It works under its own timeout so a cancelled session context
// does not cut it short. Failures are logged, never returned.
func (f *Finalizer) Run(ctx context.Context) {
	f.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.FinalizeTimeout)
		defer cancel()

		start := time.Now()
		result, err := f.finalize(ctx)
		metrics.Finalizations.WithLabelValues(result).Inc()
		metrics.StageDuration.WithLabelValues("finalize").Observe(time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
			f.log.Error("finalize session", "error", err)
		}
		f.tracer.RecordSpan("finalize", start, status, err)
	})
}

func (f *Finalizer) finalize(ctx context.Context) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = "failed", fmt.Errorf("panic: %v", r)
		}
	}()

	st := f.cfg.Store
	sess, err := st.FinishSession(ctx, f.sessionID, f.cfg.Now())
	if err != nil {
		return "failed", fmt.Errorf("finish session: %w", err)
	}

	msgs, err := st.Messages(ctx, f.sessionID)
	if err != nil {
		return "failed", fmt.Errorf("load messages: %w", err)
	}
	items, err := st.Questions(ctx, f.sessionID)
	if err != nil {
		return "failed", fmt.Errorf("load questions: %w", err)
	}

	transcript := Transcript(msgs)
	if f.cfg.Transcripts != nil {
		if _, err := f.cfg.Transcripts.SaveTranscript(f.sessionID, transcript, f.cfg.Now()); err != nil {
			f.log.Warn("archive transcript", "error", err)
		}
	}

	start := time.Now()
	scores := f.cfg.Evaluator.Evaluate(ctx, evaluator.Request{
		Role:       sess.Role,
		Difficulty: sess.Difficulty,
		Domain:     sess.Domain,
		Transcript: transcript,
		Pairs:      Pairs(items, msgs),
	})
	f.tracer.RecordSpan("evaluate", start, scores.Status(), scores.Cause)

	err = st.SaveEvaluation(ctx, store.Evaluation{
		SessionID:     f.sessionID,
		Technical:     float64(scores.Value.Technical),
		Communication: float64(scores.Value.Communication),
		Confidence:    float64(scores.Value.Confidence),
		Strengths:     scores.Value.Strengths,
		Summary:       scores.Value.Summary,
		Rubric:        scores.Value.Rubric,
		CreatedAt:     f.cfg.Now().UTC(),
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		f.log.Warn("evaluation already stored")
		return "duplicate", nil
	}
	if err != nil {
		return "failed", fmt.Errorf("save evaluation: %w", err)
	}

	f.log.Info("session finalized", "messages", len(msgs), "degraded", scores.Degraded)
	return scores.Status(), nil
}

// Transcript renders messages as "SPEAKER: text" lines in the order given.
func Transcript(msgs []store.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.ToUpper(string(m.Who)))
		b.WriteString(": ")
		b.WriteString(m.Text)
	}
	return b.String()
}

// Pairs matches the i-th question with the i-th candidate message. Questions
// without a matching message get a nil answer.
func Pairs(items []store.QuestionItem, msgs []store.Message) []evaluator.QAPair {
	var answers []string
	for _, m := range msgs {
		if m.Who == store.SpeakerCandidate {
			answers = append(answers, m.Text)
		}
	}
	pairs := make([]evaluator.QAPair, len(items))
	for i, it := range items {
		pairs[i] = evaluator.QAPair{Question: it.Question, IdealAnswer: it.IdealAnswer}
		if i < len(answers) {
			pairs[i].CandidateAnswer = &answers[i]
		}
	}
	return pairs
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hubenschmidt/live-interview/internal/media"
	"github.com/hubenschmidt/live-interview/internal/outcome"
	"github.com/hubenschmidt/live-interview/internal/questions"
	"github.com/hubenschmidt/live-interview/internal/store"
	"github.com/hubenschmidt/live-interview/internal/trace"
)

// maxBodyBytes bounds session creation requests; job descriptions can be long.
const maxBodyBytes = 1 << 20

type preparer interface {
	Prepare(ctx context.Context, b questions.Brief) outcome.Result[[]questions.Item]
}

type deps struct {
	store     store.Store
	preparer  preparer
	wsHandler http.Handler
	ttsDir    string
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("GET /ws/{id}", d.wsHandler)
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("POST /sessions", d.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", d.handleGetSession)
	mux.HandleFunc("GET /sessions/{id}/questions", d.handleQuestions)
	mux.HandleFunc("GET /sessions/{id}/messages", d.handleMessages)
	mux.HandleFunc("GET /results/{id}", d.handleResults)
	mux.HandleFunc("GET /api/traces/sessions/{id}", d.handleTraces)
	if d.ttsDir != "" {
		mux.Handle("GET "+media.TTSRoute, http.StripPrefix(media.TTSRoute, http.FileServer(http.Dir(d.ttsDir))))
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type createSessionRequest struct {
	Role           string `json:"role"`
	Difficulty     string `json:"difficulty"`
	Domain         string `json:"domain"`
	JobDescription string `json:"job_description"`
}

func (d deps) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	body.Role = strings.TrimSpace(body.Role)
	body.Difficulty = strings.TrimSpace(body.Difficulty)
	if body.Role == "" || body.Difficulty == "" {
		http.Error(w, "role and difficulty are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	sess := store.Session{
		ID:             uuid.NewString(),
		Role:           body.Role,
		Difficulty:     body.Difficulty,
		Domain:         strings.TrimSpace(body.Domain),
		JobDescription: strings.TrimSpace(body.JobDescription),
		Status:         store.StatusPreparing,
	}
	if err := d.store.CreateSession(ctx, sess); err != nil {
		slog.Error("create session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status, err := d.prepare(ctx, sess)
	if err != nil {
		slog.Error("prepare session", "session_id", sess.ID, "error", err)
		if err := d.store.SetStatus(context.WithoutCancel(ctx), sess.ID, store.StatusFailed); err != nil {
			slog.Error("mark session failed", "session_id", sess.ID, "error", err)
		}
		http.Error(w, "could not prepare session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"session_id": sess.ID, "status": string(status)})
}

// prepare stores the question set for a new session and marks it ready.
func (d deps) prepare(ctx context.Context, sess store.Session) (store.Status, error) {
	tracer := trace.NewTracer(d.store, sess.ID)
	defer tracer.Close()

	start := time.Now()
	res := d.preparer.Prepare(ctx, questions.Brief{
		Role:           sess.Role,
		Difficulty:     sess.Difficulty,
		Domain:         sess.Domain,
		JobDescription: sess.JobDescription,
	})
	tracer.RecordSpan("prepare", start, res.Status(), res.Cause)

	items := make([]store.QuestionItem, len(res.Value))
	for i, it := range res.Value {
		items[i] = store.QuestionItem{Question: it.Question, IdealAnswer: it.IdealAnswer, OrderIdx: i}
	}
	if err := d.store.SaveQuestions(ctx, sess.ID, items); err != nil {
		return store.StatusFailed, err
	}
	if err := d.store.SetStatus(ctx, sess.ID, store.StatusReady); err != nil {
		return store.StatusFailed, err
	}
	slog.Info("session ready", "session_id", sess.ID, "questions", len(items), "degraded", res.Degraded)
	return store.StatusReady, nil
}

func (d deps) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := d.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (d deps) handleQuestions(w http.ResponseWriter, r *http.Request) {
	items, err := d.store.Questions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (d deps) handleMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := d.store.Messages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(msgs))
}

type resultResponse struct {
	Technical     float64 `json:"technical"`
	Communication float64 `json:"communication"`
	Confidence    float64 `json:"confidence"`
	Strengths     string  `json:"strengths"`
	Summary       string  `json:"summary"`
}

func (d deps) handleResults(w http.ResponseWriter, r *http.Request) {
	ev, err := d.store.Evaluation(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, resultResponse{Strengths: "Pending", Summary: "Awaiting evaluation"})
		return
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{
		Technical:     ev.Technical,
		Communication: ev.Communication,
		Confidence:    ev.Confidence,
		Strengths:     ev.Strengths,
		Summary:       ev.Summary,
	})
}

func (d deps) handleTraces(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	spans, err := d.store.Spans(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "spans": nonNil(spans)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	slog.Error("store", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

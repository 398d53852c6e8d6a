// Package speech synthesizes interviewer prompts into audio clips the
// candidate's browser can fetch.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hubenschmidt/live-interview/internal/audio"
	"github.com/hubenschmidt/live-interview/internal/backend"
	"github.com/hubenschmidt/live-interview/internal/metrics"
	"github.com/hubenschmidt/live-interview/internal/outcome"
)

// Clip is synthesized audio and the URL it is served at. URL is empty when
// the clip could not be stored.
type Clip struct {
	Audio []byte
	URL   string
}

// ClipStore persists audio and returns a deliverable URL.
type ClipStore interface {
	SaveClip(audio []byte) (string, error)
}

// Router dispatches to the configured speech backend.
type Router struct {
	*backend.Router[Backend]
}

// NewRouter creates a router with registered speech backends and a fallback default.
func NewRouter(backends map[string]Backend, fallback string) *Router {
	return &Router{Router: backend.NewRouter(backends, fallback)}
}

// Synthesizer produces a Clip for every prompt, falling back to half a second of silence.
type Synthesizer struct {
	router  *Router
	engine  string
	clips   ClipStore
	timeout time.Duration
}

// NewSynthesizer creates a synthesizer. A nil router always yields silence.
func NewSynthesizer(router *Router, engine string, clips ClipStore, timeout time.Duration) *Synthesizer {
	return &Synthesizer{router: router, engine: engine, clips: clips, timeout: timeout}
}

// Synthesize never fails; degraded clips carry silence, an empty URL, or both.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) outcome.Result[Clip] {
	start := time.Now()
	data, name, err := s.speak(ctx, text)
	if err != nil {
		slog.Warn("speech synthesis degraded", "engine", name, "error", err)
		metrics.Errors.WithLabelValues("tts", name).Inc()
		data = audio.Silence(500 * time.Millisecond)
	} else {
		metrics.StageDuration.WithLabelValues("tts").Observe(time.Since(start).Seconds())
	}

	clip := Clip{Audio: data}
	if s.clips != nil {
		url, saveErr := s.clips.SaveClip(data)
		if saveErr != nil {
			slog.Warn("speech clip not stored", "error", saveErr)
			err = errors.Join(err, saveErr)
		}
		clip.URL = url
	} else {
		err = errors.Join(err, errors.New("no clip store configured"))
	}

	if err != nil {
		metrics.Degraded.WithLabelValues("tts").Inc()
		return outcome.Degraded(clip, err)
	}
	return outcome.Ok(clip)
}

func (s *Synthesizer) speak(ctx context.Context, text string) ([]byte, string, error) {
	if s.router == nil {
		return nil, "none", errors.New("no speech backend configured")
	}
	name, b, err := s.router.Route(s.engine)
	if err != nil {
		return nil, s.engine, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	data, err := b.Speak(ctx, text)
	return data, name, err
}

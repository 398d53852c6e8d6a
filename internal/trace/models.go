package trace

import "time"

// Span records one collaborator call made on behalf of an interview session.
type Span struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// Sink persists spans.
type Sink interface {
	CreateSpan(sp Span) error
}

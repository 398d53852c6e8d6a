package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hubenschmidt/live-interview/internal/trace"
)

// Memory is an in-process Store. It backs tests and gateways started
// without DATABASE_URL.
type Memory struct {
	mu          sync.Mutex
	sessions    map[string]Session
	questions   map[string][]QuestionItem
	messages    map[string][]Message
	evaluations map[string]Evaluation
	spans       map[string][]trace.Span
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:    make(map[string]Session),
		questions:   make(map[string][]QuestionItem),
		messages:    make(map[string][]Message),
		evaluations: make(map[string]Evaluation),
		spans:       make(map[string][]trace.Span),
	}
}

func (m *Memory) CreateSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %s: %w", s.ID, ErrAlreadyExists)
	}
	if s.Status == "" {
		s.Status = StatusCreated
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, nil
}

func (m *Memory) SetStatus(_ context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.transition(id, status)
	return err
}

func (m *Memory) StartSession(_ context.Context, id string, at time.Time) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.transition(id, StatusLive)
	if err != nil {
		return Session{}, err
	}
	if s.StartedAt == nil {
		t := at.UTC()
		s.StartedAt = &t
		m.sessions[id] = s
	}
	return s, nil
}

func (m *Memory) FinishSession(_ context.Context, id string, at time.Time) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.transition(id, StatusFinished)
	if err != nil {
		return Session{}, err
	}
	if s.EndedAt == nil {
		t := at.UTC()
		s.EndedAt = &t
		m.sessions[id] = s
	}
	return s, nil
}

// transition must be called with mu held.
func (m *Memory) transition(id string, to Status) (Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if !CanTransition(s.Status, to) {
		return Session{}, fmt.Errorf("session %s %s -> %s: %w", id, s.Status, to, ErrInvalidTransition)
	}
	s.Status = to
	m.sessions[id] = s
	return s, nil
}

func (m *Memory) SaveQuestions(_ context.Context, sessionID string, items []QuestionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if _, ok := m.questions[sessionID]; ok {
		return fmt.Errorf("questions for %s: %w", sessionID, ErrAlreadyExists)
	}
	stored := make([]QuestionItem, len(items))
	for i, it := range items {
		it.SessionID = sessionID
		stored[i] = it
	}
	slices.SortStableFunc(stored, func(a, b QuestionItem) int { return a.OrderIdx - b.OrderIdx })
	m.questions[sessionID] = stored
	return nil
}

func (m *Memory) Questions(_ context.Context, sessionID string) ([]QuestionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.questions[sessionID]), nil
}

func (m *Memory) AppendMessage(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[msg.SessionID]; !ok {
		return fmt.Errorf("session %s: %w", msg.SessionID, ErrNotFound)
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	return nil
}

func (m *Memory) Messages(_ context.Context, sessionID string) ([]Message, error) {
	m.mu.Lock()
	msgs := slices.Clone(m.messages[sessionID])
	m.mu.Unlock()
	slices.SortStableFunc(msgs, func(a, b Message) int { return a.TS.Compare(b.TS) })
	return msgs, nil
}

func (m *Memory) SaveEvaluation(_ context.Context, ev Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.evaluations[ev.SessionID]; ok {
		return fmt.Errorf("evaluation for %s: %w", ev.SessionID, ErrAlreadyExists)
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	m.evaluations[ev.SessionID] = ev
	return nil
}

func (m *Memory) Evaluation(_ context.Context, sessionID string) (Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.evaluations[sessionID]
	if !ok {
		return Evaluation{}, fmt.Errorf("evaluation for %s: %w", sessionID, ErrNotFound)
	}
	return ev, nil
}

func (m *Memory) CreateSpan(sp trace.Span) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans[sp.SessionID] = append(m.spans[sp.SessionID], sp)
	return nil
}

func (m *Memory) Spans(_ context.Context, sessionID string) ([]trace.Span, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.spans[sessionID]), nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

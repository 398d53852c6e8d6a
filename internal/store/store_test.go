package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/live-interview/internal/trace"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusPreparing, true},
		{StatusPreparing, StatusReady, true},
		{StatusReady, StatusLive, true},
		{StatusLive, StatusLive, true},
		{StatusLive, StatusFinished, true},
		{StatusReady, StatusFinished, true},
		{StatusFinished, StatusLive, false},
		{StatusLive, StatusReady, false},
		{StatusPreparing, StatusFailed, true},
		{StatusFinished, StatusFailed, false},
		{StatusFailed, StatusReady, false},
		{Status("bogus"), StatusReady, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusAdmits(t *testing.T) {
	assert.True(t, StatusReady.Admits())
	assert.True(t, StatusLive.Admits())
	for _, s := range []Status{StatusCreated, StatusPreparing, StatusFinished, StatusFailed} {
		assert.False(t, s.Admits(), s)
	}
}

func TestTransitionQuery(t *testing.T) {
	query, args := transitionQuery("s1", StatusReady, nil)
	assert.Equal(t, `UPDATE sessions SET status = $1 WHERE id = $2 RETURNING `+sessionColumns, query)
	assert.Equal(t, []any{"ready", "s1"}, args)

	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("EST", -5*3600))
	query, args = transitionQuery("s1", StatusLive, &stamp{column: "started_at", at: at})
	assert.Contains(t, query, "started_at = COALESCE(started_at, $2) WHERE id = $3")
	assert.Equal(t, []any{"live", at.UTC(), "s1"}, args)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemory() })
}

func TestSQLStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	runStoreContract(t, func(t *testing.T) Store {
		s, err := Open(context.Background(), dsn)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	newSession := func(t *testing.T, s Store, status Status) Session {
		sess := Session{ID: uuid.NewString(), Role: "backend", Difficulty: "mid", Status: status}
		require.NoError(t, s.CreateSession(ctx, sess))
		return sess
	}

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		sess := newSession(t, s, StatusPreparing)

		got, err := s.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPreparing, got.Status)
		assert.Equal(t, "backend", got.Role)
		assert.False(t, got.CreatedAt.IsZero())
		assert.Nil(t, got.StartedAt)

		assert.ErrorIs(t, s.CreateSession(ctx, sess), ErrAlreadyExists)
		_, err = s.GetSession(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("status is monotonic", func(t *testing.T) {
		s := newStore(t)
		sess := newSession(t, s, StatusPreparing)

		require.NoError(t, s.SetStatus(ctx, sess.ID, StatusReady))
		assert.ErrorIs(t, s.SetStatus(ctx, sess.ID, StatusPreparing), ErrInvalidTransition)
		assert.ErrorIs(t, s.SetStatus(ctx, "missing", StatusReady), ErrNotFound)
	})

	t.Run("started_at and ended_at are stamped once", func(t *testing.T) {
		s := newStore(t)
		sess := newSession(t, s, StatusReady)
		t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		live, err := s.StartSession(ctx, sess.ID, t0)
		require.NoError(t, err)
		assert.Equal(t, StatusLive, live.Status)
		require.NotNil(t, live.StartedAt)
		assert.True(t, live.StartedAt.Equal(t0))

		again, err := s.StartSession(ctx, sess.ID, t0.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, again.StartedAt.Equal(t0))

		done, err := s.FinishSession(ctx, sess.ID, t0.Add(10*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, StatusFinished, done.Status)
		require.NotNil(t, done.EndedAt)
		assert.True(t, done.EndedAt.Equal(t0.Add(10*time.Minute)))

		again, err = s.FinishSession(ctx, sess.ID, t0.Add(20*time.Minute))
		require.NoError(t, err)
		assert.True(t, again.EndedAt.Equal(t0.Add(10*time.Minute)))

		_, err = s.StartSession(ctx, sess.ID, t0)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("questions are fixed once and ordered", func(t *testing.T) {
		s := newStore(t)
		sess := newSession(t, s, StatusPreparing)
		items := []QuestionItem{
			{Question: "Q2", IdealAnswer: "A2", OrderIdx: 1},
			{Question: "Q1", IdealAnswer: "A1", OrderIdx: 0},
		}
		require.NoError(t, s.SaveQuestions(ctx, sess.ID, items))
		assert.ErrorIs(t, s.SaveQuestions(ctx, sess.ID, items), ErrAlreadyExists)

		got, err := s.Questions(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Q1", got[0].Question)
		assert.Equal(t, sess.ID, got[0].SessionID)
		assert.Equal(t, "Q2", got[1].Question)
	})

	t.Run("messages are returned chronologically", func(t *testing.T) {
		s := newStore(t)
		sess := newSession(t, s, StatusLive)
		t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		require.NoError(t, s.AppendMessage(ctx, Message{SessionID: sess.ID, Who: SpeakerCandidate, Text: "second", TS: t0.Add(time.Second)}))
		require.NoError(t, s.AppendMessage(ctx, Message{SessionID: sess.ID, Who: SpeakerInterviewer, Text: "first", TS: t0}))

		got, err := s.Messages(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "first", got[0].Text)
		assert.Equal(t, SpeakerInterviewer, got[0].Who)
		assert.Equal(t, "second", got[1].Text)
	})

	t.Run("evaluation is written at most once", func(t *testing.T) {
		s := newStore(t)
		sess := newSession(t, s, StatusFinished)

		_, err := s.Evaluation(ctx, sess.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		ev := Evaluation{SessionID: sess.ID, Technical: 80, Communication: 75, Confidence: 70, Strengths: "clear", Summary: "good"}
		require.NoError(t, s.SaveEvaluation(ctx, ev))
		assert.ErrorIs(t, s.SaveEvaluation(ctx, ev), ErrAlreadyExists)

		got, err := s.Evaluation(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 80.0, got.Technical)
		assert.Equal(t, "good", got.Summary)
	})

	t.Run("spans", func(t *testing.T) {
		s := newStore(t)
		sess := newSession(t, s, StatusLive)
		require.NoError(t, s.CreateSpan(trace.Span{ID: uuid.NewString(), SessionID: sess.ID, Name: "synthesize", StartedAt: time.Now(), Status: "ok"}))

		got, err := s.Spans(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "synthesize", got[0].Name)
	})
}

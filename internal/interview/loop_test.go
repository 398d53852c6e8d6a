package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/live-interview/internal/evaluator"
	"github.com/hubenschmidt/live-interview/internal/outcome"
	"github.com/hubenschmidt/live-interview/internal/prompts"
	"github.com/hubenschmidt/live-interview/internal/speech"
	"github.com/hubenschmidt/live-interview/internal/store"
)

var errConnClosed = errors.New("use of closed connection")

// fakeConn is an in-memory channel. Closing in simulates the candidate
// disconnecting.
type fakeConn struct {
	in     chan frame
	out    chan received
	closed chan struct{}
	once   sync.Once
}

type received struct {
	Type string          `json:"type"`
	TS   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan frame, 16),
		out:    make(chan received, 1024),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-c.in:
		if !ok {
			return 0, nil, errConnClosed
		}
		return f.kind, f.data, nil
	case <-c.closed:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(kind int, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	var ev received
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	c.out <- ev
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sendJSON(t *testing.T, typ string, data any) {
	t.Helper()
	b, err := json.Marshal(map[string]any{"type": typ, "data": data})
	require.NoError(t, err)
	c.in <- frame{kind: websocket.TextMessage, data: b}
}

func (c *fakeConn) answer(t *testing.T, text string) {
	c.sendJSON(t, TypeCandidateText, map[string]string{"text": text})
}

// expect returns the next event that is not a timer tick.
func (c *fakeConn) expect(t *testing.T, typ string) received {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.out:
			if ev.Type == TypeTimer && typ != TypeTimer {
				continue
			}
			require.Equal(t, typ, ev.Type, "event data: %s", ev.Data)
			return ev
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func (c *fakeConn) expectText(t *testing.T, want string) {
	t.Helper()
	var d TextData
	require.NoError(t, json.Unmarshal(c.expect(t, TypeInterviewerText).Data, &d))
	assert.Equal(t, want, d.Text)
	c.expect(t, TypeInterviewerAudio)
}

func (c *fakeConn) expectStatus(t *testing.T) StatusData {
	t.Helper()
	var d StatusData
	require.NoError(t, json.Unmarshal(c.expect(t, TypeStatus).Data, &d))
	return d
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type stubSpeech struct {
	n     atomic.Int32
	panic bool
}

func (s *stubSpeech) Synthesize(context.Context, string) outcome.Result[speech.Clip] {
	if s.panic {
		panic("synthesizer exploded")
	}
	n := s.n.Add(1)
	return outcome.Ok(speech.Clip{Audio: []byte("RIFF"), URL: fmt.Sprintf("/static/tts/%d.wav", n)})
}

// stalledSpeech holds every synthesis until the session ends.
type stalledSpeech struct{}

func (stalledSpeech) Synthesize(ctx context.Context, _ string) outcome.Result[speech.Clip] {
	<-ctx.Done()
	return outcome.Degraded(speech.Clip{}, ctx.Err())
}

type stubEvaluator struct {
	mu   sync.Mutex
	reqs []evaluator.Request
}

func (e *stubEvaluator) Evaluate(_ context.Context, req evaluator.Request) outcome.Result[evaluator.Scores] {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reqs = append(e.reqs, req)
	return outcome.Ok(evaluator.Scores{Technical: 80, Communication: 75, Confidence: 70, Strengths: "depth", Summary: "good", Rubric: "{}"})
}

func (e *stubEvaluator) calls() []evaluator.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]evaluator.Request(nil), e.reqs...)
}

type harness struct {
	store  *store.Memory
	speech *stubSpeech
	eval   *stubEvaluator
	cfg    Config
}

func newHarness(t *testing.T, status store.Status, questions ...string) *harness {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, store.Session{ID: "s1", Role: "Backend Engineer", Difficulty: "mid", Status: status}))
	items := make([]store.QuestionItem, len(questions))
	for i, q := range questions {
		items[i] = store.QuestionItem{Question: q, IdealAnswer: "ideal " + q, OrderIdx: i}
	}
	require.NoError(t, st.SaveQuestions(ctx, "s1", items))

	h := &harness{store: st, speech: &stubSpeech{}, eval: &stubEvaluator{}}
	h.cfg = Config{
		Store:        st,
		Speech:       h.speech,
		Evaluator:    h.eval,
		Spans:        st,
		TickInterval: time.Hour,
	}
	return h
}

func (h *harness) start(conn *fakeConn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewLoop(h.cfg).Run(context.Background(), "s1", conn)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("loop did not exit")
	}
}

func TestLoop_RejectsSessionThatCannotBeAdmitted(t *testing.T) {
	tests := []struct {
		name   string
		status store.Status
	}{
		{"finished", store.StatusFinished},
		{"preparing", store.StatusPreparing},
		{"failed", store.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.status, "Q1")
			conn := newFakeConn()
			done := h.start(conn)
			waitDone(t, done)

			assert.Equal(t, StatusData{Error: prompts.NotReady}, conn.expectStatus(t))
			assert.Empty(t, conn.out)
			assert.True(t, conn.isClosed())
			assert.Empty(t, h.eval.calls())

			sess, err := h.store.GetSession(context.Background(), "s1")
			require.NoError(t, err)
			assert.Equal(t, tt.status, sess.Status)
			assert.Nil(t, sess.StartedAt)
		})
	}
}

func TestLoop_RejectsUnknownSession(t *testing.T) {
	h := newHarness(t, store.StatusReady)
	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewLoop(h.cfg).Run(context.Background(), "nope", conn)
	}()
	waitDone(t, done)

	assert.Equal(t, prompts.NotReady, conn.expectStatus(t).Error)
	assert.True(t, conn.isClosed())
}

func TestLoop_RunsInterviewToCompletion(t *testing.T) {
	h := newHarness(t, store.StatusReady, "Q1")
	conn := newFakeConn()
	done := h.start(conn)

	conn.expectText(t, prompts.Intro)

	conn.answer(t, "yes")
	conn.expect(t, TypeTranscript)
	conn.expectText(t, "Q1")

	conn.answer(t, "done")
	var tr TranscriptData
	require.NoError(t, json.Unmarshal(conn.expect(t, TypeTranscript).Data, &tr))
	assert.Equal(t, TranscriptData{Who: "candidate", Text: "done"}, tr)
	conn.expectText(t, prompts.Closing)

	conn.answer(t, "bye")
	conn.expect(t, TypeTranscript)
	assert.Equal(t, prompts.Completed, conn.expectStatus(t).Message)

	waitDone(t, done)
	assert.True(t, conn.isClosed())

	ctx := context.Background()
	sess, err := h.store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFinished, sess.Status)
	require.NotNil(t, sess.StartedAt)
	require.NotNil(t, sess.EndedAt)
	assert.False(t, sess.EndedAt.Before(*sess.StartedAt))

	msgs, err := h.store.Messages(ctx, "s1")
	require.NoError(t, err)
	var who []store.Speaker
	for _, m := range msgs {
		who = append(who, m.Who)
	}
	assert.Equal(t, []store.Speaker{
		store.SpeakerInterviewer, store.SpeakerCandidate,
		store.SpeakerInterviewer, store.SpeakerCandidate,
		store.SpeakerInterviewer, store.SpeakerCandidate,
	}, who)

	ev, err := h.store.Evaluation(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 80.0, ev.Technical)

	calls := h.eval.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Backend Engineer", calls[0].Role)
	require.Len(t, calls[0].Pairs, 1)
	assert.Equal(t, "yes", *calls[0].Pairs[0].CandidateAnswer)
	assert.Contains(t, calls[0].Transcript, "INTERVIEWER: "+prompts.Intro+"\nCANDIDATE: yes\nINTERVIEWER: Q1")

	spans, err := h.store.Spans(ctx, "s1")
	require.NoError(t, err)
	names := map[string]int{}
	for _, sp := range spans {
		names[sp.Name]++
	}
	assert.Equal(t, 3, names["synthesize"])
	assert.Equal(t, 1, names["evaluate"])
	assert.Equal(t, 1, names["finalize"])
}

func TestLoop_StopControl(t *testing.T) {
	h := newHarness(t, store.StatusReady, "Q1", "Q2")
	conn := newFakeConn()
	done := h.start(conn)

	conn.expectText(t, prompts.Intro)
	conn.sendJSON(t, TypeControl, map[string]string{"action": "stop"})
	assert.Equal(t, prompts.Completed, conn.expectStatus(t).Message)
	waitDone(t, done)

	sess, err := h.store.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFinished, sess.Status)
	assert.Len(t, h.eval.calls(), 1)
}

func TestLoop_DisconnectStillFinalizes(t *testing.T) {
	h := newHarness(t, store.StatusReady, "Q1", "Q2", "Q3")
	conn := newFakeConn()
	done := h.start(conn)

	conn.expectText(t, prompts.Intro)
	conn.answer(t, "I have spent six years building payment systems in Go")
	conn.expect(t, TypeTranscript)
	conn.expectText(t, "Q1")
	close(conn.in)
	waitDone(t, done)

	for len(conn.out) > 0 {
		ev := <-conn.out
		assert.NotEqual(t, TypeStatus, ev.Type, "no status after a disconnect")
	}

	ctx := context.Background()
	sess, err := h.store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFinished, sess.Status)
	require.NotNil(t, sess.EndedAt)

	_, err = h.store.Evaluation(ctx, "s1")
	require.NoError(t, err)

	calls := h.eval.calls()
	require.Len(t, calls, 1)
	pairs := calls[0].Pairs
	require.Len(t, pairs, 3)
	require.NotNil(t, pairs[0].CandidateAnswer)
	assert.Nil(t, pairs[1].CandidateAnswer)
	assert.Nil(t, pairs[2].CandidateAnswer)
}

func TestLoop_IgnoresMalformedFrames(t *testing.T) {
	h := newHarness(t, store.StatusReady, "Q1")
	conn := newFakeConn()
	done := h.start(conn)
	conn.expectText(t, prompts.Intro)

	conn.in <- frame{kind: websocket.TextMessage, data: []byte("{not json")}
	conn.in <- frame{kind: websocket.BinaryMessage, data: []byte{0x00, 0x01}}
	conn.sendJSON(t, "dance", map[string]string{})
	conn.sendJSON(t, TypeCandidateText, map[string]any{})
	conn.sendJSON(t, TypeCandidateText, "just a string")
	conn.sendJSON(t, TypeControl, map[string]string{"action": "pause"})
	conn.answer(t, "ok")

	var tr TranscriptData
	require.NoError(t, json.Unmarshal(conn.expect(t, TypeTranscript).Data, &tr))
	assert.Equal(t, "ok", tr.Text)
	conn.expectText(t, "Q1")

	close(conn.in)
	waitDone(t, done)

	msgs, err := h.store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func TestLoop_BlankAnswerAdvances(t *testing.T) {
	for _, text := range []string{"", "   "} {
		t.Run(fmt.Sprintf("%q", text), func(t *testing.T) {
			h := newHarness(t, store.StatusReady, "Q1", "Q2")
			conn := newFakeConn()
			done := h.start(conn)
			conn.expectText(t, prompts.Intro)

			conn.answer(t, text)
			var tr TranscriptData
			require.NoError(t, json.Unmarshal(conn.expect(t, TypeTranscript).Data, &tr))
			assert.Equal(t, string(store.SpeakerCandidate), tr.Who)
			assert.Equal(t, text, tr.Text)
			conn.expectText(t, "Q1")

			close(conn.in)
			waitDone(t, done)

			msgs, err := h.store.Messages(context.Background(), "s1")
			require.NoError(t, err)
			require.Len(t, msgs, 3)
			assert.Equal(t, store.SpeakerCandidate, msgs[1].Who)
			assert.Equal(t, text, msgs[1].Text)
		})
	}
}

func TestLoop_TwoFollowUpsInARowEndTheInterview(t *testing.T) {
	h := newHarness(t, store.StatusReady, "Q1")
	conn := newFakeConn()
	done := h.start(conn)
	conn.expectText(t, prompts.Intro)

	conn.answer(t, "built some stuff last year")
	conn.expect(t, TypeTranscript)
	conn.expectText(t, prompts.FollowUp)

	conn.answer(t, "mostly apis and some queues")
	conn.expect(t, TypeTranscript)
	assert.Equal(t, prompts.Completed, conn.expectStatus(t).Message)
	waitDone(t, done)
}

func TestLoop_DeadlineDuringSynthesisSkipsAudio(t *testing.T) {
	h := newHarness(t, store.StatusReady, "Q1")
	h.cfg.Speech = stalledSpeech{}
	h.cfg.Budget = 1200 * time.Millisecond
	h.cfg.TickInterval = 20 * time.Millisecond
	conn := newFakeConn()
	done := h.start(conn)

	var d TextData
	require.NoError(t, json.Unmarshal(conn.expect(t, TypeInterviewerText).Data, &d))
	assert.Equal(t, prompts.Intro, d.Text)
	assert.Equal(t, prompts.Completed, conn.expectStatus(t).Message)
	waitDone(t, done)

drain:
	for {
		select {
		case ev := <-conn.out:
			assert.NotEqual(t, TypeInterviewerAudio, ev.Type)
		default:
			break drain
		}
	}

	sess, err := h.store.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFinished, sess.Status)
}

func TestLoop_DeadlineEndsInterview(t *testing.T) {
	h := newHarness(t, store.StatusReady, "Q1")
	h.cfg.Budget = 1500 * time.Millisecond
	h.cfg.TickInterval = 20 * time.Millisecond
	h.cfg.ReceivePoll = 50 * time.Millisecond
	conn := newFakeConn()
	done := h.start(conn)

	var seen []received
	timeout := time.After(3 * time.Second)
	for status := false; !status; {
		select {
		case ev := <-conn.out:
			seen = append(seen, ev)
			status = ev.Type == TypeStatus
		case <-timeout:
			t.Fatal("no completion status")
		}
	}
	waitDone(t, done)

	var remaining []int
	for _, ev := range seen {
		if ev.Type != TypeTimer {
			continue
		}
		var d TimerData
		require.NoError(t, json.Unmarshal(ev.Data, &d))
		remaining = append(remaining, d.Remaining)
	}
	require.NotEmpty(t, remaining)
	assert.Equal(t, 1, remaining[0])

	var last StatusData
	require.NoError(t, json.Unmarshal(seen[len(seen)-1].Data, &last))
	assert.Equal(t, prompts.Completed, last.Message)

	sess, err := h.store.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFinished, sess.Status)
	assert.Len(t, h.eval.calls(), 1)
}

func TestLoop_ReconnectKeepsStartTime(t *testing.T) {
	h := newHarness(t, store.StatusLive, "Q1")
	started := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	_, err := h.store.StartSession(context.Background(), "s1", started)
	require.NoError(t, err)
	h.cfg.Budget = 24 * 365 * time.Hour

	conn := newFakeConn()
	done := h.start(conn)
	conn.expectText(t, prompts.Intro)
	close(conn.in)
	waitDone(t, done)

	sess, err := h.store.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, sess.StartedAt.Equal(started))
}

func TestLoop_PanicStillFinalizes(t *testing.T) {
	h := newHarness(t, store.StatusReady, "Q1")
	h.speech.panic = true
	conn := newFakeConn()
	done := h.start(conn)
	waitDone(t, done)

	assert.True(t, conn.isClosed())
	sess, err := h.store.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFinished, sess.Status)
	assert.Len(t, h.eval.calls(), 1)
}

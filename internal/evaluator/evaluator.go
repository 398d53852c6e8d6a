// Package evaluator scores a finished interview transcript.
package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/hubenschmidt/live-interview/internal/llm"
	"github.com/hubenschmidt/live-interview/internal/metrics"
	"github.com/hubenschmidt/live-interview/internal/outcome"
	"github.com/hubenschmidt/live-interview/internal/prompts"
)

// QAPair is a prepared question matched positionally with a candidate answer.
// CandidateAnswer is nil when the candidate gave fewer answers than there are questions.
type QAPair struct {
	Question        string  `json:"question"`
	IdealAnswer     string  `json:"ideal_answer"`
	CandidateAnswer *string `json:"candidate_answer"`
}

// Request carries everything needed to score one session.
type Request struct {
	Role       string
	Difficulty string
	Domain     string
	Transcript string
	Pairs      []QAPair
}

// Scores is the evaluation of one session. Rubric is JSON text.
type Scores struct {
	Technical     int    `json:"technical"`
	Communication int    `json:"communication"`
	Confidence    int    `json:"confidence"`
	Strengths     string `json:"strengths"`
	Summary       string `json:"summary"`
	Rubric        string `json:"rubric"`
}

// Evaluator scores transcripts with an LLM.
type Evaluator struct {
	llm     llm.Completer
	timeout time.Duration
	intn    func(n int) int
}

// New creates an evaluator. With a nil completer every request is answered
// with heuristic scores.
func New(c llm.Completer, timeout time.Duration) *Evaluator {
	return &Evaluator{llm: c, timeout: timeout, intn: rand.IntN}
}

// Evaluate never fails; degraded results carry heuristic or fixed fallback scores.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) outcome.Result[Scores] {
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("evaluate").Observe(time.Since(start).Seconds()) }()

	if e.llm == nil {
		metrics.Degraded.WithLabelValues("evaluate").Inc()
		return outcome.Degraded(e.heuristic(), nil)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	pairs, err := json.MarshalIndent(req.Pairs, "", "  ")
	if err != nil {
		return e.degrade(req, err)
	}
	reply, err := e.llm.Complete(ctx, prompts.EvaluateSystem,
		prompts.EvaluateTask(req.Role, req.Difficulty, req.Domain, string(pairs), req.Transcript))
	if err != nil {
		return e.degrade(req, err)
	}
	scores, err := parseScores(reply)
	if err != nil {
		return e.degrade(req, err)
	}
	return outcome.Ok(scores)
}

func (e *Evaluator) degrade(req Request, cause error) outcome.Result[Scores] {
	slog.Warn("evaluation degraded", "role", req.Role, "error", cause)
	metrics.Degraded.WithLabelValues("evaluate").Inc()
	return outcome.Degraded(Fallback(), cause)
}

func (e *Evaluator) heuristic() Scores {
	score := func() int { return 55 + e.intn(31) }
	return Scores{
		Technical:     score(),
		Communication: score(),
		Confidence:    score(),
		Strengths:     "Shows good grasp of fundamentals; answers structured.",
		Summary:       "Overall competent performance with room for deeper examples.",
		Rubric:        `{"note":"heuristic"}`,
	}
}

// Fallback is the fixed evaluation stored when scoring fails.
func Fallback() Scores {
	rubric, _ := json.Marshal(map[string]string{
		"technical":     "Assessed based on relevance and depth of technical responses",
		"communication": "Evaluated clarity, structure, and effectiveness of communication",
		"confidence":    "Measured by assertiveness and conviction in responses",
		"note":          "fallback evaluation due to processing error",
	})
	return Scores{
		Technical:     70,
		Communication: 70,
		Confidence:    70,
		Strengths:     "Clear communication and good foundational knowledge.",
		Summary:       "Solid overall performance with potential for growth in specific areas.",
		Rubric:        string(rubric),
	}
}

var requiredKeys = []string{"technical", "communication", "confidence", "strengths", "summary", "rubric"}

func parseScores(reply string) (Scores, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(llm.StripCodeFence(reply)), &raw); err != nil {
		return Scores{}, fmt.Errorf("parse evaluation: %w", err)
	}
	for _, k := range requiredKeys {
		if _, ok := raw[k]; !ok {
			return Scores{}, fmt.Errorf("parse evaluation: missing field %q", k)
		}
	}

	var s Scores
	var err error
	if s.Technical, err = score(raw["technical"]); err != nil {
		return Scores{}, fmt.Errorf("technical: %w", err)
	}
	if s.Communication, err = score(raw["communication"]); err != nil {
		return Scores{}, fmt.Errorf("communication: %w", err)
	}
	if s.Confidence, err = score(raw["confidence"]); err != nil {
		return Scores{}, fmt.Errorf("confidence: %w", err)
	}
	if s.Strengths, err = joinedText(raw["strengths"]); err != nil {
		return Scores{}, fmt.Errorf("strengths: %w", err)
	}
	if err = json.Unmarshal(raw["summary"], &s.Summary); err != nil {
		return Scores{}, fmt.Errorf("summary: %w", err)
	}
	s.Rubric = rubricText(raw["rubric"])
	return s, nil
}

// score accepts a JSON number or numeric string and clamps it to 0..100.
func score(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, errors.New("not a number")
		}
		if _, err := fmt.Sscanf(strings.TrimSpace(s), "%g", &f); err != nil {
			return 0, errors.New("not a number")
		}
	}
	if math.IsNaN(f) {
		return 0, errors.New("not a number")
	}
	return int(math.Round(math.Max(0, math.Min(100, f)))), nil
}

// joinedText accepts a string or a list of strings.
func joinedText(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", errors.New("want string or list of strings")
	}
	return strings.Join(list, ", "), nil
}

// rubricText keeps objects and lists as compact JSON and unwraps plain strings.
func rubricText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

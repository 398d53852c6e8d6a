// Package questions prepares the fixed question set for a new interview.
package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hubenschmidt/live-interview/internal/llm"
	"github.com/hubenschmidt/live-interview/internal/metrics"
	"github.com/hubenschmidt/live-interview/internal/outcome"
	"github.com/hubenschmidt/live-interview/internal/prompts"
)

// Brief describes the position being interviewed for.
type Brief struct {
	Role           string
	Difficulty     string
	Domain         string
	JobDescription string
}

// Item is one prepared question and the answer a strong candidate would give.
type Item struct {
	Question    string `json:"question"`
	IdealAnswer string `json:"ideal_answer"`
}

// Preparer generates questions with an LLM and falls back to a generic set.
type Preparer struct {
	llm     llm.Completer
	timeout time.Duration
}

// NewPreparer creates a preparer. A nil completer always yields the fallback set.
func NewPreparer(c llm.Completer, timeout time.Duration) *Preparer {
	return &Preparer{llm: c, timeout: timeout}
}

// Prepare returns an ordered, non-empty question list.
func (p *Preparer) Prepare(ctx context.Context, b Brief) outcome.Result[[]Item] {
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("prepare").Observe(time.Since(start).Seconds()) }()

	if p.llm == nil {
		return p.degrade(b, errors.New("no llm configured"))
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	reply, err := p.llm.Complete(ctx, prompts.PrepareSystem, prompts.PrepareTask(b.Role, b.Difficulty, b.Domain, b.JobDescription))
	if err != nil {
		return p.degrade(b, err)
	}
	items, err := parseItems(reply)
	if err != nil {
		return p.degrade(b, err)
	}
	return outcome.Ok(items)
}

func (p *Preparer) degrade(b Brief, cause error) outcome.Result[[]Item] {
	slog.Warn("question preparation degraded", "role", b.Role, "difficulty", b.Difficulty, "error", cause)
	metrics.Degraded.WithLabelValues("prepare").Inc()
	return outcome.Degraded(Fallback(), cause)
}

func parseItems(reply string) ([]Item, error) {
	var raw []Item
	if err := json.Unmarshal([]byte(llm.StripCodeFence(reply)), &raw); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	items := make([]Item, 0, len(raw))
	for _, it := range raw {
		it.Question = strings.TrimSpace(it.Question)
		it.IdealAnswer = strings.TrimSpace(it.IdealAnswer)
		if it.Question == "" {
			continue
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil, errors.New("parse questions: empty list")
	}
	return items, nil
}

// Fallback is the generic question set used when generation fails.
func Fallback() []Item {
	return []Item{
		{
			Question:    "Tell me about yourself and your experience relevant to this role.",
			IdealAnswer: "A concise summary of professional background, highlighting key experiences and achievements that align with the role requirements.",
		},
		{
			Question:    "What motivated you to apply for this position?",
			IdealAnswer: "A response that shows understanding of the company/role and connects personal goals with the opportunity.",
		},
		{
			Question:    "Describe a challenging project you worked on and how you approached it.",
			IdealAnswer: "A specific example that demonstrates problem-solving skills, technical expertise, and collaboration (if applicable).",
		},
		{
			Question:    "How do you stay updated with the latest developments in your field?",
			IdealAnswer: "Discussion of specific resources, communities, courses, or practices used for continuous learning.",
		},
		{
			Question:    "Where do you see yourself in 3-5 years?",
			IdealAnswer: "A response that shows ambition and growth mindset while aligning with potential career paths at the company.",
		},
	}
}

package interview

import (
	"strings"

	"github.com/hubenschmidt/live-interview/internal/prompts"
)

// Word-count bands for classifying a candidate response.
const (
	minSubstantiveWords = 4
	minDetailedWords    = 10
)

// Engine decides the interviewer's next prompt from the candidate's last
// response. It holds the prepared questions with the introduction prepended.
// An Engine is owned by a single session loop and is not safe for concurrent use.
type Engine struct {
	questions []string
	index     int
	issued    map[string]struct{}
	closed    bool
}

// NewEngine creates an engine positioned before the introductory question.
func NewEngine(questions []string) *Engine {
	qs := make([]string, 0, len(questions)+1)
	qs = append(qs, prompts.Intro)
	qs = append(qs, questions...)
	return &Engine{
		questions: qs,
		index:     -1,
		issued:    make(map[string]struct{}, len(qs)),
	}
}

// Next returns the prompt that follows response. A nil response, or one of
// three words or fewer, advances to the next question, as does a detailed
// answer of ten words or more. Anything in between is answered with the
// follow-up prompt and the question does not change. Once the questions are
// exhausted every call returns the closing prompt.
func (e *Engine) Next(response *string) string {
	if e.closed {
		return prompts.Closing
	}

	words := 0
	if response != nil {
		words = len(strings.Fields(*response))
	}
	if words >= minSubstantiveWords && words < minDetailedWords {
		return prompts.FollowUp
	}
	e.index++

	if e.index < len(e.questions) {
		q := e.questions[e.index]
		if _, seen := e.issued[q]; !seen {
			e.issued[q] = struct{}{}
			return q
		}
		return prompts.Closing
	}

	e.index = len(e.questions)
	e.closed = true
	return prompts.Closing
}

// Index is the position of the current question; -1 before the first call.
func (e *Engine) Index() int { return e.index }

// Len is the number of questions including the introduction.
func (e *Engine) Len() int { return len(e.questions) }

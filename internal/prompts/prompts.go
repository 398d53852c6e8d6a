// Package prompts holds the fixed interviewer texts and the LLM instructions
// used to prepare questions and score transcripts.
package prompts

import "fmt"

const (
	Intro = "Hello! I'm your AI interviewer. We'll have a short 15-minute audio interview. " +
		"I'll start with a quick intro from you, then a few targeted questions with possible follow-ups. Ready?"

	FollowUp = "Could you elaborate more on that? Please provide a specific example."

	Closing = "Thank you for your answers. That concludes our interview. Do you have any questions for me?"

	Completed = "Interview completed"

	NotReady = "invalid_or_not_ready"
)

const PrepareSystem = "You are an expert at creating targeted interview questions that assess candidates' skills, " +
	"experience, and cultural fit for specific roles. You tailor questions to seniority levels and industry domains. " +
	"Reply with JSON only."

const EvaluateSystem = "You are an interview evaluation specialist with deep knowledge of hiring practices. " +
	"You assess technical knowledge, communication, and confidence, and give constructive feedback. Reply with JSON only."

// PrepareTask builds the user message asking for a question set.
func PrepareTask(role, difficulty, domain, jobDescription string) string {
	return fmt.Sprintf(`Generate 6-10 interview questions for a %s position at %s level.
Domain: %s
Job Description: %s

Create questions that assess:
1. Technical skills relevant to the role
2. Behavioral and situational responses
3. Problem-solving abilities
4. Cultural fit and motivation

For each question, provide an ideal answer that demonstrates what a strong response would include.
Format the output as a JSON list with objects containing "question" and "ideal_answer" keys.`,
		role, difficulty, orUnspecified(domain), orUnspecified(jobDescription))
}

// EvaluateTask builds the user message asking for a scored evaluation.
// pairsJSON is the indented JSON of the question/answer pairs.
func EvaluateTask(role, difficulty, domain, pairsJSON, transcript string) string {
	return fmt.Sprintf(`Evaluate this interview for a %s position at %s level.
Domain: %s

Here are the Q&A pairs:
%s

Full transcript:
%s

Provide a comprehensive evaluation with:
1. Technical knowledge score (0-100)
2. Communication skills score (0-100)
3. Confidence level score (0-100)
4. Key strengths demonstrated
5. Overall summary of performance
6. Rubric or detailed breakdown of evaluation criteria

Format your response as valid JSON with these exact keys:
technical, communication, confidence, strengths, summary, rubric`,
		role, difficulty, orUnspecified(domain), pairsJSON, transcript)
}

func orUnspecified(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}

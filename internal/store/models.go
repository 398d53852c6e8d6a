package store

import "time"

// Status is the lifecycle state of an interview session.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusLive      Status = "live"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
)

var statusRank = map[Status]int{
	StatusCreated:   0,
	StatusPreparing: 1,
	StatusReady:     2,
	StatusLive:      3,
	StatusFinished:  4,
}

// Admits reports whether a session in this status may open a channel.
func (s Status) Admits() bool {
	return s == StatusReady || s == StatusLive
}

// CanTransition reports whether moving from one status to another keeps the
// lifecycle monotonic. Failed is terminal and reachable from anything but finished.
func CanTransition(from, to Status) bool {
	if from == StatusFailed {
		return to == StatusFailed
	}
	if to == StatusFailed {
		return from != StatusFinished
	}
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	return okFrom && okTo && toRank >= fromRank
}

// Session is one timed interview.
type Session struct {
	ID             string     `json:"id"`
	Role           string     `json:"role"`
	Difficulty     string     `json:"difficulty"`
	Domain         string     `json:"domain,omitempty"`
	JobDescription string     `json:"job_description,omitempty"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// QuestionItem is one prepared question with its reference answer.
type QuestionItem struct {
	SessionID   string `json:"session_id"`
	Question    string `json:"question"`
	IdealAnswer string `json:"ideal_answer"`
	OrderIdx    int    `json:"order_idx"`
}

// Speaker tags who produced a message.
type Speaker string

const (
	SpeakerInterviewer Speaker = "interviewer"
	SpeakerCandidate   Speaker = "candidate"
)

// Message is a single recorded turn.
type Message struct {
	SessionID string    `json:"session_id"`
	Who       Speaker   `json:"who"`
	Text      string    `json:"text"`
	TS        time.Time `json:"ts"`
}

// Evaluation is the scored outcome of a finished session.
type Evaluation struct {
	SessionID     string    `json:"session_id"`
	Technical     float64   `json:"technical"`
	Communication float64   `json:"communication"`
	Confidence    float64   `json:"confidence"`
	Strengths     string    `json:"strengths"`
	Summary       string    `json:"summary"`
	Rubric        string    `json:"rubric,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

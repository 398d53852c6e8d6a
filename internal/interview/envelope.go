package interview

import (
	"encoding/json"
	"time"
)

// Outbound envelope types.
const (
	TypeStatus           = "status"
	TypeInterviewerText  = "interviewer_text"
	TypeInterviewerAudio = "interviewer_audio"
	TypeTimer            = "timer"
	TypeTranscript       = "transcript"
)

// Inbound envelope types.
const (
	TypeCandidateText = "candidate_text"
	TypeControl       = "control"
)

// ActionStop is the control action that ends the interview.
const ActionStop = "stop"

// Envelope wraps every frame exchanged on the interview channel.
type Envelope struct {
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
	Data any       `json:"data"`
}

// Outbound payloads.
type (
	StatusData struct {
		Message string `json:"message,omitempty"`
		Error   string `json:"error,omitempty"`
	}
	TextData struct {
		Text string `json:"text"`
	}
	AudioData struct {
		URL string `json:"url"`
	}
	TimerData struct {
		Remaining int `json:"remaining"`
	}
	TranscriptData struct {
		Who  string `json:"who"`
		Text string `json:"text"`
	}
)

func newEnvelope(typ string, data any) Envelope {
	return Envelope{Type: typ, TS: time.Now().UTC(), Data: data}
}

// inbound is an envelope as read from the candidate; Data is decoded per type.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type candidateText struct {
	Text *string `json:"text"`
}

type control struct {
	Action string `json:"action"`
}

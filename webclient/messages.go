package webclient

import (
	"github.com/zeu5/rps-arena/rps"
)

type MessageType string

const (
	// MessageTrial announces the trial the page plays in
	MessageTrial       MessageType = "trial"
	MessageObservation MessageType = "observation"
	MessageEnd         MessageType = "end"
	MessageError       MessageType = "error"
)

// ServerMessage is pushed to the page as JSON
type ServerMessage struct {
	Type        MessageType      `json:"type"`
	TrialID     string           `json:"trial_id,omitempty"`
	Round       int              `json:"round"`
	Observation *rps.Observation `json:"observation,omitempty"`
	// Active is set when the page is expected to play
	Active bool   `json:"active"`
	Error  string `json:"error,omitempty"`
}

// ClientMessage is a move sent by the page
type ClientMessage struct {
	Move rps.Move `json:"move"`
}

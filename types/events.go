package types

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// EventType tells an actor or environment where the trial is in its lifecycle
// when an event is delivered.
type EventType int

const (
	// Active events expect an answer (an action from actors, observations from the environment)
	EventActive EventType = iota
	// Ending events are delivered once the trial is wrapping up, no answer is expected
	EventEnding
	// Final is the last event of a session, the event channel is closed right after
	EventFinal
)

func (e EventType) String() string {
	switch e {
	case EventActive:
		return "ACTIVE"
	case EventEnding:
		return "ENDING"
	case EventFinal:
		return "FINAL"
	}
	return fmt.Sprintf("EventType(%d)", int(e))
}

func (e EventType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *EventType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ACTIVE":
		*e = EventActive
	case "ENDING":
		*e = EventEnding
	case "FINAL":
		*e = EventFinal
	default:
		return errors.Errorf("unknown event type %q", string(b))
	}
	return nil
}

// AllActors is the receiver wildcard for rewards and messages
const AllActors = "*"

// Reward sent by the environment (or another actor) to one receiver
type Reward struct {
	TickID     uint64  `json:"tick_id"`
	Sender     string  `json:"sender"`
	Receiver   string  `json:"receiver"`
	Value      float32 `json:"value"`
	Confidence float32 `json:"confidence"`
}

// Message is an opaque payload exchanged between participants
type Message struct {
	TickID   uint64          `json:"tick_id"`
	Sender   string          `json:"sender"`
	Receiver string          `json:"receiver"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// ActorEvent is what an actor receives from its session event loop
type ActorEvent struct {
	Type        EventType       `json:"type"`
	TickID      uint64          `json:"tick_id"`
	Observation json.RawMessage `json:"observation,omitempty"`
	Rewards     []Reward        `json:"rewards,omitempty"`
	Messages    []Message       `json:"messages,omitempty"`
}

// HasObservation is true when the event carries an observation
func (e ActorEvent) HasObservation() bool {
	return len(e.Observation) > 0
}

// RecvAction is the action of one actor for a tick, as seen by the environment
type RecvAction struct {
	ActorName string          `json:"actor_name"`
	TickID    uint64          `json:"tick_id"`
	Action    json.RawMessage `json:"action,omitempty"`
	// Missing is set when the actor did not act in time
	Missing bool `json:"missing,omitempty"`
}

// EnvironmentEvent is what the environment receives from its session event loop
type EnvironmentEvent struct {
	Type     EventType    `json:"type"`
	TickID   uint64       `json:"tick_id"`
	Actions  []RecvAction `json:"actions,omitempty"`
	Messages []Message    `json:"messages,omitempty"`
}

// ActorObservation addresses an observation to an actor (or AllActors)
type ActorObservation struct {
	ActorName   string          `json:"actor_name"`
	Observation json.RawMessage `json:"observation"`
}

package types

import (
	"encoding/json"
	"time"
)

// ActorSample is what one actor saw and did during a tick
type ActorSample struct {
	ActorName   string          `json:"actor_name"`
	Observation json.RawMessage `json:"observation,omitempty"`
	Action      json.RawMessage `json:"action,omitempty"`
	// Reward is the sum of the rewards received for the tick
	Reward  float32 `json:"reward"`
	Missing bool    `json:"missing,omitempty"`
}

// Sample of a trial, one per tick
type Sample struct {
	TrialID   string        `json:"trial_id"`
	TickID    uint64        `json:"tick_id"`
	Timestamp time.Time     `json:"timestamp"`
	State     TrialState    `json:"state"`
	Actors    []ActorSample `json:"actors"`
}

// Actor returns the sample of the given actor
func (s *Sample) Actor(name string) (*ActorSample, bool) {
	for i := range s.Actors {
		if s.Actors[i].ActorName == name {
			return &s.Actors[i], true
		}
	}
	return nil, false
}

// Trace of a trial as the ordered list of samples
type Trace struct {
	samples []*Sample
}

func NewTrace() *Trace {
	return &Trace{
		samples: make([]*Sample, 0),
	}
}

func (t *Trace) Slice(from, to int) *Trace {
	slicedTrace := NewTrace()
	for i := from; i < to && i < len(t.samples); i++ {
		slicedTrace.Append(t.samples[i])
	}
	return slicedTrace
}

func (t *Trace) Append(s *Sample) {
	t.samples = append(t.samples, s)
}

func (t *Trace) Len() int {
	return len(t.samples)
}

func (t *Trace) Get(i int) (*Sample, bool) {
	if i < 0 || i >= len(t.samples) {
		return nil, false
	}
	return t.samples[i], true
}

func (t *Trace) Last() (*Sample, bool) {
	if len(t.samples) < 1 {
		return nil, false
	}
	return t.samples[len(t.samples)-1], true
}

// GetPrefix returns the first i samples
func (t *Trace) GetPrefix(i int) (*Trace, bool) {
	if i > len(t.samples) {
		return nil, false
	}
	return &Trace{
		samples: t.samples[0:i],
	}, true
}

// Rewards sums the rewards received by each actor over the trace
func (t *Trace) Rewards() map[string]float32 {
	out := make(map[string]float32)
	for _, s := range t.samples {
		for _, a := range s.Actors {
			out[a.ActorName] += a.Reward
		}
	}
	return out
}

func (t *Trace) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.samples)
}

func (t *Trace) UnmarshalJSON(b []byte) error {
	samples := make([]*Sample, 0)
	if err := json.Unmarshal(b, &samples); err != nil {
		return err
	}
	t.samples = samples
	return nil
}

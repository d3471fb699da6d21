package types

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrAlreadyStarted = errors.New("session already started")
)

// ActorImpl is the implementation of an actor, it runs for the whole duration of a trial.
// The implementation must call Start and then consume Events until the channel is closed.
type ActorImpl func(context.Context, *ActorSession) error

// EnvironmentImpl is the implementation of an environment, it runs for the whole duration of a trial.
type EnvironmentImpl func(context.Context, *EnvironmentSession) error

// ActorInfo describes an actor of a trial
type ActorInfo struct {
	Name      string `json:"name"`
	ClassName string `json:"class_name"`
	ImplName  string `json:"implementation"`
}

// ActorOutput is produced by the actor for the runtime, either an action or a message
type ActorOutput struct {
	TickID  uint64          `json:"tick_id"`
	Action  json.RawMessage `json:"action,omitempty"`
	Message *Message        `json:"message,omitempty"`
}

type session struct {
	TrialID string
	Config  json.RawMessage

	started   chan struct{}
	startOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once
	tickID    atomic.Uint64
}

func (s *session) init(trialID string, config json.RawMessage) {
	s.TrialID = trialID
	s.Config = config
	s.started = make(chan struct{})
	s.done = make(chan struct{})
}

// Started is closed once the implementation called Start
func (s *session) Started() <-chan struct{} {
	return s.started
}

// Done is closed once the runtime closed the session
func (s *session) Done() <-chan struct{} {
	return s.done
}

// Close releases the implementation blocked on sending
func (s *session) Close() {
	s.doneOnce.Do(func() { close(s.done) })
}

// TickID of the last event delivered
func (s *session) TickID() uint64 {
	return s.tickID.Load()
}

// ActorSession is the handle an actor implementation uses to interact with a trial.
// The runtime side (orchestrator or transport) uses Deliver, Outputs and CloseEvents.
type ActorSession struct {
	session
	ActorInfo

	events  chan ActorEvent
	outputs chan ActorOutput
}

func NewActorSession(trialID string, info ActorInfo, config json.RawMessage) *ActorSession {
	a := &ActorSession{
		ActorInfo: info,
		events:    make(chan ActorEvent, 4),
		outputs:   make(chan ActorOutput, 16),
	}
	a.init(trialID, config)
	return a
}

// Start signals that the actor is ready to receive events
func (a *ActorSession) Start() {
	a.startOnce.Do(func() { close(a.started) })
}

// Events returns the event loop of the actor, closed after the final event
func (a *ActorSession) Events() <-chan ActorEvent {
	return a.events
}

// DoAction sends the action for the current tick
func (a *ActorSession) DoAction(action json.RawMessage) error {
	return a.send(ActorOutput{TickID: a.TickID(), Action: action})
}

// SendMessage sends a message to another actor, the environment or AllActors
func (a *ActorSession) SendMessage(to string, payload json.RawMessage) error {
	return a.send(ActorOutput{
		TickID: a.TickID(),
		Message: &Message{
			TickID:   a.TickID(),
			Sender:   a.Name,
			Receiver: to,
			Payload:  payload,
		},
	})
}

func (a *ActorSession) send(out ActorOutput) error {
	select {
	case <-a.done:
		return ErrSessionClosed
	default:
	}
	select {
	case a.outputs <- out:
		return nil
	case <-a.done:
		return ErrSessionClosed
	}
}

// Loop starts the session and calls handle for every event until the trial is over
func (a *ActorSession) Loop(ctx context.Context, handle func(ActorEvent) error) error {
	a.Start()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-a.events:
			if !ok {
				return nil
			}
			if err := handle(ev); err != nil {
				return err
			}
		}
	}
}

// Forward an output produced by a remote actor, keeping its tick id
func (a *ActorSession) Forward(out ActorOutput) error {
	return a.send(out)
}

// Deliver an event to the actor, blocks until the actor takes it or the context is cancelled
func (a *ActorSession) Deliver(ctx context.Context, e ActorEvent) error {
	a.tickID.Store(e.TickID)
	select {
	case a.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrSessionClosed
	}
}

// Outputs produced by the actor (actions and messages)
func (a *ActorSession) Outputs() <-chan ActorOutput {
	return a.outputs
}

// CloseEvents ends the event loop of the actor
func (a *ActorSession) CloseEvents() {
	close(a.events)
}

// EnvironmentOutputKind distinguishes the outputs of the environment
type EnvironmentOutputKind int

const (
	OutputStart EnvironmentOutputKind = iota
	OutputObservations
	OutputEnd
	OutputMessage
)

// EnvironmentOutput carries observations, along with the rewards accumulated since the last one
type EnvironmentOutput struct {
	Kind         EnvironmentOutputKind `json:"kind"`
	TickID       uint64                `json:"tick_id"`
	Observations []ActorObservation    `json:"observations,omitempty"`
	Rewards      []Reward              `json:"rewards,omitempty"`
	Message      *Message              `json:"message,omitempty"`
}

// EnvironmentSession is the handle an environment implementation uses to drive a trial
type EnvironmentSession struct {
	session
	Name     string
	ImplName string

	actors  []ActorInfo
	events  chan EnvironmentEvent
	outputs chan EnvironmentOutput

	lock    sync.Mutex
	rewards []Reward
	ended   bool
}

func NewEnvironmentSession(trialID, name, implName string, actors []ActorInfo, config json.RawMessage) *EnvironmentSession {
	e := &EnvironmentSession{
		Name:     name,
		ImplName: implName,
		actors:   actors,
		events:   make(chan EnvironmentEvent, 4),
		outputs:  make(chan EnvironmentOutput, 16),
		rewards:  make([]Reward, 0),
	}
	e.init(trialID, config)
	return e
}

// ActiveActors of the trial, in the order of the trial parameters
func (e *EnvironmentSession) ActiveActors() []ActorInfo {
	out := make([]ActorInfo, len(e.actors))
	copy(out, e.actors)
	return out
}

// Start the trial with the initial observations
func (e *EnvironmentSession) Start(observations []ActorObservation) error {
	alreadyStarted := true
	e.startOnce.Do(func() {
		alreadyStarted = false
		close(e.started)
	})
	if alreadyStarted {
		return ErrAlreadyStarted
	}
	return e.send(EnvironmentOutput{Kind: OutputStart, TickID: 0, Observations: observations})
}

// Events returns the event loop of the environment
func (e *EnvironmentSession) Events() <-chan EnvironmentEvent {
	return e.events
}

// AddReward to the given actors (AllActors if none), delivered with the next observations
func (e *EnvironmentSession) AddReward(value, confidence float32, to ...string) {
	if len(to) == 0 {
		to = []string{AllActors}
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	for _, receiver := range to {
		e.rewards = append(e.rewards, Reward{
			TickID:     e.TickID(),
			Sender:     e.Name,
			Receiver:   receiver,
			Value:      value,
			Confidence: confidence,
		})
	}
}

// ProduceObservations for the next tick
func (e *EnvironmentSession) ProduceObservations(observations []ActorObservation) error {
	return e.send(EnvironmentOutput{
		Kind:         OutputObservations,
		TickID:       e.TickID(),
		Observations: observations,
		Rewards:      e.flushRewards(),
	})
}

// End the trial with the final observations
func (e *EnvironmentSession) End(observations []ActorObservation) error {
	e.lock.Lock()
	if e.ended {
		e.lock.Unlock()
		return nil
	}
	e.ended = true
	e.lock.Unlock()
	return e.send(EnvironmentOutput{
		Kind:         OutputEnd,
		TickID:       e.TickID(),
		Observations: observations,
		Rewards:      e.flushRewards(),
	})
}

// SendMessage to an actor or AllActors
func (e *EnvironmentSession) SendMessage(to string, payload json.RawMessage) error {
	return e.send(EnvironmentOutput{
		Kind:   OutputMessage,
		TickID: e.TickID(),
		Message: &Message{
			TickID:   e.TickID(),
			Sender:   e.Name,
			Receiver: to,
			Payload:  payload,
		},
	})
}

func (e *EnvironmentSession) flushRewards() []Reward {
	e.lock.Lock()
	defer e.lock.Unlock()
	out := e.rewards
	e.rewards = make([]Reward, 0)
	return out
}

func (e *EnvironmentSession) send(out EnvironmentOutput) error {
	select {
	case <-e.done:
		return ErrSessionClosed
	default:
	}
	select {
	case e.outputs <- out:
		return nil
	case <-e.done:
		return ErrSessionClosed
	}
}

// Forward an output produced by a remote environment, rewards are already attached
func (e *EnvironmentSession) Forward(out EnvironmentOutput) error {
	switch out.Kind {
	case OutputStart:
		e.startOnce.Do(func() { close(e.started) })
	case OutputEnd:
		e.lock.Lock()
		e.ended = true
		e.lock.Unlock()
	}
	return e.send(out)
}

// Deliver an event to the environment
func (e *EnvironmentSession) Deliver(ctx context.Context, ev EnvironmentEvent) error {
	e.tickID.Store(ev.TickID)
	select {
	case e.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrSessionClosed
	}
}

// Outputs produced by the environment
func (e *EnvironmentSession) Outputs() <-chan EnvironmentOutput {
	return e.outputs
}

// CloseEvents ends the event loop of the environment
func (e *EnvironmentSession) CloseEvents() {
	close(e.events)
}

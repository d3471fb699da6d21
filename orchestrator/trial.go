package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/zeu5/rps-arena/types"
)

// DefaultEnvironmentName is the name of the environment when the parameters do not set one
const DefaultEnvironmentName = "env"

type actorSlot struct {
	params  types.ActorParameters
	session *types.ActorSession
	impl    types.ActorImpl
	client  bool
	// closed once the client actor joined
	joined     chan struct{}
	joinedFlag bool
	// set before the final event is delivered, the actor may leave from then on
	finalSent bool
}

type taggedOutput struct {
	actor string
	out   types.ActorOutput
}

type trial struct {
	id      string
	params  types.TrialParameters
	envName string
	report  *types.TrialReport

	lock      sync.Mutex
	state     types.TrialState
	tickID    uint64
	startTime time.Time
	endTime   time.Time
	trace     *types.Trace
	err       error
	softEnd   bool
	over      bool

	actors  []*actorSlot
	env     *types.EnvironmentSession
	envImpl types.EnvironmentImpl

	actorOutputs chan taggedOutput

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *trial) info() types.TrialInfo {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.infoLocked()
}

func (t *trial) infoLocked() types.TrialInfo {
	end := t.endTime
	if end.IsZero() {
		end = time.Now()
	}
	props := make(map[string]string, len(t.params.Properties))
	for k, v := range t.params.Properties {
		props[k] = v
	}
	errMsg := ""
	if t.err != nil {
		errMsg = t.err.Error()
	}
	return types.TrialInfo{
		TrialID:         t.id,
		State:           t.state,
		TickID:          t.tickID,
		Duration:        end.Sub(t.startTime),
		EnvironmentName: t.envName,
		Properties:      props,
		Error:           errMsg,
	}
}

func (t *trial) setTick(tick uint64) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.tickID = tick
}

// abort records the first error and stops the trial
func (t *trial) abort(err error) {
	t.lock.Lock()
	if t.err == nil && !t.over {
		t.err = err
	}
	t.lock.Unlock()
	t.cancel()
}

// finished is true when the trial is over or name already got its final event
func (t *trial) finished(name string) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.over {
		return true
	}
	for _, s := range t.actors {
		if s.params.Name == name {
			return s.finalSent
		}
	}
	return false
}

func (t *trial) endRequested() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.softEnd
}

func (t *trial) slot(name string) (*actorSlot, bool) {
	for _, s := range t.actors {
		if s.params.Name == name {
			return s, true
		}
	}
	return nil, false
}

// forward tags the outputs of an actor into the trial fan-in channel
func (t *trial) forward(slot *actorSlot) {
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-slot.session.Done():
			return
		case out := <-slot.session.Outputs():
			select {
			case t.actorOutputs <- taggedOutput{actor: slot.params.Name, out: out}:
			case <-t.ctx.Done():
				return
			}
		}
	}
}

func observationFor(obs []types.ActorObservation, name string) []byte {
	var all []byte
	for _, o := range obs {
		if o.ActorName == name {
			return o.Observation
		}
		if o.ActorName == types.AllActors {
			all = o.Observation
		}
	}
	return all
}

func rewardsFor(rewards []types.Reward, name string) []types.Reward {
	out := make([]types.Reward, 0)
	for _, r := range rewards {
		if r.Receiver == name || r.Receiver == types.AllActors {
			out = append(out, r)
		}
	}
	return out
}

func rewardSum(rewards []types.Reward) float32 {
	total := float32(0)
	for _, r := range rewards {
		total += r.Value
	}
	return total
}

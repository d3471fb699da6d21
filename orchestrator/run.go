package orchestrator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/types"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

func (o *Orchestrator) run(t *trial) {
	defer close(t.done)
	g := new(errgroup.Group)

	err := o.runTrial(t, g)
	if err != nil {
		t.abort(err)
	}

	o.setState(t, types.TrialTerminating)
	t.lock.Lock()
	t.over = true
	trialErr := t.err
	t.lock.Unlock()
	if trialErr != nil {
		t.report.AddLog(trialErr.Error(), "error")
	}

	t.env.CloseEvents()
	for _, slot := range t.actors {
		slot.session.CloseEvents()
	}
	t.cancel()

	waited := make(chan error, 1)
	go func() { waited <- g.Wait() }()
	select {
	case <-waited:
	case <-time.After(o.cfg.ShutdownTimeout):
		klog.Errorf("trial %s: implementations still running after %s", t.id, o.cfg.ShutdownTimeout)
	}
	t.env.Close()
	for _, slot := range t.actors {
		slot.session.Close()
	}

	o.setState(t, types.TrialEnded)
	if trialErr != nil {
		klog.V(1).Infof("trial %s ended: %v", t.id, trialErr)
	} else {
		klog.V(1).Infof("trial %s ended after %d ticks", t.id, t.info().TickID)
	}
	o.forget(t)
}

func (o *Orchestrator) waitJoins(t *trial) error {
	var timeout <-chan time.Time
	if o.cfg.JoinTimeout > 0 {
		timer := time.NewTimer(o.cfg.JoinTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	for _, slot := range t.actors {
		if !slot.client {
			continue
		}
		select {
		case <-slot.joined:
		case <-t.ctx.Done():
			return t.ctx.Err()
		case <-timeout:
			return errors.Wrapf(ErrJoinTimeout, "actor %s", slot.params.Name)
		}
	}
	return nil
}

func (o *Orchestrator) runTrial(t *trial, g *errgroup.Group) error {
	o.setState(t, types.TrialPending)
	if err := o.waitJoins(t); err != nil {
		return err
	}

	g.Go(func() error {
		err := t.envImpl(t.ctx, t.env)
		o.participantDone(t, t.envName, err)
		return err
	})
	for _, slot := range t.actors {
		slot := slot
		go t.forward(slot)
		if slot.client {
			continue
		}
		g.Go(func() error {
			err := slot.impl(t.ctx, slot.session)
			o.participantDone(t, slot.params.Name, err)
			return err
		})
	}

	mail := newMailbox(t.envName, t.actors)
	start, err := o.waitEnvironment(t, mail)
	if err != nil {
		return err
	}
	if start.Kind != types.OutputStart {
		return errors.Errorf("environment produced %d before starting", start.Kind)
	}
	o.setState(t, types.TrialRunning)
	klog.V(1).Infof("trial %s running", t.id)

	obs := start.Observations
	rewards := make([]types.Reward, 0)
	for tick := uint64(0); ; tick++ {
		t.setTick(tick)
		t.report.SetTick(tick)
		tickStart := time.Now()

		for _, slot := range t.actors {
			ev := types.ActorEvent{
				Type:        types.EventActive,
				TickID:      tick,
				Observation: observationFor(obs, slot.params.Name),
				Rewards:     rewardsFor(rewards, slot.params.Name),
				Messages:    mail.takeActor(slot.params.Name),
			}
			if err := slot.session.Deliver(t.ctx, ev); err != nil {
				return errors.Wrapf(err, "delivering tick %d to %s", tick, slot.params.Name)
			}
		}

		actions, err := o.collectActions(t, tick, mail)
		if err != nil {
			return err
		}
		t.report.AddTimeEntry(time.Since(tickStart), "action_latency", "orchestrator.collectActions")

		evType := types.EventActive
		if (t.params.MaxSteps > 0 && tick+1 >= t.params.MaxSteps) || t.endRequested() {
			evType = types.EventEnding
		}
		envEvent := types.EnvironmentEvent{
			Type:     evType,
			TickID:   tick,
			Actions:  actions,
			Messages: mail.takeEnv(),
		}
		if err := t.env.Deliver(t.ctx, envEvent); err != nil {
			return errors.Wrapf(err, "delivering tick %d to the environment", tick)
		}
		out, err := o.waitEnvironment(t, mail)
		if err != nil {
			return err
		}
		t.report.AddTimeEntry(time.Since(tickStart), "tick_latency", "orchestrator.runTrial")
		o.record(t, o.sample(t, tick, obs, actions, out.Rewards))

		switch {
		case out.Kind == types.OutputEnd || evType == types.EventEnding:
			return o.finish(t, tick+1, out, mail)
		case out.Kind == types.OutputObservations:
			obs = out.Observations
			rewards = out.Rewards
		default:
			return errors.Wrapf(ErrEnvironmentEnded, "unexpected output %d at tick %d", out.Kind, tick)
		}
	}
}

// collectActions waits for one action per actor for the tick
// With MaxInactivity set, actors that did not act in time are marked missing,
// the trial fails when none of them acted
func (o *Orchestrator) collectActions(t *trial, tick uint64, mail *mailbox) ([]types.RecvAction, error) {
	received := make(map[string]types.RecvAction)
	var timeout <-chan time.Time
	if t.params.MaxInactivity > 0 {
		timer := time.NewTimer(t.params.MaxInactivity)
		defer timer.Stop()
		timeout = timer.C
	}

	for len(received) < len(t.actors) {
		select {
		case <-t.ctx.Done():
			return nil, t.ctx.Err()
		case <-timeout:
			if len(received) == 0 {
				return nil, errors.Wrapf(ErrInactive, "no action for tick %d after %s", tick, t.params.MaxInactivity)
			}
			t.report.AddIntEntry(len(t.actors)-len(received), "missing_actions", "orchestrator.collectActions")
			for _, slot := range t.actors {
				if _, ok := received[slot.params.Name]; !ok {
					klog.V(1).Infof("trial %s: %s did not act at tick %d", t.id, slot.params.Name, tick)
					received[slot.params.Name] = types.RecvAction{ActorName: slot.params.Name, TickID: tick, Missing: true}
				}
			}
		case tagged := <-t.actorOutputs:
			if tagged.out.Message != nil {
				mail.route(*tagged.out.Message)
			}
			if len(tagged.out.Action) == 0 {
				continue
			}
			if tagged.out.TickID != tick {
				klog.V(2).Infof("trial %s: dropping action of %s for tick %d at tick %d", t.id, tagged.actor, tagged.out.TickID, tick)
				continue
			}
			if _, ok := received[tagged.actor]; ok {
				continue
			}
			received[tagged.actor] = types.RecvAction{ActorName: tagged.actor, TickID: tick, Action: tagged.out.Action}
		}
	}

	actions := make([]types.RecvAction, len(t.actors))
	for i, slot := range t.actors {
		actions[i] = received[slot.params.Name]
	}
	return actions, nil
}

// waitEnvironment returns the next output of the environment that is not a message
func (o *Orchestrator) waitEnvironment(t *trial, mail *mailbox) (types.EnvironmentOutput, error) {
	for {
		select {
		case <-t.ctx.Done():
			return types.EnvironmentOutput{}, t.ctx.Err()
		case tagged := <-t.actorOutputs:
			if tagged.out.Message != nil {
				mail.route(*tagged.out.Message)
			}
		case out := <-t.env.Outputs():
			if out.Kind == types.OutputMessage {
				if out.Message != nil {
					mail.route(*out.Message)
				}
				continue
			}
			return out, nil
		}
	}
}

// finish delivers the final observations and rewards, then the final events
func (o *Orchestrator) finish(t *trial, tick uint64, out types.EnvironmentOutput, mail *mailbox) error {
	t.setTick(tick)
	for _, slot := range t.actors {
		ending := types.ActorEvent{
			Type:        types.EventEnding,
			TickID:      tick,
			Observation: observationFor(out.Observations, slot.params.Name),
			Rewards:     rewardsFor(out.Rewards, slot.params.Name),
			Messages:    mail.takeActor(slot.params.Name),
		}
		if err := slot.session.Deliver(t.ctx, ending); err != nil {
			return errors.Wrapf(err, "delivering ending to %s", slot.params.Name)
		}
		t.lock.Lock()
		slot.finalSent = true
		t.lock.Unlock()
		if err := slot.session.Deliver(t.ctx, types.ActorEvent{Type: types.EventFinal, TickID: tick}); err != nil {
			return errors.Wrapf(err, "delivering final event to %s", slot.params.Name)
		}
	}
	final := &types.Sample{
		TrialID:   t.id,
		TickID:    tick,
		Timestamp: time.Now(),
		State:     types.TrialTerminating,
		Actors:    make([]types.ActorSample, len(t.actors)),
	}
	for i, slot := range t.actors {
		final.Actors[i] = types.ActorSample{
			ActorName:   slot.params.Name,
			Observation: observationFor(out.Observations, slot.params.Name),
		}
	}
	o.record(t, final)

	t.lock.Lock()
	t.over = true
	t.lock.Unlock()
	if err := t.env.Deliver(t.ctx, types.EnvironmentEvent{Type: types.EventFinal, TickID: tick, Messages: mail.takeEnv()}); err != nil {
		klog.V(1).Infof("trial %s: final event not delivered to the environment: %v", t.id, err)
	}
	return nil
}

func (o *Orchestrator) sample(t *trial, tick uint64, obs []types.ActorObservation, actions []types.RecvAction, rewards []types.Reward) *types.Sample {
	s := &types.Sample{
		TrialID:   t.id,
		TickID:    tick,
		Timestamp: time.Now(),
		State:     types.TrialRunning,
		Actors:    make([]types.ActorSample, len(t.actors)),
	}
	for i, slot := range t.actors {
		name := slot.params.Name
		s.Actors[i] = types.ActorSample{
			ActorName:   name,
			Observation: observationFor(obs, name),
			Action:      actions[i].Action,
			Reward:      rewardSum(rewardsFor(rewards, name)),
			Missing:     actions[i].Missing,
		}
	}
	return s
}

func (o *Orchestrator) record(t *trial, s *types.Sample) {
	t.lock.Lock()
	t.trace.Append(s)
	t.lock.Unlock()
	if o.store == nil || !t.params.DatalogEnabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.AddSample(ctx, s); err != nil {
		klog.Errorf("trial %s: recording sample %d: %v", t.id, s.TickID, err)
	}
}

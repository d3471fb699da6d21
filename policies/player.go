package policies

import (
	"context"

	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
	"k8s.io/klog/v2"
)

// DecideFunc picks the next move given the last observation
type DecideFunc func(ctx context.Context, obs *rps.Observation) (rps.Move, error)

// PlayerLoop builds an actor acting with decide on every active observation
func PlayerLoop(decide DecideFunc) types.ActorImpl {
	return func(ctx context.Context, s *types.ActorSession) error {
		return s.Loop(ctx, func(ev types.ActorEvent) error {
			LogEvent(s, ev)
			if ev.Type != types.EventActive || !ev.HasObservation() {
				return nil
			}
			obs, err := rps.DecodeObservation(ev.Observation)
			if err != nil {
				return err
			}
			move, err := decide(ctx, obs)
			if err != nil {
				return err
			}
			action, err := rps.EncodeAction(move)
			if err != nil {
				return err
			}
			return s.DoAction(action)
		})
	}
}

// LogEvent traces what an actor receives at increasing klog verbosity
func LogEvent(s *types.ActorSession, ev types.ActorEvent) {
	if ev.HasObservation() {
		klog.V(3).Infof("'%s' received an observation: '%s'", s.Name, string(ev.Observation))
	}
	for _, r := range ev.Rewards {
		klog.V(2).Infof("'%s' received a reward for tick #%d: %g", s.Name, r.TickID, r.Value)
	}
	for _, m := range ev.Messages {
		klog.V(2).Infof("'%s' received a message from '%s': %s", s.Name, m.Sender, string(m.Payload))
	}
}

// Random plays a uniformly random move
func Random(r *Rand) DecideFunc {
	return func(_ context.Context, _ *rps.Observation) (rps.Move, error) {
		return rps.Moves[r.Intn(len(rps.Moves))], nil
	}
}

// Heuristic repeats its move after a win, plays what beats the opponent after a loss
// and plays randomly after a draw
func Heuristic(r *Rand) DecideFunc {
	random := Random(r)
	return func(ctx context.Context, obs *rps.Observation) (rps.Move, error) {
		switch {
		case obs.Me.WonLast && obs.Me.LastMove.Valid():
			return obs.Me.LastMove, nil
		case obs.Them.WonLast && obs.Them.LastMove.Valid():
			return rps.Defeats[obs.Them.LastMove], nil
		}
		return random(ctx, obs)
	}
}

// Rock always plays rock
func Rock() DecideFunc {
	return func(_ context.Context, _ *rps.Observation) (rps.Move, error) {
		return rps.Rock, nil
	}
}

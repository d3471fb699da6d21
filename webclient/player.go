package webclient

import (
	"context"

	"github.com/zeu5/rps-arena/policies"
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
)

// humanPlayer publishes every observation to updates and plays the moves read from moves
func humanPlayer(updates chan<- ServerMessage, moves <-chan rps.Move) types.ActorImpl {
	return func(ctx context.Context, s *types.ActorSession) error {
		round := 0
		return s.Loop(ctx, func(ev types.ActorEvent) error {
			policies.LogEvent(s, ev)
			if !ev.HasObservation() {
				return nil
			}
			obs, err := rps.DecodeObservation(ev.Observation)
			if err != nil {
				return err
			}
			active := ev.Type == types.EventActive
			msg := ServerMessage{
				Type:        MessageObservation,
				TrialID:     s.TrialID,
				Round:       round,
				Observation: obs,
				Active:      active,
			}
			select {
			case updates <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
			if !active {
				return nil
			}

			var move rps.Move
			select {
			case move = <-moves:
			case <-ctx.Done():
				return ctx.Err()
			}
			action, err := rps.EncodeAction(move)
			if err != nil {
				return err
			}
			round += 1
			return s.DoAction(action)
		})
	}
}

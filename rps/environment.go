package rps

import (
	"context"

	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/types"
	"k8s.io/klog/v2"
)

// gameState is the state of the environment during one trial
type gameState struct {
	target     int
	games      int
	gameIndex  int
	roundIndex int

	players [2]PlayerState

	rounds int
	wins   [2]int
	draws  int
	games1 int
	games2 int
}

func (g *gameState) observations(actors []types.ActorInfo) ([]types.ActorObservation, error) {
	out := make([]types.ActorObservation, 2)
	for i := 0; i < 2; i++ {
		raw, err := EncodeObservation(&Observation{
			Me:         g.players[i],
			Them:       g.players[1-i],
			GameIndex:  g.gameIndex,
			RoundIndex: g.roundIndex,
		})
		if err != nil {
			return nil, err
		}
		out[i] = types.ActorObservation{ActorName: actors[i].Name, Observation: raw}
	}
	return out, nil
}

// play one round, returns the index of the game winner or -1
func (g *gameState) play(moves [2]Move) int {
	outcome := Outcome(moves[0], moves[1])
	g.rounds += 1
	g.players[0].WonLast = outcome > 0
	g.players[1].WonLast = outcome < 0
	g.players[0].LastMove = moves[0]
	g.players[1].LastMove = moves[1]
	switch outcome {
	case 1:
		g.players[0].Score += 1
		g.wins[0] += 1
	case -1:
		g.players[1].Score += 1
		g.wins[1] += 1
	default:
		g.draws += 1
	}
	for i := 0; i < 2; i++ {
		if g.players[i].Score >= g.target {
			g.gameIndex += 1
			g.roundIndex = 0
			if i == 0 {
				g.games1 += 1
			} else {
				g.games2 += 1
			}
			return i
		}
	}
	g.roundIndex += 1
	return -1
}

func (g *gameState) resetScores() {
	g.players[0].Score = 0
	g.players[1].Score = 0
}

func actionMoves(ev types.EnvironmentEvent, actors []types.ActorInfo) ([2]Move, error) {
	moves := [2]Move{None, None}
	for _, recv := range ev.Actions {
		idx := -1
		for i, a := range actors {
			if a.Name == recv.ActorName {
				idx = i
			}
		}
		if idx < 0 {
			return moves, errors.Errorf("action from unknown actor %q", recv.ActorName)
		}
		if recv.Missing {
			continue
		}
		action, err := DecodeAction(recv.Action)
		if err != nil {
			return moves, errors.Wrapf(err, "action of %s", recv.ActorName)
		}
		moves[idx] = action.Move
	}
	return moves, nil
}

// Environment plays games of rock-paper-scissors between exactly two players,
// the first player to reach the target score wins the game
func Environment(ctx context.Context, s *types.EnvironmentSession) error {
	config, err := DecodeEnvironmentConfig(s.Config)
	if err != nil {
		return err
	}
	actors := s.ActiveActors()
	if len(actors) != 2 {
		return errors.Errorf("rock-paper-scissors needs 2 players, got %d", len(actors))
	}
	g := &gameState{
		target:  config.Target(),
		games:   config.Games(),
		players: [2]PlayerState{{LastMove: None}, {LastMove: None}},
	}

	obs, err := g.observations(actors)
	if err != nil {
		return err
	}
	if err := s.Start(obs); err != nil {
		return err
	}
	klog.V(1).Infof("[Environment] trial %s starts, first player to reach %d wins", s.TrialID, g.target)
	defer func() {
		klog.Infof("[Environment] trial %s over: %d rounds, %s won %d (%d games), %s won %d (%d games), %d draws",
			s.TrialID, g.rounds, actors[0].Name, g.wins[0], g.games1, actors[1].Name, g.wins[1], g.games2, g.draws)
	}()

	for {
		var ev types.EnvironmentEvent
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok = <-s.Events():
		}
		if !ok || ev.Type == types.EventFinal {
			return nil
		}

		if len(ev.Actions) == 0 {
			if ev.Type == types.EventEnding {
				obs, err := g.observations(actors)
				if err != nil {
					return err
				}
				if err := s.End(obs); err != nil {
					return err
				}
			}
			continue
		}

		moves, err := actionMoves(ev, actors)
		if err != nil {
			return err
		}
		klog.V(2).Infof("[Environment] trial %s game #%d round #%d: %s played %s, %s played %s",
			s.TrialID, g.gameIndex+1, g.roundIndex+1, actors[0].Name, moves[0], actors[1].Name, moves[1])

		winner := g.play(moves)
		if winner >= 0 {
			s.AddReward(1, 1, actors[winner].Name)
			s.AddReward(-1, 1, actors[1-winner].Name)
		}
		obs, err := g.observations(actors)
		if err != nil {
			return err
		}
		if ev.Type == types.EventEnding || g.gameIndex >= g.games {
			if err := s.End(obs); err != nil {
				return err
			}
			continue
		}
		if err := s.ProduceObservations(obs); err != nil {
			return err
		}
		if winner >= 0 {
			g.resetScores()
		}
	}
}

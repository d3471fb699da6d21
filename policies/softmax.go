package policies

import (
	"context"
	"math"

	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// SoftmaxQ is a tabular player: the state is the last pair of moves and moves are sampled
// with a softmax over the Q values. The table is updated at the end of every trial.
type SoftmaxQ struct {
	QTable      *QTable
	alpha       float64
	gamma       float64
	temperature float64
	rand        *Rand
}

func NewSoftmaxQ(alpha, gamma, temperature float64, r *Rand) *SoftmaxQ {
	if temperature <= 0 {
		temperature = 1
	}
	return &SoftmaxQ{
		QTable:      NewQTable(),
		alpha:       alpha,
		gamma:       gamma,
		temperature: temperature,
		rand:        r,
	}
}

func stateKey(obs *rps.Observation) string {
	return obs.Me.LastMove.String() + "|" + obs.Them.LastMove.String()
}

func moveKeys() []string {
	keys := make([]string, len(rps.Moves))
	for i, m := range rps.Moves {
		keys[i] = m.String()
	}
	return keys
}

// NextMove samples a move from the softmax of the Q values of the state
func (q *SoftmaxQ) NextMove(obs *rps.Observation, src rand.Source) (rps.Move, bool) {
	state := stateKey(obs)
	vals := make([]float64, len(rps.Moves))
	maxVal := math.Inf(-1)
	for i, m := range rps.Moves {
		vals[i] = q.QTable.Get(state, m.String(), 0) / q.temperature
		if vals[i] > maxVal {
			maxVal = vals[i]
		}
	}
	sum := float64(0)
	for i, v := range vals {
		vals[i] = math.Exp(v - maxVal)
		sum += vals[i]
	}
	weights := make([]float64, len(vals))
	for i, v := range vals {
		weights[i] = v / sum
	}
	i, ok := sampleuv.NewWeighted(weights, src).Take()
	if !ok {
		return rps.None, false
	}
	return rps.Moves[i], true
}

type qStep struct {
	state  string
	action string
	reward float64
}

// Update the table backwards over the steps of a trial
func (q *SoftmaxQ) update(steps []qStep) {
	actions := moveKeys()
	for i := len(steps) - 1; i >= 0; i-- {
		nextVal := 0.0
		if i < len(steps)-1 {
			_, nextVal = q.QTable.MaxAmong(steps[i+1].state, actions, 0)
		}
		cur := q.QTable.Get(steps[i].state, steps[i].action, 0)
		q.QTable.Set(steps[i].state, steps[i].action, (1-q.alpha)*cur+q.alpha*(steps[i].reward+q.gamma*nextVal))
	}
}

// Actor plays with the table, learning from every trial it takes part in
func (q *SoftmaxQ) Actor() types.ActorImpl {
	return func(ctx context.Context, s *types.ActorSession) error {
		src := q.rand.Source()
		steps := make([]qStep, 0)
		err := s.Loop(ctx, func(ev types.ActorEvent) error {
			LogEvent(s, ev)
			if len(steps) > 0 {
				for _, r := range ev.Rewards {
					steps[len(steps)-1].reward += float64(r.Value)
				}
			}
			if !ev.HasObservation() {
				return nil
			}
			obs, err := rps.DecodeObservation(ev.Observation)
			if err != nil {
				return err
			}
			if len(steps) > 0 {
				// the observation shows the outcome of the round we just played
				steps[len(steps)-1].reward += float64(obs.Outcome())
			}
			if ev.Type != types.EventActive {
				return nil
			}
			move, ok := q.NextMove(obs, src)
			if !ok {
				move = rps.Moves[q.rand.Intn(len(rps.Moves))]
			}
			steps = append(steps, qStep{state: stateKey(obs), action: move.String()})
			action, err := rps.EncodeAction(move)
			if err != nil {
				return err
			}
			return s.DoAction(action)
		})
		q.update(steps)
		return err
	}
}

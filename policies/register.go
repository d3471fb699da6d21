package policies

import (
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
)

const (
	RandomAgent    = "random_agent"
	HeuristicAgent = "heuristic_agent"
	RockAgent      = "rock_agent"
	SoftmaxAgent   = "softmax_agent"
	HumanAgent     = "human"
)

// Register adds the scripted and tabular players to the context
// The softmax player is returned so callers can record its table
func Register(c *types.Context, r *Rand) (*SoftmaxQ, error) {
	if r == nil {
		r = NewRand(0)
	}
	softmax := NewSoftmaxQ(0.3, 0.9, 0.5, r)
	impls := map[string]types.ActorImpl{
		RandomAgent:    PlayerLoop(Random(r)),
		HeuristicAgent: PlayerLoop(Heuristic(r)),
		RockAgent:      PlayerLoop(Rock()),
		SoftmaxAgent:   softmax.Actor(),
	}
	for _, name := range []string{RandomAgent, HeuristicAgent, RockAgent, SoftmaxAgent} {
		if err := c.RegisterActor(impls[name], name, rps.ActorClass); err != nil {
			return nil, err
		}
	}
	return softmax, nil
}

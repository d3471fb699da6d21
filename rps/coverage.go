package rps

import (
	"path"
	"strconv"

	"github.com/zeu5/rps-arena/types"
	"k8s.io/klog/v2"
)

// roundState abstracts an observation to the last moves of both players
func roundState(o *Observation) string {
	return o.Me.LastMove.String() + "/" + o.Them.LastMove.String()
}

// coverageAnalyzer builds the graph of the round states the player went through
type coverageAnalyzer struct {
	player   string
	savePath string
	graph    *types.VisitGraph
	values   []float64
}

// CoverageAnalyzer records the number of distinct transitions seen by player after every trial,
// the graph of each experiment is saved under savePath when not empty
func CoverageAnalyzer(player, savePath string) types.AnalyzerConstructor {
	return func() types.Analyzer {
		return &coverageAnalyzer{
			player:   player,
			savePath: savePath,
			graph:    types.NewVisitGraph(),
			values:   make([]float64, 0),
		}
	}
}

func (a *coverageAnalyzer) observation(s *types.Sample) (*Observation, *types.ActorSample, bool) {
	actor, ok := s.Actor(a.player)
	if !ok || len(actor.Observation) == 0 {
		return nil, nil, false
	}
	o, err := DecodeObservation(actor.Observation)
	if err != nil {
		return nil, nil, false
	}
	return o, actor, true
}

func (a *coverageAnalyzer) Analyze(run, trial int, experiment string, t *types.Trace) {
	for i := 0; i+1 < t.Len(); i++ {
		cur, _ := t.Get(i)
		next, _ := t.Get(i + 1)
		from, actor, ok := a.observation(cur)
		if !ok || len(actor.Action) == 0 {
			continue
		}
		to, _, ok := a.observation(next)
		if !ok {
			continue
		}
		action, err := DecodeAction(actor.Action)
		if err != nil {
			continue
		}
		a.graph.Update(roundState(from), action.Move.String(), roundState(to))
	}
	a.values = append(a.values, float64(a.graph.Transitions()))

	if a.savePath != "" {
		graphPath := path.Join(a.savePath, "coverage", experiment+"_"+strconv.Itoa(run)+".json")
		if err := a.graph.Record(graphPath); err != nil {
			klog.Errorf("recording coverage of %s: %v", experiment, err)
		}
	}
}

func (a *coverageAnalyzer) DataSet() types.DataSet {
	out := make([]float64, len(a.values))
	copy(out, a.values)
	return out
}

func (a *coverageAnalyzer) Reset() {
	a.graph = types.NewVisitGraph()
	a.values = make([]float64, 0)
}

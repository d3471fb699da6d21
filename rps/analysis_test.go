package rps

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zeu5/rps-arena/types"
)

func roundSample(tick uint64, m1, m2 Move, won1 bool, r1, r2 float32) *types.Sample {
	a1, _ := EncodeAction(m1)
	a2, _ := EncodeAction(m2)
	o1, _ := EncodeObservation(&Observation{Me: PlayerState{WonLast: won1, Score: int(tick)}})
	return &types.Sample{
		TickID: tick,
		Actors: []types.ActorSample{
			{ActorName: "p1", Observation: o1, Action: a1, Reward: r1},
			{ActorName: "p2", Action: a2, Reward: r2},
		},
	}
}

func analysisTrace() *types.Trace {
	t := types.NewTrace()
	t.Append(roundSample(0, Rock, Rock, false, 0, 0))
	t.Append(roundSample(1, Rock, Scissors, false, 0, 0))
	t.Append(roundSample(2, Paper, Rock, true, 0, 0))
	t.Append(roundSample(3, Paper, Paper, true, 1, -1))
	t.Append(&types.Sample{TickID: 4, Actors: []types.ActorSample{{ActorName: "p1"}, {ActorName: "p2"}}})
	return t
}

func TestAnalyzers(t *testing.T) {
	trace := analysisTrace()

	rounds := RoundsAnalyzer("p1", "p2")()
	rounds.Analyze(0, 0, "e", trace)
	assert.Equal(t, []float64{4}, rounds.DataSet())

	draws := DrawsAnalyzer("p1", "p2")()
	draws.Analyze(0, 0, "e", trace)
	assert.Equal(t, []float64{2}, draws.DataSet())

	wins := WinRateAnalyzer("p2")()
	wins.Analyze(0, 0, "e", trace)
	wins.Analyze(0, 1, "e", types.NewTrace())
	assert.Equal(t, []float64{0, 0}, wins.DataSet())
	wins.Reset()
	assert.Empty(t, wins.DataSet())

	p1wins := WinRateAnalyzer("p1")()
	p1wins.Analyze(0, 0, "e", trace)
	p1wins.Analyze(0, 1, "e", types.NewTrace())
	assert.Equal(t, []float64{1, 0.5}, p1wins.DataSet())
}

func TestMonitors(t *testing.T) {
	trace := analysisTrace()

	prefix, ok := TargetReachedMonitor("p1", 2).Check(trace)
	assert.True(t, ok)
	assert.Equal(t, 3, prefix.Len())

	_, ok = WinStreakMonitor("p1", 2).Check(trace)
	assert.True(t, ok)
	_, ok = WinStreakMonitor("p1", 3).Check(trace)
	assert.False(t, ok)
}

func TestCoverageAnalyzer(t *testing.T) {
	trace := types.NewTrace()
	obs := func(me, them Move) []byte {
		o, _ := EncodeObservation(&Observation{Me: PlayerState{LastMove: me}, Them: PlayerState{LastMove: them}})
		return o
	}
	rock, _ := EncodeAction(Rock)
	trace.Append(&types.Sample{TickID: 0, Actors: []types.ActorSample{{ActorName: "p1", Observation: obs(None, None), Action: rock}}})
	trace.Append(&types.Sample{TickID: 1, Actors: []types.ActorSample{{ActorName: "p1", Observation: obs(Rock, Paper), Action: rock}}})
	trace.Append(&types.Sample{TickID: 2, Actors: []types.ActorSample{{ActorName: "p1", Observation: obs(Rock, Paper)}}})

	coverage := CoverageAnalyzer("p1", "")()
	coverage.Analyze(0, 0, "e", trace)
	coverage.Analyze(0, 1, "e", trace)
	// none/none -rock-> rock/paper and rock/paper -rock-> rock/paper
	assert.Equal(t, []float64{2, 2}, coverage.DataSet())

	dir := t.TempDir()
	recorded := CoverageAnalyzer("p1", dir)()
	recorded.Analyze(1, 0, "e", trace)
	assert.FileExists(t, filepath.Join(dir, "coverage", "e_1.json"))

	coverage.Reset()
	assert.Empty(t, coverage.DataSet())
}

func TestVisitGraph(t *testing.T) {
	g := types.NewVisitGraph()
	assert.True(t, g.Update("a", "x", "b"))
	assert.False(t, g.Update("a", "x", "b"))
	assert.False(t, g.Update("b", "y", "a"))
	assert.Equal(t, 2, g.States())
	assert.Equal(t, 2, g.Transitions())
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, g.Visits())
}

package rps

import (
	"strconv"

	"github.com/zeu5/rps-arena/types"
)

// RoundMoves extracts the moves played at each tick of the trace, ticks without
// both actions (the final sample) are skipped
func RoundMoves(t *types.Trace, p1, p2 string) [][2]Move {
	rounds := make([][2]Move, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		s, _ := t.Get(i)
		a1, ok1 := s.Actor(p1)
		a2, ok2 := s.Actor(p2)
		if !ok1 || !ok2 || len(a1.Action) == 0 || len(a2.Action) == 0 {
			continue
		}
		m1, err1 := DecodeAction(a1.Action)
		m2, err2 := DecodeAction(a2.Action)
		if err1 != nil || err2 != nil {
			continue
		}
		rounds = append(rounds, [2]Move{m1.Move, m2.Move})
	}
	return rounds
}

// winRateAnalyzer tracks the running rate of trials won by one player
type winRateAnalyzer struct {
	player string
	trials int
	won    int
	rates  []float64
}

func WinRateAnalyzer(player string) types.AnalyzerConstructor {
	return func() types.Analyzer {
		return &winRateAnalyzer{player: player, rates: make([]float64, 0)}
	}
}

func (a *winRateAnalyzer) Analyze(_, _ int, _ string, t *types.Trace) {
	a.trials += 1
	if t.Rewards()[a.player] > 0 {
		a.won += 1
	}
	a.rates = append(a.rates, float64(a.won)/float64(a.trials))
}

func (a *winRateAnalyzer) DataSet() types.DataSet {
	out := make([]float64, len(a.rates))
	copy(out, a.rates)
	return out
}

func (a *winRateAnalyzer) Reset() {
	a.trials = 0
	a.won = 0
	a.rates = make([]float64, 0)
}

// roundsAnalyzer records the number of rounds and draws of each trial
type roundsAnalyzer struct {
	p1, p2 string
	draws  bool
	values []float64
}

// RoundsAnalyzer records the rounds played per trial
func RoundsAnalyzer(p1, p2 string) types.AnalyzerConstructor {
	return func() types.Analyzer {
		return &roundsAnalyzer{p1: p1, p2: p2, values: make([]float64, 0)}
	}
}

// DrawsAnalyzer records the drawn rounds per trial
func DrawsAnalyzer(p1, p2 string) types.AnalyzerConstructor {
	return func() types.Analyzer {
		return &roundsAnalyzer{p1: p1, p2: p2, draws: true, values: make([]float64, 0)}
	}
}

func (a *roundsAnalyzer) Analyze(_, _ int, _ string, t *types.Trace) {
	rounds := RoundMoves(t, a.p1, a.p2)
	if !a.draws {
		a.values = append(a.values, float64(len(rounds)))
		return
	}
	draws := 0
	for _, r := range rounds {
		if Outcome(r[0], r[1]) == 0 {
			draws += 1
		}
	}
	a.values = append(a.values, float64(draws))
}

func (a *roundsAnalyzer) DataSet() types.DataSet {
	out := make([]float64, len(a.values))
	copy(out, a.values)
	return out
}

func (a *roundsAnalyzer) Reset() {
	a.values = make([]float64, 0)
}

// ScoreAtLeast holds when the observation of the player shows a score of at least score
func ScoreAtLeast(player string, score int) types.MonitorCondition {
	return func(s *types.Sample) bool {
		a, ok := s.Actor(player)
		if !ok || len(a.Observation) == 0 {
			return false
		}
		o, err := DecodeObservation(a.Observation)
		if err != nil {
			return false
		}
		return o.Me.Score >= score
	}
}

// TargetReachedMonitor succeeds once the player reached the target score
func TargetReachedMonitor(player string, target int) *types.Monitor {
	m := types.NewMonitor()
	m.Build().On(ScoreAtLeast(player, target), "target_reached").MarkSuccess()
	return m
}

// wonLast holds when the player won the round observed in the sample
func wonLast(player string) types.MonitorCondition {
	return func(s *types.Sample) bool {
		a, ok := s.Actor(player)
		if !ok || len(a.Observation) == 0 {
			return false
		}
		o, err := DecodeObservation(a.Observation)
		return err == nil && o.Me.WonLast
	}
}

// WinStreakMonitor succeeds once the player won n rounds in a row
func WinStreakMonitor(player string, n int) *types.Monitor {
	m := types.NewMonitor()
	won := wonLast(player)
	b := m.Build()
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.On(won.Not(), types.InitState)
		}
		b = b.On(won, "streak_"+strconv.Itoa(i))
	}
	b.MarkSuccess()
	return m
}

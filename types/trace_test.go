package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleWithReward(tick uint64, rewards ...float32) *Sample {
	s := &Sample{TrialID: "t", TickID: tick, Actors: make([]ActorSample, 0)}
	for i, r := range rewards {
		s.Actors = append(s.Actors, ActorSample{ActorName: []string{"a", "b"}[i], Reward: r})
	}
	return s
}

func testTrace() *Trace {
	trace := NewTrace()
	trace.Append(sampleWithReward(0, 0, 0))
	trace.Append(sampleWithReward(1, 0, 0))
	trace.Append(sampleWithReward(2, 1, -1))
	return trace
}

func TestTrace(t *testing.T) {
	trace := testTrace()
	assert.Equal(t, 3, trace.Len())

	last, ok := trace.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(2), last.TickID)

	_, ok = trace.Get(3)
	assert.False(t, ok)

	prefix, ok := trace.GetPrefix(2)
	require.True(t, ok)
	assert.Equal(t, 2, prefix.Len())
	_, ok = trace.GetPrefix(4)
	assert.False(t, ok)

	assert.Equal(t, 1, trace.Slice(1, 2).Len())
	assert.Equal(t, map[string]float32{"a": 1, "b": -1}, trace.Rewards())

	a, ok := last.Actor("b")
	require.True(t, ok)
	assert.Equal(t, float32(-1), a.Reward)
}

func TestTraceJSON(t *testing.T) {
	bs, err := json.Marshal(testTrace())
	require.NoError(t, err)
	decoded := NewTrace()
	require.NoError(t, json.Unmarshal(bs, decoded))
	assert.Equal(t, 3, decoded.Len())
	s, _ := decoded.Get(2)
	assert.Equal(t, uint64(2), s.TickID)
}

func rewarded(actor string) MonitorCondition {
	return func(s *Sample) bool {
		a, ok := s.Actor(actor)
		return ok && a.Reward > 0
	}
}

func TestMonitor(t *testing.T) {
	m := NewMonitor()
	m.Build().On(rewarded("a"), "won").MarkSuccess()

	prefix, ok := m.Check(testTrace())
	require.True(t, ok)
	assert.Equal(t, 3, prefix.Len())

	never := NewMonitor()
	never.Build().On(rewarded("b"), "won").MarkSuccess()
	_, ok = never.Check(testTrace())
	assert.False(t, ok)

	prop := MonitorProperty("a_wins", m)
	holds, tick := prop.Check(testTrace())
	assert.True(t, holds)
	assert.Equal(t, 3, tick)
}

func TestPropertyAnalyzer(t *testing.T) {
	m := NewMonitor()
	m.Build().On(rewarded("a"), "won").MarkSuccess()
	a := PropertyAnalyzer("", MonitorProperty("a_wins", m))()
	a.Analyze(0, 0, "exp", NewTrace())
	a.Analyze(0, 1, "exp", testTrace())
	a.Analyze(0, 2, "exp", testTrace())
	occ := a.DataSet().(*PropertyOccurrences)
	assert.Equal(t, 1, occ.First["a_wins"])
	assert.Equal(t, 2, occ.Count["a_wins"])
}

func TestReport(t *testing.T) {
	r := NewTrialReport("trial", "exp")
	r.SetTick(1)
	r.AddIntEntry(2, "actions", "test")
	r.SetTick(2)
	r.AddTimeEntry(2_000_000, "tick_latency", "test")
	r.AddTimeEntry(4_000_000, "tick_latency", "test")
	assert.Equal(t, int64(3_000_000), int64(r.MeanTime("tick_latency")))
	assert.Equal(t, int64(0), int64(r.MeanTime("missing")))
	assert.Len(t, r.Timeline, 3)
	assert.Contains(t, r.StringPerType(), "tick_latency [2]")
	assert.Contains(t, r.StringTimeline(), "Length: 3")
}

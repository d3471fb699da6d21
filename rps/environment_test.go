package rps

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/rps-arena/types"
)

type envHarness struct {
	t      *testing.T
	ctx    context.Context
	s      *types.EnvironmentSession
	errs   chan error
	tickID uint64
}

func startEnvironment(t *testing.T, config string) *envHarness {
	actors := []types.ActorInfo{{Name: "player_1", ClassName: ActorClass}, {Name: "player_2", ClassName: ActorClass}}
	var raw json.RawMessage
	if config != "" {
		raw = json.RawMessage(config)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	h := &envHarness{
		t:    t,
		ctx:  ctx,
		s:    types.NewEnvironmentSession("trial", "env", types.DefaultEnvironmentImpl, actors, raw),
		errs: make(chan error, 1),
	}
	go func() { h.errs <- Environment(ctx, h.s) }()
	out := h.next()
	require.Equal(t, types.OutputStart, out.Kind)
	o := h.observation(out, 0)
	assert.True(t, o.FirstRound())
	return h
}

func (h *envHarness) next() types.EnvironmentOutput {
	select {
	case out := <-h.s.Outputs():
		return out
	case <-h.ctx.Done():
		h.t.Fatal("no output from the environment")
	}
	return types.EnvironmentOutput{}
}

func (h *envHarness) observation(out types.EnvironmentOutput, i int) *Observation {
	require.Len(h.t, out.Observations, 2)
	o, err := DecodeObservation(out.Observations[i].Observation)
	require.NoError(h.t, err)
	return o
}

func (h *envHarness) round(m1, m2 Move) types.EnvironmentOutput {
	a1, _ := EncodeAction(m1)
	a2, _ := EncodeAction(m2)
	require.NoError(h.t, h.s.Deliver(h.ctx, types.EnvironmentEvent{
		Type:   types.EventActive,
		TickID: h.tickID,
		Actions: []types.RecvAction{
			{ActorName: "player_1", TickID: h.tickID, Action: a1},
			{ActorName: "player_2", TickID: h.tickID, Action: a2},
		},
	}))
	h.tickID++
	return h.next()
}

func (h *envHarness) finish() error {
	require.NoError(h.t, h.s.Deliver(h.ctx, types.EnvironmentEvent{Type: types.EventFinal, TickID: h.tickID}))
	return <-h.errs
}

func rewardOf(out types.EnvironmentOutput, actor string) float32 {
	total := float32(0)
	for _, r := range out.Rewards {
		if r.Receiver == actor {
			total += r.Value
		}
	}
	return total
}

func TestEnvironmentFirstToTarget(t *testing.T) {
	h := startEnvironment(t, `{"target_score":2}`)

	out := h.round(Rock, Scissors)
	require.Equal(t, types.OutputObservations, out.Kind)
	o1 := h.observation(out, 0)
	o2 := h.observation(out, 1)
	assert.True(t, o1.Me.WonLast)
	assert.False(t, o2.Me.WonLast)
	assert.Equal(t, Rock, o1.Me.LastMove)
	assert.Equal(t, Scissors, o1.Them.LastMove)
	assert.Equal(t, 1, o1.Me.Score)
	assert.Equal(t, 1, o2.Them.Score)
	assert.Empty(t, out.Rewards)

	out = h.round(Paper, Paper)
	require.Equal(t, types.OutputObservations, out.Kind)
	o1 = h.observation(out, 0)
	assert.False(t, o1.Me.WonLast)
	assert.False(t, o1.Them.WonLast)
	assert.Equal(t, 2, o1.RoundIndex)

	out = h.round(Scissors, Paper)
	require.Equal(t, types.OutputEnd, out.Kind)
	assert.Equal(t, float32(1), rewardOf(out, "player_1"))
	assert.Equal(t, float32(-1), rewardOf(out, "player_2"))
	for _, r := range out.Rewards {
		assert.Equal(t, float32(1), r.Confidence)
		assert.Equal(t, uint64(2), r.TickID)
	}
	assert.Equal(t, 2, h.observation(out, 0).Me.Score)

	assert.NoError(t, h.finish())
}

func TestEnvironmentDefaultTarget(t *testing.T) {
	h := startEnvironment(t, "")
	for i := 0; i < DefaultTargetScore-1; i++ {
		out := h.round(Paper, Scissors)
		require.Equal(t, types.OutputObservations, out.Kind)
	}
	out := h.round(Paper, Scissors)
	require.Equal(t, types.OutputEnd, out.Kind)
	assert.Equal(t, float32(1), rewardOf(out, "player_2"))
	assert.NoError(t, h.finish())
}

func TestEnvironmentSeveralGames(t *testing.T) {
	h := startEnvironment(t, `{"target_score":1,"games_count":2}`)

	out := h.round(Rock, Scissors)
	require.Equal(t, types.OutputObservations, out.Kind)
	assert.Equal(t, float32(1), rewardOf(out, "player_1"))
	o := h.observation(out, 0)
	assert.Equal(t, 1, o.GameIndex)
	assert.Equal(t, 0, o.RoundIndex)
	assert.Equal(t, 1, o.Me.Score)

	out = h.round(Rock, Rock)
	require.Equal(t, types.OutputObservations, out.Kind)
	o = h.observation(out, 0)
	assert.Equal(t, 0, o.Me.Score, "scores reset for the new game")

	out = h.round(Rock, Paper)
	require.Equal(t, types.OutputEnd, out.Kind)
	assert.Equal(t, float32(1), rewardOf(out, "player_2"))
	assert.NoError(t, h.finish())
}

func TestEnvironmentEndingEvent(t *testing.T) {
	h := startEnvironment(t, "")
	require.NoError(t, h.s.Deliver(h.ctx, types.EnvironmentEvent{Type: types.EventEnding, TickID: 0}))
	out := h.next()
	assert.Equal(t, types.OutputEnd, out.Kind)
	assert.NoError(t, h.finish())
}

func TestEnvironmentRejectsInvalidAction(t *testing.T) {
	h := startEnvironment(t, "")
	require.NoError(t, h.s.Deliver(h.ctx, types.EnvironmentEvent{
		Type: types.EventActive,
		Actions: []types.RecvAction{
			{ActorName: "player_1", Action: json.RawMessage(`{"move":"lizard"}`)},
			{ActorName: "player_2", Action: json.RawMessage(`{"move":"rock"}`)},
		},
	}))
	assert.ErrorIs(t, <-h.errs, ErrInvalidAction)
}

func TestEnvironmentNeedsTwoPlayers(t *testing.T) {
	s := types.NewEnvironmentSession("trial", "env", "", []types.ActorInfo{{Name: "solo"}}, nil)
	assert.Error(t, Environment(context.Background(), s))
}

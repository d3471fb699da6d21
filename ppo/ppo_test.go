package ppo

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/rps-arena/dqn"
	"github.com/zeu5/rps-arena/policies"
	"github.com/zeu5/rps-arena/registry"
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
)

func TestAdvantages(t *testing.T) {
	// lambda 1 and no values: discounted returns
	adv := Advantages([]float64{0, 0, 1}, []float64{0, 0, 0}, 0.5, 1)
	assert.InDeltaSlice(t, []float64{0.25, 0.5, 1}, adv, 1e-12)

	// lambda 0: one step temporal differences
	adv = Advantages([]float64{1, 2}, []float64{0.5, 1}, 0.9, 0)
	assert.InDeltaSlice(t, []float64{1 + 0.9*1 - 0.5, 2 - 1}, adv, 1e-12)
	assert.Empty(t, Advantages(nil, nil, 0.9, 0.95))
}

func TestPolicyGradClipping(t *testing.T) {
	probs := []float64{0.2, 0.5, 0.3}

	// ratio 1: the surrogate gradient pushes the taken action up
	g := policyGrad(probs, 1, 0.5, 1, 0.2, 0)
	assert.Less(t, g[1], 0.0)
	assert.Greater(t, g[0], 0.0)

	// ratio 2.5 with a positive advantage is clipped
	g = policyGrad(probs, 1, 0.2, 1, 0.2, 0)
	assert.Equal(t, []float64{0, 0, 0}, g)

	// with a negative advantage the unclipped term is the minimum
	g = policyGrad(probs, 1, 0.2, -1, 0.2, 0)
	assert.Greater(t, g[1], 0.0)
}

func TestEntropyGradientFlattensPolicy(t *testing.T) {
	probs := []float64{0.8, 0.1, 0.1}
	g := policyGrad(probs, 0, 0.8, 0, 0.2, 1)
	// descending the gradient lowers the dominant logit
	assert.Greater(t, g[0], 0.0)
	assert.Less(t, g[1], 0.0)
	assert.InDelta(t, math.Log(3), entropy([]float64{1.0 / 3, 1.0 / 3, 1.0 / 3}), 1e-12)
}

func TestUpdateLearnsRewardedMove(t *testing.T) {
	params := DefaultHyperparameters()
	params.LearningRate = 0.01
	params.EntropyCoef = 0
	params.TrialsPerUpdate = 1
	a := NewAgent(params, policies.NewRand(3))
	obs := &rps.Observation{}
	state := dqn.Features(obs)

	src := a.newSource()
	for round := 0; round < 60; round++ {
		steps := make([]Step, 0)
		for i := 0; i < 30; i++ {
			action, prob, value := a.act(state, src)
			reward := -1.0
			if action == rps.Paper.Index() {
				reward = 1
			}
			steps = append(steps, Step{State: state, Action: action, Prob: prob, Value: value, Reward: reward})
		}
		// every step is its own episode
		for _, s := range steps {
			a.AddTrial([]Step{s})
		}
		require.True(t, a.Ready())
		a.Update()
	}
	probs := a.Probabilities(obs)
	assert.Greater(t, probs[rps.Paper.Index()], 0.8)
	assert.False(t, a.Ready())
}

func playTrial(t *testing.T, impl types.ActorImpl, events []types.ActorEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s := types.NewActorSession("trial", types.ActorInfo{Name: "ppo", ClassName: rps.ActorClass}, nil)
	errs := make(chan error, 1)
	go func() { errs <- impl(ctx, s) }()
	for _, ev := range events {
		require.NoError(t, s.Deliver(ctx, ev))
		if ev.Type != types.EventActive {
			continue
		}
		select {
		case out := <-s.Outputs():
			_, err := rps.DecodeAction(out.Action)
			require.NoError(t, err)
		case <-ctx.Done():
			t.Fatal("no action")
		}
	}
	s.CloseEvents()
	require.NoError(t, <-errs)
}

func TestActorUpdatesAndPublishes(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	params := DefaultHyperparameters()
	params.TrialsPerUpdate = 2
	a := NewAgent(params, policies.NewRand(8), WithRegistry(reg, "ppo"))

	raw, err := rps.EncodeObservation(&rps.Observation{})
	require.NoError(t, err)
	events := []types.ActorEvent{
		{Type: types.EventActive, TickID: 0, Observation: raw},
		{Type: types.EventActive, TickID: 1, Observation: raw},
		{Type: types.EventEnding, TickID: 2, Observation: raw, Rewards: []types.Reward{{TickID: 1, Value: 1}}},
		{Type: types.EventFinal, TickID: 2},
	}
	playTrial(t, a.Actor(), events)
	assert.Equal(t, 0, a.Updates())
	playTrial(t, a.Actor(), events)
	assert.Equal(t, 1, a.Updates())

	versions, err := reg.Versions(ctx, "ppo")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, versions)

	other := NewAgent(params, policies.NewRand(9), WithRegistry(reg, "ppo"))
	_, err = other.LoadLatest(ctx)
	require.NoError(t, err)
	assert.InDeltaSlice(t, a.Probabilities(&rps.Observation{}), other.Probabilities(&rps.Observation{}), 1e-12)

	c := types.NewContext("rps")
	require.NoError(t, Register(c, a))
	_, ok := c.Actor(ImplName, rps.ActorClass)
	assert.True(t, ok)
}

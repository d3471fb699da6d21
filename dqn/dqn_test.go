package dqn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/rps-arena/nn"
	"github.com/zeu5/rps-arena/policies"
	"github.com/zeu5/rps-arena/registry"
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
	"golang.org/x/exp/rand"
)

func TestReplayBufferDiscardsOldest(t *testing.T) {
	b := NewReplayBuffer(3)
	for i := 0; i < 5; i++ {
		b.Add(Transition{Action: i})
	}
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 5, b.Collected())

	seen := make(map[int]bool)
	for _, tr := range b.Sample(rand.New(rand.NewSource(1)), 100) {
		seen[tr.Action] = true
	}
	assert.Equal(t, map[int]bool{2: true, 3: true, 4: true}, seen)
	assert.Nil(t, NewReplayBuffer(3).Sample(rand.New(rand.NewSource(1)), 2))
}

func TestEpsilonDecay(t *testing.T) {
	e := NewEpsilon(1, 0.05, 1000)
	assert.Equal(t, 1.0, e.Next())
	for i := 0; i < 2000; i++ {
		e.Next()
	}
	assert.Equal(t, 0.05, e.Value())

	fixed := NewEpsilon(0.3, 0.3, 0)
	fixed.Next()
	assert.Equal(t, 0.3, fixed.Value())
}

func TestFeatures(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0}, Features(&rps.Observation{}))
	f := Features(&rps.Observation{
		Me:   rps.PlayerState{LastMove: rps.Paper},
		Them: rps.PlayerState{LastMove: rps.Scissors},
	})
	assert.Equal(t, []float64{0, 1, 0, 0, 0, 1}, f)
}

func TestTransitionsShiftObservations(t *testing.T) {
	r := &trialRecord{
		states:  [][]float64{{0}, {1}, {2}},
		actions: []int{0, 1},
		rewards: []float64{0, 1},
	}
	ts := r.transitions()
	require.Len(t, ts, 2)
	assert.Equal(t, []float64{1}, ts[0].NextState)
	assert.Equal(t, 1.0, ts[1].Reward)
	assert.Equal(t, []float64{2}, ts[1].NextState)

	// terminated without final observation
	r.states = r.states[:2]
	assert.Len(t, r.transitions(), 1)
	assert.Empty(t, (&trialRecord{}).transitions())
}

func TestTrainLearnsWinningMove(t *testing.T) {
	params := DefaultHyperparameters()
	params.BatchSize = 32
	params.LearningRate = 0.01
	params.Gamma = 0
	a := NewAgent(params, policies.NewRand(11))

	_, ok := a.Train()
	assert.False(t, ok)

	state := Features(&rps.Observation{})
	for i := 0; i < 300; i++ {
		action := i % 3
		reward := -1.0
		if action == rps.Paper.Index() {
			reward = 1
		}
		a.buffer.Add(Transition{State: state, Action: action, Reward: reward, NextState: state})
	}
	for i := 0; i < 400; i++ {
		_, ok := a.Train()
		require.True(t, ok)
	}
	assert.Equal(t, rps.Paper.Index(), nn.Argmax(a.QValues(&rps.Observation{})))
}

func playTrial(t *testing.T, impl types.ActorImpl, events []types.ActorEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s := types.NewActorSession("trial", types.ActorInfo{Name: "dqn", ClassName: rps.ActorClass}, nil)
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

func observation(t *testing.T, typ types.EventType, tick uint64, rewards ...types.Reward) types.ActorEvent {
	raw, err := rps.EncodeObservation(&rps.Observation{RoundIndex: int(tick)})
	require.NoError(t, err)
	return types.ActorEvent{Type: typ, TickID: tick, Observation: raw, Rewards: rewards}
}

func TestActorStoresTrialAndPublishes(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	params := DefaultHyperparameters()
	params.PublishEvery = 2
	a := NewAgent(params, policies.NewRand(5), WithRegistry(reg, "dqn"))

	events := []types.ActorEvent{
		observation(t, types.EventActive, 0),
		observation(t, types.EventActive, 1),
		observation(t, types.EventActive, 2),
		observation(t, types.EventEnding, 3, types.Reward{TickID: 2, Value: 1, Receiver: "dqn"}),
		{Type: types.EventFinal, TickID: 3},
	}
	playTrial(t, a.Actor(), events)
	assert.Equal(t, 1, a.Trials())
	assert.Equal(t, 3, a.BufferLen())
	_, err := reg.Versions(ctx, "dqn")
	assert.ErrorIs(t, err, registry.ErrModelNotFound)

	playTrial(t, a.Actor(), events)
	versions, err := reg.Versions(ctx, "dqn")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, versions)

	other := NewAgent(params, policies.NewRand(6), WithRegistry(reg, "dqn"))
	version, err := other.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.InDeltaSlice(t, a.QValues(&rps.Observation{}), other.QValues(&rps.Observation{}), 1e-12)
}

func TestRegister(t *testing.T) {
	c := types.NewContext("rps")
	require.NoError(t, Register(c, NewAgent(DefaultHyperparameters(), nil)))
	_, ok := c.Actor(ImplName, rps.ActorClass)
	assert.True(t, ok)
}

func TestTargetSync(t *testing.T) {
	a := NewAgent(DefaultHyperparameters(), policies.NewRand(3))
	x := Features(&rps.Observation{Me: rps.PlayerState{LastMove: rps.Rock}})

	a.sinceSync = 120
	require.NoError(t, a.syncTargetLocked())
	assert.Equal(t, 0, a.sinceSync)
	assert.Equal(t, a.model.Predict(x), a.target.Predict(x))

	a.target = nn.NewMLP(rand.New(rand.NewSource(4)), FeatureSize, 3)
	a.sinceSync = 120
	assert.Error(t, a.syncTargetLocked())
	assert.Equal(t, 120, a.sinceSync)
}

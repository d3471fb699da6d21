package types

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActorSessionActions(t *testing.T) {
	s := NewActorSession("trial", ActorInfo{Name: "player_1", ClassName: "player"}, nil)
	ctx := context.Background()

	s.Start()
	select {
	case <-s.Started():
	default:
		t.Fatal("session not started")
	}

	require.NoError(t, s.Deliver(ctx, ActorEvent{Type: EventActive, TickID: 3, Observation: json.RawMessage(`{}`)}))
	ev := <-s.Events()
	assert.Equal(t, uint64(3), ev.TickID)
	assert.True(t, ev.HasObservation())

	require.NoError(t, s.DoAction(json.RawMessage(`{"move":"rock"}`)))
	out := <-s.Outputs()
	assert.Equal(t, uint64(3), out.TickID)
	assert.JSONEq(t, `{"move":"rock"}`, string(out.Action))

	require.NoError(t, s.SendMessage("player_2", json.RawMessage(`"hi"`)))
	out = <-s.Outputs()
	require.NotNil(t, out.Message)
	assert.Equal(t, "player_1", out.Message.Sender)
	assert.Equal(t, "player_2", out.Message.Receiver)

	s.Close()
	assert.ErrorIs(t, s.DoAction(nil), ErrSessionClosed)
	assert.ErrorIs(t, s.Deliver(ctx, ActorEvent{}), ErrSessionClosed)
}

func TestActorSessionDeliverCancelled(t *testing.T) {
	s := NewActorSession("trial", ActorInfo{Name: "p"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 10 && err == nil; i++ {
		err = s.Deliver(ctx, ActorEvent{TickID: uint64(i)})
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnvironmentSessionRewards(t *testing.T) {
	actors := []ActorInfo{{Name: "player_1"}, {Name: "player_2"}}
	s := NewEnvironmentSession("trial", "env", DefaultEnvironmentImpl, actors, nil)
	ctx := context.Background()

	require.NoError(t, s.Start([]ActorObservation{{ActorName: AllActors, Observation: json.RawMessage(`{}`)}}))
	assert.ErrorIs(t, s.Start(nil), ErrAlreadyStarted)
	out := <-s.Outputs()
	assert.Equal(t, OutputStart, out.Kind)

	require.NoError(t, s.Deliver(ctx, EnvironmentEvent{Type: EventActive, TickID: 0}))
	<-s.Events()
	s.AddReward(1, 1, "player_1")
	s.AddReward(-1, 1, "player_2")
	require.NoError(t, s.ProduceObservations(nil))
	out = <-s.Outputs()
	assert.Equal(t, OutputObservations, out.Kind)
	require.Len(t, out.Rewards, 2)
	assert.Equal(t, uint64(0), out.Rewards[0].TickID)
	assert.Equal(t, "env", out.Rewards[0].Sender)

	s.AddReward(0.5, 1)
	require.NoError(t, s.End(nil))
	require.NoError(t, s.End(nil))
	out = <-s.Outputs()
	assert.Equal(t, OutputEnd, out.Kind)
	require.Len(t, out.Rewards, 1)
	assert.Equal(t, AllActors, out.Rewards[0].Receiver)
	select {
	case extra := <-s.Outputs():
		t.Fatalf("unexpected output %+v", extra)
	default:
	}

	assert.Len(t, s.ActiveActors(), 2)
}

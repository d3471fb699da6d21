package rps

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeatTable(t *testing.T) {
	assert.True(t, Beats(Rock, Scissors))
	assert.True(t, Beats(Scissors, Paper))
	assert.True(t, Beats(Paper, Rock))
	for _, m := range Moves {
		assert.False(t, Beats(m, m))
		assert.Equal(t, 0, Outcome(m, m))
		assert.True(t, Beats(Defeats[m], m))
		assert.Equal(t, -1, Outcome(m, Defeats[m]))
		assert.Equal(t, 1, Outcome(Defeats[m], m))
	}
	assert.False(t, Beats(Rock, None))
	assert.False(t, Beats(None, Rock))
}

func TestMoveText(t *testing.T) {
	bs, err := json.Marshal(PlayerAction{Move: Scissors})
	require.NoError(t, err)
	assert.JSONEq(t, `{"move":"scissors"}`, string(bs))

	a, err := DecodeAction(json.RawMessage(`{"move":"Paper"}`))
	require.NoError(t, err)
	assert.Equal(t, Paper, a.Move)

	_, err = DecodeAction(json.RawMessage(`{"move":"lizard"}`))
	assert.ErrorIs(t, err, ErrInvalidAction)
	_, err = DecodeAction(json.RawMessage(`{"move":"none"}`))
	assert.ErrorIs(t, err, ErrInvalidAction)
	_, err = DecodeAction(nil)
	assert.ErrorIs(t, err, ErrInvalidAction)

	assert.Equal(t, "👊 rock", Rock.Label())
	assert.Equal(t, "✌️ scissors", Scissors.Label())

	for i, m := range Moves {
		assert.Equal(t, i, m.Index())
		back, err := MoveFromIndex(i)
		require.NoError(t, err)
		assert.Equal(t, m, back)
	}
	_, err = MoveFromIndex(3)
	assert.Error(t, err)
}

func TestDecodeEnvironmentConfig(t *testing.T) {
	c, err := DecodeEnvironmentConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, DefaultTargetScore, c.Target())
	assert.Equal(t, 1, c.Games())

	c, err = DecodeEnvironmentConfig(json.RawMessage(`{"target_score":-2}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultTargetScore, c.Target())

	c, err = DecodeEnvironmentConfig(json.RawMessage(`{"target_score":5,"games_count":2}`))
	require.NoError(t, err)
	assert.Equal(t, 5, c.Target())
	assert.Equal(t, 2, c.Games())

	raw, err := EncodeTrialConfig(&EnvironmentConfig{TargetScore: 7})
	require.NoError(t, err)
	c, err = DecodeEnvironmentConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Target())

	_, err = DecodeEnvironmentConfig(json.RawMessage(`[1]`))
	assert.Error(t, err)
}

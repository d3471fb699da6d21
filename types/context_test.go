package types

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopActor(ctx context.Context, s *ActorSession) error { return nil }

func noopEnvironment(ctx context.Context, s *EnvironmentSession) error { return nil }

func TestContextRegistration(t *testing.T) {
	c := NewContext("rps")
	require.NoError(t, c.RegisterActor(noopActor, "random_agent", "player"))
	require.NoError(t, c.RegisterActor(noopActor, "rock_agent", "player"))
	assert.ErrorIs(t, c.RegisterActor(noopActor, "random_agent", "player"), ErrAlreadyRegistered)
	assert.Error(t, c.RegisterActor(noopActor, "classless"))

	require.NoError(t, c.RegisterEnvironment(noopEnvironment, ""))
	assert.ErrorIs(t, c.RegisterEnvironment(noopEnvironment, DefaultEnvironmentImpl), ErrAlreadyRegistered)

	_, ok := c.Actor("random_agent", "player")
	assert.True(t, ok)
	_, ok = c.Actor("random_agent", "referee")
	assert.False(t, ok)
	_, ok = c.Actor("dqn_agent", "player")
	assert.False(t, ok)

	_, ok = c.Environment("")
	assert.True(t, ok)
	assert.Equal(t, []string{"random_agent", "rock_agent"}, c.ActorImpls())
	assert.Equal(t, []string{DefaultEnvironmentImpl}, c.EnvironmentImpls())
}

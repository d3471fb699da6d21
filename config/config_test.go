package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/rps-arena/dqn"
	"github.com/zeu5/rps-arena/policies"
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
)

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.Equal(t, "grpc://localhost:9000", c.OrchestratorEndpoint())
	assert.Equal(t, "grpc://localhost:9001", c.EnvironmentEndpoint())
	assert.Equal(t, "grpc://localhost:9002", c.ActorsEndpoint())
	assert.Equal(t, 5*time.Minute, c.JoinTimeout)
}

func TestLoadConfigFromEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("ACTORS_HOST=actors\nACTORS_PORT=9100\n"), 0644))
	t.Setenv("ENVIRONMENT_HOST", "env")
	t.Setenv("JOIN_TIMEOUT", "3s")
	// godotenv does not override variables already set
	t.Setenv("ACTORS_PORT", "9200")
	defer os.Unsetenv("ACTORS_HOST")

	c, err := LoadConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, "grpc://env:9001", c.EnvironmentEndpoint())
	assert.Equal(t, "grpc://actors:9200", c.ActorsEndpoint())
	assert.Equal(t, 3*time.Second, c.JoinTimeout)
}

func TestLoadConfigRandomAgent(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")
	t.Setenv("RANDOM_AGENT_HOST", "random-agent")
	t.Setenv("RANDOM_AGENT_PORT", "9100")

	c, err := LoadConfig(missing)
	require.NoError(t, err)
	assert.Equal(t, "grpc://random-agent:9100", c.ActorsEndpoint())

	t.Setenv("ACTORS_PORT", "9200")
	c, err = LoadConfig(missing)
	require.NoError(t, err)
	assert.Equal(t, "grpc://random-agent:9200", c.ActorsEndpoint())

	t.Setenv("RANDOM_AGENT_PORT", "port")
	_, err = LoadConfig(missing)
	assert.Error(t, err)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("ORCHESTRATOR_PORT", "nine")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	c.WebClientPort = 70000
	c.DatabaseURL = "mysql://db"
	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEB_CLIENT_PORT")
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

const campaign = `
trials: 10
environment_config:
  target_score: 2
trial:
  max_inactivity: 5s
  environment:
    name: arena
  actors:
    - name: p1
      class_name: player
      implementation: dqn_agent
    - name: p2
      class_name: player
      endpoint: local
      implementation: rock_agent
dqn:
  batch_size: 8
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.yaml")
	require.NoError(t, os.WriteFile(path, []byte(campaign), 0644))

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10, f.Trials)
	assert.Equal(t, 2, f.EnvironmentConfig.Target())
	assert.Equal(t, 5*time.Second, f.Trial.MaxInactivity)
	require.Len(t, f.Trial.Actors, 2)
	assert.Equal(t, 8, f.DQN.BatchSize)
	// unset keys keep their defaults
	assert.Equal(t, dqn.DefaultHyperparameters().Gamma, f.DQN.Gamma)

	c, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	params, err := f.TrialParameters(c)
	require.NoError(t, err)
	assert.Equal(t, "arena", params.Environment.Name)
	assert.Equal(t, c.EnvironmentEndpoint(), params.Environment.Endpoint)
	assert.Equal(t, c.DQNAgentEndpoint(), params.Actors[0].Endpoint)
	assert.Equal(t, types.LocalEndpoint, params.Actors[1].Endpoint)

	config, err := rps.DecodeEnvironmentConfig(params.Config)
	require.NoError(t, err)
	assert.Equal(t, 2, config.Target())
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "campaign.yaml")
	f := DefaultFile()
	f.Trials = 3
	require.NoError(t, f.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Trials)
	assert.Equal(t, f.Trial.Actors, loaded.Trial.Actors)
	assert.Equal(t, f.Trial.MaxInactivity, loaded.Trial.MaxInactivity)
	assert.Equal(t, 5, loaded.EnvironmentConfig.Target())
}

func TestLocalFile(t *testing.T) {
	f := DefaultFile()
	f.Trial.Actors[1].Endpoint = types.ClientEndpoint
	local := f.Local()
	params, err := local.TrialParameters(nil)
	require.NoError(t, err)
	assert.Equal(t, types.LocalEndpoint, params.Environment.Endpoint)
	assert.Equal(t, types.LocalEndpoint, params.Actors[0].Endpoint)
	assert.Equal(t, types.ClientEndpoint, params.Actors[1].Endpoint)
	assert.Equal(t, policies.HeuristicAgent, params.Actors[0].Implementation)
	// the original is untouched
	assert.Empty(t, f.Trial.Actors[0].Endpoint)
}

func TestTrialParametersNeedEndpoints(t *testing.T) {
	_, err := DefaultFile().TrialParameters(nil)
	assert.ErrorIs(t, err, types.ErrEmptyEndpoint)
}

package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/rps-arena/types"
)

func TestRootCommand(t *testing.T) {
	root := GetRootCommand()
	for _, name := range []string{"orchestrator", "environment", "actors", "trial-runner", "human", "web", "local", "compare", "models"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("v"))
}

func TestPlayerNames(t *testing.T) {
	p1, p2, err := playerNames(&types.TrialParameters{Actors: []types.ActorParameters{{Name: "a"}, {Name: "b"}}})
	require.NoError(t, err)
	assert.Equal(t, "a", p1)
	assert.Equal(t, "b", p2)
	_, _, err = playerNames(&types.TrialParameters{Actors: []types.ActorParameters{{Name: "a"}}})
	assert.Error(t, err)
}

func TestLocalCampaign(t *testing.T) {
	dir := t.TempDir()
	root := GetRootCommand()
	root.SetArgs([]string{"local", "--trials", "2", "--save", dir, "--env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, root.Execute())

	_, err := os.Stat(filepath.Join(dir, "comparison_config.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "0_win_rate.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "softmax_qtable.json"))
	assert.NoError(t, err)
}

func TestReportConfig(t *testing.T) {
	root := GetRootCommand()
	local, _, err := root.Find([]string{"local"})
	require.NoError(t, err)

	require.NoError(t, local.Flags().Set("reports", "false"))
	assert.Equal(t, types.RepConfigOff(), reportConfig())
	require.NoError(t, local.Flags().Set("reports", "true"))
	assert.Equal(t, types.RepConfigStandard(), reportConfig())
}

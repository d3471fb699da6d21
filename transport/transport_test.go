package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/rps-arena/datastore"
	"github.com/zeu5/rps-arena/orchestrator"
	"github.com/zeu5/rps-arena/policies"
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
)

const paperAgent = "paper_agent"

func playPaper(context.Context, *rps.Observation) (rps.Move, error) {
	return rps.Paper, nil
}

func testContext(t *testing.T) *types.Context {
	c := types.NewContext("test")
	_, err := policies.Register(c, policies.NewRand(1))
	require.NoError(t, err)
	require.NoError(t, c.RegisterActor(policies.PlayerLoop(playPaper), paperAgent, rps.ActorClass))
	require.NoError(t, c.RegisterEnvironment(rps.Environment, ""))
	return c
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// endpointOf turns an httptest url into a websocket endpoint
func endpointOf(server *httptest.Server) string {
	return "ws://" + strings.TrimPrefix(server.URL, "http://")
}

func params(envEndpoint, actorEndpoint string) *types.TrialParameters {
	return &types.TrialParameters{
		Environment: types.EnvironmentParameters{Endpoint: envEndpoint},
		Actors: []types.ActorParameters{
			{Name: "player_1", ClassName: rps.ActorClass, Endpoint: actorEndpoint, Implementation: policies.RockAgent},
			{Name: "player_2", ClassName: rps.ActorClass, Endpoint: actorEndpoint, Implementation: paperAgent},
		},
	}
}

func TestHealth(t *testing.T) {
	s := NewServer(testCtx(t), "", testContext(t))
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := struct {
		Actors       []string `json:"actors"`
		Environments []string `json:"environments"`
	}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Actors, paperAgent)
	assert.Equal(t, []string{types.DefaultEnvironmentImpl}, body.Environments)

	resp, err = http.Get(server.URL + "/actors/unknown?class=player")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRemoteParticipants(t *testing.T) {
	ctx := testCtx(t)
	services := httptest.NewServer(NewServer(ctx, "", testContext(t)).Handler())
	defer services.Close()

	o := orchestrator.New(orchestrator.DefaultConfig(), NewResolver(nil))
	trace, err := o.RunTrial(ctx, params(endpointOf(services), endpointOf(services)), nil)
	require.NoError(t, err)
	require.Equal(t, 4, trace.Len())
	rewards := trace.Rewards()
	assert.Equal(t, float32(1), rewards["player_2"])
	assert.Equal(t, float32(-1), rewards["player_1"])

	first, _ := trace.Get(0)
	p1, _ := first.Actor("player_1")
	action, err := rps.DecodeAction(p1.Action)
	require.NoError(t, err)
	assert.Equal(t, rps.Rock, action.Move)
}

// slowStore takes its time storing the last sample of a trial
type slowStore struct {
	*datastore.MemoryDatastore
	delay time.Duration
}

func (s *slowStore) AddSample(ctx context.Context, sample *types.Sample) error {
	if sample.State == types.TrialTerminating {
		time.Sleep(s.delay)
	}
	return s.MemoryDatastore.AddSample(ctx, sample)
}

func TestRemoteActorsLeaveAfterFinal(t *testing.T) {
	ctx := testCtx(t)
	services := httptest.NewServer(NewServer(ctx, "", testContext(t)).Handler())
	defer services.Close()

	store := &slowStore{MemoryDatastore: datastore.NewMemoryDatastore(), delay: 50 * time.Millisecond}
	o := orchestrator.New(orchestrator.DefaultConfig(), NewResolver(testContext(t)), orchestrator.WithDatastore(store))
	for i := 0; i < 3; i++ {
		p := params(types.LocalEndpoint, endpointOf(services))
		p.DatalogEnabled = true
		trace, err := o.RunTrial(ctx, p, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, trace.Len())
	}
	trials, err := store.Trials(ctx)
	require.NoError(t, err)
	assert.Len(t, trials, 3)
}

func TestMixedLocalAndRemote(t *testing.T) {
	ctx := testCtx(t)
	services := httptest.NewServer(NewServer(ctx, "", testContext(t)).Handler())
	defer services.Close()

	p := params(types.LocalEndpoint, endpointOf(services))
	p.Actors[0].Endpoint = types.LocalEndpoint
	o := orchestrator.New(orchestrator.DefaultConfig(), NewResolver(testContext(t)))
	trace, err := o.RunTrial(ctx, p, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, trace.Len())
}

func TestRemoteActorNotServed(t *testing.T) {
	ctx := testCtx(t)
	services := httptest.NewServer(NewServer(ctx, "", testContext(t)).Handler())
	defer services.Close()

	p := params(types.LocalEndpoint, endpointOf(services))
	p.Actors[1].Implementation = "unknown"
	o := orchestrator.New(orchestrator.DefaultConfig(), NewResolver(testContext(t)))
	_, err := o.RunTrial(ctx, p, nil)
	assert.Error(t, err)
}

func orchestratorAPI(t *testing.T) (*Controller, *orchestrator.Orchestrator) {
	ctx := testCtx(t)
	o := orchestrator.New(orchestrator.DefaultConfig(), NewResolver(testContext(t)))
	server := httptest.NewServer(NewOrchestratorServer(ctx, "", o).Handler())
	t.Cleanup(server.Close)
	controller, err := NewController(strings.Replace(server.URL, "http://", "grpc://", 1))
	require.NoError(t, err)
	return controller, o
}

func TestControllerRunTrial(t *testing.T) {
	ctx := testCtx(t)
	controller, _ := orchestratorAPI(t)

	report := types.NewTrialReport("", "api")
	trace, err := controller.RunTrial(ctx, params(types.LocalEndpoint, types.LocalEndpoint), report)
	require.NoError(t, err)
	assert.Equal(t, 4, trace.Len())
	require.NotEmpty(t, report.TrialID)

	info, err := controller.GetTrialInfo(ctx, report.TrialID)
	require.NoError(t, err)
	assert.Equal(t, types.TrialEnded, info.State)
	assert.Empty(t, info.Error)

	ended, err := controller.Trials(ctx, types.TrialEnded)
	require.NoError(t, err)
	assert.Len(t, ended, 1)
	running, err := controller.Trials(ctx, types.TrialRunning)
	require.NoError(t, err)
	assert.Empty(t, running)
}

func TestControllerErrors(t *testing.T) {
	ctx := testCtx(t)
	controller, _ := orchestratorAPI(t)

	_, err := controller.GetTrialInfo(ctx, "unknown")
	apiErr := &APIError{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	p := params(types.LocalEndpoint, types.LocalEndpoint)
	p.Actors[1].Implementation = policies.RockAgent
	id, err := controller.StartTrial(ctx, p, "endless")
	require.NoError(t, err)
	assert.Equal(t, "endless", id)
	_, err = controller.StartTrial(ctx, p, "endless")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	_, err = controller.StartTrial(ctx, &types.TrialParameters{}, "")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	require.NoError(t, controller.TerminateTrial(ctx, id, true))
	_, err = NewController("local")
	assert.Error(t, err)
}

func TestControllerJoinTrial(t *testing.T) {
	ctx := testCtx(t)
	controller, _ := orchestratorAPI(t)

	p := params(types.LocalEndpoint, types.LocalEndpoint)
	p.Actors[1].Endpoint = types.ClientEndpoint
	watch, err := controller.WatchTrials(ctx, types.TrialEnded)
	require.NoError(t, err)
	id, err := controller.StartTrial(ctx, p, "")
	require.NoError(t, err)

	require.NoError(t, controller.JoinTrial(ctx, id, "player_2", policies.PlayerLoop(playPaper)))
	for info := range watch {
		if info.TrialID == id {
			assert.Empty(t, info.Error)
			break
		}
	}
	trace, err := controller.Samples(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, trace.Len())
	assert.Equal(t, float32(1), trace.Rewards()["player_2"])

	err = controller.JoinTrial(ctx, id, "player_2", policies.PlayerLoop(playPaper))
	assert.Error(t, err)
}

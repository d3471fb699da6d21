package webclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/rps-arena/orchestrator"
	"github.com/zeu5/rps-arena/policies"
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
)

func testServer(t *testing.T) (*httptest.Server, *orchestrator.Orchestrator) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	c := types.NewContext("test")
	_, err := policies.Register(c, policies.NewRand(1))
	require.NoError(t, err)
	require.NoError(t, c.RegisterEnvironment(rps.Environment, ""))
	o := orchestrator.New(orchestrator.DefaultConfig(), &orchestrator.LocalResolver{Context: c})

	params := &types.TrialParameters{
		Environment: types.EnvironmentParameters{Endpoint: types.LocalEndpoint},
		Actors: []types.ActorParameters{
			{Name: "player_1", ClassName: rps.ActorClass, Implementation: policies.HumanAgent},
			{Name: "player_2", ClassName: rps.ActorClass, Endpoint: types.LocalEndpoint, Implementation: policies.RockAgent},
		},
	}
	s, err := NewServer(ctx, "", o, params, "player_1")
	require.NoError(t, err)
	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)
	return server, o
}

func dialGame(t *testing.T, server *httptest.Server) *websocket.Conn {
	u := "ws://" + strings.TrimPrefix(server.URL, "http://") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	return ws
}

func TestIndex(t *testing.T) {
	server, _ := testServer(t)
	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Rock Paper Scissors")
}

func TestUnknownHuman(t *testing.T) {
	params := &types.TrialParameters{Actors: []types.ActorParameters{{Name: "player_1"}}}
	_, err := NewServer(context.Background(), "", nil, params, "nobody")
	assert.Error(t, err)
}

func TestPlayGame(t *testing.T) {
	server, _ := testServer(t)
	ws := dialGame(t, server)

	var trialID string
	var last *rps.Observation
	var end *ServerMessage
	played := 0
	for end == nil {
		msg := ServerMessage{}
		require.NoError(t, ws.ReadJSON(&msg))
		switch msg.Type {
		case MessageTrial:
			trialID = msg.TrialID
		case MessageObservation:
			last = msg.Observation
			if msg.Active {
				assert.Equal(t, played, msg.Round)
				require.NoError(t, ws.WriteJSON(ClientMessage{Move: rps.Paper}))
				played += 1
			}
		case MessageEnd:
			end = &msg
		case MessageError:
			t.Fatalf("unexpected error: %s", msg.Error)
		}
	}

	assert.True(t, strings.HasPrefix(trialID, "web-"))
	assert.Equal(t, trialID, end.TrialID)
	assert.Empty(t, end.Error)
	assert.Equal(t, 3, played)
	require.NotNil(t, last)
	assert.True(t, last.Me.WonLast)
	assert.Equal(t, rps.Rock, last.Them.LastMove)

	// the server closes the connection once the trial is over
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}

func TestInvalidMoveAndLeave(t *testing.T) {
	server, o := testServer(t)
	ws := dialGame(t, server)

	var trialID string
	for {
		msg := ServerMessage{}
		require.NoError(t, ws.ReadJSON(&msg))
		if msg.Type == MessageTrial {
			trialID = msg.TrialID
		}
		if msg.Type == MessageObservation && msg.Active {
			break
		}
	}
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"move":"lizard"}`)))
	msg := ServerMessage{}
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, MessageError, msg.Type)
	assert.Contains(t, msg.Error, "invalid move")

	ws.Close()
	assert.Eventually(t, func() bool {
		info, err := o.TrialInfo(trialID)
		return err == nil && info.State == types.TrialEnded
	}, 5*time.Second, 10*time.Millisecond)
}

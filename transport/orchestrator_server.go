package transport

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/datastore"
	"github.com/zeu5/rps-arena/orchestrator"
	"github.com/zeu5/rps-arena/types"
	"k8s.io/klog/v2"
)

// StartTrialRequest is the body of POST /trials
type StartTrialRequest struct {
	TrialID    string                `json:"trial_id,omitempty"`
	Parameters types.TrialParameters `json:"parameters"`
}

type StartTrialResponse struct {
	TrialID string `json:"trial_id"`
}

// OrchestratorServer exposes the trial control API of an orchestrator
type OrchestratorServer struct {
	Addr   string
	orch   *orchestrator.Orchestrator
	engine *gin.Engine
	ctx    context.Context
}

func NewOrchestratorServer(ctx context.Context, addr string, o *orchestrator.Orchestrator) *OrchestratorServer {
	gin.SetMode(gin.ReleaseMode)
	s := &OrchestratorServer{
		Addr:   addr,
		orch:   o,
		engine: gin.New(),
		ctx:    ctx,
	}
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.POST("/trials", s.handleStart)
	s.engine.GET("/trials", s.handleList)
	s.engine.GET("/trials/watch", s.handleWatch)
	s.engine.GET("/trials/:id", s.handleInfo)
	s.engine.DELETE("/trials/:id", s.handleTerminate)
	s.engine.GET("/trials/:id/samples", s.handleSamples)
	s.engine.GET("/trials/:id/join", s.handleJoin)
	return s
}

func (s *OrchestratorServer) Handler() http.Handler {
	return s.engine
}

func (s *OrchestratorServer) ListenAndServe() error {
	return serve(s.ctx, s.Addr, s.engine)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrTrialNotFound),
		errors.Is(err, orchestrator.ErrActorNotFound),
		errors.Is(err, datastore.ErrTrialNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrTrialExists),
		errors.Is(err, orchestrator.ErrTrialEnded),
		errors.Is(err, orchestrator.ErrNotClientActor),
		errors.Is(err, orchestrator.ErrAlreadyJoined):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func (s *OrchestratorServer) handleStart(c *gin.Context) {
	req := StartTrialRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}
	id, err := s.orch.StartTrial(c.Request.Context(), &req.Parameters, req.TrialID)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, StartTrialResponse{TrialID: id})
}

func (s *OrchestratorServer) handleList(c *gin.Context) {
	states, err := parseStates(c.QueryArray("state"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out := make([]types.TrialInfo, 0)
	for _, info := range s.orch.Trials() {
		if len(states) == 0 || containsState(states, info.State) {
			out = append(out, info)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *OrchestratorServer) handleInfo(c *gin.Context) {
	info, err := s.orch.TrialInfo(c.Param("id"))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *OrchestratorServer) handleTerminate(c *gin.Context) {
	hard, _ := strconv.ParseBool(c.DefaultQuery("hard", "false"))
	if err := s.orch.TerminateTrial(c.Request.Context(), c.Param("id"), hard); err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// handleSamples serves the trace kept by the orchestrator, or the one recorded in the datastore
// once the trial is forgotten
func (s *OrchestratorServer) handleSamples(c *gin.Context) {
	id := c.Param("id")
	trace, err := s.orch.Trace(id)
	if errors.Is(err, orchestrator.ErrTrialNotFound) && s.orch.Datastore() != nil {
		trace, err = datastore.Trace(c.Request.Context(), s.orch.Datastore(), id)
	}
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trace)
}

func (s *OrchestratorServer) handleWatch(c *gin.Context) {
	states, err := parseStates(c.QueryArray("state"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		klog.Errorf("upgrading watch connection: %v", err)
		return
	}
	conn := newConn(ws)
	defer conn.close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go func() {
		// the client never writes, a read error means it left
		for {
			if _, _, err := ws.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()
	for info := range s.orch.WatchTrials(ctx, states...) {
		conn.wlock.Lock()
		err := ws.WriteJSON(info)
		conn.wlock.Unlock()
		if err != nil {
			return
		}
	}
}

func (s *OrchestratorServer) handleJoin(c *gin.Context) {
	id := c.Param("id")
	actorName := c.Query("actor")
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		klog.Errorf("upgrading join connection: %v", err)
		return
	}
	conn := newConn(ws)
	defer conn.close()

	bridge := func(ctx context.Context, session *types.ActorSession) error {
		info := session.ActorInfo
		init := &InitFrame{TrialID: session.TrialID, Config: session.Config, Actor: &info}
		if err := conn.write(Frame{Kind: FrameInit, Init: init}); err != nil {
			return err
		}
		return bridgeActor(ctx, conn, session)
	}
	if err := s.orch.JoinTrial(s.ctx, id, actorName, bridge); err != nil {
		klog.V(1).Infof("actor %s in trial %s: %v", actorName, id, err)
		conn.write(doneFrame(err))
	}
}

func parseStates(raw []string) ([]types.TrialState, error) {
	states := make([]types.TrialState, 0, len(raw))
	for _, r := range raw {
		st, err := types.ParseTrialState(r)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

func containsState(states []types.TrialState, s types.TrialState) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

package webclient

import (
	"context"
	"embed"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/types"
	"k8s.io/klog/v2"
)

//go:embed static
var static embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Trials starts the trials the pages play in, implemented by the orchestrator and its controller
type Trials interface {
	StartTrial(ctx context.Context, params *types.TrialParameters, trialID string) (string, error)
	JoinTrial(ctx context.Context, trialID, actorName string, impl types.ActorImpl) error
	TerminateTrial(ctx context.Context, trialID string, hard bool) error
}

// Server serves the page and one trial per websocket connection
type Server struct {
	Addr string

	trials Trials
	params *types.TrialParameters
	human  string
	engine *gin.Engine
	ctx    context.Context
}

// NewServer plays the actor named human of params from the page, the other participants are kept as is
func NewServer(ctx context.Context, addr string, trials Trials, params *types.TrialParameters, human string) (*Server, error) {
	found := false
	for _, a := range params.Actors {
		if a.Name == human {
			found = true
		}
	}
	if !found {
		return nil, errors.Errorf("no actor named %s in the trial parameters", human)
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		Addr:   addr,
		trials: trials,
		params: params,
		human:  human,
		engine: gin.New(),
		ctx:    ctx,
	}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "human": s.human})
	})
	s.engine.GET("/ws", s.handleWebsocket)
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) ListenAndServe() error {
	server := &http.Server{Addr: s.Addr, Handler: s.engine}
	go func() {
		<-s.ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serving web client")
	}
	return nil
}

func (s *Server) handleIndex(c *gin.Context) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// trialParameters copies the parameters with the human joining as a client
func (s *Server) trialParameters() *types.TrialParameters {
	params := *s.params
	params.Actors = make([]types.ActorParameters, len(s.params.Actors))
	for i, a := range s.params.Actors {
		if a.Name == s.human {
			a.Endpoint = types.ClientEndpoint
		}
		params.Actors[i] = a
	}
	return &params
}

func (s *Server) handleWebsocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		klog.Errorf("upgrading web client connection: %v", err)
		return
	}
	g := newGame(uuid.NewString(), ws)
	if err := g.play(s.ctx, s); err != nil {
		klog.V(1).Infof("[web %s] %v", g.id, err)
	}
}

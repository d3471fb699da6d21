package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/types"
	"k8s.io/klog/v2"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server serves the actor and environment implementations registered in a context,
// each websocket connection runs one implementation for one trial
type Server struct {
	Addr    string
	context *types.Context
	engine  *gin.Engine
	ctx     context.Context
}

func NewServer(ctx context.Context, addr string, c *types.Context) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		Addr:    addr,
		context: c,
		engine:  gin.New(),
		ctx:     ctx,
	}
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/actors/:impl", s.handleActor)
	s.engine.GET("/environments/:impl", s.handleEnvironment)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"actors":       s.context.ActorImpls(),
		"environments": s.context.EnvironmentImpls(),
	})
}

func (s *Server) handleActor(c *gin.Context) {
	implName := c.Param("impl")
	className := c.Query("class")
	impl, ok := s.context.Actor(implName, className)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no actor implementation " + implName + " for class " + className})
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		klog.Errorf("upgrading actor connection: %v", err)
		return
	}
	conn := newConn(ws)
	defer conn.close()

	f, err := conn.readKind(FrameInit)
	if err != nil || f.Init == nil {
		klog.Errorf("actor %s: invalid init: %v", implName, err)
		return
	}
	klog.V(1).Infof("actor %s serving trial %s", implName, f.Init.TrialID)
	if err := runActor(s.ctx, conn, f.Init, impl); err != nil {
		klog.Errorf("actor %s in trial %s: %v", implName, f.Init.TrialID, err)
	}
}

func (s *Server) handleEnvironment(c *gin.Context) {
	implName := c.Param("impl")
	impl, ok := s.context.Environment(implName)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no environment implementation " + implName})
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		klog.Errorf("upgrading environment connection: %v", err)
		return
	}
	conn := newConn(ws)
	defer conn.close()

	f, err := conn.readKind(FrameInit)
	if err != nil || f.Init == nil {
		klog.Errorf("environment %s: invalid init: %v", implName, err)
		return
	}
	klog.V(1).Infof("environment %s serving trial %s", implName, f.Init.TrialID)
	if err := runEnvironment(s.ctx, conn, f.Init, impl); err != nil {
		klog.Errorf("environment %s in trial %s: %v", implName, f.Init.TrialID, err)
	}
}

// ListenAndServe until ctx is done
func (s *Server) ListenAndServe() error {
	return serve(s.ctx, s.Addr, s.engine)
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()
	klog.Infof("listening on %s", addr)
	select {
	case err := <-errs:
		return errors.Wrapf(err, "serving on %s", addr)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

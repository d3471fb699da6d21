package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/types"
)

const (
	writeWait = 10 * time.Second
)

var (
	ErrUnexpectedFrame = errors.New("unexpected frame")
	errRemoteDone      = errors.New("remote done")
)

type FrameKind string

const (
	FrameInit              FrameKind = "init"
	FrameActorEvent        FrameKind = "actor_event"
	FrameActorOutput       FrameKind = "actor_output"
	FrameEnvironmentEvent  FrameKind = "environment_event"
	FrameEnvironmentOutput FrameKind = "environment_output"
	// FrameDone is sent by the side running the implementation once it returned
	FrameDone FrameKind = "done"
)

// InitFrame describes the session the implementation is bound to
type InitFrame struct {
	TrialID string          `json:"trial_id"`
	Config  json.RawMessage `json:"config,omitempty"`
	// set for actors
	Actor *types.ActorInfo `json:"actor,omitempty"`
	// set for environments
	EnvironmentName string            `json:"environment_name,omitempty"`
	Implementation  string            `json:"implementation,omitempty"`
	Actors          []types.ActorInfo `json:"actors,omitempty"`
}

// Frame is the unit exchanged over the websocket connections, one field is set depending on the kind
type Frame struct {
	Kind              FrameKind                `json:"kind"`
	Init              *InitFrame               `json:"init,omitempty"`
	ActorEvent        *types.ActorEvent        `json:"actor_event,omitempty"`
	ActorOutput       *types.ActorOutput       `json:"actor_output,omitempty"`
	EnvironmentEvent  *types.EnvironmentEvent  `json:"environment_event,omitempty"`
	EnvironmentOutput *types.EnvironmentOutput `json:"environment_output,omitempty"`
	Error             string                   `json:"error,omitempty"`
}

// conn serializes the writes on a websocket connection
type conn struct {
	ws     *websocket.Conn
	wlock  sync.Mutex
	closed sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{ws: ws}
}

func (c *conn) write(f Frame) error {
	c.wlock.Lock()
	defer c.wlock.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return errors.Wrapf(c.ws.WriteJSON(f), "writing %s frame", f.Kind)
}

func (c *conn) read() (Frame, error) {
	f := Frame{}
	err := c.ws.ReadJSON(&f)
	return f, err
}

// readKind reads the next frame and checks its kind
func (c *conn) readKind(kind FrameKind) (Frame, error) {
	f, err := c.read()
	if err != nil {
		return f, err
	}
	if f.Kind != kind {
		return f, errors.Wrapf(ErrUnexpectedFrame, "expected %s, got %s", kind, f.Kind)
	}
	return f, nil
}

func (c *conn) close() {
	c.closed.Do(func() {
		c.wlock.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.wlock.Unlock()
		c.ws.Close()
	})
}

func doneFrame(err error) Frame {
	f := Frame{Kind: FrameDone}
	if err != nil {
		f.Error = err.Error()
	}
	return f
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, websocket.ErrCloseSent)
}

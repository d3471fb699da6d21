package webclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/rps"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

const (
	// Time allowed to write a message to the page.
	writeWait = 1 * time.Second
	// Time allowed to read the next pong message from the page.
	pongWait = 60 * time.Second
	// Send pings to the page with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Time a move waits for the player to expect it
	moveWait       = 500 * time.Millisecond
	maxMessageSize = 512

	moveInterval = 100 * time.Millisecond
	moveBurst    = 3
)

var errGameOver = errors.New("game over")

// game is one page playing one trial over a websocket
type game struct {
	id string
	ws *websocket.Conn

	wlock     sync.Mutex
	closeOnce sync.Once

	limiter *rate.Limiter
	updates chan ServerMessage
	moves   chan rps.Move
}

func newGame(id string, ws *websocket.Conn) *game {
	return &game{
		id:      id,
		ws:      ws,
		limiter: rate.NewLimiter(rate.Every(moveInterval), moveBurst),
		updates: make(chan ServerMessage, 4),
		moves:   make(chan rps.Move),
	}
}

func (g *game) write(msg ServerMessage) error {
	g.wlock.Lock()
	defer g.wlock.Unlock()
	if err := g.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return errors.Wrap(err, "setting write deadline")
	}
	return errors.Wrap(g.ws.WriteJSON(msg), "writing to the page")
}

func (g *game) writeError(msg string) error {
	return g.write(ServerMessage{Type: MessageError, Error: msg})
}

func (g *game) close() {
	g.closeOnce.Do(func() {
		g.wlock.Lock()
		_ = g.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		g.wlock.Unlock()
		g.ws.Close()
	})
}

// play runs the trial and the websocket pumps until the trial is over or the page leaves
func (g *game) play(ctx context.Context, s *Server) error {
	defer g.close()
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return g.runTrial(gctx, s)
	})
	group.Go(func() error {
		return g.publish()
	})
	group.Go(func() error {
		return g.readMoves(gctx)
	})
	group.Go(func() error {
		return g.pingPong(gctx)
	})
	group.Go(func() error {
		<-gctx.Done()
		g.close()
		return nil
	})

	err := group.Wait()
	if errors.Is(err, errGameOver) {
		return nil
	}
	return err
}

func (g *game) send(ctx context.Context, msg ServerMessage) {
	select {
	case g.updates <- msg:
	case <-ctx.Done():
	}
}

func (g *game) runTrial(ctx context.Context, s *Server) error {
	defer close(g.updates)

	id, err := s.trials.StartTrial(ctx, s.trialParameters(), "web-"+g.id)
	if err != nil {
		g.send(ctx, ServerMessage{Type: MessageEnd, Error: err.Error()})
		return nil
	}
	klog.Infof("[web %s] playing trial %s", g.id, id)
	g.send(ctx, ServerMessage{Type: MessageTrial, TrialID: id})

	end := ServerMessage{Type: MessageEnd, TrialID: id}
	if err := s.trials.JoinTrial(ctx, id, s.human, humanPlayer(g.updates, g.moves)); err != nil {
		end.Error = err.Error()
		terminateCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if err := s.trials.TerminateTrial(terminateCtx, id, true); err != nil {
			klog.V(1).Infof("[web %s] terminating trial %s: %v", g.id, id, err)
		}
	}
	g.send(ctx, end)
	return nil
}

// publish writes the updates until the trial is over
func (g *game) publish() error {
	for msg := range g.updates {
		if err := g.write(msg); err != nil {
			return err
		}
	}
	return errGameOver
}

func (g *game) readMoves(ctx context.Context) error {
	g.ws.SetReadLimit(maxMessageSize)
	_ = g.ws.SetReadDeadline(time.Now().Add(pongWait))
	g.ws.SetPongHandler(func(string) error {
		return g.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := g.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "reading moves")
		}
		if !g.limiter.Allow() {
			if err := g.writeError("too many moves"); err != nil {
				return err
			}
			continue
		}
		msg := ClientMessage{}
		if err := json.Unmarshal(raw, &msg); err != nil || !msg.Move.Valid() {
			if err := g.writeError("invalid move " + string(raw)); err != nil {
				return err
			}
			continue
		}

		select {
		case g.moves <- msg.Move:
		case <-time.After(moveWait):
			if err := g.writeError("not expecting a move"); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (g *game) pingPong(ctx context.Context) error {
	pinger := channerics.NewTicker(ctx.Done(), pingPeriod)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-pinger:
			if !ok {
				return nil
			}
			g.wlock.Lock()
			err := g.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			g.wlock.Unlock()
			if err != nil {
				return errors.Wrap(err, "ping failed")
			}
		}
	}
}

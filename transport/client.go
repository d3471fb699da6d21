package transport

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/orchestrator"
	"github.com/zeu5/rps-arena/types"
)

func dial(ctx context.Context, rawURL string) (*conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "dialing %s (%s)", rawURL, resp.Status)
		}
		return nil, errors.Wrapf(err, "dialing %s", rawURL)
	}
	return newConn(ws), nil
}

// ActorClient is an actor implementation delegating to implName served at endpoint
func ActorClient(endpoint types.Endpoint, implName string) types.ActorImpl {
	return func(ctx context.Context, s *types.ActorSession) error {
		u := fmt.Sprintf("ws://%s/actors/%s?class=%s", endpoint.Address(), url.PathEscape(implName), url.QueryEscape(s.ClassName))
		c, err := dial(ctx, u)
		if err != nil {
			return err
		}
		defer c.close()
		info := s.ActorInfo
		init := &InitFrame{TrialID: s.TrialID, Config: s.Config, Actor: &info}
		if err := c.write(Frame{Kind: FrameInit, Init: init}); err != nil {
			return err
		}
		return bridgeActor(ctx, c, s)
	}
}

// EnvironmentClient is an environment implementation delegating to implName served at endpoint
func EnvironmentClient(endpoint types.Endpoint, implName string) types.EnvironmentImpl {
	return func(ctx context.Context, s *types.EnvironmentSession) error {
		name := implName
		if name == "" {
			name = types.DefaultEnvironmentImpl
		}
		u := fmt.Sprintf("ws://%s/environments/%s", endpoint.Address(), url.PathEscape(name))
		c, err := dial(ctx, u)
		if err != nil {
			return err
		}
		defer c.close()
		init := &InitFrame{
			TrialID:         s.TrialID,
			Config:          s.Config,
			EnvironmentName: s.Name,
			Implementation:  s.ImplName,
			Actors:          s.ActiveActors(),
		}
		if err := c.write(Frame{Kind: FrameInit, Init: init}); err != nil {
			return err
		}
		return bridgeEnvironment(ctx, c, s)
	}
}

// Resolver runs `local` participants in process and reaches the others over websocket
type Resolver struct {
	Local *orchestrator.LocalResolver
}

var _ orchestrator.Resolver = &Resolver{}

func NewResolver(c *types.Context) *Resolver {
	return &Resolver{Local: &orchestrator.LocalResolver{Context: c}}
}

func (r *Resolver) Actor(params types.ActorParameters) (types.ActorImpl, error) {
	e, err := types.ParseEndpoint(params.Endpoint)
	if err != nil {
		return nil, err
	}
	if e.Kind == types.EndpointRemote {
		return ActorClient(e, params.Implementation), nil
	}
	if r.Local == nil || r.Local.Context == nil {
		return nil, errors.Errorf("actor %s: no local implementations", params.Name)
	}
	return r.Local.Actor(params)
}

func (r *Resolver) Environment(params types.EnvironmentParameters) (types.EnvironmentImpl, error) {
	e, err := types.ParseEndpoint(params.Endpoint)
	if err != nil {
		return nil, err
	}
	if e.Kind == types.EndpointRemote {
		return EnvironmentClient(e, params.Implementation), nil
	}
	if r.Local == nil || r.Local.Context == nil {
		return nil, errors.New("environment: no local implementations")
	}
	return r.Local.Environment(params)
}

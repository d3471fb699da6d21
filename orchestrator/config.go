package orchestrator

import (
	"time"

	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/types"
)

var (
	ErrTrialNotFound    = errors.New("trial not found")
	ErrTrialExists      = errors.New("trial id already used")
	ErrTrialEnded       = errors.New("trial ended")
	ErrActorNotFound    = errors.New("actor not found in trial")
	ErrNotClientActor   = errors.New("actor does not join as a client")
	ErrAlreadyJoined    = errors.New("actor already joined")
	ErrInactive         = errors.New("trial actors inactive")
	ErrJoinTimeout      = errors.New("client actors did not join in time")
	ErrTrialTerminated  = errors.New("trial terminated")
	ErrParticipantLeft  = errors.New("participant left the trial")
	ErrEnvironmentEnded = errors.New("environment stopped producing observations")
)

type Config struct {
	// JoinTimeout bounds the time spent waiting for client actors, 0 waits forever
	JoinTimeout time.Duration
	// ShutdownTimeout bounds the wait for implementations once the trial is over
	ShutdownTimeout time.Duration
	// MaxEndedTrials is the number of ended trials kept for TrialInfo, oldest are forgotten
	MaxEndedTrials int
}

func DefaultConfig() Config {
	return Config{
		JoinTimeout:     5 * time.Minute,
		ShutdownTimeout: 5 * time.Second,
		MaxEndedTrials:  1000,
	}
}

// Resolver finds the implementations of the trial participants
// Client actors are not resolved, they join through JoinTrial
type Resolver interface {
	Actor(params types.ActorParameters) (types.ActorImpl, error)
	Environment(params types.EnvironmentParameters) (types.EnvironmentImpl, error)
}

// LocalResolver resolves `local` endpoints to the implementations registered in a context
type LocalResolver struct {
	Context *types.Context
}

var _ Resolver = &LocalResolver{}

func (l *LocalResolver) Actor(params types.ActorParameters) (types.ActorImpl, error) {
	e, err := types.ParseEndpoint(params.Endpoint)
	if err != nil {
		return nil, err
	}
	if e.Kind != types.EndpointLocal {
		return nil, errors.Errorf("actor %s: endpoint %s is not served locally", params.Name, params.Endpoint)
	}
	impl, ok := l.Context.Actor(params.Implementation, params.ClassName)
	if !ok {
		return nil, errors.Errorf("actor %s: no implementation %q for class %q", params.Name, params.Implementation, params.ClassName)
	}
	return impl, nil
}

func (l *LocalResolver) Environment(params types.EnvironmentParameters) (types.EnvironmentImpl, error) {
	e, err := types.ParseEndpoint(params.Endpoint)
	if err != nil {
		return nil, err
	}
	if e.Kind != types.EndpointLocal {
		return nil, errors.Errorf("environment: endpoint %s is not served locally", params.Endpoint)
	}
	impl, ok := l.Context.Environment(params.Implementation)
	if !ok {
		return nil, errors.Errorf("environment: no implementation %q", params.Implementation)
	}
	return impl, nil
}

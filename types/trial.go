package types

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TrialState of the trial lifecycle
type TrialState int

const (
	TrialUnknown TrialState = iota
	TrialInitializing
	TrialPending
	TrialRunning
	TrialTerminating
	TrialEnded
)

var trialStateNames = map[TrialState]string{
	TrialUnknown:      "UNKNOWN",
	TrialInitializing: "INITIALIZING",
	TrialPending:      "PENDING",
	TrialRunning:      "RUNNING",
	TrialTerminating:  "TERMINATING",
	TrialEnded:        "ENDED",
}

func (s TrialState) String() string {
	if name, ok := trialStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TrialState(%d)", int(s))
}

// ParseTrialState is the inverse of String, case insensitive
func ParseTrialState(s string) (TrialState, error) {
	for state, name := range trialStateNames {
		if strings.EqualFold(name, s) {
			return state, nil
		}
	}
	return TrialUnknown, errors.Errorf("unknown trial state %q", s)
}

func (s TrialState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TrialState) UnmarshalText(b []byte) error {
	state, err := ParseTrialState(string(b))
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// CanTransition returns true if the lifecycle allows going from s to next
func (s TrialState) CanTransition(next TrialState) bool {
	switch s {
	case TrialUnknown:
		return next == TrialInitializing
	case TrialInitializing:
		return next == TrialPending || next == TrialTerminating || next == TrialEnded
	case TrialPending:
		return next == TrialRunning || next == TrialTerminating || next == TrialEnded
	case TrialRunning:
		return next == TrialTerminating || next == TrialEnded
	case TrialTerminating:
		return next == TrialEnded
	}
	return false
}

// TrialInfo is the public view of a trial
type TrialInfo struct {
	TrialID         string            `json:"trial_id"`
	State           TrialState        `json:"state"`
	TickID          uint64            `json:"tick_id"`
	Duration        time.Duration     `json:"duration"`
	EnvironmentName string            `json:"environment_name"`
	Properties      map[string]string `json:"properties,omitempty"`
	// Error that ended the trial, if any
	Error string `json:"error,omitempty"`
}

// ActorParameters configure one actor of a trial
type ActorParameters struct {
	Name           string          `json:"name" yaml:"name" mapstructure:"name"`
	ClassName      string          `json:"class_name" yaml:"class_name" mapstructure:"class_name"`
	Endpoint       string          `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Implementation string          `json:"implementation" yaml:"implementation" mapstructure:"implementation"`
	Config         json.RawMessage `json:"config,omitempty" yaml:"-" mapstructure:"-"`
}

// EnvironmentParameters configure the environment of a trial
type EnvironmentParameters struct {
	Name           string          `json:"name" yaml:"name" mapstructure:"name"`
	Endpoint       string          `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Implementation string          `json:"implementation" yaml:"implementation" mapstructure:"implementation"`
	Config         json.RawMessage `json:"config,omitempty" yaml:"-" mapstructure:"-"`
}

// TrialParameters fully describe a trial to start
type TrialParameters struct {
	Config      json.RawMessage       `json:"config,omitempty" yaml:"-" mapstructure:"-"`
	Properties  map[string]string     `json:"properties,omitempty" yaml:"properties" mapstructure:"properties"`
	Environment EnvironmentParameters `json:"environment" yaml:"environment" mapstructure:"environment"`
	Actors      []ActorParameters     `json:"actors" yaml:"actors" mapstructure:"actors"`
	// MaxSteps ends the trial once reached, 0 means no limit
	MaxSteps uint64 `json:"max_steps,omitempty" yaml:"max_steps" mapstructure:"max_steps"`
	// MaxInactivity terminates the trial when an actor does not act in time, 0 means no limit
	MaxInactivity  time.Duration `json:"max_inactivity,omitempty" yaml:"max_inactivity" mapstructure:"max_inactivity"`
	DatalogEnabled bool          `json:"datalog_enabled,omitempty" yaml:"datalog_enabled" mapstructure:"datalog_enabled"`
}

// Validate checks the parameters are usable to start a trial
func (p *TrialParameters) Validate() error {
	if len(p.Actors) == 0 {
		return errors.New("trial parameters without actors")
	}
	if _, err := ParseEndpoint(p.Environment.Endpoint); err != nil {
		return errors.Wrap(err, "environment")
	}
	names := make(map[string]bool)
	for i, a := range p.Actors {
		if a.Name == "" {
			return errors.Errorf("actor #%d has no name", i)
		}
		if names[a.Name] {
			return errors.Errorf("duplicate actor name %q", a.Name)
		}
		names[a.Name] = true
		if a.ClassName == "" {
			return errors.Errorf("actor %q has no class", a.Name)
		}
		if _, err := ParseEndpoint(a.Endpoint); err != nil {
			return errors.Wrapf(err, "actor %q", a.Name)
		}
	}
	return nil
}

// Printable returns a readable description of the parameters
func (p *TrialParameters) Printable() string {
	result := "Trial Parameters:\n"
	result = fmt.Sprintf("%s - Environment: %s (%s @ %s)\n", result, p.Environment.Name, p.Environment.Implementation, p.Environment.Endpoint)
	for _, a := range p.Actors {
		result = fmt.Sprintf("%s - Actor: %s [%s] (%s @ %s)\n", result, a.Name, a.ClassName, a.Implementation, a.Endpoint)
	}
	result = fmt.Sprintf("%s - MaxSteps: %d\n - MaxInactivity: %s\n", result, p.MaxSteps, p.MaxInactivity)
	return result
}

// EndpointKind is the way a trial participant is reached
type EndpointKind int

const (
	// EndpointLocal implementations run in the orchestrator process
	EndpointLocal EndpointKind = iota
	// EndpointClient actors join the trial themselves
	EndpointClient
	// EndpointRemote implementations are served by another process
	EndpointRemote
)

const (
	LocalEndpoint  = "local"
	ClientEndpoint = "client"
)

// Endpoint of a trial participant
type Endpoint struct {
	Kind   EndpointKind
	Scheme string
	Host   string
	Port   string
}

// ErrEmptyEndpoint is returned for participants without an endpoint, in process ones use LocalEndpoint
var ErrEmptyEndpoint = errors.New("empty endpoint")

// ParseEndpoint accepts `local`, `client` and `<scheme>://host:port` with scheme grpc, ws or http
func ParseEndpoint(s string) (Endpoint, error) {
	switch s {
	case "":
		return Endpoint{}, ErrEmptyEndpoint
	case LocalEndpoint:
		return Endpoint{Kind: EndpointLocal}, nil
	case ClientEndpoint, "cogment://client":
		return Endpoint{Kind: EndpointClient}, nil
	}
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return Endpoint{}, errors.Errorf("invalid endpoint %q, expected <scheme>://host:port", s)
	}
	switch scheme {
	case "grpc", "ws", "http":
	default:
		return Endpoint{}, errors.Errorf("unsupported endpoint scheme %q", scheme)
	}
	host, port, err := net.SplitHostPort(strings.TrimSuffix(rest, "/"))
	if err != nil {
		return Endpoint{}, errors.Wrapf(err, "invalid endpoint %q", s)
	}
	if port == "" {
		return Endpoint{}, errors.Errorf("invalid endpoint %q: missing port", s)
	}
	return Endpoint{Kind: EndpointRemote, Scheme: scheme, Host: host, Port: port}, nil
}

// Address is the host:port of a remote endpoint
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, e.Port)
}

func (e Endpoint) String() string {
	switch e.Kind {
	case EndpointLocal:
		return LocalEndpoint
	case EndpointClient:
		return ClientEndpoint
	}
	return e.Scheme + "://" + e.Address()
}

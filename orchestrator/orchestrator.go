// Package orchestrator runs trials: it starts the environment and the actors,
// moves observations and actions between them tick after tick and tracks the
// lifecycle of every trial.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/datastore"
	"github.com/zeu5/rps-arena/types"
	"k8s.io/klog/v2"
)

type Orchestrator struct {
	cfg      Config
	resolver Resolver
	store    datastore.Datastore

	lock     sync.Mutex
	trials   map[string]*trial
	ended    []string
	watchers map[*watcher]struct{}
}

type Option func(*Orchestrator)

// WithDatastore records the samples of the trials with DatalogEnabled
func WithDatastore(d datastore.Datastore) Option {
	return func(o *Orchestrator) {
		o.store = d
	}
}

func New(cfg Config, resolver Resolver, opts ...Option) *Orchestrator {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	if cfg.MaxEndedTrials <= 0 {
		cfg.MaxEndedTrials = DefaultConfig().MaxEndedTrials
	}
	o := &Orchestrator{
		cfg:      cfg,
		resolver: resolver,
		trials:   make(map[string]*trial),
		ended:    make([]string, 0),
		watchers: make(map[*watcher]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Datastore of the orchestrator, nil when samples are not recorded
func (o *Orchestrator) Datastore() datastore.Datastore {
	return o.store
}

// StartTrial validates the parameters and starts the trial in the background
// The requested id must not be used by a known trial, an id is generated when empty
func (o *Orchestrator) StartTrial(ctx context.Context, params *types.TrialParameters, requestedID string) (string, error) {
	t, err := o.startTrial(params, requestedID, nil)
	if err != nil {
		return "", err
	}
	return t.id, nil
}

// RunTrial starts a trial and waits for it to end
func (o *Orchestrator) RunTrial(ctx context.Context, params *types.TrialParameters, report *types.TrialReport) (*types.Trace, error) {
	t, err := o.startTrial(params, "", report)
	if err != nil {
		return nil, err
	}
	select {
	case <-t.done:
	case <-ctx.Done():
		t.abort(ctx.Err())
		<-t.done
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	return t.trace, nil
}

func (o *Orchestrator) startTrial(params *types.TrialParameters, requestedID string, report *types.TrialReport) (*trial, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid trial parameters")
	}
	id := requestedID
	if id == "" {
		id = uuid.NewString()
	}
	if report == nil {
		report = types.NewTrialReport(id, "")
	}
	report.TrialID = id

	envName := params.Environment.Name
	if envName == "" {
		envName = DefaultEnvironmentName
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &trial{
		id:           id,
		params:       *params,
		envName:      envName,
		report:       report,
		state:        types.TrialUnknown,
		startTime:    time.Now(),
		trace:        types.NewTrace(),
		actors:       make([]*actorSlot, len(params.Actors)),
		actorOutputs: make(chan taggedOutput, 64),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	infos := make([]types.ActorInfo, len(params.Actors))
	for i, a := range params.Actors {
		infos[i] = types.ActorInfo{Name: a.Name, ClassName: a.ClassName, ImplName: a.Implementation}
		slot := &actorSlot{
			params:  a,
			session: types.NewActorSession(id, infos[i], a.Config),
			joined:  make(chan struct{}),
		}
		endpoint, _ := types.ParseEndpoint(a.Endpoint)
		if endpoint.Kind == types.EndpointClient {
			slot.client = true
		} else {
			impl, err := o.resolver.Actor(a)
			if err != nil {
				cancel()
				return nil, err
			}
			slot.impl = impl
		}
		t.actors[i] = slot
	}
	envImpl, err := o.resolver.Environment(params.Environment)
	if err != nil {
		cancel()
		return nil, err
	}
	t.envImpl = envImpl
	envConfig := params.Environment.Config
	if len(envConfig) == 0 {
		envConfig = params.Config
	}
	t.env = types.NewEnvironmentSession(id, envName, params.Environment.Implementation, infos, envConfig)

	o.lock.Lock()
	if _, ok := o.trials[id]; ok {
		o.lock.Unlock()
		cancel()
		return nil, errors.Wrap(ErrTrialExists, id)
	}
	o.trials[id] = t
	o.lock.Unlock()

	o.setState(t, types.TrialInitializing)
	klog.V(1).Infof("trial %s initializing with %d actors", id, len(t.actors))
	go o.run(t)
	return t, nil
}

// setState moves the trial to state and publishes the transition
func (o *Orchestrator) setState(t *trial, state types.TrialState) {
	o.lock.Lock()
	defer o.lock.Unlock()
	t.lock.Lock()
	if !t.state.CanTransition(state) {
		t.lock.Unlock()
		return
	}
	t.state = state
	if state == types.TrialEnded {
		t.endTime = time.Now()
	}
	info := t.infoLocked()
	t.lock.Unlock()
	for w := range o.watchers {
		w.publish(info)
	}
}

// TerminateTrial ends the trial: a hard termination stops it right away,
// otherwise the environment receives an ending event at the next tick
func (o *Orchestrator) TerminateTrial(ctx context.Context, trialID string, hard bool) error {
	t, err := o.trial(trialID)
	if err != nil {
		return err
	}
	if t.info().State == types.TrialEnded {
		return nil
	}
	if hard {
		o.setState(t, types.TrialTerminating)
		t.abort(ErrTrialTerminated)
		return nil
	}
	t.lock.Lock()
	t.softEnd = true
	t.lock.Unlock()
	return nil
}

// JoinTrial runs impl as the client actor actorName of the trial, returns once the actor is done
func (o *Orchestrator) JoinTrial(ctx context.Context, trialID, actorName string, impl types.ActorImpl) error {
	t, err := o.trial(trialID)
	if err != nil {
		return err
	}
	t.lock.Lock()
	if t.state == types.TrialEnded || t.state == types.TrialTerminating {
		t.lock.Unlock()
		return errors.Wrap(ErrTrialEnded, trialID)
	}
	slot, ok := t.slot(actorName)
	if !ok {
		t.lock.Unlock()
		return errors.Wrapf(ErrActorNotFound, "%s in %s", actorName, trialID)
	}
	if !slot.client {
		t.lock.Unlock()
		return errors.Wrap(ErrNotClientActor, actorName)
	}
	if slot.joinedFlag {
		t.lock.Unlock()
		return errors.Wrap(ErrAlreadyJoined, actorName)
	}
	slot.joinedFlag = true
	close(slot.joined)
	t.lock.Unlock()

	klog.V(1).Infof("actor %s joined trial %s", actorName, trialID)
	err = impl(ctx, slot.session)
	o.participantDone(t, actorName, err)
	return err
}

func (o *Orchestrator) participantDone(t *trial, name string, err error) {
	if t.finished(name) {
		if err != nil && !errors.Is(err, context.Canceled) {
			klog.V(1).Infof("trial %s: %s returned after the end: %v", t.id, name, err)
		}
		return
	}
	if err == nil {
		err = errors.Wrap(ErrParticipantLeft, name)
	} else {
		err = errors.Wrapf(err, "%s failed", name)
	}
	t.abort(err)
}

func (o *Orchestrator) trial(id string) (*trial, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	t, ok := o.trials[id]
	if !ok {
		return nil, errors.Wrap(ErrTrialNotFound, id)
	}
	return t, nil
}

// TrialInfo of a known trial
func (o *Orchestrator) TrialInfo(trialID string) (types.TrialInfo, error) {
	t, err := o.trial(trialID)
	if err != nil {
		return types.TrialInfo{}, err
	}
	return t.info(), nil
}

// Trace of a known trial, complete once the trial ended
func (o *Orchestrator) Trace(trialID string) (*types.Trace, error) {
	t, err := o.trial(trialID)
	if err != nil {
		return nil, err
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.trace.Slice(0, t.trace.Len()), nil
}

// Trials lists the known trials, oldest first
func (o *Orchestrator) Trials() []types.TrialInfo {
	o.lock.Lock()
	trials := o.sortedTrialsLocked()
	o.lock.Unlock()
	out := make([]types.TrialInfo, len(trials))
	for i, t := range trials {
		out[i] = t.info()
	}
	return out
}

func (o *Orchestrator) sortedTrialsLocked() []*trial {
	trials := make([]*trial, 0, len(o.trials))
	for _, t := range o.trials {
		trials = append(trials, t)
	}
	sort.Slice(trials, func(i, j int) bool {
		return trials[i].startTime.Before(trials[j].startTime)
	})
	return trials
}

// Shutdown terminates all the live trials and waits for them
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.lock.Lock()
	trials := o.sortedTrialsLocked()
	o.lock.Unlock()
	for _, t := range trials {
		t.abort(ErrTrialTerminated)
	}
	for _, t := range trials {
		select {
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (o *Orchestrator) forget(t *trial) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.ended = append(o.ended, t.id)
	for len(o.ended) > o.cfg.MaxEndedTrials {
		delete(o.trials, o.ended[0])
		o.ended = o.ended[1:]
	}
}

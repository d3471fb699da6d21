package dqn

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/nn"
	"github.com/zeu5/rps-arena/policies"
	"github.com/zeu5/rps-arena/registry"
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// FeatureSize is the size of the model input: one-hot of both last moves
const FeatureSize = 6

// Features encodes the last moves of the observation, none is all zeros
func Features(obs *rps.Observation) []float64 {
	f := make([]float64, FeatureSize)
	if i := obs.Me.LastMove.Index(); i >= 0 {
		f[i] = 1
	}
	if i := obs.Them.LastMove.Index(); i >= 0 {
		f[3+i] = 1
	}
	return f
}

// Agent is a deep-Q player shared by all the trials it plays, it trains after every trial
type Agent struct {
	params    Hyperparameters
	modelName string
	registry  registry.Registry

	lock       sync.Mutex
	rand       *rand.Rand
	model      *nn.MLP
	target     *nn.MLP
	opt        *nn.Adam
	buffer     *ReplayBuffer
	epsilon    *Epsilon
	trials     int
	sinceSync  int
	lastLoss   float64
	trainSteps int
}

type Option func(*Agent)

// WithRegistry publishes the weights under name every PublishEvery trials
func WithRegistry(r registry.Registry, name string) Option {
	return func(a *Agent) {
		a.registry = r
		a.modelName = name
	}
}

func NewAgent(params Hyperparameters, r *policies.Rand, opts ...Option) *Agent {
	if r == nil {
		r = policies.NewRand(0)
	}
	rnd := rand.New(r.Source())
	a := &Agent{
		params:    params,
		modelName: ImplName,
		rand:      rnd,
		model:     nn.NewMLP(rnd, FeatureSize, params.HiddenSize, len(rps.Moves)),
		target:    nn.NewMLP(rnd, FeatureSize, params.HiddenSize, len(rps.Moves)),
		opt:       nn.NewAdam(params.LearningRate, params.ClipNorm),
		buffer:    NewReplayBuffer(params.ReplayCapacity),
		epsilon:   NewEpsilon(params.EpsilonMax, params.EpsilonMin, params.EpsilonDecayTicks),
	}
	if err := a.target.CopyFrom(a.model); err != nil {
		klog.Errorf("[%s] initializing the target model: %v", a.modelName, err)
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// LoadLatest starts from the latest published weights, returns the loaded version
func (a *Agent) LoadLatest(ctx context.Context) (int64, error) {
	if a.registry == nil {
		return 0, errors.New("no model registry")
	}
	version, payload, err := a.registry.Latest(ctx, a.modelName)
	if err != nil {
		return 0, err
	}
	loaded := &nn.MLP{}
	if err := json.Unmarshal(payload, loaded); err != nil {
		return 0, errors.Wrapf(err, "decoding %s@%d", a.modelName, version)
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	if err := a.model.CopyFrom(loaded); err != nil {
		return 0, errors.Wrapf(err, "loading %s@%d", a.modelName, version)
	}
	if err := a.target.CopyFrom(loaded); err != nil {
		return 0, err
	}
	klog.Infof("[%s] loaded version %d", a.modelName, version)
	return version, nil
}

// Publish the current weights to the registry
func (a *Agent) Publish(ctx context.Context) (int64, error) {
	if a.registry == nil {
		return 0, errors.New("no model registry")
	}
	a.lock.Lock()
	payload, err := json.Marshal(a.model)
	a.lock.Unlock()
	if err != nil {
		return 0, errors.Wrap(err, "encoding model")
	}
	version, err := a.registry.Publish(ctx, a.modelName, payload)
	if err != nil {
		return 0, err
	}
	klog.V(1).Infof("[%s] published version %d", a.modelName, version)
	return version, nil
}

// QValues of the observation according to the current model
func (a *Agent) QValues(obs *rps.Observation) []float64 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.model.Predict(Features(obs))
}

// act picks a move epsilon-greedily, the exploration rate decays at every call
func (a *Agent) act(obs *rps.Observation) int {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.rand.Float64() < a.epsilon.Next() {
		return a.rand.Intn(len(rps.Moves))
	}
	return nn.Argmax(a.model.Predict(Features(obs)))
}

// Train one batch from the replay buffer, returns false while the buffer is smaller than a batch
func (a *Agent) Train() (float64, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.trainLocked()
}

func (a *Agent) trainLocked() (float64, bool) {
	n := a.params.BatchSize
	if a.buffer.Len() < n || n <= 0 {
		return 0, false
	}
	batch := a.buffer.Sample(a.rand, n)
	states := mat.NewDense(n, FeatureSize, nil)
	next := mat.NewDense(n, FeatureSize, nil)
	for i, t := range batch {
		states.SetRow(i, t.State)
		next.SetRow(i, t.NextState)
	}

	nextQ := a.target.Forward(next)
	targets := make([]float64, n)
	for i, t := range batch {
		targets[i] = t.Reward + a.params.Gamma*mat.Max(nextQ.RowView(i))
	}

	estimated := a.model.Forward(states)
	grad := mat.NewDense(n, len(rps.Moves), nil)
	loss := 0.0
	for i, t := range batch {
		diff := estimated.At(i, t.Action) - targets[i]
		loss += nn.Huber(diff)
		grad.Set(i, t.Action, nn.HuberGrad(diff)/float64(n))
	}
	loss /= float64(n)
	a.model.Backward(grad)
	a.opt.Step(a.model)
	a.lastLoss = loss
	a.trainSteps++
	return loss, true
}

// trialRecord holds what the player saw during one trial, rows are indexed by tick
type trialRecord struct {
	states  [][]float64
	actions []int
	rewards []float64
}

func (r *trialRecord) transitions() []Transition {
	steps := len(r.actions)
	if len(r.states) <= steps {
		// no final observation, the last action has no next state
		steps = len(r.states) - 1
	}
	if steps < 0 {
		steps = 0
	}
	out := make([]Transition, 0, steps)
	for i := 0; i < steps; i++ {
		out = append(out, Transition{
			State:     r.states[i],
			Action:    r.actions[i],
			Reward:    r.rewards[i],
			NextState: r.states[i+1],
		})
	}
	return out
}

// syncTargetLocked copies the model weights to the target model, the samples are counted
// again from there
func (a *Agent) syncTargetLocked() error {
	if err := a.target.CopyFrom(a.model); err != nil {
		return err
	}
	a.sinceSync = 0
	return nil
}

func (a *Agent) endTrial(ctx context.Context, record *trialRecord) {
	ts := record.transitions()
	a.lock.Lock()
	a.buffer.Add(ts...)
	a.sinceSync += len(ts)
	a.trials++
	klog.V(1).Infof("[%s] %d new samples stored after a trial, now having %d samples over a total of %d collected samples",
		a.modelName, len(ts), a.buffer.Len(), a.buffer.Collected())
	if loss, ok := a.trainLocked(); ok {
		klog.V(1).Infof("[%s] loss=%g", a.modelName, loss)
	}
	if a.params.TargetUpdateInterval > 0 && a.sinceSync >= a.params.TargetUpdateInterval {
		if err := a.syncTargetLocked(); err != nil {
			klog.Errorf("[%s] updating the target model: %v", a.modelName, err)
		}
	}
	publish := a.registry != nil && a.params.PublishEvery > 0 && a.trials%a.params.PublishEvery == 0
	a.lock.Unlock()

	if publish {
		if _, err := a.Publish(ctx); err != nil {
			klog.Errorf("[%s] publishing weights: %v", a.modelName, err)
		}
	}
}

// Actor plays with the model and learns from the trial once it is over
func (a *Agent) Actor() types.ActorImpl {
	return func(ctx context.Context, s *types.ActorSession) error {
		record := &trialRecord{
			states:  make([][]float64, 0),
			actions: make([]int, 0),
			rewards: make([]float64, 0),
		}
		err := s.Loop(ctx, func(ev types.ActorEvent) error {
			policies.LogEvent(s, ev)
			if ev.HasObservation() {
				obs, err := rps.DecodeObservation(ev.Observation)
				if err != nil {
					return err
				}
				record.states = append(record.states, Features(obs))
				if ev.Type == types.EventActive {
					action := a.act(obs)
					record.actions = append(record.actions, action)
					record.rewards = append(record.rewards, 0)
					raw, err := rps.EncodeAction(rps.Moves[action])
					if err != nil {
						return err
					}
					if err := s.DoAction(raw); err != nil {
						return err
					}
				}
			}
			for _, r := range ev.Rewards {
				if r.TickID < uint64(len(record.rewards)) {
					record.rewards[r.TickID] = float64(r.Value)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		a.endTrial(ctx, record)
		return nil
	}
}

func (a *Agent) Trials() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.trials
}

func (a *Agent) BufferLen() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.buffer.Len()
}

// Register the agent actor implementation in the context
func Register(c *types.Context, a *Agent) error {
	return c.RegisterActor(a.Actor(), ImplName, rps.ActorClass)
}

package ppo

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/dqn"
	"github.com/zeu5/rps-arena/nn"
	"github.com/zeu5/rps-arena/policies"
	"github.com/zeu5/rps-arena/registry"
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/sampleuv"
	"k8s.io/klog/v2"
)

// Step of a rollout
type Step struct {
	State     []float64
	Action    int
	Prob      float64
	Value     float64
	Reward    float64
	Advantage float64
	Return    float64
}

type weights struct {
	Policy *nn.MLP `json:"policy"`
	Value  *nn.MLP `json:"value"`
}

// Agent is an actor-critic player updated with PPO every TrialsPerUpdate trials
type Agent struct {
	params    Hyperparameters
	modelName string
	registry  registry.Registry

	lock      sync.Mutex
	rand      *rand.Rand
	policy    *nn.MLP
	value     *nn.MLP
	policyOpt *nn.Adam
	valueOpt  *nn.Adam
	rollouts  []Step
	trials    int
	updates   int
}

type Option func(*Agent)

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
		policy:    nn.NewMLP(rnd, dqn.FeatureSize, params.HiddenSize, len(rps.Moves)),
		value:     nn.NewMLP(rnd, dqn.FeatureSize, params.HiddenSize, 1),
		policyOpt: nn.NewAdam(params.LearningRate, params.ClipNorm),
		valueOpt:  nn.NewAdam(params.LearningRate, params.ClipNorm),
		rollouts:  make([]Step, 0),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Probabilities of the moves for the observation
func (a *Agent) Probabilities(obs *rps.Observation) []float64 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return nn.Softmax(a.policy.Predict(dqn.Features(obs)))
}

// newSource for the sampling of one trial
func (a *Agent) newSource() rand.Source {
	a.lock.Lock()
	defer a.lock.Unlock()
	return rand.NewSource(a.rand.Uint64())
}

func (a *Agent) act(state []float64, src rand.Source) (int, float64, float64) {
	a.lock.Lock()
	defer a.lock.Unlock()
	probs := nn.Softmax(a.policy.Predict(state))
	value := a.value.Predict(state)[0]
	action, ok := sampleuv.NewWeighted(probs, src).Take()
	if !ok {
		action = nn.Argmax(probs)
	}
	return action, probs[action], value
}

// AddTrial computes the advantages of the steps of a trial and queues them for the next update
func (a *Agent) AddTrial(steps []Step) {
	rewards := make([]float64, len(steps))
	values := make([]float64, len(steps))
	for i, s := range steps {
		rewards[i] = s.Reward
		values[i] = s.Value
	}
	advantages := Advantages(rewards, values, a.params.Gamma, a.params.Lambda)
	for i := range steps {
		steps[i].Advantage = advantages[i]
		steps[i].Return = advantages[i] + values[i]
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	a.rollouts = append(a.rollouts, steps...)
	a.trials++
}

// Ready is true once enough trials were collected for an update
func (a *Agent) Ready() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.params.TrialsPerUpdate > 0 && a.trials >= a.params.TrialsPerUpdate && len(a.rollouts) > 0
}

// Update runs the PPO epochs over the collected steps and clears them, returns the mean loss
func (a *Agent) Update() float64 {
	a.lock.Lock()
	defer a.lock.Unlock()
	steps := a.rollouts
	a.rollouts = make([]Step, 0)
	a.trials = 0
	if len(steps) == 0 {
		return 0
	}
	size := a.params.MinibatchSize
	if size <= 0 || size > len(steps) {
		size = len(steps)
	}
	totalLoss := 0.0
	batches := 0
	for epoch := 0; epoch < a.params.Epochs; epoch++ {
		order := a.rand.Perm(len(steps))
		for start := 0; start < len(order); start += size {
			end := start + size
			if end > len(order) {
				end = len(order)
			}
			batch := make([]Step, 0, end-start)
			for _, i := range order[start:end] {
				batch = append(batch, steps[i])
			}
			totalLoss += a.updateBatch(batch)
			batches++
		}
	}
	a.updates++
	if batches == 0 {
		return 0
	}
	return totalLoss / float64(batches)
}

func (a *Agent) updateBatch(batch []Step) float64 {
	n := len(batch)
	states := mat.NewDense(n, dqn.FeatureSize, nil)
	for i, s := range batch {
		states.SetRow(i, s.State)
	}
	probs := rowsSoftmax(a.policy.Forward(states))
	values := a.value.Forward(states)

	policyGrads := mat.NewDense(n, len(rps.Moves), nil)
	valueGrads := mat.NewDense(n, 1, nil)
	loss := 0.0
	for i, s := range batch {
		g := policyGrad(probs[i], s.Action, s.Prob, s.Advantage, a.params.Epsilon, a.params.EntropyCoef)
		for k := range g {
			policyGrads.Set(i, k, g[k]/float64(n))
		}
		diff := values.At(i, 0) - s.Return
		valueGrads.Set(i, 0, a.params.ValueCoef*diff/float64(n))

		ratio := probs[i][s.Action] / s.Prob
		clipped := ratio
		if clipped < 1-a.params.Epsilon {
			clipped = 1 - a.params.Epsilon
		} else if clipped > 1+a.params.Epsilon {
			clipped = 1 + a.params.Epsilon
		}
		surrogate := ratio * s.Advantage
		if clipped*s.Advantage < surrogate {
			surrogate = clipped * s.Advantage
		}
		loss += -surrogate + a.params.ValueCoef*0.5*diff*diff - a.params.EntropyCoef*entropy(probs[i])
	}
	a.policy.Backward(policyGrads)
	a.policyOpt.Step(a.policy)
	a.value.Backward(valueGrads)
	a.valueOpt.Step(a.value)
	return loss / float64(n)
}

func (a *Agent) LoadLatest(ctx context.Context) (int64, error) {
	if a.registry == nil {
		return 0, errors.New("no model registry")
	}
	version, payload, err := a.registry.Latest(ctx, a.modelName)
	if err != nil {
		return 0, err
	}
	w := &weights{}
	if err := json.Unmarshal(payload, w); err != nil {
		return 0, errors.Wrapf(err, "decoding %s@%d", a.modelName, version)
	}
	if w.Policy == nil || w.Value == nil {
		return 0, errors.Errorf("%s@%d misses a network", a.modelName, version)
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	if err := a.policy.CopyFrom(w.Policy); err != nil {
		return 0, err
	}
	if err := a.value.CopyFrom(w.Value); err != nil {
		return 0, err
	}
	klog.Infof("[%s] loaded version %d", a.modelName, version)
	return version, nil
}

func (a *Agent) Publish(ctx context.Context) (int64, error) {
	if a.registry == nil {
		return 0, errors.New("no model registry")
	}
	a.lock.Lock()
	payload, err := json.Marshal(&weights{Policy: a.policy, Value: a.value})
	a.lock.Unlock()
	if err != nil {
		return 0, errors.Wrap(err, "encoding model")
	}
	return a.registry.Publish(ctx, a.modelName, payload)
}

func (a *Agent) Updates() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.updates
}

func (a *Agent) endTrial(ctx context.Context, steps []Step) {
	a.AddTrial(steps)
	if !a.Ready() {
		return
	}
	loss := a.Update()
	updates := a.Updates()
	klog.V(1).Infof("[%s] update #%d over %d steps, loss=%g", a.modelName, updates, len(steps), loss)
	if a.registry != nil && a.params.PublishEvery > 0 && updates%a.params.PublishEvery == 0 {
		if _, err := a.Publish(ctx); err != nil {
			klog.Errorf("[%s] publishing weights: %v", a.modelName, err)
		}
	}
}

// Actor samples moves from the policy, rewards are assigned to the step of their tick
func (a *Agent) Actor() types.ActorImpl {
	return func(ctx context.Context, s *types.ActorSession) error {
		src := a.newSource()
		steps := make([]Step, 0)
		err := s.Loop(ctx, func(ev types.ActorEvent) error {
			policies.LogEvent(s, ev)
			for _, r := range ev.Rewards {
				if r.TickID < uint64(len(steps)) {
					steps[r.TickID].Reward += float64(r.Value)
				}
			}
			if ev.Type != types.EventActive || !ev.HasObservation() {
				return nil
			}
			obs, err := rps.DecodeObservation(ev.Observation)
			if err != nil {
				return err
			}
			state := dqn.Features(obs)
			action, prob, value := a.act(state, src)
			steps = append(steps, Step{State: state, Action: action, Prob: prob, Value: value})
			raw, err := rps.EncodeAction(rps.Moves[action])
			if err != nil {
				return err
			}
			return s.DoAction(raw)
		})
		if err != nil {
			return err
		}
		a.endTrial(ctx, steps)
		return nil
	}
}

func Register(c *types.Context, a *Agent) error {
	return c.RegisterActor(a.Actor(), ImplName, rps.ActorClass)
}

package dqn

// ImplName is the implementation name of the deep-Q player
const ImplName = "dqn_agent"

type Hyperparameters struct {
	// BatchSize of the samples drawn from the replay buffer after each trial
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	// Gamma discounts future rewards
	Gamma        float64 `json:"gamma" yaml:"gamma" mapstructure:"gamma"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate" mapstructure:"learning_rate"`
	ClipNorm     float64 `json:"clip_norm" yaml:"clip_norm" mapstructure:"clip_norm"`
	// TargetUpdateInterval is the number of collected samples between two target model updates
	TargetUpdateInterval int     `json:"target_update_interval" yaml:"target_update_interval" mapstructure:"target_update_interval"`
	EpsilonMax           float64 `json:"epsilon_max" yaml:"epsilon_max" mapstructure:"epsilon_max"`
	EpsilonMin           float64 `json:"epsilon_min" yaml:"epsilon_min" mapstructure:"epsilon_min"`
	// EpsilonDecayTicks is the number of ticks to go from EpsilonMax to EpsilonMin
	EpsilonDecayTicks int `json:"epsilon_decay_ticks" yaml:"epsilon_decay_ticks" mapstructure:"epsilon_decay_ticks"`
	ReplayCapacity    int `json:"replay_capacity" yaml:"replay_capacity" mapstructure:"replay_capacity"`
	HiddenSize        int `json:"hidden_size" yaml:"hidden_size" mapstructure:"hidden_size"`
	// PublishEvery trials the weights are published to the registry, 0 disables publication
	PublishEvery int `json:"publish_every" yaml:"publish_every" mapstructure:"publish_every"`
}

func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		BatchSize:            50,
		Gamma:                0.99,
		LearningRate:         0.00025,
		ClipNorm:             1.0,
		TargetUpdateInterval: 100,
		EpsilonMax:           1.0,
		EpsilonMin:           0.05,
		EpsilonDecayTicks:    1000,
		ReplayCapacity:       100000,
		HiddenSize:           24,
		PublishEvery:         10,
	}
}

// Epsilon is the linearly decaying exploration rate
type Epsilon struct {
	value float64
	min   float64
	decay float64
}

func NewEpsilon(max, min float64, ticks int) *Epsilon {
	decay := 0.0
	if ticks > 0 {
		decay = (max - min) / float64(ticks)
	}
	return &Epsilon{value: max, min: min, decay: decay}
}

// Next returns the current rate and decays it
func (e *Epsilon) Next() float64 {
	current := e.value
	e.value -= e.decay
	if e.value < e.min {
		e.value = e.min
	}
	return current
}

func (e *Epsilon) Value() float64 {
	return e.value
}

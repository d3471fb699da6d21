package ppo

import (
	"math"

	"github.com/zeu5/rps-arena/nn"
	"gonum.org/v1/gonum/mat"
)

// ImplName is the implementation name of the PPO player
const ImplName = "ppo_agent"

const DefaultEpsilon = 0.2

type Hyperparameters struct {
	Gamma  float64 `json:"gamma" yaml:"gamma" mapstructure:"gamma"`
	Lambda float64 `json:"lambda" yaml:"lambda" mapstructure:"lambda"`
	// Epsilon bounds the change of the probability ratio
	Epsilon         float64 `json:"epsilon" yaml:"epsilon" mapstructure:"epsilon"`
	ValueCoef       float64 `json:"value_coef" yaml:"value_coef" mapstructure:"value_coef"`
	EntropyCoef     float64 `json:"entropy_coef" yaml:"entropy_coef" mapstructure:"entropy_coef"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate" mapstructure:"learning_rate"`
	ClipNorm        float64 `json:"clip_norm" yaml:"clip_norm" mapstructure:"clip_norm"`
	Epochs          int     `json:"epochs" yaml:"epochs" mapstructure:"epochs"`
	MinibatchSize   int     `json:"minibatch_size" yaml:"minibatch_size" mapstructure:"minibatch_size"`
	TrialsPerUpdate int     `json:"trials_per_update" yaml:"trials_per_update" mapstructure:"trials_per_update"`
	HiddenSize      int     `json:"hidden_size" yaml:"hidden_size" mapstructure:"hidden_size"`
	// PublishEvery updates the weights are published to the registry, 0 disables publication
	PublishEvery int `json:"publish_every" yaml:"publish_every" mapstructure:"publish_every"`
}

func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		Gamma:           0.99,
		Lambda:          0.95,
		Epsilon:         DefaultEpsilon,
		ValueCoef:       0.5,
		EntropyCoef:     0.01,
		LearningRate:    0.0003,
		ClipNorm:        0.5,
		Epochs:          4,
		MinibatchSize:   32,
		TrialsPerUpdate: 4,
		HiddenSize:      32,
		PublishEvery:    1,
	}
}

// Advantages computes generalized advantage estimates of one trial,
// the value after the last step is zero
func Advantages(rewards, values []float64, gamma, lambda float64) []float64 {
	advantages := make([]float64, len(rewards))
	accumulation := 0.0
	for t := len(rewards) - 1; t >= 0; t-- {
		delta := rewards[t] - values[t]
		if t+1 < len(rewards) {
			delta += gamma * values[t+1]
		}
		accumulation *= gamma * lambda
		accumulation += delta
		advantages[t] = accumulation
	}
	return advantages
}

func entropy(probs []float64) float64 {
	h := 0.0
	for _, p := range probs {
		if p > 0 {
			h -= p * math.Log(p)
		}
	}
	return h
}

// policyGrad is the gradient of the loss (negated clipped surrogate minus the entropy bonus)
// with respect to the logits of one step
func policyGrad(probs []float64, action int, oldProb, advantage, epsilon, entropyCoef float64) []float64 {
	grad := make([]float64, len(probs))
	ratio := probs[action] / oldProb
	clipped := math.Max(1-epsilon, math.Min(1+epsilon, ratio))
	// when the clipped term is the smaller one the objective does not depend on the logits
	surrogateActive := ratio*advantage <= clipped*advantage
	h := entropy(probs)
	for k, p := range probs {
		if surrogateActive {
			indicator := 0.0
			if k == action {
				indicator = 1
			}
			grad[k] -= advantage * ratio * (indicator - p)
		}
		if p > 0 {
			grad[k] += entropyCoef * p * (math.Log(p) + h)
		}
	}
	return grad
}

// rowsSoftmax applies Softmax to each row
func rowsSoftmax(logits *mat.Dense) [][]float64 {
	rows, _ := logits.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = nn.Softmax(mat.Row(nil, i, logits))
	}
	return out
}

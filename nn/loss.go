package nn

import "math"

// Huber loss of a single error with delta 1
func Huber(diff float64) float64 {
	if math.Abs(diff) <= 1 {
		return 0.5 * diff * diff
	}
	return math.Abs(diff) - 0.5
}

// HuberGrad is the derivative of Huber
func HuberGrad(diff float64) float64 {
	switch {
	case diff > 1:
		return 1
	case diff < -1:
		return -1
	}
	return diff
}

func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxVal := math.Inf(-1)
	for _, v := range logits {
		maxVal = math.Max(maxVal, v)
	}
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func Argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

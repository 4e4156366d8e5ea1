package nn

import "math"

// Criterion scores logits against a class label.
type Criterion interface {
	// Loss returns the loss and its gradient with respect to logits.
	Loss(logits []float64, label int) (float64, []float64)
}

// CrossEntropy is softmax followed by negative log-likelihood.
type CrossEntropy struct{}

// Loss implements Criterion.
func (CrossEntropy) Loss(logits []float64, label int) (float64, []float64) {
	probs := Softmax(logits)
	grad := make([]float64, len(probs))
	copy(grad, probs)
	grad[label]--
	return -math.Log(math.Max(probs[label], 1e-300)), grad
}

// Softmax returns the normalized exponentials of logits.
func Softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Argmax returns the index of the largest value.
func Argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

package nn

import "math"

const (
	beta1   = 0.9
	beta2   = 0.999
	epsilon = 1e-8
)

// Adam keeps first and second moment estimates for a fixed set of parameters.
type Adam struct {
	params []*Param
	lr     float64
	m      [][]float64
	v      [][]float64
	step   int
}

// NewAdam binds an optimizer to params with learning rate lr.
func NewAdam(params []*Param, lr float64) *Adam {
	a := &Adam{
		params: params,
		lr:     lr,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for i, p := range params {
		n := len(p.Value.RawMatrix().Data)
		a.m[i] = make([]float64, n)
		a.v[i] = make([]float64, n)
	}
	return a
}

// LearningRate returns the configured step size.
func (a *Adam) LearningRate() float64 { return a.lr }

// Step applies one bias-corrected update from the current gradients. Gradients are left
// untouched; callers clear them.
func (a *Adam) Step() {
	a.step++
	c1 := 1 - math.Pow(beta1, float64(a.step))
	c2 := 1 - math.Pow(beta2, float64(a.step))
	for i, p := range a.params {
		w := p.Value.RawMatrix().Data
		g := p.Grad.RawMatrix().Data
		m, v := a.m[i], a.v[i]
		for j := range w {
			m[j] = m[j]*beta1 + g[j]*(1-beta1)
			v[j] = v[j]*beta2 + g[j]*g[j]*(1-beta2)
			w[j] -= a.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + epsilon)
		}
	}
}

// Package nn holds the recurrent classifier, its loss criterion and optimizer.
package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Param is one trainable tensor and its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
	// Decay marks weight matrices that take part in regularization. Biases do not.
	Decay bool
}

func newParam(name string, rows, cols int, decay bool) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
		Decay: decay,
	}
}

// shadow shares Value with p and owns a fresh gradient.
func (p *Param) shadow() *Param {
	r, c := p.Value.Dims()
	return &Param{
		Name:  p.Name,
		Value: p.Value,
		Grad:  mat.NewDense(r, c, nil),
		Decay: p.Decay,
	}
}

func (p *Param) initUniform(rng *rand.Rand, limit float64) {
	data := p.Value.RawMatrix().Data
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
}

// L2Penalty returns ratio times the squared Frobenius norm of every decayed parameter.
func L2Penalty(params []*Param, ratio float64) float64 {
	var sum float64
	for _, p := range params {
		if !p.Decay {
			continue
		}
		data := p.Value.RawMatrix().Data
		sum += floats.Dot(data, data)
	}
	return ratio * sum
}

// AddL2Grad adds the gradient of L2Penalty to the parameters' gradients.
func AddL2Grad(params []*Param, ratio float64) {
	for _, p := range params {
		if !p.Decay {
			continue
		}
		floats.AddScaled(p.Grad.RawMatrix().Data, 2*ratio, p.Value.RawMatrix().Data)
	}
}

// ScaleGrad multiplies every gradient by s.
func ScaleGrad(params []*Param, s float64) {
	for _, p := range params {
		floats.Scale(s, p.Grad.RawMatrix().Data)
	}
}

// ZeroGrad clears every gradient.
func ZeroGrad(params []*Param) {
	for _, p := range params {
		p.Grad.Zero()
	}
}

// Finite reports whether every parameter value is a finite number.
func Finite(params []*Param) bool {
	for _, p := range params {
		for _, v := range p.Value.RawMatrix().Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

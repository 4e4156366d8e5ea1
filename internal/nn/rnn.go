package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/mwiater/emotune/internal/device"
	"github.com/mwiater/emotune/internal/hparams"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Spec is the topology of an RNN.
type Spec struct {
	InputDim  int
	HiddenDim int
	NLayers   int
	NClasses  int
	Dropout   float64
}

// SpecFrom derives the topology from a trial configuration.
func SpecFrom(cfg hparams.Config) Spec {
	return Spec{
		InputDim:  cfg.InputDim,
		HiddenDim: cfg.HiddenDim,
		NLayers:   cfg.NLayers,
		NClasses:  cfg.NClasses,
		Dropout:   cfg.Dropout,
	}
}

func (s Spec) validate() error {
	if s.InputDim < 1 || s.HiddenDim < 1 || s.NLayers < 1 || s.NClasses < 2 {
		return fmt.Errorf("invalid rnn topology %+v", s)
	}
	if s.Dropout < 0 || s.Dropout >= 1 {
		return fmt.Errorf("invalid rnn dropout %g", s.Dropout)
	}
	return nil
}

type recurrentLayer struct {
	wx *Param // hidden × input
	wh *Param // hidden × hidden
	b  *Param // hidden × 1
}

// RNN is a stack of tanh recurrent layers followed by a linear classifier over the last
// timestep. Dropout is applied between layers and before the classifier while training.
type RNN struct {
	spec   Spec
	dev    device.Device
	layers []recurrentLayer
	out    *Param // classes × hidden
	outB   *Param // classes × 1
	params []*Param
	rng    *rand.Rand
}

// NewRNN builds a randomly initialised network on dev.
func NewRNN(spec Spec, dev device.Device, rng *rand.Rand) (*RNN, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	m := newRNN(spec, dev, rng)
	limit := 1 / math.Sqrt(float64(spec.HiddenDim))
	for _, p := range m.params {
		p.initUniform(rng, limit)
	}
	return m, nil
}

func newRNN(spec Spec, dev device.Device, rng *rand.Rand) *RNN {
	m := &RNN{spec: spec, dev: dev, rng: rng}
	in := spec.InputDim
	for l := 0; l < spec.NLayers; l++ {
		layer := recurrentLayer{
			wx: newParam(fmt.Sprintf("rnn.%d.wx", l), spec.HiddenDim, in, true),
			wh: newParam(fmt.Sprintf("rnn.%d.wh", l), spec.HiddenDim, spec.HiddenDim, true),
			b:  newParam(fmt.Sprintf("rnn.%d.b", l), spec.HiddenDim, 1, false),
		}
		m.layers = append(m.layers, layer)
		m.params = append(m.params, layer.wx, layer.wh, layer.b)
		in = spec.HiddenDim
	}
	m.out = newParam("fc.w", spec.NClasses, spec.HiddenDim, true)
	m.outB = newParam("fc.b", spec.NClasses, 1, false)
	m.params = append(m.params, m.out, m.outB)
	return m
}

// Spec returns the network topology.
func (m *RNN) Spec() Spec { return m.spec }

// Device returns the device the network was built for.
func (m *RNN) Device() device.Device { return m.dev }

// Params returns the trainable parameters in a stable order.
func (m *RNN) Params() []*Param { return m.params }

// ThreadCopy returns a network that shares weights with m and accumulates its own
// gradients. seed drives the copy's dropout masks.
func (m *RNN) ThreadCopy(seed uint64) *RNN {
	c := &RNN{
		spec: m.spec,
		dev:  m.dev,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for _, layer := range m.layers {
		cl := recurrentLayer{wx: layer.wx.shadow(), wh: layer.wh.shadow(), b: layer.b.shadow()}
		c.layers = append(c.layers, cl)
		c.params = append(c.params, cl.wx, cl.wh, cl.b)
	}
	c.out = m.out.shadow()
	c.outB = m.outB.shadow()
	c.params = append(c.params, c.out, c.outB)
	return c
}

// Seed draws a seed for a thread copy from m's generator.
func (m *RNN) Seed() uint64 {
	return m.rng.Uint64()
}

// AddGradients adds m's gradients into main's and clears m's.
func (m *RNN) AddGradients(main *RNN) {
	if m == main {
		return
	}
	for i, p := range m.params {
		dst := main.params[i].Grad
		dst.Add(dst, p.Grad)
		p.Grad.Zero()
	}
}

// Trace keeps the activations of one forward pass for backpropagation.
type Trace struct {
	inputs   [][]*mat.VecDense
	masks    [][]*mat.VecDense
	hidden   [][]*mat.VecDense
	headIn   *mat.VecDense
	headMask *mat.VecDense
	Logits   []float64
}

// Forward runs the network over seq (timestep × feature).
func (m *RNN) Forward(seq [][]float64, train bool) *Trace {
	steps := len(seq)
	h := m.spec.HiddenDim
	dropout := train && m.spec.Dropout > 0

	tr := &Trace{
		inputs: make([][]*mat.VecDense, len(m.layers)),
		masks:  make([][]*mat.VecDense, len(m.layers)),
		hidden: make([][]*mat.VecDense, len(m.layers)),
	}
	tr.inputs[0] = make([]*mat.VecDense, steps)
	for t, frame := range seq {
		tr.inputs[0][t] = mat.NewVecDense(len(frame), frame)
	}

	for l, layer := range m.layers {
		if l > 0 {
			tr.inputs[l] = make([]*mat.VecDense, steps)
			tr.masks[l] = make([]*mat.VecDense, steps)
			for t := 0; t < steps; t++ {
				in := tr.hidden[l-1][t]
				if dropout {
					mask := m.dropoutMask(h)
					dropped := mat.NewVecDense(h, nil)
					dropped.MulElemVec(in, mask)
					tr.masks[l][t] = mask
					in = dropped
				}
				tr.inputs[l][t] = in
			}
		}

		tr.hidden[l] = make([]*mat.VecDense, steps)
		recur := mat.NewVecDense(h, nil)
		for t := 0; t < steps; t++ {
			a := mat.NewVecDense(h, nil)
			a.MulVec(layer.wx.Value, tr.inputs[l][t])
			if t > 0 {
				recur.MulVec(layer.wh.Value, tr.hidden[l][t-1])
				a.AddVec(a, recur)
			}
			a.AddVec(a, layer.b.Value.ColView(0))
			raw := a.RawVector().Data
			for i := range raw {
				raw[i] = math.Tanh(raw[i])
			}
			tr.hidden[l][t] = a
		}
	}

	tr.headIn = tr.hidden[len(m.layers)-1][steps-1]
	if dropout {
		tr.headMask = m.dropoutMask(h)
		dropped := mat.NewVecDense(h, nil)
		dropped.MulElemVec(tr.headIn, tr.headMask)
		tr.headIn = dropped
	}

	z := mat.NewVecDense(m.spec.NClasses, nil)
	z.MulVec(m.out.Value, tr.headIn)
	z.AddVec(z, m.outB.Value.ColView(0))
	tr.Logits = z.RawVector().Data
	return tr
}

// Backward accumulates parameter gradients for the pass in tr given the loss gradient with
// respect to the logits.
func (m *RNN) Backward(tr *Trace, dLogits []float64) {
	h := m.spec.HiddenDim
	steps := len(tr.hidden[0])

	dz := mat.NewVecDense(len(dLogits), append([]float64(nil), dLogits...))
	m.out.Grad.RankOne(m.out.Grad, 1, dz, tr.headIn)
	floats.Add(m.outB.Grad.RawMatrix().Data, dz.RawVector().Data)

	dHead := mat.NewVecDense(h, nil)
	dHead.MulVec(m.out.Value.T(), dz)
	if tr.headMask != nil {
		dHead.MulElemVec(dHead, tr.headMask)
	}

	dOut := make([]*mat.VecDense, steps)
	dOut[steps-1] = dHead

	for l := len(m.layers) - 1; l >= 0; l-- {
		layer := m.layers[l]
		inDim := layer.wx.Value.RawMatrix().Cols
		var dIn []*mat.VecDense
		if l > 0 {
			dIn = make([]*mat.VecDense, steps)
		}

		var dNext *mat.VecDense
		for t := steps - 1; t >= 0; t-- {
			da := mat.NewVecDense(h, nil)
			if dOut[t] != nil {
				da.CopyVec(dOut[t])
			}
			if dNext != nil {
				da.AddVec(da, dNext)
			}
			hv := tr.hidden[l][t].RawVector().Data
			raw := da.RawVector().Data
			for i := range raw {
				raw[i] *= 1 - hv[i]*hv[i]
			}

			layer.wx.Grad.RankOne(layer.wx.Grad, 1, da, tr.inputs[l][t])
			floats.Add(layer.b.Grad.RawMatrix().Data, raw)
			if t > 0 {
				layer.wh.Grad.RankOne(layer.wh.Grad, 1, da, tr.hidden[l][t-1])
				dNext = mat.NewVecDense(h, nil)
				dNext.MulVec(layer.wh.Value.T(), da)
			}

			if dIn != nil {
				di := mat.NewVecDense(inDim, nil)
				di.MulVec(layer.wx.Value.T(), da)
				if mask := tr.masks[l][t]; mask != nil {
					di.MulElemVec(di, mask)
				}
				dIn[t] = di
			}
		}
		dOut = dIn
	}
}

// dropoutMask draws an inverted dropout mask: kept units are scaled by 1/(1-p).
func (m *RNN) dropoutMask(n int) *mat.VecDense {
	keep := 1 - m.spec.Dropout
	mask := mat.NewVecDense(n, nil)
	raw := mask.RawVector().Data
	for i := range raw {
		if m.rng.Float64() < keep {
			raw[i] = 1 / keep
		}
	}
	return mask
}

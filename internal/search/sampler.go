// internal/search/sampler.go
// Package search runs a bounded random search over trial configurations.
package search

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/mwiater/emotune/internal/hparams"
)

// Sampler draws the searched fields uniformly from their ranges.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler returns a sampler seeded with seed. Zero seeds from the clock.
func NewSampler(seed uint64) *Sampler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Sample returns one draw. Integer ranges are inclusive; float ranges exclude their upper end.
func (s *Sampler) Sample() hparams.Sampled {
	return hparams.Sampled{
		NLayers:   hparams.MinLayers + s.rng.IntN(hparams.MaxLayers-hparams.MinLayers+1),
		HiddenDim: hparams.MinHiddenDim + s.rng.IntN(hparams.MaxHiddenDim-hparams.MinHiddenDim+1),
		Dropout:   s.uniform(hparams.MinDropout, hparams.MaxDropout),
		RegRatio:  s.uniform(hparams.MinRegRatio, hparams.MaxRegRatio),
	}
}

// uniform draws from [lo, hi). Rounding of lo+u*(hi-lo) can land on hi, so the result is
// clamped to the largest float below it.
func (s *Sampler) uniform(lo, hi float64) float64 {
	v := lo + s.rng.Float64()*(hi-lo)
	if v >= hi {
		v = math.Nextafter(hi, lo)
	}
	return v
}

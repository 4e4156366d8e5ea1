package dataset

import "math/rand/v2"

// Synthesize generates n class-separable sequences. Each class has its own mean frame and
// examples are that mean plus gaussian noise, so a small recurrent model can fit them.
func Synthesize(rng *rand.Rand, n, seqLen, inputDim, nClasses int) Dataset {
	centers := make([][]float64, nClasses)
	for c := range centers {
		centers[c] = make([]float64, inputDim)
		for j := range centers[c] {
			centers[c][j] = rng.NormFloat64()
		}
	}

	d := Dataset{
		Features: make([][][]float64, n),
		Labels:   make([]int, n),
	}
	for i := 0; i < n; i++ {
		label := i % nClasses
		seq := make([][]float64, seqLen)
		for t := range seq {
			frame := make([]float64, inputDim)
			for j := range frame {
				frame[j] = centers[label][j] + 0.3*rng.NormFloat64()
			}
			seq[t] = frame
		}
		d.Features[i] = seq
		d.Labels[i] = label
	}
	rng.Shuffle(n, func(i, j int) {
		d.Features[i], d.Features[j] = d.Features[j], d.Features[i]
		d.Labels[i], d.Labels[j] = d.Labels[j], d.Labels[i]
	})
	return d
}

// Package batch groups feature sequences and labels into shuffled mini-batches.
package batch

import (
	"fmt"
	"iter"
	"math/rand/v2"
)

// Batch is one mini-batch of aligned sequences and labels.
type Batch struct {
	Features [][][]float64
	Labels   []int
}

// Len returns the number of examples in the batch.
func (b Batch) Len() int {
	return len(b.Labels)
}

// Iterator yields mini-batches of a fixed size over a dataset in the current order.
type Iterator struct {
	features [][][]float64
	labels   []int
	size     int
	order    []int
	rng      *rand.Rand
}

// New returns an iterator over aligned features and labels. rng is used by Shuffle and may be
// nil for iterators that are never shuffled.
func New(features [][][]float64, labels []int, size int, rng *rand.Rand) (*Iterator, error) {
	if len(features) != len(labels) {
		return nil, fmt.Errorf("batch iterator: %d feature rows, %d labels", len(features), len(labels))
	}
	if size < 1 {
		return nil, fmt.Errorf("batch iterator: batch size %d must be at least 1", size)
	}
	order := make([]int, len(labels))
	for i := range order {
		order[i] = i
	}
	return &Iterator{
		features: features,
		labels:   labels,
		size:     size,
		order:    order,
		rng:      rng,
	}, nil
}

// Shuffle reorders the examples for the next pass.
func (it *Iterator) Shuffle() {
	if it.rng == nil {
		return
	}
	it.rng.Shuffle(len(it.order), func(i, j int) {
		it.order[i], it.order[j] = it.order[j], it.order[i]
	})
}

// Len returns the number of examples.
func (it *Iterator) Len() int {
	return len(it.labels)
}

// BatchSize returns the configured batch size.
func (it *Iterator) BatchSize() int {
	return it.size
}

// NumBatches returns how many batches one pass yields. The last batch may be short.
func (it *Iterator) NumBatches() int {
	return (len(it.labels) + it.size - 1) / it.size
}

// Batches returns a lazy pass over the whole dataset. Every call starts a fresh pass.
func (it *Iterator) Batches() iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		for start := 0; start < len(it.order); start += it.size {
			end := min(start+it.size, len(it.order))
			b := Batch{
				Features: make([][][]float64, 0, end-start),
				Labels:   make([]int, 0, end-start),
			}
			for _, idx := range it.order[start:end] {
				b.Features = append(b.Features, it.features[idx])
				b.Labels = append(b.Labels, it.labels[idx])
			}
			if !yield(b) {
				return
			}
		}
	}
}

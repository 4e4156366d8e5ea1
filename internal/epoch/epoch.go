// Package epoch implements one training pass and one evaluation pass over a batch iterator.
package epoch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mwiater/emotune/internal/batch"
	"github.com/mwiater/emotune/internal/device"
	"github.com/mwiater/emotune/internal/nn"
	"golang.org/x/sync/errgroup"
)

// Metrics summarizes one pass.
type Metrics struct {
	Loss             float64   `json:"loss"`
	Accuracy         float64   `json:"accuracy"`
	WeightedAccuracy float64   `json:"weighted_accuracy"`
	Confusion        Confusion `json:"confusion_matrix"`
}

type partial struct {
	loss      float64
	confusion Confusion
}

// Train runs forward and backward over every batch and applies one optimizer step per batch.
// The L2 penalty weighted by regRatio is added to the loss and gradients only when regRatio
// is positive. Batches are spread over dev.Workers thread copies of model.
func Train(ctx context.Context, dev device.Device, model *nn.RNN, it *batch.Iterator, opt *nn.Adam, crit nn.Criterion, regRatio float64) (Metrics, error) {
	workers := workerModels(dev, model)
	confusion := NewConfusion(model.Spec().NClasses)
	var total float64
	var seen int

	for b := range it.Batches() {
		if err := ctx.Err(); err != nil {
			return Metrics{}, err
		}
		part, err := runBatch(ctx, workers, b, crit, true)
		if err != nil {
			return Metrics{}, err
		}
		for _, w := range workers[1:] {
			w.AddGradients(model)
		}

		n := float64(b.Len())
		batchLoss := part.loss / n
		nn.ScaleGrad(model.Params(), 1/n)
		if regRatio > 0 {
			batchLoss += nn.L2Penalty(model.Params(), regRatio)
			nn.AddL2Grad(model.Params(), regRatio)
		}
		opt.Step()
		nn.ZeroGrad(model.Params())

		total += batchLoss * n
		seen += b.Len()
		confusion.Merge(part.confusion)
	}
	return summarize(total, seen, confusion), nil
}

// Evaluate scores every batch without dropout and without touching gradients.
func Evaluate(ctx context.Context, dev device.Device, model *nn.RNN, it *batch.Iterator, crit nn.Criterion) (Metrics, error) {
	workers := workerModels(dev, model)
	confusion := NewConfusion(model.Spec().NClasses)
	var total float64
	var seen int

	for b := range it.Batches() {
		if err := ctx.Err(); err != nil {
			return Metrics{}, err
		}
		part, err := runBatch(ctx, workers, b, crit, false)
		if err != nil {
			return Metrics{}, err
		}
		total += part.loss
		seen += b.Len()
		confusion.Merge(part.confusion)
	}
	return summarize(total, seen, confusion), nil
}

func summarize(total float64, seen int, confusion Confusion) Metrics {
	m := Metrics{
		Accuracy:         confusion.Accuracy(),
		WeightedAccuracy: confusion.WeightedAccuracy(),
		Confusion:        confusion,
	}
	if seen > 0 {
		m.Loss = total / float64(seen)
	}
	return m
}

// workerModels returns model followed by one thread copy per extra worker.
func workerModels(dev device.Device, model *nn.RNN) []*nn.RNN {
	n := max(dev.Workers, 1)
	models := make([]*nn.RNN, n)
	models[0] = model
	for i := 1; i < n; i++ {
		models[i] = model.ThreadCopy(model.Seed())
	}
	return models
}

// runBatch spreads the examples of b over models. Each model keeps its gradients; the caller
// folds them into the main model.
func runBatch(ctx context.Context, models []*nn.RNN, b batch.Batch, crit nn.Criterion, train bool) (partial, error) {
	classes := models[0].Spec().NClasses
	result := partial{confusion: NewConfusion(classes)}
	var mu sync.Mutex
	var index int32 = -1

	g, ctx := errgroup.WithContext(ctx)
	for _, m := range models {
		m := m
		g.Go(func() error {
			local := partial{confusion: NewConfusion(classes)}
			for {
				i := int(atomic.AddInt32(&index, 1))
				if i >= b.Len() {
					break
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				label := b.Labels[i]
				tr := m.Forward(b.Features[i], train)
				loss, grad := crit.Loss(tr.Logits, label)
				if train {
					m.Backward(tr, grad)
				}
				local.loss += loss
				local.confusion.Add(label, nn.Argmax(tr.Logits))
			}
			mu.Lock()
			result.loss += local.loss
			result.confusion.Merge(local.confusion)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return partial{}, err
	}
	return result, nil
}

// Steps adapts Train and Evaluate to the orchestrator's step interface.
type Steps struct{}

// Train implements the training step.
func (Steps) Train(ctx context.Context, dev device.Device, model *nn.RNN, it *batch.Iterator, opt *nn.Adam, crit nn.Criterion, regRatio float64) (Metrics, error) {
	return Train(ctx, dev, model, it, opt, crit, regRatio)
}

// Evaluate implements the evaluation step.
func (Steps) Evaluate(ctx context.Context, dev device.Device, model *nn.RNN, it *batch.Iterator, crit nn.Criterion) (Metrics, error) {
	return Evaluate(ctx, dev, model, it, crit)
}

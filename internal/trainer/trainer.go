// internal/trainer/trainer.go
// Package trainer runs one complete trial: early-stopped training with best-by-validation
// checkpointing, persisted into its own run directory.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"github.com/mwiater/emotune/internal/batch"
	"github.com/mwiater/emotune/internal/dataset"
	"github.com/mwiater/emotune/internal/device"
	"github.com/mwiater/emotune/internal/epoch"
	"github.com/mwiater/emotune/internal/hparams"
	"github.com/mwiater/emotune/internal/logging"
	"github.com/mwiater/emotune/internal/nn"
	"github.com/mwiater/emotune/internal/rundir"
)

// DefaultEvalBatchSize is the validation batch size, independent of the trial's batch size.
const DefaultEvalBatchSize = 100

// ErrNoImprovement is returned when no epoch's validation loss ever beat the +Inf sentinel,
// so there is no best checkpoint to report.
var ErrNoImprovement = errors.New("no validation improvement recorded")

// Steps runs the per-epoch passes.
type Steps interface {
	Train(ctx context.Context, dev device.Device, model *nn.RNN, it *batch.Iterator, opt *nn.Adam, crit nn.Criterion, regRatio float64) (epoch.Metrics, error)
	Evaluate(ctx context.Context, dev device.Device, model *nn.RNN, it *batch.Iterator, crit nn.Criterion) (epoch.Metrics, error)
}

// StopReason tells why the epoch loop ended.
type StopReason string

const (
	// StopPatience means the stall counter reached the configured patience.
	StopPatience StopReason = "patience"
	// StopEpochs means every configured epoch ran.
	StopEpochs StopReason = "epochs"
)

// Orchestrator executes trials one at a time. Unset fields fall back to the defaults New uses.
type Orchestrator struct {
	Runs          rundir.Layout
	Probe         device.Probe
	Steps         Steps
	EvalBatchSize int
	// Seed fixes weight init, dropout and shuffling. Zero seeds from the runtime source.
	Seed uint64

	trials atomic.Uint64
}

// New returns an orchestrator using the real epoch passes.
func New(runs rundir.Layout, probe device.Probe) *Orchestrator {
	return &Orchestrator{
		Runs:          runs,
		Probe:         probe,
		Steps:         epoch.Steps{},
		EvalBatchSize: DefaultEvalBatchSize,
	}
}

// best holds the snapshot of the lowest-loss epoch; nil until the first improvement.
type best struct {
	epoch   int
	metrics epoch.Metrics
}

// RunTraining trains one model for cfg on split and persists checkpoint, configuration and
// result under a fresh run directory. Invalid input fails before anything is created.
// Partially written run directories are left in place when a later step fails.
func (o *Orchestrator) RunTraining(ctx context.Context, cfg hparams.Config, split dataset.Split) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if err := split.Validate(cfg.InputDim, cfg.NClasses); err != nil {
		return Result{}, err
	}

	run, err := o.Runs.Create(cfg.ModelWeightsName, cfg.ModelConfigName)
	if err != nil {
		return Result{}, err
	}

	dev := device.Select(o.Probe)
	logging.LogEvent("Run %s on device %s", run.ID, dev)

	if err := cfg.Save(run.ConfigPath); err != nil {
		return Result{}, fmt.Errorf("persist config: %w", err)
	}

	rng := o.rng()
	model, err := nn.NewRNN(nn.SpecFrom(cfg), dev, rng)
	if err != nil {
		return Result{}, fmt.Errorf("build model: %w", err)
	}
	opt := nn.NewAdam(model.Params(), cfg.LR)
	crit := nn.CrossEntropy{}
	logging.LogEvent("Model %+v on %s, lr %g", model.Spec(), model.Device(), opt.LearningRate())

	trainIt, err := batch.New(split.TrainFeatures, split.TrainLabels, cfg.BatchSize, rng)
	if err != nil {
		return Result{}, fmt.Errorf("train iterator: %w", err)
	}
	valIt, err := batch.New(split.ValFeatures, split.ValLabels, o.evalBatchSize(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("validation iterator: %w", err)
	}
	logging.LogEvent("Batches per epoch: %d train, %d validation", trainIt.NumBatches(), valIt.NumBatches())

	steps := o.Steps
	if steps == nil {
		steps = epoch.Steps{}
	}

	bestLoss := math.Inf(1)
	var top *best
	var lastTrain epoch.Metrics
	stalled := 0
	completed := -1
	reason := StopEpochs

	for e := 0; e < cfg.NEpochs; e++ {
		trainIt.Shuffle()
		if stalled == cfg.Patience {
			reason = StopPatience
			break
		}

		val, err := steps.Evaluate(ctx, dev, model, valIt, crit)
		if err != nil {
			return Result{}, fmt.Errorf("epoch %d: evaluate: %w", e, err)
		}

		improved := val.Loss < bestLoss
		if improved {
			if err := model.SaveFile(run.WeightsPath); err != nil {
				return Result{}, fmt.Errorf("epoch %d: save checkpoint: %w", e, err)
			}
			bestLoss = val.Loss
			top = &best{epoch: e, metrics: val}
			top.metrics.Confusion = val.Confusion.Clone()
			stalled = 0
			logging.Success(" Epoch: %d | Val loss improved to %.4f | val acc: %.3f | weighted val acc: %.3f | train loss: %.4f | train acc: %.3f | saved model to %s.",
				e, val.Loss, val.Accuracy, val.WeightedAccuracy, lastTrain.Loss, lastTrain.Accuracy, run.WeightsPath)
		}

		lastTrain, err = steps.Train(ctx, dev, model, trainIt, opt, crit, cfg.RegRatio)
		if err != nil {
			return Result{}, fmt.Errorf("epoch %d: train: %w", e, err)
		}
		completed = e
		if !nn.Finite(model.Params()) {
			logging.LogEvent("Epoch %d: parameters are no longer finite", e)
		}

		if !improved {
			stalled++
		}

		logging.Progress(cfg.Verbose, "| Epoch: %d | Val Loss: %.3f | Val Acc: %.2f%% | Train Loss: %.4f | Train Acc: %.3f%%",
			e+1, val.Loss, val.Accuracy*100, lastTrain.Loss, lastTrain.Accuracy*100)

		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
	}

	if top == nil {
		logging.Major("Run %s: %v after %d epochs", run.ID, ErrNoImprovement, completed+1)
		return Result{}, fmt.Errorf("run %s: %w", run.ID, ErrNoImprovement)
	}

	res := Result{
		RunID:      run.ID,
		RunDir:     run.Dir,
		Epoch:      completed,
		BestEpoch:  top.epoch,
		Val:        top.metrics,
		TrainLoss:  lastTrain.Loss,
		TrainAcc:   lastTrain.Accuracy,
		StopReason: reason,
		Config:     cfg,
	}
	logging.Major("%s", res.Summary())
	logging.MajorValue("Hyperparameters:", cfg)
	if err := res.write(run); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (o *Orchestrator) evalBatchSize() int {
	if o.EvalBatchSize <= 0 {
		return DefaultEvalBatchSize
	}
	return o.EvalBatchSize
}

// rng returns a trial-local source; each trial of a seeded orchestrator gets its own stream.
func (o *Orchestrator) rng() *rand.Rand {
	n := o.trials.Add(1)
	if o.Seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), n))
	}
	return rand.New(rand.NewPCG(o.Seed, n))
}

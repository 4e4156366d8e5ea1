package emotune

import (
	"errors"
	"fmt"

	"github.com/mwiater/emotune/internal/appconfig"
	"github.com/mwiater/emotune/internal/dataset"
	"github.com/mwiater/emotune/internal/device"
	"github.com/mwiater/emotune/internal/hparams"
	"github.com/mwiater/emotune/internal/rundir"
	"github.com/mwiater/emotune/internal/search"
	"github.com/mwiater/emotune/internal/trainer"
)

// newTrainer builds the trial runner for a command. Tests replace it.
var newTrainer = func(cfg appconfig.Config) search.Trainer {
	return newOrchestrator(cfg)
}

func newOrchestrator(cfg appconfig.Config) *trainer.Orchestrator {
	layout := rundir.Layout{Base: cfg.RunsDirectory(), IDs: rundir.SourceFor(cfg.RunIDSource(), cfg.RunsDirectory())}
	o := trainer.New(layout, device.ProbeFor(cfg.DeviceMode()))
	o.EvalBatchSize = cfg.EvalBatch()
	o.Seed = cfg.Seed
	return o
}

// baseConfig returns the variant defaults with the configured epoch budget applied.
func baseConfig(cfg appconfig.Config) (hparams.Config, error) {
	variant, err := hparams.ParseVariant(cfg.VariantName())
	if err != nil {
		return hparams.Config{}, err
	}
	base, err := hparams.Defaults(variant)
	if err != nil {
		return hparams.Config{}, err
	}
	return base.WithBudget(cfg.Epochs, cfg.Patience)
}

// loadSplit reads separate train and validation files when valData is set, otherwise splits
// trainData at splitOffset (default: the first 80% trains).
func loadSplit(cfg appconfig.Config) (dataset.Split, error) {
	if cfg.TrainData == "" {
		return dataset.Split{}, errors.New("trainData is not configured; generate one with 'emotune dataset synth'")
	}
	train, err := dataset.Load(cfg.TrainData)
	if err != nil {
		return dataset.Split{}, err
	}
	if cfg.ValData != "" {
		val, err := dataset.Load(cfg.ValData)
		if err != nil {
			return dataset.Split{}, err
		}
		return dataset.NewSplit(train, val), nil
	}

	offset := cfg.SplitOffset
	if offset == 0 {
		offset = train.Len() * 4 / 5
	}
	split, err := train.SplitAt(offset)
	if err != nil {
		return dataset.Split{}, fmt.Errorf("split %s at %d: %w", cfg.TrainData, offset, err)
	}
	return split, nil
}

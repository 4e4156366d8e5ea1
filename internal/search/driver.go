package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mwiater/emotune/internal/dataset"
	"github.com/mwiater/emotune/internal/hparams"
	"github.com/mwiater/emotune/internal/logging"
	"github.com/mwiater/emotune/internal/trainer"
)

// Trainer runs one trial.
type Trainer interface {
	RunTraining(ctx context.Context, cfg hparams.Config, split dataset.Split) (trainer.Result, error)
}

// Policy decides what a failed trial does to the rest of the search.
type Policy int

const (
	// FailFast stops the search at the first failed trial.
	FailFast Policy = iota
	// ContinueOnError logs a failed trial and moves on; all failures are returned together.
	ContinueOnError
)

// Driver runs trials one after another, each with a fresh sample on top of Base.
type Driver struct {
	Sampler *Sampler
	Trainer Trainer
	Base    hparams.Config
	Split   dataset.Split
	Policy  Policy
	// Out receives the per-trial progress bar. Nil means stdout.
	Out io.Writer
}

// Run executes n trials. The Summary lists every attempted trial, including failed ones.
func (d *Driver) Run(ctx context.Context, n int) (Summary, error) {
	if n < 0 {
		return Summary{}, fmt.Errorf("iterations=%d must not be negative", n)
	}
	out := d.Out
	if out == nil {
		out = os.Stdout
	}
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))

	var summary Summary
	var errs []error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		sampled := d.Sampler.Sample()
		trial := Trial{Index: i, Sampled: sampled}
		cfg, err := d.Base.With(sampled)
		if err == nil {
			logging.LogEvent("Trial %d/%d: n_layers=%d hidden_dim=%d dropout=%.4f reg_ratio=%.3g",
				i+1, n, sampled.NLayers, sampled.HiddenDim, sampled.Dropout, sampled.RegRatio)
			var res trainer.Result
			res, err = d.Trainer.RunTraining(ctx, cfg, d.Split)
			if err == nil {
				trial.Result = &res
			}
		}
		if err != nil {
			trial.Err = err.Error()
		}
		summary.Trials = append(summary.Trials, trial)
		fmt.Fprintf(out, "%s %d/%d\n", bar.ViewAs(float64(i+1)/float64(n)), i+1, n)

		if err != nil {
			err = fmt.Errorf("trial %d: %w", i+1, err)
			if d.Policy != ContinueOnError {
				return summary, err
			}
			logging.LogEvent("Trial %d failed, continuing: %v", i+1, err)
			errs = append(errs, err)
		}
	}
	return summary, errors.Join(errs...)
}

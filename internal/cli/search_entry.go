package emotune

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/mwiater/emotune/internal/appconfig"
	"github.com/mwiater/emotune/internal/logging"
	"github.com/mwiater/emotune/internal/rundir"
	"github.com/mwiater/emotune/internal/search"
)

func runSearch(ctx context.Context, out io.Writer, cfg appconfig.Config, iterations int) error {
	base, err := baseConfig(cfg)
	if err != nil {
		return err
	}
	split, err := loadSplit(cfg)
	if err != nil {
		return err
	}

	policy := search.FailFast
	if cfg.ContinueOnError {
		policy = search.ContinueOnError
	}
	driver := &search.Driver{
		Sampler: search.NewSampler(cfg.Seed),
		Trainer: newTrainer(cfg),
		Base:    base,
		Split:   split,
		Policy:  policy,
		Out:     out,
	}

	logging.LogEvent("Search: %d trials, variant %s, %d train / %d val examples",
		iterations, base.Variant, len(split.TrainLabels), len(split.ValLabels))
	summary, runErr := driver.Run(ctx, iterations)

	if len(summary.Trials) > 0 {
		fmt.Fprintln(out, summary.Table())
		path := filepath.Join(cfg.RunsDirectory(), "search-"+rundir.StampedIDs{}.NextID()+".json")
		if err := summary.Save(path); err != nil {
			logging.LogEvent("Could not save search summary: %v", err)
		} else {
			logging.LogEvent("Search summary written to %s", path)
		}
	}
	if best, ok := summary.Best(); ok {
		logging.Major("Best trial %d: run %s | Val Loss: %.4f | Val Acc: %.2f%%",
			best.Index+1, best.Result.RunDir, best.Result.Val.Loss, best.Result.Val.Accuracy*100)
	}
	return runErr
}

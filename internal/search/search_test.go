package search

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwiater/emotune/internal/dataset"
	"github.com/mwiater/emotune/internal/hparams"
	"github.com/mwiater/emotune/internal/trainer"
)

func TestSampleRanges(t *testing.T) {
	t.Parallel()

	s := NewSampler(42)
	layers := map[int]bool{}
	for i := 0; i < 20000; i++ {
		got := s.Sample()
		layers[got.NLayers] = true
		if got.NLayers < 1 || got.NLayers > 3 {
			t.Fatalf("n_layers=%d out of range", got.NLayers)
		}
		if got.HiddenDim < 64 || got.HiddenDim > 1199 {
			t.Fatalf("hidden_dim=%d out of range", got.HiddenDim)
		}
		if got.Dropout < 0.1 || got.Dropout >= 0.95 {
			t.Fatalf("dropout=%g out of range", got.Dropout)
		}
		if got.RegRatio < 0 || got.RegRatio >= 1e-5 {
			t.Fatalf("reg_ratio=%g out of range", got.RegRatio)
		}
		if _, err := hparams.New(hparams.Linguistic, got); err != nil {
			t.Fatalf("sample %+v rejected: %v", got, err)
		}
	}
	if len(layers) != 3 {
		t.Fatalf("expected every layer count to be drawn, got %v", layers)
	}
}

func TestSamplerDeterministicForSeed(t *testing.T) {
	t.Parallel()

	a, b := NewSampler(7), NewSampler(7)
	for i := 0; i < 10; i++ {
		if a.Sample() != b.Sample() {
			t.Fatalf("same seed produced different draws at %d", i)
		}
	}
}

type fakeTrainer struct {
	calls  []hparams.Config
	failAt map[int]bool
}

func (f *fakeTrainer) RunTraining(_ context.Context, cfg hparams.Config, _ dataset.Split) (trainer.Result, error) {
	f.calls = append(f.calls, cfg)
	n := len(f.calls)
	if f.failAt[n] {
		return trainer.Result{}, errors.New("disk full")
	}
	res := trainer.Result{RunID: cfg.ModelWeightsName, Config: cfg}
	res.Val.Loss = 1 / float64(n)
	return res, nil
}

func newDriver(t *testing.T, tr Trainer, policy Policy) *Driver {
	t.Helper()
	base, err := hparams.Defaults(hparams.Acoustic)
	if err != nil {
		t.Fatalf("Defaults error: %v", err)
	}
	return &Driver{
		Sampler: NewSampler(1),
		Trainer: tr,
		Base:    base,
		Policy:  policy,
		Out:     &bytes.Buffer{},
	}
}

func TestRunSampledConfigsKeepFixedFields(t *testing.T) {
	t.Parallel()

	tr := &fakeTrainer{}
	d := newDriver(t, tr, FailFast)
	summary, err := d.Run(context.Background(), 4)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(tr.calls) != 4 || len(summary.Trials) != 4 {
		t.Fatalf("expected 4 trials, got %d calls %d trials", len(tr.calls), len(summary.Trials))
	}
	for i, cfg := range tr.calls {
		if cfg.LR != d.Base.LR || cfg.BatchSize != d.Base.BatchSize || cfg.ModelWeightsName != d.Base.ModelWeightsName {
			t.Fatalf("trial %d changed fixed fields: %+v", i, cfg)
		}
		if cfg.Sampled() != summary.Trials[i].Sampled {
			t.Fatalf("trial %d recorded a different sample", i)
		}
	}
	best, ok := summary.Best()
	if !ok || best.Index != 3 {
		t.Fatalf("expected the last trial to be best, got %+v %v", best, ok)
	}
}

func TestFailFastStopsSearch(t *testing.T) {
	t.Parallel()

	tr := &fakeTrainer{failAt: map[int]bool{2: true}}
	summary, err := newDriver(t, tr, FailFast).Run(context.Background(), 5)
	if err == nil || !strings.Contains(err.Error(), "trial 2") {
		t.Fatalf("expected trial 2 error, got %v", err)
	}
	if len(tr.calls) != 2 || len(summary.Trials) != 2 {
		t.Fatalf("expected the search to stop after 2 trials, got %d", len(tr.calls))
	}
}

func TestContinueOnErrorIsolatesTrials(t *testing.T) {
	t.Parallel()

	tr := &fakeTrainer{failAt: map[int]bool{2: true, 4: true}}
	summary, err := newDriver(t, tr, ContinueOnError).Run(context.Background(), 5)
	if err == nil || !strings.Contains(err.Error(), "trial 2") || !strings.Contains(err.Error(), "trial 4") {
		t.Fatalf("expected joined errors for trials 2 and 4, got %v", err)
	}
	if len(tr.calls) != 5 {
		t.Fatalf("expected all 5 trials to run, got %d", len(tr.calls))
	}
	if summary.Trials[1].Err == "" || summary.Trials[1].Result != nil {
		t.Fatalf("failed trial not recorded: %+v", summary.Trials[1])
	}

	table := summary.Table()
	if !strings.Contains(table, "disk full") || !strings.Contains(table, "val loss") {
		t.Fatalf("unexpected leaderboard:\n%s", table)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := &fakeTrainer{}
	if _, err := newDriver(t, tr, ContinueOnError).Run(ctx, 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("no trial may start after cancellation")
	}
}

func TestSummarySaveLoad(t *testing.T) {
	t.Parallel()

	summary, err := newDriver(t, &fakeTrainer{}, FailFast).Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "runs", "search-x.json")
	if err := summary.Save(path); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	loaded, err := LoadSummary(path)
	if err != nil {
		t.Fatalf("LoadSummary error: %v", err)
	}
	if len(loaded.Trials) != 2 || loaded.Trials[1].Result == nil || loaded.Trials[1].Result.Val.Loss != 0.5 {
		t.Fatalf("unexpected loaded summary %+v", loaded)
	}
}

func TestBestWithoutFinishedTrials(t *testing.T) {
	t.Parallel()

	if _, ok := (Summary{Trials: []Trial{{Err: "x"}}}).Best(); ok {
		t.Fatalf("expected no best trial")
	}
}

package trainer

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwiater/emotune/internal/batch"
	"github.com/mwiater/emotune/internal/dataset"
	"github.com/mwiater/emotune/internal/device"
	"github.com/mwiater/emotune/internal/epoch"
	"github.com/mwiater/emotune/internal/hparams"
	"github.com/mwiater/emotune/internal/nn"
	"github.com/mwiater/emotune/internal/rundir"
)

// scriptedSteps returns preset validation losses and stamps the number of completed training
// passes into the first weight, so a checkpoint reveals which epoch it was taken at.
type scriptedSteps struct {
	losses []float64
	evals  int
	trains int
	regs   []float64
}

func (s *scriptedSteps) Evaluate(_ context.Context, _ device.Device, _ *nn.RNN, _ *batch.Iterator, _ nn.Criterion) (epoch.Metrics, error) {
	loss := s.losses[s.evals]
	s.evals++
	c := epoch.NewConfusion(2)
	c.Add(0, 0)
	return epoch.Metrics{Loss: loss, Accuracy: 1, WeightedAccuracy: 1, Confusion: c}, nil
}

func (s *scriptedSteps) Train(_ context.Context, _ device.Device, model *nn.RNN, _ *batch.Iterator, _ *nn.Adam, _ nn.Criterion, regRatio float64) (epoch.Metrics, error) {
	s.trains++
	s.regs = append(s.regs, regRatio)
	model.Params()[0].Value.Set(0, 0, float64(s.trains))
	return epoch.Metrics{Loss: 0.5, Accuracy: 0.75}, nil
}

type failingSteps struct {
	scriptedSteps
}

func (f *failingSteps) Train(context.Context, device.Device, *nn.RNN, *batch.Iterator, *nn.Adam, nn.Criterion, float64) (epoch.Metrics, error) {
	return epoch.Metrics{}, errors.New("device lost")
}

func smallConfig(t *testing.T, nEpochs, patience int) hparams.Config {
	t.Helper()
	cfg, err := hparams.Defaults(hparams.Acoustic)
	if err != nil {
		t.Fatalf("Defaults error: %v", err)
	}
	cfg.InputDim = 3
	cfg.NClasses = 2
	cfg.HiddenDim = 64
	cfg.NLayers = 1
	cfg.BatchSize = 4
	cfg.Verbose = false
	cfg, err = cfg.WithBudget(nEpochs, patience)
	if err != nil {
		t.Fatalf("WithBudget error: %v", err)
	}
	return cfg
}

func smallSplit() dataset.Split {
	rng := rand.New(rand.NewPCG(3, 4))
	d := dataset.Synthesize(rng, 16, 3, 3, 2)
	split, _ := d.SplitAt(12)
	return split
}

func newTestOrchestrator(t *testing.T, steps Steps) (*Orchestrator, string) {
	t.Helper()
	base := t.TempDir()
	o := New(rundir.Layout{Base: base, IDs: &rundir.CounterIDs{Prefix: "run-"}}, device.NoAccelerator{})
	o.Steps = steps
	o.Seed = 11
	return o, base
}

func TestEarlyStoppingKeepsBestCheckpoint(t *testing.T) {
	t.Parallel()

	steps := &scriptedSteps{losses: []float64{0.9, 0.7, 0.75, 0.8, 0.85}}
	o, _ := newTestOrchestrator(t, steps)

	res, err := o.RunTraining(context.Background(), smallConfig(t, 5, 2), smallSplit())
	if err != nil {
		t.Fatalf("RunTraining error: %v", err)
	}
	if steps.evals != 4 || steps.trains != 4 {
		t.Fatalf("expected halt at the start of epoch 4, got %d evals %d trains", steps.evals, steps.trains)
	}
	if res.Epoch != 3 || res.BestEpoch != 1 || res.StopReason != StopPatience {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Val.Loss != 0.7 {
		t.Fatalf("best loss = %g, want 0.7", res.Val.Loss)
	}

	model, err := nn.LoadFile(filepath.Join(res.RunDir, res.Config.ModelWeightsName), device.CPU())
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	// one training pass had run when epoch 1 was evaluated
	if got := model.Params()[0].Value.At(0, 0); got != 1 {
		t.Fatalf("checkpoint holds state after %g passes, want 1", got)
	}
}

func TestRunsEveryEpochWithoutStall(t *testing.T) {
	t.Parallel()

	steps := &scriptedSteps{losses: []float64{0.9, 0.8, 0.7}}
	o, _ := newTestOrchestrator(t, steps)

	res, err := o.RunTraining(context.Background(), smallConfig(t, 3, 1), smallSplit())
	if err != nil {
		t.Fatalf("RunTraining error: %v", err)
	}
	if res.StopReason != StopEpochs || res.Epoch != 2 || res.BestEpoch != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCheckpointWrittenOnlyOnStrictImprovement(t *testing.T) {
	t.Parallel()

	steps := &scriptedSteps{losses: []float64{0.5, 0.5, 0.4, 0.6, 0.4}}
	o, _ := newTestOrchestrator(t, steps)

	res, err := o.RunTraining(context.Background(), smallConfig(t, 5, 5), smallSplit())
	if err != nil {
		t.Fatalf("RunTraining error: %v", err)
	}
	if res.BestEpoch != 2 {
		t.Fatalf("ties must not replace the best epoch, got best %d", res.BestEpoch)
	}
	model, err := nn.LoadFile(filepath.Join(res.RunDir, res.Config.ModelWeightsName), device.CPU())
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if got := model.Params()[0].Value.At(0, 0); got != 2 {
		t.Fatalf("checkpoint holds state after %g passes, want 2", got)
	}
}

func TestNoImprovementIsNamedFailure(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	steps := &scriptedSteps{losses: []float64{nan, nan, nan}}
	o, base := newTestOrchestrator(t, steps)

	_, err := o.RunTraining(context.Background(), smallConfig(t, 3, 5), smallSplit())
	if !errors.Is(err, ErrNoImprovement) {
		t.Fatalf("expected ErrNoImprovement, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(base, "run-0001"))
	for _, e := range entries {
		if e.Name() == "result.txt" {
			t.Fatalf("result must not be written without a best epoch")
		}
	}
}

func TestConfigErrorFailsBeforeRunDir(t *testing.T) {
	t.Parallel()

	o, base := newTestOrchestrator(t, &scriptedSteps{})
	cfg := smallConfig(t, 3, 1)
	cfg.Dropout = 0.99

	_, err := o.RunTraining(context.Background(), cfg, smallSplit())
	if !errors.Is(err, hparams.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if entries, _ := os.ReadDir(base); len(entries) != 0 {
		t.Fatalf("no run directory may exist after a configuration error, found %d", len(entries))
	}
}

func TestMisalignedSplitRejected(t *testing.T) {
	t.Parallel()

	o, _ := newTestOrchestrator(t, &scriptedSteps{})
	split := smallSplit()
	split.ValLabels = split.ValLabels[:1]

	if _, err := o.RunTraining(context.Background(), smallConfig(t, 3, 1), split); !errors.Is(err, dataset.ErrMisaligned) {
		t.Fatalf("expected ErrMisaligned, got %v", err)
	}
}

func TestArtifactsPersisted(t *testing.T) {
	t.Parallel()

	steps := &scriptedSteps{losses: []float64{0.9, 0.6}}
	o, _ := newTestOrchestrator(t, steps)
	cfg := smallConfig(t, 2, 1)
	cfg.RegRatio = 0

	res, err := o.RunTraining(context.Background(), cfg, smallSplit())
	if err != nil {
		t.Fatalf("RunTraining error: %v", err)
	}
	for _, r := range steps.regs {
		if r != 0 {
			t.Fatalf("training received reg ratio %g, want 0", r)
		}
	}

	saved, err := hparams.Load(filepath.Join(res.RunDir, cfg.ModelConfigName))
	if err != nil {
		t.Fatalf("hparams.Load error: %v", err)
	}
	if saved != cfg {
		t.Fatalf("persisted config differs:\n got %+v\nwant %+v", saved, cfg)
	}

	text, err := os.ReadFile(filepath.Join(res.RunDir, "result.txt"))
	if err != nil {
		t.Fatalf("read result.txt: %v", err)
	}
	if !strings.Contains(string(text), "Val Loss: 0.600") || !strings.Contains(string(text), "Confusion matrix") {
		t.Fatalf("unexpected result.txt:\n%s", text)
	}

	loaded, err := LoadResult(filepath.Join(res.RunDir, "result.json"))
	if err != nil {
		t.Fatalf("LoadResult error: %v", err)
	}
	if loaded.BestEpoch != 1 || loaded.Val.Loss != 0.6 || loaded.Config != cfg {
		t.Fatalf("unexpected result.json contents %+v", loaded)
	}
}

func TestTrainFailureAbortsTrial(t *testing.T) {
	t.Parallel()

	steps := &failingSteps{scriptedSteps{losses: []float64{0.9}}}
	o, _ := newTestOrchestrator(t, steps)

	_, err := o.RunTraining(context.Background(), smallConfig(t, 3, 1), smallSplit())
	if err == nil || !strings.Contains(err.Error(), "device lost") {
		t.Fatalf("expected training error, got %v", err)
	}
}

// occupyingSteps puts a non-empty directory where the checkpoint file belongs before the
// first evaluation, so the checkpoint write fails.
type occupyingSteps struct {
	scriptedSteps
	path string
}

func (o *occupyingSteps) Evaluate(ctx context.Context, dev device.Device, model *nn.RNN, it *batch.Iterator, crit nn.Criterion) (epoch.Metrics, error) {
	if err := os.MkdirAll(o.path, 0o755); err != nil {
		return epoch.Metrics{}, err
	}
	if err := os.WriteFile(filepath.Join(o.path, "keep"), nil, 0o644); err != nil {
		return epoch.Metrics{}, err
	}
	return o.scriptedSteps.Evaluate(ctx, dev, model, it, crit)
}

func TestCheckpointWriteFailureAbortsTrial(t *testing.T) {
	t.Parallel()

	cfg := smallConfig(t, 3, 1)
	steps := &occupyingSteps{scriptedSteps: scriptedSteps{losses: []float64{0.9, 0.8, 0.7}}}
	o, base := newTestOrchestrator(t, steps)
	runDir := filepath.Join(base, "run-0001")
	steps.path = filepath.Join(runDir, cfg.ModelWeightsName)

	_, err := o.RunTraining(context.Background(), cfg, smallSplit())
	if err == nil || !strings.Contains(err.Error(), "save checkpoint") {
		t.Fatalf("expected checkpoint error, got %v", err)
	}
	if steps.trains != 0 {
		t.Fatalf("no training may follow a failed checkpoint, got %d passes", steps.trains)
	}
	for _, name := range []string{"result.txt", "result.json"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected no %s after a failed trial, stat err %v", name, err)
		}
	}
}

func TestCancelledBetweenEpochs(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	steps := &cancellingSteps{scriptedSteps: scriptedSteps{losses: []float64{0.9, 0.8, 0.7}}, cancel: cancel}
	o, _ := newTestOrchestrator(t, steps)

	if _, err := o.RunTraining(ctx, smallConfig(t, 3, 1), smallSplit()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if steps.trains != 1 {
		t.Fatalf("expected one epoch before cancellation, got %d", steps.trains)
	}
}

type cancellingSteps struct {
	scriptedSteps
	cancel context.CancelFunc
}

func (c *cancellingSteps) Train(ctx context.Context, dev device.Device, model *nn.RNN, it *batch.Iterator, opt *nn.Adam, crit nn.Criterion, regRatio float64) (epoch.Metrics, error) {
	m, err := c.scriptedSteps.Train(ctx, dev, model, it, opt, crit, regRatio)
	c.cancel()
	return m, err
}

func TestRealStepsEndToEnd(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	o := New(rundir.Layout{Base: base, IDs: rundir.UUIDIDs{}}, device.PoolProbe{MaxWorkers: 2})
	o.Seed = 5
	cfg := smallConfig(t, 3, 2)

	res, err := o.RunTraining(context.Background(), cfg, smallSplit())
	if err != nil {
		t.Fatalf("RunTraining error: %v", err)
	}
	if res.Val.Confusion.Total() != 4 {
		t.Fatalf("best confusion counted %d validation examples, want 4", res.Val.Confusion.Total())
	}
	dirs, err := rundir.List(base)
	if err != nil || len(dirs) != 1 {
		t.Fatalf("expected one finished run, got %v %v", dirs, err)
	}
}

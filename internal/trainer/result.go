package trainer

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/mwiater/emotune/internal/epoch"
	"github.com/mwiater/emotune/internal/hparams"
	"github.com/mwiater/emotune/internal/rundir"
	"github.com/mwiater/emotune/internal/util"
)

// Result is the outcome of a finished trial. Val holds the metrics of the best epoch.
type Result struct {
	RunID      string         `json:"run_id"`
	RunDir     string         `json:"run_dir"`
	Epoch      int            `json:"epoch"`
	BestEpoch  int            `json:"best_epoch"`
	Val        epoch.Metrics  `json:"val"`
	TrainLoss  float64        `json:"train_loss"`
	TrainAcc   float64        `json:"train_accuracy"`
	StopReason StopReason     `json:"stop_reason"`
	Config     hparams.Config `json:"config"`
}

// Summary renders the plain-text result record.
func (r Result) Summary() string {
	return fmt.Sprintf("| Epoch: %d | Val Loss: %.3f | Val Acc: %.2f%% | Weighted Val Acc: %.2f%% | Train Loss: %.4f | Train Acc: %.3f%% \n Confusion matrix:\n%s",
		r.Epoch+1, r.Val.Loss, r.Val.Accuracy*100, r.Val.WeightedAccuracy*100, r.TrainLoss, r.TrainAcc*100, r.Val.Confusion)
}

func (r Result) write(run rundir.Run) error {
	if err := util.WriteFile(run.ResultPath, []byte(r.Summary()+"\n")); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := util.WriteJSON(run.ResultJSONPath, r); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// MarshalJSON writes a non-finite training loss as -1, since JSON has no NaN or Inf. The
// validation metrics of a best epoch are always finite.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	p := plain(r)
	if math.IsNaN(p.TrainLoss) || math.IsInf(p.TrainLoss, 0) {
		p.TrainLoss = -1
	}
	return json.Marshal(p)
}

// LoadResult reads a result.json written by RunTraining.
func LoadResult(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read result: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("decode result %s: %w", path, err)
	}
	return r, nil
}

package emotune

import (
	"fmt"

	"github.com/mwiater/emotune/internal/appconfig"
	"github.com/spf13/cobra"
)

func runTrain(cmd *cobra.Command, cfg appconfig.Config) error {
	base, err := baseConfig(cfg)
	if err != nil {
		return err
	}
	sampled := base.Sampled()
	flags := cmd.Flags()
	if flags.Changed("layers") {
		sampled.NLayers = trainFlags.layers
	}
	if flags.Changed("hidden") {
		sampled.HiddenDim = trainFlags.hidden
	}
	if flags.Changed("dropout") {
		sampled.Dropout = trainFlags.dropout
	}
	if flags.Changed("reg") {
		sampled.RegRatio = trainFlags.reg
	}
	trial, err := base.With(sampled)
	if err != nil {
		return err
	}

	split, err := loadSplit(cfg)
	if err != nil {
		return err
	}
	res, err := newTrainer(cfg).RunTraining(cmd.Context(), trial, split)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s: best epoch %d, val loss %.4f, val acc %.2f%%\n",
		res.RunDir, res.BestEpoch, res.Val.Loss, res.Val.Accuracy*100)
	return nil
}

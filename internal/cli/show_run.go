// internal/cli/show_run.go
package emotune

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/k0kubun/pp"
	"github.com/mwiater/emotune/internal/hparams"
	"github.com/mwiater/emotune/internal/rundir"
	"github.com/mwiater/emotune/internal/trainer"
	"github.com/spf13/cobra"
)

// showRunCmd prints the persisted configuration and result of one run directory.
var showRunCmd = &cobra.Command{
	Use:   "run <dir>",
	Short: "Show the configuration and result of a run directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRun(cmd.OutOrStdout(), args[0])
	},
}

// showRunsCmd lists the finished runs under the runs directory.
var showRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List finished runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRuns(cmd.OutOrStdout(), getConfig().RunsDirectory())
	},
}

func init() {
	showCmd.AddCommand(showRunCmd)
	showCmd.AddCommand(showRunsCmd)
}

func showRun(out io.Writer, dir string) error {
	res, err := trainer.LoadResult(filepath.Join(dir, "result.json"))
	if err != nil {
		return err
	}
	run := rundir.Open(dir, res.Config.ModelWeightsName, res.Config.ModelConfigName)
	cfg, err := hparams.Load(run.ConfigPath)
	if err != nil {
		return fmt.Errorf("run %s: %w", run.ID, err)
	}

	labelStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(out, labelStyle.Render("Run: "+run.ID))
	fmt.Fprintf(out, "Checkpoint: %s\n\n", run.WeightsPath)
	fmt.Fprintln(out, labelStyle.Render("Configuration:"))
	pp.Fprintln(out, cfg)
	fmt.Fprintln(out, labelStyle.Render("Result:"))
	fmt.Fprintf(out, "Best epoch %d, stopped by %s\n", res.BestEpoch, res.StopReason)
	fmt.Fprintln(out, res.Summary())
	return nil
}

func showRuns(out io.Writer, base string) error {
	dirs, err := rundir.List(base)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		fmt.Fprintf(out, "No finished runs under %s.\n", base)
		return nil
	}
	for _, dir := range dirs {
		res, err := trainer.LoadResult(filepath.Join(dir, "result.json"))
		if err != nil {
			fmt.Fprintf(out, "%s  (unreadable: %v)\n", filepath.Base(dir), err)
			continue
		}
		s := res.Config.Sampled()
		fmt.Fprintf(out, "%s  val loss %.4f  val acc %.2f%%  layers=%d hidden=%d dropout=%.3f reg=%.3g\n",
			filepath.Base(dir), res.Val.Loss, res.Val.Accuracy*100, s.NLayers, s.HiddenDim, s.Dropout, s.RegRatio)
	}
	return nil
}

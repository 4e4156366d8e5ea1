// internal/cli/train.go
package emotune

import (
	"github.com/spf13/cobra"
)

var trainFlags struct {
	layers  int
	hidden  int
	dropout float64
	reg     float64
}

// trainCmd runs a single trial with the variant defaults, optionally overriding the
// searched fields.
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train one model with the variant's default hyperparameters",
	Long: `Train one model with early stopping and write its run directory. The searched fields
default to the variant's values; --layers, --hidden, --dropout and --reg override them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrain(cmd, getConfig())
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().IntVar(&trainFlags.layers, "layers", 0, "number of recurrent layers (1-3)")
	trainCmd.Flags().IntVar(&trainFlags.hidden, "hidden", 0, "hidden dimension (64-1199)")
	trainCmd.Flags().Float64Var(&trainFlags.dropout, "dropout", 0, "dropout in [0.1, 0.95)")
	trainCmd.Flags().Float64Var(&trainFlags.reg, "reg", 0, "L2 regularization ratio in [0, 1e-5)")
}

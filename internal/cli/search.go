// internal/cli/search.go
package emotune

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// searchCmd runs the random hyperparameter search. The root command does the same with
// the configured iteration count.
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a random hyperparameter search",
	Long: `Run a bounded random search: each iteration samples n_layers, hidden_dim, dropout and
reg_ratio, trains one model with early stopping and writes a run directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		return runSearch(cmd.Context(), cmd.OutOrStdout(), cfg, cfg.IterationCount())
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Int("iterations", 0, "number of trials (default 10)")
	searchCmd.Flags().Bool("continueOnError", false, "log failed trials and keep searching")
	_ = viper.BindPFlag("iterations", searchCmd.Flags().Lookup("iterations"))
	_ = viper.BindPFlag("continueOnError", searchCmd.Flags().Lookup("continueOnError"))
}

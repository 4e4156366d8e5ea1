// internal/cli/root.go
package emotune

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwiater/emotune/internal/appconfig"
	"github.com/mwiater/emotune/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	loadedFile    string
	currentConfig *appconfig.Config

	initLogging  = logging.Init
	closeLogging = logging.Close
)

var rootCmd = &cobra.Command{
	Use:           "emotune",
	Short:         "emotune: random hyperparameter search for emotion recognition models",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1) Load config (file or defaults)
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		// 2) Materialize the fully merged configuration into currentConfig
		//    (flags > config > defaults).
		var cfg appconfig.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		cfg.ConfigPath = loadedFile
		if err := cfg.Validate(); err != nil {
			return err
		}
		currentConfig = &cfg

		if err := initLogging(cfg.LogFilePath()); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		if cfg.Debug {
			logging.LogEvent("Config: %+v", cfg)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLogging()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		return runSearch(cmd.Context(), cmd.OutOrStdout(), cfg, cfg.IterationCount())
	},
}

// Execute runs the root command. An interrupt cancels the running trial between epochs.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		_ = closeLogging()
		stop()
		os.Exit(1)
	}
}

// SetVersionInfo enables --version.
func SetVersionInfo(version, commit, date string) {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

func init() {
	cobra.OnInitialize(initConfig)

	// --config (defaults to your existing path)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("logFile", "", "log file path (default emotune.log)")
	rootCmd.PersistentFlags().String("variant", "", "trial configuration variant (acoustic or linguistic)")
	rootCmd.PersistentFlags().String("runsDir", "", "base directory for run directories (default saved_models)")
	rootCmd.PersistentFlags().String("device", "", "device selection: auto or cpu")
	rootCmd.PersistentFlags().Uint64("seed", 0, "random seed for sampling and training (0 = time seeded)")
	rootCmd.PersistentFlags().Int("epochs", 0, "epoch budget per trial (0 = variant default)")
	rootCmd.PersistentFlags().Int("patience", 0, "early stopping patience (0 = variant default)")

	// Bind flags to Viper keys (flags override config)
	for _, name := range []string{"debug", "logFile", "variant", "runsDir", "device", "seed", "epochs", "patience"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// ensureConfigLoaded reads the config and sets safe defaults.
func ensureConfigLoaded() error {
	viper.SetDefault("debug", false)
	viper.SetDefault("iterations", 10)
	viper.SetDefault("runsDir", "saved_models")
	viper.SetDefault("runIds", "stamped")
	viper.SetDefault("evalBatchSize", 100)
	viper.SetDefault("device", "auto")

	loadedFile = ""
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No file: fine, we'll use defaults/flags
			return nil
		}
		if os.IsNotExist(err) && cfgFile == appconfig.DefaultConfigPath {
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	loadedFile = viper.ConfigFileUsed()
	return nil
}

// getConfig returns the merged application configuration.
func getConfig() appconfig.Config {
	if currentConfig == nil {
		return appconfig.Config{}
	}
	return *currentConfig
}

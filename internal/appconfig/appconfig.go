// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mwiater/emotune/internal/hparams"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// defaultIterations is the number of trials a search runs when the config omits it.
	defaultIterations = 10
	// defaultRunsDir is where run directories are created.
	defaultRunsDir = "saved_models"
	// defaultEvalBatchSize is the validation batch size.
	defaultEvalBatchSize = 100
	// defaultRunIDs names the id source used for run directories.
	defaultRunIDs = "stamped"
)

var (
	runIDSources = []string{"stamped", "timestamp", "uuid", "counter"}
	deviceModes  = []string{"auto", "cpu"}
)

// Config represents the top-level application configuration.
type Config struct {
	Variant         string `json:"variant"`
	Iterations      int    `json:"iterations"`
	RunsDir         string `json:"runsDir"`
	RunIDs          string `json:"runIds"`
	TrainData       string `json:"trainData"`
	ValData         string `json:"valData,omitempty"`
	SplitOffset     int    `json:"splitOffset,omitempty"`
	EvalBatchSize   int    `json:"evalBatchSize,omitempty"`
	Seed            uint64 `json:"seed,omitempty"`
	ContinueOnError bool   `json:"continueOnError"`
	Device          string `json:"device,omitempty"`
	Epochs          int    `json:"epochs,omitempty"`
	Patience        int    `json:"patience,omitempty"`
	Debug           bool   `json:"debug"`
	LogFile         string `json:"logFile,omitempty"`
	ConfigPath      string `json:"-"`
}

// VariantName returns the configured trial variant, defaulting to acoustic.
func (c Config) VariantName() string {
	if v := strings.TrimSpace(c.Variant); v != "" {
		return v
	}
	return string(hparams.Acoustic)
}

// IterationCount returns how many trials a search runs.
func (c Config) IterationCount() int {
	if c.Iterations <= 0 {
		return defaultIterations
	}
	return c.Iterations
}

// RunsDirectory returns the base directory for run directories.
func (c Config) RunsDirectory() string {
	if dir := strings.TrimSpace(c.RunsDir); dir != "" {
		return dir
	}
	return defaultRunsDir
}

// RunIDSource returns the configured run id source name.
func (c Config) RunIDSource() string {
	if ids := strings.TrimSpace(c.RunIDs); ids != "" {
		return ids
	}
	return defaultRunIDs
}

// EvalBatch returns the validation batch size.
func (c Config) EvalBatch() int {
	if c.EvalBatchSize <= 0 {
		return defaultEvalBatchSize
	}
	return c.EvalBatchSize
}

// DeviceMode returns "auto" or "cpu".
func (c Config) DeviceMode() string {
	if mode := strings.TrimSpace(c.Device); mode != "" {
		return mode
	}
	return "auto"
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "emotune.log"
}

// Validate rejects values the accessors cannot interpret.
func (c Config) Validate() error {
	var problems []string
	if _, err := hparams.ParseVariant(c.VariantName()); err != nil {
		problems = append(problems, err.Error())
	}
	if !contains(runIDSources, c.RunIDSource()) {
		problems = append(problems, fmt.Sprintf("runIds %q is not one of %s", c.RunIDSource(), strings.Join(runIDSources, ", ")))
	}
	if !contains(deviceModes, c.DeviceMode()) {
		problems = append(problems, fmt.Sprintf("device %q is not one of %s", c.DeviceMode(), strings.Join(deviceModes, ", ")))
	}
	if c.SplitOffset < 0 || c.Epochs < 0 || c.Patience < 0 {
		problems = append(problems, "splitOffset, epochs and patience must not be negative")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// internal/hparams/hparams.go
// Package hparams defines the per-trial training configuration and its validation rules.
package hparams

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrOutOfRange is returned when a hyperparameter falls outside its allowed range.
var ErrOutOfRange = errors.New("hyperparameter out of range")

// Bounds of the sampled hyperparameters. Float upper bounds are exclusive.
const (
	MinLayers    = 1
	MaxLayers    = 3
	MinHiddenDim = 64
	MaxHiddenDim = 1199
	MinDropout   = 0.1
	MaxDropout   = 0.95
	MinRegRatio  = 0.0
	MaxRegRatio  = 1e-5
)

// Sampled holds the fields drawn by the random search. Both variants share this contract.
type Sampled struct {
	NLayers   int     `json:"n_layers"`
	HiddenDim int     `json:"hidden_dim"`
	Dropout   float64 `json:"dropout"`
	RegRatio  float64 `json:"reg_ratio"`
}

// Config describes one trial. It is passed by value and never mutated after construction;
// use With to derive a modified copy.
type Config struct {
	Variant          Variant `json:"variant"`
	NLayers          int     `json:"n_layers"`
	HiddenDim        int     `json:"hidden_dim"`
	Dropout          float64 `json:"dropout"`
	RegRatio         float64 `json:"reg_ratio"`
	LR               float64 `json:"lr"`
	BatchSize        int     `json:"batch_size"`
	NEpochs          int     `json:"n_epochs"`
	Patience         int     `json:"patience"`
	Verbose          bool    `json:"verbose"`
	InputDim         int     `json:"input_dim"`
	SeqLen           int     `json:"seq_len"`
	NClasses         int     `json:"n_classes"`
	ModelWeightsName string  `json:"model_weights_name"`
	ModelConfigName  string  `json:"model_config_name"`
}

// New builds a validated configuration from the variant's fixed fields and the sampled ones.
func New(v Variant, s Sampled) (Config, error) {
	base, err := Defaults(v)
	if err != nil {
		return Config{}, err
	}
	return base.With(s)
}

// With returns a copy of c with the sampled fields replaced. The copy is validated.
func (c Config) With(s Sampled) (Config, error) {
	c.NLayers = s.NLayers
	c.HiddenDim = s.HiddenDim
	c.Dropout = s.Dropout
	c.RegRatio = s.RegRatio
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// WithBudget returns a copy of c with a different epoch budget and patience.
// Zero keeps the current value.
func (c Config) WithBudget(nEpochs, patience int) (Config, error) {
	if nEpochs != 0 {
		c.NEpochs = nEpochs
	}
	if patience != 0 {
		c.Patience = patience
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Sampled extracts the sampled fields of c.
func (c Config) Sampled() Sampled {
	return Sampled{
		NLayers:   c.NLayers,
		HiddenDim: c.HiddenDim,
		Dropout:   c.Dropout,
		RegRatio:  c.RegRatio,
	}
}

// Validate checks every field and reports all violations at once.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if _, ok := variants[c.Variant]; !ok {
		add("variant %q is unknown", c.Variant)
	}
	if c.NLayers < MinLayers || c.NLayers > MaxLayers {
		add("n_layers=%d not in [%d,%d]", c.NLayers, MinLayers, MaxLayers)
	}
	if c.HiddenDim < MinHiddenDim || c.HiddenDim > MaxHiddenDim {
		add("hidden_dim=%d not in [%d,%d]", c.HiddenDim, MinHiddenDim, MaxHiddenDim)
	}
	if !inHalfOpen(c.Dropout, MinDropout, MaxDropout) {
		add("dropout=%g not in [%g,%g)", c.Dropout, MinDropout, MaxDropout)
	}
	if !inHalfOpen(c.RegRatio, MinRegRatio, MaxRegRatio) {
		add("reg_ratio=%g not in [%g,%g)", c.RegRatio, MinRegRatio, MaxRegRatio)
	}
	if !(c.LR > 0) || math.IsInf(c.LR, 0) {
		add("lr=%g must be positive", c.LR)
	}
	if c.BatchSize < 1 {
		add("batch_size=%d must be at least 1", c.BatchSize)
	}
	if c.NEpochs < 1 {
		add("n_epochs=%d must be at least 1", c.NEpochs)
	}
	if c.Patience < 1 {
		add("patience=%d must be at least 1", c.Patience)
	}
	if c.InputDim < 1 {
		add("input_dim=%d must be at least 1", c.InputDim)
	}
	if c.NClasses < 2 {
		add("n_classes=%d must be at least 2", c.NClasses)
	}
	if msg := checkFileName(c.ModelWeightsName); msg != "" {
		add("model_weights_name %s", msg)
	}
	if msg := checkFileName(c.ModelConfigName); msg != "" {
		add("model_config_name %s", msg)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrOutOfRange, strings.Join(problems, "; "))
}

// checkFileName accepts only a bare file name, so run artifacts stay inside their run directory.
func checkFileName(name string) string {
	switch {
	case strings.TrimSpace(name) == "":
		return "is empty"
	case strings.ContainsAny(name, `/\`), name == ".", strings.Contains(name, ".."):
		return fmt.Sprintf("%q must be a plain file name", name)
	}
	return ""
}

func inHalfOpen(v, lo, hi float64) bool {
	return v >= lo && v < hi
}

package hparams

import (
	"fmt"
	"sort"
	"strings"
)

// Variant identifies the feature family a trial is trained on.
type Variant string

const (
	Acoustic   Variant = "acoustic"
	Linguistic Variant = "linguistic"
)

var variants = map[Variant]func() Config{
	Acoustic:   acousticDefaults,
	Linguistic: linguisticDefaults,
}

// ParseVariant normalizes a user-supplied variant name.
// An empty string selects Acoustic.
func ParseVariant(name string) (Variant, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Acoustic, nil
	}
	v := Variant(n)
	if _, ok := variants[v]; !ok {
		return "", fmt.Errorf("unknown variant %q (known: %s)", name, strings.Join(VariantNames(), ", "))
	}
	return v, nil
}

// VariantNames lists the known variants in sorted order.
func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for v := range variants {
		names = append(names, string(v))
	}
	sort.Strings(names)
	return names
}

// Defaults returns the complete default configuration for a variant.
func Defaults(v Variant) (Config, error) {
	build, ok := variants[v]
	if !ok {
		return Config{}, fmt.Errorf("%w: variant %q is unknown", ErrOutOfRange, v)
	}
	return build(), nil
}

// acousticDefaults is tuned for MFCC frame sequences.
func acousticDefaults() Config {
	return Config{
		Variant:          Acoustic,
		NLayers:          2,
		HiddenDim:        200,
		Dropout:          0.5,
		RegRatio:         0,
		LR:               1e-3,
		BatchSize:        32,
		NEpochs:          1000,
		Patience:         20,
		Verbose:          true,
		InputDim:         40,
		SeqLen:           200,
		NClasses:         4,
		ModelWeightsName: "acoustic_model.nn",
		ModelConfigName:  "acoustic_config.json",
	}
}

// linguisticDefaults is tuned for word-embedding sequences of transcripts.
func linguisticDefaults() Config {
	return Config{
		Variant:          Linguistic,
		NLayers:          1,
		HiddenDim:        300,
		Dropout:          0.5,
		RegRatio:         0,
		LR:               1e-3,
		BatchSize:        64,
		NEpochs:          1000,
		Patience:         20,
		Verbose:          true,
		InputDim:         400,
		SeqLen:           30,
		NClasses:         4,
		ModelWeightsName: "linguistic_model.nn",
		ModelConfigName:  "linguistic_config.json",
	}
}

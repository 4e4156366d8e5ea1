// internal/dataset/dataset.go
// Package dataset loads labelled feature sequences and splits them into training and
// validation sets.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrEmpty is returned when one side of a split has no examples.
	ErrEmpty = errors.New("dataset is empty")
	// ErrMisaligned is returned when features and labels differ in length or shape.
	ErrMisaligned = errors.New("features and labels are misaligned")
)

// Dataset is a list of feature sequences (sample × timestep × feature) with one class label
// per sequence.
type Dataset struct {
	Features [][][]float64 `json:"features"`
	Labels   []int         `json:"labels"`
}

// Split is the fixed training/validation partition a trial is run against.
type Split struct {
	TrainFeatures [][][]float64
	TrainLabels   []int
	ValFeatures   [][][]float64
	ValLabels     []int
}

// Len returns the number of examples.
func (d Dataset) Len() int {
	return len(d.Labels)
}

// Load reads a dataset from a JSON file.
func Load(path string) (Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer file.Close()

	var d Dataset
	if err := json.NewDecoder(file).Decode(&d); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	if len(d.Features) != len(d.Labels) {
		return Dataset{}, fmt.Errorf("dataset %s: %w: %d feature rows, %d labels", path, ErrMisaligned, len(d.Features), len(d.Labels))
	}
	return d, nil
}

// Save writes the dataset as JSON, creating the parent directory.
func (d Dataset) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dataset dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset %s: %w", path, err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(d); err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}
	return nil
}

// SplitAt partitions d at a fixed offset: examples before offset train, the rest validate.
// The boundary never moves between trials.
func (d Dataset) SplitAt(offset int) (Split, error) {
	if len(d.Features) != len(d.Labels) {
		return Split{}, fmt.Errorf("%w: %d feature rows, %d labels", ErrMisaligned, len(d.Features), len(d.Labels))
	}
	if offset <= 0 || offset >= d.Len() {
		return Split{}, fmt.Errorf("%w: split offset %d leaves one side empty (size %d)", ErrEmpty, offset, d.Len())
	}
	return Split{
		TrainFeatures: d.Features[:offset],
		TrainLabels:   d.Labels[:offset],
		ValFeatures:   d.Features[offset:],
		ValLabels:     d.Labels[offset:],
	}, nil
}

// NewSplit combines separately stored training and validation sets.
func NewSplit(train, val Dataset) Split {
	return Split{
		TrainFeatures: train.Features,
		TrainLabels:   train.Labels,
		ValFeatures:   val.Features,
		ValLabels:     val.Labels,
	}
}

// Validate checks that both pairs are aligned and non-empty, every timestep has inputDim
// features and every label is a valid class index.
func (s Split) Validate(inputDim, nClasses int) error {
	if err := validatePair("training", s.TrainFeatures, s.TrainLabels, inputDim, nClasses); err != nil {
		return err
	}
	return validatePair("validation", s.ValFeatures, s.ValLabels, inputDim, nClasses)
}

func validatePair(name string, features [][][]float64, labels []int, inputDim, nClasses int) error {
	if len(features) == 0 || len(labels) == 0 {
		return fmt.Errorf("%s set: %w", name, ErrEmpty)
	}
	if len(features) != len(labels) {
		return fmt.Errorf("%s set: %w: %d feature rows, %d labels", name, ErrMisaligned, len(features), len(labels))
	}
	for i, seq := range features {
		if len(seq) == 0 {
			return fmt.Errorf("%s set: %w: sample %d has no timesteps", name, ErrMisaligned, i)
		}
		for t, frame := range seq {
			if len(frame) != inputDim {
				return fmt.Errorf("%s set: %w: sample %d step %d has %d features, want %d", name, ErrMisaligned, i, t, len(frame), inputDim)
			}
		}
		if labels[i] < 0 || labels[i] >= nClasses {
			return fmt.Errorf("%s set: %w: sample %d label %d not in [0,%d)", name, ErrMisaligned, i, labels[i], nClasses)
		}
	}
	return nil
}

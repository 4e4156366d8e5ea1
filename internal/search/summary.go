package search

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mwiater/emotune/internal/hparams"
	"github.com/mwiater/emotune/internal/trainer"
	"github.com/mwiater/emotune/internal/util"
)

// Trial is one attempted configuration. Exactly one of Result and Err is set.
type Trial struct {
	Index   int             `json:"index"`
	Sampled hparams.Sampled `json:"sampled"`
	Result  *trainer.Result `json:"result,omitempty"`
	Err     string          `json:"error,omitempty"`
}

// Summary collects the trials of one search.
type Summary struct {
	Trials []Trial `json:"trials"`
}

// Best returns the finished trial with the lowest best validation loss.
func (s Summary) Best() (Trial, bool) {
	var top Trial
	found := false
	for _, t := range s.Trials {
		if t.Result == nil {
			continue
		}
		if !found || t.Result.Val.Loss < top.Result.Val.Loss {
			top = t
			found = true
		}
	}
	return top, found
}

// Table renders a leaderboard, finished trials by validation loss, failures last.
func (s Summary) Table() string {
	trials := make([]Trial, len(s.Trials))
	copy(trials, s.Trials)
	sort.SliceStable(trials, func(i, j int) bool {
		a, b := trials[i].Result, trials[j].Result
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Val.Loss < b.Val.Loss
		}
	})

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	failedStyle := cellStyle.Foreground(lipgloss.Color("9"))

	rows := make([][]string, 0, len(trials))
	failed := map[int]bool{}
	for i, t := range trials {
		row := []string{
			strconv.Itoa(t.Index + 1),
			strconv.Itoa(t.Sampled.NLayers),
			strconv.Itoa(t.Sampled.HiddenDim),
			fmt.Sprintf("%.4f", t.Sampled.Dropout),
			fmt.Sprintf("%.3g", t.Sampled.RegRatio),
		}
		if t.Result != nil {
			row = append(row,
				fmt.Sprintf("%.4f", t.Result.Val.Loss),
				fmt.Sprintf("%.2f%%", t.Result.Val.Accuracy*100),
				fmt.Sprintf("%.2f%%", t.Result.Val.WeightedAccuracy*100),
				t.Result.RunID,
			)
		} else {
			failed[i] = true
			row = append(row, "-", "-", "-", util.TruncateRunes(t.Err, 60))
		}
		rows = append(rows, row)
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("trial", "layers", "hidden", "dropout", "reg", "val loss", "val acc", "w. acc", "run").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case failed[row]:
				return failedStyle
			default:
				return cellStyle
			}
		}).
		String()
}

// Save writes the summary as indented JSON, creating the parent directory.
func (s Summary) Save(path string) error {
	if err := util.WriteJSON(path, s); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// LoadSummary reads a summary written by Save.
func LoadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("read summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("decode summary %s: %w", path, err)
	}
	return s, nil
}

package epoch

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Confusion counts predictions per actual class: Counts[actual][predicted].
type Confusion struct {
	Counts [][]int `json:"counts"`
}

// NewConfusion returns an empty n×n matrix.
func NewConfusion(n int) Confusion {
	counts := make([][]int, n)
	for i := range counts {
		counts[i] = make([]int, n)
	}
	return Confusion{Counts: counts}
}

// Classes returns the matrix size.
func (c Confusion) Classes() int { return len(c.Counts) }

// Add records one prediction.
func (c Confusion) Add(actual, predicted int) {
	c.Counts[actual][predicted]++
}

// Merge adds other's counts into c. Both must have the same size.
func (c Confusion) Merge(other Confusion) {
	for i, row := range other.Counts {
		for j, v := range row {
			c.Counts[i][j] += v
		}
	}
}

// Total returns the number of recorded predictions.
func (c Confusion) Total() int {
	var n int
	for _, row := range c.Counts {
		for _, v := range row {
			n += v
		}
	}
	return n
}

// Accuracy is the fraction of correct predictions.
func (c Confusion) Accuracy() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	var correct int
	for i := range c.Counts {
		correct += c.Counts[i][i]
	}
	return float64(correct) / float64(total)
}

// WeightedAccuracy is the mean per-class recall over the classes that occur, so every
// emotion counts equally regardless of how many examples it has.
func (c Confusion) WeightedAccuracy() float64 {
	var sum float64
	var classes int
	for i, row := range c.Counts {
		var support int
		for _, v := range row {
			support += v
		}
		if support == 0 {
			continue
		}
		sum += float64(row[i]) / float64(support)
		classes++
	}
	if classes == 0 {
		return 0
	}
	return sum / float64(classes)
}

// Clone returns a deep copy.
func (c Confusion) Clone() Confusion {
	out := NewConfusion(c.Classes())
	out.Merge(c)
	return out
}

// String renders the matrix as a plain bordered table with actual classes as rows.
func (c Confusion) String() string {
	headers := []string{"actual\\pred"}
	for j := range c.Counts {
		headers = append(headers, strconv.Itoa(j))
	}
	rows := make([][]string, 0, len(c.Counts))
	for i, row := range c.Counts {
		cells := []string{strconv.Itoa(i)}
		for _, v := range row {
			cells = append(cells, strconv.Itoa(v))
		}
		rows = append(rows, cells)
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		String()
}

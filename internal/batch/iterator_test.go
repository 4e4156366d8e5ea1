package batch

import (
	"math/rand/v2"
	"sort"
	"testing"
)

func makeData(n int) ([][][]float64, []int) {
	features := make([][][]float64, n)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		features[i] = [][]float64{{float64(i)}}
		labels[i] = i
	}
	return features, labels
}

func TestBatchesCoverDatasetOnce(t *testing.T) {
	t.Parallel()

	features, labels := makeData(10)
	it, err := New(features, labels, 4, rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if it.NumBatches() != 3 {
		t.Fatalf("expected 3 batches, got %d", it.NumBatches())
	}

	it.Shuffle()
	var sizes []int
	var seen []int
	for b := range it.Batches() {
		sizes = append(sizes, b.Len())
		for i, label := range b.Labels {
			if int(b.Features[i][0][0]) != label {
				t.Fatalf("features and labels fell out of alignment")
			}
			seen = append(seen, label)
		}
	}
	if len(sizes) != 3 || sizes[0] != 4 || sizes[1] != 4 || sizes[2] != 2 {
		t.Fatalf("unexpected batch sizes %v", sizes)
	}
	sort.Ints(seen)
	for i, v := range seen {
		if v != i {
			t.Fatalf("pass did not cover each example exactly once: %v", seen)
		}
	}
}

func TestBatchesRestartable(t *testing.T) {
	t.Parallel()

	features, labels := makeData(5)
	it, _ := New(features, labels, 2, nil)
	count := func() int {
		n := 0
		for range it.Batches() {
			n++
		}
		return n
	}
	if first, second := count(), count(); first != 3 || second != 3 {
		t.Fatalf("expected 3 batches on each pass, got %d and %d", first, second)
	}
}

func TestBatchesEarlyBreak(t *testing.T) {
	t.Parallel()

	features, labels := makeData(6)
	it, _ := New(features, labels, 1, nil)
	n := 0
	for range it.Batches() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("expected to stop after 2 batches, got %d", n)
	}
}

func TestShuffleChangesOrder(t *testing.T) {
	t.Parallel()

	features, labels := makeData(50)
	it, _ := New(features, labels, 50, rand.New(rand.NewPCG(7, 7)))
	it.Shuffle()
	var order []int
	for b := range it.Batches() {
		order = append(order, b.Labels...)
	}
	identity := true
	for i, v := range order {
		if v != i {
			identity = false
			break
		}
	}
	if identity {
		t.Fatalf("shuffle left the order unchanged")
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	features, labels := makeData(3)
	if _, err := New(features, labels[:2], 1, nil); err == nil {
		t.Fatalf("expected misalignment error")
	}
	if _, err := New(features, labels, 0, nil); err == nil {
		t.Fatalf("expected batch size error")
	}
}

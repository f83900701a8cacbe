package datasets

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/eegprep/epochs"
	"github.com/Noofbiz/eegprep/store"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// writeSubject saves n two-channel, three-sample epochs whose values encode
// offset+epoch index, labelled epoch%2.
func writeSubject(t *testing.T, dir, subject string, n int, offset float64) {
	t.Helper()
	set := &epochs.EpochSet{
		Classes:    []string{"left_hand", "right_hand"},
		Channels:   []string{"C3", "C4"},
		SampleRate: 250,
		Length:     3,
	}
	for i := 0; i < n; i++ {
		v := offset + float64(i)
		set.Data = append(set.Data, [][]float64{{v, v, v}, {-v, -v, -v}})
		set.Labels = append(set.Labels, i%2)
	}
	x, y := store.Tensors(set)
	if err := x.Save(filepath.Join(dir, subject+"_X.tensor")); err != nil {
		t.Fatalf("save features: %v", err)
	}
	if err := y.Save(filepath.Join(dir, subject+"_y.tensor")); err != nil {
		t.Fatalf("save labels: %v", err)
	}
}

func TestEpochDataset_LoadAndRead(t *testing.T) {
	tmp := t.TempDir()
	writeSubject(t, tmp, "A01T", 4, 100)
	writeSubject(t, tmp, "A02T", 2, 200)

	ds, err := NewEpochDataset(tmp)
	if err != nil {
		t.Fatalf("NewEpochDataset failed: %v", err)
	}

	if ds.Len() != 6 {
		t.Fatalf("expected 6 examples, got %d", ds.Len())
	}
	if got := ds.Subjects(); len(got) != 2 || got[0] != "A01T" || got[1] != "A02T" {
		t.Fatalf("unexpected subjects %v", got)
	}
	if sizes := ds.SubjectSizes(); sizes[0] != 4 || sizes[1] != 2 {
		t.Fatalf("unexpected subject sizes %v", sizes)
	}
	if labels := ds.Labels(); len(labels) != 6 || labels[5] != 1 {
		t.Fatalf("unexpected labels %v", labels)
	}
	if ch, n := ds.Shape(); ch != 2 || n != 3 {
		t.Fatalf("unexpected shape (%d, %d)", ch, n)
	}

	inputs, label, err := ds.Example(5)
	if err != nil {
		t.Fatalf("Example(5) failed: %v", err)
	}
	if len(inputs) != 6 || inputs[0] != 201 || inputs[3] != -201 {
		t.Fatalf("unexpected inputs for example 5: %v", inputs)
	}
	if label != 1 {
		t.Fatalf("expected label 1, got %d", label)
	}

	batch, labels, err := ds.Batch([]int{0, 4, 3})
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if batch[0][0] != 100 || batch[1][0] != 200 || batch[2][0] != 103 {
		t.Fatalf("unexpected batch inputs %v", batch)
	}
	if labels[0] != 0 || labels[1] != 0 || labels[2] != 1 {
		t.Fatalf("unexpected batch labels %v", labels)
	}

	if _, _, err := ds.Example(6); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestEpochDataset_Yield(t *testing.T) {
	tmp := t.TempDir()
	writeSubject(t, tmp, "A01T", 5, 0)

	ds, err := NewEpochDataset(tmp)
	if err != nil {
		t.Fatalf("NewEpochDataset failed: %v", err)
	}
	ds.BatchSize = 2
	ds.Shuffle(42)

	seen := 0
	for {
		_, inputs, labels, err := ds.Yield()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Yield failed: %v", err)
		}
		dims := inputs[0].Shape().Dimensions
		if len(dims) != 3 || dims[1] != 2 || dims[2] != 3 {
			t.Fatalf("unexpected input shape %v", dims)
		}
		if labels[0].Shape().Dimensions[0] != dims[0] {
			t.Fatalf("labels and inputs disagree: %v vs %v", labels[0].Shape().Dimensions, dims)
		}
		seen += dims[0]
	}
	if seen != 5 {
		t.Fatalf("expected 5 examples per pass, got %d", seen)
	}

	if err := ds.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	_, inputs, _, err := ds.Yield()
	if err != nil {
		t.Fatalf("Yield after Restart failed: %v", err)
	}
	if got := len(tensors.CopyFlatData[float32](inputs[0])); got != 12 {
		t.Fatalf("expected a full batch of 12 values, got %d", got)
	}
}

func TestEpochDataset_NoFiles(t *testing.T) {
	if _, err := NewEpochDataset(t.TempDir()); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

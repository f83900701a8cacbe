// Package store persists the per-subject outputs of the pipeline: the
// cleaned recording as EDF+ and the balanced epochs and labels as gomlx
// tensor files.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Noofbiz/eegprep/epochs"
	"github.com/Noofbiz/eegprep/recording"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Artifacts lists the files written for one subject.
type Artifacts struct {
	Clean    string
	Features string
	Labels   string
	Bytes    int64
}

// FileStore writes outputs under a processed and a features directory.
type FileStore struct {
	ProcessedDir string
	FeaturesDir  string
}

// NewFileStore creates both directories if needed.
func NewFileStore(processedDir, featuresDir string) (*FileStore, error) {
	for _, dir := range []string{processedDir, featuresDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return &FileStore{ProcessedDir: processedDir, FeaturesDir: featuresDir}, nil
}

// CleanPath returns the path of the cleaned recording of subject.
func (s *FileStore) CleanPath(subject string) string {
	return filepath.Join(s.ProcessedDir, subject+"_clean.edf")
}

// FeaturesPath returns the path of the epoch tensor of subject.
func (s *FileStore) FeaturesPath(subject string) string {
	return filepath.Join(s.FeaturesDir, subject+"_X.tensor")
}

// LabelsPath returns the path of the label tensor of subject.
func (s *FileStore) LabelsPath(subject string) string {
	return filepath.Join(s.FeaturesDir, subject+"_y.tensor")
}

// Save writes the three artifacts of subject. Each file is first written
// next to its destination and the set is only renamed into place once all
// three succeeded, so a failed Save leaves previous outputs untouched.
func (s *FileStore) Save(subject string, clean *recording.Recording, set *epochs.EpochSet) (Artifacts, error) {
	x, y := Tensors(set)

	out := Artifacts{
		Clean:    s.CleanPath(subject),
		Features: s.FeaturesPath(subject),
		Labels:   s.LabelsPath(subject),
	}
	writes := []struct {
		dst   string
		write func(path string) error
	}{
		{out.Clean, func(path string) error { return writeEDF(path, clean) }},
		{out.Features, x.Save},
		{out.Labels, y.Save},
	}

	var temps []string
	cleanup := func() {
		for _, t := range temps {
			_ = os.Remove(t)
		}
	}
	for _, w := range writes {
		tmp, err := tempPath(w.dst)
		if err != nil {
			cleanup()
			return Artifacts{}, err
		}
		temps = append(temps, tmp)
		if err := w.write(tmp); err != nil {
			cleanup()
			return Artifacts{}, fmt.Errorf("failed to write %s: %w", filepath.Base(w.dst), err)
		}
		info, err := os.Stat(tmp)
		if err != nil {
			cleanup()
			return Artifacts{}, err
		}
		out.Bytes += info.Size()
	}

	for i, w := range writes {
		if err := os.Rename(temps[i], w.dst); err != nil {
			cleanup()
			return Artifacts{}, fmt.Errorf("failed to move %s into place: %w", filepath.Base(w.dst), err)
		}
	}
	return out, nil
}

// Tensors converts set into a float32 tensor of shape
// (epochs, channels, samples) and an int32 label tensor of shape (epochs).
func Tensors(set *epochs.EpochSet) (x, y *tensors.Tensor) {
	n, ch, t := set.Len(), len(set.Channels), set.Length
	flat := make([]float32, 0, n*ch*t)
	for _, epoch := range set.Data {
		for _, row := range epoch {
			for _, v := range row {
				flat = append(flat, float32(v))
			}
		}
	}
	labels := make([]int32, n)
	for i, l := range set.Labels {
		labels[i] = int32(l)
	}
	return tensors.FromFlatDataAndDimensions(flat, n, ch, t), tensors.FromFlatDataAndDimensions(labels, n)
}

// LoadTensors reads back the epoch and label tensors of subject.
func (s *FileStore) LoadTensors(subject string) (x, y *tensors.Tensor, err error) {
	if x, err = tensors.Load(s.FeaturesPath(subject)); err != nil {
		return nil, nil, err
	}
	if y, err = tensors.Load(s.LabelsPath(subject)); err != nil {
		return nil, nil, err
	}
	if x.Shape().Dimensions[0] != y.Shape().Dimensions[0] {
		return nil, nil, fmt.Errorf("%s: %d epochs but %d labels", subject, x.Shape().Dimensions[0], y.Shape().Dimensions[0])
	}
	return x, y, nil
}

func writeEDF(path string, r *recording.Recording) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return EncodeEDF(f, r)
}

func tempPath(dst string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}

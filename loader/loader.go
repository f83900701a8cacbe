// Package loader obtains decoded recordings for subject identifiers.
//
// Decoding a concrete file format is delegated to a Decoder; the Loader only
// resolves subject names to files and reports missing input as "not found"
// instead of an error so that a batch can skip the subject.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Noofbiz/eegprep/edf"
	"github.com/Noofbiz/eegprep/recording"
)

// Decoder turns an open file into a Recording.
type Decoder interface {
	Decode(subject string, f *os.File) (*recording.Recording, error)
}

// Loader resolves subject identifiers to files in a directory.
type Loader struct {
	Dir       string
	Extension string // including the dot, e.g. ".edf"
	Decoder   Decoder
}

// New returns a Loader reading EDF+ files from dir.
func New(dir string) *Loader {
	return &Loader{Dir: dir, Extension: ".edf", Decoder: EDFDecoder{}}
}

// Path returns the expected raw file path for subject.
func (l *Loader) Path(subject string) string {
	return filepath.Join(l.Dir, subject+l.Extension)
}

// Load decodes the raw file for subject. found is false, with a nil error,
// when the file does not exist.
func (l *Loader) Load(ctx context.Context, subject string) (*recording.Recording, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	f, err := os.Open(l.Path(subject))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to open raw file: %w", err)
	}
	defer f.Close()

	rec, err := l.Decoder.Decode(subject, f)
	if err != nil {
		return nil, true, fmt.Errorf("failed to decode %s: %w", f.Name(), err)
	}
	return rec, true, nil
}

// EDFDecoder decodes EDF/EDF+ files. Physical values are converted to volts
// using each signal's physical dimension.
type EDFDecoder struct{}

func (EDFDecoder) Decode(subject string, f *os.File) (*recording.Recording, error) {
	er, err := edf.Open(f)
	if err != nil {
		return nil, err
	}
	hdr := er.Header()

	signals, anns, err := er.ReadAll()
	if err != nil {
		return nil, err
	}

	var (
		names      []string
		sampleRate float64
	)
	j := 0
	for i, sig := range hdr.Signals {
		if sig.IsAnnotation() {
			continue
		}
		rate := hdr.SampleRate(i)
		if sampleRate == 0 {
			sampleRate = rate
		} else if rate != sampleRate {
			return nil, fmt.Errorf("signal %q sampled at %v Hz, expected %v Hz", sig.Label, rate, sampleRate)
		}
		scale := unitScale(sig.PhysicalDimension)
		if scale != 1 {
			for k := range signals[j] {
				signals[j][k] *= scale
			}
		}
		names = append(names, sig.Label)
		j++
	}

	annotations := make([]recording.Annotation, len(anns))
	for i, a := range anns {
		annotations[i] = recording.Annotation{Onset: a.Onset, Duration: a.Duration, Description: a.Text}
	}

	return recording.New(subject, sampleRate, names, signals, annotations)
}

// unitScale returns the factor converting a physical dimension to volts.
func unitScale(dim string) float64 {
	switch strings.TrimSpace(dim) {
	case "uV", "µV", "μV", "microV":
		return 1e-6
	case "mV":
		return 1e-3
	case "nV":
		return 1e-9
	default:
		return 1
	}
}

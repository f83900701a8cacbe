package ica

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/Noofbiz/eegprep/recording"
)

// DefaultThreshold is the z-score above which a component counts as
// artifact-driven.
const DefaultThreshold = 3.0

// Remover suppresses artifact-reference-correlated components from the
// signal channels of a recording.
type Remover struct {
	Config    Config
	Threshold float64
}

// NewRemover returns a Remover with the default threshold.
func NewRemover(cfg Config) *Remover {
	return &Remover{Config: cfg, Threshold: DefaultThreshold}
}

// Report describes one artifact removal.
type Report struct {
	Excluded   []int
	Scores     [][]float64 // [reference channel][component]
	References []string
	Iterations int
}

// Remove decomposes the signal channels of r (after materializing pending
// projectors), excludes components correlated with the artifact-reference
// channels and reconstructs the signal. Reconstruction runs even when no
// component is excluded. The returned recording has the same shape as r.
func (rm *Remover) Remove(r *recording.Recording) (*recording.Recording, Report, error) {
	r = r.ApplyProjectors()

	sig := r.SignalIndices()
	x := make([][]float64, len(sig))
	for i, c := range sig {
		x[i] = r.Data[c]
	}

	m, err := Fit(x, rm.Config)
	if err != nil {
		return nil, Report{}, fmt.Errorf("ica fit: %w", err)
	}

	var (
		refs  [][]float64
		names []string
	)
	for _, c := range r.ArtifactIndices() {
		refs = append(refs, r.Data[c])
		names = append(names, r.Names[c])
	}

	excluded, scores, err := FindArtifactComponents(m.Sources(x), refs, r.SampleRate, rm.Threshold)
	if err != nil {
		return nil, Report{}, err
	}

	slog.Debug("ica fitted", "subject", r.Subject, "components", rm.Config.Components,
		"iterations", m.Iterations, "excluded", excluded)

	cleaned := m.Apply(x, excluded)
	data := make([][]float64, len(r.Data))
	for i, c := range sig {
		data[c] = cleaned[i]
	}
	for c, ch := range r.Data {
		if data[c] == nil {
			data[c] = slices.Clone(ch)
		}
	}

	return r.WithData(data), Report{
		Excluded:   excluded,
		Scores:     scores,
		References: names,
		Iterations: m.Iterations,
	}, nil
}

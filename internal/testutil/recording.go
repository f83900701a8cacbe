// Package testutil builds synthetic recordings for tests across packages.
package testutil

import (
	"math"
	"math/rand"

	"github.com/Noofbiz/eegprep/recording"
)

// SignalNames are the 22 EEG sensors of the four-class motor-imagery montage.
var SignalNames = []string{
	"Fz", "FC3", "FC1", "FCz", "FC2", "FC4",
	"C5", "C3", "C1", "Cz", "C2", "C4", "C6",
	"CP3", "CP1", "CPz", "CP2", "CP4",
	"P1", "Pz", "P2", "POz",
}

// ArtifactNames are the EOG channels recorded after the EEG.
var ArtifactNames = []string{"EOG-left", "EOG-central", "EOG-right"}

// OcularFrequency is the frequency of the synthetic eye-movement source.
const OcularFrequency = 3.0

// Options configures MotorImagery.
type Options struct {
	Subject    string
	SampleRate float64 // default 250
	Seconds    float64 // default 30
	Sources    int     // sinusoidal sources mixed into the EEG, default 20
	Seed       int64
	Events     []recording.Annotation
}

// MotorImagery builds a recording with 22 EEG channels followed by 3 EOG
// channels. The EEG is a fixed random mixture of sinusoidal sources of a
// few microvolts; source 0 is an ocular source that the EOG channels see
// at ten times the amplitude. Roles are not assigned.
func MotorImagery(opts Options) *recording.Recording {
	if opts.SampleRate == 0 {
		opts.SampleRate = 250
	}
	if opts.Seconds == 0 {
		opts.Seconds = 30
	}
	if opts.Sources == 0 {
		opts.Sources = 20
	}
	if opts.Subject == "" {
		opts.Subject = "A01T"
	}

	rng := rand.New(rand.NewSource(opts.Seed + 1))
	n := int(opts.Seconds * opts.SampleRate)

	sources := make([][]float64, opts.Sources)
	for j := range sources {
		freq := OcularFrequency
		if j > 0 {
			freq = 5 + 1.5*float64(j-1)
		}
		phase := rng.Float64() * 2 * math.Pi
		sources[j] = make([]float64, n)
		for t := range sources[j] {
			sources[j][t] = math.Sin(2*math.Pi*freq*float64(t)/opts.SampleRate + phase)
		}
	}

	names := append(append([]string{}, SignalNames...), ArtifactNames...)
	data := make([][]float64, len(names))
	for c := range SignalNames {
		data[c] = make([]float64, n)
		for j := range sources {
			w := (rng.Float64()*2 - 1) * 2e-6
			for t, v := range sources[j] {
				data[c][t] += w * v
			}
		}
	}
	for i := range ArtifactNames {
		c := len(SignalNames) + i
		gain := 20e-6 * (1 - 0.2*float64(i))
		data[c] = make([]float64, n)
		for t, v := range sources[0] {
			data[c][t] = gain*v + 1e-7*rng.NormFloat64()
		}
	}

	rec, err := recording.New(opts.Subject, opts.SampleRate, names, data, opts.Events)
	if err != nil {
		panic(err)
	}
	return rec
}

// Cues returns one annotation per onset, cycling through the four
// motor-imagery cue codes 769..772.
func Cues(onsets ...float64) []recording.Annotation {
	codes := []string{"769", "770", "771", "772"}
	out := make([]recording.Annotation, len(onsets))
	for i, onset := range onsets {
		out[i] = recording.Annotation{Onset: onset, Description: codes[i%len(codes)]}
	}
	return out
}

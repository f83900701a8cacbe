package epochs

import (
	"errors"
	"math"

	"github.com/Noofbiz/eegprep/recording"
	"gonum.org/v1/gonum/floats"
)

// ErrNoUsableEvents is returned when none of the configured class codes
// occur in a recording.
var ErrNoUsableEvents = errors.New("no usable events")

// Config controls segmentation.
type Config struct {
	Classes []Class
	TMin    float64 // seconds relative to the event
	TMax    float64
	// Peak absolute amplitude limits in volts. Zero disables the check.
	SignalReject   float64
	ArtifactReject float64
}

// DefaultConfig cuts 0..4 s after each motor-imagery cue and rejects
// epochs above 150 µV on EEG or 250 µV on EOG channels.
func DefaultConfig() Config {
	return Config{
		Classes:        MotorImagery,
		TMin:           0,
		TMax:           4,
		SignalReject:   150e-6,
		ArtifactReject: 250e-6,
	}
}

// EpochSet holds epochs of the signal channels and their dense labels.
type EpochSet struct {
	Data       [][][]float64 // [epoch][channel][sample]
	Labels     []int
	Classes    []string // class names indexed by label
	Channels   []string
	SampleRate float64
	Length     int // samples per epoch
	Rejected   int // epochs dropped for amplitude
	Truncated  int // epochs dropped for leaving the recording
}

// Len returns the number of epochs.
func (s *EpochSet) Len() int { return len(s.Labels) }

// Samples returns the number of samples per epoch.
func Samples(tmin, tmax, sampleRate float64) int {
	return int(math.Round((tmax-tmin)*sampleRate)) + 1
}

// Segment cuts one epoch per event whose code is in cfg.Classes. The window
// includes both ends. Epochs that do not fit inside the recording or whose
// peak amplitude exceeds the limit for any channel role are dropped. Only
// signal channels are kept in the result.
func Segment(r *recording.Recording, cfg Config) (*EpochSet, error) {
	events, _ := EventsFromAnnotations(r)
	classes := ClassLabelMap(cfg.Classes, events)
	if len(classes) == 0 {
		return nil, ErrNoUsableEvents
	}

	label := make(map[string]int, len(classes))
	n := Samples(cfg.TMin, cfg.TMax, r.SampleRate)
	set := &EpochSet{SampleRate: r.SampleRate, Length: n}
	for i, c := range classes {
		label[c.Code] = i
		set.Classes = append(set.Classes, c.Name)
	}

	sig := r.SignalIndices()
	art := r.ArtifactIndices()
	for _, c := range sig {
		set.Channels = append(set.Channels, r.Names[c])
	}

	offset := int(math.Round(cfg.TMin * r.SampleRate))
	total := r.Samples()

	for _, e := range events {
		y, ok := label[e.Code]
		if !ok {
			continue
		}
		start := e.Sample + offset
		if start < 0 || start+n > total {
			set.Truncated++
			continue
		}
		if exceeds(r.Data, sig, start, n, cfg.SignalReject) || exceeds(r.Data, art, start, n, cfg.ArtifactReject) {
			set.Rejected++
			continue
		}

		epoch := make([][]float64, len(sig))
		for i, c := range sig {
			epoch[i] = append([]float64(nil), r.Data[c][start:start+n]...)
		}
		set.Data = append(set.Data, epoch)
		set.Labels = append(set.Labels, y)
	}
	return set, nil
}

func exceeds(data [][]float64, channels []int, start, n int, limit float64) bool {
	if limit <= 0 {
		return false
	}
	for _, c := range channels {
		w := data[c][start : start+n]
		if floats.Max(w) > limit || -floats.Min(w) > limit {
			return true
		}
	}
	return false
}

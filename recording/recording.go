package recording

import (
	"fmt"
	"slices"
)

// Role is the semantic role of a channel.
type Role int

const (
	// RoleUnassigned is the zero value before the channel classifier ran.
	RoleUnassigned Role = iota
	// RoleSignal marks channels that carry the brain signal (EEG).
	RoleSignal
	// RoleArtifact marks artifact-reference channels (EOG).
	RoleArtifact
)

func (r Role) String() string {
	switch r {
	case RoleSignal:
		return "signal"
	case RoleArtifact:
		return "artifact-reference"
	default:
		return "unassigned"
	}
}

// Annotation is an embedded time-stamped marker, as stored in EDF+ TALs.
// Onset and Duration are in seconds from the start of the recording.
type Annotation struct {
	Onset       float64
	Duration    float64
	Description string
}

// Position is a sensor location in head coordinates (meters).
type Position struct {
	X, Y, Z float64
}

// Projector is a deferred linear operation on the signal channels. Inactive
// projectors are recorded but the data has not been transformed yet.
type Projector struct {
	Name   string
	Active bool
}

// Recording holds a multi-channel time series.
//
// Data is laid out channels x samples. Amplitudes are in volts. Every
// transformation step returns a new Recording and leaves its input untouched.
type Recording struct {
	Subject     string
	SampleRate  float64 // Hz
	Names       []string
	Data        [][]float64
	Roles       []Role
	Positions   []*Position // nil entries mark channels without a layout position
	Annotations []Annotation
	Projectors  []Projector
}

// New validates the shape of data against names and returns a Recording
// without roles.
func New(subject string, sampleRate float64, names []string, data [][]float64, annotations []Annotation) (*Recording, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %v", sampleRate)
	}
	if len(names) != len(data) {
		return nil, fmt.Errorf("got %d channel names for %d channels", len(names), len(data))
	}
	for i := range data {
		if len(data[i]) != len(data[0]) {
			return nil, fmt.Errorf("channel %q has %d samples, expected %d", names[i], len(data[i]), len(data[0]))
		}
	}
	return &Recording{
		Subject:     subject,
		SampleRate:  sampleRate,
		Names:       names,
		Data:        data,
		Roles:       make([]Role, len(names)),
		Positions:   make([]*Position, len(names)),
		Annotations: annotations,
	}, nil
}

// Channels returns the number of channels.
func (r *Recording) Channels() int { return len(r.Data) }

// Samples returns the number of samples per channel.
func (r *Recording) Samples() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}

// Clone returns a deep copy.
func (r *Recording) Clone() *Recording {
	data := make([][]float64, len(r.Data))
	for i, ch := range r.Data {
		data[i] = slices.Clone(ch)
	}
	return r.WithData(data)
}

// WithData returns a copy of the recording metadata carrying data instead.
// data is not copied.
func (r *Recording) WithData(data [][]float64) *Recording {
	c := *r
	c.Names = slices.Clone(r.Names)
	c.Roles = slices.Clone(r.Roles)
	c.Annotations = slices.Clone(r.Annotations)
	c.Projectors = slices.Clone(r.Projectors)
	c.Positions = make([]*Position, len(r.Positions))
	for i, p := range r.Positions {
		if p != nil {
			pos := *p
			c.Positions[i] = &pos
		}
	}
	c.Data = data
	return &c
}

func (r *Recording) indices(role Role) []int {
	var idx []int
	for i, ro := range r.Roles {
		if ro == role {
			idx = append(idx, i)
		}
	}
	return idx
}

// SignalIndices returns the indices of signal-role channels in channel order.
func (r *Recording) SignalIndices() []int { return r.indices(RoleSignal) }

// ArtifactIndices returns the indices of artifact-reference channels.
func (r *Recording) ArtifactIndices() []int { return r.indices(RoleArtifact) }

// AverageReference is the name of the common-average reference projector.
const AverageReference = "Average EEG reference"

// AddAverageReference records a common-average reference over the signal
// channels without touching the data. It is a no-op if one is present.
func (r *Recording) AddAverageReference() *Recording {
	c := r.Clone()
	for _, p := range c.Projectors {
		if p.Name == AverageReference {
			return c
		}
	}
	c.Projectors = append(c.Projectors, Projector{Name: AverageReference})
	return c
}

// ApplyProjectors materializes every inactive projector and marks it active.
func (r *Recording) ApplyProjectors() *Recording {
	c := r.Clone()
	for i, p := range c.Projectors {
		if p.Active {
			continue
		}
		if p.Name == AverageReference {
			subtractMean(c.Data, c.SignalIndices())
		}
		c.Projectors[i].Active = true
	}
	return c
}

func subtractMean(data [][]float64, idx []int) {
	if len(idx) == 0 {
		return
	}
	n := len(data[idx[0]])
	inv := 1 / float64(len(idx))
	for t := 0; t < n; t++ {
		var sum float64
		for _, c := range idx {
			sum += data[c][t]
		}
		mean := sum * inv
		for _, c := range idx {
			data[c][t] -= mean
		}
	}
}

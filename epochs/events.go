// Package epochs cuts labeled, fixed-length segments out of a recording
// around its event annotations.
package epochs

import (
	"math"
	"sort"

	"github.com/Noofbiz/eegprep/recording"
)

// Event is one annotation anchored to a sample offset.
type Event struct {
	Sample int
	Code   string
	ID     int
}

// Class pairs a semantic class name with the raw event code that marks it.
type Class struct {
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

// MotorImagery is the fixed semantic order of the four motor-imagery cues.
var MotorImagery = []Class{
	{Name: "left_hand", Code: "769"},
	{Name: "right_hand", Code: "770"},
	{Name: "foot", Code: "771"},
	{Name: "tongue", Code: "772"},
}

// EventsFromAnnotations converts the annotations of r into events ordered by
// sample. IDs number the unique descriptions in sorted order starting at 1;
// the returned map goes from description to ID.
func EventsFromAnnotations(r *recording.Recording) ([]Event, map[string]int) {
	seen := make(map[string]bool)
	var codes []string
	for _, a := range r.Annotations {
		if !seen[a.Description] {
			seen[a.Description] = true
			codes = append(codes, a.Description)
		}
	}
	sort.Strings(codes)

	ids := make(map[string]int, len(codes))
	for i, c := range codes {
		ids[c] = i + 1
	}

	events := make([]Event, len(r.Annotations))
	for i, a := range r.Annotations {
		events[i] = Event{
			Sample: int(math.Round(a.Onset * r.SampleRate)),
			Code:   a.Description,
			ID:     ids[a.Description],
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Sample < events[j].Sample })
	return events, ids
}

// ClassLabelMap keeps the classes whose code occurs in events, in the order
// of classes.
func ClassLabelMap(classes []Class, events []Event) []Class {
	present := make(map[string]bool)
	for _, e := range events {
		present[e.Code] = true
	}
	var out []Class
	for _, c := range classes {
		if present[c.Code] {
			out = append(out, c)
		}
	}
	return out
}

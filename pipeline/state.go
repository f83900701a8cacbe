// Package pipeline drives subjects through loading, channel roles, spatial
// normalization, filtering, artifact removal, segmentation, balancing and
// saving.
package pipeline

import (
	"errors"
	"time"

	"github.com/Noofbiz/eegprep/epochs"
	"github.com/Noofbiz/eegprep/store"
)

// State is a step of the per-subject state machine.
type State int

const (
	NotStarted State = iota
	Loaded
	RoleAssigned
	Normalized
	Filtered
	Denoised
	Segmented
	Balanced
	Saved
	Skipped
	Failed
)

var stateNames = [...]string{
	NotStarted:   "NotStarted",
	Loaded:       "Loaded",
	RoleAssigned: "RoleAssigned",
	Normalized:   "Normalized",
	Filtered:     "Filtered",
	Denoised:     "Denoised",
	Segmented:    "Segmented",
	Balanced:     "Balanced",
	Saved:        "Saved",
	Skipped:      "Skipped",
	Failed:       "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Saved || s == Skipped || s == Failed
}

// ErrMissingInput marks a subject whose raw file does not exist.
var ErrMissingInput = errors.New("missing input")

// Outcome is the terminal result of one subject.
type Outcome struct {
	Subject string
	State   State // Saved, Skipped or Failed
	// At is the step that was being attempted when the subject was skipped
	// or failed, and Saved otherwise.
	At        State
	Err       error
	Epochs    int   // balanced epochs written
	Rejected  int   // epochs dropped for amplitude
	Excluded  []int // artifact components removed
	Artifacts store.Artifacts
	Elapsed   time.Duration
}

// Reason returns the error text of a skipped or failed outcome.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// classify maps a stage error to the terminal state it leads to.
func classify(err error) State {
	if errors.Is(err, ErrMissingInput) || errors.Is(err, epochs.ErrNoUsableEvents) {
		return Skipped
	}
	return Failed
}

package montage

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Noofbiz/eegprep/recording"
)

// OnMissing selects how SetLayout treats signal channels absent from the layout.
type OnMissing int

const (
	// Raise fails with a *MismatchError.
	Raise OnMissing = iota
	// Ignore leaves unmapped channels without a position.
	Ignore
)

// MismatchError lists signal channels that have no position in a layout.
type MismatchError struct {
	Layout  string
	Missing []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%d channel position(s) not present in layout %s: %s",
		len(e.Missing), e.Layout, strings.Join(e.Missing, ", "))
}

// SetLayout assigns layout positions to the signal channels. Artifact
// reference channels are never looked up.
func SetLayout(r *recording.Recording, layout *Layout, onMissing OnMissing) (*recording.Recording, error) {
	c := r.Clone()
	var missing []string
	for _, i := range c.SignalIndices() {
		p, ok := layout.Lookup(c.Names[i])
		if !ok {
			missing = append(missing, c.Names[i])
			c.Positions[i] = nil
			continue
		}
		c.Positions[i] = &p
	}
	if len(missing) > 0 && onMissing == Raise {
		return nil, &MismatchError{Layout: layout.Name, Missing: missing}
	}
	return c, nil
}

// Normalize applies the layout and a projected common-average reference.
// A layout mismatch falls back to ignoring the unmapped channels and is
// never returned to the caller.
func Normalize(r *recording.Recording, layout *Layout) (*recording.Recording, error) {
	out, err := SetLayout(r, layout, Raise)
	var mismatch *MismatchError
	if errors.As(err, &mismatch) {
		slog.Warn("montage mismatch, ignoring unmapped channels",
			"subject", r.Subject, "layout", layout.Name, "missing", len(mismatch.Missing))
		out, err = SetLayout(r, layout, Ignore)
	}
	if err != nil {
		return nil, err
	}
	return out.AddAverageReference(), nil
}

package montage

import (
	"math"
	"strconv"
	"strings"

	"github.com/Noofbiz/eegprep/recording"
	"golang.org/x/text/cases"
)

// headRadius is the sphere radius used for template positions, in meters.
const headRadius = 0.095

// Layout is a named standard sensor layout.
type Layout struct {
	Name      string
	positions map[string]recording.Position
	folded    map[string]string // case-folded name -> canonical name
}

// NewLayout builds a layout from canonical names and their positions.
func NewLayout(name string, positions map[string]recording.Position) *Layout {
	l := &Layout{
		Name:      name,
		positions: positions,
		folded:    make(map[string]string, len(positions)),
	}
	for n := range positions {
		l.folded[foldName(n)] = n
	}
	return l
}

// Len returns the number of sensors in the layout.
func (l *Layout) Len() int { return len(l.positions) }

// Lookup returns the position of a channel name, ignoring case.
func (l *Layout) Lookup(name string) (recording.Position, bool) {
	if p, ok := l.positions[name]; ok {
		return p, true
	}
	canonical, ok := l.folded[foldName(name)]
	if !ok {
		return recording.Position{}, false
	}
	return l.positions[canonical], true
}

// foldName case-folds a channel name. Casers are stateful, so one is made
// per call to keep Lookup safe for concurrent use.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// rows of the 10-10 system with their sagittal angle from the vertex
// (positive towards the nasion) in degrees.
var rows = []struct {
	prefix string
	angle  float64
}{
	{"Fp", 72}, {"AF", 54}, {"F", 36}, {"FT", 18}, {"FC", 18},
	{"T", 0}, {"C", 0}, {"TP", -18}, {"CP", -18},
	{"P", -36}, {"PO", -54}, {"O", -72}, {"I", -90},
}

var standard1020Names = []string{
	"Fp1", "Fpz", "Fp2",
	"AF9", "AF7", "AF5", "AF3", "AF1", "AFz", "AF2", "AF4", "AF6", "AF8", "AF10",
	"F9", "F7", "F5", "F3", "F1", "Fz", "F2", "F4", "F6", "F8", "F10",
	"FT9", "FT7", "FC5", "FC3", "FC1", "FCz", "FC2", "FC4", "FC6", "FT8", "FT10",
	"T9", "T7", "C5", "C3", "C1", "Cz", "C2", "C4", "C6", "T8", "T10",
	"TP9", "TP7", "CP5", "CP3", "CP1", "CPz", "CP2", "CP4", "CP6", "TP8", "TP10",
	"P9", "P7", "P5", "P3", "P1", "Pz", "P2", "P4", "P6", "P8", "P10",
	"PO9", "PO7", "PO5", "PO3", "PO1", "POz", "PO2", "PO4", "PO6", "PO8", "PO10",
	"O1", "Oz", "O2", "O9", "Iz", "O10",
}

// legacy 10-20 names that alias 10-10 positions.
var aliases = map[string]string{
	"T3": "T7", "T4": "T8", "T5": "P7", "T6": "P8",
}

// Standard1020 returns the standard 10-20 layout (with its 10-10
// extensions) on a spherical head model.
func Standard1020() *Layout {
	positions := make(map[string]recording.Position, len(standard1020Names)+len(aliases)+1)
	for _, name := range standard1020Names {
		if p, ok := gridPosition(name); ok {
			positions[name] = p
		}
	}
	for alias, target := range aliases {
		positions[alias] = positions[target]
	}
	positions["Nz"] = spherical(90, 0)
	return NewLayout("standard_1020", positions)
}

// gridPosition places a 10-10 name by its row prefix and column suffix.
// Column n sits 9*(n+1) degrees left of the midline for odd n and 9*n
// degrees right for even n; "z" is the midline.
func gridPosition(name string) (recording.Position, bool) {
	for _, row := range rows {
		if !strings.HasPrefix(name, row.prefix) {
			continue
		}
		suffix := name[len(row.prefix):]
		if suffix == "z" {
			return spherical(row.angle, 0), true
		}
		n, err := strconv.Atoi(suffix)
		if err != nil || n <= 0 {
			continue
		}
		lateral := 9 * float64(n)
		if n%2 == 1 {
			lateral = -9 * float64(n+1)
		}
		return spherical(row.angle, lateral), true
	}
	return recording.Position{}, false
}

// spherical converts azimuthal-equidistant angles (degrees from the vertex
// along the sagittal and coronal arcs) to Cartesian head coordinates with
// +x right, +y anterior, +z up.
func spherical(sagittal, lateral float64) recording.Position {
	rho := math.Hypot(sagittal, lateral) * math.Pi / 180
	phi := math.Atan2(sagittal, lateral)
	return recording.Position{
		X: headRadius * math.Sin(rho) * math.Cos(phi),
		Y: headRadius * math.Sin(rho) * math.Sin(phi),
		Z: headRadius * math.Cos(rho),
	}
}

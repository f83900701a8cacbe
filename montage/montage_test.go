package montage_test

import (
	"math"
	"testing"

	"github.com/Noofbiz/eegprep/montage"
	"github.com/Noofbiz/eegprep/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(t *testing.T, names []string, signal int) *recording.Recording {
	t.Helper()
	data := make([][]float64, len(names))
	for i := range data {
		data[i] = []float64{float64(i), 0}
	}
	r, err := recording.New("S1", 250, names, data, nil)
	require.NoError(t, err)
	return recording.AssignRoles(r, signal)
}

func TestStandard1020Geometry(t *testing.T) {
	layout := montage.Standard1020()
	assert.Equal(t, "standard_1020", layout.Name)

	cz, ok := layout.Lookup("Cz")
	require.True(t, ok)
	assert.InDelta(t, 0.095, cz.Z, 1e-9)

	c3, ok := layout.Lookup("C3")
	require.True(t, ok)
	c4, ok := layout.Lookup("C4")
	require.True(t, ok)
	assert.Less(t, c3.X, 0.0)
	assert.InDelta(t, -c3.X, c4.X, 1e-12)

	fpz, _ := layout.Lookup("Fpz")
	oz, _ := layout.Lookup("Oz")
	assert.Greater(t, fpz.Y, 0.0)
	assert.Less(t, oz.Y, 0.0)

	for _, name := range []string{"FT7", "TP8", "PO3", "AF4", "T3", "Iz", "Nz"} {
		p, ok := layout.Lookup(name)
		require.True(t, ok, name)
		assert.InDelta(t, 0.095, math.Sqrt(p.X*p.X+p.Y*p.Y+p.Z*p.Z), 1e-9, name)
	}

	t7, _ := layout.Lookup("T7")
	t3, _ := layout.Lookup("T3")
	assert.Equal(t, t7, t3)
}

func TestLookupIgnoresCase(t *testing.T) {
	layout := montage.Standard1020()
	fp1, ok := layout.Lookup("FP1")
	require.True(t, ok)
	want, _ := layout.Lookup("Fp1")
	assert.Equal(t, want, fp1)

	_, ok = layout.Lookup("EEG-0")
	assert.False(t, ok)
}

func TestSetLayoutStrictReportsMissing(t *testing.T) {
	r := rec(t, []string{"Fz", "EEG-0", "C3", "EOG-left"}, 3)
	_, err := montage.SetLayout(r, montage.Standard1020(), montage.Raise)

	var mismatch *montage.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"EEG-0"}, mismatch.Missing)
}

func TestNormalizeFallsBackOnMismatch(t *testing.T) {
	r := rec(t, []string{"Fz", "EEG-0", "C3", "EOG-left"}, 3)
	out, err := montage.Normalize(r, montage.Standard1020())
	require.NoError(t, err)

	assert.NotNil(t, out.Positions[0])
	assert.Nil(t, out.Positions[1])
	assert.NotNil(t, out.Positions[2])
	// artifact channels are not part of the layout
	assert.Nil(t, out.Positions[3])

	require.Len(t, out.Projectors, 1)
	assert.Equal(t, recording.AverageReference, out.Projectors[0].Name)
	assert.False(t, out.Projectors[0].Active)
	assert.Equal(t, r.Data, out.Data)
}

package recording_test

import (
	"testing"

	"github.com/Noofbiz/eegprep/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRec(t *testing.T, channels int) *recording.Recording {
	t.Helper()
	names := make([]string, channels)
	data := make([][]float64, channels)
	for i := range names {
		names[i] = string(rune('A' + i))
		data[i] = []float64{float64(i), float64(i + 1), float64(i + 2)}
	}
	rec, err := recording.New("S1", 250, names, data, nil)
	require.NoError(t, err)
	return rec
}

func TestNewRejectsRaggedData(t *testing.T) {
	_, err := recording.New("S1", 250, []string{"a", "b"}, [][]float64{{1, 2}, {1}}, nil)
	assert.Error(t, err)

	_, err = recording.New("S1", 0, []string{"a"}, [][]float64{{1}}, nil)
	assert.Error(t, err)
}

func TestAssignRolesIsPositional(t *testing.T) {
	rec := newRec(t, 5)
	out := recording.AssignRoles(rec, 3)

	assert.Equal(t, []int{0, 1, 2}, out.SignalIndices())
	assert.Equal(t, []int{3, 4}, out.ArtifactIndices())
	assert.Equal(t, recording.RoleArtifact, out.RoleMap()["E"])

	// input untouched
	assert.Empty(t, rec.SignalIndices())
}

func TestAverageReferenceIsDeferred(t *testing.T) {
	rec := recording.AssignRoles(newRec(t, 4), 3)
	ref := rec.AddAverageReference()

	require.Len(t, ref.Projectors, 1)
	assert.False(t, ref.Projectors[0].Active)
	assert.Equal(t, rec.Data, ref.Data)

	applied := ref.ApplyProjectors()
	assert.True(t, applied.Projectors[0].Active)
	// signal channels 0..2 hold i, i+1, i+2 -> mean over channels is 1, 2, 3
	assert.Equal(t, []float64{-1, -1, -1}, applied.Data[0])
	assert.Equal(t, []float64{1, 1, 1}, applied.Data[2])
	// artifact channel is not referenced
	assert.Equal(t, []float64{3, 4, 5}, applied.Data[3])

	// applying twice is a no-op
	assert.Equal(t, applied.Data, applied.ApplyProjectors().Data)
	assert.Len(t, ref.AddAverageReference().Projectors, 1)
}

func TestWithDataSharesOnlyTheData(t *testing.T) {
	rec := recording.AssignRoles(newRec(t, 3), 2)
	data := [][]float64{{7, 7, 7}, {8, 8, 8}, {9, 9, 9}}

	c := rec.WithData(data)

	assert.Equal(t, rec.Names, c.Names)
	assert.Equal(t, rec.Roles, c.Roles)
	data[0][0] = 1
	assert.Equal(t, 1.0, c.Data[0][0])

	c.Names[0] = "renamed"
	c.Roles[0] = recording.RoleArtifact
	assert.NotEqual(t, "renamed", rec.Names[0])
	assert.Equal(t, recording.RoleSignal, rec.Roles[0])
}

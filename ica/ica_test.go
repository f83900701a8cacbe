package ica_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Noofbiz/eegprep/ica"
	"github.com/Noofbiz/eegprep/internal/testutil"
	"github.com/Noofbiz/eegprep/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// mixedSources returns three non-Gaussian sources and a 3x3 mixture of them.
func mixedSources(n int) (sources, mixed [][]float64) {
	rng := rand.New(rand.NewSource(7))
	sources = make([][]float64, 3)
	for j := range sources {
		sources[j] = make([]float64, n)
	}
	for t := 0; t < n; t++ {
		sources[0][t] = math.Sin(2 * math.Pi * 7 * float64(t) / 250)
		sources[1][t] = rng.Float64()*2 - 1
		sources[2][t] = math.Mod(float64(t)/25, 2) - 1 // sawtooth
	}
	a := [][]float64{{1, 0.5, 0.2}, {0.3, 1, 0.6}, {0.4, 0.2, 1}}
	mixed = make([][]float64, 3)
	for c := range mixed {
		mixed[c] = make([]float64, n)
		for j := range sources {
			for t := range mixed[c] {
				mixed[c][t] += a[c][j] * sources[j][t]
			}
		}
	}
	return sources, mixed
}

func TestFitRecoversSources(t *testing.T) {
	sources, mixed := mixedSources(5000)

	m, err := ica.Fit(mixed, ica.Config{Components: 3, Seed: 97, MaxIter: 1000, Tolerance: 1e-6})
	require.NoError(t, err)
	assert.Greater(t, m.Iterations, 0)

	s := m.Sources(mixed)
	for j, src := range sources {
		best := 0.0
		for c := 0; c < 3; c++ {
			best = math.Max(best, math.Abs(stat.Correlation(src, s.RawRowView(c), nil)))
		}
		assert.Greater(t, best, 0.99, "source %d", j)
	}
}

func TestFitIsDeterministic(t *testing.T) {
	_, mixed := mixedSources(2000)
	cfg := ica.Config{Components: 3, Seed: 97, MaxIter: 1000, Tolerance: 1e-6}

	a, err := ica.Fit(mixed, cfg)
	require.NoError(t, err)
	b, err := ica.Fit(mixed, cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Unmixing.RawMatrix().Data, b.Unmixing.RawMatrix().Data)
}

func TestFitReportsNonConvergence(t *testing.T) {
	_, mixed := mixedSources(2000)
	_, err := ica.Fit(mixed, ica.Config{Components: 3, Seed: 97, MaxIter: 1, Tolerance: 1e-300})
	assert.ErrorIs(t, err, ica.ErrNotConverged)
}

func TestFitRejectsTooManyComponents(t *testing.T) {
	_, mixed := mixedSources(100)
	_, err := ica.Fit(mixed, ica.Config{Components: 4, MaxIter: 10, Tolerance: 1e-4})
	assert.Error(t, err)
}

func TestApplyWithoutExclusionIsIdentity(t *testing.T) {
	_, mixed := mixedSources(2000)
	m, err := ica.Fit(mixed, ica.Config{Components: 3, Seed: 97, MaxIter: 1000, Tolerance: 1e-6})
	require.NoError(t, err)

	assert.Equal(t, mixed, m.Apply(mixed, nil))
}

func TestApplyExcludingEverythingLeavesTheMean(t *testing.T) {
	_, mixed := mixedSources(2000)
	m, err := ica.Fit(mixed, ica.Config{Components: 3, Seed: 97, MaxIter: 1000, Tolerance: 1e-6})
	require.NoError(t, err)

	out := m.Apply(mixed, []int{0, 1, 2})
	for c := range out {
		for i := 0; i < len(out[c]); i += 97 {
			require.InDelta(t, m.Mean[c], out[c][i], 1e-9, "channel %d sample %d", c, i)
		}
	}
}

func TestFindArtifactComponents(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 5000
	ocular := make([]float64, n)
	for i := range ocular {
		ocular[i] = math.Sin(2 * math.Pi * 3 * float64(i) / 250)
	}

	data := make([]float64, 0, 20*n)
	data = append(data, ocular...)
	for c := 1; c < 20; c++ {
		for i := 0; i < n; i++ {
			data = append(data, rng.NormFloat64())
		}
	}
	sources := mat.NewDense(20, n, data)

	excluded, scores, err := ica.FindArtifactComponents(sources, [][]float64{ocular}, 250, 3)
	require.NoError(t, err)
	assert.Contains(t, excluded, 0)
	require.Len(t, scores, 1)
	assert.InDelta(t, 1.0, scores[0][0], 1e-6)

	none, _, err := ica.FindArtifactComponents(sources, nil, 250, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRemoverSuppressesOcularSource(t *testing.T) {
	rec := recording.AssignRoles(testutil.MotorImagery(testutil.Options{Seconds: 20}), recording.DefaultSignalChannelCount)
	rec = rec.AddAverageReference()

	out, report, err := ica.NewRemover(ica.DefaultConfig()).Remove(rec)
	require.NoError(t, err)

	assert.Contains(t, report.Excluded, ocularComponent(t, report))
	assert.Equal(t, testutil.ArtifactNames, report.References)
	assert.Equal(t, rec.Channels(), out.Channels())
	assert.Equal(t, rec.Samples(), out.Samples())
	assert.True(t, out.Projectors[0].Active)

	// the EOG reference is left untouched
	eog := rec.ArtifactIndices()[0]
	assert.Equal(t, rec.Data[eog], out.Data[eog])

	// the ocular source no longer correlates with the signal channels
	for _, c := range out.SignalIndices() {
		r := stat.Correlation(out.Data[c], rec.Data[eog], nil)
		require.Less(t, math.Abs(r), 0.1, out.Names[c])
	}
}

// ocularComponent returns the component most correlated with the first EOG channel.
func ocularComponent(t *testing.T, report ica.Report) int {
	t.Helper()
	require.NotEmpty(t, report.Scores)
	best, idx := 0.0, -1
	for c, s := range report.Scores[0] {
		if math.Abs(s) > best {
			best, idx = math.Abs(s), c
		}
	}
	return idx
}

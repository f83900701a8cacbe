package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Noofbiz/eegprep/epochs"
	"github.com/Noofbiz/eegprep/ica"
	"github.com/Noofbiz/eegprep/internal/testutil"
	"github.com/Noofbiz/eegprep/ledger"
	"github.com/Noofbiz/eegprep/loader"
	"github.com/Noofbiz/eegprep/pipeline"
	"github.com/Noofbiz/eegprep/recording"
	"github.com/Noofbiz/eegprep/store"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workspace struct {
	raw   string
	store *store.FileStore
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	fs, err := store.NewFileStore(filepath.Join(dir, "processed"), filepath.Join(dir, "features"))
	require.NoError(t, err)
	raw := filepath.Join(dir, "raw")
	require.NoError(t, os.MkdirAll(raw, 0o755))
	return &workspace{raw: raw, store: fs}
}

// addSubject writes a 25 s recording with one cue per class, 5 s apart.
func (w *workspace) addSubject(t *testing.T, subject string, edit func(*recording.Recording)) {
	t.Helper()
	rec := testutil.MotorImagery(testutil.Options{
		Subject: subject,
		Seconds: 25,
		Events:  testutil.Cues(1, 6, 11, 16),
	})
	if edit != nil {
		edit(rec)
	}
	f, err := os.Create(filepath.Join(w.raw, subject+".edf"))
	require.NoError(t, err)
	require.NoError(t, store.EncodeEDF(f, rec))
	require.NoError(t, f.Close())
}

func (w *workspace) driver() *pipeline.Driver {
	return pipeline.NewDriver(loader.New(w.raw), w.store)
}

func TestRunEndToEnd(t *testing.T) {
	w := newWorkspace(t)
	w.addSubject(t, "A01T", nil)

	var mu sync.Mutex
	var states []pipeline.State
	d := w.driver()
	d.PlotDir = filepath.Join(w.store.ProcessedDir, "plots")
	d.OnTransition = func(_ string, s pipeline.State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	}

	out := d.Run(context.Background(), "A01T")
	require.NoError(t, out.Err)

	assert.Equal(t, pipeline.Saved, out.State)
	assert.Equal(t, 4, out.Epochs)
	assert.Zero(t, out.Rejected)
	assert.Equal(t, []pipeline.State{
		pipeline.NotStarted, pipeline.Loaded, pipeline.RoleAssigned, pipeline.Normalized,
		pipeline.Filtered, pipeline.Denoised, pipeline.Segmented, pipeline.Balanced, pipeline.Saved,
	}, states)

	x, y, err := w.store.LoadTensors("A01T")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 22, 1001}, x.Shape().Dimensions)
	assert.Equal(t, []int32{0, 1, 2, 3}, tensors.CopyFlatData[int32](y))

	assert.FileExists(t, out.Artifacts.Clean)
	assert.FileExists(t, filepath.Join(d.PlotDir, "A01T_classes.png"))

	clean, found, err := loader.New(w.store.ProcessedDir).Load(context.Background(), "A01T_clean")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 25, clean.Channels())
	assert.Len(t, clean.Annotations, 4)
}

func TestRunIsDeterministic(t *testing.T) {
	var results [][]float32
	for i := 0; i < 2; i++ {
		w := newWorkspace(t)
		w.addSubject(t, "A02T", nil)

		out := w.driver().Run(context.Background(), "A02T")
		require.Equal(t, pipeline.Saved, out.State, out.Reason())

		x, _, err := w.store.LoadTensors("A02T")
		require.NoError(t, err)
		results = append(results, tensors.CopyFlatData[float32](x))
	}
	assert.Equal(t, results[0], results[1])
}

func TestRunSkipsMissingInput(t *testing.T) {
	w := newWorkspace(t)

	out := w.driver().Run(context.Background(), "A99T")

	assert.Equal(t, pipeline.Skipped, out.State)
	assert.Equal(t, pipeline.Loaded, out.At)
	assert.ErrorIs(t, out.Err, pipeline.ErrMissingInput)
}

func TestRunSkipsWithoutUsableEvents(t *testing.T) {
	w := newWorkspace(t)
	w.addSubject(t, "A03T", func(r *recording.Recording) {
		for i := range r.Annotations {
			r.Annotations[i].Description = "1023"
		}
	})

	out := w.driver().Run(context.Background(), "A03T")

	assert.Equal(t, pipeline.Skipped, out.State)
	assert.Equal(t, pipeline.Segmented, out.At)
	assert.NoFileExists(t, w.store.CleanPath("A03T"))
	assert.NoFileExists(t, w.store.FeaturesPath("A03T"))
}

func TestRunToleratesLayoutMismatch(t *testing.T) {
	w := newWorkspace(t)
	w.addSubject(t, "A04T", func(r *recording.Recording) {
		r.Names[3] = "EEG-16"
	})

	out := w.driver().Run(context.Background(), "A04T")

	assert.Equal(t, pipeline.Saved, out.State, out.Reason())
	assert.Equal(t, 4, out.Epochs)
}

func TestRunFailsOnDecompositionFailure(t *testing.T) {
	w := newWorkspace(t)
	w.addSubject(t, "A05T", nil)

	d := w.driver()
	d.Remover = ica.NewRemover(ica.Config{Components: 20, Seed: 97, MaxIter: 1, Tolerance: 1e-300})
	out := d.Run(context.Background(), "A05T")

	assert.Equal(t, pipeline.Failed, out.State)
	assert.Equal(t, pipeline.Denoised, out.At)
	assert.ErrorIs(t, out.Err, ica.ErrNotConverged)
	assert.NoFileExists(t, w.store.CleanPath("A05T"))
}

func TestBatchContinuesPastSkippedSubjects(t *testing.T) {
	w := newWorkspace(t)
	w.addSubject(t, "A01T", nil)
	w.addSubject(t, "A02T", nil)

	lg := ledger.NewMemoryStore()
	require.NoError(t, lg.Init(context.Background()))

	var order []string
	b := &pipeline.Batch{
		Driver:    w.driver(),
		Workers:   3,
		Ledger:    lg,
		OnOutcome: func(o pipeline.Outcome) { order = append(order, o.Subject) },
	}
	res, err := b.Run(context.Background(), []string{"A99T", "A01T", "A02T"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A99T", "A01T", "A02T"}, order)
	assert.Equal(t, pipeline.Skipped, res.Outcomes[0].State)
	assert.Equal(t, pipeline.Saved, res.Outcomes[1].State)
	assert.Equal(t, pipeline.Saved, res.Outcomes[2].State)
	assert.Equal(t, 1, res.Count(pipeline.Skipped))
	assert.False(t, res.Complete())

	records, ok, err := lg.Outcomes(context.Background(), res.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, records, 3)
	assert.Equal(t, "Skipped", records[0].State)
	assert.Contains(t, records[0].Reason, "missing input")
	assert.Equal(t, 4, records[1].Epochs)
}

func TestBatchIsolatesCorruptRecording(t *testing.T) {
	w := newWorkspace(t)
	w.addSubject(t, "A07T", nil)
	w.addSubject(t, "A08T", nil)
	require.NoError(t, testutil.SetSamplesPerRecord(filepath.Join(w.raw, "A07T.edf"), 1, -5))

	res, err := (&pipeline.Batch{Driver: w.driver(), Workers: 2}).Run(context.Background(), []string{"A07T", "A08T"})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, pipeline.Failed, res.Outcomes[0].State)
	assert.Equal(t, pipeline.Loaded, res.Outcomes[0].At)
	assert.ErrorContains(t, res.Outcomes[0].Err, "samples per record")
	assert.Equal(t, pipeline.Saved, res.Outcomes[1].State)
	assert.NoFileExists(t, w.store.CleanPath("A07T"))
	assert.FileExists(t, w.store.CleanPath("A08T"))
}

// panickingSink fails every save with a runtime panic.
type panickingSink struct{}

func (panickingSink) Save(string, *recording.Recording, *epochs.EpochSet) (store.Artifacts, error) {
	var set *epochs.EpochSet
	return store.Artifacts{}, fmt.Errorf("%d epochs", set.Len())
}

func TestRunRecoversFromPanic(t *testing.T) {
	w := newWorkspace(t)
	w.addSubject(t, "A01T", nil)
	w.addSubject(t, "A02T", nil)

	d := pipeline.NewDriver(loader.New(w.raw), panickingSink{})
	res, err := (&pipeline.Batch{Driver: d, Workers: 2}).Run(context.Background(), []string{"A01T", "A02T"})
	require.NoError(t, err)

	for _, out := range res.Outcomes {
		assert.Equal(t, pipeline.Failed, out.State, out.Subject)
		assert.Equal(t, pipeline.Saved, out.At, out.Subject)
		assert.ErrorContains(t, out.Err, "panic:", out.Subject)
	}
}

func TestBatchWithoutSubjects(t *testing.T) {
	w := newWorkspace(t)
	res, err := (&pipeline.Batch{Driver: w.driver()}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.Complete())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Denoised", pipeline.Denoised.String())
	assert.Equal(t, "Unknown", pipeline.State(42).String())
	assert.True(t, pipeline.Skipped.Terminal())
	assert.False(t, pipeline.Balanced.Terminal())
}

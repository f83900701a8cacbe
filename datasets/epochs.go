package datasets

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// EpochDataset provides a gomlx train.Dataset over the balanced epoch
// tensors of every subject in a features directory.
type EpochDataset struct {
	// Dir holding <subject>_X.tensor / <subject>_y.tensor pairs
	Dir string

	// BatchSize for yielding batches
	BatchSize int

	pairs  []tensorPair
	labels [][]int32 // per subject

	// Cumulative counts for fast index mapping
	cumCounts []int

	channels, samples int

	// Yield order and position within it
	order []int
	pos   int

	// Most recently loaded feature tensor
	mu        sync.Mutex
	cached    int
	cachedX   []float32
	hasCached bool
}

// NewEpochDataset indexes the tensor files in dir. Only label tensors and
// the first feature tensor are read.
func NewEpochDataset(dir string) (*EpochDataset, error) {
	pairs, err := findTensorPairs(dir)
	if err != nil {
		return nil, err
	}

	ds := &EpochDataset{
		Dir:       dir,
		BatchSize: 32,
		pairs:     pairs,
		cumCounts: make([]int, len(pairs)+1),
	}
	for i, p := range pairs {
		y, err := tensors.Load(p.Labels)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", p.Labels, err)
		}
		ds.labels = append(ds.labels, tensors.CopyFlatData[int32](y))
		ds.cumCounts[i+1] = ds.cumCounts[i] + len(ds.labels[i])
	}

	x, err := tensors.Load(pairs[0].Features)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", pairs[0].Features, err)
	}
	dims := x.Shape().Dimensions
	if len(dims) != 3 {
		return nil, fmt.Errorf("%s: expected rank 3 tensor, got shape %v", pairs[0].Features, dims)
	}
	ds.channels, ds.samples = dims[1], dims[2]

	ds.order = make([]int, ds.Len())
	for i := range ds.order {
		ds.order[i] = i
	}
	return ds, nil
}

// Len returns the number of epochs across all subjects.
func (d *EpochDataset) Len() int { return d.cumCounts[len(d.cumCounts)-1] }

// Subjects returns the indexed subjects in order.
func (d *EpochDataset) Subjects() []string {
	out := make([]string, len(d.pairs))
	for i, p := range d.pairs {
		out[i] = p.Subject
	}
	return out
}

// SubjectSizes returns the number of epochs of each subject.
func (d *EpochDataset) SubjectSizes() []int {
	out := make([]int, len(d.pairs))
	for i := range out {
		out[i] = d.cumCounts[i+1] - d.cumCounts[i]
	}
	return out
}

// Labels returns the labels of all examples in index order.
func (d *EpochDataset) Labels() []int32 {
	out := make([]int32, 0, d.Len())
	for _, l := range d.labels {
		out = append(out, l...)
	}
	return out
}

// Shape returns the channel and sample count of every example.
func (d *EpochDataset) Shape() (channels, samples int) { return d.channels, d.samples }

// locate maps a global example index to a subject and a local index.
func (d *EpochDataset) locate(i int) (subject, local int, err error) {
	if i < 0 || i >= d.Len() {
		return 0, 0, fmt.Errorf("index %d out of range [0, %d)", i, d.Len())
	}
	subject = sort.SearchInts(d.cumCounts, i+1) - 1
	return subject, i - d.cumCounts[subject], nil
}

// features returns the flat epoch data of subject s, loading it if needed.
func (d *EpochDataset) features(s int) ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hasCached && d.cached == s {
		return d.cachedX, nil
	}
	x, err := tensors.Load(d.pairs[s].Features)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", d.pairs[s].Features, err)
	}
	dims := x.Shape().Dimensions
	if len(dims) != 3 || dims[0] != len(d.labels[s]) || dims[1] != d.channels || dims[2] != d.samples {
		return nil, fmt.Errorf("%s: shape %v does not match (%d, %d, %d)",
			d.pairs[s].Features, dims, len(d.labels[s]), d.channels, d.samples)
	}
	d.cached, d.cachedX, d.hasCached = s, tensors.CopyFlatData[float32](x), true
	return d.cachedX, nil
}

// Example returns the flattened epoch and the label of example i.
func (d *EpochDataset) Example(i int) ([]float32, int32, error) {
	s, local, err := d.locate(i)
	if err != nil {
		return nil, 0, err
	}
	flat, err := d.features(s)
	if err != nil {
		return nil, 0, err
	}
	size := d.channels * d.samples
	inputs := make([]float32, size)
	copy(inputs, flat[local*size:(local+1)*size])
	return inputs, d.labels[s][local], nil
}

// Batch returns the examples at indices.
func (d *EpochDataset) Batch(indices []int) ([][]float32, []int32, error) {
	inputs := make([][]float32, len(indices))
	labels := make([]int32, len(indices))
	for b, i := range indices {
		in, y, err := d.Example(i)
		if err != nil {
			return nil, nil, err
		}
		inputs[b], labels[b] = in, y
	}
	return inputs, labels, nil
}

// Shuffle permutes the yield order deterministically and restarts.
func (d *EpochDataset) Shuffle(seed int64) {
	d.order = rand.New(rand.NewSource(seed)).Perm(d.Len())
	d.pos = 0
}

// Tensors reads a batch of examples and returns them as gomlx tensors of
// shape (batch, channels, samples) and (batch).
func (d *EpochDataset) Tensors(indices []int) (inputs *tensors.Tensor, labels *tensors.Tensor, err error) {
	in, la, err := d.Batch(indices)
	if err != nil {
		return nil, nil, err
	}
	flat := make([]float32, 0, len(in)*d.channels*d.samples)
	for _, x := range in {
		flat = append(flat, x...)
	}
	return tensors.FromFlatDataAndDimensions(flat, len(in), d.channels, d.samples),
		tensors.FromFlatDataAndDimensions(la, len(la)), nil
}

// Name returns the name of the dataset
func (d *EpochDataset) Name() string {
	return "EpochDataset"
}

// Yield returns the next batch in the current order. The last batch may be
// short; io.EOF marks the end of an epoch.
func (d *EpochDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.pos >= len(d.order) {
		return nil, nil, nil, io.EOF
	}
	end := min(d.pos+d.BatchSize, len(d.order))
	in, la, err := d.Tensors(d.order[d.pos:end])
	if err != nil {
		return nil, nil, nil, err
	}
	d.pos = end
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}

// Restart starts a new pass over the current order.
func (d *EpochDataset) Restart() error {
	d.pos = 0
	return nil
}

var _ Dataset = (*EpochDataset)(nil)

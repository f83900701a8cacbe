package datasets

import "github.com/gomlx/gomlx/pkg/core/tensors"

// This package presents the balanced epochs written by the pipeline as
// training examples for gomlx.
//
// EpochDataset
//   - Pairs <subject>_X.tensor and <subject>_y.tensor files in a directory
//   - Reads the small label tensors up front to index examples
//   - Loads a subject's epoch tensor only when one of its examples is needed
//   - Inputs per example: channels x samples (float32, flattened row-major)
//   - Label per example: dense class index (int32)
//
// The datasets implement this interface in order to interact with GoMLX
// training loops and batching utilities.
type Dataset interface {
	Len() int
	Example(i int) (inputs []float32, label int32, err error)
	Batch(indices []int) (inputs [][]float32, labels []int32, err error)
	Shuffle(seed int64)

	// To implement gomlx's train.Dataset interface
	Name() string
	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
	Restart() error
}

// Package balance subsamples an epoch set so every class is equally
// represented.
package balance

import (
	"math/rand"

	"github.com/Noofbiz/eegprep/epochs"
)

// DefaultSeed seeds the per-subject sampler.
const DefaultSeed = 42

// Balance draws min_count epochs without replacement from every class of
// set, where min_count is the size of the smallest class. The result is
// ordered by class, then by draw. A class with no epochs makes the result
// empty. set is not modified; epoch slices are shared with it.
//
// One generator seeded with seed is used per call and consumed class by
// class in ascending order, so the same set and seed always give the same
// selection.
func Balance(set *epochs.EpochSet, seed int64) *epochs.EpochSet {
	byClass := make([][]int, len(set.Classes))
	for i, y := range set.Labels {
		byClass[y] = append(byClass[y], i)
	}

	minCount := -1
	for _, idx := range byClass {
		if minCount < 0 || len(idx) < minCount {
			minCount = len(idx)
		}
	}
	if minCount < 0 {
		minCount = 0
	}

	out := &epochs.EpochSet{
		Classes:    set.Classes,
		Channels:   set.Channels,
		SampleRate: set.SampleRate,
		Length:     set.Length,
		Data:       make([][][]float64, 0, minCount*len(byClass)),
		Labels:     make([]int, 0, minCount*len(byClass)),
	}
	if minCount == 0 {
		return out
	}

	rng := rand.New(rand.NewSource(seed))
	for y, idx := range byClass {
		for _, i := range choose(rng, idx, minCount) {
			out.Data = append(out.Data, set.Data[i])
			out.Labels = append(out.Labels, y)
		}
	}
	return out
}

// Counts returns the number of epochs per class.
func Counts(set *epochs.EpochSet) []int {
	counts := make([]int, len(set.Classes))
	for _, y := range set.Labels {
		counts[y]++
	}
	return counts
}

// choose returns k distinct elements of idx in draw order.
func choose(rng *rand.Rand, idx []int, k int) []int {
	perm := rng.Perm(len(idx))
	out := make([]int, k)
	for i := range out {
		out[i] = idx[perm[i]]
	}
	return out
}

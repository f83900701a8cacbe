package ica

import (
	"fmt"
	"math"
	"sort"

	"github.com/Noofbiz/eegprep/filter"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Detection band applied to both sources and reference channels before
// scoring, where ocular activity dominates.
const (
	detectLow  = 1.0
	detectHigh = 10.0
)

// outlierPasses is the number of adaptive z-scoring passes.
const outlierPasses = 2

// FindArtifactComponents scores each component against each reference
// channel by Pearson correlation and returns the union of components whose
// score is an outlier (|z| > threshold) for any reference, in ascending
// order. scores is indexed [reference][component].
func FindArtifactComponents(sources *mat.Dense, refs [][]float64, sampleRate, threshold float64) ([]int, [][]float64, error) {
	if len(refs) == 0 {
		return nil, nil, nil
	}
	k, _ := sources.Dims()

	kernel, err := filter.Design(sampleRate, detectLow, detectHigh)
	if err != nil {
		return nil, nil, fmt.Errorf("artifact detection filter: %w", err)
	}
	rows := make([][]float64, k)
	for i := range rows {
		rows[i] = sources.RawRowView(i)
	}
	filtered := kernel.Apply(rows)
	filteredRefs := kernel.Apply(refs)

	bad := make(map[int]bool)
	scores := make([][]float64, len(refs))
	for r, ref := range filteredRefs {
		scores[r] = make([]float64, k)
		for c := range filtered {
			corr := stat.Correlation(filtered[c], ref, nil)
			if math.IsNaN(corr) {
				corr = 0
			}
			scores[r][c] = corr
		}
		for _, c := range findOutliers(scores[r], threshold) {
			bad[c] = true
		}
	}

	excluded := make([]int, 0, len(bad))
	for c := range bad {
		excluded = append(excluded, c)
	}
	sort.Ints(excluded)
	return excluded, scores, nil
}

// findOutliers marks values whose absolute z-score exceeds threshold,
// re-estimating mean and deviation without the already marked values.
func findOutliers(x []float64, threshold float64) []int {
	marked := make([]bool, len(x))
	for pass := 0; pass < outlierPasses; pass++ {
		var kept []float64
		for i, v := range x {
			if !marked[i] {
				kept = append(kept, v)
			}
		}
		if len(kept) < 2 {
			break
		}
		mean, std := stat.PopMeanStdDev(kept, nil)
		if std == 0 {
			break
		}
		found := false
		for i, v := range x {
			if !marked[i] && math.Abs(v-mean)/std > threshold {
				marked[i] = true
				found = true
			}
		}
		if !found {
			break
		}
	}

	var out []int
	for i, m := range marked {
		if m {
			out = append(out, i)
		}
	}
	return out
}

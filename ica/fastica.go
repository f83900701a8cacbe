// Package ica separates multi-channel signals into independent components
// and removes components driven by artifact-reference channels.
package ica

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ErrNotConverged is returned when the decomposition exhausts its iteration
// budget.
var ErrNotConverged = errors.New("decomposition did not converge")

// Config holds the decomposition parameters. They are fixed per run and do
// not depend on the subject.
type Config struct {
	Components int     // number of independent components
	Seed       int64   // seed of the unmixing initialisation
	MaxIter    int     // iteration budget
	Tolerance  float64 // convergence threshold on the unmixing update
}

// DefaultConfig returns 20 components, seed 97, 1000 iterations, tol 1e-4.
func DefaultConfig() Config {
	return Config{Components: 20, Seed: 97, MaxIter: 1000, Tolerance: 1e-4}
}

// ICA is a fitted decomposition: PCA whitening followed by an orthogonal
// unmixing matrix estimated with symmetric FastICA (log-cosh contrast).
type ICA struct {
	Mean        []float64  // per-channel mean removed before whitening
	Whitening   *mat.Dense // components x channels
	Dewhitening *mat.Dense // channels x components
	Unmixing    *mat.Dense // components x components
	Explained   []float64  // PCA variance of each retained component
	Iterations  int
}

// Fit estimates the decomposition of x (channels x samples).
func Fit(x [][]float64, cfg Config) (*ICA, error) {
	channels := len(x)
	if channels == 0 || len(x[0]) < 2 {
		return nil, fmt.Errorf("need at least one channel with two samples")
	}
	if cfg.Components <= 0 || cfg.Components > channels {
		return nil, fmt.Errorf("cannot extract %d components from %d channels", cfg.Components, channels)
	}
	samples := len(x[0])

	mean := make([]float64, channels)
	xc := mat.NewDense(channels, samples, nil)
	for c, row := range x {
		var sum float64
		for _, v := range row {
			sum += v
		}
		mean[c] = sum / float64(samples)
		dst := xc.RawRowView(c)
		for t, v := range row {
			dst[t] = v - mean[c]
		}
	}

	var cov mat.SymDense
	cov.SymOuterK(1/float64(samples-1), xc)
	var eig mat.EigenSym
	if !eig.Factorize(&cov, true) {
		return nil, fmt.Errorf("eigendecomposition of the covariance failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// eigenvalues are ascending; keep the largest ones
	k := cfg.Components
	largest := values[channels-1]
	whitening := mat.NewDense(k, channels, nil)
	dewhitening := mat.NewDense(channels, k, nil)
	explained := make([]float64, k)
	for i := 0; i < k; i++ {
		col := channels - 1 - i
		v := values[col]
		if v <= largest*1e-12 {
			return nil, fmt.Errorf("data rank is below %d components", k)
		}
		explained[i] = v
		s := math.Sqrt(v)
		for c := 0; c < channels; c++ {
			e := vectors.At(c, col)
			whitening.Set(i, c, e/s)
			dewhitening.Set(c, i, e*s)
		}
	}

	var z mat.Dense
	z.Mul(whitening, xc)

	w, iters, err := fastICA(&z, cfg)
	if err != nil {
		return nil, err
	}

	return &ICA{
		Mean:        mean,
		Whitening:   whitening,
		Dewhitening: dewhitening,
		Unmixing:    w,
		Explained:   explained,
		Iterations:  iters,
	}, nil
}

// fastICA runs the parallel FastICA fixed-point iteration on whitened data z.
func fastICA(z *mat.Dense, cfg Config) (*mat.Dense, int, error) {
	k, samples := z.Dims()
	rng := rand.New(rand.NewSource(cfg.Seed))

	start := make([]float64, k*k)
	for i := range start {
		start[i] = rng.NormFloat64()
	}
	w, err := symmetricDecorrelation(mat.NewDense(k, k, start))
	if err != nil {
		return nil, 0, err
	}

	var (
		wz    mat.Dense
		gz    mat.Dense
		w1    mat.Dense
		check mat.Dense
	)
	gMean := make([]float64, k)
	for it := 1; it <= cfg.MaxIter; it++ {
		wz.Mul(w, z)

		// g(u) = tanh(u), g'(u) = 1 - tanh(u)^2
		gz.Apply(func(i, j int, v float64) float64 { return math.Tanh(v) }, &wz)
		for i := 0; i < k; i++ {
			var sum float64
			for _, g := range gz.RawRowView(i) {
				sum += 1 - g*g
			}
			gMean[i] = sum / float64(samples)
		}

		w1.Mul(&gz, z.T())
		w1.Scale(1/float64(samples), &w1)
		for i := 0; i < k; i++ {
			row := w1.RawRowView(i)
			for j := range row {
				row[j] -= gMean[i] * w.At(i, j)
			}
		}

		next, err := symmetricDecorrelation(&w1)
		if err != nil {
			return nil, it, err
		}

		check.Mul(next, w.T())
		var lim float64
		for i := 0; i < k; i++ {
			lim = math.Max(lim, math.Abs(math.Abs(check.At(i, i))-1))
		}
		w = next
		if lim < cfg.Tolerance {
			return w, it, nil
		}
	}
	return nil, cfg.MaxIter, fmt.Errorf("%w after %d iterations", ErrNotConverged, cfg.MaxIter)
}

// symmetricDecorrelation returns (W W^T)^(-1/2) W.
func symmetricDecorrelation(w *mat.Dense) (*mat.Dense, error) {
	k, _ := w.Dims()
	var wwt mat.SymDense
	wwt.SymOuterK(1, w)

	var eig mat.EigenSym
	if !eig.Factorize(&wwt, true) {
		return nil, fmt.Errorf("symmetric decorrelation failed")
	}
	values := eig.Values(nil)
	var u mat.Dense
	eig.VectorsTo(&u)

	scaled := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if values[j] <= 0 {
				return nil, fmt.Errorf("singular unmixing matrix")
			}
			scaled.Set(i, j, u.At(i, j)/math.Sqrt(values[j]))
		}
	}
	var inv, out mat.Dense
	inv.Mul(scaled, u.T())
	out.Mul(&inv, w)
	return &out, nil
}

// Sources returns the component activations of x (components x samples).
func (m *ICA) Sources(x [][]float64) *mat.Dense {
	xc := m.center(x)
	var pcs, s mat.Dense
	pcs.Mul(m.Whitening, xc)
	s.Mul(m.Unmixing, &pcs)
	return &s
}

// Mixing returns the channels x components mixing matrix.
func (m *ICA) Mixing() *mat.Dense {
	var a mat.Dense
	a.Mul(m.Dewhitening, m.Unmixing.T())
	return &a
}

// Apply reconstructs x with the excluded components removed. Variance
// outside the retained principal subspace is kept.
func (m *ICA) Apply(x [][]float64, exclude []int) [][]float64 {
	sources := m.Sources(x)
	mixing := m.Mixing()
	components, samples := sources.Dims()

	// Only the excluded sources are mixed back and subtracted.
	removed := mat.NewDense(components, samples, nil)
	for _, comp := range exclude {
		removed.SetRow(comp, sources.RawRowView(comp))
	}
	var artifact mat.Dense
	artifact.Mul(mixing, removed)

	out := make([][]float64, len(x))
	for c := range x {
		out[c] = append([]float64(nil), x[c]...)
		for t, v := range artifact.RawRowView(c) {
			out[c][t] -= v
		}
	}
	return out
}

func (m *ICA) center(x [][]float64) *mat.Dense {
	xc := mat.NewDense(len(x), len(x[0]), nil)
	for c, row := range x {
		dst := xc.RawRowView(c)
		for t, v := range row {
			dst[t] = v - m.Mean[c]
		}
	}
	return xc
}

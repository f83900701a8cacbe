// Package filter implements zero-phase band-pass filtering of whole
// recordings with a windowed-sinc FIR kernel applied by FFT convolution.
package filter

import (
	"fmt"
	"math"
	"slices"

	"github.com/Noofbiz/eegprep/recording"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Kernel is a linear-phase (symmetric) band-pass FIR filter.
type Kernel struct {
	SampleRate float64
	Low, High  float64 // pass-band edges, Hz
	LowTrans   float64 // transition bandwidths, Hz
	HighTrans  float64
	Taps       []float64 // odd length, symmetric
}

// Design returns a Hamming-windowed band-pass kernel for [low, high] Hz.
//
// Transition bandwidths follow the usual automatic rule: 25% of the edge
// frequency, at least 2 Hz, bounded by the distance to 0 Hz and Nyquist.
// The kernel is 3.3 / min(transition) seconds long, the length at which a
// Hamming window reaches its stop-band attenuation.
func Design(sampleRate, low, high float64) (*Kernel, error) {
	nyquist := sampleRate / 2
	if low <= 0 || high <= low || high >= nyquist {
		return nil, fmt.Errorf("invalid band [%v, %v] Hz for sample rate %v Hz", low, high, sampleRate)
	}

	lowTrans := math.Min(math.Max(0.25*low, 2), low)
	highTrans := math.Min(math.Max(0.25*high, 2), nyquist-high)

	n := int(math.Round(3.3 / math.Min(lowTrans, highTrans) * sampleRate))
	if n%2 == 0 {
		n++
	}
	if n < 3 {
		n = 3
	}

	// cutoffs sit in the middle of each transition band
	f1 := (low - lowTrans/2) / sampleRate
	f2 := (high + highTrans/2) / sampleRate
	mid := (n - 1) / 2
	taps := make([]float64, n)
	for i := range taps {
		k := float64(i - mid)
		h := 2*f2*sinc(2*f2*k) - 2*f1*sinc(2*f1*k)
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		taps[i] = h * w
	}

	// unit gain at the centre of the pass band
	center := (low + high) / 2 / sampleRate
	var gain float64
	for i, h := range taps {
		gain += h * math.Cos(2*math.Pi*center*float64(i-mid))
	}
	floats.Scale(1/gain, taps)

	return &Kernel{
		SampleRate: sampleRate,
		Low:        low,
		High:       high,
		LowTrans:   lowTrans,
		HighTrans:  highTrans,
		Taps:       taps,
	}, nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// Response returns the magnitude of the kernel's frequency response at f Hz.
func (k *Kernel) Response(f float64) float64 {
	mid := (len(k.Taps) - 1) / 2
	w := 2 * math.Pi * f / k.SampleRate
	var re, im float64
	for i, h := range k.Taps {
		re += h * math.Cos(w*float64(i-mid))
		im -= h * math.Sin(w*float64(i-mid))
	}
	return math.Hypot(re, im)
}

// Apply filters every row of data without phase shift and returns new
// rows of the same length. The kernel spectrum is computed once per call.
func (k *Kernel) Apply(data [][]float64) [][]float64 {
	out := make([][]float64, len(data))
	if len(data) == 0 {
		return out
	}

	n := len(data[0])
	half := (len(k.Taps) - 1) / 2
	pad := min(len(k.Taps), max(n-1, 0))
	size := nextPow2(n + 2*pad + len(k.Taps) - 1)

	fft := fourier.NewFFT(size)
	kernel := make([]float64, size)
	copy(kernel, k.Taps)
	kernelCoeff := fft.Coefficients(nil, kernel)

	seq := make([]float64, size)
	coeff := make([]complex128, len(kernelCoeff))
	full := make([]float64, size)
	for c, x := range data {
		clear(seq)
		reflectPad(seq, x, pad)
		fft.Coefficients(coeff, seq)
		for i := range coeff {
			coeff[i] *= kernelCoeff[i]
		}
		fft.Sequence(full, coeff)

		y := make([]float64, len(x))
		scale := 1 / float64(size)
		for i := range y {
			y[i] = full[i+pad+half] * scale
		}
		out[c] = y
	}
	return out
}

// reflectPad writes x into dst surrounded by pad reflected samples on each
// side; the edge sample itself is not repeated.
func reflectPad(dst, x []float64, pad int) {
	n := len(x)
	for i := 0; i < pad; i++ {
		if i+1 < n {
			dst[pad-1-i] = x[i+1]
			dst[pad+n+i] = x[n-2-i]
		}
	}
	copy(dst[pad:], x)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// BandPass filters the signal channels of r to [low, high] Hz. Other
// channels are copied unchanged.
func BandPass(r *recording.Recording, low, high float64) (*recording.Recording, error) {
	k, err := Design(r.SampleRate, low, high)
	if err != nil {
		return nil, err
	}
	idx := r.SignalIndices()
	rows := make([][]float64, len(idx))
	for i, c := range idx {
		rows[i] = r.Data[c]
	}
	filtered := k.Apply(rows)

	data := make([][]float64, len(r.Data))
	for i, c := range idx {
		data[c] = filtered[i]
	}
	for c, ch := range r.Data {
		if data[c] == nil {
			data[c] = slices.Clone(ch)
		}
	}
	return r.WithData(data), nil
}

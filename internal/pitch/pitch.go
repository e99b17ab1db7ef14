// Package pitch estimates the fundamental frequency of a block of audio
// samples using time-domain autocorrelation.
package pitch

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// silenceEnergy is the zero-lag correlation below which a block is treated
// as silent. Samples are expected in [-1, 1].
const silenceEnergy = 1e-10

// riseTolerance scales the zero-lag energy into the smallest first
// difference that counts as the correlation rising. FFT round-off on a
// monotonically decaying correlation stays far below it.
const riseTolerance = 1e-9

// Estimator computes pitch estimates for blocks of a fixed size, reusing its
// scratch buffers between calls. It is not safe for concurrent use.
type Estimator struct {
	size   int
	padded []float64
	power  []complex128
	corr   []float64
}

// NewEstimator creates an Estimator sized for blocks of n samples.
func NewEstimator(n int) *Estimator {
	e := &Estimator{}
	e.resize(n)
	return e
}

func (e *Estimator) resize(n int) {
	if e.size == n && e.padded != nil {
		return
	}
	m := nextPow2(2 * n)
	e.size = n
	e.padded = make([]float64, m)
	e.power = make([]complex128, m)
	e.corr = make([]float64, n)
}

// Estimate returns the dominant fundamental frequency of samples in Hz. The
// second result is false when no pitch can be detected.
func (e *Estimator) Estimate(samples []float64, sampleRate int) (float64, bool) {
	if len(samples) < 2 || sampleRate <= 0 {
		return 0, false
	}
	e.resize(len(samples))
	e.autocorrelate(samples)
	return FromCorrelation(e.corr, sampleRate)
}

// correlation returns the non-negative lag half of the most recent
// autocorrelation. The slice is overwritten by the next Estimate call.
func (e *Estimator) correlation() []float64 {
	return e.corr
}

// autocorrelate fills e.corr with the biased autocorrelation of the
// zero-meaned samples via the Wiener-Khinchin relation.
func (e *Estimator) autocorrelate(samples []float64) {
	mean := Mean(samples)
	for i := range e.padded {
		if i < len(samples) {
			e.padded[i] = samples[i] - mean
		} else {
			e.padded[i] = 0
		}
	}

	spectrum := fft.FFTReal(e.padded)
	for i, c := range spectrum {
		a := cmplx.Abs(c)
		e.power[i] = complex(a*a, 0)
	}
	lagged := fft.IFFT(e.power)
	for i := range e.corr {
		e.corr[i] = real(lagged[i])
	}
}

// Estimate is a convenience wrapper that allocates a fresh Estimator.
func Estimate(samples []float64, sampleRate int) (float64, bool) {
	return NewEstimator(len(samples)).Estimate(samples, sampleRate)
}

// FromCorrelation picks the pitch lag from the non-negative half of an
// autocorrelation: it skips past the first local minimum, then takes the
// highest remaining peak. It reports false for silent input, for a
// correlation that never rises, and for a zero lag.
func FromCorrelation(corr []float64, sampleRate int) (float64, bool) {
	if len(corr) < 2 || sampleRate <= 0 {
		return 0, false
	}
	energy := corr[0]
	if !(energy > silenceEnergy) || math.IsInf(energy, 0) {
		return 0, false
	}

	eps := energy * riseTolerance
	start := -1
	for i := 0; i+1 < len(corr); i++ {
		if corr[i+1]-corr[i] > eps {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}

	lag := start
	for i := start + 1; i < len(corr); i++ {
		if corr[i] > corr[lag] {
			lag = i
		}
	}
	if lag == 0 {
		return 0, false
	}

	freq := float64(sampleRate) / float64(lag)
	if math.IsNaN(freq) || math.IsInf(freq, 0) {
		return 0, false
	}
	return freq, true
}

// Autocorrelate computes the biased autocorrelation of the zero-meaned
// samples directly, returning lags 0 through len(samples)-1.
func Autocorrelate(samples []float64) []float64 {
	n := len(samples)
	mean := Mean(samples)
	centered := make([]float64, n)
	for i, s := range samples {
		centered[i] = s - mean
	}
	corr := make([]float64, n)
	for lag := range n {
		var sum float64
		for i := 0; i+lag < n; i++ {
			sum += centered[i] * centered[i+lag]
		}
		corr[lag] = sum
	}
	return corr
}

// Mean returns the arithmetic mean of samples, or 0 for an empty slice.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// RMS returns the root-mean-square level of samples.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

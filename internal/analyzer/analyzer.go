// Package analyzer turns captured audio blocks into note detections. It runs
// on the capture thread and hands results to the display through a queue.
package analyzer

import (
	"math"
	"sync/atomic"

	"github.com/olivier-w/notegrid/internal/notes"
	"github.com/olivier-w/notegrid/internal/pitch"
	"github.com/olivier-w/notegrid/internal/queue"
	"github.com/rs/zerolog"
)

// Detection is an accepted pitch, ready to become a marker.
type Detection struct {
	Note      notes.Note
	Octave    int
	Frequency float64
	Cents     int
	Level     float64
}

// Settings configures an Analyzer.
type Settings struct {
	SampleRate  int
	BlockSize   int
	Sensitivity float64
	MinFreq     float64
	MaxFreq     float64
}

// Stats is a snapshot of the analyzer's counters.
type Stats struct {
	Blocks   uint64
	Pitched  uint64
	Accepted uint64
	Dropped  uint64
	Statuses uint64
	Level    float64
	Last     *Detection
}

// Analyzer estimates pitch for each block and queues accepted detections.
// Process must be called from one goroutine at a time; the remaining
// methods are safe to call from any goroutine.
type Analyzer struct {
	estimator *pitch.Estimator
	buf       []float64

	out     *queue.Queue[Detection]
	log     zerolog.Logger
	minFreq float64
	maxFreq float64

	sampleRate atomic.Int64

	sensitivity atomic.Uint64
	level       atomic.Uint64
	last        atomic.Pointer[Detection]

	blocks   atomic.Uint64
	pitched  atomic.Uint64
	accepted atomic.Uint64
	dropped  atomic.Uint64
	statuses atomic.Uint64
}

// New creates an Analyzer that pushes detections onto out.
func New(s Settings, out *queue.Queue[Detection], log zerolog.Logger) *Analyzer {
	a := &Analyzer{
		estimator: pitch.NewEstimator(s.BlockSize),
		buf:       make([]float64, s.BlockSize),
		out:       out,
		log:       log.With().Str("component", "analyzer").Logger(),
		minFreq:   s.MinFreq,
		maxFreq:   s.MaxFreq,
	}
	a.sampleRate.Store(int64(s.SampleRate))
	a.SetSensitivity(s.Sensitivity)
	return a
}

// SetSampleRate changes the rate used to convert lags into frequencies,
// for sources that dictate their own rate.
func (a *Analyzer) SetSampleRate(rate int) {
	a.sampleRate.Store(int64(rate))
}

// SampleRate returns the rate used to convert lags into frequencies.
func (a *Analyzer) SampleRate() int {
	return int(a.sampleRate.Load())
}

// Process analyzes one block of mono samples. It never blocks: when the
// queue is full the detection is dropped and counted.
func (a *Analyzer) Process(block []float32) {
	a.blocks.Add(1)
	if cap(a.buf) < len(block) {
		a.buf = make([]float64, len(block))
	}
	buf := a.buf[:len(block)]
	for i, s := range block {
		buf[i] = float64(s)
	}

	level := pitch.RMS(buf)
	a.level.Store(math.Float64bits(level))

	freq, ok := a.estimator.Estimate(buf, a.SampleRate())
	if !ok || !notes.InRange(freq, a.minFreq, a.maxFreq) {
		return
	}
	a.pitched.Add(1)

	note, cents := notes.FromFrequency(freq)
	if !notes.Accept(cents, a.Sensitivity()) {
		return
	}

	d := Detection{
		Note:      note,
		Octave:    notes.Octave(freq),
		Frequency: freq,
		Cents:     cents,
		Level:     level,
	}
	a.last.Store(&d)
	a.accepted.Add(1)
	if !a.out.Push(d) {
		a.dropped.Add(1)
		return
	}
	a.log.Debug().
		Str("note", note.String()).
		Int("octave", d.Octave).
		Float64("freq", freq).
		Int("cents", cents).
		Msg("detected")
}

// Report records a non-fatal status condition from the capture source.
func (a *Analyzer) Report(status string) {
	a.statuses.Add(1)
	a.log.Warn().Str("status", status).Msg("capture status")
}

// Sensitivity returns the current acceptance sensitivity.
func (a *Analyzer) Sensitivity() float64 {
	return math.Float64frombits(a.sensitivity.Load())
}

// SetSensitivity clamps s into (0, 1], stores it and returns the stored value.
func (a *Analyzer) SetSensitivity(s float64) float64 {
	s = ClampSensitivity(s)
	a.sensitivity.Store(math.Float64bits(s))
	return s
}

// Stats returns a snapshot of the counters.
func (a *Analyzer) Stats() Stats {
	return Stats{
		Blocks:   a.blocks.Load(),
		Pitched:  a.pitched.Load(),
		Accepted: a.accepted.Load(),
		Dropped:  a.dropped.Load(),
		Statuses: a.statuses.Load(),
		Level:    math.Float64frombits(a.level.Load()),
		Last:     a.last.Load(),
	}
}

// DefaultMinSensitivity replaces sensitivities that are not positive.
const DefaultMinSensitivity = 0.05

// ClampSensitivity limits s to the range (0, 1]. Values in range are kept
// as given; NaN and non-positive values become DefaultMinSensitivity.
func ClampSensitivity(s float64) float64 {
	if math.IsNaN(s) || s <= 0 {
		return DefaultMinSensitivity
	}
	if s > 1 {
		return 1
	}
	return s
}

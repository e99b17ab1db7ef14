// Package notes maps frequencies onto the twelve pitch classes of the
// equal-tempered scale.
package notes

import "math"

// Count is the number of pitch classes.
const Count = 12

const (
	referenceMIDI = 69
	referenceFreq = 440.0

	// acceptCents is the widest deviation accepted at sensitivity 1.
	acceptCents = 40.0
)

// Note is a pitch class, 0 (C) through 11 (B).
type Note int

const (
	C Note = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

var names = [Count]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var colors = [Count]string{
	"#ff4d4d",
	"#ff884d",
	"#ffcc4d",
	"#e6ff4d",
	"#b3ff4d",
	"#4dff88",
	"#4dffc7",
	"#4dd5ff",
	"#4d8cff",
	"#7c4dff",
	"#c44dff",
	"#ff4dd8",
}

// All returns every pitch class in chromatic order starting at C.
func All() []Note {
	out := make([]Note, Count)
	for i := range out {
		out[i] = Note(i)
	}
	return out
}

func (n Note) String() string {
	if !n.Valid() {
		return "?"
	}
	return names[n]
}

// Color returns the note's display color as a #rrggbb hex string.
func (n Note) Color() string {
	if !n.Valid() {
		return "#ffffff"
	}
	return colors[n]
}

// Valid reports whether n is one of the twelve pitch classes.
func (n Note) Valid() bool {
	return n >= 0 && n < Count
}

// MIDI returns the fractional MIDI number of freq (69 = A440).
func MIDI(freq float64) float64 {
	return referenceMIDI + 12*math.Log2(freq/referenceFreq)
}

// FromFrequency returns the nearest pitch class to freq and the deviation
// from it in cents, truncated toward zero.
func FromFrequency(freq float64) (Note, int) {
	midi := MIDI(freq)
	nearest := math.Round(midi)
	cents := int((midi - nearest) * 100)
	return classOf(int(nearest)), cents
}

// Octave returns the scientific octave number of freq's nearest note, so
// that 440 Hz is in octave 4.
func Octave(freq float64) int {
	m := int(math.Round(MIDI(freq)))
	return floorDiv(m, 12) - 1
}

// CenterFrequency returns the exact equal-tempered frequency of n in the
// given octave.
func CenterFrequency(n Note, octave int) float64 {
	midi := (octave+1)*12 + int(n)
	return referenceFreq * math.Pow(2, float64(midi-referenceMIDI)/12)
}

// Tolerance returns the largest accepted cents deviation for sensitivity.
func Tolerance(sensitivity float64) float64 {
	return acceptCents * sensitivity
}

// Accept reports whether a detection cents away from its note is close
// enough to count. The boundary is inclusive.
func Accept(cents int, sensitivity float64) bool {
	return AcceptFloat(float64(cents), sensitivity)
}

// AcceptFloat is Accept for a fractional cents value.
func AcceptFloat(cents, sensitivity float64) bool {
	return math.Abs(cents) <= Tolerance(sensitivity)
}

// InRange reports whether freq lies strictly between lo and hi.
func InRange(freq, lo, hi float64) bool {
	return freq > lo && freq < hi
}

func classOf(midi int) Note {
	return Note(((midi % Count) + Count) % Count)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

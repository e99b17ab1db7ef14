// Package capture delivers fixed-size blocks of mono audio to a Sink, from
// a live input device or from a decoded file replayed in real time.
package capture

import (
	"errors"
	"strings"
)

// ErrUnsupportedFormat is returned when a replay file's extension has no decoder.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Sink consumes captured audio. Process is called with one block at a time
// from the capture goroutine and must not block; the block is only valid for
// the duration of the call. Report receives non-fatal stream conditions.
type Sink interface {
	Process(block []float32)
	Report(status string)
}

// Source produces audio blocks for a Sink until stopped.
type Source interface {
	Name() string
	SampleRate() int
	Start(sink Sink) error
	Stop() error
	// Done is closed when the source runs out of audio. Live sources
	// return nil.
	Done() <-chan struct{}
}

// Status is a set of stream condition flags raised by an audio device.
type Status uint8

const (
	InputUnderflow Status = 1 << iota
	InputOverflow
	OutputUnderflow
	OutputOverflow
	PrimingOutput
)

var statusNames = []struct {
	flag Status
	name string
}{
	{InputUnderflow, "input underflow"},
	{InputOverflow, "input overflow"},
	{OutputUnderflow, "output underflow"},
	{OutputOverflow, "output overflow"},
	{PrimingOutput, "priming output"},
}

func (s Status) String() string {
	if s == 0 {
		return "ok"
	}
	var parts []string
	for _, n := range statusNames {
		if s&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ", ")
}

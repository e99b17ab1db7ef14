// Package microphone captures mono audio from the default input device via
// PortAudio.
package microphone

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/olivier-w/notegrid/internal/capture"
	"github.com/rs/zerolog"
)

// Microphone is a capture.Source reading the default input device.
type Microphone struct {
	sampleRate int
	frames     int
	log        zerolog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
}

var _ capture.Source = (*Microphone)(nil)

// New creates a Microphone delivering blocks of frames samples at sampleRate.
func New(sampleRate, frames int, log zerolog.Logger) *Microphone {
	return &Microphone{
		sampleRate: sampleRate,
		frames:     frames,
		log:        log.With().Str("component", "microphone").Logger(),
	}
}

func (m *Microphone) Name() string    { return "microphone" }
func (m *Microphone) SampleRate() int { return m.sampleRate }

// Done returns nil: a live input never runs out.
func (m *Microphone) Done() <-chan struct{} { return nil }

// Start opens the default input stream and begins delivering blocks to sink
// from PortAudio's callback thread.
func (m *Microphone) Start(sink capture.Sink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return errors.New("microphone already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing PortAudio: %w", err)
	}

	callback := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		if st := statusOf(flags); st != 0 {
			sink.Report(st.String())
		}
		sink.Process(in)
	}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.frames, callback)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting input stream: %w", err)
	}

	m.stream = stream
	m.log.Info().
		Int("rate", m.sampleRate).
		Int("frames", m.frames).
		Msg("input stream started")
	return nil
}

// Stop stops and closes the stream and releases PortAudio.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return nil
	}

	var errs []error
	if err := m.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping input stream: %w", err))
	}
	if err := m.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing input stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminating PortAudio: %w", err))
	}
	m.stream = nil
	m.log.Info().Msg("input stream stopped")
	return errors.Join(errs...)
}

func statusOf(flags portaudio.StreamCallbackFlags) capture.Status {
	var st capture.Status
	if flags&portaudio.InputUnderflow != 0 {
		st |= capture.InputUnderflow
	}
	if flags&portaudio.InputOverflow != 0 {
		st |= capture.InputOverflow
	}
	if flags&portaudio.OutputUnderflow != 0 {
		st |= capture.OutputUnderflow
	}
	if flags&portaudio.OutputOverflow != 0 {
		st |= capture.OutputOverflow
	}
	if flags&portaudio.PrimingOutput != 0 {
		st |= capture.PrimingOutput
	}
	return st
}

package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

var (
	globalOtoCtx  *oto.Context
	otoOnce       sync.Once
	otoInitErr    error
	otoSampleRate int
	otoChannels   int
)

// monitorContext returns the process-wide oto context. oto allows a single
// context per process, so every later caller must ask for the same format.
func monitorContext(sampleRate, channels int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatFloat32LE,
		}
		var ready chan struct{}
		globalOtoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
			otoSampleRate = sampleRate
			otoChannels = channels
		}
	})
	if otoInitErr != nil {
		return nil, fmt.Errorf("opening audio output: %w", otoInitErr)
	}
	if sampleRate != otoSampleRate || channels != otoChannels {
		return nil, errors.New("audio output already opened with a different format")
	}
	return globalOtoCtx, nil
}

// tapReader feeds decoded audio to oto as float32 PCM and hands the same
// frames to an assembler, so playback pulls the analysis along in step.
type tapReader struct {
	dec     frameDecoder
	asm     *blockAssembler
	scratch []float32
	eof     atomic.Bool
	err     atomic.Pointer[error]
}

func newTapReader(dec frameDecoder, asm *blockAssembler) *tapReader {
	return &tapReader{dec: dec, asm: asm}
}

func (t *tapReader) Read(p []byte) (int, error) {
	want := len(p) / 4
	if want == 0 {
		return 0, nil
	}
	if cap(t.scratch) < want {
		t.scratch = make([]float32, want)
	}
	buf := t.scratch[:want]

	n, err := t.dec.Read(buf)
	for i, s := range buf[:n] {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	t.asm.push(buf[:n])
	if err != nil {
		t.eof.Store(true)
		if !errors.Is(err, io.EOF) {
			t.err.Store(&err)
		}
		return n * 4, io.EOF
	}
	return n * 4, nil
}

// Err returns the decode error that ended playback, if any.
func (t *tapReader) Err() error {
	if p := t.err.Load(); p != nil {
		return *p
	}
	return nil
}

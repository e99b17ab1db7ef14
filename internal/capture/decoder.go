package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// frameDecoder is implemented by all format-specific decoders. Read fills
// dst with interleaved samples scaled to [-1, 1].
type frameDecoder interface {
	Read(dst []float32) (int, error)
	SampleRate() int
	Channels() int
}

// newDecoder detects format by file extension and returns the appropriate decoder.
func newDecoder(f *os.File) (frameDecoder, error) {
	ext := strings.ToLower(filepath.Ext(f.Name()))
	switch ext {
	case ".mp3":
		return newMP3Decoder(f)
	case ".wav":
		return newWAVDecoder(f)
	case ".flac":
		return newFLACDecoder(f)
	case ".ogg":
		return newOGGDecoder(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// --- MP3 decoder ---

// go-mp3 always produces 16-bit little-endian stereo.
type mp3Decoder struct {
	dec  *mp3.Decoder
	raw  []byte
	tail []byte
}

func newMP3Decoder(r io.Reader) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	return &mp3Decoder{dec: dec}, nil
}

func (d *mp3Decoder) Read(dst []float32) (int, error) {
	want := len(dst) * 2
	if cap(d.raw) < want {
		d.raw = make([]byte, want)
	}
	buf := d.raw[:want]
	carried := copy(buf, d.tail)
	d.tail = d.tail[:0]

	n, err := d.dec.Read(buf[carried:])
	n += carried
	samples := n / 2
	if n%2 == 1 {
		d.tail = append(d.tail, buf[n-1])
	}
	return pcm16ToFloat(dst, buf[:samples*2]), err
}

func (d *mp3Decoder) SampleRate() int { return d.dec.SampleRate() }
func (d *mp3Decoder) Channels() int   { return 2 }

// --- WAV decoder ---

type wavDecoder struct {
	dec        *wav.Decoder
	buf        *audio.IntBuffer
	scale      float32
	unsigned   bool
	sampleRate int
	channels   int
}

func newWAVDecoder(r io.ReadSeeker) (*wavDecoder, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	depth := int(dec.BitDepth)
	if depth < 8 || depth > 32 || depth%8 != 0 {
		return nil, fmt.Errorf("unsupported WAV bit depth %d", depth)
	}
	return &wavDecoder{
		dec:        dec,
		buf:        &audio.IntBuffer{},
		scale:      float32(int64(1) << (depth - 1)),
		unsigned:   depth == 8,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
	}, nil
}

func (d *wavDecoder) Read(dst []float32) (int, error) {
	if cap(d.buf.Data) < len(dst) {
		d.buf.Data = make([]int, len(dst))
	}
	d.buf.Data = d.buf.Data[:len(dst)]

	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil {
		return 0, fmt.Errorf("reading WAV samples: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	for i := 0; i < n; i++ {
		v := d.buf.Data[i]
		if d.unsigned {
			v -= 128
		}
		dst[i] = float32(v) / d.scale
	}
	return n, nil
}

func (d *wavDecoder) SampleRate() int { return d.sampleRate }
func (d *wavDecoder) Channels() int   { return d.channels }

// --- FLAC decoder ---

type flacDecoder struct {
	stream     *flac.Stream
	pending    []float32
	scale      float32
	sampleRate int
	channels   int
}

func newFLACDecoder(r io.Reader) (*flacDecoder, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	info := stream.Info
	return &flacDecoder{
		stream:     stream,
		scale:      float32(int64(1) << (info.BitsPerSample - 1)),
		sampleRate: int(info.SampleRate),
		channels:   int(info.NChannels),
	}, nil
}

func (d *flacDecoder) Read(dst []float32) (int, error) {
	if len(d.pending) == 0 {
		frame, err := d.stream.ParseNext()
		if err != nil {
			return 0, err
		}
		nSamples := int(frame.Subframes[0].NSamples)
		d.pending = d.pending[:0]
		for i := 0; i < nSamples; i++ {
			for ch := 0; ch < d.channels; ch++ {
				d.pending = append(d.pending, float32(frame.Subframes[ch].Samples[i])/d.scale)
			}
		}
	}
	n := copy(dst, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *flacDecoder) SampleRate() int { return d.sampleRate }
func (d *flacDecoder) Channels() int   { return d.channels }

// --- OGG Vorbis decoder ---

type oggDecoder struct {
	reader *oggvorbis.Reader
}

func newOGGDecoder(r io.Reader) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	return &oggDecoder{reader: reader}, nil
}

func (d *oggDecoder) Read(dst []float32) (int, error) {
	n, err := d.reader.Read(dst)
	for i := range dst[:n] {
		if dst[i] > 1 {
			dst[i] = 1
		} else if dst[i] < -1 {
			dst[i] = -1
		}
	}
	return n, err
}

func (d *oggDecoder) SampleRate() int { return d.reader.SampleRate() }
func (d *oggDecoder) Channels() int   { return d.reader.Channels() }

// pcm16ToFloat converts little-endian 16-bit samples in raw into dst and
// returns the number of samples written.
func pcm16ToFloat(dst []float32, raw []byte) int {
	n := len(raw) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
	}
	return n
}

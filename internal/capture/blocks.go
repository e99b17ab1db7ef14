package capture

import "io"

// blockAssembler downmixes interleaved frames to mono and emits blocks of
// exactly size samples. Input may split frames across calls.
type blockAssembler struct {
	size     int
	channels int
	block    []float32
	n        int
	acc      float32
	ch       int
	emit     func([]float32)
}

func newBlockAssembler(size, channels int, emit func([]float32)) *blockAssembler {
	if channels < 1 {
		channels = 1
	}
	return &blockAssembler{
		size:     size,
		channels: channels,
		block:    make([]float32, size),
		emit:     emit,
	}
}

func (a *blockAssembler) push(interleaved []float32) {
	inv := 1 / float32(a.channels)
	for _, s := range interleaved {
		a.acc += s
		a.ch++
		if a.ch < a.channels {
			continue
		}
		a.block[a.n] = a.acc * inv
		a.n++
		a.acc = 0
		a.ch = 0
		if a.n == a.size {
			a.emit(a.block)
			a.n = 0
		}
	}
}

// blockReader pulls blocks from a frameDecoder on demand. A trailing
// partial block is discarded.
type blockReader struct {
	dec     frameDecoder
	asm     *blockAssembler
	scratch []float32
	pending [][]float32
	err     error
	stalls  int
}

const maxStalls = 100

func newBlockReader(dec frameDecoder, size int) *blockReader {
	r := &blockReader{
		dec:     dec,
		scratch: make([]float32, size*dec.Channels()),
	}
	r.asm = newBlockAssembler(size, dec.Channels(), func(b []float32) {
		out := make([]float32, len(b))
		copy(out, b)
		r.pending = append(r.pending, out)
	})
	return r
}

// Next returns the next full block, or io.EOF once the decoder is exhausted.
func (r *blockReader) Next() ([]float32, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		n, err := r.dec.Read(r.scratch)
		r.asm.push(r.scratch[:n])
		switch {
		case err != nil:
			r.err = err
		case n == 0:
			r.stalls++
			if r.stalls > maxStalls {
				r.err = io.ErrNoProgress
			}
		default:
			r.stalls = 0
		}
	}
	b := r.pending[0]
	r.pending = r.pending[1:]
	return b, nil
}

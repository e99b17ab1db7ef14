package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/olivier-w/notegrid/internal/media"
	"github.com/rs/zerolog"
)

// FileSource replays a decoded audio file as if it were being captured live,
// delivering one block per block period. With monitoring on, the file is
// also played through the default output device and playback sets the pace.
type FileSource struct {
	path      string
	title     string
	blockSize int
	monitor   bool
	pace      time.Duration
	log       zerolog.Logger

	file *os.File
	dec  frameDecoder

	mu      sync.Mutex
	started bool
	player  *oto.Player
	tap     *tapReader

	emitted  atomic.Uint64
	stop     chan struct{}
	stopOnce sync.Once
	stopErr  error
	done     chan struct{}
	doneOnce sync.Once
}

// OpenFile opens path for replay in blocks of blockSize samples.
func OpenFile(path string, blockSize int, monitor bool, log zerolog.Logger) (*FileSource, error) {
	ext := filepath.Ext(path)
	if !media.IsSupportedExt(ext) {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, ext, media.SupportedExtsList())
	}
	if blockSize < 1 {
		return nil, fmt.Errorf("block size %d must be positive", blockSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := newDecoder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if dec.SampleRate() <= 0 || dec.Channels() <= 0 {
		f.Close()
		return nil, fmt.Errorf("%s: invalid stream format (%d Hz, %d channels)", path, dec.SampleRate(), dec.Channels())
	}

	return &FileSource{
		path:      path,
		title:     Title(path),
		blockSize: blockSize,
		monitor:   monitor,
		pace:      time.Duration(float64(blockSize) / float64(dec.SampleRate()) * float64(time.Second)),
		log:       log.With().Str("component", "replay").Str("file", filepath.Base(path)).Logger(),
		file:      f,
		dec:       dec,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Name returns the file's display title.
func (s *FileSource) Name() string { return s.title }

// SampleRate returns the file's native sample rate.
func (s *FileSource) SampleRate() int { return s.dec.SampleRate() }

// Done is closed once the whole file has been delivered or the source is stopped.
func (s *FileSource) Done() <-chan struct{} { return s.done }

// Position returns how much audio has been delivered so far.
func (s *FileSource) Position() time.Duration {
	return time.Duration(s.emitted.Load()) * s.pace
}

// Start begins delivering blocks to sink on a background goroutine.
func (s *FileSource) Start(sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("replay already started")
	}

	if !s.monitor {
		s.started = true
		go s.run(sink)
		s.log.Info().Dur("pace", s.pace).Int("rate", s.dec.SampleRate()).Msg("replay started")
		return nil
	}

	ctx, err := monitorContext(s.dec.SampleRate(), s.dec.Channels())
	if err != nil {
		return err
	}
	asm := newBlockAssembler(s.blockSize, s.dec.Channels(), func(b []float32) {
		sink.Process(b)
		s.emitted.Add(1)
	})
	s.tap = newTapReader(s.dec, asm)
	s.player = ctx.NewPlayer(s.tap)
	s.player.Play()
	s.started = true
	go s.watch(sink)
	s.log.Info().Int("rate", s.dec.SampleRate()).Msg("replay started with monitor")
	return nil
}

// run paces blocks with a ticker until the file ends or Stop is called.
func (s *FileSource) run(sink Sink) {
	defer s.finish()

	reader := newBlockReader(s.dec, s.blockSize)
	ticker := time.NewTicker(s.pace)
	defer ticker.Stop()

	for {
		block, err := reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Error().Err(err).Msg("replay decode failed")
				sink.Report("decode error: " + err.Error())
			}
			s.log.Info().Uint64("blocks", s.emitted.Load()).Msg("replay finished")
			return
		}
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		sink.Process(block)
		s.emitted.Add(1)
	}
}

// watch polls the monitor player until playback drains.
func (s *FileSource) watch(sink Sink) {
	defer s.finish()
	poll := time.NewTicker(200 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-poll.C:
		}
		s.mu.Lock()
		if s.player == nil {
			s.mu.Unlock()
			return
		}
		playing := s.player.IsPlaying()
		s.mu.Unlock()
		if s.tap.eof.Load() && !playing {
			if err := s.tap.Err(); err != nil {
				s.log.Error().Err(err).Msg("replay decode failed")
				sink.Report("decode error: " + err.Error())
			}
			s.log.Info().Uint64("blocks", s.emitted.Load()).Msg("replay finished")
			return
		}
	}
}

func (s *FileSource) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Stop halts delivery and releases the file and output device. Calling it
// more than once is safe.
func (s *FileSource) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stop)

		s.mu.Lock()
		started := s.started
		if s.player != nil {
			s.player.Pause()
			if err := s.player.Close(); err != nil {
				s.log.Warn().Err(err).Msg("closing monitor player")
			}
			s.player = nil
		}
		s.mu.Unlock()

		if started {
			<-s.done
		} else {
			s.finish()
		}
		s.stopErr = s.file.Close()
	})
	return s.stopErr
}

// Package wavlog writes raw 16-bit stereo PCM streams to WAV files.
//
// A Writer is fed from the emulation thread through AddStereoSamples and
// encodes on its own goroutine, so callers never wait on disk I/O. Chunks
// that arrive while the encoder is backed up are dropped and counted.
package wavlog

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

var (
	// ErrAlreadyStarted indicates Start was called on a running writer.
	ErrAlreadyStarted = errors.New("wav writer already started")

	// ErrNotStarted indicates Stop was called on an idle writer.
	ErrNotStarted = errors.New("wav writer not started")

	// ErrInvalidSampleRate indicates a non-positive sample rate.
	ErrInvalidSampleRate = errors.New("invalid sample rate")
)

// queueDepth is the number of pending chunks before new ones are dropped.
const queueDepth = 256

// chunkPool recycles sample chunks between producers and the encoder.
var chunkPool = sync.Pool{
	New: func() any {
		return new([]int16)
	},
}

func getChunk(n int) *[]int16 {
	buf := chunkPool.Get().(*[]int16)
	if cap(*buf) < n {
		*buf = make([]int16, n)
	}
	*buf = (*buf)[:n]
	return buf
}

// Writer streams stereo int16 chunks into a WAV file.
type Writer struct {
	lifecycle sync.Mutex // serializes Start and Stop

	// mu only keeps chunks from being closed under a producer's send.
	// Stop drains the encoder after releasing it.
	mu      sync.RWMutex
	running atomic.Bool
	chunks  chan *[]int16

	file *os.File
	done chan error

	skipSilence atomic.Bool
	dropped     atomic.Uint64
	written     atomic.Uint64
}

// New creates an idle writer.
func New() *Writer {
	return &Writer{}
}

// Start creates path and begins encoding at sampleRate.
func (w *Writer) Start(path string, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}

	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.running.Load() {
		return ErrAlreadyStarted
	}

	// #nosec G304 - path is chosen by the user
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 2,
		Precision:   2,
	}

	chunks := make(chan *[]int16, queueDepth)
	w.file = f
	w.done = make(chan error, 1)
	w.dropped.Store(0)
	w.written.Store(0)

	stream := &chunkStreamer{chunks: chunks}
	go func(done chan<- error) {
		done <- wav.Encode(f, stream, format)
	}(w.done)

	w.mu.Lock()
	w.chunks = chunks
	w.running.Store(true)
	w.mu.Unlock()

	return nil
}

// Stop flushes pending chunks, finalizes the WAV header and closes the file.
// Producers are released before the flush and never wait on it.
func (w *Writer) Stop() error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if !w.running.Load() {
		return ErrNotStarted
	}

	w.mu.Lock()
	w.running.Store(false)
	chunks := w.chunks
	w.chunks = nil
	w.mu.Unlock()

	close(chunks)
	encErr := <-w.done
	closeErr := w.file.Close()
	w.file = nil

	if encErr != nil {
		return fmt.Errorf("failed to encode wav: %w", encErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close wav file: %w", closeErr)
	}
	return nil
}

// SetSkipSilence makes the writer drop chunks that are entirely zero.
func (w *Writer) SetSkipSilence(skip bool) {
	w.skipSilence.Store(skip)
}

// AddStereoSamples queues a copy of interleaved stereo samples. It never
// blocks; on an idle writer the samples are ignored.
func (w *Writer) AddStereoSamples(samples []int16) {
	if len(samples) < 2 || !w.running.Load() {
		return
	}
	if w.skipSilence.Load() && isSilent(samples) {
		return
	}

	chunk := getChunk(len(samples) &^ 1)
	copy(*chunk, samples)
	frames := uint64(len(*chunk) / 2)

	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.running.Load() {
		chunkPool.Put(chunk)
		return
	}

	select {
	case w.chunks <- chunk:
		w.written.Add(frames)
	default:
		w.dropped.Add(frames)
		chunkPool.Put(chunk)
	}
}

// Running reports whether the writer is encoding.
func (w *Writer) Running() bool {
	return w.running.Load()
}

// Frames returns the number of frames queued for encoding since Start.
func (w *Writer) Frames() uint64 {
	return w.written.Load()
}

// Dropped returns the number of frames dropped since Start.
func (w *Writer) Dropped() uint64 {
	return w.dropped.Load()
}

func isSilent(samples []int16) bool {
	for _, s := range samples {
		if s != 0 {
			return false
		}
	}
	return true
}

// chunkStreamer adapts the chunk queue to beep.Streamer. It blocks on the
// queue, which only ever stalls the encoder goroutine. Spent chunks go back
// to chunkPool.
type chunkStreamer struct {
	chunks <-chan *[]int16
	held   *[]int16
	cur    []int16
}

func (s *chunkStreamer) Stream(samples [][2]float64) (int, bool) {
	n := 0
	for n < len(samples) {
		if len(s.cur) == 0 {
			if s.held != nil {
				chunkPool.Put(s.held)
				s.held = nil
			}
			// Hand back what we have before blocking for more.
			if n > 0 && len(s.chunks) == 0 {
				return n, true
			}
			chunk, ok := <-s.chunks
			if !ok {
				return n, n > 0
			}
			s.held = chunk
			s.cur = *chunk
			continue
		}
		samples[n][0] = float64(s.cur[0]) / 32768
		samples[n][1] = float64(s.cur[1]) / 32768
		s.cur = s.cur[2:]
		n++
	}
	return n, true
}

func (s *chunkStreamer) Err() error {
	return nil
}

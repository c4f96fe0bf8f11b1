package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/richardwooding/mixcore/internal/mixer"
	"github.com/richardwooding/mixcore/internal/source"
)

// mixStreamer drives the producers and the mixer in lockstep, one backend
// buffer at a time, as a beep.Streamer. It renders faster than real time
// but sees the same push/pull pattern as live playback.
type mixStreamer struct {
	mixer          *mixer.Mixer
	feeder         *source.Feeder
	rateCorrection bool
	period         time.Duration

	chunk     []int16
	pending   []int16
	remaining int
}

func newMixStreamer(m *mixer.Mixer, f *source.Feeder, rateCorrection bool, period time.Duration, total int) *mixStreamer {
	frames := max(int(float64(m.OutputSampleRate())*period.Seconds()), 1)
	return &mixStreamer{
		mixer:          m,
		feeder:         f,
		rateCorrection: rateCorrection,
		period:         period,
		chunk:          make([]int16, frames*2),
		remaining:      total,
	}
}

func (s *mixStreamer) Stream(samples [][2]float64) (int, bool) {
	n := 0
	for n < len(samples) {
		if len(s.pending) == 0 {
			if s.remaining == 0 {
				break
			}
			s.feeder.Tick(s.period)
			frames := min(len(s.chunk)/2, s.remaining)
			s.mixer.Mix(s.chunk[:frames*2], s.rateCorrection)
			s.pending = s.chunk[:frames*2]
			s.remaining -= frames
		}

		k := min(len(samples)-n, len(s.pending)/2)
		for i := range k {
			samples[n+i][0] = float64(s.pending[i*2]) / 32768
			samples[n+i][1] = float64(s.pending[i*2+1]) / 32768
		}
		s.pending = s.pending[k*2:]
		n += k
	}
	return n, n > 0
}

func (s *mixStreamer) Err() error {
	return nil
}

// renderWAV encodes everything s produces into a 16-bit stereo WAV at path.
func renderWAV(path string, s beep.Streamer, sampleRate int) error {
	// #nosec G304 - path is chosen by the user
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 2,
		Precision:   2,
	}
	if err := wav.Encode(f, s, format); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode wav: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	return nil
}

package source

import (
	"github.com/arl/blip"
)

// DefaultClockRate is the chip clock oscillators are timed against (Hz).
const DefaultClockRate = 4194304.0

// levelScale maps one oscillator volume step to PCM amplitude. Full volume
// leaves headroom for the band-limited overshoot.
const levelScale = 1500

// Synth renders an Oscillator into band-limited stereo PCM.
type Synth struct {
	buf        *blip.Buffer
	osc        Oscillator
	clockRate  float64
	sampleRate int
	maxFrames  int

	next  int     // clock time of the next step within the current frame
	carry float64 // fractional clocks left over from the last frame
	level int32   // amplitude currently in the delta buffer

	mono   []int16
	stereo []int16
}

// NewSynth creates a synth running osc at clockRate and producing sampleRate Hz.
func NewSynth(osc Oscillator, clockRate float64, sampleRate int) *Synth {
	sampleRate = max(sampleRate, 1)
	maxFrames := max(sampleRate/10, 64)

	buf := blip.NewBuffer(maxFrames)
	buf.SetRates(clockRate, float64(sampleRate))

	return &Synth{
		buf:        buf,
		osc:        osc,
		clockRate:  clockRate,
		sampleRate: sampleRate,
		maxFrames:  maxFrames,
		mono:       make([]int16, maxFrames),
		stereo:     make([]int16, maxFrames*2),
	}
}

// SampleRate returns the rate Render produces.
func (s *Synth) SampleRate() int {
	return s.sampleRate
}

// MaxFrames returns the largest frame count a single Render can produce.
func (s *Synth) MaxFrames() int {
	return s.maxFrames
}

// Render runs the oscillator for the clock time of frames output frames and
// returns the interleaved stereo samples that became available. The count
// can differ from frames by the buffer's rounding. The returned slice is
// reused by the next call.
func (s *Synth) Render(frames int) []int16 {
	frames = min(max(frames, 0), s.maxFrames-1)
	if frames == 0 {
		return s.stereo[:0]
	}

	fclocks := float64(frames)*s.clockRate/float64(s.sampleRate) + s.carry
	clocks := int(fclocks)
	s.carry = fclocks - float64(clocks)

	for ; s.next < clocks; s.next += s.osc.Period() {
		target := int32(s.osc.Step()) * levelScale
		if delta := target - s.level; delta != 0 {
			s.buf.AddDelta(uint64(s.next), delta)
			s.level = target
		}
	}
	s.buf.EndFrame(clocks)
	s.next -= clocks

	n := min(s.buf.SamplesAvailable(), s.maxFrames)
	count := s.buf.ReadSamples(s.mono[:n], n, blip.Mono)

	out := s.stereo[:count*2]
	for i, v := range s.mono[:count] {
		out[i*2] = v
		out[i*2+1] = v
	}
	return out
}

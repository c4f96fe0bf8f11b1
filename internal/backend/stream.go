// Package backend connects a mixer to an audio output library.
//
// Stream adapts the mixer's pull API to the io.Reader both ebiten and oto
// consume; the players here only own device setup and lifetime.
package backend

import (
	"encoding/binary"
	"math"
)

// Format is the PCM encoding a Stream produces.
type Format int

const (
	// FormatInt16 is interleaved signed 16-bit little-endian stereo.
	FormatInt16 Format = iota
	// FormatFloat32 is interleaved float32 little-endian stereo in [-1, 1).
	FormatFloat32
)

// FrameSize returns bytes per stereo frame.
func (f Format) FrameSize() int {
	if f == FormatFloat32 {
		return 8
	}
	return 4
}

// Mixer is the pull side of the mixing core.
type Mixer interface {
	Mix(samples []int16, rateCorrection bool) int
	MixFloat(samples []float32, rateCorrection bool) int
}

// Stream is an infinite io.Reader of mixed audio. Every Read is one Mix
// call; it never blocks and never returns a short read of whole frames.
type Stream struct {
	mixer          Mixer
	format         Format
	rateCorrection bool

	ints   []int16
	floats []float32
}

// NewStream creates a stream reading from m in the given format.
func NewStream(m Mixer, format Format, rateCorrection bool) *Stream {
	return &Stream{
		mixer:          m,
		format:         format,
		rateCorrection: rateCorrection,
	}
}

// Format returns the encoding Read produces.
func (s *Stream) Format() Format {
	return s.format
}

// Read implements io.Reader. Only whole frames are written.
func (s *Stream) Read(buf []byte) (int, error) {
	frames := len(buf) / s.format.FrameSize()
	if frames == 0 {
		return 0, nil
	}

	if s.format == FormatFloat32 {
		if cap(s.floats) < frames*2 {
			s.floats = make([]float32, frames*2)
		}
		samples := s.floats[:frames*2]
		s.mixer.MixFloat(samples, s.rateCorrection)
		for i, v := range samples {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		return frames * 8, nil
	}

	if cap(s.ints) < frames*2 {
		s.ints = make([]int16, frames*2)
	}
	samples := s.ints[:frames*2]
	s.mixer.Mix(samples, s.rateCorrection)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return frames * 4, nil
}

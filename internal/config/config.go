// Package config holds the runtime configuration of the mixer and its
// playback backend.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/richardwooding/mixcore/internal/log"
	"github.com/richardwooding/mixcore/internal/mixer"
)

var (
	// ErrInvalidSampleRate indicates a non-positive sample rate.
	ErrInvalidSampleRate = errors.New("sample rate must be positive")

	// ErrInvalidSpeed indicates a non-positive or non-finite speed.
	ErrInvalidSpeed = errors.New("speed must be a positive finite number")

	// ErrUnknownBackend indicates an unsupported audio backend.
	ErrUnknownBackend = errors.New("unknown audio backend")

	// ErrInvalidBufferDuration indicates a non-positive backend buffer.
	ErrInvalidBufferDuration = errors.New("buffer duration must be positive")
)

// Backend selects the audio output library.
type Backend string

const (
	// BackendEbiten plays through ebiten's audio package (int16 output).
	BackendEbiten Backend = "ebiten"
	// BackendOto plays through oto directly (float32 output).
	BackendOto Backend = "oto"
)

// Config holds mixer and playback configuration.
type Config struct {
	// OutputRate is the host playback rate in Hz.
	OutputRate int `json:"output_rate"`

	// Native rates of each input channel in Hz.
	DMARate       int `json:"dma_rate"`
	StreamingRate int `json:"streaming_rate"`
	SpeakerRate   int `json:"speaker_rate"`

	// Speed is the initial emulation speed multiplier.
	Speed float64 `json:"speed"`

	// RateCorrection enables backlog-driven rate correction.
	RateCorrection bool `json:"rate_correction"`

	// DitherSeed seeds the dither generator. Zero seeds from the clock.
	DitherSeed uint64 `json:"dither_seed"`
	// DitherAmplitude is the dither peak in LSBs. Zero disables dithering.
	DitherAmplitude float64 `json:"dither_amplitude"`

	Backend        Backend       `json:"backend"`
	BufferDuration time.Duration `json:"buffer_duration"`

	LogLevel string `json:"log_level"`
}

// DefaultConfig returns a Config with the mixer's defaults.
func DefaultConfig() Config {
	return Config{
		OutputRate:      48000,
		DMARate:         mixer.DefaultDMARate,
		StreamingRate:   mixer.DefaultStreamingRate,
		SpeakerRate:     mixer.DefaultSpeakerRate,
		Speed:           1.0,
		RateCorrection:  true,
		DitherAmplitude: mixer.DefaultDitherAmplitude,
		Backend:         BackendEbiten,
		BufferDuration:  20 * time.Millisecond,
		LogLevel:        "info",
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	rates := []struct {
		name string
		rate int
	}{
		{"output_rate", c.OutputRate},
		{"dma_rate", c.DMARate},
		{"streaming_rate", c.StreamingRate},
		{"speaker_rate", c.SpeakerRate},
	}
	for _, r := range rates {
		if r.rate <= 0 {
			return fmt.Errorf("%w: %s = %d", ErrInvalidSampleRate, r.name, r.rate)
		}
	}

	if !(c.Speed > 0) || math.IsInf(c.Speed, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidSpeed, c.Speed)
	}

	switch c.Backend {
	case BackendEbiten, BackendOto:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}

	if c.BufferDuration <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidBufferDuration, c.BufferDuration)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// MixerOptions returns the mixer options this configuration implies.
func (c *Config) MixerOptions() []mixer.Option {
	opts := []mixer.Option{
		mixer.WithInputSampleRate(mixer.DMA, c.DMARate),
		mixer.WithInputSampleRate(mixer.Streaming, c.StreamingRate),
		mixer.WithInputSampleRate(mixer.Speaker, c.SpeakerRate),
		mixer.WithDitherAmplitude(float32(c.DitherAmplitude)),
	}
	if c.DitherSeed != 0 {
		opts = append(opts, mixer.WithDitherSeed(c.DitherSeed))
	}
	return opts
}

// BufferFrames returns the number of frames in one backend buffer.
func (c *Config) BufferFrames() int {
	return int(float64(c.OutputRate) * c.BufferDuration.Seconds())
}

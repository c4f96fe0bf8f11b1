package main

import (
	"errors"
	"time"

	"github.com/richardwooding/mixcore/internal/config"
	"github.com/richardwooding/mixcore/internal/mixer"
	"github.com/richardwooding/mixcore/internal/source"
)

// Demo voice frequencies (Hz).
const (
	dmaToneHz       = 440.0
	streamingToneHz = 220.0
	speakerNoiseHz  = 1000.0
)

// primeDuration is how much audio is queued before playback starts, so the
// backlog begins near the low watermark instead of empty.
const primeDuration = 40 * time.Millisecond

// newDemoMixer creates a mixer with one demo voice bound to every channel.
// The voices sum past full scale, so channel volumes leave headroom.
func newDemoMixer(cfg config.Config) (*mixer.Mixer, *source.Feeder) {
	m := mixer.New(cfg.OutputRate, cfg.MixerOptions()...)
	m.Configure(func(s mixer.Settings) {
		s.SetSpeed(cfg.Speed)
		s.SetVolume(mixer.DMA, 192, 192)
		s.SetVolume(mixer.Streaming, 160, 96)
		s.SetVolume(mixer.Speaker, 64, 64)
	})

	dma := source.NewPulse(2, 12)
	dma.SetFrequency(source.DefaultClockRate, dmaToneHz)

	streaming := source.NewPulse(1, 8)
	streaming.SetFrequency(source.DefaultClockRate, streamingToneHz)

	speaker := source.NewNoise(6, true)
	speaker.SetFrequency(source.DefaultClockRate, speakerNoiseHz)

	feeder := source.NewFeeder(m)
	feeder.Bind(mixer.DMA, source.NewSynth(dma, source.DefaultClockRate, cfg.DMARate))
	feeder.Bind(mixer.Streaming, source.NewSynth(streaming, source.DefaultClockRate, cfg.StreamingRate))
	feeder.Bind(mixer.Speaker, source.NewSynth(speaker, source.DefaultClockRate, cfg.SpeakerRate))

	return m, feeder
}

// StreamLogFlags select raw channel streams to record while mixing.
type StreamLogFlags struct {
	LogDMA       string `name:"log-dma" type:"path" help:"Record the raw DMA stream to this WAV file."`
	LogStreaming string `type:"path" help:"Record the raw streaming channel to this WAV file."`
}

func (f *StreamLogFlags) paths() map[mixer.Channel]string {
	paths := make(map[mixer.Channel]string)
	if f.LogDMA != "" {
		paths[mixer.DMA] = f.LogDMA
	}
	if f.LogStreaming != "" {
		paths[mixer.Streaming] = f.LogStreaming
	}
	return paths
}

// startLogs starts every requested log. On failure the logs already started
// are stopped again.
func (f *StreamLogFlags) startLogs(m *mixer.Mixer) error {
	for ch, path := range f.paths() {
		if err := m.StartLog(ch, path); err != nil {
			return errors.Join(err, f.stopLogs(m))
		}
	}
	return nil
}

func (f *StreamLogFlags) stopLogs(m *mixer.Mixer) error {
	var errs []error
	for ch := range f.paths() {
		if !m.IsLogging(ch) {
			continue
		}
		errs = append(errs, m.StopLog(ch))
	}
	return errors.Join(errs...)
}

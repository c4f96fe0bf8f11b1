// Package main provides the mixcore CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/richardwooding/mixcore/internal/backend"
	"github.com/richardwooding/mixcore/internal/config"
	"github.com/richardwooding/mixcore/internal/log"
	"github.com/richardwooding/mixcore/internal/mixer"
	"github.com/richardwooding/mixcore/internal/source"
)

var (
	// ErrInvalidScale indicates the window scale factor is out of valid range.
	ErrInvalidScale = errors.New("scale must be between 1 and 10")

	// ErrInvalidDuration indicates a negative duration.
	ErrInvalidDuration = errors.New("duration must not be negative")
)

// Globals are flags shared by every command.
type Globals struct {
	Config   kong.ConfigFlag `help:"Load flag values from a JSON file."`
	LogLevel string          `help:"Log level (debug, info, warn, error)." default:"info"`
}

// CLI represents the command-line interface structure.
type CLI struct {
	Globals

	Info   InfoCmd   `cmd:"" help:"Display the resolved mixer configuration."`
	Render RenderCmd `cmd:"" help:"Render the demo sources to a WAV file."`
	Play   PlayCmd   `cmd:"" help:"Play the demo sources through an audio backend."`
}

// MixerFlags configures the mixer and its backend.
type MixerFlags struct {
	OutputRate      int           `help:"Host playback rate (Hz)." default:"48000"`
	DMARate         int           `name:"dma-rate" help:"DMA channel native rate (Hz)." default:"32000"`
	StreamingRate   int           `help:"Streaming channel native rate (Hz)." default:"48000"`
	SpeakerRate     int           `help:"Speaker channel native rate (Hz)." default:"3000"`
	Speed           float64       `help:"Emulation speed multiplier." default:"1.0"`
	RateCorrection  bool          `help:"Backlog-driven rate correction." default:"true" negatable:""`
	DitherSeed      uint64        `help:"Dither seed (0 = seed from clock)."`
	DitherAmplitude float64       `help:"Dither amplitude in LSBs (0 disables dithering)." default:"0.5"`
	Backend         string        `help:"Audio backend." enum:"ebiten,oto" default:"ebiten"`
	BufferDuration  time.Duration `help:"Backend buffer duration." default:"20ms"`
}

// Resolve builds and validates the configuration.
func (f *MixerFlags) Resolve(g *Globals) (config.Config, error) {
	cfg := config.Config{
		OutputRate:      f.OutputRate,
		DMARate:         f.DMARate,
		StreamingRate:   f.StreamingRate,
		SpeakerRate:     f.SpeakerRate,
		Speed:           f.Speed,
		RateCorrection:  f.RateCorrection,
		DitherSeed:      f.DitherSeed,
		DitherAmplitude: f.DitherAmplitude,
		Backend:         config.Backend(f.Backend),
		BufferDuration:  f.BufferDuration,
		LogLevel:        g.LogLevel,
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// InfoCmd displays the mixer configuration.
type InfoCmd struct {
	MixerFlags `embed:""`
}

// Run executes the info command.
func (c *InfoCmd) Run(g *Globals) error {
	cfg, err := c.Resolve(g)
	if err != nil {
		return err
	}

	m := mixer.New(cfg.OutputRate, cfg.MixerOptions()...)

	fmt.Printf("Mixer Configuration:\n")
	fmt.Printf("  Output Rate:     %d Hz\n", m.OutputSampleRate())
	fmt.Printf("  Speed:           %.2fx\n", cfg.Speed)
	fmt.Printf("  Rate Correction: %v\n", cfg.RateCorrection)
	fmt.Printf("  Dither:          %.2f LSB\n", cfg.DitherAmplitude)
	fmt.Printf("  Backend:         %s (%v buffer, %d frames)\n", cfg.Backend, cfg.BufferDuration, cfg.BufferFrames())
	fmt.Printf("\nChannels:\n")
	for _, ch := range mixer.Channels() {
		buf := m.Channel(ch)
		left, right := buf.Volume()
		fmt.Printf("  %-10s %6d Hz  %-6s  volume %d/%d  capacity %d frames\n",
			ch, buf.SampleRate(), buf.Interpolation(), left, right, mixer.Capacity)
	}

	return nil
}

// RenderCmd renders the demo sources offline.
type RenderCmd struct {
	MixerFlags     `embed:""`
	StreamLogFlags `embed:""`

	Out      string        `short:"o" required:"" type:"path" help:"Output WAV path."`
	Duration time.Duration `help:"Length of audio to render." default:"2s"`
}

// Run executes the render command.
func (c *RenderCmd) Run(g *Globals) (err error) {
	if c.Duration < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidDuration, c.Duration)
	}

	cfg, err := c.Resolve(g)
	if err != nil {
		return err
	}

	m, feeder := newDemoMixer(cfg)
	feeder.Tick(primeDuration)

	if err := c.startLogs(m); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, c.stopLogs(m))
	}()

	total := int(float64(cfg.OutputRate) * c.Duration.Seconds())
	stream := newMixStreamer(m, feeder, cfg.RateCorrection, cfg.BufferDuration, total)
	if err := renderWAV(c.Out, stream, cfg.OutputRate); err != nil {
		return err
	}

	fmt.Printf("Rendered %d frames (%v at %d Hz) to %s\n", total, c.Duration, cfg.OutputRate, c.Out)
	return nil
}

// PlayCmd plays the demo sources in real time.
type PlayCmd struct {
	MixerFlags     `embed:""`
	StreamLogFlags `embed:""`

	Duration time.Duration `help:"Stop after this long (0 plays until closed or interrupted)."`
	Scale    int           `help:"Meter window scale factor (1-10)." default:"2"`
}

// Run executes the play command.
func (c *PlayCmd) Run(g *Globals) (err error) {
	// Validate scale factor
	if c.Scale < 1 || c.Scale > 10 {
		return fmt.Errorf("%w: got %d", ErrInvalidScale, c.Scale)
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidDuration, c.Duration)
	}

	cfg, err := c.Resolve(g)
	if err != nil {
		return err
	}

	m, feeder := newDemoMixer(cfg)
	feeder.Tick(primeDuration)

	if err := c.startLogs(m); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, c.stopLogs(m))
	}()

	log.Component("playback").Info("starting playback",
		"backend", cfg.Backend, "output_rate", cfg.OutputRate, "buffer_frames", cfg.BufferFrames())

	if cfg.Backend == config.BackendOto {
		return c.playHeadless(m, feeder, cfg)
	}
	return c.playWindow(m, feeder, cfg)
}

// playWindow plays through ebiten with the meter window driving the producers.
func (c *PlayCmd) playWindow(m *mixer.Mixer, feeder *source.Feeder, cfg config.Config) error {
	stream := backend.NewStream(m, backend.FormatInt16, cfg.RateCorrection)
	player, err := backend.NewEbiten(stream, stream.Format(), cfg.OutputRate, cfg.BufferDuration)
	if err != nil {
		return err
	}
	defer func() { _ = player.Close() }()

	ebiten.SetWindowTitle("mixcore")
	ebiten.SetWindowSize(meterWidth*c.Scale, meterHeight*c.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(60)

	player.Play()
	if err := ebiten.RunGame(NewMeter(m, feeder, c.Duration)); err != nil {
		return fmt.Errorf("playback error: %w", err)
	}
	return nil
}

// playHeadless plays through oto with a ticker driving the producers.
func (c *PlayCmd) playHeadless(m *mixer.Mixer, feeder *source.Feeder, cfg config.Config) error {
	stream := backend.NewStream(m, backend.FormatFloat32, cfg.RateCorrection)
	player, err := backend.NewOto(stream, stream.Format(), cfg.OutputRate, cfg.BufferDuration)
	if err != nil {
		return err
	}
	defer func() { _ = player.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if c.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Duration)
		defer cancel()
	}

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	player.Play()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			feeder.Tick(now.Sub(last))
			last = now
		}
	}
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("mixcore"),
		kong.Description("Real-time audio mixing core for emulators."),
		kong.Configuration(kong.JSON),
		kong.UsageOnError(),
	)

	log.Init(cli.LogLevel)

	err := ctx.Run(&cli.Globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

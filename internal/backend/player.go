package backend

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/ebiten/v2/audio"
)

// Player is a running audio output.
type Player interface {
	Play()
	Close() error
}

// NewEbiten plays r through ebiten's audio context. The context is shared
// process-wide, so sampleRate must match any context created earlier.
func NewEbiten(r io.Reader, format Format, sampleRate int, bufferSize time.Duration) (Player, error) {
	ctx := audio.CurrentContext()
	if ctx == nil {
		ctx = audio.NewContext(sampleRate)
	}
	if ctx.SampleRate() != sampleRate {
		return nil, fmt.Errorf("audio context already running at %d Hz, want %d Hz", ctx.SampleRate(), sampleRate)
	}

	var (
		player *audio.Player
		err    error
	)
	if format == FormatFloat32 {
		player, err = ctx.NewPlayerF32(r)
	} else {
		player, err = ctx.NewPlayer(r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create ebiten player: %w", err)
	}

	// Smaller buffer = more frequent Read() calls
	player.SetBufferSize(bufferSize)
	return player, nil
}

type otoPlayer struct {
	player *oto.Player
}

func (p *otoPlayer) Play() {
	p.player.Play()
}

func (p *otoPlayer) Close() error {
	return p.player.Close()
}

// NewOto plays r through an oto context opened for stereo output.
func NewOto(r io.Reader, format Format, sampleRate int, bufferSize time.Duration) (Player, error) {
	otoFormat := oto.FormatSignedInt16LE
	if format == FormatFloat32 {
		otoFormat = oto.FormatFloat32LE
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       otoFormat,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("oto audio not available: %w", err)
	}
	<-ready

	return &otoPlayer{player: ctx.NewPlayer(r)}, nil
}
